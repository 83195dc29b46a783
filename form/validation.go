package form

import (
	"context"
	"time"

	"github.com/tbxark/formstate/field"
)

func (c *Controller) resolveMode(reg *registration) field.ValidationMode {
	if reg.mode != field.ModeInherit {
		return reg.mode
	}
	return c.mode
}

// autoValidateAllowed gates automatic validation triggers (registration,
// set, dependency). Manual Validate calls bypass it.
func (c *Controller) autoValidateAllowed(reg *registration, ns *Snapshot) bool {
	switch c.resolveMode(reg) {
	case field.ModeDisabled:
		return false
	case field.ModeOnBlur, field.ModeOnUserInteraction:
		return ns.touched[reg.key]
	default:
		return true
	}
}

// runSyncValidationLocked runs the synchronous and cross-field validators
// for one field against ns, merging the result without dropping an
// in-flight async flag.
func (c *Controller) runSyncValidationLocked(reg *registration, ns *Snapshot) {
	if reg.validate == nil && reg.cross == nil {
		return
	}
	v := ns.values[reg.key]
	msg := ""
	if reg.validate != nil {
		msg = reg.validate(v)
	}
	if msg == "" && reg.cross != nil {
		msg = reg.cross(v, ns)
	}
	if msg == "" && c.asyncFailed[reg.key] {
		// A settled async failure for this same value outlives a clean sync
		// pass; only a new value or a new async run clears it.
		return
	}
	vr := field.FromMessage(msg)
	vr.IsValidating = ns.validations[reg.key].IsValidating
	ns.validations[reg.key] = vr
}

// scheduleAsyncValidationLocked debounces the field's async validator. The
// validating flag flips on synchronously, before the debounce fires, so the
// UI can show a pending indicator at once; the generation captured here is
// re-checked before the result is applied.
func (c *Controller) scheduleAsyncValidationLocked(reg *registration, ns *Snapshot) {
	if reg.validateAsync == nil {
		return
	}
	c.valGen[reg.key]++
	gen := c.valGen[reg.key]
	delete(c.asyncFailed, reg.key)
	if t := c.valTimers[reg.key]; t != nil {
		t.Stop()
	}
	if vr := ns.Validation(reg.key); !vr.IsValid {
		// The sync result already failed; it stands, and bumping the
		// generation above keeps any in-flight async run from replacing it.
		// That run can no longer clear the validating flag either, so drop
		// it here or the field would read as pending forever.
		vr.IsValidating = false
		ns.validations[reg.key] = vr
		delete(ns.pending, reg.key)
		return
	}
	ns.validations[reg.key] = field.ValidationResult{IsValid: true, IsValidating: true}
	ns.pending[reg.key] = true

	value := ns.values[reg.key]
	key := reg.key
	c.valTimers[key] = time.AfterFunc(reg.effectiveDebounce(), func() {
		c.runAsyncValidator(key, value, gen)
	})
}

func (c *Controller) runAsyncValidator(key string, value any, gen uint64) {
	c.mu.Lock()
	reg, ok := c.defs[key]
	if !ok || c.closed || c.valGen[key] != gen {
		c.mu.Unlock()
		return
	}
	fn := reg.validateAsync
	c.mu.Unlock()

	msg, err := fn(context.Background(), value)
	if err != nil {
		// Async failure becomes the field's error state, never a crash.
		msg = err.Error()
	}

	c.mu.Lock()
	if c.closed || c.valGen[key] != gen {
		c.mu.Unlock()
		c.log.Debug("discarding stale async validation", "field", key, "generation", gen)
		return
	}
	ns := c.snap.clone()
	ns.validations[key] = field.FromMessage(msg)
	if msg != "" {
		c.asyncFailed[key] = true
	}
	delete(ns.pending, key)
	c.snap = ns
	c.enqueueLocked(ns)
	c.mu.Unlock()
	c.drain()
}

// cancelAsyncLocked invalidates any scheduled or in-flight async validation
// for key: the timer is stopped and the generation bumped so a late
// resolution is discarded.
func (c *Controller) cancelAsyncLocked(key string) {
	c.valGen[key]++
	delete(c.asyncFailed, key)
	if t := c.valTimers[key]; t != nil {
		t.Stop()
		delete(c.valTimers, key)
	}
}

// triggerDependentsLocked re-validates every field that depends on key.
// The cascade is one level deep: a dependent's own dependents are only
// reached if the dependent's value itself changes, which a validation pass
// never does.
func (c *Controller) triggerDependentsLocked(key string, ns *Snapshot) {
	for _, dep := range c.dependents[key] {
		reg, ok := c.defs[dep]
		if !ok {
			continue
		}
		if c.autoValidateAllowed(reg, ns) {
			c.runSyncValidationLocked(reg, ns)
		}
	}
}

// Validate runs the synchronous and cross-field validators of every field,
// regardless of validation mode, stores the results and reports overall
// validity. In-flight async results keep their validating flag and settle
// on their own.
func (c *Controller) Validate() bool {
	return c.validateKeys(nil)
}

// ValidateStep validates only the given fields and reports their validity.
func (c *Controller) ValidateStep(keys ...string) bool {
	if len(keys) == 0 {
		return true
	}
	return c.validateKeys(keys)
}

func (c *Controller) validateKeys(keys []string) bool {
	c.mu.Lock()
	if keys == nil {
		keys = make([]string, 0, len(c.defs))
		for k := range c.defs {
			keys = append(keys, k)
		}
	}
	ns := c.snap.clone()
	valid := true
	material := false
	for _, key := range keys {
		reg, ok := c.defs[key]
		if !ok {
			continue
		}
		before := ns.validations[key]
		c.runSyncValidationLocked(reg, ns)
		after := ns.validations[key]
		if after != before {
			material = true
		}
		if !after.IsValid {
			valid = false
		}
	}
	if !material {
		c.mu.Unlock()
		return valid
	}
	c.snap = ns
	c.enqueueLocked(ns)
	c.mu.Unlock()
	c.drain()
	return valid
}
