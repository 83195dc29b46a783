package form

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tbxark/formstate/field"
)

// ErrStrictSetValues marks a strict bulk set that was aborted; it wraps the
// first offending field's error.
var ErrStrictSetValues = errors.New("strict bulk set aborted")

// Set writes a value to a field through its typed ID.
func Set[T any](c *Controller, id field.ID[T], v T) error {
	return c.SetAny(id.Key(), v)
}

// Get reads a field's current value through its typed ID.
func Get[T any](c *Controller, id field.ID[T]) (T, error) {
	var zero T
	v, err := c.ValueAny(id.Key())
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: field %q holds %T", field.ErrTypeMismatch, id.Key(), v)
	}
	return t, nil
}

// Validation returns the current validation result for id.
func Validation[T any](c *Controller, id field.ID[T]) field.ValidationResult {
	return c.Snapshot().Validation(id.Key())
}

// ValueAny reads a field's current value without type checking.
func (c *Controller) ValueAny(key string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.defs[key]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotRegistered, key)
	}
	return c.snap.values[key], nil
}

// setOrigin distinguishes user interaction from programmatic writes; only
// user writes mark the field touched.
type setOrigin int

const (
	originUser setOrigin = iota
	originProgram
)

// SetAny writes a value to a field by key, with runtime type checking
// against the registered type.
func (c *Controller) SetAny(key string, v any) error {
	return c.setAny(key, v, originUser)
}

// SetComputed writes a value that did not come from user interaction, such
// as a bound field or an async fetch result. The field is not marked
// touched.
func (c *Controller) SetComputed(key string, v any) error {
	return c.setAny(key, v, originProgram)
}

func (c *Controller) setAny(key string, v any, origin setOrigin) error {
	c.mu.Lock()
	reg, ok := c.defs[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrFieldNotRegistered, key)
	}
	if err := field.CheckAssignable(key, reg.typ, v); err != nil {
		c.mu.Unlock()
		return err
	}
	if reg.transform != nil {
		v = reg.transform(v)
	}

	ns := c.snap.clone()
	material := false

	if origin == originUser && c.resolveMode(reg) != field.ModeOnBlur && !ns.touched[key] {
		ns.touched[key] = true
		material = true
	}

	if valuesEqual(c.snap.values[key], v) {
		// Identical value: never dirty, never a changed-fields entry, but
		// validators still run as configured.
		if c.autoValidateAllowed(reg, ns) {
			before := ns.validations[key]
			c.runSyncValidationLocked(reg, ns)
			if ns.validations[key] != before {
				material = true
			}
		}
		if !material {
			c.mu.Unlock()
			return nil
		}
		c.snap = ns
		c.enqueueLocked(ns)
		c.mu.Unlock()
		c.drain()
		return nil
	}

	ns.values[key] = v
	ns.dirty[key] = !valuesEqual(v, c.baseline[key])
	ns.changed[key] = struct{}{}
	// A settled async result belonged to the previous value.
	delete(c.asyncFailed, key)

	if c.autoValidateAllowed(reg, ns) {
		c.runSyncValidationLocked(reg, ns)
		c.scheduleAsyncValidationLocked(reg, ns)
	}
	c.triggerDependentsLocked(key, ns)

	if !c.historyHold {
		c.appendHistoryLocked(ns)
	}
	c.scheduleSaveLocked()
	c.snap = ns
	c.enqueueLocked(ns)
	c.mu.Unlock()
	c.drain()
	return nil
}

// MarkTouched marks a field as touched (blur), which unlocks automatic
// validation for the on-blur and on-user-interaction modes and runs it once.
func (c *Controller) MarkTouched(key string) {
	c.mu.Lock()
	reg, ok := c.defs[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	ns := c.snap.clone()
	material := !ns.touched[key]
	ns.touched[key] = true
	if c.autoValidateAllowed(reg, ns) {
		before := ns.validations[key]
		c.runSyncValidationLocked(reg, ns)
		if ns.validations[key] != before {
			material = true
		}
	}
	if !material {
		c.mu.Unlock()
		return
	}
	c.snap = ns
	c.enqueueLocked(ns)
	c.mu.Unlock()
	c.drain()
}

// SetValuesResult reports the outcome of a bulk update.
type SetValuesResult struct {
	Updated        []string
	TypeMismatches []string
	Missing        []string
}

// SetValues applies many key/value pairs as one transaction with a single
// notification.
//
// With strict=false the valid subset is applied and the result lists what
// was skipped. With strict=true any unregistered key or type mismatch
// aborts the whole call with an ErrStrictSetValues-wrapped error, applying
// nothing.
func (c *Controller) SetValues(values map[string]any, strict bool) (SetValuesResult, error) {
	var res SetValuesResult

	c.mu.Lock()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	accepted := make([]string, 0, len(keys))
	for _, k := range keys {
		reg, ok := c.defs[k]
		if !ok {
			if strict {
				c.mu.Unlock()
				return SetValuesResult{}, fmt.Errorf("%w: %w: %q", ErrStrictSetValues, ErrFieldNotRegistered, k)
			}
			res.Missing = append(res.Missing, k)
			continue
		}
		if err := field.CheckAssignable(k, reg.typ, values[k]); err != nil {
			if strict {
				c.mu.Unlock()
				return SetValuesResult{}, fmt.Errorf("%w: %w", ErrStrictSetValues, err)
			}
			res.TypeMismatches = append(res.TypeMismatches, k)
			continue
		}
		accepted = append(accepted, k)
	}
	c.mu.Unlock()

	c.Batch(func() {
		for _, k := range accepted {
			before, err := c.ValueAny(k)
			if err != nil {
				// Checked above; a failure here means a racing Unregister.
				res.Missing = append(res.Missing, k)
				continue
			}
			if err := c.setAny(k, values[k], originProgram); err != nil {
				res.Missing = append(res.Missing, k)
				continue
			}
			// A value equal to the current one is a no-op, not an update.
			if after, err := c.ValueAny(k); err == nil && !valuesEqual(before, after) {
				res.Updated = append(res.Updated, k)
			}
		}
	})
	return res, nil
}

// ResetOption configures Reset.
type ResetOption func(*resetOptions)

type resetOptions struct {
	clearErrors bool
}

// WithClearErrors makes Reset also force every validation result to valid
// and cancel in-flight async validation, so a late resolution cannot
// resurrect a stale error.
func WithClearErrors() ResetOption {
	return func(o *resetOptions) { o.clearErrors = true }
}

// Reset restores every field to its baseline initial value and clears
// dirty, touched and changed state.
func (c *Controller) Reset(opts ...ResetOption) {
	var o resetOptions
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.Lock()
	ns := c.snap.clone()
	for key := range c.defs {
		ns.values[key] = c.baseline[key]
		ns.dirty[key] = false
		delete(ns.touched, key)
		// In-flight async work belongs to the pre-reset value; invalidate it
		// so a late resolution cannot land on the restored baseline.
		c.cancelAsyncLocked(key)
		delete(ns.pending, key)
		if vr, ok := ns.validations[key]; ok && vr.IsValidating {
			vr.IsValidating = false
			ns.validations[key] = vr
		}
	}
	ns.changed = map[string]struct{}{}
	if o.clearErrors {
		for key := range c.defs {
			ns.validations[key] = field.Valid
		}
	}
	if !c.historyHold {
		c.appendHistoryLocked(ns)
	}
	c.snap = ns
	c.enqueueLocked(ns)
	s, id := c.store, c.id
	c.mu.Unlock()
	c.drain()
	if s != nil {
		if err := s.Clear(context.Background(), id); err != nil {
			c.log.Warn("failed to clear saved form values", "form", id, "error", err)
		}
	}
}

// ResetFields restores the named fields to their baseline values, clearing
// their dirty/touched/changed state and canceling their in-flight async
// validation.
func (c *Controller) ResetFields(keys ...string) {
	c.mu.Lock()
	ns := c.snap.clone()
	touched := false
	for _, key := range keys {
		if _, ok := c.defs[key]; !ok {
			continue
		}
		touched = true
		c.cancelAsyncLocked(key)
		ns.values[key] = c.baseline[key]
		ns.dirty[key] = false
		delete(ns.touched, key)
		delete(ns.pending, key)
		delete(ns.changed, key)
		ns.validations[key] = field.Valid
	}
	if !touched {
		c.mu.Unlock()
		return
	}
	if !c.historyHold {
		c.appendHistoryLocked(ns)
	}
	c.scheduleSaveLocked()
	c.snap = ns
	c.enqueueLocked(ns)
	c.mu.Unlock()
	c.drain()
}

// Append appends an element to a slice-valued field through the normal set
// pipeline.
func Append[T any](c *Controller, id field.ID[[]T], elem T) error {
	cur, err := Get(c, id)
	if err != nil {
		return err
	}
	next := make([]T, 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, elem)
	return Set(c, id, next)
}

// RemoveAt removes the element at index from a slice-valued field.
func RemoveAt[T any](c *Controller, id field.ID[[]T], index int) error {
	cur, err := Get(c, id)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(cur) {
		return fmt.Errorf("index %d out of range for field %q (len %d)", index, id.Key(), len(cur))
	}
	next := make([]T, 0, len(cur)-1)
	next = append(next, cur[:index]...)
	next = append(next, cur[index+1:]...)
	return Set(c, id, next)
}

// OptimisticUpdate sets a value immediately, marks the field pending, then
// runs an action; see Optimistic.
type OptimisticUpdate[T any] struct {
	ID            field.ID[T]
	Value         T
	Action        func(ctx context.Context) error
	RevertOnError bool
}

// Optimistic applies u.Value right away so the UI reflects it, marks the
// field pending while u.Action runs, and on failure optionally restores the
// previous value before returning the action's error.
func Optimistic[T any](ctx context.Context, c *Controller, u OptimisticUpdate[T]) error {
	key := u.ID.Key()
	prev, err := Get(c, u.ID)
	if err != nil {
		return err
	}
	if err := Set(c, u.ID, u.Value); err != nil {
		return err
	}
	c.setPending(key, true)

	actErr := u.Action(ctx)

	c.setPending(key, false)
	if actErr != nil && u.RevertOnError {
		if err := c.setAny(key, prev, originProgram); err != nil {
			c.log.Warn("failed to revert optimistic update", "field", key, "error", err)
		}
	}
	return actErr
}

// SetFetching flips a field's pending flag for externally managed
// asynchronous work, such as an async field fetch. Submit waits for pending
// fields the same way it waits for in-flight validation.
func (c *Controller) SetFetching(key string, fetching bool) {
	c.setPending(key, fetching)
}

func (c *Controller) setPending(key string, pending bool) {
	c.mu.Lock()
	if _, ok := c.defs[key]; !ok {
		c.mu.Unlock()
		return
	}
	if c.snap.pending[key] == pending {
		c.mu.Unlock()
		return
	}
	ns := c.snap.clone()
	if pending {
		ns.pending[key] = true
	} else {
		delete(ns.pending, key)
	}
	c.snap = ns
	c.enqueueLocked(ns)
	c.mu.Unlock()
	c.drain()
}
