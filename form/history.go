package form

// Linear undo/redo over whole values maps. A forward mutation while the
// cursor sits behind the tail truncates every entry after the cursor before
// appending, so redoing past that point becomes impossible.

// appendHistoryLocked records ns.values as the new tail entry.
func (c *Controller) appendHistoryLocked(ns *Snapshot) {
	entry := make(map[string]any, len(ns.values))
	for k, v := range ns.values {
		entry[k] = v
	}
	c.history = append(c.history[:c.cursor+1], entry)
	c.cursor = len(c.history) - 1
	ns.historyCursor = c.cursor
}

// CanUndo reports whether the cursor can move back.
func (c *Controller) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor > 0
}

// CanRedo reports whether the cursor can move forward.
func (c *Controller) CanRedo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor < len(c.history)-1
}

// Undo moves one entry back and restores its values. Dirty flags are
// recomputed against the baseline and synchronous validators re-run for the
// fields whose values moved; validations are not themselves part of the
// history.
func (c *Controller) Undo() bool {
	return c.moveCursor(-1)
}

// Redo moves one entry forward.
func (c *Controller) Redo() bool {
	return c.moveCursor(+1)
}

func (c *Controller) moveCursor(delta int) bool {
	c.mu.Lock()
	target := c.cursor + delta
	if target < 0 || target >= len(c.history) {
		c.mu.Unlock()
		return false
	}
	c.cursor = target
	entry := c.history[target]

	ns := c.snap.clone()
	ns.historyCursor = target
	movedKeys := make([]string, 0)
	for key := range c.defs {
		restored, ok := entry[key]
		if !ok {
			restored = c.baseline[key]
		}
		if !valuesEqual(ns.values[key], restored) {
			movedKeys = append(movedKeys, key)
		}
		ns.values[key] = restored
		ns.dirty[key] = !valuesEqual(restored, c.baseline[key])
	}
	for _, key := range movedKeys {
		ns.changed[key] = struct{}{}
		// Scheduled or in-flight async validation targets the pre-move
		// value; invalidate it before re-validating the restored one.
		c.cancelAsyncLocked(key)
		delete(ns.pending, key)
		if vr, ok := ns.validations[key]; ok && vr.IsValidating {
			vr.IsValidating = false
			ns.validations[key] = vr
		}
		reg := c.defs[key]
		if c.autoValidateAllowed(reg, ns) {
			c.runSyncValidationLocked(reg, ns)
		}
		c.triggerDependentsLocked(key, ns)
	}
	c.scheduleSaveLocked()
	c.snap = ns
	c.enqueueLocked(ns)
	c.mu.Unlock()
	c.drain()
	return true
}

// HistoryLength returns the number of history entries.
func (c *Controller) HistoryLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}
