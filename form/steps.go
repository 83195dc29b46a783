package form

// Multi-step navigation. The step index lives in the snapshot so listeners
// re-render on navigation like on any other mutation.

// CurrentStep returns the current step index.
func (c *Controller) CurrentStep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.currentStep
}

// NextStep advances the step index.
func (c *Controller) NextStep() {
	c.GoToStep(c.CurrentStep() + 1)
}

// PrevStep moves the step index back, stopping at zero.
func (c *Controller) PrevStep() {
	c.GoToStep(c.CurrentStep() - 1)
}

// GoToStep jumps to a step index. Negative targets clamp to zero.
func (c *Controller) GoToStep(step int) {
	if step < 0 {
		step = 0
	}
	c.mu.Lock()
	if c.snap.currentStep == step {
		c.mu.Unlock()
		return
	}
	ns := c.snap.clone()
	ns.currentStep = step
	c.snap = ns
	c.enqueueLocked(ns)
	c.mu.Unlock()
	c.drain()
}
