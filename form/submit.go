package form

import (
	"context"
	"fmt"

	"github.com/tbxark/formstate/field"
)

// SubmitOptions configures one submission.
type SubmitOptions struct {
	// OnValid receives a copy of the values map once the form validated.
	// Its error is returned to the Submit caller after bookkeeping.
	OnValid func(ctx context.Context, values map[string]any) error

	// OnError receives a copy of the validation results when the form is
	// invalid. Optional; an invalid form without OnError finishes silently.
	OnError func(validations map[string]field.ValidationResult)

	// SkipPendingWait submits without waiting for in-flight async
	// validation or pending fields to settle.
	SkipPendingWait bool
}

// Submit drives the submission state machine: it flips the submitting flag,
// waits until no field is pending or validating, validates the whole form,
// then calls OnValid or OnError. The flag is cleared and published on every
// exit path.
//
// When a throttle window is configured and the previous call started within
// it, the call is silently ignored.
func (c *Controller) Submit(ctx context.Context, opts SubmitOptions) error {
	c.mu.Lock()
	if c.limiter != nil && !c.limiter.Allow() {
		c.mu.Unlock()
		return nil
	}
	if c.snap.submitting {
		c.mu.Unlock()
		return nil
	}
	c.setSubmittingLocked(true)
	c.mu.Unlock()
	c.drain()

	defer func() {
		c.mu.Lock()
		c.setSubmittingLocked(false)
		c.mu.Unlock()
		c.drain()
	}()

	if !opts.SkipPendingWait {
		if err := c.waitForSettled(ctx); err != nil {
			return err
		}
	}

	if !c.Validate() {
		if opts.OnError != nil {
			opts.OnError(c.Snapshot().Validations())
		}
		return nil
	}

	if opts.OnValid == nil {
		return nil
	}
	if err := opts.OnValid(ctx, c.Snapshot().Values()); err != nil {
		return fmt.Errorf("submit action failed: %w", err)
	}
	return nil
}

func (c *Controller) setSubmittingLocked(submitting bool) {
	ns := c.snap.clone()
	ns.submitting = submitting
	c.snap = ns
	c.enqueueLocked(ns)
}

// waitForSettled blocks until no field is pending or validating, observing
// the controller's own notification stream for progress.
func (c *Controller) waitForSettled(ctx context.Context) error {
	for {
		// Register before checking so a publish between the check and the
		// wait cannot be missed.
		w := c.changeWait()
		c.mu.Lock()
		settled := !c.snap.AnyPending()
		c.mu.Unlock()
		if settled {
			return nil
		}
		select {
		case <-w:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
