package asyncfield

import (
	"github.com/tbxark/formstate/field"
	"github.com/tbxark/formstate/form"
)

// BindController pushes every successful, non-stale fetch result into a
// controller field, and mirrors the coordinator's loading state into the
// field's pending flag. The returned function removes the binding.
func BindController[T any](c *Coordinator[T], ctrl *form.Controller, id field.ID[T]) func() {
	key := id.Key()
	return c.AddListener(func(snap Snapshot[T]) {
		ctrl.SetFetching(key, snap.IsLoading())
		if snap.State == StateData && snap.HasValue {
			if err := ctrl.SetComputed(key, snap.Value); err != nil {
				// Type mismatches here mean the field was re-registered
				// with a different type; drop the stale result.
				return
			}
		}
	})
}
