package form

import (
	"fmt"

	"github.com/tbxark/formstate/field"
)

// BindField mirrors source's field onto target's field. One-way by default:
// changes on source propagate to target. With twoWay, propagation runs in
// both directions; the feedback loop is broken by the controller's no-op
// detection (an incoming value equal to the current one publishes nothing).
//
// The source value is copied once at bind time. The returned function
// removes the binding.
func BindField[T any](target *Controller, targetID field.ID[T], source *Controller, sourceID field.ID[T], twoWay bool) (func(), error) {
	if target == source && targetID.Key() == sourceID.Key() {
		return nil, fmt.Errorf("cannot bind field %q to itself", targetID.Key())
	}
	if _, err := Get(source, sourceID); err != nil {
		return nil, err
	}
	if _, err := Get(target, targetID); err != nil {
		return nil, err
	}

	forward := mirror(target, targetID.Key(), sourceID.Key())
	removeForward := source.AddListener(forward)

	var removeBackward func()
	if twoWay {
		removeBackward = target.AddListener(mirror(source, sourceID.Key(), targetID.Key()))
	}

	// Initial sync.
	forward(source.Snapshot())

	return func() {
		removeForward()
		if removeBackward != nil {
			removeBackward()
		}
	}, nil
}

// mirror copies the source key's value from each published snapshot into
// the destination controller's field.
func mirror(dst *Controller, dstKey, srcKey string) func(*Snapshot) {
	return func(snap *Snapshot) {
		v, ok := snap.Value(srcKey)
		if !ok {
			return
		}
		if err := dst.setAny(dstKey, v, originProgram); err != nil {
			dst.log.Warn("failed to propagate bound field", "field", dstKey, "error", err)
		}
	}
}
