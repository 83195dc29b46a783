package form

import (
	"fmt"
	"sort"
	"time"

	"github.com/bytedance/sonic"
)

const checkpointVersion = "1.0"

// Checkpoint is a portable serialization of the form's restorable state:
// values, touched fields and step index. Validation results and history are
// recomputed on restore, not carried.
type Checkpoint struct {
	Version   string         `json:"version"`
	FormID    string         `json:"form_id"`
	Values    map[string]any `json:"values"`
	Touched   []string       `json:"touched,omitempty"`
	Step      int            `json:"step"`
	Timestamp time.Time      `json:"timestamp"`
}

// CreateCheckpoint serializes the current state.
func (c *Controller) CreateCheckpoint() ([]byte, error) {
	c.mu.Lock()
	cp := Checkpoint{
		Version:   checkpointVersion,
		FormID:    c.id,
		Values:    c.snap.Values(),
		Step:      c.snap.currentStep,
		Timestamp: time.Now(),
	}
	for k, t := range c.snap.touched {
		if t {
			cp.Touched = append(cp.Touched, k)
		}
	}
	c.mu.Unlock()
	sort.Strings(cp.Touched)

	data, err := sonic.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return data, nil
}

// RestoreCheckpoint loads a checkpoint created by CreateCheckpoint. Values
// are applied as a non-strict bulk set, so fields no longer registered or
// no longer type-compatible are skipped rather than failing the restore.
func (c *Controller) RestoreCheckpoint(data []byte) error {
	var cp Checkpoint
	if err := sonic.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	if cp.Version != checkpointVersion {
		return fmt.Errorf("incompatible checkpoint version: %s (expected %s)", cp.Version, checkpointVersion)
	}

	values := make(map[string]any, len(cp.Values))
	c.mu.Lock()
	for k, v := range cp.Values {
		if reg, ok := c.defs[k]; ok {
			if converted, ok := convertStored(v, reg.typ); ok {
				values[k] = converted
			}
		}
	}
	c.mu.Unlock()

	c.Batch(func() {
		if _, err := c.SetValues(values, false); err != nil {
			c.log.Warn("failed to apply checkpoint values", "form", c.id, "error", err)
		}
		for _, k := range cp.Touched {
			c.MarkTouched(k)
		}
		c.GoToStep(cp.Step)
	})
	return nil
}
