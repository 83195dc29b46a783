// Package store persists form values between sessions.
//
// A Store receives the controller's values map keyed by a form ID. Both
// sides deep-copy through a JSON round-trip, so a caller mutating a map it
// handed in (or got back) can never corrupt a stored snapshot.
package store

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
)

// Store saves and loads one values map per form ID.
type Store interface {
	Save(ctx context.Context, formID string, values map[string]any) error
	// Load returns nil with no error when nothing is stored for formID.
	Load(ctx context.Context, formID string) (map[string]any, error)
	Clear(ctx context.Context, formID string) error
}

// Encode serializes a values map for storage.
func Encode(values map[string]any) ([]byte, error) {
	data, err := sonic.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form values: %w", err)
	}
	return data, nil
}

// Decode deserializes a stored values map.
func Decode(data []byte) (map[string]any, error) {
	var values map[string]any
	if err := sonic.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode form values: %w", err)
	}
	return values, nil
}

// DeepCopy clones a values map through a JSON round-trip.
func DeepCopy(values map[string]any) (map[string]any, error) {
	if values == nil {
		return nil, nil
	}
	data, err := Encode(values)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
