package field

import (
	"context"
	"time"
)

// ValidationMode controls when automatic validation runs for a field.
// Manual Validate calls always compute and store a result.
type ValidationMode string

const (
	// ModeInherit uses the controller-level default mode.
	ModeInherit ValidationMode = ""
	// ModeAlways validates on registration, every set and dependency trigger.
	ModeAlways ValidationMode = "always"
	// ModeOnBlur suppresses automatic validation until the field has been
	// marked touched (MarkTouched).
	ModeOnBlur ValidationMode = "on_blur"
	// ModeOnUserInteraction suppresses automatic validation until the user
	// has interacted with the field (any set marks interaction).
	ModeOnUserInteraction ValidationMode = "on_user_interaction"
	// ModeDisabled suppresses all automatic validation. The field reads as
	// valid until a manual Validate call stores a result.
	ModeDisabled ValidationMode = "disabled"
)

// Adoption decides whether a changed initial value is adopted into the live
// value of a pristine field on re-registration.
type Adoption string

const (
	// AdoptPreferLocal re-adopts a new initial value while the field is
	// pristine. This is the default.
	AdoptPreferLocal Adoption = "prefer_local"
	// AdoptPreferGlobal never re-adopts after first registration; a new
	// initial value only moves the dirty-comparison baseline.
	AdoptPreferGlobal Adoption = "prefer_global"
)

// Validator checks a value synchronously. An empty return means valid.
type Validator[T any] func(v T) string

// AsyncValidator checks a value asynchronously. An empty message with a nil
// error means valid; a non-nil error is stored as the field's error message.
type AsyncValidator[T any] func(ctx context.Context, v T) (string, error)

// Values is a read-only view of the form's current values, handed to
// cross-field validators.
type Values interface {
	Value(key string) (any, bool)
}

// CrossValidator checks a value against the rest of the form.
type CrossValidator[T any] func(v T, form Values) string

// Transformer rewrites a value before it is stored.
type Transformer[T any] func(v T) T

// DefaultDebounce is applied when a Definition leaves Debounce at zero.
const DefaultDebounce = 300 * time.Millisecond

// Definition is the static configuration of one field.
type Definition[T any] struct {
	ID           ID[T]
	InitialValue T

	Validator      Validator[T]
	AsyncValidator AsyncValidator[T]
	CrossValidator CrossValidator[T]
	Transformer    Transformer[T]

	// Debounce delays the async validator after a change. Zero means
	// DefaultDebounce; negative means no debounce.
	Debounce time.Duration

	// DependsOn lists keys whose changes re-validate this field.
	DependsOn []string

	Mode     ValidationMode
	Adoption Adoption
}
