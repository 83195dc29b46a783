// Package formstate is a reactive form-state layer: it tracks field values,
// validation results, dirty/touched flags, async validation, dependency
// triggered re-validation, undo/redo history and submission orchestration,
// and publishes immutable snapshots to listeners.
//
// The root package re-exports the public surface of the subpackages; see
// form for the controller, field for the value types, rules for the
// validator chain builder, asyncfield for externally sourced fields and
// store for persistence.
package formstate

import (
	"github.com/tbxark/formstate/field"
	"github.com/tbxark/formstate/form"
	"github.com/tbxark/formstate/messages"
	"github.com/tbxark/formstate/store"
)

type (
	ID[T any]         = field.ID[T]
	Definition[T any] = field.Definition[T]
	ValidationResult  = field.ValidationResult
	ValidationMode    = field.ValidationMode

	Controller      = form.Controller
	Snapshot        = form.Snapshot
	SubmitOptions   = form.SubmitOptions
	SetValuesResult = form.SetValuesResult
	PatchOperation  = form.PatchOperation

	Store    = store.Store
	Messages = messages.Set
)

const (
	ModeAlways            = field.ModeAlways
	ModeOnBlur            = field.ModeOnBlur
	ModeOnUserInteraction = field.ModeOnUserInteraction
	ModeDisabled          = field.ModeDisabled
)

// NewID creates a typed field identifier.
func NewID[T any](key string) field.ID[T] {
	return field.NewID[T](key)
}

// New creates a controller; see form.New.
func New(opts ...form.Option) *form.Controller {
	return form.New(opts...)
}

// Register adds a field to a controller; see form.Register.
func Register[T any](c *form.Controller, def field.Definition[T]) error {
	return form.Register(c, def)
}

// Set writes a field value through its typed ID; see form.Set.
func Set[T any](c *form.Controller, id field.ID[T], v T) error {
	return form.Set(c, id, v)
}

// Get reads a field value through its typed ID; see form.Get.
func Get[T any](c *form.Controller, id field.ID[T]) (T, error) {
	return form.Get(c, id)
}
