// Package field defines the value types shared by the form controller:
// typed field identifiers, per-field configuration and validation results.
package field

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrTypeMismatch is wrapped by every error caused by writing or reading a
// field with a value whose runtime type does not match the registered one.
var ErrTypeMismatch = errors.New("field type mismatch")

// ID is a typed handle to one form field. The type parameter exists only at
// the call site; storage is keyed by Key alone, so two IDs with the same key
// name the same slot regardless of their declared type.
type ID[T any] struct {
	key string
}

func NewID[T any](key string) ID[T] {
	return ID[T]{key: key}
}

func (id ID[T]) Key() string {
	return id.key
}

func (id ID[T]) String() string {
	return id.key
}

// Type reports the registered value type for this ID.
func (id ID[T]) Type() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// CheckAssignable reports whether v can be stored in a slot of type typ.
// Interface-typed slots accept any implementation; nil is accepted by any
// nilable slot type.
func CheckAssignable(key string, typ reflect.Type, v any) error {
	if v == nil {
		switch typ.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return nil
		}
		return fmt.Errorf("%w: field %q expects %s, got nil", ErrTypeMismatch, key, typ)
	}
	vt := reflect.TypeOf(v)
	if vt.AssignableTo(typ) {
		return nil
	}
	return fmt.Errorf("%w: field %q expects %s, got %s", ErrTypeMismatch, key, typ, vt)
}
