// Package rules builds field validators from composable checks.
//
// A chain is constructed fluently and compiled into a plain
// field.Validator with Build, or into a field.AsyncValidator with Async,
// in which case the synchronous checks run first as a fast-reject gate:
//
//	v := rules.New[string]("Email").Required().Email().Build()
//	av := rules.New[string]("Username").Required().MinLength(3).
//		Async(checkUsernameFree)
package rules

import (
	"context"
	"reflect"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/tbxark/formstate/field"
	"github.com/tbxark/formstate/messages"
)

// validate is shared by every chain; Var is safe for concurrent use.
var validate = validator.New()

// Chain accumulates checks for one field.
type Chain[T any] struct {
	label  string
	msgs   *messages.Set
	checks []func(v T) string
}

// Option configures a chain.
type Option func(*options)

type options struct {
	msgs *messages.Set
}

// WithMessages uses a custom message set instead of messages.Default.
func WithMessages(m *messages.Set) Option {
	return func(o *options) { o.msgs = m }
}

// New starts a chain for a field with the given display label.
func New[T any](label string, opts ...Option) *Chain[T] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.msgs == nil {
		o.msgs = messages.Default()
	}
	return &Chain[T]{label: label, msgs: o.msgs}
}

func (c *Chain[T]) add(fn func(v T) string) *Chain[T] {
	c.checks = append(c.checks, fn)
	return c
}

// Required fails on the type's zero value (and on empty strings, slices and
// maps).
func (c *Chain[T]) Required() *Chain[T] {
	msg := c.msgs.Required(c.label)
	return c.add(func(v T) string {
		if isZero(v) {
			return msg
		}
		return ""
	})
}

// Email checks the value against the email format. Zero values pass; combine
// with Required to reject them.
func (c *Chain[T]) Email() *Chain[T] {
	return c.tag("email", c.msgs.Email(c.label))
}

// URL checks the value against the URL format.
func (c *Chain[T]) URL() *Chain[T] {
	return c.tag("url", c.msgs.URL(c.label))
}

// UUID checks the value against the UUID format.
func (c *Chain[T]) UUID() *Chain[T] {
	return c.tag("uuid", c.msgs.UUID(c.label))
}

func (c *Chain[T]) tag(tag, msg string) *Chain[T] {
	return c.add(func(v T) string {
		if isZero(v) {
			return ""
		}
		if err := validate.Var(v, tag); err != nil {
			return msg
		}
		return ""
	})
}

// MinLength checks the length of a string, slice or map value.
func (c *Chain[T]) MinLength(n int) *Chain[T] {
	msg := c.msgs.MinLength(c.label, n)
	return c.add(func(v T) string {
		if l, ok := lengthOf(v); ok && l < n {
			return msg
		}
		return ""
	})
}

// MaxLength checks the length of a string, slice or map value.
func (c *Chain[T]) MaxLength(n int) *Chain[T] {
	msg := c.msgs.MaxLength(c.label, n)
	return c.add(func(v T) string {
		if l, ok := lengthOf(v); ok && l > n {
			return msg
		}
		return ""
	})
}

// Min checks a numeric lower bound.
func (c *Chain[T]) Min(min float64) *Chain[T] {
	msg := c.msgs.Min(c.label, min)
	return c.add(func(v T) string {
		if f, ok := numberOf(v); ok && f < min {
			return msg
		}
		return ""
	})
}

// Max checks a numeric upper bound.
func (c *Chain[T]) Max(max float64) *Chain[T] {
	msg := c.msgs.Max(c.label, max)
	return c.add(func(v T) string {
		if f, ok := numberOf(v); ok && f > max {
			return msg
		}
		return ""
	})
}

// Pattern checks a string value against a regular expression.
func (c *Chain[T]) Pattern(re *regexp.Regexp) *Chain[T] {
	msg := c.msgs.Pattern(c.label)
	return c.add(func(v T) string {
		s, ok := any(v).(string)
		if !ok || s == "" {
			return ""
		}
		if !re.MatchString(s) {
			return msg
		}
		return ""
	})
}

// OneOf restricts the value to a fixed set.
func (c *Chain[T]) OneOf(allowed ...T) *Chain[T] {
	msg := c.msgs.OneOf(c.label)
	return c.add(func(v T) string {
		for _, a := range allowed {
			if reflect.DeepEqual(v, a) {
				return ""
			}
		}
		return msg
	})
}

// Check appends a custom rule. The function returns an empty string when the
// value is valid.
func (c *Chain[T]) Check(fn func(v T) string) *Chain[T] {
	return c.add(fn)
}

// CheckMsg appends a custom predicate with a fixed failure message.
func (c *Chain[T]) CheckMsg(pred func(v T) bool, msg string) *Chain[T] {
	return c.add(func(v T) string {
		if pred(v) {
			return ""
		}
		return msg
	})
}

// Build compiles the chain into a synchronous validator. Checks run in
// insertion order; the first failure wins.
func (c *Chain[T]) Build() field.Validator[T] {
	checks := c.checks
	return func(v T) string {
		for _, check := range checks {
			if msg := check(v); msg != "" {
				return msg
			}
		}
		return ""
	}
}

// Async compiles the chain into an asynchronous validator. The synchronous
// checks run first and reject without invoking fn.
func (c *Chain[T]) Async(fn func(ctx context.Context, v T) (string, error)) field.AsyncValidator[T] {
	sync := c.Build()
	return func(ctx context.Context, v T) (string, error) {
		if msg := sync(v); msg != "" {
			return msg, nil
		}
		return fn(ctx, v)
	}
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return rv.IsZero()
}

func lengthOf(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len(), true
	}
	return 0, false
}

func numberOf(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
