// Package messages holds the display strings used by validation rules.
// Every entry is a pure function from field label (and rule parameters) to a
// user-facing string, so a whole set can be hot-swapped for localization
// without touching any other state.
package messages

import "fmt"

// Set is one language's worth of validation messages.
type Set struct {
	Required  func(label string) string
	Email     func(label string) string
	URL       func(label string) string
	UUID      func(label string) string
	MinLength func(label string, n int) string
	MaxLength func(label string, n int) string
	Min       func(label string, min float64) string
	Max       func(label string, max float64) string
	Pattern   func(label string) string
	OneOf     func(label string) string
}

// Default returns the built-in English set.
func Default() *Set {
	return &Set{
		Required:  func(label string) string { return fmt.Sprintf("%s is required", label) },
		Email:     func(label string) string { return fmt.Sprintf("%s must be a valid email address", label) },
		URL:       func(label string) string { return fmt.Sprintf("%s must be a valid URL", label) },
		UUID:      func(label string) string { return fmt.Sprintf("%s must be a valid UUID", label) },
		MinLength: func(label string, n int) string { return fmt.Sprintf("%s must be at least %d characters", label, n) },
		MaxLength: func(label string, n int) string { return fmt.Sprintf("%s must be at most %d characters", label, n) },
		Min:       func(label string, min float64) string { return fmt.Sprintf("%s must be at least %v", label, min) },
		Max:       func(label string, max float64) string { return fmt.Sprintf("%s must be at most %v", label, max) },
		Pattern:   func(label string) string { return fmt.Sprintf("%s has an invalid format", label) },
		OneOf:     func(label string) string { return fmt.Sprintf("%s has an unsupported value", label) },
	}
}
