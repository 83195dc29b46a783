// Package form implements the reactive form-state controller: it owns the
// per-field value, validation, dirty, touched and pending maps, runs
// synchronous and debounced asynchronous validators, propagates changes
// through field dependencies and orchestrates submission, undo/redo and
// persistence.
package form

import (
	"sort"

	"github.com/tbxark/formstate/field"
)

// Snapshot is one immutable view of the whole form at a point in time. The
// controller replaces it wholesale on every mutation and never modifies a
// published snapshot, so listeners can diff old and new by reference.
type Snapshot struct {
	values      map[string]any
	validations map[string]field.ValidationResult
	dirty       map[string]bool
	touched     map[string]bool
	pending     map[string]bool
	changed     map[string]struct{}

	submitting    bool
	currentStep   int
	historyCursor int
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		values:      map[string]any{},
		validations: map[string]field.ValidationResult{},
		dirty:       map[string]bool{},
		touched:     map[string]bool{},
		pending:     map[string]bool{},
		changed:     map[string]struct{}{},
	}
}

// clone copies every map so the original stays immutable.
func (s *Snapshot) clone() *Snapshot {
	ns := &Snapshot{
		values:        make(map[string]any, len(s.values)),
		validations:   make(map[string]field.ValidationResult, len(s.validations)),
		dirty:         make(map[string]bool, len(s.dirty)),
		touched:       make(map[string]bool, len(s.touched)),
		pending:       make(map[string]bool, len(s.pending)),
		changed:       make(map[string]struct{}, len(s.changed)),
		submitting:    s.submitting,
		currentStep:   s.currentStep,
		historyCursor: s.historyCursor,
	}
	for k, v := range s.values {
		ns.values[k] = v
	}
	for k, v := range s.validations {
		ns.validations[k] = v
	}
	for k, v := range s.dirty {
		ns.dirty[k] = v
	}
	for k, v := range s.touched {
		ns.touched[k] = v
	}
	for k, v := range s.pending {
		ns.pending[k] = v
	}
	for k := range s.changed {
		ns.changed[k] = struct{}{}
	}
	return ns
}

// Value returns the stored value for key. Snapshot implements field.Values.
func (s *Snapshot) Value(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Values returns a shallow copy of the values map.
func (s *Snapshot) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Validation returns the validation result for key. Fields without a stored
// result read as valid.
func (s *Snapshot) Validation(key string) field.ValidationResult {
	if vr, ok := s.validations[key]; ok {
		return vr
	}
	return field.Valid
}

// Validations returns a copy of every stored validation result.
func (s *Snapshot) Validations() map[string]field.ValidationResult {
	out := make(map[string]field.ValidationResult, len(s.validations))
	for k, v := range s.validations {
		out[k] = v
	}
	return out
}

func (s *Snapshot) IsDirty(key string) bool { return s.dirty[key] }

func (s *Snapshot) IsTouched(key string) bool { return s.touched[key] }

// IsPending reports whether key has an in-flight async validation or fetch.
func (s *Snapshot) IsPending(key string) bool { return s.pending[key] }

// AnyDirty reports whether any field differs from its baseline.
func (s *Snapshot) AnyDirty() bool {
	for _, d := range s.dirty {
		if d {
			return true
		}
	}
	return false
}

// AnyPending reports whether any field has in-flight asynchronous work.
func (s *Snapshot) AnyPending() bool {
	for _, p := range s.pending {
		if p {
			return true
		}
	}
	for _, vr := range s.validations {
		if vr.IsValidating {
			return true
		}
	}
	return false
}

// IsValid reports whether every stored validation result passes.
func (s *Snapshot) IsValid() bool {
	for _, vr := range s.validations {
		if !vr.IsValid {
			return false
		}
	}
	return true
}

// ChangedFields returns the sorted set of fields changed since construction
// or the last reset.
func (s *Snapshot) ChangedFields() []string {
	out := make([]string, 0, len(s.changed))
	for k := range s.changed {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *Snapshot) IsSubmitting() bool { return s.submitting }

func (s *Snapshot) CurrentStep() int { return s.currentStep }

func (s *Snapshot) HistoryCursor() int { return s.historyCursor }

var _ field.Values = (*Snapshot)(nil)
