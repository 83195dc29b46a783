package form

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/formstate/field"
)

func waitValidation(t *testing.T, c *Controller, key string, ok func(field.ValidationResult) bool) field.ValidationResult {
	t.Helper()
	require.Eventually(t, func() bool {
		return ok(c.Snapshot().Validation(key))
	}, 2*time.Second, 5*time.Millisecond)
	return c.Snapshot().Validation(key)
}

func TestAsyncValidatorMarksValidatingImmediately(t *testing.T) {
	c := New()
	defer c.Close()
	release := make(chan struct{})
	username := field.NewID[string]("username")
	require.NoError(t, Register(c, field.Definition[string]{
		ID:       username,
		Debounce: -1,
		AsyncValidator: func(ctx context.Context, v string) (string, error) {
			<-release
			if v == "taken" {
				return "username is taken", nil
			}
			return "", nil
		},
	}))

	require.NoError(t, Set(c, username, "taken"))
	vr := c.Snapshot().Validation("username")
	assert.True(t, vr.IsValidating)
	assert.True(t, c.Snapshot().IsPending("username"))
	assert.True(t, c.Snapshot().AnyPending())

	close(release)
	vr = waitValidation(t, c, "username", func(vr field.ValidationResult) bool {
		return !vr.IsValidating
	})
	assert.False(t, vr.IsValid)
	assert.Equal(t, "username is taken", vr.ErrorMessage)
	assert.False(t, c.Snapshot().AnyPending())
}

func TestAsyncValidatorLatestWins(t *testing.T) {
	c := New()
	defer c.Close()
	first := make(chan struct{})
	second := make(chan struct{})
	username := field.NewID[string]("username")
	require.NoError(t, Register(c, field.Definition[string]{
		ID:       username,
		Debounce: -1,
		AsyncValidator: func(ctx context.Context, v string) (string, error) {
			switch v {
			case "slow":
				<-first
				return "slow result", nil
			default:
				<-second
				return "", nil
			}
		},
	}))

	require.NoError(t, Set(c, username, "slow"))
	require.NoError(t, Set(c, username, "fast"))

	// The fast (newer) run resolves first and wins.
	close(second)
	vr := waitValidation(t, c, "username", func(vr field.ValidationResult) bool {
		return !vr.IsValidating
	})
	assert.True(t, vr.IsValid)

	// The stale slow run resolves later and is discarded.
	close(first)
	time.Sleep(50 * time.Millisecond)
	vr = c.Snapshot().Validation("username")
	assert.True(t, vr.IsValid)
	assert.Empty(t, vr.ErrorMessage)
}

func TestAsyncValidatorDebounceCoalesces(t *testing.T) {
	c := New()
	defer c.Close()
	var runs atomic.Int32
	username := field.NewID[string]("username")
	require.NoError(t, Register(c, field.Definition[string]{
		ID:       username,
		Debounce: 40 * time.Millisecond,
		AsyncValidator: func(ctx context.Context, v string) (string, error) {
			runs.Add(1)
			return "", nil
		},
	}))

	// Rapid sets within the debounce window run the validator once, for the
	// final value.
	require.NoError(t, Set(c, username, "a"))
	require.NoError(t, Set(c, username, "ab"))
	require.NoError(t, Set(c, username, "abc"))

	waitValidation(t, c, "username", func(vr field.ValidationResult) bool {
		return !vr.IsValidating
	})
	assert.Equal(t, int32(1), runs.Load())
}

func TestAsyncValidatorErrorBecomesMessage(t *testing.T) {
	c := New()
	defer c.Close()
	username := field.NewID[string]("username")
	require.NoError(t, Register(c, field.Definition[string]{
		ID:       username,
		Debounce: -1,
		AsyncValidator: func(ctx context.Context, v string) (string, error) {
			return "", errors.New("availability service unreachable")
		},
	}))

	require.NoError(t, Set(c, username, "ada"))
	vr := waitValidation(t, c, "username", func(vr field.ValidationResult) bool {
		return !vr.IsValidating
	})
	assert.False(t, vr.IsValid)
	assert.Equal(t, "availability service unreachable", vr.ErrorMessage)
}

func TestResetClearErrorsDiscardsLateAsyncResult(t *testing.T) {
	c := New()
	defer c.Close()
	release := make(chan struct{})
	username := field.NewID[string]("username")
	require.NoError(t, Register(c, field.Definition[string]{
		ID:       username,
		Debounce: -1,
		AsyncValidator: func(ctx context.Context, v string) (string, error) {
			<-release
			return "stale error", nil
		},
	}))

	require.NoError(t, Set(c, username, "ada"))
	require.True(t, c.Snapshot().Validation("username").IsValidating)

	c.Reset(WithClearErrors())
	close(release)

	// The canceled run's generation no longer matches; its error never lands.
	time.Sleep(50 * time.Millisecond)
	vr := c.Snapshot().Validation("username")
	assert.True(t, vr.IsValid)
	assert.Empty(t, vr.ErrorMessage)
	assert.False(t, c.Snapshot().AnyPending())
}

func TestModeDisabledSkipsAutomaticValidation(t *testing.T) {
	c := New()
	defer c.Close()
	require.NoError(t, Register(c, field.Definition[int]{
		ID:   fieldAge,
		Mode: field.ModeDisabled,
		Validator: func(v int) string {
			if v < 18 {
				return "too young"
			}
			return ""
		},
	}))

	require.NoError(t, Set(c, fieldAge, 5))
	assert.True(t, c.Snapshot().Validation("age").IsValid)

	// Manual validation ignores the mode.
	assert.False(t, c.Validate())
	assert.False(t, c.Snapshot().Validation("age").IsValid)
}

func TestModeOnUserInteraction(t *testing.T) {
	c := New()
	defer c.Close()
	require.NoError(t, Register(c, field.Definition[int]{
		ID:   fieldAge,
		Mode: field.ModeOnUserInteraction,
		Validator: func(v int) string {
			if v < 18 {
				return "too young"
			}
			return ""
		},
	}))

	// Registration does not validate an untouched field in this mode.
	assert.True(t, c.Snapshot().Validation("age").IsValid)

	// The first user write touches the field and validates at once.
	require.NoError(t, Set(c, fieldAge, 5))
	assert.False(t, c.Snapshot().Validation("age").IsValid)
}

func TestControllerModeInheritedByFields(t *testing.T) {
	c := New(WithValidationMode(field.ModeDisabled))
	defer c.Close()
	require.NoError(t, Register(c, field.Definition[int]{
		ID:        fieldAge,
		Validator: func(v int) string { return "always fails" },
	}))

	require.NoError(t, Set(c, fieldAge, 5))
	assert.True(t, c.Snapshot().Validation("age").IsValid)
}

func TestDependencyRevalidation(t *testing.T) {
	c := New()
	defer c.Close()
	password := field.NewID[string]("password")
	confirm := field.NewID[string]("confirm")
	require.NoError(t, Register(c, field.Definition[string]{ID: password}))
	require.NoError(t, Register(c, field.Definition[string]{
		ID:        confirm,
		DependsOn: []string{"password"},
		CrossValidator: func(v string, form field.Values) string {
			pw, _ := form.Value("password")
			if v != pw {
				return "passwords do not match"
			}
			return ""
		},
	}))

	require.NoError(t, Set(c, confirm, "secret"))
	assert.False(t, c.Snapshot().Validation("confirm").IsValid)

	// Changing the dependency re-validates confirm without a write to it.
	require.NoError(t, Set(c, password, "secret"))
	assert.True(t, c.Snapshot().Validation("confirm").IsValid)

	require.NoError(t, Set(c, password, "changed"))
	vr := c.Snapshot().Validation("confirm")
	assert.False(t, vr.IsValid)
	assert.Equal(t, "passwords do not match", vr.ErrorMessage)
}

func TestValidateStep(t *testing.T) {
	c := New()
	defer c.Close()
	require.NoError(t, Register(c, field.Definition[string]{
		ID:        fieldName,
		Mode:      field.ModeDisabled,
		Validator: func(v string) string { return "name invalid" },
	}))
	require.NoError(t, Register(c, field.Definition[int]{
		ID:        fieldAge,
		Mode:      field.ModeDisabled,
		Validator: func(v int) string { return "" },
	}))

	assert.True(t, c.ValidateStep("age"))
	assert.True(t, c.Snapshot().Validation("name").IsValid)

	assert.False(t, c.ValidateStep("name", "age"))
	assert.False(t, c.Snapshot().Validation("name").IsValid)

	assert.True(t, c.ValidateStep())
}

func TestSyncFailureClearsValidatingFlag(t *testing.T) {
	c := New()
	defer c.Close()
	release := make(chan struct{})
	defer close(release)
	username := field.NewID[string]("username")
	require.NoError(t, Register(c, field.Definition[string]{
		ID:       username,
		Debounce: -1,
		Validator: func(v string) string {
			if v == "bad" {
				return "sync says no"
			}
			return ""
		},
		AsyncValidator: func(ctx context.Context, v string) (string, error) {
			<-release
			return "", nil
		},
	}))

	// First set passes sync and leaves an async run in flight.
	require.NoError(t, Set(c, username, "good"))
	require.True(t, c.Snapshot().Validation("username").IsValidating)

	// The second set fails sync while that run is still out. The run was
	// superseded and can never clear the flag, so the controller must.
	require.NoError(t, Set(c, username, "bad"))
	vr := c.Snapshot().Validation("username")
	assert.False(t, vr.IsValid)
	assert.Equal(t, "sync says no", vr.ErrorMessage)
	assert.False(t, vr.IsValidating)
	assert.False(t, c.Snapshot().AnyPending())

	// Submit settles immediately instead of waiting on the dead run.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	onErrorCalled := false
	err := c.Submit(ctx, SubmitOptions{
		OnError: func(map[string]field.ValidationResult) { onErrorCalled = true },
	})
	require.NoError(t, err)
	assert.True(t, onErrorCalled)
}

func TestResetDiscardsInFlightAsync(t *testing.T) {
	c := New()
	defer c.Close()
	release := make(chan struct{})
	username := field.NewID[string]("username")
	require.NoError(t, Register(c, field.Definition[string]{
		ID:       username,
		Debounce: -1,
		AsyncValidator: func(ctx context.Context, v string) (string, error) {
			<-release
			return "taken", nil
		},
	}))

	require.NoError(t, Set(c, username, "dup"))
	require.True(t, c.Snapshot().Validation("username").IsValidating)

	// A plain reset restores the baseline; the in-flight run belongs to the
	// old value and must not pin its error onto it.
	c.Reset()
	assert.False(t, c.Snapshot().Validation("username").IsValidating)
	assert.False(t, c.Snapshot().AnyPending())

	close(release)
	time.Sleep(50 * time.Millisecond)
	vr := c.Snapshot().Validation("username")
	assert.True(t, vr.IsValid)
	assert.Empty(t, vr.ErrorMessage)
}

func TestSyncFailureGatesAsyncValidator(t *testing.T) {
	c := New()
	defer c.Close()
	var runs atomic.Int32
	username := field.NewID[string]("username")
	require.NoError(t, Register(c, field.Definition[string]{
		ID:       username,
		Debounce: -1,
		Validator: func(v string) string {
			if len(v) < 3 {
				return "too short"
			}
			return ""
		},
		AsyncValidator: func(ctx context.Context, v string) (string, error) {
			runs.Add(1)
			return "", nil
		},
	}))

	// A failing sync result stands; the async step is not even scheduled.
	require.NoError(t, Set(c, username, "ab"))
	vr := c.Snapshot().Validation("username")
	assert.False(t, vr.IsValid)
	assert.Equal(t, "too short", vr.ErrorMessage)
	assert.False(t, vr.IsValidating)
	assert.False(t, c.Snapshot().IsPending("username"))

	require.NoError(t, Set(c, username, "ada"))
	vr = waitValidation(t, c, "username", func(vr field.ValidationResult) bool {
		return !vr.IsValidating
	})
	assert.True(t, vr.IsValid)
	assert.Equal(t, int32(1), runs.Load())
}
