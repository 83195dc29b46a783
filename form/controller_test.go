package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/formstate/field"
)

var (
	fieldName = field.NewID[string]("name")
	fieldAge  = field.NewID[int]("age")
)

func newNameAgeController(t *testing.T) *Controller {
	t.Helper()
	c := New()
	t.Cleanup(c.Close)
	require.NoError(t, Register(c, field.Definition[string]{ID: fieldName}))
	require.NoError(t, Register(c, field.Definition[int]{ID: fieldAge}))
	return c
}

func TestRegisterInitialValue(t *testing.T) {
	c := New()
	defer c.Close()
	require.NoError(t, Register(c, field.Definition[string]{ID: fieldName, InitialValue: "Ada"}))

	v, err := Get(c, fieldName)
	require.NoError(t, err)
	assert.Equal(t, "Ada", v)

	snap := c.Snapshot()
	assert.False(t, snap.IsDirty("name"))
	assert.True(t, snap.Validation("name").IsValid)
	assert.Equal(t, []string{"name"}, c.RegisteredFields())
}

func TestSetAndGet(t *testing.T) {
	c := newNameAgeController(t)

	require.NoError(t, Set(c, fieldName, "Grace"))
	v, err := Get(c, fieldName)
	require.NoError(t, err)
	assert.Equal(t, "Grace", v)

	snap := c.Snapshot()
	assert.True(t, snap.IsDirty("name"))
	assert.True(t, snap.IsTouched("name"))
	assert.Equal(t, []string{"name"}, snap.ChangedFields())
}

func TestSetTypeMismatch(t *testing.T) {
	c := newNameAgeController(t)

	err := c.SetAny("age", "not a number")
	require.Error(t, err)
	assert.ErrorIs(t, err, field.ErrTypeMismatch)

	err = c.SetAny("unknown", 1)
	assert.ErrorIs(t, err, ErrFieldNotRegistered)
}

func TestInterfaceFieldAcceptsVariants(t *testing.T) {
	c := New()
	defer c.Close()
	payload := field.NewID[any]("payload")
	require.NoError(t, Register(c, field.Definition[any]{ID: payload}))

	require.NoError(t, Set(c, payload, any(42)))
	require.NoError(t, Set(c, payload, any("text")))
	v, err := Get(c, payload)
	require.NoError(t, err)
	assert.Equal(t, "text", v)
}

func TestIdenticalValueKeepsPristine(t *testing.T) {
	c := New()
	defer c.Close()
	require.NoError(t, Register(c, field.Definition[string]{ID: fieldName, InitialValue: "Ada"}))

	notifications := 0
	remove := c.AddListener(func(*Snapshot) { notifications++ })
	defer remove()

	// Setting the current value marks the field touched but never dirty.
	require.NoError(t, Set(c, fieldName, "Ada"))
	snap := c.Snapshot()
	assert.False(t, snap.IsDirty("name"))
	assert.True(t, snap.IsTouched("name"))
	assert.Empty(t, snap.ChangedFields())
	assert.Equal(t, 1, notifications)

	// A second identical set changes nothing at all and publishes nothing.
	require.NoError(t, Set(c, fieldName, "Ada"))
	assert.Empty(t, c.Snapshot().ChangedFields())
	assert.Equal(t, 1, notifications)
}

func TestIndependentControllers(t *testing.T) {
	a := newNameAgeController(t)
	b := newNameAgeController(t)

	require.NoError(t, Set(a, fieldName, "Ada"))

	v, err := Get(b, fieldName)
	require.NoError(t, err)
	assert.Empty(t, v)
	assert.False(t, b.Snapshot().IsDirty("name"))
}

func TestAgeValidationScenario(t *testing.T) {
	c := New()
	defer c.Close()
	require.NoError(t, Register(c, field.Definition[int]{
		ID: fieldAge,
		Validator: func(v int) string {
			if v < 18 {
				return "must be 18 or older"
			}
			return ""
		},
	}))

	require.NoError(t, Set(c, fieldAge, 10))
	vr := c.Snapshot().Validation("age")
	assert.False(t, vr.IsValid)
	assert.Equal(t, "must be 18 or older", vr.ErrorMessage)

	require.NoError(t, Set(c, fieldAge, 20))
	vr = c.Snapshot().Validation("age")
	assert.True(t, vr.IsValid)
	assert.Empty(t, vr.ErrorMessage)
}

func TestReRegisterUnchangedIsIdempotent(t *testing.T) {
	c := New()
	defer c.Close()
	def := field.Definition[string]{ID: fieldName, InitialValue: "Ada"}
	require.NoError(t, Register(c, def))
	require.NoError(t, Set(c, fieldName, "Grace"))

	notifications := 0
	remove := c.AddListener(func(*Snapshot) { notifications++ })
	defer remove()

	require.NoError(t, Register(c, def))
	assert.Zero(t, notifications)
	v, err := Get(c, fieldName)
	require.NoError(t, err)
	assert.Equal(t, "Grace", v)
}

func TestReRegisterAdoptsInitialWhenPristine(t *testing.T) {
	c := New()
	defer c.Close()
	require.NoError(t, Register(c, field.Definition[string]{ID: fieldName, InitialValue: "Ada"}))

	require.NoError(t, Register(c, field.Definition[string]{ID: fieldName, InitialValue: "Grace"}))
	v, err := Get(c, fieldName)
	require.NoError(t, err)
	assert.Equal(t, "Grace", v)
	assert.False(t, c.Snapshot().IsDirty("name"))
}

func TestReRegisterPreferGlobalNeverReAdopts(t *testing.T) {
	c := New()
	defer c.Close()
	require.NoError(t, Register(c, field.Definition[string]{
		ID: fieldName, InitialValue: "Ada", Adoption: field.AdoptPreferGlobal,
	}))

	require.NoError(t, Register(c, field.Definition[string]{
		ID: fieldName, InitialValue: "Grace", Adoption: field.AdoptPreferGlobal,
	}))
	v, err := Get(c, fieldName)
	require.NoError(t, err)
	assert.Equal(t, "Ada", v)
	// Dirty is computed against the moved baseline.
	assert.True(t, c.Snapshot().IsDirty("name"))
}

func TestReRegisterDirtyFieldMovesBaselineOnly(t *testing.T) {
	c := New()
	defer c.Close()
	require.NoError(t, Register(c, field.Definition[string]{ID: fieldName, InitialValue: "Ada"}))
	require.NoError(t, Set(c, fieldName, "Grace"))

	require.NoError(t, Register(c, field.Definition[string]{ID: fieldName, InitialValue: "Hopper"}))
	v, err := Get(c, fieldName)
	require.NoError(t, err)
	assert.Equal(t, "Grace", v)
	assert.True(t, c.Snapshot().IsDirty("name"))

	// Resetting now lands on the new baseline.
	c.Reset()
	v, err = Get(c, fieldName)
	require.NoError(t, err)
	assert.Equal(t, "Hopper", v)
}

func TestUnregisterRemovesSlot(t *testing.T) {
	c := newNameAgeController(t)
	require.NoError(t, Set(c, fieldName, "Ada"))

	c.Unregister("name")
	_, err := Get(c, fieldName)
	assert.ErrorIs(t, err, ErrFieldNotRegistered)

	snap := c.Snapshot()
	_, ok := snap.Value("name")
	assert.False(t, ok)
	assert.False(t, snap.IsDirty("name"))
	assert.Empty(t, snap.ChangedFields())
}

func TestTransformerRewritesValue(t *testing.T) {
	c := New()
	defer c.Close()
	require.NoError(t, Register(c, field.Definition[string]{
		ID:          fieldName,
		Transformer: func(v string) string { return " " + v },
	}))
	// A transformer changing the value still goes through no-op detection
	// on the transformed result.
	require.NoError(t, Set(c, fieldName, "Ada"))
	v, err := Get(c, fieldName)
	require.NoError(t, err)
	assert.Equal(t, " Ada", v)
}
