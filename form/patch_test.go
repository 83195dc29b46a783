package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/formstate/field"
)

func TestApplyPatchReplaceAndAdd(t *testing.T) {
	c := newNameAgeController(t)
	require.NoError(t, Set(c, fieldName, "Ada"))

	res, err := c.ApplyPatch([]PatchOperation{
		{Op: "replace", Path: "/name", Value: "Grace"},
		{Op: "replace", Path: "/age", Value: 30},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"name", "age"}, res.Updated)

	v, _ := Get(c, fieldName)
	assert.Equal(t, "Grace", v)
	// JSON numbers land back as the registered int type.
	age, err := Get(c, fieldAge)
	require.NoError(t, err)
	assert.Equal(t, 30, age)
}

func TestApplyPatchNestedPath(t *testing.T) {
	c := New()
	defer c.Close()
	address := field.NewID[map[string]string]("address")
	require.NoError(t, Register(c, field.Definition[map[string]string]{
		ID:           address,
		InitialValue: map[string]string{"city": "London"},
	}))

	_, err := c.ApplyPatch([]PatchOperation{
		{Op: "replace", Path: "/address/city", Value: "Paris"},
		{Op: "add", Path: "/address/zip", Value: "75001"},
	})
	require.NoError(t, err)

	v, err := Get(c, address)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"city": "Paris", "zip": "75001"}, v)
}

func TestApplyPatchRemoveMissingIsDropped(t *testing.T) {
	c := New()
	defer c.Close()
	address := field.NewID[map[string]string]("address")
	require.NoError(t, Register(c, field.Definition[map[string]string]{
		ID:           address,
		InitialValue: map[string]string{"city": "London"},
	}))

	// A strict RFC6902 apply would fail on the missing zip.
	_, err := c.ApplyPatch([]PatchOperation{
		{Op: "remove", Path: "/address/zip"},
		{Op: "remove", Path: "/address/city"},
	})
	require.NoError(t, err)

	v, err := Get(c, address)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestApplyPatchUnregisteredFieldFailsWhole(t *testing.T) {
	c := newNameAgeController(t)

	_, err := c.ApplyPatch([]PatchOperation{
		{Op: "replace", Path: "/name", Value: "Ada"},
		{Op: "replace", Path: "/unknown", Value: 1},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFieldNotRegistered)

	// Nothing was applied.
	v, _ := Get(c, fieldName)
	assert.Empty(t, v)
}

func TestApplyPatchEmpty(t *testing.T) {
	c := newNameAgeController(t)
	res, err := c.ApplyPatch(nil)
	require.NoError(t, err)
	assert.Empty(t, res.Updated)
}

func TestApplyPatchSingleNotification(t *testing.T) {
	c := newNameAgeController(t)

	notifications := 0
	remove := c.AddListener(func(*Snapshot) { notifications++ })
	defer remove()

	_, err := c.ApplyPatch([]PatchOperation{
		{Op: "replace", Path: "/name", Value: "Ada"},
		{Op: "replace", Path: "/age", Value: 30},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, notifications)
}

func TestFormatSummary(t *testing.T) {
	c := New()
	defer c.Close()
	require.NoError(t, Register(c, field.Definition[string]{ID: fieldName, InitialValue: "Ada"}))
	require.NoError(t, Register(c, field.Definition[int]{
		ID: fieldAge,
		Validator: func(v int) string {
			if v < 18 {
				return "too young"
			}
			return ""
		},
	}))
	require.NoError(t, Set(c, fieldAge, 5))

	out := c.FormatSummary()
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "too young")
	assert.Contains(t, out, "|")
}
