package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFields map[string]any

func (f fakeFields) Field(key string) (any, bool) {
	v, ok := f[key]
	return v, ok
}

func TestSafeAssert(t *testing.T) {
	v, ok := SafeAssert[string](any("hello"))
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	n, ok := SafeAssert[int](any("hello"))
	assert.False(t, ok)
	assert.Zero(t, n)
}

func TestGetMapField(t *testing.T) {
	m := map[string]any{"name": "Ana", "count": 3}

	name, err := GetMapField[string](m, "name")
	require.NoError(t, err)
	assert.Equal(t, "Ana", name)

	_, err = GetMapField[string](m, "missing")
	assert.Error(t, err)

	_, err = GetMapField[string](m, "count")
	assert.Error(t, err)

	assert.Equal(t, 3, GetMapFieldOr(m, "count", 0))
	assert.Equal(t, 7, GetMapFieldOr(m, "missing", 7))
}

func TestGetField(t *testing.T) {
	fields := fakeFields{"priority": "high", "score": 42}

	priority, ok := GetField[string](fields, "priority")
	require.True(t, ok)
	assert.Equal(t, "high", priority)

	_, ok = GetField[string](fields, "score")
	assert.False(t, ok)

	assert.Equal(t, "normal", GetFieldOr[string](fields, "missing", "normal"))
}
