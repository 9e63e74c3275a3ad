package bitmask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetClearIsSet(t *testing.T) {
	m := NewBits(16)
	require.NoError(t, m.Set(3))
	require.NoError(t, m.Set(10))

	set, err := m.IsSet(3)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = m.IsSet(4)
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, m.Clear(3))
	set, err = m.IsSet(3)
	require.NoError(t, err)
	assert.False(t, set)
}

func TestSetBits(t *testing.T) {
	m := NewBits(8)
	require.NoError(t, m.Set(0))
	require.NoError(t, m.Set(5))
	require.NoError(t, m.Set(7))
	assert.Equal(t, []int{0, 5, 7}, m.SetBits())
	assert.Equal(t, 3, m.PopCount())
}

func TestFromUint32RoundTrip(t *testing.T) {
	m := FromUint32(0xDEADBEEF)
	assert.Equal(t, uint32(0xDEADBEEF), m.ToUint32())
}

func TestSetGrowsBackingStore(t *testing.T) {
	m := NewBits(0)
	require.NoError(t, m.Set(20))
	set, err := m.IsSet(20)
	require.NoError(t, err)
	assert.True(t, set)
}
