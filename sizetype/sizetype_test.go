package sizetype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinimal(t *testing.T) {
	cases := []struct {
		v    uint64
		want SizeType
	}{
		{0, U8},
		{255, U8},
		{256, U16},
		{65535, U16},
		{65536, U32},
		{1 << 40, U64},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Minimal(c.v), "Minimal(%d)", c.v)
	}
}

func TestCursorConsumeSizeRoundTrip(t *testing.T) {
	for _, kind := range []SizeType{U8, U16, U32, U64} {
		buf := make([]byte, kind.Bytes())
		require.NoError(t, PutSize(buf, kind, kind.Max()))
		c := NewCursor(buf)
		v, err := c.ConsumeSize(kind)
		require.NoError(t, err)
		assert.Equal(t, kind.Max(), v)
		assert.Equal(t, 0, c.Remaining())
	}
}

func TestPutSizeOverflow(t *testing.T) {
	buf := make([]byte, 1)
	err := PutSize(buf, U8, 256)
	require.Error(t, err)
}

func TestCursorConsumeOutOfBounds(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	_, err := c.Consume(4)
	require.Error(t, err)
}

func TestAppendSize(t *testing.T) {
	var buf []byte
	buf, err := AppendSize(buf, U16, 42)
	require.NoError(t, err)
	c := NewCursor(buf)
	v, err := c.ConsumeSize(U16)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)
}
