package sha256x

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum256EmptyVector(t *testing.T) {
	// Well-known SHA-256 of the empty string.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	got := Sum256(nil)
	assert.Equal(t, want, hex.EncodeToString(got[:]))
}

func TestStreamingMatchesSum256(t *testing.T) {
	data := []byte("oiSH content region to hash")
	want := Sum256(data)

	h := New()
	_, err := h.Write(data[:8])
	assert.NoError(t, err)
	_, err = h.Write(data[8:])
	assert.NoError(t, err)

	got := h.Sum(nil)
	assert.Equal(t, want[:], got)
}
