package aesgcm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, KeySize)
	iv := make([]byte, IVSize)
	tag := make([]byte, TagSize)
	plaintext := []byte("secret")
	aad := []byte("header-aad")

	ct, err := Encrypt(plaintext, aad, key, iv, tag, GenerateIV)
	require.NoError(t, err)
	assert.NotEqual(t, make([]byte, IVSize), iv, "IV should be randomized")

	pt, err := Decrypt(ct, aad, key, iv, tag)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestDecryptFailsOnTamperedCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{0x02}, KeySize)
	iv := make([]byte, IVSize)
	tag := make([]byte, TagSize)
	aad := []byte("aad")

	ct, err := Encrypt([]byte("payload"), aad, key, iv, tag, GenerateIV)
	require.NoError(t, err)

	ct[0] ^= 0xFF
	_, err = Decrypt(ct, aad, key, iv, tag)
	require.Error(t, err)
}

func TestDecryptFailsOnTamperedAAD(t *testing.T) {
	key := bytes.Repeat([]byte{0x03}, KeySize)
	iv := make([]byte, IVSize)
	tag := make([]byte, TagSize)

	ct, err := Encrypt([]byte("payload"), []byte("aad-1"), key, iv, tag, GenerateIV)
	require.NoError(t, err)

	_, err = Decrypt(ct, []byte("aad-2"), key, iv, tag)
	require.Error(t, err)
}

func TestDecryptFailsOnTamperedTag(t *testing.T) {
	key := bytes.Repeat([]byte{0x04}, KeySize)
	iv := make([]byte, IVSize)
	tag := make([]byte, TagSize)

	ct, err := Encrypt([]byte("payload"), []byte("aad"), key, iv, tag, GenerateIV)
	require.NoError(t, err)

	tag[0] ^= 0xFF
	_, err = Decrypt(ct, []byte("aad"), key, iv, tag)
	require.Error(t, err)
}

func TestDecryptFailsOnMissingKey(t *testing.T) {
	_, err := Decrypt([]byte("x"), []byte("aad"), nil, make([]byte, IVSize), make([]byte, TagSize))
	require.Error(t, err)
}

func TestEncryptRejectsBadKeySize(t *testing.T) {
	_, err := Encrypt([]byte("x"), nil, []byte("short"), make([]byte, IVSize), make([]byte, TagSize), 0)
	require.Error(t, err)
}

func TestGenerateKey(t *testing.T) {
	key := make([]byte, KeySize)
	iv := make([]byte, IVSize)
	tag := make([]byte, TagSize)
	_, err := Encrypt([]byte("x"), nil, key, iv, tag, GenerateKey|GenerateIV)
	require.NoError(t, err)
	assert.NotEqual(t, make([]byte, KeySize), key)
}

func TestZeroKey(t *testing.T) {
	key := bytes.Repeat([]byte{0xAB}, KeySize)
	ZeroKey(key)
	assert.Equal(t, make([]byte, KeySize), key)
}
