// Package aesgcm implements the authenticated-encryption envelope shared by
// every oiXX container's encryption byte (spec §4.4): AES-256-GCM with a
// 96-bit IV and a 128-bit tag, where the plaintext header is always the
// additional authenticated data.
//
// This is built directly on stdlib crypto/aes + crypto/cipher +
// crypto/rand. No package in this corpus wraps AES-GCM in a third-party
// AEAD library -- other_examples' qwick.go.go drives crypto/aes and
// crypto/cipher directly (by way of AES-CTR + a separate Poly1305 MAC) with
// crypto/rand for nonce generation, the same stdlib-direct idiom this
// package follows for GCM. See DESIGN.md for why stdlib is the grounded
// choice here rather than a gap.
package aesgcm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/oxc3-go/core3/oxerr"
)

// KeySize is the required AES-256 key length in bytes.
const KeySize = 32

// IVSize is the GCM nonce length in bytes (96 bits).
const IVSize = 12

// TagSize is the GCM authentication tag length in bytes (128 bits).
const TagSize = 16

// Flags select optional generation behavior for Encrypt.
type Flags uint8

const (
	// GenerateIV has Encrypt fill iv with cryptographically secure random
	// bytes before use; the caller must never reuse a (key, iv) pair, so
	// this is the default expected mode for fresh writes.
	GenerateIV Flags = 1 << iota
	// GenerateKey has Encrypt fill key with cryptographically secure
	// random bytes before use.
	GenerateKey
)

const opEncrypt = "aesgcm.Encrypt"
const opDecrypt = "aesgcm.Decrypt"

// Encrypt never mutates plaintext; it returns a freshly allocated
// ciphertext the same length as plaintext,
// plus the tag written into tagOut. aad is authenticated but not encrypted
// (the plaintext header, per spec). key must be KeySize bytes; iv must be
// IVSize bytes (if GenerateIV is not set) or will be overwritten with
// IVSize fresh random bytes (if it is).
func Encrypt(plaintext, aad, key, iv []byte, tagOut []byte, flags Flags) (ciphertext []byte, err error) {
	if flags&GenerateKey != 0 {
		if len(key) != KeySize {
			return nil, oxerr.InvalidParameter(opEncrypt, "key", "key buffer must be 32 bytes to receive a generated key")
		}
		if _, err := rand.Read(key); err != nil {
			return nil, oxerr.New(oxerr.KindInvalidState, opEncrypt, "key", "failed to generate key: "+err.Error())
		}
	}
	if len(key) != KeySize {
		return nil, oxerr.InvalidParameter(opEncrypt, "key", "AES-256 key must be exactly 32 bytes")
	}
	if flags&GenerateIV != 0 {
		if len(iv) != IVSize {
			return nil, oxerr.InvalidParameter(opEncrypt, "iv", "iv buffer must be 12 bytes to receive a generated IV")
		}
		if _, err := rand.Read(iv); err != nil {
			return nil, oxerr.New(oxerr.KindInvalidState, opEncrypt, "iv", "failed to generate IV: "+err.Error())
		}
	}
	if len(iv) != IVSize {
		return nil, oxerr.InvalidParameter(opEncrypt, "iv", "IV must be exactly 12 bytes")
	}
	if len(tagOut) != TagSize {
		return nil, oxerr.InvalidParameter(opEncrypt, "tagOut", "tag buffer must be exactly 16 bytes")
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, iv, plaintext, aad)
	ctLen := len(sealed) - TagSize
	copy(tagOut, sealed[ctLen:])
	return sealed[:ctLen], nil
}

// Decrypt verifies tag over (aad || ciphertext) under (key, iv) and returns
// the recovered plaintext. Fails with Unauthorized if the tag does not
// verify, if key is nil while the caller expected encryption, or vice
// versa -- the caller is responsible for passing key == nil only when it
// has already established the container declares no encryption.
func Decrypt(ciphertext, aad, key, iv, tag []byte) ([]byte, error) {
	if key == nil {
		return nil, oxerr.Unauthorized(opDecrypt, "key", "encryption key required but not provided")
	}
	if len(key) != KeySize {
		return nil, oxerr.InvalidParameter(opDecrypt, "key", "AES-256 key must be exactly 32 bytes")
	}
	if len(iv) != IVSize {
		return nil, oxerr.InvalidParameter(opDecrypt, "iv", "IV must be exactly 12 bytes")
	}
	if len(tag) != TagSize {
		return nil, oxerr.InvalidParameter(opDecrypt, "tag", "tag must be exactly 16 bytes")
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, oxerr.Unauthorized(opDecrypt, "tag", "AEAD authentication failed")
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, oxerr.New(oxerr.KindInvalidState, "aesgcm.newGCM", "key", err.Error())
	}
	gcm, err := cipher.NewGCMWithTagSize(block, TagSize)
	if err != nil {
		return nil, oxerr.New(oxerr.KindInvalidState, "aesgcm.newGCM", "tagSize", err.Error())
	}
	return gcm, nil
}

// ZeroKey overwrites key with zeros. Every code path that reads a key into
// a stack copy must call this before returning on every exit, per spec §5.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
