package oidl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTripData(t *testing.T) {
	f := &DLFile{
		Settings: Settings{DataKind: Data},
		Entries:  [][]byte{[]byte("hello"), {}, []byte("a longer entry than the rest")},
	}
	buf, err := Write(f)
	require.NoError(t, err)

	got, n, err := Read(buf, nil, false)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, f.Entries, got.Entries)
	assert.Equal(t, Data, got.Settings.DataKind)
}

func TestWriteReadRoundTripASCII(t *testing.T) {
	f := &DLFile{
		Settings: Settings{DataKind: ASCII},
		Entries:  [][]byte{[]byte("one"), []byte("two"), []byte("three")},
	}
	buf, err := Write(f)
	require.NoError(t, err)

	got, _, err := Read(buf, nil, false)
	require.NoError(t, err)
	assert.Equal(t, ASCII, got.Settings.DataKind)
	assert.Equal(t, "one", got.String(0))
}

func TestWriteRejectsNonASCIIWhenASCIIKind(t *testing.T) {
	f := &DLFile{
		Settings: Settings{DataKind: ASCII},
		Entries:  [][]byte{{0xFF}},
	}
	_, err := Write(f)
	require.Error(t, err)
}

func TestWriteReadRoundTripUTF8(t *testing.T) {
	f := &DLFile{
		Settings: Settings{DataKind: UTF8},
		Entries:  [][]byte{[]byte("héllo"), []byte("wörld")},
	}
	buf, err := Write(f)
	require.NoError(t, err)

	got, _, err := Read(buf, nil, false)
	require.NoError(t, err)
	assert.Equal(t, UTF8, got.Settings.DataKind)
	assert.Equal(t, "héllo", got.String(0))
}

func TestWriteReadRoundTripEncrypted(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	f := &DLFile{
		Settings: Settings{Encryption: EncryptionAES256GCM, EncryptionKey: key, DataKind: Data},
		Entries:  [][]byte{[]byte("secret"), []byte("more secret data here")},
	}
	buf, err := Write(f)
	require.NoError(t, err)

	got, _, err := Read(buf, key, false)
	require.NoError(t, err)
	assert.Equal(t, f.Entries, got.Entries)
}

func TestReadEncryptedWrongKeyFails(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	f := &DLFile{
		Settings: Settings{Encryption: EncryptionAES256GCM, EncryptionKey: key, DataKind: Data},
		Entries:  [][]byte{[]byte("secret")},
	}
	buf, err := Write(f)
	require.NoError(t, err)

	wrongKey := make([]byte, 32)
	_, _, err = Read(buf, wrongKey, false)
	require.Error(t, err)
}

func TestReadEncryptedMissingKeyFails(t *testing.T) {
	key := make([]byte, 32)
	f := &DLFile{
		Settings: Settings{Encryption: EncryptionAES256GCM, EncryptionKey: key, DataKind: Data},
		Entries:  [][]byte{[]byte("secret")},
	}
	buf, err := Write(f)
	require.NoError(t, err)

	_, _, err = Read(buf, nil, false)
	require.Error(t, err)
}

func TestReadRejectsTamperedCiphertext(t *testing.T) {
	key := make([]byte, 32)
	f := &DLFile{
		Settings: Settings{Encryption: EncryptionAES256GCM, EncryptionKey: key, DataKind: Data},
		Entries:  [][]byte{[]byte("secret payload")},
	}
	buf, err := Write(f)
	require.NoError(t, err)

	buf[len(buf)-1] ^= 0xFF
	_, _, err = Read(buf, key, false)
	require.Error(t, err)
}

func TestReadRejectsBadMagic(t *testing.T) {
	_, _, err := Read([]byte{0, 0, 0, 0, 0, 0, 0, 0}, nil, false)
	require.Error(t, err)
}

func TestReadRejectsTrailingData(t *testing.T) {
	f := &DLFile{Settings: Settings{DataKind: Data}, Entries: [][]byte{[]byte("x")}}
	buf, err := Write(f)
	require.NoError(t, err)
	buf = append(buf, 0xAB)

	_, _, err = Read(buf, nil, false)
	require.Error(t, err)
}

func TestEmbeddedSubFileRoundTrip(t *testing.T) {
	f := &DLFile{
		Settings: Settings{DataKind: ASCII, HideMagicNumber: true},
		Entries:  [][]byte{[]byte("embedded"), []byte("names")},
	}
	buf, err := Write(f)
	require.NoError(t, err)

	outer := append(buf, []byte("trailing owner data")...)
	got, n, err := Read(outer, nil, true)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, f.Entries, got.Entries)
}

func TestCombineAppendsEntries(t *testing.T) {
	a := &DLFile{Settings: Settings{DataKind: Data}, Entries: [][]byte{[]byte("a")}}
	b := &DLFile{Settings: Settings{DataKind: Data}, Entries: [][]byte{[]byte("b")}}

	c, err := Combine(a, b)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, c.Entries)
}

func TestCombineRejectsSettingsMismatch(t *testing.T) {
	a := &DLFile{Settings: Settings{DataKind: Data}}
	b := &DLFile{Settings: Settings{DataKind: ASCII}}

	_, err := Combine(a, b)
	require.Error(t, err)
}

func TestMinimalSizeTypeSelection(t *testing.T) {
	many := make([][]byte, 300)
	for i := range many {
		many[i] = []byte{byte(i)}
	}
	f := &DLFile{Settings: Settings{DataKind: Data}, Entries: many}
	buf, err := Write(f)
	require.NoError(t, err)

	// sizeTypes byte follows the magic and version/flags/type bytes: 300
	// entries need a U16 count, 1-byte entries need only U8 lengths.
	sizeTypes := buf[7]
	assert.Equal(t, byte(1), sizeTypes&3, "count SizeType should be U16")
	assert.Equal(t, byte(0), (sizeTypes>>4)&3, "entry SizeType should be U8")

	got, _, err := Read(buf, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 300, got.EntryCount())
}

func TestHashOnlyCRC32CAndSHA256(t *testing.T) {
	payload := []byte("the quick brown fox")
	crc := HashOnly(payload, false)
	assert.Len(t, crc, 4)

	sha := HashOnly(payload, true)
	assert.Len(t, sha, 32)
}
