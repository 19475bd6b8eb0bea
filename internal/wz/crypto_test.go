package wz_test

import (
	"crypto/aes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossyrian/wzdecode/internal/wz"
)

func TestKeystream_FirstBlock(t *testing.T) {
	table := wz.DefaultTable()
	block, err := aes.NewCipher(table[:])
	require.NoError(t, err)

	var in, want [16]byte
	for i := range in {
		in[i] = testNonce[i%4]
	}
	block.Encrypt(want[:], in[:])

	k := wz.NewKeystream(testNonce, table)
	assert.Equal(t, want[:], k.Prefix(16))

	// the second block chains off the first
	var second [16]byte
	block.Encrypt(second[:], want[:])
	assert.Equal(t, second[:], k.Prefix(32)[16:])
}

func TestKeystream_Deterministic(t *testing.T) {
	a := wz.NewKeystream(testNonce, wz.DefaultTable())
	b := wz.NewKeystream(testNonce, wz.DefaultTable())

	for _, i := range []int{0, 1, 15, 16, 4095, 4096, 9000} {
		first := a.ByteAt(i)
		assert.Equal(t, first, a.ByteAt(i), "index %d", i)
		assert.Equal(t, first, b.ByteAt(i), "index %d", i)
	}
	assert.Equal(t, a.Prefix(9001), b.Prefix(9001))
}

func TestKeystream_GrowsMonotonically(t *testing.T) {
	k := wz.NewKeystream(testNonce, wz.DefaultTable())
	assert.Equal(t, 0, k.Materialized())

	k.ByteAt(10)
	assert.Equal(t, wz.KeyBatchSize, k.Materialized())

	before := append([]byte(nil), k.Prefix(wz.KeyBatchSize)...)
	k.ByteAt(wz.KeyBatchSize * 2)
	assert.Equal(t, wz.KeyBatchSize*3, k.Materialized())
	assert.Equal(t, before, k.Prefix(wz.KeyBatchSize))

	k.ByteAt(0)
	assert.Equal(t, wz.KeyBatchSize*3, k.Materialized())
}

func TestKeystream_ZeroNonce(t *testing.T) {
	k := wz.NewKeystream([4]byte{}, wz.DefaultTable())
	assert.Equal(t, make([]byte, 64), k.Prefix(64))
}

func TestKeystream_NoncesDiffer(t *testing.T) {
	gms, err := wz.NonceForRegion("gms")
	require.NoError(t, err)
	kms, err := wz.NonceForRegion("kms")
	require.NoError(t, err)

	a := wz.NewKeystream(gms, wz.DefaultTable())
	b := wz.NewKeystream(kms, wz.DefaultTable())
	assert.NotEqual(t, a.Prefix(16), b.Prefix(16))
}

func TestNonceForRegion_Unknown(t *testing.T) {
	_, err := wz.NonceForRegion("xyz")
	assert.Error(t, err)
}

func TestDefaultTable(t *testing.T) {
	table := wz.DefaultTable()
	assert.Equal(t, byte(0x13), table[0])
	assert.Equal(t, byte(0x08), table[4])
	assert.Equal(t, byte(0x52), table[28])
	assert.Equal(t, byte(0x00), table[1])
}

func TestVersionHash(t *testing.T) {
	assert.Equal(t, uint32(1876), wz.VersionHash("83"))
	// v83 clients store 0xAC in their version header
	assert.Equal(t, uint16(0xAC), wz.ObfuscateVersionHash(wz.VersionHash("83")))
}

func TestOffsetRoundTrip(t *testing.T) {
	hash := wz.VersionHash("176")
	for _, pos := range []uint32{60, 61, 1000, 123456} {
		for _, off := range []uint32{0, 60, 999, 1 << 30} {
			enc := wz.EncryptOffset(pos, 60, hash, off)
			assert.Equal(t, off, wz.DecryptOffset(pos, 60, hash, enc))
		}
	}
}
