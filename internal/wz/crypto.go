package wz

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"math/bits"
)

const (
	// OffsetConstant is used in WZ offset decryption.
	OffsetConstant = 0x581C3F6D

	// KeyBatchSize is the size in bytes of each keystream expansion batch.
	KeyBatchSize = 4096
)

// UserKey is the 128-byte AES constant shipped with the game client.
// Only every 16th byte is significant; see DefaultTable.
var UserKey = [128]byte{
	0x13, 0x00, 0x00, 0x00, 0x52, 0x00, 0x00, 0x00, 0x2A, 0x00, 0x00, 0x00, 0x5B, 0x00, 0x00, 0x00,
	0x08, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x60, 0x00, 0x00, 0x00,
	0x06, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x43, 0x00, 0x00, 0x00, 0x0F, 0x00, 0x00, 0x00,
	0xB4, 0x00, 0x00, 0x00, 0x4B, 0x00, 0x00, 0x00, 0x35, 0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00,
	0x1B, 0x00, 0x00, 0x00, 0x0A, 0x00, 0x00, 0x00, 0x5F, 0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00,
	0x0F, 0x00, 0x00, 0x00, 0x50, 0x00, 0x00, 0x00, 0x0C, 0x00, 0x00, 0x00, 0x1B, 0x00, 0x00, 0x00,
	0x33, 0x00, 0x00, 0x00, 0x55, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00,
	0x52, 0x00, 0x00, 0x00, 0xDE, 0x00, 0x00, 0x00, 0xC7, 0x00, 0x00, 0x00, 0x1E, 0x00, 0x00, 0x00,
}

// DefaultTable returns the 32-byte AES key table derived from UserKey.
// Every 16th byte of UserKey lands at positions 0, 4, 8, ... 28; the rest
// stay zero.
func DefaultTable() [32]byte {
	var table [32]byte
	for i := 0; i < len(UserKey); i += 16 {
		table[i/4] = UserKey[i]
	}
	return table
}

// Keystream is the XOR keystream used to decrypt strings and encrypted
// canvas blocks.
//
// The stream is AES-256 in a chained ECB construction:
//  1. The first input block is the 4-byte nonce repeated four times.
//  2. Each 16-byte output block is the next 16 bytes of the stream and
//     also the input for the following block.
//
// A zero nonce yields an all-zero stream (classic/BMS data).
//
// The stream is materialized lazily in KeyBatchSize chunks and never
// recomputed. A Keystream is not safe for concurrent use.
type Keystream struct {
	nonce [4]byte
	block cipher.Block
	data  []byte
}

// NewKeystream creates a keystream for the given nonce and key table.
func NewKeystream(nonce [4]byte, table [32]byte) *Keystream {
	block, err := aes.NewCipher(table[:])
	if err != nil {
		// a 32-byte key is always valid
		panic(fmt.Sprintf("failed to create AES cipher: %v", err))
	}

	return &Keystream{
		nonce: nonce,
		block: block,
	}
}

// Nonce returns the nonce the stream was seeded with.
func (k *Keystream) Nonce() [4]byte {
	return k.nonce
}

// ByteAt returns the keystream byte at index.
func (k *Keystream) ByteAt(index int) byte {
	k.expandTo(index + 1)
	return k.data[index]
}

// Prefix returns the first n keystream bytes. The returned slice aliases
// internal state and must not be modified.
func (k *Keystream) Prefix(n int) []byte {
	k.expandTo(n)
	return k.data[:n]
}

// Materialized reports how many bytes of the stream have been computed.
func (k *Keystream) Materialized() int {
	return len(k.data)
}

// expandTo grows the materialized prefix to at least size bytes.
func (k *Keystream) expandTo(size int) {
	if len(k.data) >= size {
		return
	}

	newSize := ((size + KeyBatchSize - 1) / KeyBatchSize) * KeyBatchSize
	newData := make([]byte, newSize)
	start := copy(newData, k.data)

	if k.nonce == [4]byte{} {
		k.data = newData
		return
	}

	var input [16]byte
	for i := start; i < newSize; i += 16 {
		if i == 0 {
			for j := range input {
				input[j] = k.nonce[j%4]
			}
		} else {
			copy(input[:], newData[i-16:i])
		}
		k.block.Encrypt(newData[i:i+16], input[:])
	}

	k.data = newData
}

func rotateLeft(x uint32, n byte) uint32 {
	return bits.RotateLeft32(x, int(n&0x1F))
}

// DecryptOffset decrypts a directory entry offset.
//
//  1. (currentPos - bodyOffset) XOR 0xFFFFFFFF
//  2. multiply by the version hash
//  3. subtract OffsetConstant
//  4. rotate left by (result & 0x1F)
//  5. XOR with the stored value
//  6. add bodyOffset * 2
//
// currentPos is the position of the stored 4 bytes, before reading them.
func DecryptOffset(currentPos, bodyOffset, versionHash, encryptedOffset uint32) uint32 {
	offset := (currentPos - bodyOffset) ^ 0xFFFFFFFF
	offset *= versionHash
	offset -= OffsetConstant
	offset = rotateLeft(offset, byte(offset&0x1F))
	offset ^= encryptedOffset
	offset += bodyOffset * 2
	return offset
}

// EncryptOffset is the inverse of DecryptOffset.
func EncryptOffset(currentPos, bodyOffset, versionHash, offset uint32) uint32 {
	mask := DecryptOffset(currentPos, bodyOffset, versionHash, 0) - bodyOffset*2
	return (offset - bodyOffset*2) ^ mask
}

// VersionHash calculates the version hash from a patch version string:
// hash = hash*32 + ch + 1 for every character.
func VersionHash(version string) uint32 {
	hash := uint32(0)
	for _, ch := range version {
		hash = (hash * 32) + uint32(ch) + 1
	}
	return hash
}

// ObfuscateVersionHash folds a version hash into the 2-byte value stored in
// a package's version header: the NOT of all four bytes XORed together.
func ObfuscateVersionHash(hash uint32) uint16 {
	var folded byte
	for ; hash != 0; hash >>= 8 {
		folded ^= byte(hash)
	}
	return uint16(^folded)
}
