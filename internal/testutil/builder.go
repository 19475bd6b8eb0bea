// Package testutil builds WZ byte fixtures for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf16"

	"github.com/klauspost/compress/zlib"

	"github.com/ossyrian/wzdecode/internal/wz"
)

// Builder writes WZ primitives, encrypting strings with a keystream.
type Builder struct {
	buf bytes.Buffer
	key *wz.Keystream
}

// NewBuilder returns a Builder that encrypts strings with key.
func NewBuilder(key *wz.Keystream) *Builder {
	return &Builder{key: key}
}

func (b *Builder) Len() int64    { return int64(b.buf.Len()) }
func (b *Builder) Bytes() []byte { return b.buf.Bytes() }

func (b *Builder) Byte(v byte) *Builder {
	b.buf.WriteByte(v)
	return b
}

func (b *Builder) Raw(p []byte) *Builder {
	b.buf.Write(p)
	return b
}

func (b *Builder) Uint16(v uint16) *Builder {
	b.buf.Write(binary.LittleEndian.AppendUint16(nil, v))
	return b
}

func (b *Builder) Uint32(v uint32) *Builder {
	b.buf.Write(binary.LittleEndian.AppendUint32(nil, v))
	return b
}

func (b *Builder) Int32(v int32) *Builder {
	return b.Uint32(uint32(v))
}

func (b *Builder) Uint64(v uint64) *Builder {
	b.buf.Write(binary.LittleEndian.AppendUint64(nil, v))
	return b
}

func (b *Builder) Float32(v float32) *Builder {
	return b.Uint32(math.Float32bits(v))
}

func (b *Builder) Float64(v float64) *Builder {
	return b.Uint64(math.Float64bits(v))
}

// CompressedInt writes v in the 1-byte form when it fits, else 5 bytes.
func (b *Builder) CompressedInt(v int32) *Builder {
	if v > math.MinInt8 && v <= math.MaxInt8 {
		return b.Byte(byte(int8(v)))
	}
	return b.Byte(0x80).Int32(v)
}

// String writes an encrypted string, single-byte when s is ASCII and
// UTF-16 otherwise.
func (b *Builder) String(s string) *Builder {
	if s == "" {
		return b.Byte(0)
	}

	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}

	if ascii {
		n := len(s)
		if n < 128 {
			b.Byte(byte(int8(-n)))
		} else {
			b.Byte(0x80).Int32(int32(n))
		}
		key := b.key.Prefix(n)
		mask := byte(0xAA)
		for i := 0; i < n; i++ {
			b.Byte(s[i] ^ mask ^ key[i])
			mask++
		}
		return b
	}

	units := utf16.Encode([]rune(s))
	n := len(units)
	if n < 127 {
		b.Byte(byte(n))
	} else {
		b.Byte(127).Int32(int32(n))
	}
	key := b.key.Prefix(n * 2)
	mask := uint16(0xAAAA)
	for i, u := range units {
		k := uint16(key[i*2+1])<<8 | uint16(key[i*2])
		b.Uint16(u ^ mask ^ k)
		mask++
	}
	return b
}

// Block writes an inline string block.
func (b *Builder) Block(s string) *Builder {
	return b.Byte(wz.StringBlockImageInline).String(s)
}

// BlockRef writes a string block pointing rel bytes past the image base.
func (b *Builder) BlockRef(rel int32) *Builder {
	return b.Byte(wz.StringBlockImageOffset).Int32(rel)
}

// ImageHeader writes the "Property" header that opens every image.
func (b *Builder) ImageHeader() *Builder {
	return b.Block(wz.ImageHeaderName).Uint16(0)
}

// PatchUint32 overwrites 4 bytes at an absolute offset.
func (b *Builder) PatchUint32(at int64, v uint32) {
	binary.LittleEndian.PutUint32(b.buf.Bytes()[at:], v)
}

// Extended writes the header of a tag 9 record named name, calls body to
// write the record, then patches the stored length.
func (b *Builder) Extended(name string, body func(*Builder)) *Builder {
	b.Block(name).Byte(0x09)
	at := b.Len()
	b.Uint32(0)
	body(b)
	b.PatchUint32(at, uint32(b.Len()-at-4))
	return b
}

// Deflate returns data as a zlib stream.
func Deflate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}
