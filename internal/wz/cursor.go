package wz

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"
)

// Cursor reads WZ primitives from an in-memory buffer.
// It never copies or owns the buffer; strings are decrypted with the
// keystream supplied at construction.
type Cursor struct {
	data []byte
	pos  int64
	key  *Keystream
}

// NewCursor returns a cursor positioned at the start of data.
func NewCursor(data []byte, key *Keystream) *Cursor {
	return &Cursor{data: data, key: key}
}

// Len returns the size of the underlying buffer.
func (c *Cursor) Len() int64 { return int64(len(c.data)) }

// Position returns the absolute read position.
func (c *Cursor) Position() int64 { return c.pos }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int64 { return int64(len(c.data)) - c.pos }

// Seek moves to an absolute position. The end of the buffer is a valid
// position; anything beyond it is not.
func (c *Cursor) Seek(pos int64) error {
	if pos < 0 || pos > int64(len(c.data)) {
		return fmt.Errorf("%w: seek to %d in buffer of %d bytes", ErrOutOfRange, pos, len(c.data))
	}
	c.pos = pos
	return nil
}

// Skip advances the position by n bytes.
func (c *Cursor) Skip(n int64) error {
	if n < 0 || n > c.Remaining() {
		return fmt.Errorf("%w: skip %d bytes at offset %d", ErrTruncatedInput, n, c.pos)
	}
	c.pos += n
	return nil
}

// take returns the next n bytes without copying and advances past them.
func (c *Cursor) take(n int64) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrTruncatedInput, n, c.pos, c.Remaining())
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadBytes returns a copy of the next n bytes.
func (c *Cursor) ReadBytes(n int64) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ReadByte reads a single byte.
func (c *Cursor) ReadByte() (byte, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt8 reads a signed byte.
func (c *Cursor) ReadInt8() (int8, error) {
	b, err := c.ReadByte()
	return int8(b), err
}

// ReadUint16 reads a little-endian uint16.
func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint32 reads a little-endian uint32.
func (c *Cursor) ReadUint32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadInt32 reads a little-endian int32.
func (c *Cursor) ReadInt32() (int32, error) {
	v, err := c.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a little-endian uint64.
func (c *Cursor) ReadUint64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadFloat32 reads a little-endian IEEE 754 float32.
func (c *Cursor) ReadFloat32() (float32, error) {
	v, err := c.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadFloat64 reads a little-endian IEEE 754 float64.
func (c *Cursor) ReadFloat64() (float64, error) {
	v, err := c.ReadUint64()
	return math.Float64frombits(v), err
}

// PeekUint16 reads a little-endian uint16 without advancing.
func (c *Cursor) PeekUint16() (uint16, error) {
	if c.Remaining() < 2 {
		return 0, fmt.Errorf("%w: need 2 bytes at offset %d, have %d",
			ErrTruncatedInput, c.pos, c.Remaining())
	}
	return binary.LittleEndian.Uint16(c.data[c.pos:]), nil
}

// ReadCompressedInt reads a WZ compressed integer.
// The first byte is an int8; unless it is exactly -128 it is the value.
// After -128 the next 4 bytes are a little-endian int32 value.
// The result is widened so the same routine serves 32- and 64-bit fields.
func (c *Cursor) ReadCompressedInt() (int64, error) {
	sb, err := c.ReadInt8()
	if err != nil {
		return 0, fmt.Errorf("failed to read compressed int marker: %w", err)
	}

	if sb == compressedIntSentinel {
		v, err := c.ReadInt32()
		if err != nil {
			return 0, fmt.Errorf("failed to read compressed int value: %w", err)
		}
		return int64(v), nil
	}

	return int64(sb), nil
}

// ReadString reads an encrypted WZ string.
//
// Length indicator (1 byte, int8):
//   - 0: empty string
//   - 1 to 126: UTF-16LE string, this many code units
//   - 127: UTF-16LE string, int32 length follows
//   - -1 to -127: single-byte string, absolute value is the length
//   - -128: single-byte string, int32 length follows
//
// UTF-16 units are XORed with an incrementing mask starting at 0xAAAA and
// with keystream bytes 2i, 2i+1; single-byte strings with a mask starting
// at 0xAA and keystream byte i.
func (c *Cursor) ReadString() (string, error) {
	indicator, err := c.ReadInt8()
	if err != nil {
		return "", fmt.Errorf("failed to read string length indicator: %w", err)
	}

	if indicator == 0 {
		return "", nil
	}

	var length int64
	unicode := indicator > 0

	switch indicator {
	case unicodeLongLengthSentinel, compressedIntSentinel:
		n, err := c.ReadInt32()
		if err != nil {
			return "", fmt.Errorf("failed to read string length: %w", err)
		}
		length = int64(n)
	default:
		length = int64(indicator)
		if length < 0 {
			length = -length
		}
	}

	if length < 0 {
		return "", fmt.Errorf("%w: invalid string length %d at offset %d", ErrMalformedProperty, length, c.pos)
	}

	if unicode {
		raw, err := c.take(length * 2)
		if err != nil {
			return "", fmt.Errorf("failed to read unicode string data: %w", err)
		}
		return c.decryptUnicode(raw), nil
	}

	raw, err := c.take(length)
	if err != nil {
		return "", fmt.Errorf("failed to read ascii string data: %w", err)
	}
	return c.decryptASCII(raw), nil
}

func (c *Cursor) decryptUnicode(data []byte) string {
	units := make([]uint16, len(data)/2)
	key := c.key.Prefix(len(data))
	mask := uint16(0xAAAA)

	for i := range units {
		k := uint16(key[i*2+1])<<8 | uint16(key[i*2])
		units[i] = binary.LittleEndian.Uint16(data[i*2:]) ^ mask ^ k
		mask++
	}

	return string(utf16.Decode(units))
}

func (c *Cursor) decryptASCII(data []byte) string {
	out := make([]byte, len(data))
	key := c.key.Prefix(len(data))
	mask := byte(0xAA)

	for i := range data {
		out[i] = data[i] ^ mask ^ key[i]
		mask++
	}

	return string(out)
}

// ReadStringAt reads an inline string at an absolute offset and restores
// the current position afterwards.
func (c *Cursor) ReadStringAt(offset int64) (string, error) {
	saved := c.pos
	if err := c.Seek(offset); err != nil {
		return "", err
	}
	s, err := c.ReadString()
	c.pos = saved
	if err != nil {
		return "", fmt.Errorf("failed to read string at offset %d: %w", offset, err)
	}
	return s, nil
}

// ReadStringBlock reads a string that is either stored inline or referenced
// by an int32 offset relative to base. Referenced strings are always inline
// at their target.
func (c *Cursor) ReadStringBlock(base int64) (string, error) {
	indicator, err := c.ReadByte()
	if err != nil {
		return "", fmt.Errorf("failed to read string block indicator: %w", err)
	}

	switch indicator {
	case StringBlockInline, StringBlockImageInline:
		return c.ReadString()

	case StringBlockOffset, StringBlockImageOffset:
		rel, err := c.ReadInt32()
		if err != nil {
			return "", fmt.Errorf("failed to read string offset: %w", err)
		}
		return c.ReadStringAt(base + int64(rel))

	default:
		return "", fmt.Errorf("%w: unknown string block indicator 0x%02X at offset %d",
			ErrMalformedProperty, indicator, c.pos-1)
	}
}

// ReadOffset reads and decrypts a 4-byte directory offset.
func (c *Cursor) ReadOffset(bodyOffset, versionHash uint32) (uint32, error) {
	pos := uint32(c.pos)
	enc, err := c.ReadUint32()
	if err != nil {
		return 0, fmt.Errorf("failed to read encrypted offset: %w", err)
	}
	return DecryptOffset(pos, bodyOffset, versionHash, enc), nil
}

// IsImage sniffs for a property-list blob header at the current position:
// a string block reading "Property" followed by a zero uint16. On success
// the cursor is left after the header; otherwise it is not moved.
func (c *Cursor) IsImage(base int64) bool {
	saved := c.pos

	name, err := c.ReadStringBlock(base)
	if err == nil && name == ImageHeaderName {
		if reserved, err := c.ReadUint16(); err == nil && reserved == 0 {
			return true
		}
	}

	c.pos = saved
	return false
}
