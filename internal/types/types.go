package wztypes

import (
	"fmt"
	"math"

	"github.com/ossyrian/wzdecode/internal/wz"
)

// PropertyType is the type tag carried by every node in a WZ tree.
type PropertyType int

const (
	PropertyNull PropertyType = iota
	PropertyUShort
	PropertyInt
	PropertyLong
	PropertyFloat
	PropertyDouble
	PropertyString
	PropertyVector
	PropertyCanvas
	PropertyConvex
	PropertySound
	PropertyUOL
	PropertySub
	PropertyDirectory
	PropertyImage
)

func (t PropertyType) String() string {
	switch t {
	case PropertyNull:
		return "Null"
	case PropertyUShort:
		return "UShort"
	case PropertyInt:
		return "Int"
	case PropertyLong:
		return "Long"
	case PropertyFloat:
		return "Float"
	case PropertyDouble:
		return "Double"
	case PropertyString:
		return "String"
	case PropertyVector:
		return "Vector"
	case PropertyCanvas:
		return "Canvas"
	case PropertyConvex:
		return "Convex"
	case PropertySound:
		return "Sound"
	case PropertyUOL:
		return "UOL"
	case PropertySub:
		return "Sub"
	case PropertyDirectory:
		return "Directory"
	case PropertyImage:
		return "Image"
	default:
		return "Unknown"
	}
}

// IsContainer reports whether nodes of this type hold named children rather
// than a scalar value.
func (t PropertyType) IsContainer() bool {
	switch t {
	case PropertySub, PropertyCanvas, PropertyConvex, PropertyDirectory, PropertyImage:
		return true
	default:
		return false
	}
}

// Vector is a Shape2D#Vector2D value.
type Vector struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// Canvas describes an image payload stored in the owning buffer.
// Offset points at the first payload byte; nothing is decoded until asked.
type Canvas struct {
	Width            int32
	Height           int32
	Format           int32
	Format2          byte
	Encrypted        bool
	CompressedSize   int32
	UncompressedSize int32 // 0 when the format or dimensions are unusable
	Offset           int64
}

// PixelFormat returns the combined format selector (Format + Format2).
func (c Canvas) PixelFormat() PixelFormat {
	return PixelFormat(c.Format + int32(c.Format2))
}

// PixelDataSize returns the decoded pixel byte count for a canvas of the
// given dimensions and combined format, or 0 when the format is unsupported.
// Negative dimensions and sizes that do not fit in an int32 are rejected.
func PixelDataSize(width, height int32, f PixelFormat) (int32, error) {
	if width < 0 || height < 0 {
		return 0, fmt.Errorf("%w: canvas dimensions %dx%d", wz.ErrMalformedProperty, width, height)
	}

	pixels := int64(width) * int64(height)
	var size int64
	switch f {
	case PixelFormatBGRA4444, PixelFormatRGB565:
		size = pixels * 2
	case PixelFormatBGRA8888:
		size = pixels * 4
	case PixelFormatRGB565Block:
		size = pixels / 128
	default:
		return 0, nil
	}

	if size > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %dx%d %s canvas needs %d bytes",
			wz.ErrMalformedProperty, width, height, f, size)
	}
	return int32(size), nil
}

// Sound describes an audio payload stored in the owning buffer.
// The wave format fields are zero unless the record carried a
// WAVEFORMATEX block.
type Sound struct {
	DurationMs     int32
	CompressedSize int32
	Offset         int64

	FormatTag      uint16
	Channels       uint16
	SampleRate     int32
	AvgBytesPerSec int32
	BlockAlign     uint16
	BitsPerSample  uint16
}

// Wave format tags.
const (
	WaveFormatPCM uint16 = 0x0001
	WaveFormatMP3 uint16 = 0x0055
)

// PixelFormat is the combined canvas format selector.
type PixelFormat int32

const (
	PixelFormatBGRA4444    PixelFormat = 0x1
	PixelFormatBGRA8888    PixelFormat = 0x2
	PixelFormatDXT3        PixelFormat = 0x3
	PixelFormatARGB1555    PixelFormat = 0x101
	PixelFormatRGB565      PixelFormat = 0x201
	PixelFormatRGB565Block PixelFormat = 0x205
	PixelFormatDXT3Variant PixelFormat = 0x402
	PixelFormatDXT5        PixelFormat = 0x802
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatBGRA4444:
		return "BGRA4444"
	case PixelFormatBGRA8888:
		return "BGRA8888"
	case PixelFormatDXT3:
		return "DXT3"
	case PixelFormatARGB1555:
		return "ARGB1555"
	case PixelFormatRGB565:
		return "RGB565"
	case PixelFormatRGB565Block:
		return "RGB565_Block"
	case PixelFormatDXT3Variant:
		return "DXT3_Variant"
	case PixelFormatDXT5:
		return "DXT5"
	default:
		return "Unknown"
	}
}
