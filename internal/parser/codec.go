package parser

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	wztypes "github.com/ossyrian/wzdecode/internal/types"
	"github.com/ossyrian/wzdecode/internal/wz"
)

const (
	soundReservedBytes = 50
	waveFormatMinSize  = 18
	waveHeaderSize     = 44
)

// parseCanvas reads a canvas descriptor and leaves the cursor after the
// payload. Pixels are not decoded.
func parseCanvas(cur *wz.Cursor) (*wztypes.Canvas, error) {
	cv := &wztypes.Canvas{}

	fields := []*int32{&cv.Width, &cv.Height, &cv.Format}
	for _, f := range fields {
		v, err := cur.ReadCompressedInt()
		if err != nil {
			return nil, err
		}
		*f = int32(v)
	}

	format2, err := cur.ReadByte()
	if err != nil {
		return nil, err
	}
	cv.Format2 = format2

	if err := cur.Skip(4); err != nil {
		return nil, err
	}

	// the stored size counts a flag byte that precedes the payload
	size, err := cur.ReadInt32()
	if err != nil {
		return nil, err
	}
	cv.CompressedSize = size - 1
	if cv.CompressedSize < 0 {
		return nil, fmt.Errorf("%w: canvas size %d", wz.ErrMalformedProperty, size)
	}

	if err := cur.Skip(1); err != nil {
		return nil, err
	}
	cv.Offset = cur.Position()

	header, err := cur.PeekUint16()
	if err != nil {
		return nil, err
	}
	if header != wz.ZlibHeaderDefault && header != wz.ZlibHeaderBest {
		cv.Encrypted = true
	}

	// bad dimensions only spoil this payload; ParsedData reports them
	if size, err := wztypes.PixelDataSize(cv.Width, cv.Height, cv.PixelFormat()); err == nil {
		cv.UncompressedSize = size
	}

	if err := cur.Seek(cv.Offset + int64(cv.CompressedSize)); err != nil {
		return nil, err
	}
	return cv, nil
}

// parseSound reads a Sound_DX8 descriptor and leaves the cursor after the
// payload.
func parseSound(cur *wz.Cursor) (*wztypes.Sound, error) {
	s := &wztypes.Sound{}

	if err := cur.Skip(1); err != nil {
		return nil, err
	}

	size, err := cur.ReadCompressedInt()
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: sound size %d", wz.ErrMalformedProperty, size)
	}
	s.CompressedSize = int32(size)

	duration, err := cur.ReadCompressedInt()
	if err != nil {
		return nil, err
	}
	s.DurationMs = int32(duration)

	decl, err := cur.ReadByte()
	if err != nil {
		return nil, err
	}

	// media type GUIDs
	if err := cur.Skip(soundReservedBytes); err != nil {
		return nil, err
	}

	if decl == 2 {
		n, err := cur.ReadCompressedInt()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			format, err := cur.ReadBytes(n)
			if err != nil {
				return nil, fmt.Errorf("failed to read wave format: %w", err)
			}
			if n >= waveFormatMinSize {
				s.FormatTag = binary.LittleEndian.Uint16(format[0:])
				s.Channels = binary.LittleEndian.Uint16(format[2:])
				s.SampleRate = int32(binary.LittleEndian.Uint32(format[4:]))
				s.AvgBytesPerSec = int32(binary.LittleEndian.Uint32(format[8:]))
				s.BlockAlign = binary.LittleEndian.Uint16(format[12:])
				s.BitsPerSample = binary.LittleEndian.Uint16(format[14:])
			}
		}
	}

	s.Offset = cur.Position()
	if err := cur.Seek(s.Offset + size); err != nil {
		return nil, err
	}
	return s, nil
}

// payloadCursor returns a private cursor so payload reads never disturb the
// container's decode position.
func (c *container) payloadCursor(offset int64) (*wz.Cursor, error) {
	cur := wz.NewCursor(c.buf, c.key)
	if err := cur.Seek(offset); err != nil {
		return nil, err
	}
	return cur, nil
}

// RawData returns the stored payload bytes of a Canvas or Sound node,
// verbatim.
func (n Node) RawData() ([]byte, error) {
	e := n.entity()
	switch {
	case e.canvas != nil:
		return n.c.readSpan(e.canvas.Offset, e.canvas.CompressedSize)
	case e.sound != nil:
		return n.c.readSpan(e.sound.Offset, e.sound.CompressedSize)
	default:
		return nil, fmt.Errorf("%w: %s is %s", wz.ErrNotPayload, e.path, e.typ)
	}
}

// ParsedData returns decoded pixel bytes for a Canvas node, or a playable
// stream for a Sound node: PCM gets a RIFF/WAVE header, other formats are
// returned as stored.
func (n Node) ParsedData() ([]byte, error) {
	e := n.entity()
	switch {
	case e.canvas != nil:
		return n.c.canvasPixels(e.canvas)
	case e.sound != nil:
		raw, err := n.c.readSpan(e.sound.Offset, e.sound.CompressedSize)
		if err != nil {
			return nil, err
		}
		if e.sound.FormatTag != wztypes.WaveFormatPCM {
			return raw, nil
		}
		return waveFile(e.sound, raw), nil
	default:
		return nil, fmt.Errorf("%w: %s is %s", wz.ErrNotPayload, e.path, e.typ)
	}
}

func (c *container) readSpan(offset int64, size int32) ([]byte, error) {
	cur, err := c.payloadCursor(offset)
	if err != nil {
		return nil, err
	}
	return cur.ReadBytes(int64(size))
}

func (c *container) canvasPixels(cv *wztypes.Canvas) ([]byte, error) {
	size, err := wztypes.PixelDataSize(cv.Width, cv.Height, cv.PixelFormat())
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: %s (%d)", wz.ErrUnsupportedFormat, cv.PixelFormat(), cv.PixelFormat())
	}

	var stream []byte
	if cv.Encrypted {
		stream, err = c.decryptCanvas(cv)
	} else {
		stream, err = c.readSpan(cv.Offset, cv.CompressedSize)
	}
	if err != nil {
		return nil, err
	}

	return inflate(stream, size)
}

// decryptCanvas reassembles an encrypted payload: a run of
// (int32 size, size bytes) blocks, each XORed with the keystream from
// index 0.
func (c *container) decryptCanvas(cv *wztypes.Canvas) ([]byte, error) {
	cur, err := c.payloadCursor(cv.Offset)
	if err != nil {
		return nil, err
	}
	end := cv.Offset + int64(cv.CompressedSize)

	out := make([]byte, 0, cv.CompressedSize)
	for cur.Position() < end {
		size, err := cur.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("failed to read canvas block size: %w", err)
		}
		block, err := cur.ReadBytes(int64(size))
		if err != nil {
			return nil, fmt.Errorf("failed to read canvas block: %w", err)
		}
		key := c.key.Prefix(len(block))
		for i := range block {
			block[i] ^= key[i]
		}
		out = append(out, block...)
	}
	return out, nil
}

func inflate(stream []byte, size int32) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(stream))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wz.ErrDecompressionFailed, err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, int64(size)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wz.ErrDecompressionFailed, err)
	}
	if len(out) != int(size) {
		return nil, fmt.Errorf("%w: inflated %d bytes, expected %d", wz.ErrDecompressionFailed, len(out), size)
	}
	return out, nil
}

// waveFile prefixes PCM samples with a 44-byte RIFF/WAVE header.
func waveFile(s *wztypes.Sound, data []byte) []byte {
	out := make([]byte, waveHeaderSize+len(data))
	le := binary.LittleEndian

	copy(out[0:], "RIFF")
	le.PutUint32(out[4:], uint32(36+len(data)))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	le.PutUint32(out[16:], 16)
	le.PutUint16(out[20:], s.FormatTag)
	le.PutUint16(out[22:], s.Channels)
	le.PutUint32(out[24:], uint32(s.SampleRate))
	le.PutUint32(out[28:], uint32(s.AvgBytesPerSec))
	le.PutUint16(out[32:], s.BlockAlign)
	le.PutUint16(out[34:], s.BitsPerSample)
	copy(out[36:], "data")
	le.PutUint32(out[40:], uint32(len(data)))
	copy(out[waveHeaderSize:], data)

	return out
}
