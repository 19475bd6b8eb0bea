package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	digest "github.com/opencontainers/go-digest"

	"github.com/ossyrian/wzdecode/internal/parser"
	wztypes "github.com/ossyrian/wzdecode/internal/types"
)

// Entry is the JSON form of one node.
type Entry struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Value    any         `json:"value,omitempty"`
	Canvas   *CanvasInfo `json:"canvas,omitempty"`
	Sound    *SoundInfo  `json:"sound,omitempty"`
	Error    string      `json:"error,omitempty"`
	Children []*Entry    `json:"children,omitempty"`
}

// CanvasInfo summarises a canvas payload; Size is the stored byte count.
type CanvasInfo struct {
	Width     int32         `json:"width"`
	Height    int32         `json:"height"`
	Format    string        `json:"format"`
	Encrypted bool          `json:"encrypted,omitempty"`
	Size      int32         `json:"size"`
	Digest    digest.Digest `json:"digest,omitempty"`
}

// SoundInfo summarises a sound payload; Size is the stored byte count.
type SoundInfo struct {
	DurationMs int32         `json:"duration_ms"`
	FormatTag  uint16        `json:"format_tag"`
	Channels   uint16        `json:"channels,omitempty"`
	SampleRate int32         `json:"sample_rate,omitempty"`
	Size       int32         `json:"size"`
	Digest     digest.Digest `json:"digest,omitempty"`
}

// Document converts n and its subtree into Entries, expanding package
// images along the way. Payloads are not decoded, only digested, and a
// payload that cannot be read is reported on its own entry.
func Document(n parser.Node) (*Entry, error) {
	n, err := n.Expand()
	if err != nil {
		return nil, err
	}

	e := &Entry{
		Name:  n.Name(),
		Type:  n.Type().String(),
		Value: n.Value(),
	}

	switch n.Type() {
	case wztypes.PropertyCanvas:
		cv, _ := n.Canvas()
		e.Canvas = &CanvasInfo{
			Width:     cv.Width,
			Height:    cv.Height,
			Format:    cv.PixelFormat().String(),
			Encrypted: cv.Encrypted,
			Size:      cv.CompressedSize,
		}
		e.Canvas.Digest, e.Error = payloadDigest(n)

	case wztypes.PropertySound:
		s, _ := n.Sound()
		e.Sound = &SoundInfo{
			DurationMs: s.DurationMs,
			FormatTag:  s.FormatTag,
			Channels:   s.Channels,
			SampleRate: s.SampleRate,
			Size:       s.CompressedSize,
		}
		e.Sound.Digest, e.Error = payloadDigest(n)
	}

	for _, child := range n.Children() {
		ce, err := Document(child)
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", child.Path(), err)
		}
		e.Children = append(e.Children, ce)
	}

	return e, nil
}

func payloadDigest(n parser.Node) (digest.Digest, string) {
	raw, err := n.RawData()
	if err != nil {
		return "", err.Error()
	}
	return digest.FromBytes(raw), ""
}

// Write encodes v as indented JSON, zstd-compressed when compress is set.
func Write(w io.Writer, v any, compress bool) error {
	if !compress {
		return encode(w, v)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := encode(zw, v); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush zstd writer: %w", err)
	}
	return nil
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
