package export

import (
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ossyrian/wzdecode/internal/parser"
	wztypes "github.com/ossyrian/wzdecode/internal/types"
)

// Extractor writes canvas and sound payloads under output directories,
// mirroring node paths. An empty directory disables that payload kind.
type Extractor struct {
	SpritesDir string
	SoundsDir  string
	Logger     *slog.Logger
}

// Stats counts what an extraction wrote or skipped.
type Stats struct {
	Sprites int
	Sounds  int
	Skipped int
	Bytes   uint64
}

// Extract walks root and writes every canvas as PNG and every sound as a
// playable file. Payloads that fail to decode are logged and skipped; only
// tree decoding and file system errors abort the walk.
func (x *Extractor) Extract(root parser.Node) (Stats, error) {
	logger := x.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var st Stats
	err := parser.Walk(root, func(n parser.Node) error {
		switch n.Type() {
		case wztypes.PropertyCanvas:
			if x.SpritesDir == "" {
				return nil
			}
			return x.writeSprite(n, &st, logger)
		case wztypes.PropertySound:
			if x.SoundsDir == "" {
				return nil
			}
			return x.writeSound(n, &st, logger)
		}
		return nil
	})

	logger.Info("extracted payloads",
		"root", root.Path(),
		"sprites", st.Sprites,
		"sounds", st.Sounds,
		"skipped", st.Skipped,
		"written", humanize.Bytes(st.Bytes),
	)
	return st, err
}

func (x *Extractor) writeSprite(n parser.Node, st *Stats, logger *slog.Logger) error {
	img, err := n.Image()
	if err != nil {
		logger.Warn("skipping canvas", "path", n.Path(), "error", err)
		st.Skipped++
		return nil
	}

	path := outputPath(x.SpritesDir, fileSegments(n), ".png")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create sprite directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create sprite file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if info, err := f.Stat(); err == nil {
		st.Bytes += uint64(info.Size())
	}
	st.Sprites++
	return nil
}

func (x *Extractor) writeSound(n parser.Node, st *Stats, logger *slog.Logger) error {
	data, err := n.ParsedData()
	if err != nil {
		logger.Warn("skipping sound", "path", n.Path(), "error", err)
		st.Skipped++
		return nil
	}

	s, _ := n.Sound()
	path := outputPath(x.SoundsDir, fileSegments(n), soundExtension(s.FormatTag))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create sound directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sound file: %w", err)
	}

	st.Bytes += uint64(len(data))
	st.Sounds++
	return nil
}

func soundExtension(formatTag uint16) string {
	switch formatTag {
	case wztypes.WaveFormatPCM:
		return ".wav"
	case wztypes.WaveFormatMP3:
		return ".mp3"
	default:
		return ".bin"
	}
}

// fileSegments returns the names from the container root down to n. A node
// that is the k-th sibling (k > 0) sharing its name gets a "~k" suffix so
// duplicates land in distinct files.
func fileSegments(n parser.Node) []string {
	var segs []string
	for {
		name := n.Name()
		parent, ok := n.Parent()
		if !ok {
			segs = append(segs, name)
			break
		}
		for k, sib := range parent.ChildrenNamed(name) {
			if sib == n && k > 0 {
				name = fmt.Sprintf("%s~%d", name, k)
			}
		}
		segs = append(segs, name)
		n = parent
	}
	slices.Reverse(segs)
	return segs
}

// outputPath maps node path segments below dir. Segments that would escape
// dir are neutralised.
func outputPath(dir string, segs []string, ext string) string {
	clean := make([]string, 0, len(segs)+1)
	clean = append(clean, dir)
	for _, s := range segs {
		switch s {
		case "", ".":
			continue
		case "..":
			s = "_"
		}
		clean = append(clean, strings.ReplaceAll(s, string(filepath.Separator), "_"))
	}
	return filepath.Join(clean...) + ext
}
