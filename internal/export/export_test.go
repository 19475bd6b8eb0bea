package export_test

import (
	"bytes"
	"encoding/json"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	digest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossyrian/wzdecode/internal/export"
	"github.com/ossyrian/wzdecode/internal/parser"
	"github.com/ossyrian/wzdecode/internal/testutil"
	"github.com/ossyrian/wzdecode/internal/wz"
)

var testNonce = [4]byte{0x4D, 0x23, 0xC7, 0x2B}

var pixels = []byte{
	0xFF, 0x00, 0x00, 0xFF,
	0x00, 0xFF, 0x00, 0xFF,
	0x00, 0x00, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0x80,
}

func canvas(b *testutil.Builder, format int32, payload []byte) {
	b.Block("Canvas").Byte(0).Byte(0).
		CompressedInt(2).CompressedInt(2).CompressedInt(format).Byte(0).
		Uint32(0).
		Int32(int32(len(payload) + 1)).Byte(0).
		Raw(payload)
}

func pcm(b *testutil.Builder, samples []byte) {
	b.Block("Sound_DX8").Byte(0).
		CompressedInt(int32(len(samples))).
		CompressedInt(250).
		Byte(2).
		Raw(make([]byte, 50)).
		CompressedInt(18).
		Uint16(1).Uint16(1).Uint32(8000).Uint32(8000).Uint16(1).Uint16(8).Uint16(0).
		Raw(samples)
}

func buildImage(t *testing.T) (parser.Node, []byte) {
	t.Helper()
	stream := testutil.Deflate(pixels)

	b := testutil.NewBuilder(wz.NewKeystream(testNonce, wz.DefaultTable())).ImageHeader().CompressedInt(3)
	b.Extended("stand", func(b *testutil.Builder) {
		b.Block("Property").Uint16(0).CompressedInt(3)
		b.Extended("0", func(b *testutil.Builder) { canvas(b, 2, stream) })
		b.Extended("broken", func(b *testutil.Builder) { canvas(b, 3, stream) })
		b.Block("delay").Byte(0x03).CompressedInt(0)
	})
	b.Extended("die", func(b *testutil.Builder) { pcm(b, []byte{1, 2, 3, 4}) })
	b.Block("name").Byte(0x08).Block("Snail")

	blob, err := parser.OpenBlob(b.Bytes(), testNonce, parser.WithName("100100.img"))
	require.NoError(t, err)
	return blob.Root(), stream
}

func TestDocument(t *testing.T) {
	root, stream := buildImage(t)

	doc, err := export.Document(root)
	require.NoError(t, err)

	assert.Equal(t, "100100.img", doc.Name)
	assert.Equal(t, "Image", doc.Type)
	require.Len(t, doc.Children, 3)

	stand := doc.Children[0]
	require.Len(t, stand.Children, 3)

	frame := stand.Children[0]
	require.NotNil(t, frame.Canvas)
	assert.Equal(t, int32(2), frame.Canvas.Width)
	assert.Equal(t, "BGRA8888", frame.Canvas.Format)
	assert.Equal(t, digest.FromBytes(stream), frame.Canvas.Digest)
	assert.Empty(t, frame.Error)

	// payloads are digested, never decoded, so unsupported formats still export
	assert.Equal(t, digest.FromBytes(stream), stand.Children[1].Canvas.Digest)

	assert.Equal(t, int32(0), stand.Children[2].Value)

	die := doc.Children[1]
	require.NotNil(t, die.Sound)
	assert.Equal(t, int32(250), die.Sound.DurationMs)
	assert.Equal(t, uint16(1), die.Sound.FormatTag)
	assert.Equal(t, digest.FromBytes([]byte{1, 2, 3, 4}), die.Sound.Digest)

	assert.Equal(t, "Snail", doc.Children[2].Value)
}

func TestWrite(t *testing.T) {
	root, _ := buildImage(t)
	doc, err := export.Document(root)
	require.NoError(t, err)

	var plain bytes.Buffer
	require.NoError(t, export.Write(&plain, doc, false))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(plain.Bytes(), &decoded))
	assert.Equal(t, "100100.img", decoded["name"])
	assert.Contains(t, plain.String(), `"value": 0`)

	var compressed bytes.Buffer
	require.NoError(t, export.Write(&compressed, doc, true))

	zr, err := zstd.NewReader(&compressed)
	require.NoError(t, err)
	defer zr.Close()

	var inflated bytes.Buffer
	_, err = inflated.ReadFrom(zr)
	require.NoError(t, err)
	assert.Equal(t, plain.String(), inflated.String())
}

func TestExtractor(t *testing.T) {
	root, _ := buildImage(t)
	dir := t.TempDir()

	x := &export.Extractor{
		SpritesDir: filepath.Join(dir, "sprites"),
		SoundsDir:  filepath.Join(dir, "sounds"),
		Logger:     slog.New(slog.DiscardHandler),
	}
	st, err := x.Extract(root)
	require.NoError(t, err)

	assert.Equal(t, 1, st.Sprites)
	assert.Equal(t, 1, st.Sounds)
	assert.Equal(t, 1, st.Skipped)
	assert.NotZero(t, st.Bytes)

	f, err := os.Open(filepath.Join(dir, "sprites", "100100.img", "stand", "0.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())

	wav, err := os.ReadFile(filepath.Join(dir, "sounds", "100100.img", "die.wav"))
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(wav[:4]))
	assert.Len(t, wav, 44+4)

	_, err = os.Stat(filepath.Join(dir, "sprites", "100100.img", "stand", "broken.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractor_SpritesOnly(t *testing.T) {
	root, _ := buildImage(t)
	dir := t.TempDir()

	st, err := (&export.Extractor{SpritesDir: dir, Logger: slog.New(slog.DiscardHandler)}).Extract(root)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Sprites)
	assert.Zero(t, st.Sounds)
}

func TestExtractor_DuplicateNames(t *testing.T) {
	stream := testutil.Deflate(pixels)

	b := testutil.NewBuilder(wz.NewKeystream(testNonce, wz.DefaultTable())).ImageHeader().CompressedInt(4)
	b.Extended("0", func(b *testutil.Builder) { canvas(b, 2, stream) })
	b.Extended("0", func(b *testutil.Builder) { canvas(b, 2, stream) })
	b.Extended("hit", func(b *testutil.Builder) { pcm(b, []byte{1, 2}) })
	b.Extended("hit", func(b *testutil.Builder) { pcm(b, []byte{3, 4, 5}) })

	blob, err := parser.OpenBlob(b.Bytes(), testNonce, parser.WithName("dup.img"))
	require.NoError(t, err)

	dir := t.TempDir()
	x := &export.Extractor{SpritesDir: dir, SoundsDir: dir, Logger: slog.New(slog.DiscardHandler)}
	st, err := x.Extract(blob.Root())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Sprites)
	assert.Equal(t, 2, st.Sounds)

	for _, name := range []string{"0.png", "0~1.png"} {
		_, err := os.Stat(filepath.Join(dir, "dup.img", name))
		assert.NoError(t, err, name)
	}

	first, err := os.ReadFile(filepath.Join(dir, "dup.img", "hit.wav"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "dup.img", "hit~1.wav"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, first[44:])
	assert.Equal(t, []byte{3, 4, 5}, second[44:])
}
