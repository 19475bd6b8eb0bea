package parser_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ossyrian/wzdecode/internal/parser"
	"github.com/ossyrian/wzdecode/internal/testutil"
	"github.com/ossyrian/wzdecode/internal/wz"
)

var testNonce = [4]byte{0x4D, 0x23, 0xC7, 0x2B}

const testCopyright = "Package file v1.0 Copyright 2002 Wizet, ZMS"

func newKey() *wz.Keystream {
	return wz.NewKeystream(testNonce, wz.DefaultTable())
}

// newImage starts a stand-alone image holding count top-level entries.
func newImage(count int32) *testutil.Builder {
	return testutil.NewBuilder(newKey()).ImageHeader().CompressedInt(count)
}

func openBlob(t *testing.T, b *testutil.Builder, opts ...parser.Option) *parser.Blob {
	t.Helper()
	blob, err := parser.OpenBlob(b.Bytes(), testNonce, opts...)
	require.NoError(t, err)
	return blob
}

func mustResolve(t *testing.T, n parser.Node, path string) parser.Node {
	t.Helper()
	got, ok, err := n.Resolve(path)
	require.NoError(t, err)
	require.True(t, ok, "path %q not found", path)
	return got
}

func property(b *testutil.Builder) *testutil.Builder {
	return b.Block("Property").Uint16(0)
}

func vector(b *testutil.Builder, x, y int32) *testutil.Builder {
	return b.Block("Shape2D#Vector2D").CompressedInt(x).CompressedInt(y)
}

func uol(b *testutil.Builder, target string) *testutil.Builder {
	return b.Block("UOL").Byte(0).Block(target)
}

// canvas writes a canvas record without properties around an already
// encoded payload.
func canvas(b *testutil.Builder, w, h, format int32, format2 byte, payload []byte) *testutil.Builder {
	b.Block("Canvas").Byte(0).Byte(0)
	return canvasBody(b, w, h, format, format2, payload)
}

func canvasBody(b *testutil.Builder, w, h, format int32, format2 byte, payload []byte) *testutil.Builder {
	return b.CompressedInt(w).CompressedInt(h).CompressedInt(format).Byte(format2).
		Uint32(0).
		Int32(int32(len(payload) + 1)).Byte(0).
		Raw(payload)
}

// encryptedPayload splits a zlib stream into keystream-masked blocks.
func encryptedPayload(key *wz.Keystream, stream []byte, blockSize int) []byte {
	b := testutil.NewBuilder(key)
	for len(stream) > 0 {
		n := min(blockSize, len(stream))
		mask := key.Prefix(n)
		block := make([]byte, n)
		for i := range block {
			block[i] = stream[i] ^ mask[i]
		}
		b.Int32(int32(n)).Raw(block)
		stream = stream[n:]
	}
	return b.Bytes()
}

type waveFormat struct {
	tag        uint16
	channels   uint16
	rate       uint32
	blockAlign uint16
	bits       uint16
}

func sound(b *testutil.Builder, duration int32, wf waveFormat, payload []byte) *testutil.Builder {
	b.Block("Sound_DX8").Byte(0).
		CompressedInt(int32(len(payload))).
		CompressedInt(duration).
		Byte(2).
		Raw(make([]byte, 50)).
		CompressedInt(18).
		Uint16(wf.tag).
		Uint16(wf.channels).
		Uint32(wf.rate).
		Uint32(wf.rate * uint32(wf.blockAlign)).
		Uint16(wf.blockAlign).
		Uint16(wf.bits).
		Uint16(0)
	return b.Raw(payload)
}

// buildPackage lays out a small package:
//
//	Mob/100.img   stand/delay = 120
//	Base.img      name, shared (indirect string), link -> ../Mob/100.img/stand
//	(type 1 entry)
//	Ref.img       type 2 entry pointing at Base.img's data
func buildPackage(t *testing.T, version int, versionHeader bool) []byte {
	t.Helper()

	bodyOffset := uint32(16 + len(testCopyright) + 1)
	hash := wz.VersionHash(strconv.Itoa(version))

	b := testutil.NewBuilder(newKey())
	b.Raw([]byte("PKG1")).Uint64(0).Uint32(bodyOffset).Raw([]byte(testCopyright)).Byte(0)
	if versionHeader {
		b.Uint16(wz.ObfuscateVersionHash(hash))
	}

	offsets := make(map[int64]string)
	targets := make(map[string]int64)
	entry := func(typ byte, name, target string) {
		b.Byte(typ).String(name).CompressedInt(100).CompressedInt(7)
		offsets[b.Len()] = target
		b.Uint32(0)
	}

	b.CompressedInt(4)
	entry(3, "Mob", "mob dir")
	entry(4, "Base.img", "base")
	b.Byte(1).Raw(make([]byte, 10))
	b.Byte(2)
	refNameAt := b.Len()
	b.Int32(0).CompressedInt(100).CompressedInt(7)
	offsets[b.Len()] = "base"
	b.Uint32(0)

	targets["mob dir"] = b.Len()
	b.CompressedInt(1)
	entry(4, "100.img", "mob")

	base := b.Len()
	targets["base"] = base
	b.ImageHeader().CompressedInt(3)
	b.Block("name").Byte(0x08)
	shared := b.Len() + 1
	b.Block("base")
	b.Block("shared").Byte(0x08).BlockRef(int32(shared - base))
	b.Extended("link", func(b *testutil.Builder) { uol(b, "../Mob/100.img/stand") })

	targets["mob"] = b.Len()
	b.ImageHeader().CompressedInt(1)
	b.Extended("stand", func(b *testutil.Builder) {
		property(b).CompressedInt(1).Block("delay").Byte(0x03).CompressedInt(120)
	})

	refName := b.Len()
	b.Byte(4).String("Ref.img")

	for at, target := range offsets {
		b.PatchUint32(at, wz.EncryptOffset(uint32(at), bodyOffset, hash, uint32(targets[target])))
	}
	b.PatchUint32(refNameAt, uint32(refName-int64(bodyOffset)))
	b.PatchUint32(4, uint32(b.Len()-int64(bodyOffset)))

	return b.Bytes()
}
