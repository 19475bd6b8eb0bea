package parser

import (
	"encoding/binary"
	"fmt"
	"image"

	wztypes "github.com/ossyrian/wzdecode/internal/types"
	"github.com/ossyrian/wzdecode/internal/wz"
)

// Image decodes a Canvas node into an NRGBA image.
func (n Node) Image() (*image.NRGBA, error) {
	cv, ok := n.Canvas()
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", wz.ErrNotPayload, n.Path(), n.Type())
	}

	data, err := n.ParsedData()
	if err != nil {
		return nil, err
	}

	w, h := int(cv.Width), int(cv.Height)
	if need := pixelBytes(cv.PixelFormat(), w, h); len(data) < need {
		return nil, fmt.Errorf("%w: %dx%d %s canvas has %d pixel bytes",
			wz.ErrMalformedProperty, w, h, cv.PixelFormat(), len(data))
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	switch cv.PixelFormat() {
	case wztypes.PixelFormatBGRA4444:
		for i := 0; i < w*h; i++ {
			lo, hi := data[i*2], data[i*2+1]
			px := img.Pix[i*4 : i*4+4]
			px[0] = expand4(hi & 0x0F)
			px[1] = expand4(lo >> 4)
			px[2] = expand4(lo & 0x0F)
			px[3] = expand4(hi >> 4)
		}

	case wztypes.PixelFormatBGRA8888:
		for i := 0; i < w*h; i++ {
			src := data[i*4 : i*4+4]
			px := img.Pix[i*4 : i*4+4]
			px[0], px[1], px[2], px[3] = src[2], src[1], src[0], src[3]
		}

	case wztypes.PixelFormatRGB565:
		for i := 0; i < w*h; i++ {
			putRGB565(img.Pix[i*4:i*4+4], binary.LittleEndian.Uint16(data[i*2:]))
		}

	case wztypes.PixelFormatRGB565Block:
		// one RGB565 colour per 16x16 block
		blocksPerRow := w / 16
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				bx, by := x/16, y/16
				if bx >= blocksPerRow {
					continue
				}
				i := (by*blocksPerRow + bx) * 2
				if i+2 > len(data) {
					continue
				}
				off := img.PixOffset(x, y)
				putRGB565(img.Pix[off:off+4], binary.LittleEndian.Uint16(data[i:]))
			}
		}

	default:
		return nil, fmt.Errorf("%w: %s (%d)", wz.ErrUnsupportedFormat, cv.PixelFormat(), cv.PixelFormat())
	}

	return img, nil
}

// pixelBytes is the minimum input size the conversion below reads.
func pixelBytes(f wztypes.PixelFormat, w, h int) int {
	switch f {
	case wztypes.PixelFormatBGRA4444, wztypes.PixelFormatRGB565:
		return w * h * 2
	case wztypes.PixelFormatBGRA8888:
		return w * h * 4
	default:
		// block formats check every index
		return 0
	}
}

func expand4(v byte) byte {
	return v | v<<4
}

func putRGB565(px []byte, v uint16) {
	r := byte(v >> 11 & 0x1F)
	g := byte(v >> 5 & 0x3F)
	b := byte(v & 0x1F)
	px[0] = r<<3 | r>>2
	px[1] = g<<2 | g>>4
	px[2] = b<<3 | b>>2
	px[3] = 0xFF
}
