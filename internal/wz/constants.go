package wz

import "fmt"

// Magic is the magic number identifying valid WZ packages ("PKG1")
var Magic = [4]byte{'P', 'K', 'G', '1'}

// String block discriminators. The 0x73/0x1B forms are used inside images,
// the 0x00/0x01 forms inside directories; both decode the same way.
const (
	StringBlockInline         byte = 0x00
	StringBlockOffset         byte = 0x01
	StringBlockImageInline    byte = 0x73
	StringBlockImageOffset    byte = 0x1B
	compressedIntSentinel     int8 = -128
	unicodeLongLengthSentinel int8 = 127
)

// Zlib stream headers that mark an unencrypted canvas payload.
const (
	ZlibHeaderDefault uint16 = 0x9C78
	ZlibHeaderBest    uint16 = 0xDA78
)

// ImageHeaderName is the type name at the start of every property-list blob.
const ImageHeaderName = "Property"

// NonceForRegion returns the 4-byte keystream nonce (IV) for known game regions.
func NonceForRegion(region string) ([4]byte, error) {
	switch region {
	case "gms":
		return [4]byte{0x4D, 0x23, 0xC7, 0x2B}, nil
	case "kms":
		return [4]byte{0xB9, 0x7D, 0x63, 0xE9}, nil
	case "sea":
		return [4]byte{0x2E, 0x23, 0x12, 0x61}, nil
	case "tms":
		return [4]byte{0x2E, 0x12, 0x61, 0x9A}, nil
	case "bms", "classic":
		return [4]byte{}, nil
	default:
		return [4]byte{}, fmt.Errorf("unknown game region: %s", region)
	}
}
