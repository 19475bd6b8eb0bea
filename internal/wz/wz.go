package wz

// Header is the header of a WZ package.
type Header struct {
	Magic      [4]byte // "PKG1" for valid WZ packages
	BodySize   uint64  // size of data section (from BodyOffset to EOF)
	BodyOffset uint32  // where the data section starts
	Copyright  string
}

// DirEntry contains metadata for a single directory entry.
// Encrypted fields are stored in decrypted form.
type DirEntry struct {
	Type     DirEntryType
	Name     string
	Size     int32  // size in bytes of the entry's data
	Checksum int32  // validation checksum
	Offset   uint32 // absolute offset of the entry's data
}

// DirEntryType is the first byte of a directory entry.
type DirEntryType byte

const (
	// DirEntryTypeIgnore (0x01) entries carry 10 bytes that are skipped.
	DirEntryTypeIgnore DirEntryType = iota + 1
	// DirEntryTypeReference (0x02) entries store their type byte and name
	// elsewhere, at an int32 offset relative to Header.BodyOffset. Size,
	// checksum and offset follow inline as usual.
	//
	// [0x02][name_offset(int32)][size(cint)][checksum(cint)][offset(enc u32)]
	DirEntryTypeReference
	// DirEntryTypeDir (0x03) is a subdirectory.
	// [0x03][name(string)][size(cint)][checksum(cint)][offset(enc u32)]
	DirEntryTypeDir
	// DirEntryTypeImage (0x04) is a property-list image.
	// [0x04][name(string)][size(cint)][checksum(cint)][offset(enc u32)]
	DirEntryTypeImage
)

func (t DirEntryType) String() string {
	switch t {
	case DirEntryTypeIgnore:
		return "ignore"
	case DirEntryTypeReference:
		return "reference"
	case DirEntryTypeDir:
		return "dir"
	case DirEntryTypeImage:
		return "image"
	default:
		return "unknown"
	}
}
