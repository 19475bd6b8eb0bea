package wz

import "errors"

var (
	// ErrTruncatedInput means a read needed more bytes than remain in the buffer.
	ErrTruncatedInput = errors.New("truncated input")
	// ErrOutOfRange means an absolute position lies outside the buffer.
	ErrOutOfRange = errors.New("position out of range")

	ErrUnknownPropertyTag      = errors.New("unknown property tag")
	ErrUnknownExtendedProperty = errors.New("unknown extended property kind")
	ErrMalformedProperty       = errors.New("malformed property")

	// ErrEntryCount is returned when a declared entry count cannot fit in
	// the bytes that remain.
	ErrEntryCount = errors.New("implausible entry count")

	ErrDecompressionFailed = errors.New("decompression failed")
	ErrUnsupportedFormat   = errors.New("unsupported pixel format")

	ErrInvalidMagic     = errors.New("invalid WZ magic")
	ErrNotImage         = errors.New("not a property-list image")
	ErrVersionNotFound  = errors.New("could not determine package version")
	ErrReferenceCycle   = errors.New("symbolic reference cycle")
	ErrNotPayload       = errors.New("node carries no payload")
	ErrDirectoryTooDeep = errors.New("directory nesting too deep")
)
