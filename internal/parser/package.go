package parser

import (
	"fmt"
	"strconv"

	wztypes "github.com/ossyrian/wzdecode/internal/types"
	"github.com/ossyrian/wzdecode/internal/wz"
)

// Package is a multi-entry WZ package ("PKG1"): a directory tree whose
// leaves are images decoded on first access.
type Package struct {
	c      *container
	header *wz.Header

	// versionHeader is the obfuscated version hash stored after the header;
	// only meaningful when hasVersionHeader is set.
	versionHeader    uint16
	hasVersionHeader bool

	version int
	hash    uint32
}

// OpenPackage decodes the header and directory tree of a WZ package.
// The buffer must not be modified while the Package is in use.
func OpenPackage(buf []byte, nonce [4]byte, opts ...Option) (*Package, error) {
	c := newContainer(buf, nonce, opts)
	p := &Package{c: c}
	c.owner = p

	logger := c.logger.With("package", c.opts.name)

	if _, err := p.readHeader(); err != nil {
		return nil, err
	}

	hasVersionHeader, err := p.detectFormat()
	if err != nil {
		return nil, fmt.Errorf("failed to detect format: %w", err)
	}
	p.hasVersionHeader = hasVersionHeader

	if hasVersionHeader {
		if p.versionHeader, err = c.cur.ReadUint16(); err != nil {
			return nil, fmt.Errorf("failed to read version header: %w", err)
		}
		logger.Debug("detected format with version header", "version_header", p.versionHeader)
	} else {
		logger.Debug("detected format without version header")
	}
	dirStart := c.cur.Position()

	var lastErr error
	for _, version := range p.candidateVersions() {
		err := p.load(dirStart, version)
		if err == nil {
			logger.Info("opened package",
				"version", version,
				"entries", len(c.nodes[c.root].children),
				"nodes", len(c.nodes),
			)
			return p, nil
		}
		lastErr = err
		logger.Debug("version rejected", "version", version, "error", err)
	}

	switch {
	case lastErr == nil:
		return nil, wz.ErrVersionNotFound
	case c.opts.version >= 0:
		return nil, lastErr
	default:
		return nil, fmt.Errorf("%w: last attempt: %w", wz.ErrVersionNotFound, lastErr)
	}
}

// load decodes the directory tree assuming the given patch version.
func (p *Package) load(dirStart int64, version int) error {
	c := p.c
	c.reset()
	c.nodes[c.root].typ = wztypes.PropertyDirectory

	p.version = version
	p.hash = wz.VersionHash(strconv.Itoa(version))

	if err := c.cur.Seek(dirStart); err != nil {
		return err
	}
	if err := p.readDirectory(c.root, 0); err != nil {
		return err
	}
	if c.opts.version < 0 {
		return p.validate()
	}
	return nil
}

// Root returns the top-level directory.
func (p *Package) Root() Node { return p.c.node(p.c.root) }

// Keystream returns the keystream strings and canvases are decrypted with.
func (p *Package) Keystream() *wz.Keystream { return p.c.key }

// Header returns the decoded package header.
func (p *Package) Header() wz.Header { return *p.header }

// Version returns the patch version used to decrypt directory offsets.
func (p *Package) Version() int { return p.version }

// Expansions returns how many images have been decoded so far.
func (p *Package) Expansions() int { return p.c.expansions }

// readHeader reads the package header. The first 4 bytes must be
// wz.Magic and BodyOffset must lie past the fixed fields.
func (p *Package) readHeader() (*wz.Header, error) {
	cur := p.c.cur
	h := &wz.Header{}

	magic, err := cur.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	copy(h.Magic[:], magic)
	if h.Magic != wz.Magic {
		return nil, fmt.Errorf("%w: expected %q, got %q", wz.ErrInvalidMagic, wz.Magic, h.Magic)
	}

	if h.BodySize, err = cur.ReadUint64(); err != nil {
		return nil, fmt.Errorf("failed to read body size: %w", err)
	}

	if h.BodyOffset, err = cur.ReadUint32(); err != nil {
		return nil, fmt.Errorf("failed to read body offset: %w", err)
	}

	remaining := int64(h.BodyOffset) - cur.Position()
	if remaining < 0 {
		return nil, fmt.Errorf("invalid BodyOffset: %d", h.BodyOffset)
	}

	headerData, err := cur.ReadBytes(remaining)
	if err != nil {
		return nil, fmt.Errorf("failed to read header data: %w", err)
	}

	// copyright is printable ASCII up to the first NUL
	end := len(headerData)
	for i, b := range headerData {
		if b < 32 || b > 126 {
			end = i
			break
		}
	}
	h.Copyright = string(headerData[:end])

	p.c.logger.Debug("header is valid",
		"body_size", h.BodySize,
		"body_offset", h.BodyOffset,
		"copyright", h.Copyright,
	)

	p.header = h
	return h, nil
}

// detectFormat determines whether a 2-byte version header follows the
// package header. The cursor is left at BodyOffset.
func (p *Package) detectFormat() (hasVersionHeader bool, err error) {
	cur := p.c.cur
	bodyOffset := int64(p.header.BodyOffset)
	defer func() {
		if seekErr := cur.Seek(bodyOffset); seekErr != nil && err == nil {
			err = fmt.Errorf("failed to seek back to body offset: %w", seekErr)
		}
	}()

	versionCheck, err := cur.ReadUint16()
	if err != nil {
		return false, fmt.Errorf("failed to read version check bytes: %w", err)
	}

	switch {
	case versionCheck > 0xFF:
		// version headers are single-byte values
		return false, nil

	case versionCheck == 0x80:
		// 0x80 is also the compressed int marker: 80 xx xx xx xx is a
		// plausible entry count when the directory starts right away
		if err := cur.Seek(bodyOffset); err != nil {
			return false, err
		}
		entryCount, err := cur.ReadCompressedInt()
		if err != nil {
			return false, fmt.Errorf("failed to read entry count: %w", err)
		}
		if entryCount > 0 && entryCount <= 0xFFFF {
			return false, nil
		}
		return true, nil

	default:
		return true, nil
	}
}

// readDirectory reads a directory table into dir. Images become
// placeholders; subdirectories are read recursively once the table is done.
func (p *Package) readDirectory(dir int32, depth int) error {
	c := p.c
	if depth > defaultMaxDirDepth {
		return fmt.Errorf("%w: %s", wz.ErrDirectoryTooDeep, c.nodes[dir].path)
	}

	count, err := c.readCount()
	if err != nil {
		return err
	}

	type subdir struct {
		id     int32
		offset uint32
	}
	var subdirs []subdir

	for i := int64(0); i < count; i++ {
		entry, err := p.readDirEntry()
		if err != nil {
			return fmt.Errorf("failed to read entry %d of %q: %w", i, c.nodes[dir].path, err)
		}
		if entry == nil {
			continue
		}

		c.logger.Debug("read directory entry",
			"index", i,
			"type", entry.Type,
			"name", entry.Name,
			"size", entry.Size,
			"checksum", entry.Checksum,
			"offset", entry.Offset,
		)

		if entry.Type == wz.DirEntryTypeDir {
			id := c.appendChild(dir, entry.Name, wztypes.PropertyDirectory)
			subdirs = append(subdirs, subdir{id: id, offset: entry.Offset})
			continue
		}

		id := c.appendChild(dir, entry.Name, wztypes.PropertyImage)
		c.nodes[id].image = entry
	}

	for _, sd := range subdirs {
		if err := c.cur.Seek(int64(sd.offset)); err != nil {
			return fmt.Errorf("failed to seek to directory %q: %w", c.nodes[sd.id].path, err)
		}
		if err := p.readDirectory(sd.id, depth+1); err != nil {
			return err
		}
	}

	return nil
}

// readDirEntry reads one directory entry. It returns nil for entries that
// carry no data (type 1).
func (p *Package) readDirEntry() (*wz.DirEntry, error) {
	cur := p.c.cur
	entry := &wz.DirEntry{}

	t, err := cur.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read entry type: %w", err)
	}
	entry.Type = wz.DirEntryType(t)

	switch entry.Type {
	case wz.DirEntryTypeIgnore:
		if err := cur.Skip(10); err != nil {
			return nil, fmt.Errorf("failed to skip type 1 entry: %w", err)
		}
		return nil, nil

	case wz.DirEntryTypeReference:
		nameOffset, err := cur.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("failed to read name offset: %w", err)
		}
		resume := cur.Position()

		if err := cur.Seek(int64(p.header.BodyOffset) + int64(nameOffset)); err != nil {
			return nil, fmt.Errorf("failed to seek to referenced entry: %w", err)
		}
		t, err := cur.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read referenced entry type: %w", err)
		}
		entry.Type = wz.DirEntryType(t)
		if entry.Name, err = cur.ReadString(); err != nil {
			return nil, fmt.Errorf("failed to read referenced entry name: %w", err)
		}

		if err := cur.Seek(resume); err != nil {
			return nil, err
		}

	case wz.DirEntryTypeDir, wz.DirEntryTypeImage:
		if entry.Name, err = cur.ReadString(); err != nil {
			return nil, fmt.Errorf("failed to read entry name: %w", err)
		}

	default:
		return nil, fmt.Errorf("%w: unknown directory entry type %d", wz.ErrMalformedProperty, t)
	}

	if entry.Type != wz.DirEntryTypeDir && entry.Type != wz.DirEntryTypeImage {
		return nil, fmt.Errorf("%w: referenced entry %q has type %d", wz.ErrMalformedProperty, entry.Name, entry.Type)
	}

	size, err := cur.ReadCompressedInt()
	if err != nil {
		return nil, fmt.Errorf("failed to read size of %s: %w", entry.Name, err)
	}
	entry.Size = int32(size)

	checksum, err := cur.ReadCompressedInt()
	if err != nil {
		return nil, fmt.Errorf("failed to read checksum of %s: %w", entry.Name, err)
	}
	entry.Checksum = int32(checksum)

	if entry.Offset, err = cur.ReadOffset(p.header.BodyOffset, p.hash); err != nil {
		return nil, fmt.Errorf("failed to read offset of %s: %w", entry.Name, err)
	}

	return entry, nil
}
