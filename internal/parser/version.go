package parser

import (
	"fmt"

	"github.com/ossyrian/wzdecode/internal/wz"
)

const (
	// MaxVersion is the highest patch version tried when a package carries
	// a version header.
	MaxVersion = 1000

	// Packages without a version header come from clients in this range.
	headerlessVersionFirst = 770
	headerlessVersionLast  = 779
)

// candidateVersions lists the patch versions to try, most likely first.
func (p *Package) candidateVersions() []int {
	if v := p.c.opts.version; v >= 0 {
		return []int{v}
	}

	var versions []int
	if !p.hasVersionHeader {
		for v := headerlessVersionFirst; v <= headerlessVersionLast; v++ {
			versions = append(versions, v)
		}
		return versions
	}

	for v := 0; v <= MaxVersion; v++ {
		if wz.ObfuscateVersionHash(wz.VersionHash(fmt.Sprint(v))) == p.versionHeader {
			versions = append(versions, v)
		}
	}
	return versions
}

// validate checks a freshly decoded directory tree for signs of a wrong
// version hash: every image must start inside the buffer and the first
// one must carry a property-list header.
func (p *Package) validate() error {
	c := p.c
	size := uint32(len(c.buf))

	first := true
	for i := range c.nodes {
		entry := c.nodes[i].image
		if entry == nil {
			continue
		}
		if entry.Offset >= size {
			return fmt.Errorf("%w: image %q at offset %d past end of buffer", wz.ErrOutOfRange, entry.Name, entry.Offset)
		}
		if !first {
			continue
		}
		first = false

		if err := c.cur.Seek(int64(entry.Offset)); err != nil {
			return err
		}
		if !c.cur.IsImage(int64(entry.Offset)) {
			return fmt.Errorf("%w: %q at offset %d", wz.ErrNotImage, entry.Name, entry.Offset)
		}
	}
	return nil
}
