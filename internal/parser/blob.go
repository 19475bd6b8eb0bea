package parser

import (
	"fmt"

	"github.com/ossyrian/wzdecode/internal/wz"
)

// Blob is a stand-alone image (an extracted ".img" file): exactly one
// property list, decoded eagerly with string offsets relative to the start
// of the buffer.
type Blob struct {
	c *container
}

// OpenBlob decodes a stand-alone image.
// The buffer must not be modified while the Blob is in use.
func OpenBlob(buf []byte, nonce [4]byte, opts ...Option) (*Blob, error) {
	c := newContainer(buf, nonce, opts)
	b := &Blob{c: c}
	c.owner = b

	if !c.cur.IsImage(0) {
		return nil, fmt.Errorf("%w: missing %q header", wz.ErrNotImage, wz.ImageHeaderName)
	}
	if err := c.decodePropertyList(c.root, 0); err != nil {
		return nil, fmt.Errorf("failed to decode image %q: %w", c.opts.name, err)
	}

	c.logger.Info("opened image",
		"image", c.opts.name,
		"entries", len(c.nodes[c.root].children),
		"nodes", len(c.nodes),
	)
	return b, nil
}

// Root returns the image's top-level property list.
func (b *Blob) Root() Node { return b.c.node(b.c.root) }

// Keystream returns the keystream strings and canvases are decrypted with.
func (b *Blob) Keystream() *wz.Keystream { return b.c.key }
