package parser

import (
	"log/slog"

	wztypes "github.com/ossyrian/wzdecode/internal/types"
	"github.com/ossyrian/wzdecode/internal/wz"
)

const (
	defaultMaxReferenceHops = 32
	defaultMaxDirDepth      = 64
)

type options struct {
	logger  *slog.Logger
	name    string
	version int // negative means detect
	maxHops int
}

// Option configures a Package or Blob.
type Option func(*options)

// WithLogger sets the logger used while decoding.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithName sets the name (and path) of the container's root node,
// typically the file name, e.g. "Map.wz" or "100000000.img".
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithVersion pins the patch version used for directory offset decryption
// instead of detecting it. Ignored by Blob.
func WithVersion(version int) Option {
	return func(o *options) {
		o.version = version
	}
}

// WithMaxReferenceHops bounds how many symbolic references a single path
// lookup may follow before failing with wz.ErrReferenceCycle.
func WithMaxReferenceHops(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxHops = n
		}
	}
}

// Owner is a root container: either a *Package or a *Blob.
type Owner interface {
	Root() Node
	Keystream() *wz.Keystream
}

// container holds everything a root container shares with the nodes
// decoded from it: the buffer, the cursor and keystream used to decode it,
// the node arena and the lazy-expansion cache.
type container struct {
	buf    []byte
	cur    *wz.Cursor
	key    *wz.Keystream
	owner  Owner
	opts   options
	logger *slog.Logger

	nodes []entity
	root  int32

	// expanded maps an image placeholder to the root of its decoded subtree.
	expanded   map[int32]int32
	expansions int
}

func newContainer(buf []byte, nonce [4]byte, opts []Option) *container {
	o := options{
		logger:  slog.Default(),
		version: -1,
		maxHops: defaultMaxReferenceHops,
	}
	for _, opt := range opts {
		opt(&o)
	}

	key := wz.NewKeystream(nonce, wz.DefaultTable())

	c := &container{
		buf:      buf,
		cur:      wz.NewCursor(buf, key),
		key:      key,
		opts:     o,
		logger:   o.logger,
		expanded: make(map[int32]int32),
	}
	c.reset()
	return c
}

// reset drops every decoded node and recreates the root.
func (c *container) reset() {
	c.nodes = c.nodes[:0]
	c.expanded = make(map[int32]int32)
	c.expansions = 0
	c.root = c.newNode(wztypes.PropertyImage, c.opts.name, c.opts.name, noParent)
}

func (c *container) node(id int32) Node {
	return Node{c: c, id: id}
}
