package parser

import (
	"fmt"
	"strings"

	wztypes "github.com/ossyrian/wzdecode/internal/types"
	"github.com/ossyrian/wzdecode/internal/wz"
)

// chase tracks the symbolic references currently being followed.
type chase struct {
	active map[int32]bool
	depth  int
	limit  int
}

// Resolve walks a slash-delimited path from n. ".." moves to the parent,
// any other segment selects the first child with that name. UOL nodes met
// along the way are replaced by their targets and package images are
// expanded on first use.
//
// A missing segment, or ".." above a root, yields ok == false with a nil
// error. Errors are reserved for reference cycles and images that fail to
// decode.
func (n Node) Resolve(path string) (Node, bool, error) {
	ch := &chase{active: make(map[int32]bool), limit: n.c.opts.maxHops}
	return n.resolve(path, ch)
}

// Get is Resolve for callers that treat errors as not found.
func (n Node) Get(path string) Node {
	node, ok, err := n.Resolve(path)
	if err != nil || !ok {
		return Node{}
	}
	return node
}

func (n Node) resolve(path string, ch *chase) (Node, bool, error) {
	cur := n
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}

		if seg == ".." {
			parent, ok := cur.Parent()
			if !ok {
				return Node{}, false, nil
			}
			cur = parent
			continue
		}

		var err error
		if cur, err = cur.Expand(); err != nil {
			return Node{}, false, err
		}

		child, ok := cur.Child(seg)
		if !ok {
			return Node{}, false, nil
		}

		child, ok, err = child.follow(ch)
		if err != nil || !ok {
			return Node{}, false, err
		}

		if child, err = child.Expand(); err != nil {
			return Node{}, false, err
		}
		cur = child
	}
	return cur, true, nil
}

// follow replaces a UOL node with its target, resolved from the UOL's
// parent, until a non-reference node is reached.
func (n Node) follow(ch *chase) (Node, bool, error) {
	if n.Type() != wztypes.PropertyUOL {
		return n, true, nil
	}

	if ch.active[n.id] {
		return Node{}, false, fmt.Errorf("%w: %s", wz.ErrReferenceCycle, n.Path())
	}
	if ch.depth >= ch.limit {
		return Node{}, false, fmt.Errorf("%w: more than %d nested references at %s", wz.ErrReferenceCycle, ch.limit, n.Path())
	}

	parent, ok := n.Parent()
	if !ok {
		return Node{}, false, nil
	}

	ch.active[n.id] = true
	ch.depth++
	defer func() {
		delete(ch.active, n.id)
		ch.depth--
	}()

	target, ok, err := parent.resolve(n.entity().text, ch)
	if err != nil || !ok {
		return Node{}, false, err
	}
	return target.follow(ch)
}

// Expand returns the decoded subtree of a package image placeholder,
// decoding it on first use and returning the cached subtree afterwards.
// Any other node is returned unchanged.
//
// The subtree root carries the placeholder's name, path and parent so
// paths and ".." keep working, but it is not itself a child of that parent.
func (n Node) Expand() (Node, error) {
	e := n.entity()
	if e.image == nil {
		return n, nil
	}

	c := n.c
	if id, ok := c.expanded[n.id]; ok {
		return c.node(id), nil
	}

	entry := *e.image
	mark := len(c.nodes)
	root := c.newNode(wztypes.PropertyImage, e.name, e.path, e.parent)

	if err := c.expandImage(root, entry); err != nil {
		// new nodes only hang off root, so dropping them is safe
		c.nodes = c.nodes[:mark]
		return Node{}, fmt.Errorf("failed to expand image %s: %w", entry.Name, err)
	}

	c.expanded[n.id] = root
	c.expansions++

	c.logger.Debug("expanded image",
		"path", c.nodes[root].path,
		"offset", entry.Offset,
		"size", entry.Size,
		"nodes", len(c.nodes)-mark,
	)
	return c.node(root), nil
}

func (c *container) expandImage(root int32, entry wz.DirEntry) error {
	saved := c.cur.Position()
	defer func() {
		_ = c.cur.Seek(saved)
	}()

	base := int64(entry.Offset)
	if err := c.cur.Seek(base); err != nil {
		return err
	}
	if !c.cur.IsImage(base) {
		return fmt.Errorf("%w at offset %d", wz.ErrNotImage, base)
	}
	return c.decodePropertyList(root, base)
}
