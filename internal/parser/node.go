package parser

import (
	wztypes "github.com/ossyrian/wzdecode/internal/types"
	"github.com/ossyrian/wzdecode/internal/wz"
)

const noParent int32 = -1

// entity is one node in a container's arena. Parent and children are arena
// indices; byName keeps every sibling sharing a name in insertion order.
type entity struct {
	typ      wztypes.PropertyType
	name     string
	path     string
	parent   int32
	children []int32
	byName   map[string][]int32

	num    int64
	real   float64
	text   string // String value or UOL target
	vector wztypes.Vector
	canvas *wztypes.Canvas
	sound  *wztypes.Sound
	image  *wz.DirEntry // set only on images that are not yet expanded
}

func (c *container) newNode(typ wztypes.PropertyType, name, path string, parent int32) int32 {
	c.nodes = append(c.nodes, entity{
		typ:    typ,
		name:   name,
		path:   path,
		parent: parent,
	})
	return int32(len(c.nodes) - 1)
}

// appendChild creates a node under parent. Duplicate names are kept.
func (c *container) appendChild(parent int32, name string, typ wztypes.PropertyType) int32 {
	path := name
	if pp := c.nodes[parent].path; pp != "" {
		path = pp + "/" + name
	}
	id := c.newNode(typ, name, path, parent)

	p := &c.nodes[parent]
	p.children = append(p.children, id)
	if p.byName == nil {
		p.byName = make(map[string][]int32)
	}
	p.byName[name] = append(p.byName[name], id)
	return id
}

// Node is a handle to a node in a decoded WZ tree. The zero Node is invalid.
// Nodes stay valid as long as the Package or Blob they came from.
type Node struct {
	c  *container
	id int32
}

func (n Node) entity() *entity {
	return &n.c.nodes[n.id]
}

// IsValid reports whether n refers to a node.
func (n Node) IsValid() bool {
	return n.c != nil
}

// Owner returns the root container n was decoded from.
func (n Node) Owner() Owner {
	return n.c.owner
}

// Type returns the node's type tag.
func (n Node) Type() wztypes.PropertyType { return n.entity().typ }

// Name returns the node's name within its parent.
func (n Node) Name() string { return n.entity().name }

// Path is the slash-joined path from the container root.
func (n Node) Path() string { return n.entity().path }

// Parent returns the parent node; ok is false at a root.
func (n Node) Parent() (Node, bool) {
	p := n.entity().parent
	if p == noParent {
		return Node{}, false
	}
	return n.c.node(p), true
}

// Children returns every child in insertion order.
func (n Node) Children() []Node {
	ids := n.entity().children
	out := make([]Node, len(ids))
	for i, id := range ids {
		out[i] = n.c.node(id)
	}
	return out
}

// NumChildren returns the number of children, duplicates included.
func (n Node) NumChildren() int {
	return len(n.entity().children)
}

// Child returns the first child called name.
func (n Node) Child(name string) (Node, bool) {
	ids := n.entity().byName[name]
	if len(ids) == 0 {
		return Node{}, false
	}
	return n.c.node(ids[0]), true
}

// ChildrenNamed returns every child called name in insertion order.
func (n Node) ChildrenNamed(name string) []Node {
	ids := n.entity().byName[name]
	out := make([]Node, len(ids))
	for i, id := range ids {
		out[i] = n.c.node(id)
	}
	return out
}

// ChildNames returns the distinct child names in order of first appearance.
func (n Node) ChildNames() []string {
	e := n.entity()
	names := make([]string, 0, len(e.byName))
	for _, id := range e.children {
		name := n.c.nodes[id].name
		if e.byName[name][0] == id {
			names = append(names, name)
		}
	}
	return names
}

// IsPlaceholder reports whether n is a package image that has not been
// expanded yet. Resolve and Expand expand placeholders transparently.
func (n Node) IsPlaceholder() bool {
	return n.entity().image != nil
}

// DirEntry returns the directory metadata of an unexpanded package image.
func (n Node) DirEntry() (wz.DirEntry, bool) {
	e := n.entity()
	if e.image == nil {
		return wz.DirEntry{}, false
	}
	return *e.image, true
}

// Uint16 returns the value of a UShort node.
func (n Node) Uint16() (uint16, bool) {
	e := n.entity()
	if e.typ != wztypes.PropertyUShort {
		return 0, false
	}
	return uint16(e.num), true
}

// Int returns the value of an Int or Long node.
func (n Node) Int() (int64, bool) {
	e := n.entity()
	switch e.typ {
	case wztypes.PropertyInt, wztypes.PropertyLong:
		return e.num, true
	default:
		return 0, false
	}
}

// Float returns the value of a Float or Double node.
func (n Node) Float() (float64, bool) {
	e := n.entity()
	switch e.typ {
	case wztypes.PropertyFloat, wztypes.PropertyDouble:
		return e.real, true
	default:
		return 0, false
	}
}

// StringValue returns the text of a String node.
func (n Node) StringValue() (string, bool) {
	e := n.entity()
	if e.typ != wztypes.PropertyString {
		return "", false
	}
	return e.text, true
}

// Vector returns the value of a Vector node.
func (n Node) Vector() (wztypes.Vector, bool) {
	e := n.entity()
	if e.typ != wztypes.PropertyVector {
		return wztypes.Vector{}, false
	}
	return e.vector, true
}

// Points returns the vertices of a Convex node.
func (n Node) Points() ([]wztypes.Vector, bool) {
	e := n.entity()
	if e.typ != wztypes.PropertyConvex {
		return nil, false
	}
	pts := make([]wztypes.Vector, 0, len(e.children))
	for _, id := range e.children {
		if child := n.c.nodes[id]; child.typ == wztypes.PropertyVector {
			pts = append(pts, child.vector)
		}
	}
	return pts, true
}

// Canvas returns the descriptor of a Canvas node.
func (n Node) Canvas() (wztypes.Canvas, bool) {
	e := n.entity()
	if e.canvas == nil {
		return wztypes.Canvas{}, false
	}
	return *e.canvas, true
}

// Sound returns the descriptor of a Sound node.
func (n Node) Sound() (wztypes.Sound, bool) {
	e := n.entity()
	if e.sound == nil {
		return wztypes.Sound{}, false
	}
	return *e.sound, true
}

// Reference returns the target path of a UOL node.
func (n Node) Reference() (string, bool) {
	e := n.entity()
	if e.typ != wztypes.PropertyUOL {
		return "", false
	}
	return e.text, true
}

// Value returns the scalar value of a leaf as a plain Go value, or nil for
// containers and Null nodes.
func (n Node) Value() any {
	e := n.entity()
	switch e.typ {
	case wztypes.PropertyUShort:
		return uint16(e.num)
	case wztypes.PropertyInt:
		return int32(e.num)
	case wztypes.PropertyLong:
		return e.num
	case wztypes.PropertyFloat:
		return float32(e.real)
	case wztypes.PropertyDouble:
		return e.real
	case wztypes.PropertyString, wztypes.PropertyUOL:
		return e.text
	case wztypes.PropertyVector:
		return e.vector
	default:
		return nil
	}
}

// Walk calls fn for n and every descendant, depth first in insertion order.
// Image placeholders are expanded before they are visited.
func Walk(n Node, fn func(Node) error) error {
	n, err := n.Expand()
	if err != nil {
		return err
	}
	if err := fn(n); err != nil {
		return err
	}
	for _, child := range n.Children() {
		if err := Walk(child, fn); err != nil {
			return err
		}
	}
	return nil
}
