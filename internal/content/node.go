package content

import "sort"

// Shape identifies which variant a Node is.
type Shape int

const (
	ShapeScalar Shape = iota + 1
	ShapeFragment
	ShapeTree
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeFragment:
		return "fragment"
	case ShapeTree:
		return "tree"
	default:
		return "unknown"
	}
}

// Node is one of Scalar, Fragment or *Tree.
type Node interface {
	Shape() Shape
	node()
}

// Scalar is directly renderable text.
type Scalar string

func (Scalar) Shape() Shape { return ShapeScalar }
func (Scalar) node()        {}

// Fragment is the title/description pair used by card-style components.
type Fragment struct {
	Title       string `json:"title" yaml:"title" toml:"title"`
	Description string `json:"description" yaml:"description" toml:"description"`
}

func (Fragment) Shape() Shape { return ShapeFragment }
func (Fragment) node()        {}

// Tree is a nested namespace. Trees are built by the validator and never
// mutated afterwards, so they are safe to share between goroutines.
type Tree struct {
	children map[string]Node
}

func (*Tree) Shape() Shape { return ShapeTree }
func (*Tree) node()        {}

func newTree() *Tree { return &Tree{children: make(map[string]Node)} }

// Child returns the direct child named key.
func (t *Tree) Child(key string) (Node, bool) {
	if t == nil {
		return nil, false
	}
	n, ok := t.children[key]
	return n, ok
}

// Keys returns the direct child keys in sorted order.
func (t *Tree) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.children))
	for k := range t.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of direct children.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.children)
}

// Leaf pairs a leaf node with its full path.
type Leaf struct {
	Path Path
	Node Node
}

// Walk visits every leaf under t in sorted path order.
func (t *Tree) Walk(fn func(Leaf) error) error {
	return t.walk(nil, fn)
}

func (t *Tree) walk(prefix Path, fn func(Leaf) error) error {
	for _, k := range t.Keys() {
		p := prefix.Child(k)
		switch n := t.children[k].(type) {
		case *Tree:
			if err := n.walk(p, fn); err != nil {
				return err
			}
		default:
			if err := fn(Leaf{Path: p, Node: n}); err != nil {
				return err
			}
		}
	}
	return nil
}
