package content

import (
	"sort"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/xerrors"
)

// Def is an authored, not yet validated, locale definition. Values may be
// string, Fragment, Def / map[string]any, or map[string]string. Keys may
// contain dots, which are expanded into nested paths.
type Def = map[string]any

// Validate reports every shape conflict in def without keeping the tree.
func Validate(locale string, def Def) error {
	_, err := Build(locale, def)
	return err
}

// Build validates def and returns the immutable tree it describes.
//
// Keys are visited depth first in sorted order. Every path is claimed either
// as a terminal (Scalar or Fragment) or as a tree. A tree claim on a
// terminal path, a terminal claim on a tree path, and a second terminal
// claim on the same path are conflicts. All conflicts are returned joined.
func Build(locale string, def Def) (*Tree, error) {
	b := &builder{
		locale:    locale,
		root:      newTree(),
		terminals: make(map[string]Shape),
		trees:     map[string]struct{}{"": {}},
	}
	b.visit(nil, def)
	if len(b.errs) > 0 {
		return nil, xerrors.Join(b.errs...)
	}
	return b.root, nil
}

type builder struct {
	locale    string
	root      *Tree
	terminals map[string]Shape
	trees     map[string]struct{}
	errs      []error
}

func (b *builder) visit(prefix Path, def map[string]any) {
	keys := make([]string, 0, len(def))
	for k := range def {
		keys = append(keys, k)
	}
	sort.Strings(keys)

next:
	for _, k := range keys {
		segs, err := ParsePath(k)
		if err != nil {
			b.errs = append(b.errs, &PathError{Key: prefix.Child(k).String(), Reason: err.(*PathError).Reason})
			continue
		}
		full := prefix.Child(segs...)

		// "a.b.c" as a flat key implies trees at a and a.b
		for i := 1; i < len(segs); i++ {
			if !b.claimTree(prefix.Child(segs[:i]...)) {
				continue next
			}
		}

		switch v := def[k].(type) {
		case string:
			b.claimLeaf(full, Scalar(v))
		case Scalar:
			b.claimLeaf(full, v)
		case Fragment:
			b.claimLeaf(full, v)
		case map[string]string:
			if f, ok := fragmentOf(v); ok {
				b.claimLeaf(full, f)
				continue
			}
			if b.claimTree(full) {
				m := make(map[string]any, len(v))
				for mk, mv := range v {
					m[mk] = mv
				}
				b.visit(full, m)
			}
		case map[string]any:
			if f, ok := fragmentOfAny(v); ok {
				b.claimLeaf(full, f)
				continue
			}
			if b.claimTree(full) {
				b.visit(full, v)
			}
		default:
			b.errs = append(b.errs, &ValueError{Locale: b.locale, Path: full, Value: v})
		}
	}
}

// claimTree marks p as a namespace and makes sure the tree node exists.
func (b *builder) claimTree(p Path) bool {
	key := p.String()
	if _, ok := b.trees[key]; ok {
		return true
	}
	if s, ok := b.terminals[key]; ok {
		b.conflict(p, s, ShapeTree)
		return false
	}
	b.trees[key] = struct{}{}
	parent := b.ensure(p[:len(p)-1])
	if parent == nil {
		return false
	}
	parent.children[p[len(p)-1]] = newTree()
	return true
}

func (b *builder) claimLeaf(p Path, n Node) {
	key := p.String()
	if s, ok := b.terminals[key]; ok {
		b.conflict(p, s, n.Shape())
		return
	}
	if _, ok := b.trees[key]; ok {
		b.conflict(p, ShapeTree, n.Shape())
		return
	}
	parent := b.ensure(p[:len(p)-1])
	if parent == nil {
		return
	}
	b.terminals[key] = n.Shape()
	parent.children[p[len(p)-1]] = n
}

// ensure returns the tree at p. Every prefix of p has been claimed as a tree
// before ensure is called, so a nil return means the claim bookkeeping is
// broken.
func (b *builder) ensure(p Path) *Tree {
	t := b.root
	for _, seg := range p {
		n, ok := t.children[seg]
		if !ok {
			return nil
		}
		sub, ok := n.(*Tree)
		if !ok {
			return nil
		}
		t = sub
	}
	return t
}

func (b *builder) conflict(p Path, existing, conflicting Shape) {
	b.errs = append(b.errs, &ShapeConflictError{
		Locale:      b.locale,
		Path:        p,
		Existing:    existing,
		Conflicting: conflicting,
	})
}

// A map with exactly a string title and a string description is a Fragment.
func fragmentOfAny(m map[string]any) (Fragment, bool) {
	if len(m) != 2 {
		return Fragment{}, false
	}
	title, ok1 := m["title"].(string)
	desc, ok2 := m["description"].(string)
	if !ok1 || !ok2 {
		return Fragment{}, false
	}
	return Fragment{Title: title, Description: desc}, true
}

func fragmentOf(m map[string]string) (Fragment, bool) {
	if len(m) != 2 {
		return Fragment{}, false
	}
	title, ok1 := m["title"]
	desc, ok2 := m["description"]
	if !ok1 || !ok2 {
		return Fragment{}, false
	}
	return Fragment{Title: title, Description: desc}, true
}
