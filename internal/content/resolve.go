package content

// Lookup walks p from t and returns whatever node sits there, including a
// *Tree. An empty path returns t itself. Descending through a leaf, or a
// missing key at any level, is ErrNotFound.
func Lookup(t *Tree, p Path) (Node, error) {
	if t == nil {
		return nil, &NotFoundError{Path: p}
	}
	var cur Node = t
	for _, seg := range p {
		tree, ok := cur.(*Tree)
		if !ok {
			// stopped on a leaf with segments left over
			return nil, &NotFoundError{Path: p}
		}
		next, ok := tree.children[seg]
		if !ok {
			return nil, &NotFoundError{Path: p}
		}
		cur = next
	}
	return cur, nil
}

// Resolve is Lookup restricted to leaves: it returns a Scalar or a Fragment.
// A path that lands on a tree is a *ShapeError, never the tree itself.
func Resolve(t *Tree, p Path) (Node, error) {
	n, err := Lookup(t, p)
	if err != nil {
		return nil, err
	}
	if n.Shape() == ShapeTree {
		return nil, &ShapeError{Path: p, Want: ShapeScalar, Got: ShapeTree}
	}
	return n, nil
}
