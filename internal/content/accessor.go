package content

import "errors"

// Result is a resolved node and where it came from.
type Result struct {
	Node Node
	Path Path
	// Locale is the locale whose tree produced Node.
	Locale string
	// Fallback is true when the requested locale lacked the path and the
	// default locale supplied it.
	Fallback bool
}

// Accessor is the read interface for rendering code. It never hands a
// structured value to a caller that asked for text, and never turns a
// missing path into an empty string.
type Accessor struct {
	store *Store
}

func NewAccessor(s *Store) *Accessor { return &Accessor{store: s} }

func (a *Accessor) Store() *Store { return a.store }

// Text returns the Scalar at key.
func (a *Accessor) Text(locale, key string) (string, error) {
	r, err := a.Lookup(locale, key, ShapeScalar)
	if err != nil {
		return "", err
	}
	return string(r.Node.(Scalar)), nil
}

// Fragment returns the Fragment at key.
func (a *Accessor) Fragment(locale, key string) (Fragment, error) {
	r, err := a.Lookup(locale, key, ShapeFragment)
	if err != nil {
		return Fragment{}, err
	}
	return r.Node.(Fragment), nil
}

// Subtree returns the namespace at key. An empty key returns the root.
func (a *Accessor) Subtree(locale, key string) (*Tree, error) {
	r, err := a.Lookup(locale, key, ShapeTree)
	if err != nil {
		return nil, err
	}
	return r.Node.(*Tree), nil
}

// Lookup resolves key for locale and requires the result to have shape
// want. NotFound in the requested locale is retried against the default
// locale; a shape mismatch is returned as is. A malformed locale tag is a
// *LocaleError rather than a silent switch to the default locale.
func (a *Accessor) Lookup(locale, key string, want Shape) (Result, error) {
	var p Path
	if key != "" || want != ShapeTree {
		var err error
		if p, err = ParsePath(key); err != nil {
			return Result{}, err
		}
	}

	served, t, err := a.store.tree(locale)
	if err != nil {
		return Result{}, err
	}
	r, err := lookupShape(t, p, want)
	if err == nil {
		return Result{Node: r, Path: p, Locale: served}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Result{}, withLocale(err, served)
	}

	def := a.store.defaultLocale
	if served != def {
		r, ferr := lookupShape(a.store.trees[def], p, want)
		if ferr == nil {
			return Result{Node: r, Path: p, Locale: def, Fallback: true}, nil
		}
		if !errors.Is(ferr, ErrNotFound) {
			return Result{}, withLocale(ferr, def)
		}
	}
	return Result{}, &NotFoundError{Locale: served, Fallback: def, Path: p}
}

func lookupShape(t *Tree, p Path, want Shape) (Node, error) {
	n, err := Lookup(t, p)
	if err != nil {
		return nil, err
	}
	if n.Shape() != want {
		return nil, &ShapeError{Path: p, Want: want, Got: n.Shape()}
	}
	return n, nil
}

func withLocale(err error, locale string) error {
	var se *ShapeError
	if errors.As(err, &se) {
		se.Locale = locale
	}
	return err
}
