package content

import "strings"

// Path is an ordered sequence of key segments, e.g. services.investment.title.
type Path []string

// ParsePath splits a dotted key. Empty keys and empty segments ("a..b",
// ".a", "a.") are rejected.
func ParsePath(key string) (Path, error) {
	if key == "" {
		return nil, &PathError{Key: key, Reason: "empty key"}
	}
	segs := strings.Split(key, ".")
	for _, s := range segs {
		if strings.TrimSpace(s) == "" {
			return nil, &PathError{Key: key, Reason: "empty segment"}
		}
	}
	return Path(segs), nil
}

// MustParsePath is ParsePath for keys known at compile time.
func MustParsePath(key string) Path {
	p, err := ParsePath(key)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string { return strings.Join(p, ".") }

// Child returns a new path with seg appended. p is never modified.
func (p Path) Child(seg ...string) Path {
	out := make(Path, 0, len(p)+len(seg))
	out = append(out, p...)
	return append(out, seg...)
}

// Equal reports whether p and o have the same segments.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}
