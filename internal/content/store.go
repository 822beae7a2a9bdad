package content

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/xerrors"
)

// Options controls NewStore.
type Options struct {
	// DefaultLocale is the fallback for unknown locales and missing paths.
	// It must be one of the defined locales.
	DefaultLocale string

	// AllowPartialFallback skips the check that every leaf of every locale
	// also exists in the default locale.
	AllowPartialFallback bool

	Source  Source
	Version string
}

// Store holds one validated Tree per locale. It is immutable after
// NewStore returns.
type Store struct {
	defaultLocale string
	trees         map[string]*Tree
	locales       []string
	meta          Meta
}

// NewStore validates every locale definition and builds the store. Any
// conflict aborts construction; a partially valid store is never returned.
func NewStore(defs map[string]Def, opts Options) (*Store, error) {
	def, err := CanonicalLocale(opts.DefaultLocale)
	if err != nil {
		return nil, xerrors.Wrap(err, "default locale")
	}

	s := &Store{
		defaultLocale: def,
		trees:         make(map[string]*Tree, len(defs)),
	}

	var errs []error
	raw := make([]string, 0, len(defs))
	for loc := range defs {
		raw = append(raw, loc)
	}
	sort.Strings(raw)

	for _, loc := range raw {
		canon, err := CanonicalLocale(loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := s.trees[canon]; dup {
			errs = append(errs, xerrors.Newf("content: locale %q defined twice (as %q)", canon, loc))
			continue
		}
		t, err := Build(canon, defs[loc])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.trees[canon] = t
		s.locales = append(s.locales, canon)
	}
	if len(errs) > 0 {
		return nil, xerrors.Join(errs...)
	}

	if _, ok := s.trees[def]; !ok {
		return nil, xerrors.Wrapf(ErrNoDefaultLocale, "default locale %q", def)
	}

	if !opts.AllowPartialFallback {
		if err := s.checkFallbackCoverage(); err != nil {
			return nil, err
		}
	}

	sort.Strings(s.locales)
	sum := s.hash()
	version := opts.Version
	if version == "" {
		version = sum[:12]
	}
	source := opts.Source
	if source == "" {
		source = SourceUnknown
	}
	s.meta = Meta{
		Version:  version,
		SHA256:   sum,
		Source:   source,
		LoadedAt: time.Now().UTC(),
	}
	return s, nil
}

// checkFallbackCoverage requires every leaf of every other locale to exist
// in the default locale with the same shape.
func (s *Store) checkFallbackCoverage() error {
	base := s.trees[s.defaultLocale]
	var errs []error
	for _, loc := range s.locales {
		if loc == s.defaultLocale {
			continue
		}
		_ = s.trees[loc].Walk(func(l Leaf) error {
			n, err := Lookup(base, l.Path)
			if err != nil {
				errs = append(errs, &MissingFallbackError{
					Locale:   loc,
					Fallback: s.defaultLocale,
					Path:     l.Path,
				})
				return nil
			}
			if n.Shape() != l.Node.Shape() {
				errs = append(errs, &ShapeConflictError{
					Locale:      loc,
					Path:        l.Path,
					Existing:    n.Shape(),
					Conflicting: l.Node.Shape(),
				})
			}
			return nil
		})
	}
	return xerrors.Join(errs...)
}

// Tree returns the tree for locale. A regional locale without its own tree
// uses its parent (ko-KR -> ko); anything else, malformed tags included,
// gets the default locale.
func (s *Store) Tree(locale string) *Tree {
	_, t, _ := s.tree(locale)
	return t
}

// tree returns the locale actually served along with its tree. A malformed
// locale still yields the default tree, plus a *LocaleError.
func (s *Store) tree(locale string) (string, *Tree, error) {
	if t, ok := s.trees[locale]; ok {
		return locale, t, nil
	}
	tag, err := parseLocale(locale)
	if err != nil {
		return s.defaultLocale, s.trees[s.defaultLocale], &LocaleError{Locale: locale, Err: err}
	}
	for ; tag != language.Und; tag = tag.Parent() {
		if t, ok := s.trees[tag.String()]; ok {
			return tag.String(), t, nil
		}
	}
	return s.defaultLocale, s.trees[s.defaultLocale], nil
}

// DefaultLocale returns the canonical default locale.
func (s *Store) DefaultLocale() string { return s.defaultLocale }

// Locales returns the canonical locales with definitions, sorted.
func (s *Store) Locales() []string {
	out := make([]string, len(s.locales))
	copy(out, s.locales)
	return out
}

// Has reports whether locale has its own definitions (no fallback).
func (s *Store) Has(locale string) bool {
	c, err := CanonicalLocale(locale)
	if err != nil {
		return false
	}
	_, ok := s.trees[c]
	return ok
}

func (s *Store) Meta() Meta { return s.meta }

// ContentVersion implements httpmw.ContentInfo.
func (s *Store) ContentVersion() string { return s.meta.Version }

// ContentHash implements httpmw.ContentInfo.
func (s *Store) ContentHash() string { return s.meta.SHA256 }

// hash covers every leaf of every locale in sorted order, so identical
// definitions always produce the same hash.
func (s *Store) hash() string {
	var buf bytes.Buffer
	for _, loc := range s.locales {
		_ = s.trees[loc].Walk(func(l Leaf) error {
			writeLeaf(&buf, loc, l)
			return nil
		})
	}
	return cryptoutil.SHA256Hex(buf.Bytes())
}

func writeLeaf(w io.Writer, locale string, l Leaf) {
	switch n := l.Node.(type) {
	case Scalar:
		fmt.Fprintf(w, "%s\x00%s\x00scalar\x00%s\n", locale, l.Path, string(n))
	case Fragment:
		fmt.Fprintf(w, "%s\x00%s\x00fragment\x00%s\x00%s\n", locale, l.Path, n.Title, n.Description)
	}
}

// CanonicalLocale normalises a locale identifier to its BCP 47 form:
// "EN" -> "en", "en_us" -> "en-US".
func CanonicalLocale(locale string) (string, error) {
	tag, err := parseLocale(locale)
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}

func parseLocale(locale string) (language.Tag, error) {
	l := strings.TrimSpace(strings.ReplaceAll(locale, "_", "-"))
	if l == "" {
		return language.Und, xerrors.New("content: empty locale")
	}
	tag, err := language.Parse(l)
	if err != nil {
		return language.Und, xerrors.Wrapf(err, "content: invalid locale %q", locale)
	}
	return tag, nil
}
