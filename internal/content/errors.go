package content

import (
	"errors"
	"fmt"
)

var (
	ErrShapeConflict    = errors.New("content: shape conflict")
	ErrNotFound         = errors.New("content: not found")
	ErrNotRenderable    = errors.New("content: not renderable")
	ErrInvalidPath      = errors.New("content: invalid path")
	ErrInvalidLocale    = errors.New("content: invalid locale")
	ErrUnsupportedValue = errors.New("content: unsupported value")
	ErrNoDefaultLocale  = errors.New("content: default locale has no definitions")
	ErrMissingFallback  = errors.New("content: path missing from default locale")
)

// ShapeConflictError is returned at construction time when one path is
// defined with two shapes, or defined twice.
type ShapeConflictError struct {
	Locale      string
	Path        Path
	Existing    Shape
	Conflicting Shape
}

func (e *ShapeConflictError) Error() string {
	if e.Existing == e.Conflicting {
		return fmt.Sprintf("content: shape conflict in %q at %q: %s defined more than once",
			e.Locale, e.Path, e.Existing)
	}
	return fmt.Sprintf("content: shape conflict in %q at %q: %s vs %s",
		e.Locale, e.Path, e.Existing, e.Conflicting)
}

func (e *ShapeConflictError) Is(target error) bool { return target == ErrShapeConflict }

func (e *ShapeConflictError) LogFields() map[string]string {
	return map[string]string{
		"locale":      e.Locale,
		"path":        e.Path.String(),
		"shape":       e.Existing.String(),
		"conflicting": e.Conflicting.String(),
	}
}

// NotFoundError means the path is absent from both the requested and the
// default locale.
type NotFoundError struct {
	Locale   string
	Fallback string
	Path     Path
}

func (e *NotFoundError) Error() string {
	if e.Fallback == "" || e.Fallback == e.Locale {
		return fmt.Sprintf("content: %q not found in %q", e.Path, e.Locale)
	}
	return fmt.Sprintf("content: %q not found in %q or fallback %q", e.Path, e.Locale, e.Fallback)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *NotFoundError) LogFields() map[string]string {
	return map[string]string{"locale": e.Locale, "fallback": e.Fallback, "path": e.Path.String()}
}

// ShapeError means the path resolved, but not to the shape the caller asked
// for, e.g. Text on a Fragment.
type ShapeError struct {
	Locale string
	Path   Path
	Want   Shape
	Got    Shape
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("content: %q in %q is a %s, want %s", e.Path, e.Locale, e.Got, e.Want)
}

func (e *ShapeError) Is(target error) bool { return target == ErrNotRenderable }

func (e *ShapeError) LogFields() map[string]string {
	return map[string]string{"locale": e.Locale, "path": e.Path.String(), "shape": e.Got.String(), "want": e.Want.String()}
}

// PathError reports a malformed dotted key.
type PathError struct {
	Key    string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("content: invalid path %q: %s", e.Key, e.Reason)
}

func (e *PathError) Is(target error) bool { return target == ErrInvalidPath }

// LocaleError reports a locale identifier that is not a well-formed BCP 47
// tag. Well-formed tags without definitions are not errors; they get the
// default locale.
type LocaleError struct {
	Locale string
	Err    error
}

func (e *LocaleError) Error() string {
	return fmt.Sprintf("content: invalid locale %q", e.Locale)
}

func (e *LocaleError) Is(target error) bool { return target == ErrInvalidLocale }

func (e *LocaleError) Unwrap() error { return e.Err }

// ValueError reports an authored value that maps to no node shape.
type ValueError struct {
	Locale string
	Path   Path
	Value  any
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("content: unsupported value %T in %q at %q", e.Value, e.Locale, e.Path)
}

func (e *ValueError) Is(target error) bool { return target == ErrUnsupportedValue }

func (e *ValueError) LogFields() map[string]string {
	return map[string]string{"locale": e.Locale, "path": e.Path.String(), "value_type": fmt.Sprintf("%T", e.Value)}
}

// MissingFallbackError reports a leaf that a locale defines but the default
// locale does not.
type MissingFallbackError struct {
	Locale   string
	Fallback string
	Path     Path
}

func (e *MissingFallbackError) Error() string {
	return fmt.Sprintf("content: %q defined in %q but missing from default locale %q",
		e.Path, e.Locale, e.Fallback)
}

func (e *MissingFallbackError) Is(target error) bool { return target == ErrMissingFallback }

func (e *MissingFallbackError) LogFields() map[string]string {
	return map[string]string{"locale": e.Locale, "fallback": e.Fallback, "path": e.Path.String()}
}
