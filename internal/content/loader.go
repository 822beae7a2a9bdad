// internal/content/loader.go
package content

import (
	"context"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/log"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/pathutil"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/xerrors"
)

type LoaderOptions struct {
	Logger log.Logger

	// FS holds one file per locale: en.yaml, ko.json, de.toml, ...
	FS fs.FS

	// Dir is the directory inside FS to read, "." for the root.
	Dir string

	Source               Source
	Version              string
	DefaultLocale        string
	AllowPartialFallback bool
}

type Loader struct {
	opts   LoaderOptions
	logger log.Logger
}

// NewLoader creates a new content Loader with the given options
func NewLoader(opts LoaderOptions) (*Loader, error) {
	if opts.FS == nil {
		return nil, xerrors.New("FS is required")
	}
	if opts.DefaultLocale == "" {
		return nil, xerrors.New("DefaultLocale is required")
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if err := pathutil.ValidDir(opts.Dir); err != nil {
		return nil, xerrors.Wrap(err, "content dir")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &Loader{opts: opts, logger: opts.Logger}, nil
}

// ReadDefs decodes every supported file in the loader's directory, keyed by
// file stem. Two files with the same stem are an error.
func (l *Loader) ReadDefs(ctx context.Context) (map[string]Def, error) {
	entries, err := fs.ReadDir(l.opts.FS, l.opts.Dir)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read content dir %q", l.opts.Dir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	defs := make(map[string]Def)
	from := make(map[string]string)
	var errs []error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !SupportedExt(name) {
			l.logger.Debug(ctx, "skipping unsupported content file", "file", name)
			continue
		}
		locale := strings.TrimSuffix(name, path.Ext(name))
		if prev, dup := from[locale]; dup {
			return nil, xerrors.Newf("locale %q defined by both %s and %s", locale, prev, name)
		}
		data, err := fs.ReadFile(l.opts.FS, path.Join(l.opts.Dir, name))
		if err != nil {
			return nil, xerrors.Wrapf(err, "read %s", name)
		}
		from[locale] = name
		def, err := Decode(name, data)
		if err != nil {
			// keep going so every malformed file is reported at once
			errs = append(errs, err)
			continue
		}
		defs[locale] = def
	}
	if len(errs) > 0 {
		return nil, xerrors.Join(errs...)
	}
	if len(defs) == 0 {
		return nil, xerrors.Newf("no locale files in %q", l.opts.Dir)
	}
	return defs, nil
}

// Load reads and validates every locale and builds the Store.
func (l *Loader) Load(ctx context.Context) (*Store, error) {
	defs, err := l.ReadDefs(ctx)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(defs, Options{
		DefaultLocale:        l.opts.DefaultLocale,
		AllowPartialFallback: l.opts.AllowPartialFallback,
		Source:               l.opts.Source,
		Version:              l.opts.Version,
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info(ctx, "content store built",
		"source", s.Meta().Source,
		"locales", s.Locales(),
		"default_locale", s.DefaultLocale(),
		"content_version", s.ContentVersion(),
		"content_hash", s.ContentHash(),
	)
	return s, nil
}

// LoadIntoManager builds the Store and makes it the manager's active store.
func (l *Loader) LoadIntoManager(ctx context.Context, mgr *Manager) error {
	s, err := l.Load(ctx)
	if err != nil {
		return err
	}
	mgr.Set(s)
	return nil
}
