package webassets

import (
	"context"
	"io/fs"
	"testing"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/content"
)

func TestLocalesFS_HasDefaultLocale(t *testing.T) {
	if _, err := fs.Stat(LocalesFS(), "en.yaml"); err != nil {
		t.Fatalf("en.yaml not embedded: %v", err)
	}
}

// The shipped seed must always build: every locale validates and every key
// has an English fallback.
func TestLocalesFS_BuildsStore(t *testing.T) {
	l, err := content.NewLoader(content.LoaderOptions{
		FS:            LocalesFS(),
		DefaultLocale: "en",
		Source:        content.SourceSeed,
	})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	s, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("seed content does not build: %v", err)
	}

	a := content.NewAccessor(s)
	res, err := a.Lookup("ko", "hero.body", content.ShapeScalar)
	if err != nil {
		t.Fatalf("Text(ko, hero.body): %v", err)
	}
	if !res.Fallback || res.Locale != "en" {
		t.Fatalf("hero.body should fall back to en, got %+v", res)
	}
	if _, err := a.Fragment("ko", "services.estate"); err != nil {
		t.Fatalf("Fragment(ko, services.estate): %v", err)
	}
}
