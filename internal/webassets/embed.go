// Package webassets embeds the seed site copy shipped with the binary.
package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

// locales/ must hold at least the default locale file to satisfy go:embed
//
//go:embed locales
var embedded embed.FS

// LocalesFS returns the embedded locale files, one per locale at the root.
func LocalesFS() fs.FS {
	sub, err := fs.Sub(embedded, "locales")
	if err != nil {
		panic(fmt.Errorf("webassets: locales subfs: %w", err))
	}
	return sub
}
