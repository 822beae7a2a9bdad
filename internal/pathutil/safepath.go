// Package pathutil holds the path checks applied to locale directories
// before any file is opened.
package pathutil

import (
	"io/fs"
	"strings"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/xerrors"
)

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// ValidDir checks a directory name relative to an fs.FS root. "." is the
// root itself; anything else must be an fs.ValidPath without dot segments
// or backslashes.
func ValidDir(p string) error {
	if p == "." {
		return nil
	}
	if strings.Contains(p, `\`) || !fs.ValidPath(p) || HasDotSegments(p) {
		return xerrors.Newf("invalid directory %q", p)
	}
	return nil
}
