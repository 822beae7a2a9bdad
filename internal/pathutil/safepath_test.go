package pathutil

import (
	"strings"
	"testing"
)

func TestHasDotSegments(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/srv/sitecopy/locales", false},
		{"/srv/./locales", true},
		{"/srv/../etc", true},
		{".", true},
		{"..", true},
		{"/...", false},
		{"/srv/.locales", false},
		{"locales/.", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := HasDotSegments(tt.path); got != tt.want {
				t.Errorf("HasDotSegments(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestValidDir(t *testing.T) {
	tests := []struct {
		dir string
		ok  bool
	}{
		{".", true},
		{"locales", true},
		{"site/locales", true},
		{"", false},
		{"/locales", false},
		{"locales/", false},
		{"../locales", false},
		{"site/../locales", false},
		{`site\locales`, false},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			err := ValidDir(tt.dir)
			if (err == nil) != tt.ok {
				t.Fatalf("ValidDir(%q) = %v, want ok=%v", tt.dir, err, tt.ok)
			}
		})
	}
}

func FuzzValidDir(f *testing.F) {
	for _, s := range []string{".", "locales", "../x", "a/./b", "a//b"} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, p string) {
		if ValidDir(p) == nil && p != "." {
			for _, seg := range strings.Split(p, "/") {
				if seg == ".." || seg == "." || seg == "" {
					t.Fatalf("ValidDir accepted %q", p)
				}
			}
		}
	})
}
