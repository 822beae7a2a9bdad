// Package richtext renders markdown site copy (emphasis, links, short
// lists) to HTML for the few components that accept formatted text.
package richtext

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/xerrors"
)

// Renderer converts markdown to HTML. Raw HTML in the source is dropped.
// A Renderer is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// Block renders src as block-level HTML (paragraphs, lists).
func (r *Renderer) Block(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", xerrors.Wrap(err, "render markdown")
	}
	return template.HTML(buf.String()), nil
}

// Inline renders src and strips the wrapping paragraph when the result is a
// single paragraph, for use inside headings and buttons.
func (r *Renderer) Inline(src string) (template.HTML, error) {
	out, err := r.Block(src)
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(out))
	if strings.HasPrefix(s, "<p>") && strings.HasSuffix(s, "</p>") && strings.Count(s, "<p>") == 1 {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "<p>"), "</p>")
	}
	return template.HTML(s), nil
}
