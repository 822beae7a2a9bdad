package richtext

import (
	"strings"
	"sync"
	"testing"
)

func TestBlock_Paragraph(t *testing.T) {
	out, err := New().Block("Grow **steadily**.")
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	got := strings.TrimSpace(string(out))
	if got != "<p>Grow <strong>steadily</strong>.</p>" {
		t.Fatalf("Block = %q", got)
	}
}

func TestBlock_List(t *testing.T) {
	out, err := New().Block("- one\n- two\n")
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if !strings.Contains(string(out), "<li>one</li>") {
		t.Fatalf("Block = %q", out)
	}
}

func TestBlock_DropsRawHTML(t *testing.T) {
	out, err := New().Block("hi <script>alert(1)</script>")
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if strings.Contains(string(out), "<script>") {
		t.Fatalf("raw html should be omitted: %q", out)
	}
}

func TestInline_StripsParagraph(t *testing.T) {
	out, err := New().Inline("Talk to *us*")
	if err != nil {
		t.Fatalf("Inline: %v", err)
	}
	if string(out) != "Talk to <em>us</em>" {
		t.Fatalf("Inline = %q", out)
	}
}

func TestInline_KeepsMultipleParagraphs(t *testing.T) {
	out, err := New().Inline("one\n\ntwo")
	if err != nil {
		t.Fatalf("Inline: %v", err)
	}
	if strings.Count(string(out), "<p>") != 2 {
		t.Fatalf("Inline = %q", out)
	}
}

func TestRenderer_Concurrent(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Inline("**x**"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
}
