package markdown

import (
	"strings"
	"testing"
)

func TestToHTML(t *testing.T) {
	out := ToHTML("# Title\n\nSome **bold** text.")
	if !strings.Contains(out, "<h1>") {
		t.Errorf("missing heading in %q", out)
	}
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Errorf("missing bold in %q", out)
	}
}

func TestToHTMLTables(t *testing.T) {
	src := "| a | b |\n|---|---|\n| 1 | 2 |"
	out := ToHTML(src)
	if !strings.Contains(out, "<table>") {
		t.Errorf("table extension not applied: %q", out)
	}
}

func TestToHTMLStripsScripts(t *testing.T) {
	out := ToHTML("hello <script>alert(1)</script> world")
	if strings.Contains(out, "<script>") {
		t.Errorf("script survived sanitization: %q", out)
	}
}

func TestSanitize(t *testing.T) {
	out := Sanitize(`<p onclick="evil()">text</p><script>alert(1)</script><img src="x.jpg" loading="lazy">`)
	if strings.Contains(out, "onclick") || strings.Contains(out, "<script>") {
		t.Errorf("unsafe markup survived: %q", out)
	}
	if !strings.Contains(out, "<p>text</p>") {
		t.Errorf("safe markup removed: %q", out)
	}
	if !strings.Contains(out, `loading="lazy"`) {
		t.Errorf("allowed img attribute removed: %q", out)
	}
}

func TestStripTags(t *testing.T) {
	out := StripTags("<p>keep <strong>this</strong> text</p>")
	if out != "keep this text" {
		t.Errorf("StripTags = %q, want plain text", out)
	}
}
