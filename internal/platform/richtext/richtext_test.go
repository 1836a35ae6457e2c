package richtext

import (
	"strings"
	"testing"
)

func TestRenderMarkdown(t *testing.T) {
	r := New()

	html, err := r.Render("## Remembrance\n\nThe **village** square.\n\n[source](https://example.org)")
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	for _, want := range []string{"<h2", "Remembrance</h2>", "<strong>village</strong>", `rel="nofollow"`} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in %q", want, html)
		}
	}
}

func TestRenderStripsScripts(t *testing.T) {
	r := New()

	html, err := r.Render("hello <script>alert(1)</script>\n\n<img src=x onerror=alert(1)>")
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if strings.Contains(html, "<script") || strings.Contains(html, "onerror") {
		t.Fatalf("expected unsafe markup to be removed, got %q", html)
	}
}

func TestRenderBlank(t *testing.T) {
	html, err := New().Render("  \n ")
	if err != nil || html != "" {
		t.Fatalf("expected empty output, got %q %v", html, err)
	}
}

func TestSanitizeKeepsFigures(t *testing.T) {
	out := New().Sanitize(`<figure class="wide"><img src="https://example.org/a.jpg" loading="lazy"><figcaption>Shrine</figcaption></figure>`)
	if !strings.Contains(out, `<figure class="wide">`) || !strings.Contains(out, `loading="lazy"`) {
		t.Fatalf("expected figure markup to survive, got %q", out)
	}
}
