package ingest

import (
	"strings"
	"testing"
)

func TestPlainTextExtractor(t *testing.T) {
	out, err := PlainTextExtractor{}.Extract([]byte("hello world"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello world" {
		t.Errorf("got %q, want %q", out, "hello world")
	}
}

func TestStripHTMLBasic(t *testing.T) {
	out := StripHTML("<p>Hello <b>world</b></p>")
	if !strings.Contains(out, "Hello") || !strings.Contains(out, "world") {
		t.Errorf("missing content: %q", out)
	}
	if strings.Contains(out, "<") {
		t.Error("HTML tags not stripped")
	}
}

func TestStripHTMLEntities(t *testing.T) {
	out := StripHTML("Tom &amp; Jerry &lt;3")
	if !strings.Contains(out, "Tom & Jerry") {
		t.Errorf("entities not decoded: %q", out)
	}
}

func TestStripHTMLScript(t *testing.T) {
	out := StripHTML("<p>Hello</p><script>alert('xss')</script><p>World</p>")
	if strings.Contains(out, "alert") {
		t.Error("script content not stripped")
	}
	if !strings.Contains(out, "Hello") || !strings.Contains(out, "World") {
		t.Error("text content lost")
	}
}

func TestHTMLExtractor(t *testing.T) {
	out, err := HTMLExtractor{}.Extract([]byte("<p>Hello <b>world</b></p>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Hello") || !strings.Contains(out, "world") {
		t.Errorf("missing content: %q", out)
	}
}

func TestMarkdownExtractorHeadings(t *testing.T) {
	out, err := MarkdownExtractor{}.Extract([]byte("# Title\n## Subtitle"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Title") || !strings.Contains(out, "Subtitle") {
		t.Errorf("headings not extracted: %q", out)
	}
	if strings.Contains(out, "#") {
		t.Error("heading markers not stripped")
	}
}

func TestMarkdownExtractorLinks(t *testing.T) {
	out, err := MarkdownExtractor{}.Extract([]byte("Click [here](https://example.com) for more"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "here") {
		t.Error("link text lost")
	}
	if strings.Contains(out, "https://example.com") {
		t.Error("URL not stripped")
	}
}

func TestMarkdownExtractorEmphasis(t *testing.T) {
	out, err := MarkdownExtractor{}.Extract([]byte("This is **bold** and *italic*"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "bold") || !strings.Contains(out, "italic") {
		t.Errorf("emphasis text lost: %q", out)
	}
	if strings.Contains(out, "*") {
		t.Error("emphasis markers not stripped")
	}
}

func TestContentTypeFromExtension(t *testing.T) {
	if ContentTypeFromExtension("md") != TypeMarkdown {
		t.Error("expected TypeMarkdown")
	}
	if ContentTypeFromExtension("html") != TypeHTML {
		t.Error("expected TypeHTML")
	}
	if ContentTypeFromExtension("pdf") != TypePDF {
		t.Error("expected TypePDF")
	}
	if ContentTypeFromExtension("txt") != TypePlainText {
		t.Error("expected TypePlainText")
	}
}

func TestExtractorInterfaceSatisfiedByBuiltins(t *testing.T) {
	var _ Extractor = PlainTextExtractor{}
	var _ Extractor = HTMLExtractor{}
	var _ Extractor = MarkdownExtractor{}
}
