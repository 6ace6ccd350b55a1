package bookpipe

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>A Test Book</dc:title>
  </metadata>
  <manifest>
    <item id="c1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
    <item id="img" href="cover.png" media-type="image/png"/>
  </manifest>
  <spine>
    <itemref idref="c1"/>
    <itemref idref="css"/>
    <itemref idref="img"/>
    <itemref idref="c2"/>
  </spine>
</package>`

// writeEPUB builds a minimal EPUB package in a temp dir.
func writeEPUB(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	w.Close()
	f.Close()
	return path
}

func TestDiscoverEPUB_SpineOrder(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"META-INF/container.xml": testContainerXML,
		"OEBPS/content.opf":      testOPF,
		"OEBPS/ch1.xhtml":        `<html><body><h1>First Chapter</h1><p>text</p></body></html>`,
		"OEBPS/ch2.xhtml":        `<html><body><h1>Second Chapter</h1><p>text</p></body></html>`,
		"OEBPS/style.css":        `p { margin: 0 }`,
	})

	pipe := New(Config{})
	book, err := pipe.DiscoverChapters(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	if book.Title != "A Test Book" {
		t.Errorf("book title = %q", book.Title)
	}
	// One chapter per XHTML spine item; css and image skipped.
	if len(book.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(book.Chapters))
	}
	if book.Chapters[0].Title != "First Chapter" || book.Chapters[1].Title != "Second Chapter" {
		t.Errorf("chapter titles: %q, %q", book.Chapters[0].Title, book.Chapters[1].Title)
	}
	if ref := book.Chapters[0].Ref.(EpubRef); ref.Href != "OEBPS/ch1.xhtml" {
		t.Errorf("chapter 1 href = %q", ref.Href)
	}
	for i, ch := range book.Chapters {
		if ch.Order != i+1 {
			t.Errorf("chapter %d order = %d", i, ch.Order)
		}
	}
	if book.Quality == nil || book.Quality.Strategy != StrategySpine {
		t.Errorf("quality = %+v", book.Quality)
	}
}

func TestDiscoverEPUB_MissingContainer(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"OEBPS/ch1.xhtml": `<html><body><p>text</p></body></html>`,
	})

	pipe := New(Config{})
	_, err := pipe.DiscoverChapters(context.Background(), path)
	if !errors.Is(err, ErrMissingContainer) {
		t.Errorf("expected ErrMissingContainer, got %v", err)
	}
}

func TestDiscoverEPUB_MissingPackageDocument(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"META-INF/container.xml": testContainerXML,
	})

	pipe := New(Config{})
	_, err := pipe.DiscoverChapters(context.Background(), path)
	if !errors.Is(err, ErrMissingPackageDocument) {
		t.Errorf("expected ErrMissingPackageDocument, got %v", err)
	}
}

func TestDiscoverEPUB_BrokenChapterStillListed(t *testing.T) {
	// A spine item whose content is missing yields a placeholder chapter,
	// not a discovery failure.
	path := writeEPUB(t, map[string]string{
		"META-INF/container.xml": testContainerXML,
		"OEBPS/content.opf":      testOPF,
		"OEBPS/ch1.xhtml":        `<html><body><h1>First Chapter</h1></body></html>`,
		// ch2.xhtml intentionally absent.
	})

	pipe := New(Config{})
	book, err := pipe.DiscoverChapters(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(book.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(book.Chapters))
	}
	if book.Chapters[1].Title == "" {
		t.Error("placeholder chapter must still carry a title")
	}
}

func TestDiscoverEPUB_NCXTitles(t *testing.T) {
	opf := `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>NCX Book</dc:title></metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="c1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="c1"/><itemref idref="c2"/></spine>
</package>`
	ncx := `<?xml version="1.0"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="n1"><navLabel><text>The Proper Title</text></navLabel><content src="ch1.xhtml"/></navPoint>
    <navPoint id="n2"><navLabel><text>Another Proper Title</text></navLabel><content src="ch2.xhtml#start"/></navPoint>
  </navMap>
</ncx>`
	path := writeEPUB(t, map[string]string{
		"META-INF/container.xml": testContainerXML,
		"OEBPS/content.opf":      opf,
		"OEBPS/toc.ncx":          ncx,
		"OEBPS/ch1.xhtml":        `<html><body><h1>Heuristic Heading</h1></body></html>`,
		"OEBPS/ch2.xhtml":        `<html><body><p>no heading</p></body></html>`,
	})

	pipe := New(Config{})
	book, err := pipe.DiscoverChapters(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if book.Chapters[0].Title != "The Proper Title" {
		t.Errorf("NCX label should beat the heading heuristic, got %q", book.Chapters[0].Title)
	}
	if book.Chapters[1].Title != "Another Proper Title" {
		t.Errorf("fragment in NCX src should be stripped, got %q", book.Chapters[1].Title)
	}
}

func TestExtractText_EPUBChapter(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"META-INF/container.xml": testContainerXML,
		"OEBPS/content.opf":      testOPF,
		"OEBPS/ch1.xhtml":        `<html><body><h1>T</h1><p>One.</p><p>Two.</p></body></html>`,
		"OEBPS/ch2.xhtml":        `<html><body><p>x</p></body></html>`,
	})

	pipe := New(Config{})
	text, err := pipe.ExtractText(context.Background(), path, EpubRef{Href: "OEBPS/ch1.xhtml"})
	if err != nil {
		t.Fatal(err)
	}
	if text != "T\n\nOne.\n\nTwo." {
		t.Errorf("got %q", text)
	}

	// Unknown href fails per-chapter, with the sentinel.
	_, err = pipe.ExtractText(context.Background(), path, EpubRef{Href: "OEBPS/nope.xhtml"})
	if !errors.Is(err, ErrChapterUnavailable) {
		t.Errorf("expected ErrChapterUnavailable, got %v", err)
	}
}

func TestExtractMarkdown_EPUBChapter(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"META-INF/container.xml": testContainerXML,
		"OEBPS/content.opf":      testOPF,
		"OEBPS/ch1.xhtml":        `<html><body><h1>Heading</h1><p>Some <strong>bold</strong> text.</p></body></html>`,
		"OEBPS/ch2.xhtml":        `<html><body><p>x</p></body></html>`,
	})

	pipe := New(Config{})
	md, err := pipe.ExtractMarkdown(context.Background(), path, EpubRef{Href: "OEBPS/ch1.xhtml"})
	if err != nil {
		t.Fatal(err)
	}
	if md == "" {
		t.Fatal("expected markdown output")
	}

	// PDF refs have no markup to convert.
	_, err = pipe.ExtractMarkdown(context.Background(), path, PdfRef{StartPage: 1, EndPage: 2})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestReadArchiveEntry_CaseInsensitive(t *testing.T) {
	path := writeEPUB(t, map[string]string{
		"OEBPS/Chapter1.XHTML": "<p>hi</p>",
	})
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	data, err := readArchiveEntry(&r.Reader, "OEBPS/chapter1.xhtml")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<p>hi</p>" {
		t.Errorf("got %q", data)
	}
}

func TestResolveHref(t *testing.T) {
	tests := []struct {
		base, href, want string
	}{
		{"OEBPS", "ch1.xhtml", "OEBPS/ch1.xhtml"},
		{"OEBPS", "../images/x.png", "images/x.png"},
		{".", "ch1.xhtml", "ch1.xhtml"},
		{"", "ch1.xhtml", "ch1.xhtml"},
		{"a/b", "c/d.xhtml", "a/b/c/d.xhtml"},
	}
	for _, tt := range tests {
		if got := resolveHref(tt.base, tt.href); got != tt.want {
			t.Errorf("resolveHref(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.want)
		}
	}
}
