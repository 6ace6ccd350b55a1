package bookpipe

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleSeparators mark "Title - Author" style patterns; a candidate title
// containing one is rejected so the author suffix never leaks into the
// chapter list.
var titleSeparators = []string{" - ", " – ", " — ", " | "}

var chapterFileRe = regexp.MustCompile(`(?i)(chapter|ch(?:ap)?\d+|part)`)

var titleCaser = cases.Title(language.English)

// chapterTitle derives a display title for one content document. The cascade
// tries, in order: a heading under <body>, a heading anywhere, a short bold
// run, a chapter-like file name, the <title> element, and finally the generic
// "Chapter {n}". It never returns an empty string, even for content that
// cannot be parsed at all.
func (p *Pipeline) chapterTitle(content []byte, href string, order int) string {
	var doc *html.Node
	if len(content) > 0 {
		doc, _ = html.Parse(bytes.NewReader(content))
	}

	if doc != nil {
		if t := firstHeading(findBody(doc)); t != "" {
			return t
		}
		if t := firstHeading(doc); t != "" {
			return t
		}
		if t := firstBoldRun(doc); t != "" {
			return t
		}
	}
	if t := titleFromFilename(href); t != "" {
		return t
	}
	if doc != nil {
		if t := documentTitle(doc); t != "" {
			return t
		}
	}
	return fmt.Sprintf("Chapter %d", order)
}

func findBody(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if body := findBody(c); body != nil {
			return body
		}
	}
	return nil
}

// firstHeading returns the text of the first h1..h6 element in the subtree.
func firstHeading(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			if t := strings.Join(strings.Fields(flattenText(n)), " "); t != "" {
				return t
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := firstHeading(c); t != "" {
			return t
		}
	}
	return ""
}

// firstBoldRun returns the first <b>/<strong> text that looks like a title:
// non-empty, at most 100 characters, and free of separator patterns.
func firstBoldRun(n *html.Node) string {
	if n.Type == html.ElementNode && (n.DataAtom == atom.B || n.DataAtom == atom.Strong) {
		t := strings.Join(strings.Fields(flattenText(n)), " ")
		if t != "" && len([]rune(t)) <= 100 && !containsSeparator(t) {
			return t
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := firstBoldRun(c); t != "" {
			return t
		}
	}
	return ""
}

// titleFromFilename extracts a chapter-like token from the file name:
// "chap03.xhtml" becomes "Chap03", "part_two.html" becomes "Part Two".
func titleFromFilename(href string) string {
	stem := path.Base(href)
	if i := strings.LastIndexByte(stem, '.'); i > 0 {
		stem = stem[:i]
	}
	if !chapterFileRe.MatchString(stem) {
		return ""
	}
	stem = strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(stem)
	return titleCaser.String(strings.Join(strings.Fields(stem), " "))
}

// documentTitle returns the <title> text unless it carries a separator
// pattern or exceeds 100 characters.
func documentTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		t := strings.Join(strings.Fields(flattenText(n)), " ")
		if t != "" && len([]rune(t)) < 100 && !containsSeparator(t) {
			return t
		}
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := documentTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func containsSeparator(s string) bool {
	for _, sep := range titleSeparators {
		if strings.Contains(s, sep) {
			return true
		}
	}
	return false
}

// normalizeTitle collapses whitespace and truncates to maxLen runes, with an
// ellipsis marker when truncated.
func normalizeTitle(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if maxLen > 0 && len(runes) > maxLen {
		s = strings.TrimSpace(string(runes[:maxLen])) + "…"
	}
	return s
}
