package bookpipe

import (
	"bytes"
	stdhtml "html"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockAtoms insert a newline boundary around their subtree.
var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Br: true,
	atom.Li: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Td: true, atom.Th: true, atom.Blockquote: true,
}

// inlineAtoms append a trailing space after their subtree so adjacent runs
// do not fuse into one word.
var inlineAtoms = map[atom.Atom]bool{
	atom.Span: true, atom.A: true, atom.Em: true, atom.I: true,
	atom.B: true, atom.Strong: true, atom.U: true,
}

var (
	horizSpaceRe   = regexp.MustCompile(`[ \t\f\v]+`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
	scriptStyleRe  = regexp.MustCompile(`(?is)<(?:script|style|noscript)\b[^>]*>.*?</(?:script|style|noscript)>`)
	tagRe          = regexp.MustCompile(`(?s)<[^>]*>`)
)

// ExtractHTMLText converts markup into normalized plain text: block elements
// become newline boundaries, inline elements become word boundaries, and
// style/script subtrees are dropped. For markup whose tree yields no text at
// all it falls back to flattened text, then direct-child text, then a regex
// tag strip of the raw source, so non-empty input never produces an empty
// result.
func ExtractHTMLText(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}

	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return normalizeExtractedText(stripTags(raw))
	}

	var sb strings.Builder
	walkText(doc, &sb)
	if text := normalizeExtractedText(sb.String()); text != "" {
		return text
	}
	if text := normalizeExtractedText(flattenText(doc)); text != "" {
		return text
	}
	if text := normalizeExtractedText(directChildText(doc)); text != "" {
		return text
	}
	return normalizeExtractedText(stripTags(raw))
}

func walkText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Style, atom.Script, atom.Noscript:
			return
		}
	}

	block := n.Type == html.ElementNode && blockAtoms[n.DataAtom]
	inline := n.Type == html.ElementNode && inlineAtoms[n.DataAtom]

	// No leading newline on empty output.
	if block && sb.Len() > 0 {
		sb.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, sb)
	}
	if block && sb.Len() > 0 {
		sb.WriteByte('\n')
	}
	if inline && sb.Len() > 0 && !endsInWhitespace(sb.String()) {
		sb.WriteByte(' ')
	}
}

func endsInWhitespace(s string) bool {
	switch s[len(s)-1] {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// flattenText collects every descendant text node, skipping style/script.
func flattenText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Style, atom.Script, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// directChildText collects only the immediate text-node children of every
// element. Catches non-standard trees where text hangs off unexpected nodes.
func directChildText(root *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.TextNode {
					continue
				}
				text := strings.TrimSpace(c.Data)
				if text == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String()
}

// stripTags is the last-resort extraction: drop script/style bodies, replace
// every tag with a newline, collapse HTML entities.
func stripTags(raw []byte) string {
	text := scriptStyleRe.ReplaceAllString(string(raw), "\n")
	text = tagRe.ReplaceAllString(text, "\n")
	return stdhtml.UnescapeString(text)
}

// normalizeExtractedText applies the output contract: unix line endings, at
// most one blank line between paragraphs, single spaces within lines, no
// per-line or outer padding.
func normalizeExtractedText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizSpaceRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	text = strings.Join(lines, "\n")

	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
