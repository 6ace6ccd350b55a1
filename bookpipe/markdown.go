package bookpipe

import (
	"context"
	"fmt"
	"strings"
)

// ExtractMarkdown renders one EPUB chapter as Markdown, preserving headings,
// emphasis, links and tables that the plain-text extractor flattens away.
// PDF chapters have no markup to convert; callers get ErrUnsupportedFormat.
func (p *Pipeline) ExtractMarkdown(ctx context.Context, path string, ref ContentRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	er, ok := ref.(EpubRef)
	if !ok {
		return "", fmt.Errorf("%w: markdown rendition needs markup content", ErrUnsupportedFormat)
	}
	if _, err := p.checkFile(path); err != nil {
		return "", err
	}

	raw, err := p.readEPUBEntry(path, er.Href)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrChapterUnavailable, er.Href, err)
	}

	md, err := p.md.ConvertString(string(raw))
	if err != nil {
		// Conversion failures degrade to plain text rather than losing the
		// chapter entirely.
		p.logger.Debug("markdown conversion failed, using plain text", "href", er.Href, "error", err)
		return ExtractHTMLText(raw), nil
	}
	return strings.TrimSpace(md), nil
}
