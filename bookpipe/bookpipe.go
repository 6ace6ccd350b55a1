// Package bookpipe discovers chapter boundaries in book-like documents and
// materializes chapter content as plain text.
//
// Supported formats:
//   - .epub — package manifest/spine resolution with a title heuristic cascade
//   - .pdf  — embedded outline, rendered table-of-contents page, content
//     heading scan, whole-document fallback, tried in that order
//
// Neither format has a single authoritative notion of "chapter", so PDF
// discovery runs a fixed chain of strategies and stops at the first one that
// produces a non-empty result. EPUB reading order is authoritative and needs
// no fallback chain.
//
// Usage:
//
//	pipe := bookpipe.New(bookpipe.Config{})
//	book, err := pipe.DiscoverChapters(ctx, "/path/to/book.epub")
//	text, err := pipe.ExtractText(ctx, "/path/to/book.epub", book.Chapters[0].Ref)
package bookpipe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// Pipeline is the chapter discovery and extraction engine. It holds no
// per-document state: one Pipeline may serve many documents concurrently.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	md     *converter.Converter
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Detect returns the document format based on file extension.
func (p *Pipeline) Detect(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".epub":
		return FormatEPUB, nil
	case ".pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// DiscoverChapters parses a document and returns its ordered chapter list.
// Chapters are sorted by Order; PDF page ranges are contiguous and
// non-overlapping, with the last chapter ending on the document's last page.
func (p *Pipeline) DiscoverChapters(ctx context.Context, path string) (*Book, error) {
	format, err := p.checkFile(path)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("discovering chapters", "path", path, "format", format)

	switch format {
	case FormatEPUB:
		return p.discoverEPUB(ctx, path)
	case FormatPDF:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return p.discoverPDF(ctx, path, data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ExtractText materializes normalized plain text for one chapter.
// EPUB chapters are content documents converted to text; PDF chapters are
// page ranges with a "--- Page N ---" marker before each non-empty page.
func (p *Pipeline) ExtractText(ctx context.Context, path string, ref ContentRef) (string, error) {
	if _, err := p.checkFile(path); err != nil {
		return "", err
	}

	switch r := ref.(type) {
	case EpubRef:
		raw, err := p.readEPUBEntry(path, r.Href)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrChapterUnavailable, r.Href, err)
		}
		return ExtractHTMLText(raw), nil
	case PdfRef:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		doc, err := openPDF(data, p.logger)
		if err != nil {
			return "", err
		}
		start, end := clampRange(r.StartPage, r.EndPage, doc.pageCount)
		return doc.extractPageRange(ctx, start, end), nil
	default:
		return "", fmt.Errorf("%w: unknown content ref %T", ErrUnsupportedFormat, ref)
	}
}

// checkFile stats the document and enforces the size limit.
func (p *Pipeline) checkFile(path string) (Format, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > p.cfg.MaxFileSize {
		return "", fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), p.cfg.MaxFileSize)
	}
	return p.Detect(path)
}

func clampRange(start, end, total int) (int, int) {
	if start < 1 {
		start = 1
	}
	if end > total {
		end = total
	}
	return start, end
}

// SupportedFormats returns all supported format extensions.
func SupportedFormats() []string {
	return []string{"epub", "pdf"}
}
