package bookpipe

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pageSource yields positioned text per page. Implemented by pdfDoc and by
// test fakes.
type pageSource interface {
	PageCount() int
	Fragments(pageNr int) []TextFragment
}

// outlineNode is one embedded bookmark with its destination resolved to a
// 1-based page index (0 when the destination could not be resolved).
type outlineNode struct {
	title string
	page  int
	kids  []outlineNode
}

// pdfDoc wraps one open PDF. pdfcpu supplies validation, page count and the
// outline tree with resolved destinations; ledongthuc/pdf supplies positioned
// text fragments and metadata, which pdfcpu does not expose. Either library
// may reject a document the other accepts, so each failure is survivable on
// its own.
type pdfDoc struct {
	pageCount int
	outline   []outlineNode
	info      string // metadata title, may be empty
	text      *pdf.Reader
	logger    *slog.Logger
}

func openPDF(data []byte, logger *slog.Logger) (*pdfDoc, error) {
	doc := &pdfDoc{logger: logger}

	ctx, structErr := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if structErr == nil {
		doc.pageCount = ctx.PageCount
		bms, err := pdfcpu.Bookmarks(ctx)
		if err != nil {
			logger.Debug("no usable outline", "error", err)
		} else {
			doc.outline = convertBookmarks(bms, 0)
		}
	} else {
		logger.Debug("structural read failed, text reader only", "error", structErr)
	}

	r, textErr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if textErr == nil {
		doc.text = r
		if doc.pageCount == 0 {
			doc.pageCount = r.NumPage()
		}
		doc.info = readInfoTitle(r)
	} else {
		logger.Debug("text reader failed", "error", textErr)
	}

	if doc.pageCount <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrPDFLoad, firstErr(structErr, textErr))
	}
	return doc, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// convertBookmarks maps the pdfcpu bookmark tree onto outlineNodes. Depth is
// capped so adversarial trees cannot blow the stack.
func convertBookmarks(bms []pdfcpu.Bookmark, depth int) []outlineNode {
	if depth > 64 {
		return nil
	}
	nodes := make([]outlineNode, 0, len(bms))
	for _, bm := range bms {
		nodes = append(nodes, outlineNode{
			title: bm.Title,
			page:  bm.PageFrom,
			kids:  convertBookmarks(bm.Kids, depth+1),
		})
	}
	return nodes
}

// readInfoTitle pulls the Title entry from the document information
// dictionary. The underlying reader panics on malformed objects, so the
// lookup is recover-guarded.
func readInfoTitle(r *pdf.Reader) (title string) {
	defer func() {
		if rec := recover(); rec != nil {
			title = ""
		}
	}()
	info := r.Trailer().Key("Info")
	if info.Kind() != pdf.Dict {
		return ""
	}
	t := info.Key("Title")
	if t.Kind() != pdf.String {
		return ""
	}
	return strings.TrimSpace(t.Text())
}

func (d *pdfDoc) PageCount() int { return d.pageCount }

// Fragments returns the positioned text runs of one page. A page that cannot
// be read yields nil, never an error: per-page failures must not abort a
// surrounding scan.
func (d *pdfDoc) Fragments(pageNr int) (frags []TextFragment) {
	if d.text == nil || pageNr < 1 || pageNr > d.text.NumPage() {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Debug("page content unreadable", "page", pageNr, "panic", rec)
			frags = nil
		}
	}()

	page := d.text.Page(pageNr)
	if page.V.IsNull() {
		return nil
	}
	content := page.Content()
	out := make([]TextFragment, 0, len(content.Text))
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		out = append(out, TextFragment{Text: t.S, X: t.X, Y: t.Y, FontSize: t.FontSize})
	}
	return out
}

// extractPageRange materializes plain text for an inclusive page range. Each
// page that yielded text is preceded by a marker line; empty pages contribute
// nothing. Cancellation stops the scan and returns what was accumulated.
func (d *pdfDoc) extractPageRange(ctx context.Context, start, end int) string {
	var sb strings.Builder
	for pageNr := start; pageNr <= end; pageNr++ {
		if ctx.Err() != nil {
			break
		}
		pageText := strings.TrimSpace(joinFragments(d.Fragments(pageNr)))
		if pageText == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- Page %d ---\n", pageNr)
		sb.WriteString(pageText)
	}
	return strings.TrimSpace(sb.String())
}

func joinFragments(frags []TextFragment) string {
	if len(frags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		parts = append(parts, f.Text)
	}
	return strings.Join(parts, " ")
}

// leadingText joins the first maxFrags fragments of a page, the cheap probe
// used for heading detection and offset sampling.
func leadingText(src pageSource, pageNr, maxFrags int) string {
	frags := src.Fragments(pageNr)
	if len(frags) > maxFrags {
		frags = frags[:maxFrags]
	}
	return strings.TrimSpace(joinFragments(frags))
}
