package bookpipe

import (
	"context"
)

// discoverPDF runs the PDF strategy chain: embedded outline, rendered TOC
// page, content heading scan, whole-document fallback. The first strategy to
// produce chapters wins and later stages never run. A nil chapter list means
// "found nothing" — distinct from a found-but-empty result, which does not
// exist in this chain.
func (p *Pipeline) discoverPDF(ctx context.Context, path string, data []byte) (*Book, error) {
	doc, err := openPDF(data, p.logger)
	if err != nil {
		return nil, err
	}

	book := &Book{
		Path:   path,
		Format: FormatPDF,
		Title:  normalizeTitle(doc.info, p.cfg.MaxTitleLen),
	}
	book.Chapters, book.Quality = p.runPDFStrategies(ctx, doc, doc.outline)
	return book, nil
}

// runPDFStrategies executes the fixed priority chain against a page source
// and an already-flattened outline tree. Cancellation between stages skips
// straight to the terminal fallback, which always succeeds.
func (p *Pipeline) runPDFStrategies(ctx context.Context, src pageSource, outline []outlineNode) ([]Chapter, *DiscoveryQuality) {
	total := src.PageCount()

	if ctx.Err() == nil {
		if chapters := p.outlineChapters(outline, total); len(chapters) > 0 {
			p.logger.Debug("chapters from embedded outline", "count", len(chapters))
			return chapters, &DiscoveryQuality{
				Strategy:     StrategyOutline,
				ChapterCount: len(chapters),
				PageCount:    total,
			}
		}
		p.logger.Debug("outline yielded no chapters, trying rendered TOC")
	}

	if ctx.Err() == nil {
		if res := p.tocChapters(ctx, src); res != nil && len(res.chapters) > 0 {
			p.logger.Debug("chapters from rendered TOC", "count", len(res.chapters), "offset", res.offset)
			return res.chapters, &DiscoveryQuality{
				Strategy:      StrategyTocPage,
				ChapterCount:  len(res.chapters),
				PageCount:     total,
				PageOffset:    res.offset,
				OffsetSamples: res.offsetSamples,
				OffsetMatches: res.offsetMatches,
			}
		}
		p.logger.Debug("no rendered TOC, trying content heading scan")
	}

	if ctx.Err() == nil {
		if chapters := p.headingChapters(ctx, src); len(chapters) > 0 {
			p.logger.Debug("chapters from heading scan", "count", len(chapters))
			return chapters, &DiscoveryQuality{
				Strategy:     StrategyHeadingScan,
				ChapterCount: len(chapters),
				PageCount:    total,
			}
		}
	}

	p.logger.Debug("no chapter structure detected, treating document as one chapter")
	chapters := []Chapter{{
		Title: "Full Document",
		Order: 1,
		Ref:   PdfRef{StartPage: 1, EndPage: total},
	}}
	return chapters, &DiscoveryQuality{
		Strategy:     StrategyWholeDocument,
		ChapterCount: 1,
		PageCount:    total,
	}
}
