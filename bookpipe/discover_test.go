package bookpipe

import (
	"context"
	"testing"
)

func TestRunPDFStrategies_OutlineWins(t *testing.T) {
	p := newTestPipeline()
	src := &recordingPages{fakePages: fakePages{pages: [][]TextFragment{
		pageOfLines("Contents", "Alpha 2"), // a TOC page that must never be read
		pageOfLines("Alpha"),
		pageOfLines("Beta"),
	}}}
	outline := []outlineNode{
		{title: "Alpha", page: 1},
		{title: "Beta", page: 3},
	}

	chapters, quality := p.runPDFStrategies(context.Background(), src, outline)
	if quality.Strategy != StrategyOutline {
		t.Fatalf("strategy = %q", quality.Strategy)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	// First strategy won, so no page content was ever touched.
	if src.fragmentCalls != 0 {
		t.Errorf("outline discovery read %d pages of content", src.fragmentCalls)
	}
}

func TestRunPDFStrategies_TocFallback(t *testing.T) {
	p := newTestPipeline()
	src := &fakePages{pages: [][]TextFragment{
		pageOfLines("Contents", "Alpha 2", "Beta 4", "Gamma 6"),
		pageOfLines("Alpha", "body"),
		pageOfLines("body"),
		pageOfLines("Beta", "body"),
		pageOfLines("body"),
		pageOfLines("Gamma", "body"),
	}}

	chapters, quality := p.runPDFStrategies(context.Background(), src, nil)
	if quality.Strategy != StrategyTocPage {
		t.Fatalf("strategy = %q", quality.Strategy)
	}
	if quality.PageOffset != 0 || quality.OffsetMatches != 3 {
		t.Errorf("offset=%d matches=%d", quality.PageOffset, quality.OffsetMatches)
	}
	if len(chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(chapters))
	}
	if quality.Degraded() {
		t.Error("verified TOC offset must not report degraded")
	}
}

func TestRunPDFStrategies_HeadingFallback(t *testing.T) {
	p := newTestPipeline()
	src := &fakePages{pages: [][]TextFragment{
		pageOfLines("cover"),
		pageOfLines("Chapter 1", "body"),
		pageOfLines("Chapter 2", "body"),
	}}

	chapters, quality := p.runPDFStrategies(context.Background(), src, nil)
	if quality.Strategy != StrategyHeadingScan {
		t.Fatalf("strategy = %q", quality.Strategy)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
}

func TestRunPDFStrategies_WholeDocumentFallback(t *testing.T) {
	p := newTestPipeline()
	src := &fakePages{pages: [][]TextFragment{
		pageOfLines("nothing"),
		pageOfLines("chapter-like"),
		pageOfLines("here"),
	}}

	chapters, quality := p.runPDFStrategies(context.Background(), src, nil)
	if quality.Strategy != StrategyWholeDocument {
		t.Fatalf("strategy = %q", quality.Strategy)
	}
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
	ref := chapters[0].Ref.(PdfRef)
	if ref.StartPage != 1 || ref.EndPage != 3 {
		t.Errorf("range = %d-%d, want 1-3", ref.StartPage, ref.EndPage)
	}
	if chapters[0].Title != "Full Document" {
		t.Errorf("title = %q", chapters[0].Title)
	}
	if !quality.Degraded() {
		t.Error("whole-document fallback must report degraded")
	}
}

func TestRunPDFStrategies_Canceled(t *testing.T) {
	p := newTestPipeline()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakePages{pages: [][]TextFragment{
		pageOfLines("Chapter 1", "body"),
	}}
	outline := []outlineNode{{title: "Alpha", page: 1}}

	chapters, quality := p.runPDFStrategies(ctx, src, outline)
	if quality.Strategy != StrategyWholeDocument {
		t.Fatalf("canceled run must fall through to whole-document, got %q", quality.Strategy)
	}
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
}

func TestRunPDFStrategies_CanceledMidToc(t *testing.T) {
	p := newTestPipeline()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancellation fires while the TOC stage probes its first body page; the
	// chain must fall through to the terminal fallback instead of reporting a
	// TOC result with an unverified offset.
	src := &cancelOnPageRead{
		fakePages: fakePages{pages: [][]TextFragment{
			pageOfLines("Contents", "Alpha 2", "Beta 3", "Gamma 4"),
			pageOfLines("Alpha", "body"),
			pageOfLines("Beta", "body"),
			pageOfLines("Gamma", "body"),
		}},
		cancel: cancel,
		page:   2,
	}

	chapters, quality := p.runPDFStrategies(ctx, src, nil)
	if quality.Strategy != StrategyWholeDocument {
		t.Fatalf("strategy = %q, want %q", quality.Strategy, StrategyWholeDocument)
	}
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
	if ref := chapters[0].Ref.(PdfRef); ref.StartPage != 1 || ref.EndPage != 4 {
		t.Errorf("range = %d-%d, want 1-4", ref.StartPage, ref.EndPage)
	}
}

// Whatever strategy fires, the resulting page ranges partition the document:
// first chapter exists, ranges never overlap, last range ends on the last page.
func TestRunPDFStrategies_RangesPartitionDocument(t *testing.T) {
	p := newTestPipeline()
	sources := map[string]struct {
		src     pageSource
		outline []outlineNode
	}{
		"outline": {
			src: &fakePages{pages: make([][]TextFragment, 12)},
			outline: []outlineNode{
				{title: "One", page: 2},
				{title: "Two", page: 7},
			},
		},
		"headings": {
			src: &fakePages{pages: [][]TextFragment{
				pageOfLines("Chapter 1"),
				pageOfLines("text"),
				pageOfLines("Chapter 2"),
				pageOfLines("text"),
			}},
		},
		"fallback": {
			src: &fakePages{pages: make([][]TextFragment, 5)},
		},
	}

	for name, tc := range sources {
		t.Run(name, func(t *testing.T) {
			chapters, _ := p.runPDFStrategies(context.Background(), tc.src, tc.outline)
			if len(chapters) == 0 {
				t.Fatal("no chapters")
			}
			total := tc.src.PageCount()
			prevEnd := 0
			for i, ch := range chapters {
				ref := ch.Ref.(PdfRef)
				if ref.StartPage <= prevEnd {
					t.Errorf("chapter %d overlaps previous: start %d, prev end %d", i, ref.StartPage, prevEnd)
				}
				if ref.EndPage < ref.StartPage {
					t.Errorf("chapter %d inverted range %d-%d", i, ref.StartPage, ref.EndPage)
				}
				prevEnd = ref.EndPage
			}
			if prevEnd != total {
				t.Errorf("last chapter ends at %d, document has %d pages", prevEnd, total)
			}
		})
	}
}
