package bookpipe

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// tocIndicators flag a rendered table-of-contents page. Localized variants
// cover the documents we actually see in the wild.
var tocIndicators = []string{
	"table of contents",
	"table des matières",
	"table des matieres",
	"sommaire",
	"inhaltsverzeichnis",
	"índice",
	"contenido",
}

var (
	// A TOC line is a title followed by optional dot leaders and a trailing
	// printed page number.
	tocLineRe      = regexp.MustCompile(`^(.*?)[\s.·…]*(\d{1,4})$`)
	numericTitleRe = regexp.MustCompile(`^\d+$`)
)

// lineYTolerance is the vertical wiggle allowed before two fragments are
// considered separate lines.
const lineYTolerance = 2.0

// tocEntry is one parsed line of a rendered contents page.
type tocEntry struct {
	title string
	page  int // printed page number, before offset correction
}

// tocResult carries the chapter list plus the offset estimation stats that
// feed the discovery quality report.
type tocResult struct {
	chapters      []Chapter
	offset        int
	offsetSamples int // entries probed
	offsetMatches int // entries whose title was found near its printed page
}

// tocChapters finds a rendered table-of-contents page, parses its entries and
// emits offset-corrected chapter ranges. Returns nil when no TOC page exists
// or parsing yields nothing usable.
func (p *Pipeline) tocChapters(ctx context.Context, src pageSource) *tocResult {
	tocPage := findTocPage(ctx, src, p.cfg.TocScanPages)
	if tocPage == 0 {
		return nil
	}
	p.logger.Debug("table of contents located", "page", tocPage)

	lines := groupFragmentLines(src.Fragments(tocPage))
	entries := parseTocLines(lines)
	if len(entries) == 0 {
		return nil
	}

	mains := filterMainTocEntries(entries)
	// A too-aggressive filter means the document does not follow the
	// numbering convention the filter assumes; fall back to every entry.
	if len(mains) < 3 {
		mains = entries
	}

	offset, matches, samples := computePageOffset(ctx, src, mains, tocPage, p.cfg.TocOffsetSamples, p.cfg.TocOffsetWindow)
	// A cancel during probing leaves the offset unverified; the stage reports
	// nothing rather than emitting ranges built on a guessed zero offset.
	if ctx.Err() != nil {
		return nil
	}
	p.logger.Debug("page offset estimated", "offset", offset, "matches", matches, "samples", samples)

	total := src.PageCount()
	var chapters []Chapter
	prevStart := 0
	for _, e := range mains {
		start := e.page + offset
		if start < 1 || start > total || start <= prevStart {
			continue
		}
		chapters = append(chapters, Chapter{
			Title: normalizeTitle(e.title, p.cfg.MaxTitleLen),
			Order: len(chapters) + 1,
			Ref:   PdfRef{StartPage: start, EndPage: total},
		})
		prevStart = start
	}
	if len(chapters) == 0 {
		return nil
	}
	for i := range chapters[:len(chapters)-1] {
		ref := chapters[i].Ref.(PdfRef)
		ref.EndPage = chapters[i+1].Ref.(PdfRef).StartPage - 1
		chapters[i].Ref = ref
	}

	return &tocResult{
		chapters:      chapters,
		offset:        offset,
		offsetSamples: samples,
		offsetMatches: matches,
	}
}

// findTocPage scans at most maxPages leading pages for a contents indicator.
// Returns the 1-based page number, or 0 when none was found.
func findTocPage(ctx context.Context, src pageSource, maxPages int) int {
	limit := src.PageCount()
	if maxPages < limit {
		limit = maxPages
	}
	for pageNr := 1; pageNr <= limit; pageNr++ {
		if ctx.Err() != nil {
			return 0
		}
		lines := groupFragmentLines(src.Fragments(pageNr))
		for _, line := range lines {
			if isTocHeader(line) {
				return pageNr
			}
		}
	}
	return 0
}

func isTocHeader(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	if lower == "contents" {
		return true
	}
	for _, ind := range tocIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}

// groupFragmentLines reassembles positioned fragments into text lines: sort
// top-to-bottom then left-to-right, and start a new line when the vertical
// coordinate moves more than the tolerance.
func groupFragmentLines(frags []TextFragment) []string {
	if len(frags) == 0 {
		return nil
	}
	sorted := make([]TextFragment, len(frags))
	copy(sorted, frags)
	// PDF user space puts the origin at the bottom left, so reading order is
	// descending Y.
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []string
	var cur strings.Builder
	curY := sorted[0].Y
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}
	for _, f := range sorted {
		if math.Abs(f.Y-curY) > lineYTolerance {
			flush()
			curY = f.Y
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(f.Text)
	}
	flush()
	return lines
}

// parseTocLines extracts (title, printed page) pairs. Dot leaders between
// title and page number are stripped; titles that are too short or purely
// numeric are page decorations, not entries.
func parseTocLines(lines []string) []tocEntry {
	var entries []tocEntry
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || isTocHeader(line) {
			continue
		}
		m := tocLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		title := strings.TrimSpace(strings.TrimRight(m[1], " .·…-"))
		if len([]rune(title)) <= 2 || numericTitleRe.MatchString(title) {
			continue
		}
		page, err := strconv.Atoi(m[2])
		if err != nil || page <= 0 {
			continue
		}
		entries = append(entries, tocEntry{title: title, page: page})
	}
	return entries
}

// filterMainTocEntries drops sub-section entries ("2.3 Something") so only
// chapter-level entries remain.
func filterMainTocEntries(entries []tocEntry) []tocEntry {
	var mains []tocEntry
	for _, e := range entries {
		if subSectionRe.MatchString(e.title) {
			continue
		}
		mains = append(mains, e)
	}
	return mains
}

// computePageOffset estimates the single printed-to-physical page correction.
// For up to sampleCount entries it searches a window of pages around the
// printed number for a page whose leading text contains the entry's title;
// the offset is the rounded mean of the successful samples, or zero when none
// succeed. Deterministic for a given document: same samples, same offset.
// The contents page itself is excluded from the search: it mentions every
// entry's title and would poison the estimate.
func computePageOffset(ctx context.Context, src pageSource, entries []tocEntry, tocPage, sampleCount, window int) (offset, matches, samples int) {
	if sampleCount > len(entries) {
		sampleCount = len(entries)
	}
	total := src.PageCount()
	sum := 0
	for _, e := range entries[:sampleCount] {
		samples++
		target := normalizeForMatch(e.title)
		if target == "" {
			continue
		}
		lo := e.page - window
		if lo < 1 {
			lo = 1
		}
		hi := e.page + window
		if hi > total {
			hi = total
		}
		for pageNr := lo; pageNr <= hi; pageNr++ {
			if ctx.Err() != nil {
				return 0, 0, samples
			}
			if pageNr == tocPage {
				continue
			}
			lead := normalizeForMatch(leadingText(src, pageNr, 12))
			if lead != "" && strings.Contains(lead, target) {
				sum += pageNr - e.page
				matches++
				break
			}
		}
	}
	if matches == 0 {
		return 0, 0, samples
	}
	return int(math.Round(float64(sum) / float64(matches))), matches, samples
}

// normalizeForMatch lowercases and strips punctuation so TOC titles can be
// compared against body text despite typographic differences.
func normalizeForMatch(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			sb.WriteByte(' ')
		case r > 127:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
