package bookpipe

import (
	"context"
	"regexp"
	"strings"
)

// Heading patterns in priority order. Sub-sections are tested first and
// excluded so "2.3 Memory Layout" never opens a chapter.
var (
	headingSubRe     = regexp.MustCompile(`(?i)^(?:\d+\.\d+|section\s+\d+\.\d+)`)
	headingChapterRe = regexp.MustCompile(`(?i)^(?:chapter|chap\.?)\s+(\d+|[ivxlcdm]+)\b`)
	headingPartRe    = regexp.MustCompile(`(?i)^part\s+(\d+|[ivxlcdm]+)\b`)
	headingNumberRe  = regexp.MustCompile(`^(\d+)\.\s+\S`)
)

// headingHit is one page whose leading text looks like a chapter heading.
type headingHit struct {
	title    string
	page     int
	token    string  // dedup key: chapter number, part number or section name
	fontSize float64 // largest leading font observed, auxiliary signal only
}

// headingChapters is the last-resort detector: scan every page's leading
// text for heading patterns. O(pages) by nature, which is why it runs after
// the outline and TOC strategies. Returns nil when nothing matches or the
// scan is canceled mid-way.
func (p *Pipeline) headingChapters(ctx context.Context, src pageSource) []Chapter {
	hits := scanHeadings(ctx, src, p.cfg.HeadingFragments)
	if len(hits) == 0 {
		return nil
	}

	total := src.PageCount()
	chapters := make([]Chapter, 0, len(hits))
	for i, hit := range hits {
		end := total
		if i+1 < len(hits) {
			end = hits[i+1].page - 1
		}
		chapters = append(chapters, Chapter{
			Title: normalizeTitle(hit.title, p.cfg.MaxTitleLen),
			Order: i + 1,
			Ref:   PdfRef{StartPage: hit.page, EndPage: end},
		})
	}
	return chapters
}

// scanHeadings inspects the first leadFrags fragments of every page. A
// chapter-number token seen once is never recorded again: wrapped or repeated
// headings (running heads, drop folios) would otherwise duplicate chapters.
func scanHeadings(ctx context.Context, src pageSource, leadFrags int) []headingHit {
	seen := make(map[string]bool)
	var hits []headingHit
	for pageNr := 1; pageNr <= src.PageCount(); pageNr++ {
		if ctx.Err() != nil {
			// Cancellation degrades the whole stage to "found nothing".
			return nil
		}
		frags := src.Fragments(pageNr)
		if len(frags) == 0 {
			continue
		}
		lead := frags
		if len(lead) > leadFrags {
			lead = lead[:leadFrags]
		}
		text := strings.TrimSpace(joinFragments(lead))
		if text == "" || headingSubRe.MatchString(text) {
			continue
		}
		title, token := matchHeading(text)
		if token == "" {
			// A canonical section heading stands alone on its line, so it is
			// tested against the first fragment only, not the joined lead.
			if name := canonicalHeading(frags[0].Text); name != "" {
				title, token = name, strings.ToLower(name)
			}
		}
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true

		maxFont := 0.0
		for _, f := range lead {
			if f.FontSize > maxFont {
				maxFont = f.FontSize
			}
		}
		hits = append(hits, headingHit{title: title, page: pageNr, token: token, fontSize: maxFont})
	}
	return hits
}

// matchHeading tests the leading text against the main-chapter patterns in
// priority order and returns a display title plus a dedup token. An empty
// token means no pattern matched.
func matchHeading(text string) (title, token string) {
	if m := headingChapterRe.FindStringSubmatch(text); m != nil {
		return m[0], "chapter " + strings.ToLower(m[1])
	}
	if m := headingPartRe.FindStringSubmatch(text); m != nil {
		return m[0], "part " + strings.ToLower(m[1])
	}
	if m := headingNumberRe.FindStringSubmatch(text); m != nil {
		return text, "section " + m[1]
	}
	if name := canonicalHeading(text); name != "" {
		return name, strings.ToLower(name)
	}
	return "", ""
}

// canonicalHeading matches text that is, in its entirety, one canonical
// section name ("Index", "Bibliography", ...) aside from trailing
// punctuation. "Index of plates" is body text, not an Index heading.
func canonicalHeading(text string) string {
	word := strings.TrimSpace(text)
	word = strings.TrimRight(word, ".,:;")
	if canonicalSections[strings.ToLower(word)] {
		return word
	}
	return ""
}
