package bookpipe

import (
	"regexp"
	"sort"
	"strings"
)

// flatOutlineItem is the page-resolved projection of one bookmark.
type flatOutlineItem struct {
	title  string
	page   int
	level  int
	parent string
}

// canonicalSections are headings that always count as main chapters, whatever
// the numbering scheme of the rest of the outline looks like.
var canonicalSections = map[string]bool{
	"introduction":    true,
	"conclusion":      true,
	"preface":         true,
	"epilogue":        true,
	"appendix":        true,
	"bibliography":    true,
	"references":      true,
	"index":           true,
	"foreword":        true,
	"acknowledgments": true,
}

var (
	outlineChapterRe = regexp.MustCompile(`(?i)^chapter\s+\d+\b`)
	subSectionRe     = regexp.MustCompile(`^\d+\.\d+`)
	bareSectionRe    = regexp.MustCompile(`^\d+\.(?:[^0-9]|$)`)
)

// outlineChapters turns the embedded bookmark tree into a chapter list.
// Returns nil when there is no outline or it produces zero chapters, which
// hands control to the next discovery strategy.
func (p *Pipeline) outlineChapters(outline []outlineNode, totalPages int) []Chapter {
	items := flattenOutline(outline)
	if len(items) == 0 {
		return nil
	}

	mains := classifyMainChapters(items)
	if len(mains) == 0 {
		for _, it := range items {
			if it.level == 0 {
				mains = append(mains, it)
			}
		}
	}
	if len(mains) == 0 {
		return nil
	}

	var chapters []Chapter
	for i, it := range mains {
		start := it.page
		if start > totalPages {
			continue
		}
		end := totalPages
		if i+1 < len(mains) {
			end = mains[i+1].page - 1
		}
		// Two bookmarks on the same page collapse into one chapter.
		if end < start {
			continue
		}
		chapters = append(chapters, Chapter{
			Title: normalizeTitle(it.title, p.cfg.MaxTitleLen),
			Order: len(chapters) + 1,
			Ref:   PdfRef{StartPage: start, EndPage: end},
		})
	}
	return chapters
}

type outlineFrame struct {
	node   *outlineNode
	level  int
	parent string
}

// flattenOutline walks the bookmark tree with an explicit stack, dropping
// entries whose destination never resolved, and sorts the result by page.
// The explicit stack keeps deeply nested adversarial trees from recursing.
func flattenOutline(roots []outlineNode) []flatOutlineItem {
	stack := make([]outlineFrame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, outlineFrame{node: &roots[i]})
	}

	var items []flatOutlineItem
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		title := strings.TrimSpace(f.node.title)
		if f.node.page > 0 && title != "" {
			items = append(items, flatOutlineItem{
				title:  title,
				page:   f.node.page,
				level:  f.level,
				parent: f.parent,
			})
		}
		kids := f.node.kids
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, outlineFrame{node: &kids[i], level: f.level + 1, parent: title})
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].page < items[j].page })
	return items
}

// classifyMainChapters picks the items that start a chapter. The rule set is
// chosen from what the outline actually contains: explicit "Chapter N"
// titles beat numbering-scheme inference, which beats plain nesting depth.
// Canonical section names are always main chapters.
func classifyMainChapters(items []flatOutlineItem) []flatOutlineItem {
	hasChapterN := false
	hasSubSection := false
	for _, it := range items {
		if outlineChapterRe.MatchString(it.title) {
			hasChapterN = true
		}
		if subSectionRe.MatchString(it.title) {
			hasSubSection = true
		}
	}

	var mains []flatOutlineItem
	for _, it := range items {
		switch {
		case isCanonicalSection(it.title):
			mains = append(mains, it)
		case hasChapterN:
			if outlineChapterRe.MatchString(it.title) {
				mains = append(mains, it)
			}
		case hasSubSection:
			if it.level == 0 || bareSectionRe.MatchString(it.title) {
				mains = append(mains, it)
			}
		default:
			if it.level == 0 {
				mains = append(mains, it)
			}
		}
	}
	return mains
}

func isCanonicalSection(title string) bool {
	return canonicalSections[strings.ToLower(strings.TrimSpace(title))]
}
