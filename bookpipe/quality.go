package bookpipe

// Strategy identifies which discovery stage produced a chapter list.
type Strategy string

const (
	StrategySpine         Strategy = "spine"
	StrategyOutline       Strategy = "outline"
	StrategyTocPage       Strategy = "toc-page"
	StrategyHeadingScan   Strategy = "heading-scan"
	StrategyWholeDocument Strategy = "whole-document"
)

// DiscoveryQuality reports how chapter discovery went, so a caller can tell
// a confident outline-backed chapter list from a degraded guess.
type DiscoveryQuality struct {
	Strategy     Strategy `json:"strategy"`
	ChapterCount int      `json:"chapter_count"`
	PageCount    int      `json:"page_count,omitempty"`

	// TOC page-offset estimation stats, set only for the toc-page strategy.
	PageOffset    int `json:"page_offset,omitempty"`
	OffsetSamples int `json:"offset_samples,omitempty"`
	OffsetMatches int `json:"offset_matches,omitempty"`
}

// OffsetConfidence is the fraction of offset probes that located their entry
// in the document body. Zero means the offset silently fell back to 0 and
// page ranges may be systematically shifted.
func (q *DiscoveryQuality) OffsetConfidence() float64 {
	if q.OffsetSamples == 0 {
		return 0
	}
	return float64(q.OffsetMatches) / float64(q.OffsetSamples)
}

// Degraded reports whether the chapter list should be treated as a guess:
// the whole-document fallback fired, or TOC ranges rest on an unverified
// zero offset.
func (q *DiscoveryQuality) Degraded() bool {
	if q.Strategy == StrategyWholeDocument {
		return true
	}
	return q.Strategy == StrategyTocPage && q.OffsetMatches == 0
}
