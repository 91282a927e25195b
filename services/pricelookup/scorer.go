package pricelookup

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/RLAlpha49/shelfarc/lib/htmlutil"
	"github.com/RLAlpha49/shelfarc/lib/textmatch"

	"github.com/PuerkitoBio/goquery"
)

// scoring caps and weights. the row cap bounds CPU cost against an
// attacker-controllable page size.
const (
	maxScoredRows = 16

	subtitleWeight  = 0.35
	baseTitleWeight = 0.25

	prefixPenaltyStep     = 0.15
	prefixPenaltyCap      = 0.45
	formatConflictPenalty = 0.4
	extraTokenPenaltyStep = 0.05
	extraTokenPenaltyCap  = 0.35
	volumeMismatchPenalty = 0.8

	strictAcceptThreshold   = 0.55
	requiredAcceptThreshold = 0.75
	baseAcceptThreshold     = 0.9

	// a candidate without the exact volume needs near-perfect series
	// coverage to survive when another candidate has the exact volume
	baseCoverageBypass = 0.98
)

// ScoredCandidate is one scored result row. Created in a single scoring
// pass, immutable afterwards.
type ScoredCandidate struct {
	Title            string
	StrictSimilarity float64
	RequiredCoverage float64
	// MatchScore is max(StrictSimilarity, RequiredCoverage): the union
	// of a strict and a lenient criterion.
	MatchScore       float64
	BaseCoverage     float64
	SubtitleCoverage float64

	PrefixPenalty         float64
	FormatPenalty         float64
	ExtraTokenPenalty     float64
	VolumeMismatchPenalty float64

	CombinedScore  float64
	HasVolumeMatch bool

	ProductURL string
	ImageURL   string

	row *goquery.Selection
	pos int
}

// Eligible reports whether the candidate clears the acceptance gate on at
// least one of its base scores. Returning a wrong price is worse than
// returning no price, so only eligible candidates may ever be selected.
func (c ScoredCandidate) Eligible() bool {
	return c.StrictSimilarity >= strictAcceptThreshold ||
		c.RequiredCoverage >= requiredAcceptThreshold ||
		c.BaseCoverage >= baseAcceptThreshold
}

type resultRow struct {
	title string
	sel   *goquery.Selection
	pos   int
}

// parseResultRows isolates the search-results region and extracts the
// first maxScoredRows non-sponsored rows with a usable display title. Rows
// that fail title extraction are skipped rather than aborting the run.
func parseResultRows(doc *goquery.Document) ([]resultRow, error) {
	region := doc.Find("div.s-main-slot, div.s-result-list")
	if region.Length() == 0 {
		return nil, ErrNoResults{}
	}

	var rows []resultRow
	region.Find(`div[data-component-type="s-search-result"]`).
		EachWithBreak(func(i int, row *goquery.Selection) bool {
			if row.Find(`[data-component-type="sp-sponsored-result"], .puis-sponsored-label-text`).Length() > 0 {
				return true
			}
			title := htmlutil.FirstText(row,
				"h2 a span",
				"h2 span",
				"h2 a",
				"span.a-size-medium",
				"span.a-text-normal",
			)
			if title == "" {
				return true
			}
			rows = append(rows, resultRow{title: title, sel: row, pos: i})
			return len(rows) < maxScoredRows
		})

	if len(rows) == 0 {
		return nil, ErrNoResults{}
	}
	return rows, nil
}

func queryVocabulary(sctx SearchContext) map[string]struct{} {
	vocab := textmatch.TokenSet(textmatch.Tokenize(joinNonEmpty(
		sctx.SeriesTitle,
		sctx.VolumeTitle,
		sctx.Format,
		strings.Join(sctx.Bindings, " "),
		"volume",
	)))
	if sctx.Volume >= 0 {
		vocab[strconv.Itoa(sctx.Volume)] = struct{}{}
	}
	return vocab
}

func formatKind(s string) string {
	tokens := textmatch.TokenSet(textmatch.Tokenize(s))
	_, light := tokens["light"]
	_, novel := tokens["novel"]
	if light && novel {
		return "light novel"
	}
	if _, manga := tokens["manga"]; manga {
		return "manga"
	}
	return ""
}

func absoluteURL(href, host string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "/") {
		return fmt.Sprintf("https://%s%s", host, href)
	}
	return href
}

func scoreCandidate(sctx SearchContext, vocab map[string]struct{}, row resultRow) ScoredCandidate {
	tokens := textmatch.Tokenize(row.title)

	c := ScoredCandidate{
		Title:            row.title,
		StrictSimilarity: textmatch.Jaccard(row.title, sctx.ExpectedTitle),
		RequiredCoverage: textmatch.Coverage(row.title, sctx.RequiredTitle),
		BaseCoverage:     textmatch.Coverage(row.title, sctx.SeriesTitle),
		ProductURL:       absoluteURL(row.sel.Find("h2 a").First().AttrOr("href", ""), sctx.Marketplace.Host),
		ImageURL:         row.sel.Find("img.s-image").First().AttrOr("src", ""),
		row:              row.sel,
		pos:              row.pos,
	}
	c.MatchScore = max(c.StrictSimilarity, c.RequiredCoverage)
	if sctx.VolumeTitle != "" {
		c.SubtitleCoverage = textmatch.Coverage(row.title, sctx.VolumeTitle)
	}

	// unexpected words before the volume token catch listings like
	// "Complete Box Set Volume 3" masquerading as a single volume
	if idx := textmatch.FirstVolumeIndex(tokens); idx > 0 {
		unknown := 0
		for _, tok := range tokens[:idx] {
			if _, ok := vocab[tok]; !ok {
				unknown++
			}
		}
		c.PrefixPenalty = min(prefixPenaltyCap, prefixPenaltyStep*float64(unknown))
	}

	if want, got := formatKind(sctx.Format), formatKind(row.title); want != "" && got != "" && want != got {
		c.FormatPenalty = formatConflictPenalty
	}

	extra := 0
	for _, tok := range tokens {
		if _, ok := vocab[tok]; !ok {
			extra++
		}
	}
	c.ExtraTokenPenalty = min(extraTokenPenaltyCap, extraTokenPenaltyStep*float64(extra))

	if sctx.Volume >= 0 {
		c.HasVolumeMatch = textmatch.HasExactVolumeMatch(row.title, sctx.Volume)
		if textmatch.ExplicitVolumeConflict(row.title, sctx.Volume) {
			c.VolumeMismatchPenalty = volumeMismatchPenalty
		}
	}

	c.CombinedScore = c.MatchScore +
		subtitleWeight*c.SubtitleCoverage +
		baseTitleWeight*c.BaseCoverage -
		c.PrefixPenalty -
		c.FormatPenalty -
		c.ExtraTokenPenalty -
		c.VolumeMismatchPenalty
	return c
}

// rankCandidates scores and orders all rows. When the query constrains a
// volume number and at least one candidate matches it exactly, candidates
// without the exact volume are dropped unless their series coverage is
// near-perfect: the volume number is the strongest disambiguation signal
// within a long-running series.
func rankCandidates(sctx SearchContext, rows []resultRow) []ScoredCandidate {
	vocab := queryVocabulary(sctx)

	candidates := make([]ScoredCandidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, scoreCandidate(sctx, vocab, row))
	}

	if sctx.Volume >= 0 {
		anyExact := false
		for _, c := range candidates {
			if c.HasVolumeMatch {
				anyExact = true
				break
			}
		}
		if anyExact {
			kept := candidates[:0]
			for _, c := range candidates {
				if c.HasVolumeMatch || c.BaseCoverage >= baseCoverageBypass {
					kept = append(kept, c)
				}
			}
			candidates = kept
		}
	}

	// stable sort keeps document order as the final tie-break, making the
	// ranking a deterministic total order
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.CombinedScore != b.CombinedScore {
			return a.CombinedScore > b.CombinedScore
		}
		if a.PrefixPenalty != b.PrefixPenalty {
			return a.PrefixPenalty < b.PrefixPenalty
		}
		return a.MatchScore > b.MatchScore
	})
	return candidates
}

// selectCandidates parses html and returns the ranked candidate list. The
// top candidate is guaranteed to have cleared the acceptance gate.
func selectCandidates(sctx SearchContext, html string) ([]ScoredCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	rows, err := parseResultRows(doc)
	if err != nil {
		return nil, err
	}

	ranked := rankCandidates(sctx, rows)
	if len(ranked) == 0 {
		return nil, ErrNoResults{}
	}

	top := ranked[0]
	if !top.Eligible() {
		return nil, ErrNoConfidentMatch{
			BestTitle:        top.Title,
			StrictSimilarity: top.StrictSimilarity,
			RequiredCoverage: top.RequiredCoverage,
			BaseCoverage:     top.BaseCoverage,
			CombinedScore:    top.CombinedScore,
		}
	}
	return ranked, nil
}
