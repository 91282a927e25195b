package pricelookup

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/RLAlpha49/shelfarc/lib/textmatch"
)

// input caps keep attacker-controllable strings from inflating the query
// or the scoring vocabulary
const (
	maxTitleLen       = 200
	maxVolumeTitleLen = 80
	maxQueryLen       = 260
	maxLabelLen       = 40

	defaultBinding = "Paperback"
)

// SearchParams carries the raw, untrusted user input of one lookup.
type SearchParams struct {
	Title            string
	VolumeTitle      string
	Volume           string
	Format           string
	Binding          string
	FallbackToKindle bool
}

// SearchContext is the validated, normalized context a pipeline run
// operates on. Built once per request, immutable afterwards.
type SearchContext struct {
	SeriesTitle string
	VolumeTitle string
	// Volume is -1 when the query does not constrain a volume number.
	Volume int
	Format string
	// Bindings holds the primary binding label first, then fallbacks,
	// de-duplicated by normalized form. Never empty.
	Bindings []string
	// ExpectedTitle (series + volume label + format + subtitle) drives
	// strict scoring; RequiredTitle (series + volume label) drives
	// recall-oriented coverage.
	ExpectedTitle string
	RequiredTitle string
	Query         string
	SearchURL     string
	Marketplace   Marketplace
}

func capString(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// BuildSearchContext validates and normalizes params into a SearchContext.
// Pure: no I/O, trivially unit-testable.
func BuildSearchContext(params SearchParams, market Marketplace) (SearchContext, error) {
	title := capString(params.Title, maxTitleLen)
	if title == "" {
		return SearchContext{}, ErrValidation{Field: "title", Reason: "must not be blank"}
	}

	volumeTitle := capString(params.VolumeTitle, maxVolumeTitleLen)
	format := capString(params.Format, maxLabelLen)
	binding := capString(params.Binding, maxLabelLen)
	if binding == "" {
		binding = defaultBinding
	}

	// unparsable or negative input means no volume constraint, not an error
	volume := -1
	if v, err := strconv.Atoi(strings.TrimSpace(params.Volume)); err == nil && v >= 0 {
		volume = v
	}

	bindings := bindingCandidates(binding, params.FallbackToKindle)

	volumeLabel := ""
	if volume >= 0 {
		volumeLabel = fmt.Sprintf("Vol. %d", volume)
	}

	query := capString(joinNonEmpty(title, volumeLabel, format, binding), maxQueryLen)

	return SearchContext{
		SeriesTitle:   title,
		VolumeTitle:   volumeTitle,
		Volume:        volume,
		Format:        format,
		Bindings:      bindings,
		ExpectedTitle: joinNonEmpty(title, volumeLabel, format, volumeTitle),
		RequiredTitle: joinNonEmpty(title, volumeLabel),
		Query:         query,
		SearchURL:     fmt.Sprintf("https://%s/s?k=%s", market.Host, url.QueryEscape(query)),
		Marketplace:   market,
	}, nil
}

func bindingCandidates(primary string, fallbackToKindle bool) []string {
	candidates := []string{primary}
	if textmatch.Normalize(primary) == "paperback" {
		candidates = append(candidates, "Hardcover", "Mass Market Paperback")
	}
	if fallbackToKindle {
		candidates = append(candidates, "Kindle", "Kindle Edition")
	}

	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		key := textmatch.Normalize(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
