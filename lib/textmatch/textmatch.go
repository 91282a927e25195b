// Package textmatch holds the pure text utilities behind result ranking:
// normalization, tokenization, set similarity and volume-number matching.
package textmatch

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var deaccent = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

var volumeWord = regexp.MustCompile(`\bvols?\b`)

// Normalize lowercases, strips diacritics, replaces every
// non-letter/non-digit rune with a space, collapses whitespace and folds
// "vol"/"vols" into "volume". The result of Normalize is a fixed point:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	folded, _, err := transform.String(deaccent, s)
	if err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	s = strings.Join(strings.Fields(b.String()), " ")
	return volumeWord.ReplaceAllString(s, "volume")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Tokenize normalizes s and splits it into comparison tokens. Tokens of
// length <= 1 are dropped unless they are purely numeric, so "I" is
// discarded while "1" survives.
func Tokenize(s string) []string {
	fields := strings.Fields(Normalize(s))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 1 || isDigits(f) {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// TokenSet converts a token slice into a set.
func TokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for t := range a {
		if _, ok := b[t]; ok {
			n++
		}
	}
	return n
}

// Jaccard computes |a∩b| / |a∪b| over the token sets of the two strings.
// It is symmetric and penalizes extra words on either side.
func Jaccard(a, b string) float64 {
	sa := TokenSet(Tokenize(a))
	sb := TokenSet(Tokenize(b))
	inter := intersectionSize(sa, sb)
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Coverage computes the fraction of expected tokens present in candidate.
// It is asymmetric: a candidate containing every expected token scores 1.0
// no matter how many extra tokens it adds.
func Coverage(candidate, expected string) float64 {
	exp := TokenSet(Tokenize(expected))
	if len(exp) == 0 {
		return 0
	}
	cand := TokenSet(Tokenize(candidate))
	return float64(intersectionSize(cand, exp)) / float64(len(exp))
}

// volumeRange matches "3-5", "3 – 5" and "3 to 5" in raw (pre-normalization)
// text. Ranges must be detected before Normalize runs since the separator is
// folded into whitespace.
var volumeRange = regexp.MustCompile(`(?i)(\d+)\s*(?:[-–—~]|to)\s*(\d+)`)

type intRange struct {
	lo, hi int
}

func volumeRanges(raw string) []intRange {
	matches := volumeRange.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}
	ranges := make([]intRange, 0, len(matches))
	for _, m := range matches {
		lo, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		hi, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if hi < lo {
			lo, hi = hi, lo
		}
		ranges = append(ranges, intRange{lo: lo, hi: hi})
	}
	return ranges
}

// HasExactVolumeMatch reports whether title refers to volume n. It is true
// when a standalone integer token equals n outside any detected range, or
// when n falls inside a detected range ("Vol. 3-5" matches 4). "Vol. 13"
// never matches 3: comparison happens on whole tokens, not substrings.
func HasExactVolumeMatch(title string, n int) bool {
	if n < 0 {
		return false
	}
	ranges := volumeRanges(title)
	endpoints := make(map[int]struct{}, len(ranges)*2)
	for _, r := range ranges {
		if n >= r.lo && n <= r.hi {
			return true
		}
		endpoints[r.lo] = struct{}{}
		endpoints[r.hi] = struct{}{}
	}

	for _, tok := range Tokenize(title) {
		if !isDigits(tok) {
			continue
		}
		v, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		if _, partOfRange := endpoints[v]; partOfRange {
			continue
		}
		if v == n {
			return true
		}
	}
	return false
}

// ExplicitVolumeConflict reports whether title explicitly names a volume
// different from n while not matching n itself. Mere absence of a volume
// indicator is not a conflict.
func ExplicitVolumeConflict(title string, n int) bool {
	if n < 0 {
		return false
	}
	if HasExactVolumeMatch(title, n) {
		return false
	}

	tokens := Tokenize(title)
	for i, tok := range tokens {
		if tok != "volume" || i+1 >= len(tokens) {
			continue
		}
		if v, err := strconv.Atoi(tokens[i+1]); err == nil && v != n {
			return true
		}
	}
	for _, r := range volumeRanges(title) {
		if n < r.lo || n > r.hi {
			return true
		}
	}
	return false
}

// FirstVolumeIndex returns the index within tokens of the first "volume"
// token or standalone integer, or -1 when neither is present. It anchors
// the prefix-modifier scan in the scorer.
func FirstVolumeIndex(tokens []string) int {
	for i, tok := range tokens {
		if tok == "volume" || isDigits(tok) {
			return i
		}
	}
	return -1
}
