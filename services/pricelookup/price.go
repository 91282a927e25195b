package pricelookup

import (
	"strconv"
	"strings"

	"github.com/RLAlpha49/shelfarc/lib/htmlutil"
	"github.com/RLAlpha49/shelfarc/lib/textmatch"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

const priceSelector = "span.a-price span.a-offscreen, span.a-color-price, span.a-price-whole"

// priceOutcome is the soft-result channel of price extraction: finding the
// book but not this binding's price is not a pipeline failure.
type priceOutcome struct {
	binding   string
	priceText string
	price     *float64
	currency  string
	// softErr explains a missing binding or price without failing the run
	softErr string
}

// extractPrice locates a binding link on the candidate row, trying labels
// in priority order, then walks outward through the DOM for the closest
// price node.
func extractPrice(row *goquery.Selection, sctx SearchContext) priceOutcome {
	anchors := htmlutil.GetAnchors(row)

	anchor, label, found := findBindingAnchor(anchors, sctx.Bindings)
	if !found {
		out := priceOutcome{softErr: "no binding link found"}
		if hint := closestBindingHint(anchors, sctx.Bindings[0]); hint != "" {
			out.softErr = "no binding link found, closest label: " + hint
		}
		return out
	}

	text := priceTextNear(anchor.Sel, row)
	if text == "" {
		return priceOutcome{
			binding: label,
			softErr: "binding found but no price node nearby",
		}
	}

	return priceOutcome{
		binding:   label,
		priceText: text,
		price:     parsePriceValue(text, sctx.Marketplace.CommaDecimal),
		currency:  detectCurrency(text, sctx.Marketplace),
	}
}

// findBindingAnchor matches link text that exactly equals a binding label
// or starts with it plus a trailing modifier ("Paperback – Illustrated").
func findBindingAnchor(anchors []htmlutil.Anchor, bindings []string) (htmlutil.Anchor, string, bool) {
	for _, label := range bindings {
		want := textmatch.Normalize(label)
		for _, a := range anchors {
			got := textmatch.Normalize(a.Name)
			if got == "" {
				continue
			}
			if got == want || strings.HasPrefix(got, want+" ") {
				return a, label, true
			}
		}
	}
	return htmlutil.Anchor{}, "", false
}

// closestBindingHint names the link that looks most like the wanted
// binding, for the diagnostic message on a soft no-binding outcome.
func closestBindingHint(anchors []htmlutil.Anchor, wanted string) string {
	best := ""
	bestScore := 0.6
	for _, a := range anchors {
		if a.Name == "" {
			continue
		}
		score := matchr.JaroWinkler(
			textmatch.Normalize(a.Name),
			textmatch.Normalize(wanted),
			false,
		)
		if score > bestScore {
			bestScore = score
			best = a.Name
		}
	}
	return best
}

// priceTextNear walks a cascade of increasingly distant proximities:
// the binding link itself, its parent, its row-section, following
// siblings, and finally anywhere in the result row.
func priceTextNear(anchor *goquery.Selection, row *goquery.Selection) string {
	scopes := []*goquery.Selection{
		anchor,
		anchor.Parent(),
		anchor.Closest("div.a-section, div.a-row, li, td"),
		anchor.Closest("div.a-section, div.a-row, li, td").NextAll(),
		row,
	}
	for _, scope := range scopes {
		if scope == nil || scope.Length() == 0 {
			continue
		}
		text := htmlutil.CleanText(scope.Find(priceSelector).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

// parsePriceValue parses a locale-aware numeric price. The decimal
// separator is the last-occurring one when both appear; with a single
// separator the host locale's default decides, except that a separator
// followed by a group of exactly three digits reads as grouping
// ("$1,299"). Unparsable text yields nil rather than an error: the raw
// text still reaches the caller for manual interpretation.
func parsePriceValue(text string, commaDecimal bool) *float64 {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.Trim(b.String(), ",.")
	if cleaned == "" {
		return nil
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	decimal := byte(0)
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			decimal = ','
		} else {
			decimal = '.'
		}
	case lastComma >= 0:
		decimal = singleSeparatorRole(cleaned, lastComma, ',', commaDecimal)
	case lastDot >= 0:
		decimal = singleSeparatorRole(cleaned, lastDot, '.', commaDecimal)
	}

	normalized := cleaned
	if decimal != 0 {
		group := byte('.')
		if decimal == '.' {
			group = ','
		}
		normalized = strings.ReplaceAll(normalized, string(group), "")
		normalized = strings.Replace(normalized, string(decimal), ".", 1)
		// any separator left after the first decimal means garbage input
		normalized = strings.ReplaceAll(normalized, string(decimal), "")
	} else {
		normalized = strings.ReplaceAll(normalized, ",", "")
		normalized = strings.ReplaceAll(normalized, ".", "")
	}

	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return nil
	}
	return &value
}

func singleSeparatorRole(cleaned string, idx int, sep byte, commaDecimal bool) byte {
	hostDefault := byte('.')
	if commaDecimal {
		hostDefault = ','
	}
	if sep == hostDefault {
		return sep
	}
	if len(cleaned)-idx-1 == 3 {
		return 0 // grouping, e.g. "$1,299"
	}
	return sep
}

// detectCurrency prefers explicit symbols, most specific first, and falls
// back to the marketplace's currency.
func detectCurrency(text string, market Marketplace) string {
	switch {
	case strings.Contains(text, "CA$"), strings.Contains(text, "C$"):
		return "CAD"
	case strings.Contains(text, "¥"), strings.Contains(text, "￥"):
		return "JPY"
	case strings.Contains(text, "£"):
		return "GBP"
	case strings.Contains(text, "€"):
		return "EUR"
	case strings.Contains(text, "$"):
		return "USD"
	default:
		return market.Currency
	}
}
