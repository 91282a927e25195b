package htmlutil

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText flattens a text node's contents into a single printable line.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

type Anchor struct {
	Name string
	Href string
	Sel  *goquery.Selection
}

// GetAnchors collects every anchor under sel with its cleaned display text
// and parsed href. Anchors with an unparsable href are skipped.
func GetAnchors(sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		link, err := url.Parse(href)
		if err != nil {
			return
		}
		anchors = append(anchors, Anchor{
			Name: CleanText(a.Text()),
			Href: link.String(),
			Sel:  a,
		})
	})
	return anchors
}

// FirstText returns the first selector in the cascade that yields non-empty
// cleaned text under root.
func FirstText(root *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		text := CleanText(root.Find(s).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}
