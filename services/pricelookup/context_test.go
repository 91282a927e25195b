package pricelookup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildSearchContext(t *testing.T) {
	sctx, err := BuildSearchContext(SearchParams{
		Title:   "Chainsaw Man",
		Volume:  "3",
		Format:  "manga",
		Binding: "Paperback",
	}, MarketplaceFor("www.amazon.com"))
	require.NoError(t, err)

	require.Equal(t, "Chainsaw Man", sctx.SeriesTitle)
	require.Equal(t, 3, sctx.Volume)
	require.Equal(t, "Chainsaw Man Vol. 3 manga", sctx.ExpectedTitle)
	require.Equal(t, "Chainsaw Man Vol. 3", sctx.RequiredTitle)
	require.Equal(t, []string{"Paperback", "Hardcover", "Mass Market Paperback"}, sctx.Bindings)
	require.Equal(t,
		"https://www.amazon.com/s?k=Chainsaw+Man+Vol.+3+manga+Paperback",
		sctx.SearchURL,
	)
}

func TestBuildSearchContextMissingTitle(t *testing.T) {
	_, err := BuildSearchContext(SearchParams{Title: "   "}, MarketplaceFor(""))
	require.ErrorAs(t, err, &ErrValidation{})
}

func TestBuildSearchContextVolumeParsing(t *testing.T) {
	cases := map[string]int{
		"3":     3,
		"0":     0,
		"":      -1,
		"three": -1,
		"-2":    -1,
		"  7 ":  7,
		"9999999999999999999999": -1,
	}
	for raw, want := range cases {
		sctx, err := BuildSearchContext(SearchParams{Title: "A Series", Volume: raw}, MarketplaceFor(""))
		require.NoError(t, err)
		require.Equal(t, want, sctx.Volume, "raw volume %q", raw)
	}
}

func TestBuildSearchContextDefaults(t *testing.T) {
	sctx, err := BuildSearchContext(SearchParams{Title: "A Series"}, MarketplaceFor(""))
	require.NoError(t, err)
	require.Equal(t, "Paperback", sctx.Bindings[0])
	require.Equal(t, -1, sctx.Volume)
	require.Equal(t, "A Series", sctx.ExpectedTitle)
	require.Equal(t, "A Series", sctx.RequiredTitle)
}

func TestBuildSearchContextKindleFallback(t *testing.T) {
	sctx, err := BuildSearchContext(SearchParams{
		Title:            "A Series",
		Binding:          "Hardcover",
		FallbackToKindle: true,
	}, MarketplaceFor(""))
	require.NoError(t, err)
	require.Equal(t, []string{"Hardcover", "Kindle", "Kindle Edition"}, sctx.Bindings)
}

func TestBuildSearchContextBindingDedup(t *testing.T) {
	sctx, err := BuildSearchContext(SearchParams{
		Title:   "A Series",
		Binding: "paperback",
	}, MarketplaceFor(""))
	require.NoError(t, err)

	seen := map[string]struct{}{}
	for _, b := range sctx.Bindings {
		key := strings.ToLower(b)
		_, dup := seen[key]
		require.False(t, dup, "duplicate binding %q", b)
		seen[key] = struct{}{}
	}
	require.NotEmpty(t, sctx.Bindings)
}

func TestBuildSearchContextCapsInput(t *testing.T) {
	long := strings.Repeat("word ", 100)
	sctx, err := BuildSearchContext(SearchParams{
		Title:  long,
		Format: long,
	}, MarketplaceFor(""))
	require.NoError(t, err)
	require.LessOrEqual(t, len(sctx.SeriesTitle), maxTitleLen)
	require.LessOrEqual(t, len(sctx.Query), maxQueryLen)
}
