package pricelookup

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	raw, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(raw)
}

func chainsawContext(t *testing.T) SearchContext {
	t.Helper()
	sctx, err := BuildSearchContext(SearchParams{
		Title:   "Chainsaw Man",
		Volume:  "3",
		Format:  "manga",
		Binding: "Paperback",
	}, MarketplaceFor("www.amazon.com"))
	require.NoError(t, err)
	return sctx
}

func TestSelectCandidatesRanking(t *testing.T) {
	page := loadFixture(t, "search_results.html")
	sctx := chainsawContext(t)

	ranked, err := selectCandidates(sctx, page)
	require.NoError(t, err)

	titles := make([]string, 0, len(ranked))
	for _, c := range ranked {
		titles = append(titles, c.Title)
	}
	// sponsored and title-less rows never make it into the ranking
	want := []string{
		"Chainsaw Man, Vol. 3",
		"Chainsaw Man Box Set: Vol. 1-5",
		"Chainsaw Man, Vol. 2",
	}
	require.Empty(t, cmp.Diff(want, titles))

	top := ranked[0]
	require.True(t, top.Eligible())
	require.True(t, top.HasVolumeMatch)
	require.Equal(t, 1.0, top.RequiredCoverage)
	require.Equal(t, "https://www.amazon.com/dp/B0CSMVOL3X", top.ProductURL)
	require.Equal(t, "https://m.media-amazon.com/images/I/csm-vol3.jpg", top.ImageURL)

	// the box set covers the wanted volume via its range but pays prefix
	// and extra-token penalties, so it never out-ranks the exact volume
	require.Greater(t, top.CombinedScore, ranked[1].CombinedScore)
	require.True(t, ranked[1].HasVolumeMatch)
	require.Greater(t, ranked[1].PrefixPenalty, 0.0)
}

func TestSelectCandidatesDeterministic(t *testing.T) {
	page := loadFixture(t, "search_results.html")
	sctx := chainsawContext(t)

	first, err := selectCandidates(sctx, page)
	require.NoError(t, err)
	second, err := selectCandidates(sctx, page)
	require.NoError(t, err)

	a := make([]string, len(first))
	b := make([]string, len(second))
	for i := range first {
		a[i] = first[i].Title
	}
	for i := range second {
		b[i] = second[i].Title
	}
	require.Empty(t, cmp.Diff(a, b))
}

func TestSelectCandidatesVolumeMismatchPenalty(t *testing.T) {
	page := loadFixture(t, "search_results.html")
	sctx := chainsawContext(t)

	ranked, err := selectCandidates(sctx, page)
	require.NoError(t, err)

	last := ranked[len(ranked)-1]
	require.Equal(t, "Chainsaw Man, Vol. 2", last.Title)
	require.False(t, last.HasVolumeMatch)
	require.Equal(t, volumeMismatchPenalty, last.VolumeMismatchPenalty)
}

func TestSelectCandidatesNoRegion(t *testing.T) {
	sctx := chainsawContext(t)
	_, err := selectCandidates(sctx, "<html><body><p>maintenance</p></body></html>")
	require.ErrorAs(t, err, &ErrNoResults{})
}

func TestSelectCandidatesAllSponsored(t *testing.T) {
	page := `<html><body><div class="s-main-slot">
		<div data-component-type="s-search-result">
			<div class="puis-sponsored-label-text">Sponsored</div>
			<h2><a href="/dp/X"><span>Chainsaw Man, Vol. 3</span></a></h2>
		</div>
	</div></body></html>`
	sctx := chainsawContext(t)
	_, err := selectCandidates(sctx, page)
	require.ErrorAs(t, err, &ErrNoResults{})
}

func TestSelectCandidatesNoConfidentMatch(t *testing.T) {
	page := loadFixture(t, "search_results.html")
	sctx, err := BuildSearchContext(SearchParams{
		Title: "Berserk Deluxe Edition",
	}, MarketplaceFor("www.amazon.com"))
	require.NoError(t, err)

	_, err = selectCandidates(sctx, page)
	var noMatch ErrNoConfidentMatch
	require.ErrorAs(t, err, &noMatch)
	require.NotEmpty(t, noMatch.BestTitle)
	require.Less(t, noMatch.RequiredCoverage, requiredAcceptThreshold)
}

func TestFormatConflictPenalty(t *testing.T) {
	page := `<html><body><div class="s-main-slot">
		<div data-component-type="s-search-result">
			<h2><a href="/dp/A"><span>Overlord, Vol. 4 (light novel)</span></a></h2>
		</div>
		<div data-component-type="s-search-result">
			<h2><a href="/dp/B"><span>Overlord, Vol. 4 (manga)</span></a></h2>
		</div>
	</div></body></html>`
	sctx, err := BuildSearchContext(SearchParams{
		Title:  "Overlord",
		Volume: "4",
		Format: "manga",
	}, MarketplaceFor("www.amazon.com"))
	require.NoError(t, err)

	ranked, err := selectCandidates(sctx, page)
	require.NoError(t, err)
	require.Equal(t, "Overlord, Vol. 4 (manga)", ranked[0].Title)
	require.Equal(t, formatConflictPenalty, ranked[1].FormatPenalty)
	require.Equal(t, 0.0, ranked[0].FormatPenalty)
}

func TestParseResultRowsCapsRowCount(t *testing.T) {
	var b []byte
	b = append(b, `<html><body><div class="s-main-slot">`...)
	for i := 0; i < maxScoredRows+10; i++ {
		b = append(b, `<div data-component-type="s-search-result"><h2><a href="/dp/X"><span>Chainsaw Man, Vol. 3</span></a></h2></div>`...)
	}
	b = append(b, `</div></body></html>`...)

	sctx := chainsawContext(t)
	ranked, err := selectCandidates(sctx, string(b))
	require.NoError(t, err)
	require.Len(t, ranked, maxScoredRows)
}
