package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/RLAlpha49/shelfarc/services/pricelookup"

	"github.com/gin-gonic/gin"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, opts pricelookup.Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := pricelookup.NewService(opts)
	httpmock.ActivateNonDefault(svc.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	router := gin.New()
	NewHandler(svc).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func registerFixture(t *testing.T) {
	t.Helper()
	raw, err := os.ReadFile("../testdata/search_results.html")
	require.NoError(t, err)
	httpmock.RegisterResponder("GET", `=~^https://www\.amazon\.com/s`,
		httpmock.NewStringResponder(200, string(raw)))
}

func doLookup(router *gin.Engine, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/price-lookup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLookupEndpoint(t *testing.T) {
	router := newTestRouter(t, pricelookup.Options{})
	registerFixture(t)

	rec := doLookup(router, `{"title":"Chainsaw Man","volume":3,"format":"manga","binding":"Paperback"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Chainsaw Man, Vol. 3", resp["resultTitle"])
	require.Equal(t, "Paperback", resp["binding"])
	require.Equal(t, "$10.99", resp["priceText"])
	require.InDelta(t, 10.99, resp["price"].(float64), 1e-9)
	require.Equal(t, "USD", resp["currency"])
	require.Equal(t, "https://www.amazon.com/dp/B0CSMVOL3X", resp["productUrl"])
}

func TestLookupEndpointValidation(t *testing.T) {
	router := newTestRouter(t, pricelookup.Options{})

	rec := doLookup(router, `{"title":"   "}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, pricelookup.ClassValidation, resp["error"])
	require.NotEmpty(t, resp["requestId"])
}

func TestLookupEndpointMalformedBody(t *testing.T) {
	router := newTestRouter(t, pricelookup.Options{})

	rec := doLookup(router, `{"title":`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookupEndpointRateLimited(t *testing.T) {
	router := newTestRouter(t, pricelookup.Options{ClientLimit: 1})
	registerFixture(t)

	body := `{"title":"Chainsaw Man","volume":3}`
	header := http.Header{"Authorization": []string{"Bearer session-token"}}

	rec := doLookup(router, body, header)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doLookup(router, body, header)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, pricelookup.ClassRateLimited, resp["error"])
	require.Greater(t, resp["retryAfterMillis"].(float64), 0.0)
	// the raw bearer token must never surface in a response
	require.NotContains(t, rec.Body.String(), "session-token")
}

func TestLookupEndpointNoMatchDiagnostics(t *testing.T) {
	router := newTestRouter(t, pricelookup.Options{})
	registerFixture(t)

	rec := doLookup(router, `{"title":"Berserk Deluxe Edition"}`, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, pricelookup.ClassNoMatch, resp["error"])
	require.NotEmpty(t, resp["bestTitle"])
	require.Contains(t, resp, "requiredCoverage")
}

func TestLookupEndpointBotGate(t *testing.T) {
	router := newTestRouter(t, pricelookup.Options{})
	httpmock.RegisterResponder("GET", `=~^https://www\.amazon\.com/s`,
		httpmock.NewStringResponder(200, "<html><body>Robot Check</body></html>"))

	rec := doLookup(router, `{"title":"Chainsaw Man","volume":3}`, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, pricelookup.ClassBotGate, resp["error"])
}
