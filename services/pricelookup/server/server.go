// Package server exposes the price-lookup service over REST for the
// collection tracker's frontend.
package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/RLAlpha49/shelfarc/services/pricelookup"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	Service *pricelookup.Service
}

func NewHandler(service *pricelookup.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/price-lookup", h.lookup) // POST /api/v1/price-lookup
}

type lookupRequest struct {
	Title            string `json:"title"`
	VolumeTitle      string `json:"volumeTitle"`
	Volume           *int   `json:"volume"`
	Format           string `json:"format"`
	Binding          string `json:"binding"`
	FallbackToKindle bool   `json:"fallbackToKindle"`
	IncludePrice     *bool  `json:"includePrice"`
	IncludeImage     bool   `json:"includeImage"`
}

type lookupResponse struct {
	ResultTitle  string   `json:"resultTitle"`
	MatchScore   float64  `json:"matchScore"`
	Binding      string   `json:"binding,omitempty"`
	PriceText    string   `json:"priceText,omitempty"`
	Price        *float64 `json:"price"`
	Currency     string   `json:"currency,omitempty"`
	PriceError   string   `json:"priceError,omitempty"`
	ProductURL   string   `json:"productUrl,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	SearchURL    string   `json:"searchUrl"`
	UsedFallback bool     `json:"usedFallback,omitempty"`
}

func (h *Handler) lookup(c *gin.Context) {
	requestID := uuid.NewString()
	c.Header("X-Request-Id", requestID)

	var body lookupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     pricelookup.ClassValidation,
			"message":   "malformed request body",
			"requestId": requestID,
		})
		return
	}

	req := pricelookup.LookupRequest{
		SearchParams: pricelookup.SearchParams{
			Title:            body.Title,
			VolumeTitle:      body.VolumeTitle,
			Format:           body.Format,
			Binding:          body.Binding,
			FallbackToKindle: body.FallbackToKindle,
		},
		IncludePrice: body.IncludePrice == nil || *body.IncludePrice,
		IncludeImage: body.IncludeImage,
		ClientKey:    clientKey(c),
	}
	if body.Volume != nil {
		req.Volume = strconv.Itoa(*body.Volume)
	}

	result, err := h.Service.Lookup(c.Request.Context(), req)
	if err != nil {
		writeError(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, lookupResponse{
		ResultTitle:  result.ResultTitle,
		MatchScore:   result.MatchScore,
		Binding:      result.Binding,
		PriceText:    result.PriceText,
		Price:        result.Price,
		Currency:     result.Currency,
		PriceError:   result.PriceError,
		ProductURL:   result.ProductURL,
		ImageURL:     result.ImageURL,
		SearchURL:    result.SearchURL,
		UsedFallback: result.UsedFallback,
	})
}

// clientKey derives the rate-limit identity: a hashed session credential
// when one is presented, the network address otherwise. The raw token is
// never stored or logged.
func clientKey(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
		sum := sha256.Sum256([]byte(token))
		return hex.EncodeToString(sum[:])
	}
	return c.ClientIP()
}

func writeError(c *gin.Context, requestID string, err error) {
	class := pricelookup.Classify(err)
	payload := gin.H{
		"error":     class,
		"message":   err.Error(),
		"requestId": requestID,
	}

	status := http.StatusInternalServerError
	switch class {
	case pricelookup.ClassValidation:
		status = http.StatusBadRequest
	case pricelookup.ClassRateLimited:
		status = http.StatusTooManyRequests
		var rl pricelookup.ErrRateLimited
		if errors.As(err, &rl) {
			payload["retryAfterMillis"] = rl.RetryAfter.Milliseconds()
			c.Header("Retry-After", strconv.FormatInt(int64(rl.RetryAfter.Seconds()+1), 10))
		}
	case pricelookup.ClassCircuitOpen:
		status = http.StatusServiceUnavailable
		var open pricelookup.ErrCircuitOpen
		if errors.As(err, &open) {
			payload["cooldownRemainingMillis"] = open.Remaining.Milliseconds()
			c.Header("Retry-After", strconv.FormatInt(int64(open.Remaining.Seconds()+1), 10))
		}
	case pricelookup.ClassConcurrencyExhausted:
		status = http.StatusServiceUnavailable
		var full pricelookup.ErrConcurrencyExhausted
		if errors.As(err, &full) {
			payload["retryAfterMillis"] = full.RetryAfter.Milliseconds()
			c.Header("Retry-After", strconv.FormatInt(int64(full.RetryAfter.Seconds()+1), 10))
		}
	case pricelookup.ClassTimeout:
		status = http.StatusGatewayTimeout
	case pricelookup.ClassUpstreamUnavailable, pricelookup.ClassUpstreamStatus, pricelookup.ClassBotGate:
		status = http.StatusBadGateway
	case pricelookup.ClassNoResults, pricelookup.ClassNoMatch:
		status = http.StatusNotFound
		var noMatch pricelookup.ErrNoConfidentMatch
		if errors.As(err, &noMatch) {
			payload["bestTitle"] = noMatch.BestTitle
			payload["strictSimilarity"] = noMatch.StrictSimilarity
			payload["requiredCoverage"] = noMatch.RequiredCoverage
			payload["baseCoverage"] = noMatch.BaseCoverage
			payload["combinedScore"] = noMatch.CombinedScore
		}
	}

	c.JSON(status, payload)
}
