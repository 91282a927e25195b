package pricelookup

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation reports bad or missing caller input. Never retried.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// ErrUpstreamUnavailable reports a network-level failure or timeout talking
// to the retailer. Safe for the caller to retry with backoff.
type ErrUpstreamUnavailable struct {
	Timeout time.Duration
	Err     error
}

func (e ErrUpstreamUnavailable) Error() string {
	return fmt.Sprintf("upstream unavailable (timeout %s): %v", e.Timeout, e.Err)
}

func (e ErrUpstreamUnavailable) Unwrap() error {
	return e.Err
}

// ErrUpstreamStatus reports a non-2xx response from the retailer.
type ErrUpstreamStatus struct {
	StatusCode int
}

func (e ErrUpstreamStatus) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// ErrBotGate reports an anti-automation challenge page served instead of
// real results. It is the only failure that feeds the circuit breaker, so
// it must stay distinguishable from ordinary upstream errors.
type ErrBotGate struct {
	Marker string
}

func (e ErrBotGate) Error() string {
	return fmt.Sprintf("bot challenge detected (marker %q)", e.Marker)
}

// ErrNoResults reports a page with no usable, non-sponsored result rows.
type ErrNoResults struct{}

func (e ErrNoResults) Error() string {
	return "no search results found"
}

// ErrNoConfidentMatch reports that the best-ranked candidate failed the
// acceptance gate. Diagnostic scores ride along so thresholds can be tuned
// without log access.
type ErrNoConfidentMatch struct {
	BestTitle        string
	StrictSimilarity float64
	RequiredCoverage float64
	BaseCoverage     float64
	CombinedScore    float64
}

func (e ErrNoConfidentMatch) Error() string {
	return fmt.Sprintf(
		"no confident match (best %q: strict=%.2f required=%.2f base=%.2f combined=%.2f)",
		e.BestTitle, e.StrictSimilarity, e.RequiredCoverage, e.BaseCoverage, e.CombinedScore,
	)
}

// ErrRateLimited reports the per-client sliding window being exhausted.
type ErrRateLimited struct {
	RetryAfter time.Duration
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// ErrCircuitOpen reports the global breaker being tripped by repeated bot
// challenges. Calls fail fast until the cooldown elapses.
type ErrCircuitOpen struct {
	Remaining time.Duration
}

func (e ErrCircuitOpen) Error() string {
	return fmt.Sprintf("lookups paused for %s after repeated bot challenges", e.Remaining)
}

// ErrConcurrencyExhausted reports a full wait queue or an expired wait.
type ErrConcurrencyExhausted struct {
	RetryAfter time.Duration
}

func (e ErrConcurrencyExhausted) Error() string {
	return fmt.Sprintf("too many concurrent lookups, retry after %s", e.RetryAfter)
}

// ErrTimeout reports the overall pipeline deadline being exceeded. Kept
// distinct from ErrUpstreamUnavailable so callers can tell "upstream is
// down" from "upstream is just slow".
type ErrTimeout struct {
	Budget time.Duration
}

func (e ErrTimeout) Error() string {
	return fmt.Sprintf("lookup exceeded its %s budget", e.Budget)
}

// Classification buckets used by boundaries (HTTP handler, CLI) and by
// metric labels.
const (
	ClassValidation           = "validation"
	ClassUpstreamUnavailable  = "upstream_unavailable"
	ClassUpstreamStatus       = "upstream_error"
	ClassBotGate              = "bot_gate"
	ClassNoResults            = "no_results"
	ClassNoMatch              = "no_match"
	ClassRateLimited          = "rate_limited"
	ClassCircuitOpen          = "circuit_open"
	ClassConcurrencyExhausted = "concurrency_exhausted"
	ClassTimeout              = "timeout"
	ClassUnknown              = "unknown"
)

// Classify maps any pipeline error onto its taxonomy bucket.
func Classify(err error) string {
	switch {
	case errors.As(err, &ErrValidation{}):
		return ClassValidation
	case errors.As(err, &ErrUpstreamUnavailable{}):
		return ClassUpstreamUnavailable
	case errors.As(err, &ErrUpstreamStatus{}):
		return ClassUpstreamStatus
	case errors.As(err, &ErrBotGate{}):
		return ClassBotGate
	case errors.As(err, &ErrNoResults{}):
		return ClassNoResults
	case errors.As(err, &ErrNoConfidentMatch{}):
		return ClassNoMatch
	case errors.As(err, &ErrRateLimited{}):
		return ClassRateLimited
	case errors.As(err, &ErrCircuitOpen{}):
		return ClassCircuitOpen
	case errors.As(err, &ErrConcurrencyExhausted{}):
		return ClassConcurrencyExhausted
	case errors.As(err, &ErrTimeout{}):
		return ClassTimeout
	default:
		return ClassUnknown
	}
}
