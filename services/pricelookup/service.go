// Package pricelookup answers "what does this volume cost right now" by
// querying a retailer's public search page, ranking the results against
// the query with a multi-factor fuzzy heuristic and extracting a
// locale-aware price. The whole pipeline runs behind a circuit breaker,
// a per-client rate limit, a bounded concurrency gate and a hard
// deadline: the upstream is fragile and guarded by an anti-bot system,
// so admission control matters as much as ranking.
package pricelookup

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/RLAlpha49/shelfarc/lib/ratelimit"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const breakerKey = "pricelookup:botgate"

type Options struct {
	// Host selects the marketplace; empty means www.amazon.com.
	Host string
	// Store backs both the breaker and the per-client windows. nil gets
	// an in-process store.
	Store ratelimit.Store

	FetchTimeout    time.Duration
	PipelineTimeout time.Duration

	BreakerMaxFailures int
	BreakerWindow      time.Duration
	BreakerCooldown    time.Duration

	ClientLimit  int
	ClientWindow time.Duration

	Concurrency int
	MaxQueue    int
	QueueWait   time.Duration

	// Now is a test seam; defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Store == nil {
		o.Store = ratelimit.NewMemory(4096, time.Hour)
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 12 * time.Second
	}
	if o.PipelineTimeout <= 0 {
		o.PipelineTimeout = 18 * time.Second
	}
	if o.BreakerMaxFailures <= 0 {
		o.BreakerMaxFailures = 3
	}
	if o.BreakerWindow <= 0 {
		o.BreakerWindow = 5 * time.Minute
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 10 * time.Minute
	}
	if o.ClientLimit <= 0 {
		o.ClientLimit = 30
	}
	if o.ClientWindow <= 0 {
		o.ClientWindow = time.Minute
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.MaxQueue <= 0 {
		o.MaxQueue = 4
	}
	if o.QueueWait <= 0 {
		o.QueueWait = 10 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// LookupRequest is one price lookup as received from the boundary.
// ClientKey is only ever used for rate-limit keying.
type LookupRequest struct {
	SearchParams
	IncludePrice bool
	IncludeImage bool
	ClientKey    string
}

// LookupResult is the success shape. PriceError is the soft channel: the
// book was found but this binding's price was not, which is a confident
// negative answer rather than a failure.
type LookupResult struct {
	ResultTitle string
	MatchScore  float64
	Binding     string
	PriceText   string
	Price       *float64
	Currency    string
	PriceError  string
	ProductURL  string
	ImageURL    string
	SearchURL   string
	// UsedFallback is set when the price came from a lower-ranked
	// threshold-eligible candidate instead of the top pick.
	UsedFallback bool
}

type Service struct {
	opts    Options
	market  Marketplace
	fetcher *fetcher
	limiter *concurrencyLimiter
	store   ratelimit.Store
	now     func() time.Time
}

func NewService(opts Options) *Service {
	opts = opts.withDefaults()
	market := MarketplaceFor(opts.Host)
	return &Service{
		opts:    opts,
		market:  market,
		fetcher: newFetcher(opts.FetchTimeout, market),
		limiter: newConcurrencyLimiter(opts.Concurrency, opts.MaxQueue),
		store:   opts.Store,
		now:     opts.Now,
	}
}

// HTTPClient exposes the underlying outbound client so callers can
// instrument or stub its transport.
func (s *Service) HTTPClient() *http.Client {
	return s.fetcher.client.GetClient()
}

// Lookup runs the full pipeline. Checks run in a fixed order (circuit
// breaker, per-client rate limit, concurrency admission, then the
// deadline-wrapped fetch+score+extract) so no layer consumes a resource
// before the cheaper layers have passed.
func (s *Service) Lookup(ctx context.Context, req LookupRequest) (*LookupResult, error) {
	ctx, span := tracer.Start(ctx, "Lookup")
	defer span.End()

	result, err := s.lookup(ctx, req)
	class := "ok"
	if err != nil {
		class = Classify(err)
		span.SetStatus(codes.Error, class)
	}
	lookupCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", class)))
	return result, err
}

func (s *Service) lookup(ctx context.Context, req LookupRequest) (*LookupResult, error) {
	now := s.now()

	remaining, err := s.store.CooldownRemaining(ctx, breakerKey, now)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		return nil, ErrCircuitOpen{Remaining: remaining}
	}

	clientKey := "client:" + req.ClientKey
	if req.ClientKey == "" {
		clientKey = "client:anonymous"
	}
	hits, err := s.store.CountSince(ctx, clientKey, now.Add(-s.opts.ClientWindow))
	if err != nil {
		return nil, err
	}
	if hits >= s.opts.ClientLimit {
		rateLimitedCounter.Add(ctx, 1)
		return nil, ErrRateLimited{RetryAfter: s.opts.ClientWindow}
	}
	if err := s.store.Record(ctx, clientKey, now); err != nil {
		return nil, err
	}

	if err := s.limiter.acquire(ctx, s.opts.QueueWait); err != nil {
		if errors.As(err, &ErrConcurrencyExhausted{}) {
			queueRejectedCounter.Add(ctx, 1)
		}
		// otherwise the caller's own context ended while queued; its
		// cancellation error passes through untranslated
		return nil, err
	}
	defer s.limiter.release()

	sctx, err := BuildSearchContext(req.SearchParams, s.market)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, s.opts.PipelineTimeout)
	defer cancel()

	body, err := s.fetcher.fetch(pctx, sctx.SearchURL)
	if err != nil {
		if errors.As(err, &ErrBotGate{}) {
			s.recordBotGate(ctx)
			return nil, err
		}
		if pctx.Err() != nil && ctx.Err() == nil {
			return nil, ErrTimeout{Budget: s.opts.PipelineTimeout}
		}
		return nil, err
	}

	ranked, err := selectCandidates(sctx, body)
	if err != nil {
		return nil, err
	}
	return s.buildResult(ctx, req, sctx, ranked), nil
}

func (s *Service) buildResult(ctx context.Context, req LookupRequest, sctx SearchContext, ranked []ScoredCandidate) *LookupResult {
	top := ranked[0]
	result := &LookupResult{
		ResultTitle: top.Title,
		MatchScore:  top.CombinedScore,
		ProductURL:  top.ProductURL,
		SearchURL:   sctx.SearchURL,
	}
	if req.IncludeImage {
		result.ImageURL = top.ImageURL
	}
	if !req.IncludePrice {
		return result
	}

	out := extractPrice(top.row, sctx)
	result.Binding = out.binding
	if out.priceText != "" {
		result.PriceText = out.priceText
		result.Price = out.price
		result.Currency = out.currency
		return result
	}

	// image lookups must price the exact candidate the image belongs to;
	// everything else may scan down the ranked eligible candidates
	if req.IncludeImage {
		result.PriceError = softPriceError(out)
		return result
	}
	for _, c := range ranked[1:] {
		if !c.Eligible() {
			continue
		}
		fb := extractPrice(c.row, sctx)
		if fb.priceText == "" {
			continue
		}
		slog.DebugContext(ctx, "price taken from lower-ranked candidate",
			"top_title", top.Title,
			"fallback_title", c.Title,
		)
		result.ResultTitle = c.Title
		result.MatchScore = c.CombinedScore
		result.ProductURL = c.ProductURL
		result.Binding = fb.binding
		result.PriceText = fb.priceText
		result.Price = fb.price
		result.Currency = fb.currency
		result.UsedFallback = true
		return result
	}

	result.PriceError = softPriceError(out)
	return result
}

func softPriceError(out priceOutcome) string {
	if out.softErr != "" {
		return out.softErr
	}
	return "no price found for the selected result"
}

// recordBotGate counts a bot-challenge under the global breaker key and
// trips the cooldown once the window fills up.
func (s *Service) recordBotGate(ctx context.Context) {
	now := s.now()
	if err := s.store.Record(ctx, breakerKey, now); err != nil {
		slog.ErrorContext(ctx, "failed to record bot challenge", "err", err)
		return
	}
	n, err := s.store.CountSince(ctx, breakerKey, now.Add(-s.opts.BreakerWindow))
	if err != nil {
		slog.ErrorContext(ctx, "failed to count bot challenges", "err", err)
		return
	}
	if n < s.opts.BreakerMaxFailures {
		return
	}
	if err := s.store.SetCooldown(ctx, breakerKey, now.Add(s.opts.BreakerCooldown)); err != nil {
		slog.ErrorContext(ctx, "failed to set breaker cooldown", "err", err)
		return
	}
	breakerTripCounter.Add(ctx, 1)
	slog.WarnContext(ctx, "circuit breaker tripped after repeated bot challenges",
		"failures", n,
		"cooldown", s.opts.BreakerCooldown,
	)
}
