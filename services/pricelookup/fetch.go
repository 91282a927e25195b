package pricelookup

import (
	"context"
	"strings"
	"time"

	"github.com/RLAlpha49/shelfarc/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"
)

// markers that identify an anti-bot challenge page. matched
// case-insensitively against the whole body
var botMarkers = []string{
	"captcha",
	"robot check",
	"automated access",
	"enter the characters you see",
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

func pickUserAgent() string {
	idx, err := random.IntRange(0, len(userAgents))
	if err != nil {
		idx = 0
	}
	return userAgents[idx%len(userAgents)]
}

type fetcher struct {
	client  *resty.Client
	timeout time.Duration
}

// newFetcher builds the outbound client: browser headers, a hard request
// timeout, the cloudflare bypass transport, and no cookie jar. Every
// fetch is a bare, session-free GET.
func newFetcher(timeout time.Duration, market Marketplace) *fetcher {
	client := resty.New()
	client.SetCookieJar(nil)
	client.SetTimeout(timeout)
	client.SetHeader("accept-language", market.AcceptLanguage)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	telemetry.InstrumentResty(client, "pricelookup/http")

	return &fetcher{
		client:  client,
		timeout: timeout,
	}
}

// fetch GETs link and classifies the outcome: network failure/timeout,
// non-2xx status, bot challenge, or the raw HTML body on success. The
// context deadline propagates into the transport so a timed-out socket is
// actually closed, not abandoned.
func (f *fetcher) fetch(ctx context.Context, link string) (string, error) {
	ctx, span := tracer.Start(ctx, "fetch")
	defer span.End()

	res, err := f.client.R().
		SetContext(ctx).
		SetHeader("user-agent", pickUserAgent()).
		Get(link)
	if err != nil {
		span.SetStatus(codes.Error, "upstream unreachable")
		return "", ErrUpstreamUnavailable{Timeout: f.timeout, Err: err}
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		span.SetStatus(codes.Error, "upstream error status")
		return "", ErrUpstreamStatus{StatusCode: res.StatusCode()}
	}

	body := res.String()
	if marker := detectBotGate(body); marker != "" {
		span.SetStatus(codes.Error, "bot challenge")
		return "", ErrBotGate{Marker: marker}
	}
	return body, nil
}

func detectBotGate(body string) string {
	lowered := strings.ToLower(body)
	for _, marker := range botMarkers {
		if strings.Contains(lowered, marker) {
			return marker
		}
	}
	return ""
}
