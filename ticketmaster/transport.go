package ticketmaster

import (
	"io"
	"log/slog"
	"net/http"
	"time"
)

const paramAPIKey = "apikey"

// KeyTransport implements http.RoundTripper and authenticates every request
// against the Discovery API by adding the apikey query parameter. The key
// never appears in logged URLs.
type KeyTransport struct {
	Wrapped http.RoundTripper

	apiKey string
	logger *slog.Logger
	now    func() time.Time
}

// RoundTrip implements http.RoundTripper. The caller's request is not
// modified; a clone carrying the key is sent instead.
func (k *KeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	logURL := r.URL.String()

	req := r.Clone(ctx)
	q := req.URL.Query()
	q.Set(paramAPIKey, k.apiKey)
	req.URL.RawQuery = q.Encode()

	k.logger.DebugContext(ctx, "sending request", "method", r.Method, "url", logURL)

	start := k.now()
	resp, err := k.Wrapped.RoundTrip(req)
	if err != nil {
		k.logger.DebugContext(ctx, "request failed", "url", logURL, "error", err)
		return resp, err
	}

	k.logger.DebugContext(ctx, "response received",
		"url", logURL,
		"status", resp.StatusCode,
		"elapsed", k.now().Sub(start))

	return resp, nil
}

// NewTransport creates a transport middleware that adds the API key to
// every request sent through the wrapped http.RoundTripper.
//
// If the 'now' function is nil, time.Now will be used as the default time provider.
// If the 'logger' is nil, a no-op logger writing to io.Discard will be used.
func NewTransport(
	apiKey string,
	now func() time.Time,
	logger *slog.Logger,
) func(http.RoundTripper) http.RoundTripper {
	nowFunc := now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return func(rt http.RoundTripper) http.RoundTripper {
		if rt == nil {
			rt = http.DefaultTransport
		}
		return &KeyTransport{Wrapped: rt, apiKey: apiKey, now: nowFunc, logger: logger}
	}
}
