// Package ticketmaster fetches events from the Ticketmaster Discovery API.
package ticketmaster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgduncan/wheretogo"
)

const (
	// DefaultBaseURL is the root of the Discovery API v2.
	DefaultBaseURL = "https://app.ticketmaster.com/discovery/v2/"

	// DefaultTimeout bounds a single request when Config.Timeout is zero.
	DefaultTimeout = 15 * time.Second

	eventsPath     = "events.json"
	dateTimeLayout = "2006-01-02T15:04:05Z"
)

var errMalformedBody = errors.New("decoding events response: body is not valid JSON")

// Config defines the configuration options for the Discovery API client.
type Config struct {
	BaseURL string        // eg. https://app.ticketmaster.com/discovery/v2/
	Timeout time.Duration // per request timeout

	// Transport is the base transport the API key middleware wraps.
	// Defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// Client implements wheretogo.Source for the Discovery API.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	logger  *slog.Logger
}

// Name identifies the source in cache keys.
func (c *Client) Name() string {
	return "ticketmaster"
}

// Fetch requests the events starting between start and end. Every query
// parameter is forwarded, multi-valued ones joined by commas.
//
// A connection failure or non-2xx status yields a *wheretogo.TransportError.
// A valid JSON response without an _embedded.events list, whatever its
// shape, yields an empty list. A body that is not JSON is an error.
func (c *Client) Fetch(ctx context.Context, start, end time.Time, q wheretogo.Query) ([]wheretogo.Event, error) {
	u := c.baseURL.ResolveReference(&url.URL{Path: eventsPath})

	vals := q.Values()
	vals.Set("startDateTime", start.UTC().Format(dateTimeLayout))
	vals.Set("endDateTime", end.UTC().Format(dateTimeLayout))
	u.RawQuery = vals.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &wheretogo.TransportError{URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &wheretogo.TransportError{
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &wheretogo.TransportError{URL: u.String(), StatusCode: resp.StatusCode, Status: resp.Status, Err: err}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return []wheretogo.Event{}, nil
	}

	if !json.Valid(body) {
		return nil, errMalformedBody
	}

	events := c.decodeEvents(ctx, body)
	c.logger.DebugContext(ctx, "events fetched", "url", u.String(), "count", len(events))

	return events, nil
}

// decodeEvents extracts _embedded.events from a syntactically valid body.
// A body of any other shape holds no events. Entries that do not decode as
// an event are skipped.
func (c *Client) decodeEvents(ctx context.Context, body []byte) []wheretogo.Event {
	events := []wheretogo.Event{}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		c.logger.DebugContext(ctx, "response is not an object", "error", err)
		return events
	}

	var embedded map[string]json.RawMessage
	if err := json.Unmarshal(top["_embedded"], &embedded); err != nil || embedded == nil {
		return events
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(embedded["events"], &raw); err != nil {
		c.logger.DebugContext(ctx, "unexpected events field", "error", err)
		return events
	}

	for i, r := range raw {
		var e wheretogo.Event
		if err := json.Unmarshal(r, &e); err != nil {
			c.logger.DebugContext(ctx, "skipping undecodable event", "index", i, "error", err)
			continue
		}
		events = append(events, e)
	}

	return events
}

// New creates a Discovery API client authenticating with apiKey.
//
// If opts is nil, DefaultConfig is used.
// If the 'logger' is nil, a no-op logger writing to io.Discard will be used.
func New(apiKey string, opts *Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := DefaultConfig()
	if opts != nil {
		if opts.BaseURL != "" {
			c.BaseURL = opts.BaseURL
		}
		if opts.Timeout > 0 {
			c.Timeout = opts.Timeout
		}
		c.Transport = opts.Transport
	}

	// relative resolution of events.json keeps the last path segment only with a trailing slash
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}

	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}

	return &Client{
		http: &http.Client{
			Timeout:   c.Timeout,
			Transport: NewTransport(apiKey, nil, logger)(c.Transport),
		},
		baseURL: base,
		logger:  logger,
	}, nil
}
