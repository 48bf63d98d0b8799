package cad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/star/closeapproach/internal/metrics"
)

// DefaultSourceURL is the JPL SSD/CNEOS close-approach data endpoint.
const DefaultSourceURL = "https://ssd-api.jpl.nasa.gov/cad.api"

// Fetch limits applied unless overridden by options.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 50 << 20
)

// Fetcher retrieves close-approach payloads from the provider.
type Fetcher struct {
	sourceURL    string
	httpClient   *http.Client
	maxBodyBytes int64
	logger       *slog.Logger
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.httpClient = c }
}

// WithTimeout sets the client timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.httpClient.Timeout = d }
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *Fetcher) { f.maxBodyBytes = n }
}

// NewFetcher creates a Fetcher for sourceURL, or DefaultSourceURL when empty.
func NewFetcher(sourceURL string, logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	f := &Fetcher{
		sourceURL: sourceURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SourceURL returns the configured endpoint.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch performs a single GET with params as the query string. Any failure
// is returned as a *FetchError; there is no retry.
func (f *Fetcher) Fetch(ctx context.Context, params url.Values) (*Payload, error) {
	start := time.Now()
	p, err := f.fetch(ctx, params)
	duration := time.Since(start)

	outcome := "ok"
	var fe *FetchError
	if errors.As(err, &fe) {
		outcome = string(fe.Kind)
		f.logger.Warn("close-approach fetch failed",
			"component", "fetcher",
			"kind", fe.Kind,
			"status", fe.StatusCode,
			"detail", fe.Detail,
			"duration_ms", duration.Milliseconds(),
		)
	} else {
		f.logger.Debug("close-approach fetch complete",
			"component", "fetcher",
			"count", int(p.Count),
			"duration_ms", duration.Milliseconds(),
		)
	}
	metrics.ObserveFetch(outcome, duration)

	return p, err
}

func (f *Fetcher) fetch(ctx context.Context, params url.Values) (*Payload, error) {
	u, err := url.Parse(f.sourceURL)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, Detail: err.Error(), Err: err}
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, Detail: err.Error(), Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, Detail: err.Error(), Err: fmt.Errorf("reading response body: %w", err)}
	}
	if int64(len(body)) > f.maxBodyBytes {
		err := fmt.Errorf("response exceeds %d byte limit", f.maxBodyBytes)
		return nil, &FetchError{Kind: KindTransport, Detail: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, ok := errorDetail(body)
		kind := KindProviderNoDetail
		if ok {
			kind = KindProviderDetail
		}
		return nil, &FetchError{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Detail:     detail,
			Err:        fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.sourceURL),
		}
	}

	p, err := DecodePayload(body)
	if err != nil {
		return nil, &FetchError{Kind: KindProviderNoDetail, StatusCode: resp.StatusCode, Detail: NoDetail, Err: err}
	}
	return p, nil
}
