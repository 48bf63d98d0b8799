package cad

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/star/closeapproach/internal/metrics"
)

// Source fetches one raw payload. *Fetcher implements it.
type Source interface {
	Fetch(ctx context.Context, params url.Values) (*Payload, error)
}

// PayloadCache stores raw provider responses keyed by their query string.
type PayloadCache interface {
	Get(query string) ([]byte, time.Time, bool)
	Put(query string, data []byte, ts time.Time) error
}

// Result is the outcome of one search.
type Result struct {
	Query     Query
	Rows      RowSet
	FetchedAt time.Time
	Calls     int // provider round trips, excluding cache hits
	CacheHits int
}

// Empty reports a successful search with no matching approaches.
func (r *Result) Empty() bool {
	return r.Rows.Empty()
}

// Runner executes searches: build params, fetch, normalize and, for "both",
// combine the two categories.
type Runner struct {
	source Source
	cache  PayloadCache
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner creates a Runner. cache may be nil.
func NewRunner(source Source, cache PayloadCache, logger *slog.Logger) *Runner {
	return &Runner{
		source: source,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes q. A "both" query fetches NEOs, then comets once the first
// call has returned; the first failure ends the search.
func (r *Runner) Run(ctx context.Context, q Query) (*Result, error) {
	res := &Result{Query: q}

	for i, part := range q.Split() {
		p, hit, err := r.load(ctx, BuildParams(part))
		if err != nil {
			return nil, fmt.Errorf("fetching %s close approaches: %w", part.ObjectType, err)
		}
		if hit {
			res.CacheHits++
		} else {
			res.Calls++
		}

		rows := Normalize(p, r.logger)
		if i == 0 {
			res.Rows = rows
		} else {
			res.Rows = Combine(res.Rows, rows)
		}
	}

	res.FetchedAt = r.now()
	metrics.ObserveRows(res.Rows.Len())

	r.logger.Info("close-approach search complete",
		"component", "runner",
		"body", q.Body.Code,
		"object_type", q.ObjectType,
		"rows", res.Rows.Len(),
		"calls", res.Calls,
		"cache_hits", res.CacheHits,
	)

	return res, nil
}

func (r *Runner) load(ctx context.Context, params url.Values) (*Payload, bool, error) {
	key := params.Encode()

	if r.cache != nil {
		if data, _, ok := r.cache.Get(key); ok {
			p, err := DecodePayload(data)
			if err == nil {
				return p, true, nil
			}
			r.logger.Warn("discarding undecodable cached payload", "error", err)
		}
	}

	p, err := r.source.Fetch(ctx, params)
	if err != nil {
		return nil, false, err
	}

	if r.cache != nil && p.Raw() != nil {
		if err := r.cache.Put(key, p.Raw(), r.now()); err != nil {
			r.logger.Warn("failed to cache payload", "error", err)
		}
	}

	return p, false, nil
}
