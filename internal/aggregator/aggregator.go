package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"homefinder/internal/dedupe"
	"homefinder/internal/domain"
	"homefinder/internal/fetcher"
	"homefinder/internal/source"
)

// Aggregator runs every adapter concurrently and merges their results.
type Aggregator struct {
	adapters     []source.Adapter
	roundTimeout time.Duration
	logger       *slog.Logger
}

// New creates an aggregator. A zero roundTimeout leaves rounds unbounded.
func New(adapters []source.Adapter, roundTimeout time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		adapters:     adapters,
		roundTimeout: roundTimeout,
		logger:       logger.With("component", "aggregator"),
	}
}

func (a *Aggregator) Sources() []string {
	names := make([]string, 0, len(a.adapters))
	for _, ad := range a.adapters {
		names = append(names, ad.Name())
	}
	return names
}

type scrapeResult struct {
	listings []domain.Listing
	err      error
}

// SearchAll queries every source. Source failures are reported per outcome; only
// a *fetcher.ConfigError fails the whole call.
func (a *Aggregator) SearchAll(ctx context.Context, query domain.SearchQuery) (*domain.AggregationResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	start := time.Now()
	if a.roundTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.roundTimeout)
		defer cancel()
	}

	outcomes := make([]domain.SourceOutcome, len(a.adapters))
	configErrs := make([]*fetcher.ConfigError, len(a.adapters))

	var g errgroup.Group
	g.SetLimit(len(a.adapters))
	for i, ad := range a.adapters {
		g.Go(func() error {
			outcomes[i], configErrs[i] = a.run(ctx, ad, query)
			return nil
		})
	}
	_ = g.Wait()

	for _, ce := range configErrs {
		if ce != nil {
			return nil, ce
		}
	}

	var merged []domain.Listing
	for _, o := range outcomes {
		merged = append(merged, o.Listings...)
	}
	listings := dedupe.Dedupe(merged)

	a.logger.Info("aggregation completed",
		"location", query.Location,
		"sources", len(outcomes),
		"raw", len(merged),
		"total", len(listings),
		"duration", time.Since(start),
	)

	return &domain.AggregationResult{
		Listings:   listings,
		Outcomes:   outcomes,
		TotalFound: len(listings),
	}, nil
}

func (a *Aggregator) run(ctx context.Context, ad source.Adapter, query domain.SearchQuery) (domain.SourceOutcome, *fetcher.ConfigError) {
	name := ad.Name()
	done := make(chan scrapeResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- scrapeResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		listings, err := ad.Scrape(ctx, query)
		done <- scrapeResult{listings: listings, err: err}
	}()

	var res scrapeResult
	select {
	case res = <-done:
	case <-ctx.Done():
		msg := "round cancelled"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "round deadline exceeded"
		}
		a.logger.Warn("source abandoned", "source", name, "reason", msg)
		return domain.SourceOutcome{Source: name, Success: false, Listings: []domain.Listing{}, Error: msg}, nil
	}

	if res.err != nil {
		var ce *fetcher.ConfigError
		if errors.As(res.err, &ce) {
			return domain.SourceOutcome{Source: name, Listings: []domain.Listing{}, Error: ce.Error()}, ce
		}
		a.logger.Warn("source failed", "source", name, "error", res.err)
		return domain.SourceOutcome{Source: name, Success: false, Listings: []domain.Listing{}, Error: res.err.Error()}, nil
	}

	listings := res.listings
	if listings == nil {
		listings = []domain.Listing{}
	}
	return domain.SourceOutcome{Source: name, Success: true, Listings: listings}, nil
}
