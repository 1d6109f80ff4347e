package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"homefinder/internal/config"
	"homefinder/internal/domain"
	"homefinder/internal/fetcher"
)

type Service struct {
	subscribers SubscriberStore
	searcher    Searcher
	differ      Differ
	publisher   Publisher
	logger      *slog.Logger
	config      config.AlertsConfig
	now         func() time.Time
}

// NewService creates the alert round service. publisher may be nil.
func NewService(
	subscribers SubscriberStore,
	searcher Searcher,
	differ Differ,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.AlertsConfig,
) *Service {
	return &Service{
		subscribers: subscribers,
		searcher:    searcher,
		differ:      differ,
		publisher:   publisher,
		logger:      logger.With("component", "alerts"),
		config:      cfg,
		now:         time.Now,
	}
}

type subscriberResult struct {
	fresh  []domain.Listing
	failed bool
}

// Check runs one alert round over every subscriber and reports the listings each
// has not seen before.
func (s *Service) Check(ctx context.Context) (*domain.AlertsResponse, *domain.RoundStats, error) {
	startTime := time.Now()

	subs, err := s.subscribers.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list subscribers: %w", err)
	}

	s.logger.Info("starting alert round",
		"subscribers", len(subs),
		"max_concurrent", s.config.MaxConcurrentSubscribers,
	)

	timestamp := s.now().UTC()
	results := make([]subscriberResult, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	if s.config.MaxConcurrentSubscribers > 0 {
		g.SetLimit(s.config.MaxConcurrentSubscribers)
	}
	for i := range subs {
		sub := subs[i]
		g.Go(func() error {
			fresh, err := s.checkSubscriber(gctx, sub)
			if err != nil {
				var ce *fetcher.ConfigError
				if errors.As(err, &ce) {
					return err
				}
				s.logger.Error("subscriber check failed", "client_id", sub.ID, "error", err)
				results[i] = subscriberResult{failed: true}
				return nil
			}
			results[i] = subscriberResult{fresh: fresh}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("alert round aborted: %w", err)
	}

	stats := &domain.RoundStats{Subscribers: len(subs)}
	resp := &domain.AlertsResponse{Alerts: []domain.Alert{}}

	for i, sub := range subs {
		r := results[i]
		if r.failed {
			stats.Failed++
			continue
		}
		if len(r.fresh) == 0 {
			continue
		}
		resp.Alerts = append(resp.Alerts, domain.Alert{
			ClientID:    sub.ID,
			ClientName:  clientName(sub),
			NewListings: r.fresh,
			Timestamp:   timestamp,
			TotalNew:    len(r.fresh),
		})
		resp.TotalNewListings += len(r.fresh)
	}
	resp.TotalAlerts = len(resp.Alerts)

	stats.Alerts = resp.TotalAlerts
	stats.NewListings = resp.TotalNewListings

	if s.publisher != nil {
		for i := range resp.Alerts {
			if err := s.publisher.Publish(ctx, &resp.Alerts[i]); err != nil {
				s.logger.Error("publish alert failed", "client_id", resp.Alerts[i].ClientID, "error", err)
				stats.PublishErrors++
			} else {
				stats.Published++
			}
		}
	}

	stats.Duration = time.Since(startTime)

	s.logger.Info("alert round completed",
		"subscribers", stats.Subscribers,
		"failed", stats.Failed,
		"alerts", stats.Alerts,
		"new_listings", stats.NewListings,
		"published", stats.Published,
		"publish_errors", stats.PublishErrors,
		"duration", stats.Duration,
	)

	return resp, stats, nil
}

var errAllSourcesFailed = errors.New("every source failed")

func (s *Service) checkSubscriber(ctx context.Context, sub domain.Subscriber) ([]domain.Listing, error) {
	result, err := s.searcher.SearchAll(ctx, sub.SearchCriteria)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	if !anySucceeded(result.Outcomes) {
		if s.config.ResetSnapshotOnFailure {
			if _, err := s.differ.Diff(ctx, sub.ID, []domain.Listing{}); err != nil {
				return nil, fmt.Errorf("reset snapshot: %w", err)
			}
		}
		return nil, errAllSourcesFailed
	}

	fresh, err := s.differ.Diff(ctx, sub.ID, result.Listings)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	s.logger.Debug("subscriber checked",
		"client_id", sub.ID,
		"found", result.TotalFound,
		"new", len(fresh),
	)
	return fresh, nil
}

func anySucceeded(outcomes []domain.SourceOutcome) bool {
	if len(outcomes) == 0 {
		return true
	}
	for _, o := range outcomes {
		if o.Success {
			return true
		}
	}
	return false
}

func clientName(sub domain.Subscriber) string {
	if sub.Name != "" {
		return sub.Name
	}
	return "Client " + sub.ID
}
