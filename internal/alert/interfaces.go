package alert

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"homefinder/internal/domain"
)

type SubscriberStore interface {
	List(ctx context.Context) ([]domain.Subscriber, error)
}

type Searcher interface {
	SearchAll(ctx context.Context, query domain.SearchQuery) (*domain.AggregationResult, error)
}

type Differ interface {
	Diff(ctx context.Context, key string, current []domain.Listing) ([]domain.Listing, error)
}

type Publisher interface {
	Publish(ctx context.Context, alert *domain.Alert) error
	Close() error
}
