package scheduler

import (
	"context"
	"log/slog"
	"time"

	"homefinder/internal/domain"
)

// Checker runs one alert round.
type Checker interface {
	Check(ctx context.Context) (*domain.AlertsResponse, *domain.RoundStats, error)
}

type Scheduler struct {
	checker      Checker
	interval     time.Duration
	roundTimeout time.Duration
	logger       *slog.Logger
}

func NewScheduler(checker Checker, interval, roundTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		checker:      checker,
		interval:     interval,
		roundTimeout: roundTimeout,
		logger:       logger.With("component", "scheduler"),
	}
}

// Start runs a round immediately and then every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "round_timeout", s.roundTimeout)

	s.runRound(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runRound(ctx)
		}
	}
}

func (s *Scheduler) runRound(ctx context.Context) {
	roundCtx := ctx
	if s.roundTimeout > 0 {
		var cancel context.CancelFunc
		roundCtx, cancel = context.WithTimeout(ctx, s.roundTimeout)
		defer cancel()
	}

	if _, _, err := s.checker.Check(roundCtx); err != nil {
		s.logger.Error("alert round failed", "error", err)
	}
}
