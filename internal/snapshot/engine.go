// Package snapshot remembers what each subscriber has already seen and reports
// what is new.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"homefinder/internal/dedupe"
	"homefinder/internal/domain"
)

// Engine diffs listing sets against stored snapshots. Calls for the same key are
// serialised; different keys proceed independently.
type Engine struct {
	store  Store
	locks  sync.Map
	logger *slog.Logger
}

func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.With("component", "snapshot"),
	}
}

// DiffKey identifies a listing across rounds: its ID, or the dedupe key when the
// source gave none.
func DiffKey(l domain.Listing) string {
	if l.ID != "" {
		return l.ID
	}
	return dedupe.Key(l)
}

// Compare returns the listings of current whose DiffKey is absent from previous,
// each key at most once, in current order.
func Compare(previous, current []domain.Listing) []domain.Listing {
	seen := make(map[string]struct{}, len(previous))
	for _, l := range previous {
		seen[DiffKey(l)] = struct{}{}
	}

	fresh := []domain.Listing{}
	for _, l := range current {
		k := DiffKey(l)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		fresh = append(fresh, l)
	}
	return fresh
}

// Diff reports the listings new to key and then replaces the snapshot with current.
func (e *Engine) Diff(ctx context.Context, key string, current []domain.Listing) ([]domain.Listing, error) {
	unlock := e.lock(key)
	defer unlock()

	previous, found, err := e.swap(ctx, key, current)
	if err != nil {
		return nil, err
	}

	fresh := Compare(previous, current)

	e.logger.Debug("snapshot diffed",
		"key", key,
		"first_seen", !found,
		"previous", len(previous),
		"current", len(current),
		"new", len(fresh),
	)
	return fresh, nil
}

// RecordSnapshot stores current as the baseline for key without diffing.
func (e *Engine) RecordSnapshot(ctx context.Context, key string, current []domain.Listing) error {
	unlock := e.lock(key)
	defer unlock()

	if err := e.store.Set(ctx, key, current); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (e *Engine) swap(ctx context.Context, key string, current []domain.Listing) ([]domain.Listing, bool, error) {
	if sw, ok := e.store.(Swapper); ok {
		previous, found, err := sw.Swap(ctx, key, current)
		if err != nil {
			return nil, false, fmt.Errorf("swap snapshot: %w", err)
		}
		return previous, found, nil
	}

	previous, found, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}
	if err := e.store.Set(ctx, key, current); err != nil {
		return nil, false, fmt.Errorf("save snapshot: %w", err)
	}
	return previous, found, nil
}

func (e *Engine) lock(key string) func() {
	v, _ := e.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
