package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"homefinder/internal/domain"
)

// SnapshotStore persists listing snapshots as JSONB so diffs survive restarts.
type SnapshotStore struct {
	db *sqlx.DB
	tx *TransactionManager
}

func NewSnapshotStore(db *sqlx.DB) *SnapshotStore {
	return &SnapshotStore{db: db, tx: NewTransactionManager(db)}
}

func (s *SnapshotStore) Get(ctx context.Context, key string) ([]domain.Listing, bool, error) {
	return s.get(ctx, key, false)
}

func (s *SnapshotStore) Set(ctx context.Context, key string, listings []domain.Listing) error {
	if listings == nil {
		listings = []domain.Listing{}
	}
	body, err := json.Marshal(listings)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	query := `
		INSERT INTO listing_snapshots (subscriber_id, listings, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (subscriber_id) DO UPDATE SET
			listings = EXCLUDED.listings,
			updated_at = EXCLUDED.updated_at`

	if _, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, key, body); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// Swap replaces the snapshot for key and returns the previous one. A transaction
// scoped advisory lock on key serialises swaps across processes, including the
// first one when no row exists yet.
func (s *SnapshotStore) Swap(ctx context.Context, key string, listings []domain.Listing) ([]domain.Listing, bool, error) {
	var previous []domain.Listing
	var found bool

	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := GetExecutor(txCtx, s.db).ExecContext(txCtx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("lock snapshot: %w", err)
		}

		var err error
		previous, found, err = s.get(txCtx, key, true)
		if err != nil {
			return err
		}
		return s.Set(txCtx, key, listings)
	})
	if err != nil {
		return nil, false, err
	}
	return previous, found, nil
}

func (s *SnapshotStore) get(ctx context.Context, key string, forUpdate bool) ([]domain.Listing, bool, error) {
	query := `SELECT listings FROM listing_snapshots WHERE subscriber_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var body []byte
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &body, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select snapshot: %w", err)
	}

	var listings []domain.Listing
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return listings, true, nil
}
