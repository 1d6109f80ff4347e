package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"homefinder/internal/domain"
)

// SubscriberStore is the subscriber directory.
type SubscriberStore struct {
	db *sqlx.DB
}

func NewSubscriberStore(db *sqlx.DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

type subscriberRow struct {
	ID             string `db:"id"`
	Name           string `db:"name"`
	Email          string `db:"email"`
	SearchCriteria []byte `db:"search_criteria"`
}

// List returns every subscriber in directory order.
func (s *SubscriberStore) List(ctx context.Context) ([]domain.Subscriber, error) {
	var rows []subscriberRow
	query := `
		SELECT id, name, email, search_criteria
		FROM subscribers
		ORDER BY created_at, id`

	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query); err != nil {
		return nil, fmt.Errorf("select subscribers: %w", err)
	}

	subs := make([]domain.Subscriber, 0, len(rows))
	for _, r := range rows {
		sub := domain.Subscriber{ID: r.ID, Name: r.Name, Email: r.Email}
		if len(r.SearchCriteria) > 0 {
			if err := json.Unmarshal(r.SearchCriteria, &sub.SearchCriteria); err != nil {
				return nil, fmt.Errorf("decode search criteria for %s: %w", r.ID, err)
			}
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (s *SubscriberStore) Upsert(ctx context.Context, sub *domain.Subscriber) error {
	criteria, err := json.Marshal(sub.SearchCriteria)
	if err != nil {
		return fmt.Errorf("encode search criteria: %w", err)
	}

	query := `
		INSERT INTO subscribers (id, name, email, search_criteria)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			search_criteria = EXCLUDED.search_criteria`

	_, err = GetExecutor(ctx, s.db).ExecContext(ctx, query, sub.ID, sub.Name, sub.Email, criteria)
	return err
}
