// Package postgres provides the durable subscriber store and its outbox writer.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/TalentedProger/Preloader-Animate/internal/domain"
	"github.com/TalentedProger/Preloader-Animate/internal/events"
	"github.com/TalentedProger/Preloader-Animate/internal/observability"
)

// Backend labels metrics emitted by this store.
const Backend = "postgres"

// DB is the subset of *pgxpool.Pool used by Store.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides Postgres-backed persistence for subscribers and outbox events.
type Store struct {
	db DB
}

// NewStore constructs a Store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const insertSubscriber = `INSERT INTO subscribers (email) VALUES ($1)
        RETURNING id, email, created_at, is_active`

const insertOutbox = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

// CreateSubscriber inserts the subscriber and its subscriber.created outbox
// event inside a single transaction.
func (s *Store) CreateSubscriber(ctx context.Context, input domain.CreateSubscriberInput) (*domain.Subscriber, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var sub domain.Subscriber
	if err := tx.QueryRow(ctx, insertSubscriber, input.Email).Scan(&sub.ID, &sub.Email, &sub.CreatedAt, &sub.IsActive); err != nil {
		return nil, classify(fmt.Errorf("insert subscriber: %w", err))
	}

	if err := s.insertOutbox(ctx, tx, sub); err != nil {
		return nil, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(fmt.Errorf("commit: %w", err))
	}

	observability.RecordSubscriberPersisted(Backend, sub.CreatedAt)
	return &sub, nil
}

func (s *Store) insertOutbox(ctx context.Context, tx pgx.Tx, sub domain.Subscriber) error {
	body, err := json.Marshal(events.SubscriberCreated{
		EventID:      uuid.NewString(),
		SubscriberID: sub.ID,
		Email:        sub.Email,
		IsActive:     sub.IsActive,
		CreatedAt:    sub.CreatedAt,
		Version:      "v1",
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	id := strconv.FormatInt(sub.ID, 10)
	_, err = tx.Exec(ctx, insertOutbox,
		"subscriber",
		id,
		events.TypeSubscriberCreated,
		events.TopicSubscriberEvents,
		id,
		body,
		fmt.Sprintf("%s:%s", id, events.TypeSubscriberCreated),
	)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

// ListSubscribers returns up to limit subscribers, newest first.
func (s *Store) ListSubscribers(ctx context.Context, limit int) ([]domain.Subscriber, error) {
	const query = `SELECT id, email, created_at, is_active FROM subscribers
        ORDER BY created_at DESC, id DESC LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("list subscribers: %w", err))
	}
	defer rows.Close()

	results := make([]domain.Subscriber, 0, limit)
	for rows.Next() {
		var sub domain.Subscriber
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.CreatedAt, &sub.IsActive); err != nil {
			return nil, classify(fmt.Errorf("scan subscriber: %w", err))
		}
		results = append(results, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("list subscribers: %w", err))
	}
	return results, nil
}

// CountSubscribers returns the number of stored subscribers.
func (s *Store) CountSubscribers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM subscribers`).Scan(&n); err != nil {
		return 0, classify(fmt.Errorf("count subscribers: %w", err))
	}
	return n, nil
}
