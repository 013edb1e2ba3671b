// Package outbox delivers events recorded in the outbox table to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DefaultClaimTimeout is how long a claimed but unpublished event is held
// before another poll may pick it up again.
const DefaultClaimTimeout = time.Minute

// Dispatcher drains the outbox table and delivers events to Kafka.
type Dispatcher struct {
	db               TxBeginner
	producer         messageWriter
	pollInterval     time.Duration
	batchSize        int
	claimTimeout     time.Duration
	logger           *zap.Logger
	shutdownComplete chan struct{}
}

// Option configures optional Dispatcher behaviour.
type Option func(*Dispatcher)

// WithLogger overrides the dispatcher logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithClaimTimeout overrides DefaultClaimTimeout.
func WithClaimTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.claimTimeout = timeout
		}
	}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(db TxBeginner, producer messageWriter, pollInterval time.Duration, batchSize int, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		db:               db,
		producer:         producer,
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		claimTimeout:     DefaultClaimTimeout,
		logger:           zap.NewNop(),
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if _, err := d.ProcessBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("outbox dispatcher error", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// ProcessBatch claims, delivers, and marks one batch. It returns how many
// events were published.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	start := time.Now()

	messages, err := d.fetchAndClaim(ctx)
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	if err := d.deliver(ctx, messages); err != nil {
		failedCounter.Add(float64(len(messages)))
		d.logger.Warn("outbox delivery failed; releasing claims", zap.Int("events", len(messages)), zap.Error(err))
		if releaseErr := d.release(ctx, messages); releaseErr != nil {
			return 0, errors.Join(err, releaseErr)
		}
		return 0, err
	}

	if err := d.markPublished(ctx, messages); err != nil {
		return 0, err
	}
	deliveredCounter.Add(float64(len(messages)))
	return len(messages), nil
}

func (d *Dispatcher) fetchAndClaim(ctx context.Context) ([]Message, error) {
	tx, err := d.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `SELECT event_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload
        FROM outbox
        WHERE published_at IS NULL
          AND (claimed_at IS NULL OR claimed_at < NOW() - make_interval(secs => $2))
        ORDER BY event_id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, d.batchSize, d.claimTimeout.Seconds())
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, d.batchSize)
	ids := make([]int64, 0, d.batchSize)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.EventID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Topic, &msg.PartitionKey, &msg.Payload); err != nil {
			rows.Close()
			return nil, err
		}
		messages = append(messages, msg)
		ids = append(ids, msg.EventID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return messages, nil
}

func (d *Dispatcher) deliver(ctx context.Context, messages []Message) error {
	batches := make(map[string][]kafka.Message)
	order := make([]string, 0, 1)

	now := time.Now().UTC()
	for _, msg := range messages {
		if msg.Topic == "" {
			return fmt.Errorf("outbox event %d has no topic", msg.EventID)
		}
		record := kafka.Message{
			Key:   []byte(msg.PartitionKey),
			Value: []byte(msg.Payload),
			Time:  now,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(msg.EventType)},
				{Key: "aggregate_type", Value: []byte(msg.AggregateType)},
			},
		}
		if _, seen := batches[msg.Topic]; !seen {
			order = append(order, msg.Topic)
		}
		batches[msg.Topic] = append(batches[msg.Topic], record)
	}

	for _, topic := range order {
		if err := d.producer.WriteMessages(ctx, topic, batches[topic]...); err != nil {
			return fmt.Errorf("write %s: %w", topic, err)
		}
	}
	return nil
}

func (d *Dispatcher) markPublished(ctx context.Context, messages []Message) error {
	return d.updateBatch(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, messages)
}

func (d *Dispatcher) release(ctx context.Context, messages []Message) error {
	return d.updateBatch(ctx, `UPDATE outbox SET claimed_at = NULL WHERE event_id = ANY($1)`, messages)
}

func (d *Dispatcher) updateBatch(ctx context.Context, stmt string, messages []Message) error {
	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.EventID)
	}

	tx, err := d.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, stmt, ids); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Message represents a row fetched from outbox.
type Message struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	PartitionKey  string
	Payload       json.RawMessage
}
