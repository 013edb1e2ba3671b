package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStorageUnavailable is returned (usually wrapped) when the durable backend
// cannot be reached.
var ErrStorageUnavailable = errors.New("subscriber storage unavailable")

// Subscriber is a persisted newsletter subscription.
type Subscriber struct {
	ID        int64
	Email     string
	CreatedAt time.Time
	IsActive  bool
}

// CreateSubscriberInput captures the payload from the API layer.
type CreateSubscriberInput struct {
	Email string `validate:"required,email"`
}

// Store captures persistence operations for subscribers.
type Store interface {
	CreateSubscriber(ctx context.Context, input CreateSubscriberInput) (*Subscriber, error)
	ListSubscribers(ctx context.Context, limit int) ([]Subscriber, error)
	CountSubscribers(ctx context.Context) (int, error)
}

// ValidationError reports input that was rejected before any persistence.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UnexpectedStorageError wraps persistence failures other than unavailability.
type UnexpectedStorageError struct {
	Err error
}

func (e *UnexpectedStorageError) Error() string {
	return fmt.Sprintf("unexpected storage error: %v", e.Err)
}

func (e *UnexpectedStorageError) Unwrap() error {
	return e.Err
}
