// Package domain defines the subscriber intake business logic.
package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/TalentedProger/Preloader-Animate/internal/observability"
)

const (
	// DefaultListLimit is used when the caller does not ask for a page size.
	DefaultListLimit = 20
	// MaxListLimit caps admin listings.
	MaxListLimit = 100
)

// Service orchestrates subscriber workflows.
type Service struct {
	store    Store
	validate *validator.Validate
	logger   *zap.Logger
}

// ServiceOption configures optional Service behaviour.
type ServiceOption func(*Service)

// WithLogger overrides the service logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSubscriber validates the email and persists a new subscriber. Invalid
// input yields *ValidationError and never reaches the store. Duplicate emails
// are accepted and produce distinct records.
func (s *Service) CreateSubscriber(ctx context.Context, input CreateSubscriberInput) (*Subscriber, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := s.validateInput(input); err != nil {
		observability.RecordValidationRejected()
		return nil, err
	}

	sub, err := s.store.CreateSubscriber(ctx, input)
	if err != nil {
		return nil, s.storageError("create subscriber", err)
	}

	s.logger.Info("subscriber created", zap.Int64("subscriber_id", sub.ID))
	return sub, nil
}

// ListSubscribers returns the most recent subscribers, newest first.
func (s *Service) ListSubscribers(ctx context.Context, limit int) ([]Subscriber, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	subs, err := s.store.ListSubscribers(ctx, limit)
	if err != nil {
		return nil, s.storageError("list subscribers", err)
	}
	return subs, nil
}

// CountSubscribers returns the total number of stored subscribers.
func (s *Service) CountSubscribers(ctx context.Context) (int, error) {
	n, err := s.store.CountSubscribers(ctx)
	if err != nil {
		return 0, s.storageError("count subscribers", err)
	}
	return n, nil
}

func (s *Service) validateInput(input CreateSubscriberInput) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "email", Message: err.Error()}
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Message: "is required"}
	case "email":
		return &ValidationError{Field: field, Message: "must be a valid email address"}
	default:
		return &ValidationError{Field: field, Message: "failed " + fe.Tag() + " check"}
	}
}

func (s *Service) storageError(op string, err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		s.logger.Warn("subscriber storage unavailable", zap.String("op", op), zap.Error(err))
		return err
	}
	var unexpected *UnexpectedStorageError
	if !errors.As(err, &unexpected) {
		unexpected = &UnexpectedStorageError{Err: err}
	}
	s.logger.Error("subscriber storage failure", zap.String("op", op), zap.Error(err))
	return unexpected
}
