// Package persistence composes subscriber stores.
package persistence

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/TalentedProger/Preloader-Animate/internal/domain"
	"github.com/TalentedProger/Preloader-Animate/internal/observability"
)

// FallbackStore serves requests from a durable primary store and diverts to a
// volatile store whenever the primary reports domain.ErrStorageUnavailable.
// Subscribers accepted by the volatile store are not copied back and their
// ids may overlap with durable ids.
type FallbackStore struct {
	primary  domain.Store
	volatile domain.Store
	logger   *zap.Logger
}

// NewFallbackStore constructs a FallbackStore. A nil logger disables logging.
func NewFallbackStore(primary, volatile domain.Store, logger *zap.Logger) *FallbackStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackStore{primary: primary, volatile: volatile, logger: logger}
}

// CreateSubscriber writes to the primary store, or to the volatile store when
// the primary is unreachable.
func (s *FallbackStore) CreateSubscriber(ctx context.Context, input domain.CreateSubscriberInput) (*domain.Subscriber, error) {
	sub, err := s.primary.CreateSubscriber(ctx, input)
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		return sub, err
	}

	s.logger.Warn("durable store unavailable; subscriber kept in memory only", zap.Error(err))
	observability.RecordFallbackWrite()
	return s.volatile.CreateSubscriber(ctx, input)
}

// ListSubscribers lists from the primary store, or the volatile one when the
// primary is unreachable.
func (s *FallbackStore) ListSubscribers(ctx context.Context, limit int) ([]domain.Subscriber, error) {
	subs, err := s.primary.ListSubscribers(ctx, limit)
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		return subs, err
	}
	s.logger.Warn("durable store unavailable; listing volatile subscribers", zap.Error(err))
	return s.volatile.ListSubscribers(ctx, limit)
}

// CountSubscribers counts from the primary store, or the volatile one when the
// primary is unreachable.
func (s *FallbackStore) CountSubscribers(ctx context.Context) (int, error) {
	n, err := s.primary.CountSubscribers(ctx)
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		return n, err
	}
	return s.volatile.CountSubscribers(ctx)
}
