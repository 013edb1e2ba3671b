// Package memory provides a volatile, process-local subscriber store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/TalentedProger/Preloader-Animate/internal/domain"
	"github.com/TalentedProger/Preloader-Animate/internal/observability"
)

// Backend labels metrics emitted by this store.
const Backend = "memory"

// Store keeps subscribers in memory. Contents are lost on restart.
type Store struct {
	mu          sync.RWMutex
	subscribers []domain.Subscriber
	nextID      int64
	now         func() time.Time
}

// NewStore returns a Store pre-populated with seed. Ids continue from the
// highest seeded id.
func NewStore(seed ...domain.Subscriber) *Store {
	s := &Store{
		subscribers: make([]domain.Subscriber, 0, len(seed)),
		nextID:      1,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, sub := range seed {
		s.subscribers = append(s.subscribers, sub)
		if sub.ID >= s.nextID {
			s.nextID = sub.ID + 1
		}
	}
	return s
}

// WithClock overrides the timestamp source used for CreatedAt.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// CreateSubscriber appends a new active subscriber.
func (s *Store) CreateSubscriber(_ context.Context, input domain.CreateSubscriberInput) (*domain.Subscriber, error) {
	s.mu.Lock()
	sub := domain.Subscriber{
		ID:        s.nextID,
		Email:     input.Email,
		CreatedAt: s.now(),
		IsActive:  true,
	}
	s.nextID++
	s.subscribers = append(s.subscribers, sub)
	s.mu.Unlock()

	observability.RecordSubscriberPersisted(Backend, sub.CreatedAt)
	return &sub, nil
}

// ListSubscribers returns up to limit subscribers, newest first.
func (s *Store) ListSubscribers(_ context.Context, limit int) ([]domain.Subscriber, error) {
	s.mu.RLock()
	out := make([]domain.Subscriber, len(s.subscribers))
	copy(out, s.subscribers)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountSubscribers reports how many subscribers are held.
func (s *Store) CountSubscribers(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers), nil
}
