package preloader

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrAlreadyStarted is returned when Start is called on a sequencer that has
// already been started. Sequences are one-shot; remount to replay.
var ErrAlreadyStarted = errors.New("preloader: sequence already started")

// State is the lifecycle state of a Sequencer.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Observer receives progress updates on every tick. It runs with the
// sequencer's lock held and must not call back into the Sequencer.
type Observer func(Progress)

// Option configures optional behaviour for the Sequencer.
type Option func(*Sequencer)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(s *Sequencer) {
		s.clock = clock
	}
}

// WithTickInterval overrides how often progress is recomputed.
func WithTickInterval(d time.Duration) Option {
	return func(s *Sequencer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithObserver registers a progress observer.
func WithObserver(fn Observer) Option {
	return func(s *Sequencer) {
		s.observer = fn
	}
}

// WithLogger overrides the logger used for lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

// Sequencer runs a single timed reveal. It owns one repeating ticker which is
// released on completion or cancellation.
type Sequencer struct {
	clock    Clock
	interval time.Duration
	observer Observer
	logger   *zap.Logger

	mu         sync.Mutex
	state      State
	startedAt  time.Time
	total      time.Duration
	progress   Progress
	ticker     Ticker
	onComplete func()
	stop       chan struct{}
	done       chan struct{}
}

// New constructs an idle Sequencer.
func New(opts ...Option) *Sequencer {
	s := &Sequencer{
		clock:    SystemClock{},
		interval: DefaultTickInterval,
		logger:   zap.NewNop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the sequence. onComplete is invoked exactly once, from the
// sequencer's goroutine, once total has elapsed, unless Cancel runs first.
// A non-positive total is a programming error and panics.
func (s *Sequencer) Start(total time.Duration, onComplete func()) error {
	if total <= 0 {
		panic(fmt.Sprintf("preloader: total duration must be positive, got %s", total))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrAlreadyStarted
	}

	s.state = StateRunning
	s.total = total
	s.startedAt = s.clock.Now()
	s.progress = Progress{}
	s.onComplete = onComplete
	s.stop = make(chan struct{})
	s.ticker = s.clock.NewTicker(s.interval)

	s.logger.Debug("preloader started", zap.Duration("total", total), zap.Duration("tick", s.interval))

	go s.run(s.ticker, s.stop)
	return nil
}

// Cancel stops the sequence. Once Cancel returns no further observer call or
// completion callback will begin. Cancelling an idle sequencer makes it
// terminal; cancelling a finished one does nothing.
func (s *Sequencer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		s.state = StateCancelled
		close(s.done)
	case StateRunning:
		s.ticker.Stop()
		close(s.stop)
		s.state = StateCancelled
		s.onComplete = nil
		s.logger.Debug("preloader cancelled", zap.Int("percent", s.progress.Percent), zap.Int("step", s.progress.Step))
	}
}

// Snapshot returns the most recently published progress.
func (s *Sequencer) Snapshot() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// State reports the current lifecycle state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the sequence has reached a terminal state and its tick
// loop has exited.
func (s *Sequencer) Done() <-chan struct{} {
	return s.done
}

func (s *Sequencer) run(ticker Ticker, stop <-chan struct{}) {
	defer close(s.done)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			finished, callback := s.tick()
			if callback != nil {
				callback()
			}
			if finished {
				return
			}
		}
	}
}

// tick recomputes progress. It reports whether the loop should exit and, on
// the completing tick only, returns the callback to invoke outside the lock.
func (s *Sequencer) tick() (bool, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return true, nil
	}

	elapsed := s.clock.Now().Sub(s.startedAt)
	next := ProgressAt(elapsed, s.total)
	if next.Ratio < s.progress.Ratio {
		// Clock went backwards; hold the last published position.
		next.Ratio = s.progress.Ratio
		next.Percent = s.progress.Percent
		next.Step = s.progress.Step
	}
	s.progress = next

	if s.observer != nil {
		s.observer(next)
	}

	if elapsed < s.total {
		return false, nil
	}

	s.ticker.Stop()
	s.state = StateCompleted
	callback := s.onComplete
	s.onComplete = nil
	s.logger.Debug("preloader completed", zap.Duration("elapsed", elapsed))
	return true, callback
}
