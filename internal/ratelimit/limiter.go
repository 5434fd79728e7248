// Package ratelimit decides per-user admission from persisted usage counters.
// The limiter itself is stateless: all state lives in the counter store so
// concurrent processes sharing one database stay consistent.
package ratelimit

import (
	"context"
	"time"

	logpkg "github.com/kotoba-voice/kotoba/internal/logger"
	"github.com/kotoba-voice/kotoba/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultWindow is the rolling admission window
	DefaultWindow = 10 * time.Hour
	// DefaultLimit is the number of admitted calls allowed per window
	DefaultLimit int64 = 1000
)

// Outcome is the admission decision for one request. Storage failures are an
// expected operational outcome, not a fault, so they get their own variant
// and the caller decides what to do (this service fails open).
type Outcome int

const (
	// Admitted means the request is within the user's window budget
	Admitted Outcome = iota
	// Denied means the user exhausted the window budget; no counters were mutated
	Denied
	// StoreError means the counter store failed; callers treat this as admitted
	StoreError
)

// String returns the outcome name for logging
func (o Outcome) String() string {
	switch o {
	case Admitted:
		return "admitted"
	case Denied:
		return "denied"
	case StoreError:
		return "store_error"
	default:
		return "unknown"
	}
}

// Allowed reports whether the request should proceed. StoreError is allowed:
// on ambiguous storage failure we prefer serving the user over blocking them.
func (o Outcome) Allowed() bool {
	return o != Denied
}

// CounterStore is the persistence contract the limiter decides against.
// Implemented by database.UsageRepository.
type CounterStore interface {
	Get(ctx context.Context, userID string) (*models.UsageRecord, error)
	Create(ctx context.Context, userID string, now time.Time) (bool, error)
	IncrementIfUnder(ctx context.Context, userID string, limit int64, now time.Time) (bool, error)
	ResetWindow(ctx context.Context, userID string, cutoff, now time.Time) (bool, error)
}

// Limiter applies the sliding-window admission policy. Construct one per
// process; it holds no per-user state.
type Limiter struct {
	store  CounterStore
	window time.Duration
	limit  int64
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock overrides the limiter's clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter over the given counter store
func New(store CounterStore, window time.Duration, limit int64, logger *zap.Logger, opts ...Option) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Limiter{
		store:  store,
		window: window,
		limit:  limit,
		logger: logger,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Admit decides whether one request from userID may proceed and advances the
// user's counters when it may. Counter mutations are conditional single
// statements in the store, so concurrent requests for the same user cannot
// lose updates.
func (l *Limiter) Admit(ctx context.Context, userID string) Outcome {
	now := l.now()

	record, err := l.store.Get(ctx, userID)
	if err != nil {
		l.logger.Warn("usage_record_fetch_failed_failing_open",
			zap.String("user_id", logpkg.SanitizeUserID(userID)),
			zap.Error(err),
		)
		return StoreError
	}

	if record == nil {
		return l.admitFirstRequest(ctx, userID, now)
	}

	if record.WindowElapsed(now, l.window) {
		return l.admitAfterWindowReset(ctx, userID, now)
	}

	admitted, err := l.store.IncrementIfUnder(ctx, userID, l.limit, now)
	if err != nil {
		l.logger.Warn("usage_increment_failed_failing_open",
			zap.String("user_id", logpkg.SanitizeUserID(userID)),
			zap.Error(err),
		)
		return StoreError
	}
	if !admitted {
		return Denied
	}

	return Admitted
}

// admitFirstRequest creates the user's record with counters at 1. When a
// concurrent request created it first, fall through to the increment path.
func (l *Limiter) admitFirstRequest(ctx context.Context, userID string, now time.Time) Outcome {
	created, err := l.store.Create(ctx, userID, now)
	if err != nil {
		l.logger.Warn("usage_record_create_failed_failing_open",
			zap.String("user_id", logpkg.SanitizeUserID(userID)),
			zap.Error(err),
		)
		return StoreError
	}
	if created {
		return Admitted
	}

	admitted, err := l.store.IncrementIfUnder(ctx, userID, l.limit, now)
	if err != nil {
		return StoreError
	}
	if !admitted {
		return Denied
	}
	return Admitted
}

// admitAfterWindowReset starts a fresh window counting this request. The
// conditional reset can lose to a concurrent resetter; the loser increments
// into the window the winner started.
func (l *Limiter) admitAfterWindowReset(ctx context.Context, userID string, now time.Time) Outcome {
	cutoff := now.Add(-l.window)

	reset, err := l.store.ResetWindow(ctx, userID, cutoff, now)
	if err != nil {
		l.logger.Warn("usage_window_reset_failed_failing_open",
			zap.String("user_id", logpkg.SanitizeUserID(userID)),
			zap.Error(err),
		)
		return StoreError
	}
	if reset {
		return Admitted
	}

	admitted, err := l.store.IncrementIfUnder(ctx, userID, l.limit, now)
	if err != nil {
		return StoreError
	}
	if !admitted {
		return Denied
	}
	return Admitted
}
