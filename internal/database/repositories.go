package database

import (
	"context"
	"time"

	"github.com/kotoba-voice/kotoba/internal/models"
)

// UsageRepositoryInterface defines the interface for usage record operations.
// This interface enables better testability by allowing mock implementations
type UsageRepositoryInterface interface {
	Get(ctx context.Context, userID string) (*models.UsageRecord, error)
	Create(ctx context.Context, userID string, now time.Time) (bool, error)
	IncrementIfUnder(ctx context.Context, userID string, limit int64, now time.Time) (bool, error)
	ResetWindow(ctx context.Context, userID string, cutoff, now time.Time) (bool, error)
}

// QuestionRepositoryInterface defines the interface for question log operations
type QuestionRepositoryInterface interface {
	Record(ctx context.Context, userID, question string, askedAt time.Time) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.QuestionRecord, error)
}

// Ensure concrete types implement the interfaces
var (
	_ UsageRepositoryInterface    = (*UsageRepository)(nil)
	_ QuestionRepositoryInterface = (*QuestionRepository)(nil)
)
