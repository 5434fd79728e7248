package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kotoba-voice/kotoba/internal/models"
)

// UsageRepository handles per-user usage record database operations.
// All mutations are single conditional statements so concurrent requests for
// the same user never lose updates.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Get retrieves the usage record for a user. Returns (nil, nil) when the user
// has no record yet.
func (r *UsageRepository) Get(ctx context.Context, userID string) (*models.UsageRecord, error) {
	record := &models.UsageRecord{}

	query := `
		SELECT user_id, api_calls, daily_api_calls, total_api_calls, last_request_time, start_date, created_at, updated_at
		FROM usage_records
		WHERE user_id = $1
	`

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&record.UserID,
		&record.APICalls,
		&record.DailyAPICalls,
		&record.TotalAPICalls,
		&record.LastRequestTime,
		&record.StartDate,
		&record.CreatedAt,
		&record.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage record: %w", err)
	}

	return record, nil
}

// Create inserts the first-request record for a user with all counters at 1.
// Returns false when another writer created the record first; the caller
// should fall back to IncrementIfUnder.
func (r *UsageRepository) Create(ctx context.Context, userID string, now time.Time) (bool, error) {
	query := `
		INSERT INTO usage_records (user_id, api_calls, daily_api_calls, total_api_calls, last_request_time, start_date, created_at, updated_at)
		VALUES ($1, 1, 1, 1, $2, $3, $4, $4)
		ON CONFLICT (user_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, userID, now.Unix(), now.UTC().Truncate(24*time.Hour), now)
	if err != nil {
		return false, fmt.Errorf("failed to create usage record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check usage record insert: %w", err)
	}

	return rows > 0, nil
}

// IncrementIfUnder advances the window counters by one, guarded by the
// admission limit. Returns false without mutation when the limit is reached.
func (r *UsageRepository) IncrementIfUnder(ctx context.Context, userID string, limit int64, now time.Time) (bool, error) {
	query := `
		UPDATE usage_records
		SET api_calls = api_calls + 1,
		    daily_api_calls = daily_api_calls + 1,
		    total_api_calls = total_api_calls + 1,
		    last_request_time = $3,
		    updated_at = $4
		WHERE user_id = $1 AND api_calls < $2
	`

	result, err := r.db.ExecContext(ctx, query, userID, limit, now.Unix(), now)
	if err != nil {
		return false, fmt.Errorf("failed to increment usage record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check usage record update: %w", err)
	}

	return rows > 0, nil
}

// ResetWindow starts a fresh admission window for the user, counting the
// current request: window counters land at 1 and total_api_calls advances by
// one (it is never reset). The cutoff guard ensures only one of several
// concurrent resetters wins; losers fall back to IncrementIfUnder.
func (r *UsageRepository) ResetWindow(ctx context.Context, userID string, cutoff, now time.Time) (bool, error) {
	query := `
		UPDATE usage_records
		SET api_calls = 1,
		    daily_api_calls = 1,
		    total_api_calls = total_api_calls + 1,
		    last_request_time = $3,
		    start_date = $4,
		    updated_at = $5
		WHERE user_id = $1 AND last_request_time < $2
	`

	result, err := r.db.ExecContext(ctx, query, userID, cutoff.Unix(), now.Unix(), now.UTC().Truncate(24*time.Hour), now)
	if err != nil {
		return false, fmt.Errorf("failed to reset usage window: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check usage window reset: %w", err)
	}

	return rows > 0, nil
}

// ResetAll zeroes the window counters for a user. Used by the admin CLI, not
// by the request path.
func (r *UsageRepository) ResetAll(ctx context.Context, userID string, now time.Time) error {
	query := `
		UPDATE usage_records
		SET api_calls = 0,
		    daily_api_calls = 0,
		    start_date = $2,
		    updated_at = $3
		WHERE user_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, userID, now.UTC().Truncate(24*time.Hour), now)
	if err != nil {
		return fmt.Errorf("failed to reset usage record: %w", err)
	}

	return nil
}
