package database

import (
	"context"
	"fmt"
	"time"

	"github.com/kotoba-voice/kotoba/internal/models"
)

// QuestionRepository handles question log database operations. The log is
// append-only; entries are never mutated or deleted here.
type QuestionRepository struct {
	db *DB
}

// NewQuestionRepository creates a new question repository
func NewQuestionRepository(db *DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// Record appends a question to the log.
func (r *QuestionRepository) Record(ctx context.Context, userID, question string, askedAt time.Time) error {
	query := `
		INSERT INTO question_log (user_id, asked_at, question)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, asked_at) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, userID, askedAt, question)
	if err != nil {
		return fmt.Errorf("failed to record question: %w", err)
	}

	return nil
}

// ListByUser returns the most recent questions for a user, newest first.
func (r *QuestionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.QuestionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT user_id, asked_at, question
		FROM question_log
		WHERE user_id = $1
		ORDER BY asked_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query question log: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			_ = err
		}
	}()

	var records []*models.QuestionRecord
	for rows.Next() {
		record := &models.QuestionRecord{}
		if err := rows.Scan(&record.UserID, &record.AskedAt, &record.Question); err != nil {
			return nil, fmt.Errorf("failed to scan question record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating question log: %w", err)
	}

	return records, nil
}
