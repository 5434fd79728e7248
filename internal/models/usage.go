package models

import "time"

// UsageRecord tracks per-user API usage for admission control.
// One row per user, created lazily on the user's first request and never deleted.
type UsageRecord struct {
	UserID          string    `json:"user_id"`
	APICalls        int64     `json:"api_calls"`
	DailyAPICalls   int64     `json:"daily_api_calls"`
	TotalAPICalls   int64     `json:"total_api_calls"`
	LastRequestTime int64     `json:"last_request_time"` // epoch seconds of last admitted call
	StartDate       time.Time `json:"start_date"`        // calendar date the current window started
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// WindowElapsed reports whether more than window has passed since the last
// admitted request, relative to now.
func (r *UsageRecord) WindowElapsed(now time.Time, window time.Duration) bool {
	elapsed := now.Unix() - r.LastRequestTime
	return elapsed > int64(window.Seconds())
}
