package models

import "time"

// QuestionRecord is one append-only entry in the question log.
// Entries are write-once; the (UserID, AskedAt) pair is the storage key.
type QuestionRecord struct {
	UserID   string    `json:"user_id"`
	AskedAt  time.Time `json:"asked_at"`
	Question string    `json:"question"`
}
