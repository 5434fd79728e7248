// Package events publishes best-effort usage events for downstream analytics.
// Publishing is fire-and-forget: a broker failure is logged by the caller and
// never affects the request that produced the event.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of usage event
type EventType string

const (
	// EventTypeQuestionAsked is emitted once per incoming question, before admission
	EventTypeQuestionAsked EventType = "question_asked"
	// EventTypeRequestDenied is emitted when admission control defers a user
	EventTypeRequestDenied EventType = "request_denied"
)

// Event represents one usage event
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	Question  string    `json:"question,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent creates a new usage event
func NewEvent(eventType EventType, userID, question string) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		UserID:    userID,
		Question:  question,
		CreatedAt: time.Now(),
	}
}
