package assistant

import "context"

// Message is one role-tagged entry in a completion request
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Completion is the reply from a completion endpoint plus its reported cost
type Completion struct {
	Text        string `json:"text"`
	TotalTokens int64  `json:"total_tokens"`
}

// Provider is the interface for completion endpoints. Implementations must
// bound the call with a timeout; the orchestrator makes a single attempt and
// treats every error uniformly as upstream failure.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (*Completion, error)
}
