// Package conversation keeps a bounded rolling transcript per user. The
// transcript is process-local and never persisted; it only exists to give the
// completion endpoint recent context.
package conversation

import (
	"strings"
	"sync"
)

const (
	// RoleUser tags a question turn
	RoleUser = "user"
	// RoleAssistant tags a reply turn
	RoleAssistant = "assistant"

	// DefaultTokenBudget is the reported completion token usage above which
	// the oldest exchange is evicted
	DefaultTokenBudget int64 = 1500

	userPrefix      = "User: "
	assistantPrefix = "AI: "
)

// Turn is one utterance in a conversation
type Turn struct {
	Role    string
	Content string
}

// Manager holds one rolling buffer per user. Buffer mutations are serialized
// behind a single mutex because concurrent requests may share this process.
type Manager struct {
	mu      sync.Mutex
	buffers map[string][]Turn
}

// NewManager creates an empty conversation manager
func NewManager() *Manager {
	return &Manager{
		buffers: make(map[string][]Turn),
	}
}

// Append adds a turn to the end of the user's buffer
func (m *Manager) Append(userID string, turn Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers[userID] = append(m.buffers[userID], turn)
}

// AppendExchange adds a question/reply pair to the user's buffer
func (m *Manager) AppendExchange(userID, question, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers[userID] = append(m.buffers[userID],
		Turn{Role: RoleUser, Content: question},
		Turn{Role: RoleAssistant, Content: reply},
	)
}

// Turns returns a copy of the user's buffered turns in insertion order
func (m *Manager) Turns(userID string) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := m.buffers[userID]
	if len(turns) == 0 {
		return nil
	}
	copied := make([]Turn, len(turns))
	copy(copied, turns)
	return copied
}

// Len returns the number of buffered turns for the user
func (m *Manager) Len(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buffers[userID])
}

// Render concatenates the user's buffered turns, plus any pending turns not
// yet committed to the buffer, into the prompt sent with the next completion
// request, terminated by the assistant cue.
func (m *Manager) Render(userID string, pending ...Turn) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var builder strings.Builder
	builder.WriteString("\n")
	for _, turn := range m.buffers[userID] {
		writeTurn(&builder, turn)
	}
	for _, turn := range pending {
		writeTurn(&builder, turn)
	}
	builder.WriteString(assistantPrefix)

	return builder.String()
}

func writeTurn(builder *strings.Builder, turn Turn) {
	if turn.Role == RoleAssistant {
		builder.WriteString(assistantPrefix)
	} else {
		builder.WriteString(userPrefix)
	}
	builder.WriteString(turn.Content)
	builder.WriteString("\n")
}

// PruneIfOver evicts the two oldest turns (one question, one reply) when the
// last completion's reported token usage exceeds the budget. This is a coarse
// post-hoc cost control, not an exact token accountant: the buffer can still
// transiently exceed a future call's limit and is corrected by repeated
// eviction on subsequent calls. Returns true when turns were evicted.
func (m *Manager) PruneIfOver(userID string, totalTokens, budget int64) bool {
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	if totalTokens <= budget {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	turns := m.buffers[userID]
	if len(turns) < 2 {
		return false
	}

	m.buffers[userID] = turns[2:]
	return true
}

// Forget drops the user's buffer entirely, e.g. when their session ends.
func (m *Manager) Forget(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buffers, userID)
}
