package conversation

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestRender_EmptyBufferIsJustTheCue(t *testing.T) {
	t.Parallel()

	m := NewManager()
	got := m.Render("user-1")
	want := "\nAI: "
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_RoundTripPreservesOrder(t *testing.T) {
	t.Parallel()

	m := NewManager()
	const pairs = 4
	for i := 0; i < pairs; i++ {
		m.AppendExchange("user-1", fmt.Sprintf("question %d", i), fmt.Sprintf("reply %d", i))
	}

	prompt := m.Render("user-1")

	if !strings.HasSuffix(prompt, "AI: ") {
		t.Errorf("prompt must end with the assistant cue, got %q", prompt)
	}

	lastIndex := -1
	for i := 0; i < pairs; i++ {
		qIndex := strings.Index(prompt, fmt.Sprintf("User: question %d\n", i))
		aIndex := strings.Index(prompt, fmt.Sprintf("AI: reply %d\n", i))
		if qIndex == -1 || aIndex == -1 {
			t.Fatalf("prompt missing pair %d: %q", i, prompt)
		}
		if qIndex < lastIndex || aIndex < qIndex {
			t.Errorf("pair %d out of order in prompt %q", i, prompt)
		}
		lastIndex = aIndex
	}
}

func TestRender_PendingTurnPrecedesCue(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.AppendExchange("user-1", "old question", "old reply")

	prompt := m.Render("user-1", Turn{Role: RoleUser, Content: "new question"})

	want := "\nUser: old question\nAI: old reply\nUser: new question\nAI: "
	if prompt != want {
		t.Errorf("Render() = %q, want %q", prompt, want)
	}
	// Pending turns must not be committed
	if m.Len("user-1") != 2 {
		t.Errorf("Len() = %d, want 2 (pending turn must not be stored)", m.Len("user-1"))
	}
}

func TestPruneIfOver_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		turns       int
		totalTokens int64
		budget      int64
		wantPruned  bool
		wantLen     int
	}{
		{"under budget unchanged", 6, 1000, 1500, false, 6},
		{"exactly at budget unchanged", 6, 1500, 1500, false, 6},
		{"over budget evicts two", 6, 1501, 1500, true, 4},
		{"far over budget still evicts exactly two", 6, 99999, 1500, true, 4},
		{"empty buffer no-op", 0, 2000, 1500, false, 0},
		{"single turn no-op", 1, 2000, 1500, false, 1},
		{"zero budget uses default", 4, 1501, 0, true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := NewManager()
			for i := 0; i < tt.turns; i++ {
				role := RoleUser
				if i%2 == 1 {
					role = RoleAssistant
				}
				m.Append("user-1", Turn{Role: role, Content: fmt.Sprintf("turn %d", i)})
			}

			pruned := m.PruneIfOver("user-1", tt.totalTokens, tt.budget)
			if pruned != tt.wantPruned {
				t.Errorf("PruneIfOver() = %v, want %v", pruned, tt.wantPruned)
			}
			if got := m.Len("user-1"); got != tt.wantLen {
				t.Errorf("Len() = %d, want %d", got, tt.wantLen)
			}
		})
	}
}

func TestPruneIfOver_EvictsOldestFirst(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.AppendExchange("user-1", "oldest question", "oldest reply")
	m.AppendExchange("user-1", "newest question", "newest reply")

	if !m.PruneIfOver("user-1", 2000, 1500) {
		t.Fatal("expected eviction")
	}

	turns := m.Turns("user-1")
	if len(turns) != 2 {
		t.Fatalf("len = %d, want 2", len(turns))
	}
	if turns[0].Content != "newest question" || turns[1].Content != "newest reply" {
		t.Errorf("eviction removed wrong turns: %+v", turns)
	}
}

func TestBuffersAreIsolatedPerUser(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.AppendExchange("alice", "alice question", "alice reply")
	m.AppendExchange("bob", "bob question", "bob reply")

	alicePrompt := m.Render("alice")
	if strings.Contains(alicePrompt, "bob") {
		t.Errorf("alice's prompt leaked bob's turns: %q", alicePrompt)
	}

	m.Forget("alice")
	if m.Len("alice") != 0 {
		t.Error("Forget did not clear alice's buffer")
	}
	if m.Len("bob") != 2 {
		t.Error("Forget cleared the wrong user's buffer")
	}
}

func TestConcurrentAppendAndPrune(t *testing.T) {
	t.Parallel()

	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.AppendExchange("user-1", "q", "a")
				m.PruneIfOver("user-1", 2000, 1500)
				_ = m.Render("user-1")
			}
		}(i)
	}
	wg.Wait()

	// Turns are always appended and evicted in pairs
	if m.Len("user-1")%2 != 0 {
		t.Errorf("buffer length %d is odd; interleaved corruption", m.Len("user-1"))
	}
}
