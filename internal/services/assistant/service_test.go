package assistant

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kotoba-voice/kotoba/internal/conversation"
	"github.com/kotoba-voice/kotoba/internal/events"
	"github.com/kotoba-voice/kotoba/internal/ratelimit"
)

type fakeAdmitter struct {
	outcome ratelimit.Outcome
	calls   int
}

func (a *fakeAdmitter) Admit(ctx context.Context, userID string) ratelimit.Outcome {
	a.calls++
	return a.outcome
}

type fakeRecorder struct {
	err      error
	recorded []string
}

func (r *fakeRecorder) Record(ctx context.Context, userID, question string, askedAt time.Time) error {
	if r.err != nil {
		return r.err
	}
	r.recorded = append(r.recorded, question)
	return nil
}

type fakeProvider struct {
	completion *Completion
	err        error
	gotPrompts []string
}

func (p *fakeProvider) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	for _, msg := range messages {
		if msg.Role == "user" {
			p.gotPrompts = append(p.gotPrompts, msg.Content)
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.completion, nil
}

type capturingPublisher struct {
	err    error
	events []*events.Event
}

func (p *capturingPublisher) Publish(ctx context.Context, event *events.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func newTestService(admitter *fakeAdmitter, recorder *fakeRecorder, provider *fakeProvider, opts ...Option) (*Service, *conversation.Manager) {
	buffers := conversation.NewManager()
	svc := NewService(admitter, recorder, buffers, provider, nil, opts...)
	return svc, buffers
}

func TestAsk_SuccessAppendsExchange(t *testing.T) {
	t.Parallel()

	admitter := &fakeAdmitter{outcome: ratelimit.Admitted}
	recorder := &fakeRecorder{}
	provider := &fakeProvider{completion: &Completion{Text: "a friendly answer", TotalTokens: 100}}
	svc, buffers := newTestService(admitter, recorder, provider)

	reply := svc.Ask(context.Background(), "user-1", "why is the sky blue?")

	if reply.Speech != "a friendly answer" {
		t.Errorf("Speech = %q, want completion text", reply.Speech)
	}
	if reply.Reprompt != RepromptContinue {
		t.Errorf("Reprompt = %q, want %q", reply.Reprompt, RepromptContinue)
	}
	if reply.EndSession {
		t.Error("successful reply must keep the session open")
	}

	turns := buffers.Turns("user-1")
	want := []conversation.Turn{
		{Role: conversation.RoleUser, Content: "why is the sky blue?"},
		{Role: conversation.RoleAssistant, Content: "a friendly answer"},
	}
	if !reflect.DeepEqual(turns, want) {
		t.Errorf("buffer turns = %+v, want %+v", turns, want)
	}

	if len(recorder.recorded) != 1 || recorder.recorded[0] != "why is the sky blue?" {
		t.Errorf("question log = %v, want the asked question", recorder.recorded)
	}
}

func TestAsk_PromptContainsHistoryAndCue(t *testing.T) {
	t.Parallel()

	admitter := &fakeAdmitter{outcome: ratelimit.Admitted}
	provider := &fakeProvider{completion: &Completion{Text: "second answer", TotalTokens: 100}}
	svc, buffers := newTestService(admitter, &fakeRecorder{}, provider)

	buffers.AppendExchange("user-1", "first question", "first answer")

	svc.Ask(context.Background(), "user-1", "second question")

	if len(provider.gotPrompts) != 1 {
		t.Fatalf("provider saw %d user prompts, want 1", len(provider.gotPrompts))
	}
	prompt := provider.gotPrompts[0]
	for _, fragment := range []string{"User: first question\n", "AI: first answer\n", "User: second question\n"} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("prompt missing %q: %q", fragment, prompt)
		}
	}
	if !strings.HasSuffix(prompt, "AI: ") {
		t.Errorf("prompt must end with the assistant cue: %q", prompt)
	}
}

func TestAsk_DeniedShortCircuits(t *testing.T) {
	t.Parallel()

	admitter := &fakeAdmitter{outcome: ratelimit.Denied}
	provider := &fakeProvider{completion: &Completion{Text: "should not be called"}}
	svc, buffers := newTestService(admitter, &fakeRecorder{}, provider)

	reply := svc.Ask(context.Background(), "user-1", "any question")

	if reply.Speech != ReplyRateLimited {
		t.Errorf("Speech = %q, want rate-limited deferral", reply.Speech)
	}
	if !reply.EndSession {
		t.Error("denied reply should end the session")
	}
	if len(provider.gotPrompts) != 0 {
		t.Error("completion endpoint must not be called for denied requests")
	}
	if buffers.Len("user-1") != 0 {
		t.Error("denied request must not mutate the buffer")
	}
}

func TestAsk_StoreErrorFailsOpen(t *testing.T) {
	t.Parallel()

	admitter := &fakeAdmitter{outcome: ratelimit.StoreError}
	provider := &fakeProvider{completion: &Completion{Text: "answer anyway", TotalTokens: 50}}
	svc, _ := newTestService(admitter, &fakeRecorder{}, provider)

	reply := svc.Ask(context.Background(), "user-1", "a question")

	if reply.Speech != "answer anyway" {
		t.Errorf("Speech = %q; a counter store failure must not block the request", reply.Speech)
	}
}

func TestAsk_UpstreamErrorLeavesBufferUntouched(t *testing.T) {
	t.Parallel()

	admitter := &fakeAdmitter{outcome: ratelimit.Admitted}
	provider := &fakeProvider{err: errors.New("dial tcp: i/o timeout")}
	svc, buffers := newTestService(admitter, &fakeRecorder{}, provider)

	buffers.AppendExchange("user-1", "earlier question", "earlier answer")
	before := buffers.Render("user-1")

	reply := svc.Ask(context.Background(), "user-1", "new question")

	if reply.Speech != ReplyUpstreamBusy {
		t.Errorf("Speech = %q, want busy apology", reply.Speech)
	}
	if got := buffers.Render("user-1"); got != before {
		t.Errorf("buffer changed on upstream failure:\nbefore %q\nafter  %q", before, got)
	}
}

func TestAsk_QuestionLogFailureDoesNotBlock(t *testing.T) {
	t.Parallel()

	admitter := &fakeAdmitter{outcome: ratelimit.Admitted}
	recorder := &fakeRecorder{err: errors.New("question table unavailable")}
	provider := &fakeProvider{completion: &Completion{Text: "still answered", TotalTokens: 10}}
	svc, _ := newTestService(admitter, recorder, provider)

	reply := svc.Ask(context.Background(), "user-1", "a question")

	if reply.Speech != "still answered" {
		t.Errorf("Speech = %q; a question log failure must not affect the request", reply.Speech)
	}
	if admitter.calls != 1 {
		t.Errorf("admitter calls = %d, want 1", admitter.calls)
	}
}

func TestAsk_EmptyQuestionRejectedBeforeAdmission(t *testing.T) {
	t.Parallel()

	admitter := &fakeAdmitter{outcome: ratelimit.Admitted}
	svc, _ := newTestService(admitter, &fakeRecorder{}, &fakeProvider{})

	for _, question := range []string{"", "   ", "\t\n"} {
		reply := svc.Ask(context.Background(), "user-1", question)
		if reply.Speech != ReplyEmptyQuestion {
			t.Errorf("Ask(%q).Speech = %q, want empty-question reply", question, reply.Speech)
		}
	}
	if admitter.calls != 0 {
		t.Errorf("admitter calls = %d, want 0 (malformed input rejected before admission)", admitter.calls)
	}
}

func TestAsk_OverBudgetUsagePrunesBuffer(t *testing.T) {
	t.Parallel()

	admitter := &fakeAdmitter{outcome: ratelimit.Admitted}
	provider := &fakeProvider{completion: &Completion{Text: "long answer", TotalTokens: 1600}}
	svc, buffers := newTestService(admitter, &fakeRecorder{}, provider)

	buffers.AppendExchange("user-1", "oldest question", "oldest answer")

	svc.Ask(context.Background(), "user-1", "new question")

	turns := buffers.Turns("user-1")
	if len(turns) != 2 {
		t.Fatalf("buffer length = %d, want 2 after pruning", len(turns))
	}
	if turns[0].Content != "new question" || turns[1].Content != "long answer" {
		t.Errorf("pruning removed the wrong turns: %+v", turns)
	}
}

func TestAsk_PublishesUsageEvents(t *testing.T) {
	t.Parallel()

	admitter := &fakeAdmitter{outcome: ratelimit.Denied}
	publisher := &capturingPublisher{}
	svc, _ := newTestService(admitter, &fakeRecorder{}, &fakeProvider{}, WithPublisher(publisher))

	svc.Ask(context.Background(), "user-1", "a question")

	var types []events.EventType
	for _, ev := range publisher.events {
		types = append(types, ev.Type)
	}
	want := []events.EventType{events.EventTypeQuestionAsked, events.EventTypeRequestDenied}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("published event types = %v, want %v", types, want)
	}
}

func TestAsk_PublishFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	admitter := &fakeAdmitter{outcome: ratelimit.Admitted}
	publisher := &capturingPublisher{err: errors.New("broker down")}
	provider := &fakeProvider{completion: &Completion{Text: "fine", TotalTokens: 10}}
	svc, _ := newTestService(admitter, &fakeRecorder{}, provider, WithPublisher(publisher))

	reply := svc.Ask(context.Background(), "user-1", "a question")
	if reply.Speech != "fine" {
		t.Errorf("Speech = %q; publish failures must be swallowed", reply.Speech)
	}
}

func TestEndSession_ForgetsBuffer(t *testing.T) {
	t.Parallel()

	admitter := &fakeAdmitter{outcome: ratelimit.Admitted}
	provider := &fakeProvider{completion: &Completion{Text: "answer", TotalTokens: 10}}
	svc, buffers := newTestService(admitter, &fakeRecorder{}, provider)

	svc.Ask(context.Background(), "user-1", "a question")
	if buffers.Len("user-1") == 0 {
		t.Fatal("expected a buffered exchange")
	}

	svc.EndSession("user-1")
	if buffers.Len("user-1") != 0 {
		t.Error("EndSession must drop the user's buffer")
	}
}
