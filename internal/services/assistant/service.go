package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/kotoba-voice/kotoba/internal/conversation"
	"github.com/kotoba-voice/kotoba/internal/events"
	logpkg "github.com/kotoba-voice/kotoba/internal/logger"
	"github.com/kotoba-voice/kotoba/internal/ratelimit"
	"go.uber.org/zap"
)

// Fixed spoken replies. Every request terminates in exactly one of these or
// in the completion text; the user always hears something.
const (
	// DefaultPersona is the system instruction sent with every completion
	DefaultPersona = "You are a kind kindergarten teacher. Speak gently, as if " +
		"talking to a small child, and keep every reply short and easy to " +
		"understand, at most a couple of sentences."

	// ReplyRateLimited is spoken when admission control defers the user
	ReplyRateLimited = "Let's take a little break. Please talk to me again in a while."
	// ReplyUpstreamBusy is spoken when the completion endpoint fails
	ReplyUpstreamBusy = "I'm a bit busy right now. Please try again in a moment."
	// ReplyEmptyQuestion is spoken when no question text arrived
	ReplyEmptyQuestion = "I didn't catch that. Could you say it one more time?"
	// RepromptContinue keeps the session open after a successful answer
	RepromptContinue = "Is there anything else you want to ask?"
)

// Reply is the spoken response to one question
type Reply struct {
	Speech     string `json:"speech"`
	Reprompt   string `json:"reprompt,omitempty"`
	EndSession bool   `json:"should_end_session"`
}

// Admitter decides whether a user's request may proceed
type Admitter interface {
	Admit(ctx context.Context, userID string) ratelimit.Outcome
}

// QuestionRecorder appends questions to the durable log
type QuestionRecorder interface {
	Record(ctx context.Context, userID, question string, askedAt time.Time) error
}

// Service orchestrates one question round-trip: admission, best-effort
// logging, prompt assembly, the single completion attempt and buffer upkeep.
// All collaborators are injected at construction.
type Service struct {
	limiter     Admitter
	questions   QuestionRecorder
	buffers     *conversation.Manager
	provider    Provider
	publisher   events.Publisher
	logger      *zap.Logger
	persona     string
	tokenBudget int64
}

// Option configures a Service
type Option func(*Service)

// WithPersona overrides the system persona instruction
func WithPersona(persona string) Option {
	return func(s *Service) {
		if persona != "" {
			s.persona = persona
		}
	}
}

// WithTokenBudget overrides the buffer eviction threshold
func WithTokenBudget(budget int64) Option {
	return func(s *Service) {
		if budget > 0 {
			s.tokenBudget = budget
		}
	}
}

// WithPublisher sets the usage event publisher
func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// NewService creates the request orchestrator
func NewService(limiter Admitter, questions QuestionRecorder, buffers *conversation.Manager, provider Provider, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		limiter:     limiter,
		questions:   questions,
		buffers:     buffers,
		provider:    provider,
		publisher:   events.NewNoopPublisher(),
		logger:      logger,
		persona:     DefaultPersona,
		tokenBudget: conversation.DefaultTokenBudget,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Ask answers one spoken question. It always returns a speakable reply; every
// failure path terminates in a fixed apology rather than an error.
func (s *Service) Ask(ctx context.Context, userID, question string) *Reply {
	question = strings.TrimSpace(question)
	if question == "" {
		return &Reply{Speech: ReplyEmptyQuestion, Reprompt: ReplyEmptyQuestion}
	}

	// Best-effort question log; a persistence failure never delays or denies
	// the request. Logged before admission, so questions from users who end
	// up rate-limited still land in the log.
	if err := s.questions.Record(ctx, userID, question, time.Now()); err != nil {
		s.logger.Warn("question_log_write_failed",
			zap.String("user_id", logpkg.SanitizeUserID(userID)),
			zap.Error(err),
		)
	}
	s.publish(ctx, events.NewEvent(events.EventTypeQuestionAsked, userID, question))

	outcome := s.limiter.Admit(ctx, userID)
	if !outcome.Allowed() {
		s.logger.Info("request_denied",
			zap.String("user_id", logpkg.SanitizeUserID(userID)),
		)
		s.publish(ctx, events.NewEvent(events.EventTypeRequestDenied, userID, ""))
		return &Reply{Speech: ReplyRateLimited, EndSession: true}
	}

	// Prior turns plus the pending question; the question is committed to the
	// buffer only after a successful completion.
	prompt := s.buffers.Render(userID, conversation.Turn{Role: conversation.RoleUser, Content: question})
	messages := []Message{
		{Role: "system", Content: s.persona},
		{Role: "user", Content: prompt},
	}

	completion, err := s.provider.Complete(ctx, messages)
	if err != nil {
		// Single attempt; the buffer stays untouched so a later retry by the
		// user sees the same context.
		s.logger.Error("completion_call_failed",
			zap.String("user_id", logpkg.SanitizeUserID(userID)),
			zap.String("outcome", outcome.String()),
			zap.Bool("rate_limited", IsRateLimitError(err)),
			zap.Bool("quota_exhausted", IsQuotaError(err)),
			zap.Error(err),
		)
		return &Reply{Speech: ReplyUpstreamBusy, EndSession: true}
	}

	s.buffers.AppendExchange(userID, question, completion.Text)
	if s.buffers.PruneIfOver(userID, completion.TotalTokens, s.tokenBudget) {
		s.logger.Debug("conversation_buffer_pruned",
			zap.String("user_id", logpkg.SanitizeUserID(userID)),
			zap.Int64("total_tokens", completion.TotalTokens),
			zap.Int64("token_budget", s.tokenBudget),
		)
	}

	return &Reply{Speech: completion.Text, Reprompt: RepromptContinue}
}

// EndSession drops the user's conversation buffer when their session closes.
func (s *Service) EndSession(userID string) {
	s.buffers.Forget(userID)
}

func (s *Service) publish(ctx context.Context, event *events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("usage_event_publish_failed",
			zap.String("event_type", string(event.Type)),
			zap.String("user_id", logpkg.SanitizeUserID(event.UserID)),
			zap.Error(err),
		)
	}
}
