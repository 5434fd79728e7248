package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	logpkg "github.com/kotoba-voice/kotoba/internal/logger"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout bounds every completion call; a slower call is treated
	// as an upstream error
	DefaultTimeout = 30 * time.Second
	// DefaultMaxOutputTokens caps the spoken reply length
	DefaultMaxOutputTokens int64 = 200

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIProvider implements the Provider interface using OpenAI's API
type OpenAIProvider struct {
	client          openai.Client
	model           string
	maxOutputTokens int64
	logger          *zap.Logger
	debugMode       bool
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIProviderWithLogger creates a new OpenAI provider with logger support
func NewOpenAIProviderWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:          client,
		model:           model,
		maxOutputTokens: DefaultMaxOutputTokens,
		logger:          logger,
		debugMode:       debugMode,
	}
}

// Complete sends one completion request and returns the reply text with the
// endpoint's reported total token usage.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	openAIMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			openAIMessages = append(openAIMessages, openai.SystemMessage(msg.Content))
		case "assistant":
			openAIMessages = append(openAIMessages, openai.AssistantMessage(msg.Content))
		default:
			openAIMessages = append(openAIMessages, openai.UserMessage(msg.Content))
		}
	}

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", "complete"),
			zap.String("model", p.model),
			zap.Int("message_count", len(openAIMessages)),
			zap.Int64("max_output_tokens", p.maxOutputTokens),
		)
	}

	req := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(p.model),
		Messages:  openAIMessages,
		MaxTokens: openai.Int(p.maxOutputTokens),
		// Temperature omitted - use model default to avoid "unsupported_value" errors
	}

	startTime := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(startTime)

	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", "complete"),
				zap.String("model", p.model),
				zap.Error(err),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("failed to complete: %w", apiErr)
		}
		return nil, fmt.Errorf("failed to complete: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New(ErrNoChoicesInResponse)
	}

	content := resp.Choices[0].Message.Content

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", "complete"),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", logpkg.SanitizeString(content, logpkg.MaxDebugContentLength)),
			zap.Int64("total_tokens", resp.Usage.TotalTokens),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return &Completion{
		Text:        content,
		TotalTokens: resp.Usage.TotalTokens,
	}, nil
}
