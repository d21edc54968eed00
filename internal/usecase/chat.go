package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"realty-assistant/internal/domain"
)

const (
	defaultCompletionTimeout = 30 * time.Second
	logPreviewLen            = 50
)

type CompletionClient interface {
	Chat(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

type ConversationStore interface {
	Snapshot() []domain.Turn
	AppendExchange(question, answer string)
	MaxHistory() int
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// ChatService drives one exchange with the completion service and records it
// in the conversation.
type ChatService struct {
	llm         CompletionClient
	state       ConversationStore
	preferences domain.UserPreferences
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewChatService(llm CompletionClient, state ConversationStore, preferences domain.UserPreferences, timeout time.Duration, logger *slog.Logger) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: completion client must not be nil")
	}
	if state == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if timeout <= 0 {
		timeout = defaultCompletionTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		llm:         llm,
		state:       state,
		preferences: preferences,
		timeout:     timeout,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Respond returns the assistant's reply to message. On success the exchange is
// appended to the conversation; on any failure the conversation is untouched.
// The caller is expected to have rejected blank messages.
func (s *ChatService) Respond(ctx context.Context, message string) (string, error) {
	messages := buildPromptMessages(promptContext{
		preferences: s.preferences,
		now:         s.now(),
		maxHistory:  s.state.MaxHistory(),
	}, message, s.state.Snapshot())

	// The provider call outlives a disconnected client but not the timeout.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	s.logger.InfoContext(ctx, "sending request to completion service", "message", preview(message))
	reply, err := s.llm.Chat(callCtx, messages)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return "", newError(ErrorUpstream, "completion_rate_limited", err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", newError(ErrorUpstream, "completion_timeout", err)
		}
		return "", newError(ErrorUpstream, "completion_error", err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", newError(ErrorUpstream, "no_response_generated", nil)
	}

	s.state.AppendExchange(message, reply)
	s.logger.InfoContext(ctx, "received response from completion service", "reply_chars", len(reply))
	return reply, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= logPreviewLen {
		return s
	}
	return string(r[:logPreviewLen]) + "..."
}
