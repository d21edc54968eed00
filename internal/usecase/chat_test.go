package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"realty-assistant/internal/conversation"
	"realty-assistant/internal/domain"
	"realty-assistant/internal/integrations/groq"
)

type chatResponse struct {
	answer string
	err    error
}

type mockLLM struct {
	responses []chatResponse
	callCount int
	captured  []domain.ChatMessage
	ctxErr    error
	deadline  bool
}

func (m *mockLLM) Chat(ctx context.Context, msgs []domain.ChatMessage) (string, error) {
	m.captured = msgs
	m.ctxErr = ctx.Err()
	_, m.deadline = ctx.Deadline()
	if len(m.responses) == 0 {
		return "", errors.New("no llm response configured")
	}
	idx := m.callCount
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.callCount++
	return m.responses[idx].answer, m.responses[idx].err
}

func answer(s string) *mockLLM {
	return &mockLLM{responses: []chatResponse{{answer: s}}}
}

func failing(err error) *mockLLM {
	return &mockLLM{responses: []chatResponse{{err: err}}}
}

var fixedNow = time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)

func newTestChatService(t *testing.T, llm CompletionClient, state ConversationStore) *ChatService {
	t.Helper()
	svc, err := NewChatService(llm, state, domain.DefaultUserPreferences(), time.Second, nil)
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func expectChatError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}

func TestNewChatService_ValidatesDependencies(t *testing.T) {
	_, err := NewChatService(nil, conversation.New(10), domain.DefaultUserPreferences(), 0, nil)
	require.Error(t, err)

	_, err = NewChatService(answer("ok"), nil, domain.DefaultUserPreferences(), 0, nil)
	require.Error(t, err)

	svc, err := NewChatService(answer("ok"), conversation.New(10), domain.DefaultUserPreferences(), 0, nil)
	require.NoError(t, err)
	require.Equal(t, defaultCompletionTimeout, svc.timeout)
}

func TestRespond_FirstExchangeOnEmptyHistory(t *testing.T) {
	state := conversation.New(10)
	llm := answer("Dubai Marina has several 2BR apartments within your budget.")
	svc := newTestChatService(t, llm, state)

	out, err := svc.Respond(context.Background(), "Show me 2BR apartments in Dubai Marina")
	require.NoError(t, err)
	require.Equal(t, "Dubai Marina has several 2BR apartments within your budget.", out)

	require.Len(t, llm.captured, 2)
	require.Equal(t, domain.RoleSystem, llm.captured[0].Role)
	require.True(t, strings.HasSuffix(llm.captured[0].Content, "Previous conversation context:\n"),
		"history block must be empty on a fresh conversation")
	require.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "Show me 2BR apartments in Dubai Marina"}, llm.captured[1])

	require.Equal(t, []domain.Turn{
		domain.UserTurn("Show me 2BR apartments in Dubai Marina"),
		domain.AssistantTurn("Dubai Marina has several 2BR apartments within your budget."),
	}, state.Snapshot())
}

func TestRespond_IncludesPriorTurnsInSystemPrompt(t *testing.T) {
	state := conversation.New(10)
	state.AppendExchange("What is the average price in JVC?", "Around 1.1M AED for a 2BR.")
	llm := answer("Sure.")
	svc := newTestChatService(t, llm, state)

	_, err := svc.Respond(context.Background(), "And in Dubai Hills?")
	require.NoError(t, err)
	require.Contains(t, llm.captured[0].Content,
		"Previous conversation context:\nuser: What is the average price in JVC?\nassistant: Around 1.1M AED for a 2BR.")
	require.Contains(t, llm.captured[0].Content, "Current Time: 2024-03-09 14:30:05")
	require.Len(t, state.Snapshot(), 4)
}

func TestRespond_ProviderErrorLeavesStateUnchanged(t *testing.T) {
	state := conversation.New(10)
	state.AppendExchange("q0", "a0")
	before := state.Snapshot()

	svc := newTestChatService(t, failing(&groq.HTTPStatusError{StatusCode: http.StatusInternalServerError}), state)
	_, err := svc.Respond(context.Background(), "What about Business Bay?")
	expectChatError(t, err, ErrorUpstream, "completion_error")
	require.Equal(t, before, state.Snapshot())
}

func TestRespond_ProviderRateLimited(t *testing.T) {
	state := conversation.New(10)
	svc := newTestChatService(t, failing(&groq.HTTPStatusError{StatusCode: http.StatusTooManyRequests}), state)
	_, err := svc.Respond(context.Background(), "hi")
	expectChatError(t, err, ErrorUpstream, "completion_rate_limited")
	require.Empty(t, state.Snapshot())
}

func TestRespond_ProviderTimeout(t *testing.T) {
	state := conversation.New(10)
	svc := newTestChatService(t, failing(fmt.Errorf("groq: request failed: %w", context.DeadlineExceeded)), state)
	_, err := svc.Respond(context.Background(), "hi")
	expectChatError(t, err, ErrorUpstream, "completion_timeout")
	require.Empty(t, state.Snapshot())
}

func TestRespond_EmptyReplyIsNoResponse(t *testing.T) {
	state := conversation.New(10)
	svc := newTestChatService(t, answer("   "), state)
	_, err := svc.Respond(context.Background(), "hi")
	expectChatError(t, err, ErrorUpstream, "no_response_generated")
	require.Empty(t, state.Snapshot())
}

func TestRespond_NoRetryOnFailure(t *testing.T) {
	llm := &mockLLM{responses: []chatResponse{{err: errors.New("boom")}, {answer: "ok"}}}
	svc := newTestChatService(t, llm, conversation.New(10))
	_, err := svc.Respond(context.Background(), "hi")
	require.Error(t, err)
	require.Equal(t, 1, llm.callCount)
}

func TestRespond_DetachedFromCallerCancellation(t *testing.T) {
	llm := answer("ok")
	svc := newTestChatService(t, llm, conversation.New(10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := svc.Respond(ctx, "hi")
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.NoError(t, llm.ctxErr)
	require.True(t, llm.deadline, "provider calls must carry a timeout")
}

func TestRespond_StateStaysBounded(t *testing.T) {
	state := conversation.New(3)
	llm := answer("reply")
	svc := newTestChatService(t, llm, state)

	for i := 0; i < 12; i++ {
		_, err := svc.Respond(context.Background(), fmt.Sprintf("q%d", i))
		require.NoError(t, err)
		require.LessOrEqual(t, len(state.Snapshot()), 6)
	}
	require.Equal(t, "q9", state.Snapshot()[0].Content)

	// The prompt window holds the trailing three turns only.
	history := llm.captured[0].Content[strings.Index(llm.captured[0].Content, "Previous conversation context:\n")+len("Previous conversation context:\n"):]
	require.Equal(t, "assistant: reply\nuser: q10\nassistant: reply", history)
}
