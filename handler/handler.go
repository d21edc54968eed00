package handler

import (
	"context"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"realty-assistant/internal/ratelimit"
	"realty-assistant/internal/usecase"
)

const (
	correlationHeader   = "X-Correlation-Id"
	defaultMaxBodyBytes = 1 << 20
)

//go:embed static/index.html
var staticFS embed.FS

type ChatResponder interface {
	Respond(ctx context.Context, message string) (string, error)
}

type SpeechResponder interface {
	Speak(ctx context.Context, text string) (usecase.SpeechOutput, error)
}

type Admitter interface {
	Admit(now time.Time) ratelimit.Decision
}

type chatRequest struct {
	Message string `json:"message"`
}

type ttsRequest struct {
	Text string `json:"text"`
}

type ttsResponse struct {
	Audio       string `json:"audio"`
	ContentType string `json:"content_type"`
	Cached      bool   `json:"cached"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type Option func(*Handler)

// WithAllowedOrigins sets the CORS origin allow-list. "*" admits any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		if len(origins) > 0 {
			h.allowedOrigins = origins
		}
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// Handler serves the chat and speech routes over net/http and, through
// Handle, over API Gateway proxy events.
type Handler struct {
	chat           ChatResponder
	speech         SpeechResponder
	limiter        Admitter
	logger         *slog.Logger
	allowedOrigins []string
	maxBodyBytes   int64
	now            func() time.Time
	newID          func() string
	root           http.Handler
}

func NewHandler(chat ChatResponder, speech SpeechResponder, limiter Admitter, logger *slog.Logger, opts ...Option) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat responder must not be nil")
	}
	if speech == nil {
		return nil, errors.New("handler: speech responder must not be nil")
	}
	if limiter == nil {
		return nil, errors.New("handler: rate limiter must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		chat:           chat,
		speech:         speech,
		limiter:        limiter,
		logger:         logger,
		allowedOrigins: []string{"*"},
		maxBodyBytes:   defaultMaxBodyBytes,
		now:            time.Now,
		newID:          newCorrelationID,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.root = h.routes()
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func (h *Handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /chat", h.rateLimit(h.limitBody(http.HandlerFunc(h.handleChat))))
	mux.Handle("POST /tts", h.rateLimit(h.limitBody(http.HandlerFunc(h.handleTTS))))
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /{$}", h.handleIndex)

	// Outermost first: the correlation id must exist before anything logs.
	return h.correlate(h.accessLog(h.recoverPanics(h.cors(mux))))
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.logger.WarnContext(r.Context(), "chat request body rejected", "err", err, "correlation_id", correlationID(r.Context()))
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		h.writeError(w, r, usecase.NewInvalidInput("empty_message"), "No message provided")
		return
	}

	reply, err := h.chat.Respond(r.Context(), message)
	if err != nil {
		h.writeError(w, r, err, chatFailureMessage(err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, reply)
}

func (h *Handler) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.logger.WarnContext(r.Context(), "tts request body rejected", "err", err, "correlation_id", correlationID(r.Context()))
	}
	// The cache key covers the text exactly as sent.
	if strings.TrimSpace(req.Text) == "" {
		h.writeError(w, r, usecase.NewInvalidInput("empty_text"), "No text provided")
		return
	}

	out, err := h.speech.Speak(r.Context(), req.Text)
	if err != nil {
		h.writeError(w, r, err, "Failed to generate speech")
		return
	}
	writeJSON(w, http.StatusOK, ttsResponse{
		Audio:       base64.StdEncoding.EncodeToString(out.Audio),
		ContentType: out.ContentType,
		Cached:      out.Cached,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// writeError logs err in full and reports message to the caller. An empty
// message falls back to the generic text for the error's status.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, message string) {
	code := usecase.ErrorInternal
	reason := "unexpected_error"
	var usecaseErr *usecase.Error
	if errors.As(err, &usecaseErr) {
		code = usecaseErr.Code
		reason = usecaseErr.Reason
	}
	status := statusForCode(code)
	if message == "" {
		message = http.StatusText(status)
	}

	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, "request failed",
		"path", r.URL.Path,
		"code", code,
		"reason", reason,
		"correlation_id", correlationID(r.Context()),
		"err", err,
	)
	writeJSON(w, status, errorResponse{Error: message, Code: string(code)})
}

func statusForCode(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func chatFailureMessage(err error) string {
	var usecaseErr *usecase.Error
	if errors.As(err, &usecaseErr) && usecaseErr.Reason == "no_response_generated" {
		return "No response generated"
	}
	return "Failed to process chat"
}

// decodeJSON leaves v untouched on malformed input so that callers report
// the missing field rather than a parse error.
func decodeJSON(body io.Reader, v any) error {
	if body == nil {
		return errors.New("handler: empty body")
	}
	return json.NewDecoder(body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
