// Package speech synthesizes MP3 audio through the OpenAI speech endpoint.
package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DefaultModel   = openai.SpeechModelGPT4oMiniTTS
	DefaultVoice   = "alloy"
	defaultTimeout = 30 * time.Second
	maxAudioBytes  = 16 << 20
)

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client wraps the openai-go SDK. The SDK client is built lazily once the API
// key has been resolved through the Getter.
type Client struct {
	getter     Getter
	tokenName  string
	baseURL    string
	model      string
	voice      string
	httpClient *http.Client

	mu  sync.Mutex
	api *openai.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

func WithVoice(voice string) Option {
	return func(c *Client) {
		if voice = strings.TrimSpace(voice); voice != "" {
			c.voice = voice
		}
	}
}

func NewClient(getter Getter, tokenName string, opts ...Option) (*Client, error) {
	if getter == nil {
		return nil, errors.New("speech: token getter must not be nil")
	}
	tokenName = strings.TrimSpace(tokenName)
	if tokenName == "" {
		return nil, errors.New("speech: token name must not be empty")
	}
	c := &Client{
		getter:     getter,
		tokenName:  tokenName,
		model:      DefaultModel,
		voice:      DefaultVoice,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPI(ctx context.Context) (*openai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}
	key, err := c.getter.GetParameter(ctx, c.tokenName)
	if err != nil {
		return nil, fmt.Errorf("speech: fetch token: %w", err)
	}
	key, err = unwrapToken(key)
	if err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if c.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(c.httpClient))
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	api := openai.NewClient(opts...)
	c.api = &api
	return c.api, nil
}

// Synthesize returns MP3 audio for text. The language code steers
// pronunciation on models that accept instructions.
func (c *Client) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("speech: text must not be empty")
	}
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return nil, err
	}

	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          c.model,
		Voice:          openai.AudioSpeechNewParamsVoice(c.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if language = strings.TrimSpace(language); language != "" && acceptsInstructions(c.model) {
		params.Instructions = openai.String(fmt.Sprintf("Speak the text in the language with code %q.", language))
	}

	res, err := api.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("speech: synthesize: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxAudioBytes+1))
	if err != nil {
		return nil, fmt.Errorf("speech: read audio: %w", err)
	}
	if len(data) > maxAudioBytes {
		return nil, fmt.Errorf("speech: audio response exceeds %d bytes", maxAudioBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("speech: empty audio response")
	}
	return data, nil
}

func acceptsInstructions(model string) bool {
	return model != openai.SpeechModelTTS1 && model != openai.SpeechModelTTS1HD
}

// unwrapToken accepts a bare key or the {"token": "..."} form stored in SSM.
func unwrapToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var payload struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return "", fmt.Errorf("speech: unmarshal token value as JSON: %w", err)
		}
		raw = strings.TrimSpace(payload.Token)
	}
	if raw == "" {
		return "", errors.New("speech: API token is empty")
	}
	return raw, nil
}
