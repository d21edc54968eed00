package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"realty-assistant/internal/audio"
)

const (
	ContentTypeMPEG      = "audio/mpeg"
	defaultSpeechTimeout = 30 * time.Second
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

type AudioCache interface {
	Lookup(ctx context.Context, text string) ([]byte, bool)
	Store(ctx context.Context, text string, data []byte) error
}

type SpeechOutput struct {
	Audio       []byte
	ContentType string
	Cached      bool
}

// SpeechService turns text into MP3 audio, consulting the content-addressed
// cache before calling the synthesizer.
type SpeechService struct {
	synth    Synthesizer
	cache    AudioCache
	language string
	timeout  time.Duration
	logger   *slog.Logger
	inspect  func([]byte) (audio.Info, error)
}

func NewSpeechService(synth Synthesizer, cache AudioCache, language string, timeout time.Duration, logger *slog.Logger) (*SpeechService, error) {
	if synth == nil {
		return nil, errors.New("usecase: synthesizer must not be nil")
	}
	if cache == nil {
		return nil, errors.New("usecase: audio cache must not be nil")
	}
	if language == "" {
		language = "en"
	}
	if timeout <= 0 {
		timeout = defaultSpeechTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SpeechService{
		synth:    synth,
		cache:    cache,
		language: language,
		timeout:  timeout,
		logger:   logger,
		inspect:  audio.InspectMP3,
	}, nil
}

// Speak returns audio for text exactly as given. Cache failures never fail the
// request; freshly synthesized audio is returned even if it cannot be stored
// or does not decode as MP3.
func (s *SpeechService) Speak(ctx context.Context, text string) (SpeechOutput, error) {
	if data, ok := s.cache.Lookup(ctx, text); ok {
		return SpeechOutput{Audio: data, ContentType: ContentTypeMPEG, Cached: true}, nil
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	data, err := s.synth.Synthesize(callCtx, text, s.language)
	if err != nil {
		return SpeechOutput{}, newError(ErrorUpstream, "synthesis_error", err)
	}
	// Audio that does not decode is returned but not cached.
	info, err := s.inspect(data)
	if err != nil {
		s.logger.WarnContext(ctx, "synthesized audio is not a decodable mp3, not caching", "bytes", len(data), "err", err)
		return SpeechOutput{Audio: data, ContentType: ContentTypeMPEG}, nil
	}
	s.logger.DebugContext(ctx, "synthesized speech", "bytes", len(data), "duration", info.Duration)

	// Store logs its own failures.
	_ = s.cache.Store(context.WithoutCancel(ctx), text, data)
	return SpeechOutput{Audio: data, ContentType: ContentTypeMPEG}, nil
}
