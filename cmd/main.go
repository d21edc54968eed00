package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/lmittmann/tint"
	"github.com/viant/afs"
	_ "github.com/viant/afsc/gs"
	_ "github.com/viant/afsc/s3"

	"realty-assistant/handler"
	"realty-assistant/internal/audiocache"
	"realty-assistant/internal/config"
	"realty-assistant/internal/conversation"
	"realty-assistant/internal/integrations/groq"
	"realty-assistant/internal/integrations/paramstore"
	"realty-assistant/internal/integrations/speech"
	"realty-assistant/internal/ratelimit"
	"realty-assistant/internal/repository"
	"realty-assistant/internal/usecase"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// ---- AWS SDK config, only when an AWS-backed component is configured ----
	var awsCfg *aws.Config
	if cfg.ParamPrefix != "" || cfg.AudioCacheTable != "" {
		loaded, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	// ---- Secrets ----
	var secrets paramstore.Getter = paramstore.NewEnvGetter(config.SecretAliases())
	if cfg.ParamPrefix != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(*awsCfg), cfg.ParamPrefix)
		if err != nil {
			logger.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		secrets = ssmClient
	}

	// ---- Provider clients ----
	groqOpts := []groq.Option{
		groq.WithBaseURL(cfg.GroqBaseURL),
		groq.WithModel(cfg.GroqModel),
	}
	if cfg.GroqTemperature != nil {
		groqOpts = append(groqOpts, groq.WithTemperature(*cfg.GroqTemperature))
	}
	groqClient, err := groq.NewClient(secrets, config.GroqKeyParam, groqOpts...)
	if err != nil {
		logger.Error("failed to create completion client", "err", err)
		os.Exit(1)
	}
	speechClient, err := speech.NewClient(secrets, config.OpenAIKeyParam,
		speech.WithBaseURL(cfg.OpenAIBaseURL),
		speech.WithModel(cfg.TTSModel),
		speech.WithVoice(cfg.TTSVoice),
	)
	if err != nil {
		logger.Error("failed to create speech client", "err", err)
		os.Exit(1)
	}

	// ---- Audio cache ----
	storage, err := newAudioStorage(ctx, cfg, awsCfg)
	if err != nil {
		logger.Error("failed to initialise audio cache storage", "err", err)
		os.Exit(1)
	}
	cache, err := audiocache.New(storage, logger)
	if err != nil {
		logger.Error("failed to create audio cache", "err", err)
		os.Exit(1)
	}

	// ---- Services ----
	state := conversation.New(cfg.MaxHistoryLength)
	limiter := ratelimit.New(ratelimit.Config{MaxRequests: cfg.MaxRequests, Window: cfg.RateLimitWindow})
	logger.Info("conversation configured",
		"completion_model", groqClient.Model(),
		"max_history", state.MaxHistory(),
		"max_requests", limiter.Config().MaxRequests,
		"rate_window", limiter.Config().Window,
	)

	chatService, err := usecase.NewChatService(groqClient, state, cfg.Preferences, cfg.CompletionTimeout, logger)
	if err != nil {
		logger.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}
	speechService, err := usecase.NewSpeechService(speechClient, cache, cfg.TTSLanguage, cfg.TTSTimeout, logger)
	if err != nil {
		logger.Error("failed to create speech service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(chatService, speechService, limiter, logger,
		handler.WithAllowedOrigins(cfg.AllowedOrigins),
	)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if cfg.Lambda {
		lambda.Start(h.Handle)
		return
	}
	if err := serve(cfg, h, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level, ok := logLevels[cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level, TimeFormat: time.DateTime}))
}

// newAudioStorage prefers the DynamoDB table when one is configured and
// otherwise stores one file per entry under AUDIO_CACHE_URL.
func newAudioStorage(ctx context.Context, cfg config.Config, awsCfg *aws.Config) (audiocache.Storage, error) {
	if cfg.AudioCacheTable != "" {
		return repository.New(awsdynamodb.NewFromConfig(*awsCfg), cfg.AudioCacheTable)
	}
	storage, err := audiocache.NewAFSStorage(afs.New(), cfg.AudioCacheURL)
	if err != nil {
		return nil, err
	}
	if err := storage.Init(ctx); err != nil {
		return nil, err
	}
	slog.Info("audio cache ready", "location", storage.BaseURL())
	return storage, nil
}

func serve(cfg config.Config, h http.Handler, logger *slog.Logger) error {
	// Provider calls are bounded by their own timeouts; leave headroom for both.
	writeTimeout := cfg.CompletionTimeout + cfg.TTSTimeout + 10*time.Second
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}
