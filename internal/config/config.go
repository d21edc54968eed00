// Package config assembles process configuration from flags, an optional
// dotenv file, the environment, and an optional YAML preferences file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"realty-assistant/internal/conversation"
	"realty-assistant/internal/domain"
	"realty-assistant/internal/ratelimit"
)

// Secret parameter names. Relative names resolve under PARAM_PREFIX in SSM,
// or through SecretAliases in the environment.
const (
	GroqKeyParam   = "groq-api-key"
	OpenAIKeyParam = "openai-api-key"
)

const (
	defaultAddr            = ":5001"
	defaultAudioCacheURL   = "audio_cache"
	defaultLanguage        = "en"
	defaultProviderTimeout = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

type Config struct {
	EnvFile   string
	Addr      string
	LogLevel  string
	LogFormat string
	Lambda    bool

	GroqBaseURL string
	GroqModel   string
	// GroqTemperature is nil when GROQ_TEMPERATURE is unset, leaving the
	// provider default.
	GroqTemperature *float64
	OpenAIBaseURL   string
	TTSModel        string
	TTSVoice        string
	TTSLanguage     string

	AudioCacheURL   string
	AudioCacheTable string

	MaxHistoryLength  int
	MaxRequests       int
	RateLimitWindow   time.Duration
	CompletionTimeout time.Duration
	TTSTimeout        time.Duration
	ShutdownTimeout   time.Duration

	AllowedOrigins []string
	ParamPrefix    string

	PreferencesFile string
	Preferences     domain.UserPreferences
}

// SecretAliases maps secret parameter names to the environment variables that
// hold them when SSM is not in use.
func SecretAliases() map[string]string {
	return map[string]string{
		GroqKeyParam:   "GROQ_API_KEY",
		OpenAIKeyParam: "OPENAI_API_KEY",
	}
}

// Load parses args (without the program name), loads the dotenv file named by
// --env-file if it exists, and reads the remaining settings from the
// environment. Variables already set in the environment win over the file.
func Load(args []string) (Config, error) {
	flags := pflag.NewFlagSet("realty-assistant", pflag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "dotenv file to load before reading the environment")
	addr := flags.String("addr", defaultAddr, "HTTP listen address")
	logLevel := flags.String("log-level", "info", "log level: debug, info, warn, error")
	logFormat := flags.String("log-format", "text", "log format: text or json")
	lambdaMode := flags.Bool("lambda", false, "serve API Gateway proxy events instead of HTTP")
	if err := flags.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: parse flags: %w", err)
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", *envFile, err)
		}
	}

	cfg := Config{
		EnvFile:   *envFile,
		Addr:      *addr,
		LogLevel:  strings.ToLower(*logLevel),
		LogFormat: strings.ToLower(*logFormat),
		Lambda:    *lambdaMode,
	}
	if err := cfg.fromEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) fromEnv(lookup func(string) (string, bool)) error {
	env := envReader{lookup: lookup}

	c.GroqBaseURL = env.str("GROQ_BASE_URL", "")
	c.GroqModel = env.str("GROQ_MODEL", "")
	c.GroqTemperature = env.optionalFloat("GROQ_TEMPERATURE")
	c.OpenAIBaseURL = env.str("OPENAI_BASE_URL", "")
	c.TTSModel = env.str("TTS_MODEL", "")
	c.TTSVoice = env.str("TTS_VOICE", "")
	c.TTSLanguage = env.str("TTS_LANGUAGE", defaultLanguage)
	c.AudioCacheURL = env.str("AUDIO_CACHE_URL", defaultAudioCacheURL)
	c.AudioCacheTable = env.str("AUDIO_CACHE_TABLE", "")
	c.ParamPrefix = env.str("PARAM_PREFIX", "")
	c.PreferencesFile = env.str("PREFERENCES_FILE", "")
	c.AllowedOrigins = splitList(env.str("CORS_ALLOWED_ORIGINS", "*"))

	c.MaxHistoryLength = env.integer("MAX_HISTORY_LENGTH", conversation.DefaultMaxHistoryLength)
	c.MaxRequests = env.integer("MAX_REQUESTS", ratelimit.DefaultMaxRequests)
	c.RateLimitWindow = time.Duration(env.integer("RATE_LIMIT_WINDOW", int(ratelimit.DefaultWindow/time.Second))) * time.Second
	c.CompletionTimeout = env.duration("COMPLETION_TIMEOUT", defaultProviderTimeout)
	c.TTSTimeout = env.duration("TTS_TIMEOUT", defaultProviderTimeout)
	c.ShutdownTimeout = env.duration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout)
	if env.err != nil {
		return env.err
	}

	if c.MaxHistoryLength <= 0 {
		return fmt.Errorf("config: MAX_HISTORY_LENGTH must be positive, got %d", c.MaxHistoryLength)
	}
	if c.MaxRequests <= 0 {
		return fmt.Errorf("config: MAX_REQUESTS must be positive, got %d", c.MaxRequests)
	}
	if c.RateLimitWindow <= 0 {
		return errors.New("config: RATE_LIMIT_WINDOW must be positive")
	}
	if t := c.GroqTemperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("config: GROQ_TEMPERATURE must be between 0 and 2, got %g", *t)
	}
	if c.ParamPrefix == "" {
		if v, ok := lookup("GROQ_API_KEY"); !ok || strings.TrimSpace(v) == "" {
			return errors.New("config: GROQ_API_KEY is required when PARAM_PREFIX is not set")
		}
	}

	prefs, err := LoadPreferences(c.PreferencesFile)
	if err != nil {
		return err
	}
	c.Preferences = prefs
	return nil
}

// LoadPreferences reads user preferences from a YAML file. An empty path
// yields the defaults; fields absent from the file keep their default values.
func LoadPreferences(path string) (domain.UserPreferences, error) {
	prefs := domain.DefaultUserPreferences()
	if path == "" {
		return prefs, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.UserPreferences{}, fmt.Errorf("config: read preferences: %w", err)
	}
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return domain.UserPreferences{}, fmt.Errorf("config: parse preferences %s: %w", path, err)
	}
	if prefs.BudgetRange.Min > prefs.BudgetRange.Max {
		return domain.UserPreferences{}, fmt.Errorf("config: preferences budget min %d exceeds max %d", prefs.BudgetRange.Min, prefs.BudgetRange.Max)
	}
	return prefs, nil
}

// envReader records the first parse failure so that callers check once.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *envReader) str(key, def string) string {
	v, ok := r.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func (r *envReader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("config: %s: %w", key, err)
	}
	if err != nil {
		return def
	}
	return n
}

func (r *envReader) optionalFloat(key string) *float64 {
	v := r.str(key, "")
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		if r.err == nil {
			r.err = fmt.Errorf("config: %s: %w", key, err)
		}
		return nil
	}
	return &f
}

// duration accepts Go duration syntax or a bare number of seconds.
func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		if r.err == nil {
			r.err = fmt.Errorf("config: %s: %w", key, err)
		}
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
