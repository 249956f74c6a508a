// Package config loads go-kiosk configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults.
const (
	DefaultPort       = "8080"
	DefaultLLMBaseURL = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultSessionTTL = 30 * time.Minute
	DefaultKafkaTopic = "kiosk-orders"
	DefaultTTSVoice   = "nova"
)

// Intent modes.
const (
	IntentLLM   = "llm"
	IntentRules = "rules"
)

// Config is the process configuration for cmd/kiosk.
type Config struct {
	Port     string
	LogLevel string

	// Language model used by the llm intent mode, whisper and tts.
	OpenAIKey  string
	LLMBaseURL string
	LLMModel   string
	IntentMode string

	// Backend order service. Empty disables checkout submission.
	BackendURL string

	// Sessions. Empty RedisURL selects the in-memory store.
	RedisURL   string
	SessionTTL time.Duration

	// Order events. No brokers selects the no-op publisher.
	KafkaBrokers []string
	KafkaTopic   string

	TTSEnabled bool
	TTSVoice   string

	StaticDir string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	ttl, err := getEnvDuration("SESSION_TTL", DefaultSessionTTL)
	if err != nil {
		return nil, err
	}
	tts, err := getEnvBool("TTS_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:         getEnv("KIOSK_PORT", DefaultPort),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		LLMBaseURL:   getEnv("LLM_BASE_URL", DefaultLLMBaseURL),
		LLMModel:     getEnv("LLM_MODEL", DefaultLLMModel),
		IntentMode:   strings.ToLower(getEnv("INTENT_MODE", "")),
		BackendURL:   strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
		RedisURL:     os.Getenv("REDIS_URL"),
		SessionTTL:   ttl,
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", DefaultKafkaTopic),
		TTSEnabled:   tts,
		TTSVoice:     getEnv("TTS_VOICE", DefaultTTSVoice),
		StaticDir:    os.Getenv("STATIC_DIR"),
	}

	// Without a key the llm mode cannot work, so fall back to rules.
	if cfg.IntentMode == "" {
		cfg.IntentMode = IntentLLM
		if cfg.OpenAIKey == "" {
			cfg.IntentMode = IntentRules
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistent settings.
func (c *Config) Validate() error {
	switch c.IntentMode {
	case IntentLLM:
		if c.OpenAIKey == "" {
			return fmt.Errorf("config: INTENT_MODE=llm requires OPENAI_API_KEY")
		}
	case IntentRules:
	default:
		return fmt.Errorf("config: unknown INTENT_MODE %q", c.IntentMode)
	}
	if c.TTSEnabled && c.OpenAIKey == "" {
		return fmt.Errorf("config: TTS_ENABLED requires OPENAI_API_KEY")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("config: invalid KIOSK_PORT %q", c.Port)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
