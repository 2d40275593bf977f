package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	validBackends  = []string{"memory", "file", "sqlite", "redis", "postgres"}
	validProviders = []string{"none", "ollama", "openai"}
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Backend selection
	DataBackend  string
	DataFilePath string
	SQLiteDBPath string
	RedisURL     string
	RedisKey     string
	PostgresURL  string

	// AMQP change notifications, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string

	// Periodic backend re-read, zero disables it
	ReloadInterval time.Duration

	// Language model
	LLMProvider   string
	LLMTimeout    time.Duration
	OllamaURL     string
	OllamaModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Advisor
	SnapshotTTL      time.Duration
	StreamYieldEvery int
	CurrencySymbol   string
	MaxTokens        int
	TipMaxTokens     int
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:  getEnv("DATA_BACKEND", "file"),
		DataFilePath: getEnv("DATA_FILE_PATH", "./data/transactions.json"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/zenith.db"),
		RedisURL:     getEnv("REDIS_URL", ""),
		RedisKey:     getEnv("REDIS_KEY", "zenith-txns"),
		PostgresURL:  getEnv("POSTGRES_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "zenith"),

		ReloadInterval: getEnvDuration("RELOAD_INTERVAL", 0),

		LLMProvider:   getEnv("LLM_PROVIDER", "none"),
		LLMTimeout:    getEnvDuration("LLM_TIMEOUT", 2*time.Minute),
		OllamaURL:     getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3.2:1b"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		SnapshotTTL:      getEnvDuration("SNAPSHOT_TTL", 30*time.Second),
		StreamYieldEvery: getEnvInt("STREAM_YIELD_EVERY", 8),
		CurrencySymbol:   getEnv("CURRENCY_SYMBOL", "₹"),
		MaxTokens:        getEnvInt("MAX_TOKENS", 150),
		TipMaxTokens:     getEnvInt("TIP_MAX_TOKENS", 60),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "file":
		if c.DataFilePath == "" {
			errors = append(errors, "data file path cannot be empty when using file backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if msg := ensureDir(c.SQLiteDBPath); msg != "" {
			errors = append(errors, msg)
		}
	case "redis":
		if msg := checkURL("Redis", c.RedisURL, "redis", "rediss"); msg != "" {
			errors = append(errors, msg)
		}
		if c.RedisKey == "" {
			errors = append(errors, "Redis key cannot be empty when using redis backend")
		}
	case "postgres":
		if msg := checkURL("PostgreSQL", c.PostgresURL, "postgres", "postgresql"); msg != "" {
			errors = append(errors, msg)
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate language model provider
	if !slices.Contains(validProviders, c.LLMProvider) {
		errors = append(errors, fmt.Sprintf("invalid LLM provider '%s': must be one of %v", c.LLMProvider, validProviders))
	}
	switch c.LLMProvider {
	case "ollama":
		if msg := checkURL("Ollama", c.OllamaURL, "http", "https"); msg != "" {
			errors = append(errors, msg)
		}
		if c.OllamaModel == "" {
			errors = append(errors, "Ollama model cannot be empty when using ollama provider")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			errors = append(errors, "OpenAI API key is required when using openai provider")
		}
		if c.OpenAIModel == "" {
			errors = append(errors, "OpenAI model cannot be empty when using openai provider")
		}
		if c.OpenAIBaseURL != "" {
			if msg := checkURL("OpenAI base", c.OpenAIBaseURL, "http", "https"); msg != "" {
				errors = append(errors, msg)
			}
		}
	}
	if c.LLMProvider != "none" && c.LLMTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid LLM timeout %v: must be at least 1 second", c.LLMTimeout))
	}

	// Validate advisor tuning
	if c.SnapshotTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid snapshot TTL %v: must be at least 1 second", c.SnapshotTTL))
	} else if c.SnapshotTTL > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid snapshot TTL %v: must be at most 1 hour", c.SnapshotTTL))
	}
	if c.ReloadInterval < 0 || (c.ReloadInterval > 0 && c.ReloadInterval < time.Second) {
		errors = append(errors, fmt.Sprintf("invalid reload interval %v: must be zero or at least 1 second", c.ReloadInterval))
	}
	if c.StreamYieldEvery < 1 {
		errors = append(errors, fmt.Sprintf("invalid stream yield interval %d: must be at least 1", c.StreamYieldEvery))
	}
	if c.MaxTokens < 1 || c.MaxTokens > 4096 {
		errors = append(errors, fmt.Sprintf("invalid max tokens %d: must be between 1 and 4096", c.MaxTokens))
	}
	if c.TipMaxTokens < 1 || c.TipMaxTokens > 4096 {
		errors = append(errors, fmt.Sprintf("invalid tip max tokens %d: must be between 1 and 4096", c.TipMaxTokens))
	}
	if strings.TrimSpace(c.CurrencySymbol) == "" {
		errors = append(errors, "currency symbol cannot be empty")
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ensureDir creates the parent directory of path if needed and returns a
// validation message on failure.
func ensureDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Sprintf("cannot create database directory '%s': %v", dir, err)
		}
	}
	return ""
}

func checkURL(name, raw string, schemes ...string) string {
	if raw == "" {
		return fmt.Sprintf("%s URL is required", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid %s URL '%s': %v", name, raw, err)
	}
	if !slices.Contains(schemes, parsed.Scheme) {
		return fmt.Sprintf("invalid %s URL scheme '%s': must be one of %v", name, parsed.Scheme, schemes)
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
