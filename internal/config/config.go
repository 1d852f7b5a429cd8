// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Auth modes accepted by AUTH_MODE.
const (
	AuthModeNone     = "none"
	AuthModePassword = "password"
)

// Config holds all application configuration.
type Config struct {
	Port           string `validate:"required,numeric"`
	AppEnv         string
	LogLevel       slog.Level
	AllowedOrigins []string
	BotCore        BotCoreConfig
	Heartbeat      HeartbeatConfig
	Database       DatabaseConfig
	Session        SessionConfig
	Chat           ChatConfig
	Transcript     TranscriptConfig
}

// BotCoreConfig controls the outbound chat proxy.
type BotCoreConfig struct {
	URL              string            `validate:"required,url"`
	Timeout          time.Duration     `validate:"gt=0"`
	ConnectTimeout   time.Duration     `validate:"gt=0"`
	MaxResponseBytes int64             `validate:"gt=0"`
	DefaultSettings  map[string]string `validate:"-"`
}

// HeartbeatConfig points at the key-value store the bot core writes its heartbeat to.
type HeartbeatConfig struct {
	Addr         string        `validate:"required,hostname_port"`
	DB           int           `validate:"gte=0"`
	Password     string        `validate:"-"`
	Key          string        `validate:"required"`
	Timeout      time.Duration `validate:"gt=0"`
	MaxAge       time.Duration `validate:"gte=0"`
	PollInterval time.Duration `validate:"gt=0"`
}

// DatabaseConfig selects the relational store holding error_log rows.
type DatabaseConfig struct {
	Driver      string `validate:"oneof=sqlite pgx"`
	DSN         string `validate:"required"`
	AutoMigrate bool
}

// SessionConfig controls the signed admin session cookie.
type SessionConfig struct {
	Secret      string
	MaxAge      time.Duration `validate:"gt=0"`
	AuthMode    string        `validate:"oneof=none password"`
	Credentials string
}

// ChatConfig controls the /chat/ask endpoint.
type ChatConfig struct {
	RequireSession bool
	RateLimit      int           `validate:"gte=0"`
	RateWindow     time.Duration `validate:"gt=0"`
}

// TranscriptConfig controls NDJSON logging of raw bot core responses.
type TranscriptConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int `validate:"gt=0"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv reads configuration from environment variables without validating it.
// Tools that only need part of the configuration validate that part themselves.
func FromEnv() *Config {
	driver := getEnv("DB_DRIVER", "sqlite")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS"),
		BotCore: BotCoreConfig{
			URL:              getEnv("BOT_CORE_URL", ""),
			Timeout:          getEnvDuration("BOT_CORE_TIMEOUT", 120*time.Second),
			ConnectTimeout:   getEnvDuration("BOT_CORE_CONNECT_TIMEOUT", 60*time.Second),
			MaxResponseBytes: int64(getEnvInt("BOT_CORE_MAX_RESPONSE_BYTES", 8<<20)),
			DefaultSettings:  ParseSettings(getEnv("BOT_DEFAULT_SETTINGS", "")),
		},
		Heartbeat: HeartbeatConfig{
			Addr:         getEnv("HEARTBEAT_REDIS_ADDR", "localhost:6379"),
			DB:           getEnvInt("HEARTBEAT_REDIS_DB", 2),
			Password:     getEnv("HEARTBEAT_REDIS_PASSWORD", ""),
			Key:          getEnv("HEARTBEAT_KEY", "bot_core:heartbeat"),
			Timeout:      getEnvDuration("HEARTBEAT_TIMEOUT", 2*time.Second),
			MaxAge:       getEnvDuration("HEARTBEAT_MAX_AGE", 0),
			PollInterval: getEnvDuration("HEARTBEAT_POLL_INTERVAL", 5*time.Second),
		},
		Database: DatabaseConfig{
			Driver:      driver,
			DSN:         getEnv("DB_DSN", "./data/console.db"),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", driver == "sqlite"),
		},
		Session: SessionConfig{
			Secret:      getEnv("SESSION_SECRET", ""),
			MaxAge:      getEnvDuration("SESSION_MAX_AGE", 12*time.Hour),
			AuthMode:    strings.ToLower(getEnv("AUTH_MODE", AuthModeNone)),
			Credentials: getEnv("ADMIN_CREDENTIALS", ""),
		},
		Chat: ChatConfig{
			RequireSession: getEnvBool("CHAT_REQUIRE_SESSION", true),
			RateLimit:      getEnvInt("CHAT_RATE_LIMIT", 0),
			RateWindow:     getEnvDuration("CHAT_RATE_WINDOW", time.Minute),
		},
		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("TRANSCRIPT_ENABLED", false),
			Dir:       getEnv("TRANSCRIPT_DIR", "./data/transcripts"),
			QueueSize: getEnvInt("TRANSCRIPT_QUEUE_SIZE", 1000),
		},
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}
	if c.BotCore.ConnectTimeout > c.BotCore.Timeout {
		return fmt.Errorf("BOT_CORE_CONNECT_TIMEOUT (%s) cannot exceed BOT_CORE_TIMEOUT (%s)",
			c.BotCore.ConnectTimeout, c.BotCore.Timeout)
	}
	if c.Session.AuthMode == AuthModePassword && c.Session.Credentials == "" {
		return fmt.Errorf("ADMIN_CREDENTIALS cannot be empty when AUTH_MODE=password")
	}
	if c.Session.Secret != "" && len(c.Session.Secret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}
	if !c.IsDevelopment() && c.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET is required outside development")
	}
	if c.Transcript.Enabled && c.Transcript.Dir == "" {
		return fmt.Errorf("TRANSCRIPT_DIR cannot be empty")
	}
	return nil
}

// ValidateStores checks only the heartbeat and database sections.
func (c *Config) ValidateStores() error {
	if err := validateStruct(c.Heartbeat); err != nil {
		return err
	}
	return validateStruct(c.Database)
}

func validateStruct(v any) error {
	if err := validator.New().Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s failed %q validation", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "" || c.AppEnv == "development"
}

// ParseSettings parses "key=value,key2=value2" into a map. Malformed pairs are skipped.
func ParseSettings(raw string) map[string]string {
	settings := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		settings[key] = strings.TrimSpace(value)
	}
	return settings
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}

func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
