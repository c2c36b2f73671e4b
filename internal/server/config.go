// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the roomchat service.
package server

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port                string        `env:"SERVER_PORT"`
	AllowedOriginsRaw   string        `env:"ALLOWED_ORIGINS"`
	AllowedOrigins      []string
	MaxMessageSize      int64         `env:"MAX_MESSAGE_SIZE"`
	RateLimit           RateLimitConfig
	SessionSecret       string        `env:"SESSION_SECRET"`
	SessionTTL          time.Duration `env:"SESSION_TTL"`
	UploadDir           string        `env:"UPLOAD_DIR"`
	MaxUploadSize       int64         `env:"MAX_UPLOAD_SIZE"`
	VerifyAvatarContent bool          `env:"VERIFY_AVATAR_CONTENT"`
	LogLevel            string        `env:"LOG_LEVEL"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 4096
	defaultBurst           = 5
	defaultRefillInterval  = time.Second
	defaultSessionSecret   = "change-me-roomchat-session-secret"
	defaultSessionTTL      = 24 * time.Hour
	defaultUploadDir       = "static/avatars"
	defaultMaxUploadSize   = 5 << 20
	defaultLogLevel        = "INFO"
	defaultShutdownTimeout = 10 * time.Second
)

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	return &Config{
		Port:           defaultPort,
		AllowedOrigins: []string{"http://localhost:8080"},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: defaultRefillInterval,
		},
		SessionSecret:   defaultSessionSecret,
		SessionTTL:      defaultSessionTTL,
		UploadDir:       defaultUploadDir,
		MaxUploadSize:   defaultMaxUploadSize,
		LogLevel:        defaultLogLevel,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// NewConfigFromEnv creates a Config from environment variables on top of the
// defaults and sanitizes the result.
func NewConfigFromEnv() (*Config, error) {
	cfg := NewConfig()
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}
	if cfg.AllowedOriginsRaw != "" {
		cfg.AllowedOrigins = parseOrigins(cfg.AllowedOriginsRaw)
	}
	sanitized := sanitizeConfig(*cfg)
	return &sanitized, nil
}

// sanitizeConfig replaces unusable values with defaults.
func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaultRefillInterval
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = defaultSessionSecret
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}

	if cfg.UploadDir == "" {
		cfg.UploadDir = defaultUploadDir
	}

	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = defaultMaxUploadSize
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
