package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all daemon configuration.
type Config struct {
	Server     ServerConfig
	Terminal   TerminalConfig
	Auth       AuthConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	Webhook    WebhookConfig
	Transcript TranscriptConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string `envconfig:"PORT" default:"8700"`
	Host     string `envconfig:"HOST" default:"0.0.0.0"`
	MaxConns int    `envconfig:"SERVER_MAX_CONNS" default:"512"`
}

// TerminalConfig holds PTY session configuration.
type TerminalConfig struct {
	DefaultShell     string        `envconfig:"TERMINAL_DEFAULT_SHELL" default:"/bin/bash"`
	DefaultRows      uint16        `envconfig:"TERMINAL_DEFAULT_ROWS" default:"24"`
	DefaultCols      uint16        `envconfig:"TERMINAL_DEFAULT_COLS" default:"80"`
	MaxSessions      int           `envconfig:"TERMINAL_MAX_SESSIONS" default:"64"`
	InputQueueSize   int           `envconfig:"TERMINAL_INPUT_QUEUE" default:"256"`
	SubscriberBuffer int           `envconfig:"TERMINAL_SUBSCRIBER_BUFFER" default:"256"`
	ScrollbackBytes  int           `envconfig:"TERMINAL_SCROLLBACK_BYTES" default:"131072"`
	ReadBufferBytes  int           `envconfig:"TERMINAL_READ_BUFFER" default:"32768"`
	FlushInterval    time.Duration `envconfig:"TERMINAL_FLUSH_INTERVAL" default:"16ms"`
	KillGrace        time.Duration `envconfig:"TERMINAL_KILL_GRACE" default:"3s"`
	Retention        time.Duration `envconfig:"TERMINAL_RETENTION" default:"10m"`
	ShellAllowlist   []string      `envconfig:"TERMINAL_SHELL_ALLOWLIST"`
	DataDir          string        `envconfig:"TERMINAL_DATA_DIR" default:"/var/lib/termstream"`
	ProfilesPath     string        `envconfig:"TERMINAL_PROFILES"`
}

// AuthConfig holds API authentication configuration. When enabled, requests
// must present a bearer token matching the stored bcrypt hash.
type AuthConfig struct {
	Enabled   bool   `envconfig:"AUTH_ENABLED" default:"false"`
	TokenHash string `envconfig:"AUTH_TOKEN_HASH"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// WebhookConfig holds lifecycle webhook configuration. An empty URL disables
// delivery.
type WebhookConfig struct {
	URL        string        `envconfig:"WEBHOOK_URL"`
	Timeout    time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"5s"`
	MaxRetries int           `envconfig:"WEBHOOK_MAX_RETRIES" default:"3"`
	QueueSize  int           `envconfig:"WEBHOOK_QUEUE_SIZE" default:"256"`
}

// TranscriptConfig holds session transcript configuration.
type TranscriptConfig struct {
	Enabled     bool          `envconfig:"TRANSCRIPT_ENABLED" default:"false"`
	RotateBytes int64         `envconfig:"TRANSCRIPT_ROTATE_BYTES" default:"10485760"`
	MaxAge      time.Duration `envconfig:"TRANSCRIPT_MAX_AGE" default:"168h"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     "8700",
			Host:     "0.0.0.0",
			MaxConns: 512,
		},
		Terminal: TerminalConfig{
			DefaultShell:     "/bin/bash",
			DefaultRows:      24,
			DefaultCols:      80,
			MaxSessions:      64,
			InputQueueSize:   256,
			SubscriberBuffer: 256,
			ScrollbackBytes:  128 * 1024,
			ReadBufferBytes:  32 * 1024,
			FlushInterval:    16 * time.Millisecond,
			KillGrace:        3 * time.Second,
			Retention:        10 * time.Minute,
			DataDir:          "/var/lib/termstream",
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Webhook: WebhookConfig{
			Timeout:    5 * time.Second,
			MaxRetries: 3,
			QueueSize:  256,
		},
		Transcript: TranscriptConfig{
			RotateBytes: 10 * 1024 * 1024,
			MaxAge:      168 * time.Hour,
		},
	}
}
