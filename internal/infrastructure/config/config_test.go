package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8700", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 512, cfg.Server.MaxConns)

	// Terminal config
	assert.Equal(t, "/bin/bash", cfg.Terminal.DefaultShell)
	assert.Equal(t, uint16(24), cfg.Terminal.DefaultRows)
	assert.Equal(t, uint16(80), cfg.Terminal.DefaultCols)
	assert.Equal(t, 64, cfg.Terminal.MaxSessions)
	assert.Equal(t, 256, cfg.Terminal.SubscriberBuffer)
	assert.Equal(t, 128*1024, cfg.Terminal.ScrollbackBytes)
	assert.Equal(t, 16*time.Millisecond, cfg.Terminal.FlushInterval)
	assert.Equal(t, 3*time.Second, cfg.Terminal.KillGrace)
	assert.Empty(t, cfg.Terminal.ShellAllowlist)

	// Auth config
	assert.False(t, cfg.Auth.Enabled)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Webhook disabled by default
	assert.Empty(t, cfg.Webhook.URL)
	assert.Equal(t, 5*time.Second, cfg.Webhook.Timeout)

	// Transcripts disabled by default
	assert.False(t, cfg.Transcript.Enabled)
	assert.Equal(t, int64(10*1024*1024), cfg.Transcript.RotateBytes)
}

func TestLoadOrDefault(t *testing.T) {
	// Should return default when no env vars set
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8700", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	// Setup environment variables
	envVars := map[string]string{
		"PORT":                     "9000",
		"HOST":                     "127.0.0.1",
		"TERMINAL_DEFAULT_SHELL":   "/bin/zsh",
		"TERMINAL_DEFAULT_ROWS":    "50",
		"TERMINAL_DEFAULT_COLS":    "132",
		"TERMINAL_MAX_SESSIONS":    "8",
		"TERMINAL_KILL_GRACE":      "1s",
		"TERMINAL_SHELL_ALLOWLIST": "/bin/*sh,/usr/bin/*sh",
		"AUTH_ENABLED":             "true",
		"LOG_LEVEL":                "debug",
		"LOG_DEV":                  "true",
		"RATE_LIMIT_RPS":           "500",
		"RATE_LIMIT_BURST":         "1000",
		"RATE_LIMIT_ENABLED":       "false",
		"WEBHOOK_URL":              "http://hooks.internal/terminal",
		"TRANSCRIPT_ENABLED":       "true",
	}

	// Set environment variables
	for key, value := range envVars {
		err := os.Setenv(key, value)
		require.NoError(t, err)
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	// Verify server config
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	// Verify terminal config
	assert.Equal(t, "/bin/zsh", cfg.Terminal.DefaultShell)
	assert.Equal(t, uint16(50), cfg.Terminal.DefaultRows)
	assert.Equal(t, uint16(132), cfg.Terminal.DefaultCols)
	assert.Equal(t, 8, cfg.Terminal.MaxSessions)
	assert.Equal(t, time.Second, cfg.Terminal.KillGrace)
	assert.Equal(t, []string{"/bin/*sh", "/usr/bin/*sh"}, cfg.Terminal.ShellAllowlist)

	// Verify auth config
	assert.True(t, cfg.Auth.Enabled)

	// Verify logging config
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	// Verify rate limit config
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)

	// Verify webhook and transcript config
	assert.Equal(t, "http://hooks.internal/terminal", cfg.Webhook.URL)
	assert.True(t, cfg.Transcript.Enabled)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	// Only set some environment variables
	err := os.Setenv("PORT", "3000")
	require.NoError(t, err)
	defer os.Unsetenv("PORT")

	err = os.Setenv("TERMINAL_DEFAULT_SHELL", "/bin/sh")
	require.NoError(t, err)
	defer os.Unsetenv("TERMINAL_DEFAULT_SHELL")

	cfg, err := Load()
	require.NoError(t, err)

	// Verify overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "/bin/sh", cfg.Terminal.DefaultShell)

	// Verify default values still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, uint16(24), cfg.Terminal.DefaultRows)
	assert.Equal(t, 64, cfg.Terminal.MaxSessions)
}

func TestTerminalConfig(t *testing.T) {
	tests := []struct {
		name      string
		rows      string
		grace     string
		wantRows  uint16
		wantGrace time.Duration
	}{
		{
			name:      "default values",
			rows:      "",
			grace:     "",
			wantRows:  24,
			wantGrace: 3 * time.Second,
		},
		{
			name:      "custom rows",
			rows:      "60",
			grace:     "",
			wantRows:  60,
			wantGrace: 3 * time.Second,
		},
		{
			name:      "short grace",
			rows:      "",
			grace:     "500ms",
			wantRows:  24,
			wantGrace: 500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clean environment
			os.Unsetenv("TERMINAL_DEFAULT_ROWS")
			os.Unsetenv("TERMINAL_KILL_GRACE")

			// Set test values
			if tt.rows != "" {
				err := os.Setenv("TERMINAL_DEFAULT_ROWS", tt.rows)
				require.NoError(t, err)
				defer os.Unsetenv("TERMINAL_DEFAULT_ROWS")
			}
			if tt.grace != "" {
				err := os.Setenv("TERMINAL_KILL_GRACE", tt.grace)
				require.NoError(t, err)
				defer os.Unsetenv("TERMINAL_KILL_GRACE")
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantRows, cfg.Terminal.DefaultRows)
			assert.Equal(t, tt.wantGrace, cfg.Terminal.KillGrace)
		})
	}
}

func TestWebhookConfig(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		retries     string
		wantURL     string
		wantRetries int
	}{
		{
			name:        "disabled by default",
			url:         "",
			retries:     "",
			wantURL:     "",
			wantRetries: 3,
		},
		{
			name:        "enabled with custom retries",
			url:         "https://hooks.example.com/tty",
			retries:     "5",
			wantURL:     "https://hooks.example.com/tty",
			wantRetries: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clean environment
			os.Unsetenv("WEBHOOK_URL")
			os.Unsetenv("WEBHOOK_MAX_RETRIES")

			// Set test values
			if tt.url != "" {
				err := os.Setenv("WEBHOOK_URL", tt.url)
				require.NoError(t, err)
				defer os.Unsetenv("WEBHOOK_URL")
			}
			if tt.retries != "" {
				err := os.Setenv("WEBHOOK_MAX_RETRIES", tt.retries)
				require.NoError(t, err)
				defer os.Unsetenv("WEBHOOK_MAX_RETRIES")
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantURL, cfg.Webhook.URL)
			assert.Equal(t, tt.wantRetries, cfg.Webhook.MaxRetries)
		})
	}
}
