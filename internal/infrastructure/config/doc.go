// Package config provides 12-factor configuration management for the daemon.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, connection cap)
//   - Terminal: PTY session defaults and limits
//   - Auth: Bearer token authentication
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Webhook: Lifecycle event delivery
//   - Transcript: Session output logging
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, SERVER_MAX_CONNS
//   - TERMINAL_DEFAULT_SHELL, TERMINAL_DEFAULT_ROWS, TERMINAL_DEFAULT_COLS,
//     TERMINAL_MAX_SESSIONS, TERMINAL_SHELL_ALLOWLIST, TERMINAL_KILL_GRACE,
//     TERMINAL_DATA_DIR, TERMINAL_PROFILES
//   - AUTH_ENABLED, AUTH_TOKEN_HASH
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - WEBHOOK_URL, WEBHOOK_TIMEOUT, WEBHOOK_MAX_RETRIES
//   - TRANSCRIPT_ENABLED, TRANSCRIPT_ROTATE_BYTES, TRANSCRIPT_MAX_AGE
package config
