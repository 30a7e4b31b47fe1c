// Package validation centralizes input validation for session requests.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Terminal dimension bounds. Zero or oversized dimensions are rejected
// before they reach the PTY.
const (
	MinDimension = 1
	MaxDimension = 1000

	DefaultRows uint16 = 24
	DefaultCols uint16 = 80
)

// Size limits (in bytes unless noted)
const (
	MaxInputSize   = 1 * 1024 * 1024 // single input frame payload
	MaxBatchInputs = 256             // frames per batch request
	MaxEnvCount    = 128
	MaxEnvValueLen = 32 * 1024
	MaxArgCount    = 64
	MaxArgLen      = 4096
)

// String length limits
const (
	MaxIDLength      = 128
	MaxTitleLength   = 256
	MaxShellLength   = 1024
	MaxProfileLength = 64
	MaxEnvKeyLength  = 256
)

// Regular expressions for validation
var (
	// SafeIDPattern allows alphanumeric, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// EnvKeyPattern matches POSIX environment variable names
	EnvKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	// ProfilePattern allows lowercase names with hyphens
	ProfilePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil // Optional field, empty is OK
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	// Check for null bytes (security issue)
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates an ID field
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateDimensions checks terminal rows/cols against the accepted bounds.
// Zero means "use the default" at call sites; this helper expects resolved
// values.
func ValidateDimensions(rows, cols uint16) error {
	if rows < MinDimension || rows > MaxDimension {
		return fmt.Errorf("rows must be between %d and %d, got %d", MinDimension, MaxDimension, rows)
	}
	if cols < MinDimension || cols > MaxDimension {
		return fmt.Errorf("cols must be between %d and %d, got %d", MinDimension, MaxDimension, cols)
	}
	return nil
}

// ValidateShell validates a shell executable path
func ValidateShell(shell string, required bool) error {
	if err := ValidateString(shell, "shell", 1, MaxShellLength, required); err != nil {
		return err
	}

	if shell != "" && strings.ContainsAny(shell, "\n\r") {
		return fmt.Errorf("shell contains invalid characters")
	}

	return nil
}

// ValidateArgs validates command arguments
func ValidateArgs(args []string) error {
	if len(args) > MaxArgCount {
		return fmt.Errorf("too many arguments (maximum %d)", MaxArgCount)
	}

	for i, arg := range args {
		if err := ValidateString(arg, fmt.Sprintf("args[%d]", i), 0, MaxArgLen, false); err != nil {
			return err
		}
	}

	return nil
}

// ValidateEnv validates an environment variable map
func ValidateEnv(env map[string]string) error {
	if len(env) > MaxEnvCount {
		return fmt.Errorf("too many environment variables (maximum %d)", MaxEnvCount)
	}

	for key, value := range env {
		if err := ValidateString(key, "env key", 1, MaxEnvKeyLength, true); err != nil {
			return err
		}
		if !EnvKeyPattern.MatchString(key) {
			return fmt.Errorf("env key %q is not a valid variable name", key)
		}
		if len(value) > MaxEnvValueLen {
			return fmt.Errorf("env value for %q exceeds %d bytes", key, MaxEnvValueLen)
		}
		if strings.Contains(value, "\x00") {
			return fmt.Errorf("env value for %q contains invalid characters", key)
		}
	}

	return nil
}

// ValidateTitle validates a session title
func ValidateTitle(title string, required bool) error {
	return ValidateString(title, "title", 0, MaxTitleLength, required)
}

// ValidateProfileName validates a profile name reference
func ValidateProfileName(name string, required bool) error {
	if err := ValidateString(name, "profile", 1, MaxProfileLength, required); err != nil {
		return err
	}

	if name != "" && !ProfilePattern.MatchString(name) {
		return fmt.Errorf("profile must contain only lowercase letters, numbers, and hyphens")
	}

	return nil
}
