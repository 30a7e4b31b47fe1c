// Package profile provides named shell presets and the shell allowlist.
//
// Profiles are loaded once at startup from a YAML or TOML file (selected by
// extension) and resolve per-request defaults: shell, arguments, working
// directory, environment, dimensions, and title. The allowlist restricts
// which shell executables may be spawned using doublestar glob patterns.
package profile
