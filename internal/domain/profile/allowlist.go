package profile

import "github.com/bmatcuk/doublestar/v4"

// Allowlist restricts which shell executables may be spawned. Patterns are
// doublestar globs matched against the absolute shell path, e.g.
// "/bin/*sh" or "/usr/local/**/fish". An empty allowlist permits any shell.
type Allowlist struct {
	patterns []string
}

// NewAllowlist compiles an allowlist from glob patterns. Invalid patterns
// are reported up front rather than silently never matching.
func NewAllowlist(patterns []string) (*Allowlist, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p}
		}
	}
	return &Allowlist{patterns: patterns}, nil
}

// Allowed reports whether the shell path matches any pattern. An empty
// allowlist allows everything.
func (a *Allowlist) Allowed(shell string) bool {
	if len(a.patterns) == 0 {
		return true
	}
	for _, p := range a.patterns {
		if ok, err := doublestar.Match(p, shell); err == nil && ok {
			return true
		}
	}
	return false
}

// Empty reports whether the allowlist has no patterns.
func (a *Allowlist) Empty() bool {
	return len(a.patterns) == 0
}

// PatternError reports an invalid allowlist glob.
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return "invalid allowlist pattern: " + e.Pattern
}
