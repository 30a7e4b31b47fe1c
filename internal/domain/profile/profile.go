package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/TermStream/internal/shared/validation"
)

// Profile is a named preset applied to session create requests. Request
// fields that are set explicitly always win over profile values.
type Profile struct {
	Shell string            `yaml:"shell" toml:"shell" json:"shell,omitempty"`
	Args  []string          `yaml:"args" toml:"args" json:"args,omitempty"`
	Cwd   string            `yaml:"cwd" toml:"cwd" json:"cwd,omitempty"`
	Env   map[string]string `yaml:"env" toml:"env" json:"env,omitempty"`
	Rows  uint16            `yaml:"rows" toml:"rows" json:"rows,omitempty"`
	Cols  uint16            `yaml:"cols" toml:"cols" json:"cols,omitempty"`
	Title string            `yaml:"title" toml:"title" json:"title,omitempty"`
}

// file is the on-disk shape shared by the YAML and TOML forms.
type file struct {
	Profiles map[string]Profile `yaml:"profiles" toml:"profiles"`
}

// Store holds the loaded profiles. Read-only after load.
type Store struct {
	profiles map[string]Profile
}

// EmptyStore returns a store with no profiles.
func EmptyStore() *Store {
	return &Store{profiles: make(map[string]Profile)}
}

// LoadStore reads a profile file, dispatching on extension: .yaml/.yml or
// .toml. A missing file yields an empty store rather than an error so the
// daemon runs without one.
func LoadStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return EmptyStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}

	var f file
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse YAML profiles: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse TOML profiles: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported profile format: %s", ext)
	}

	for name, p := range f.Profiles {
		if err := validation.ValidateProfileName(name, true); err != nil {
			return nil, fmt.Errorf("invalid profile name %q: %w", name, err)
		}
		if err := validation.ValidateShell(p.Shell, false); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		if err := validation.ValidateEnv(p.Env); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
	}

	if f.Profiles == nil {
		f.Profiles = make(map[string]Profile)
	}
	return &Store{profiles: f.Profiles}, nil
}

// Resolve looks up a profile by name.
func (s *Store) Resolve(name string) (Profile, bool) {
	p, ok := s.profiles[name]
	return p, ok
}

// Names returns the loaded profile names, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of loaded profiles.
func (s *Store) Len() int {
	return len(s.profiles)
}
