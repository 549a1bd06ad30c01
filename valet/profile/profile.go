// Package profile provides the response-shaping policy selected per request.
//
// A profile describes how much the assistant should say (verbosity budget),
// how cautious it should be (confirmation strictness), and how much detail
// may appear in responses (privacy mode). Profiles are loaded once at
// process start and never mutated per request.
package profile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Privacy Mode
// =============================================================================

// PrivacyMode controls how much detail may appear in a response.
type PrivacyMode string

const (
	// PrivacyStrict suppresses code excerpts and debug payloads entirely.
	PrivacyStrict PrivacyMode = "strict"
	// PrivacyBalanced allows literal excerpts but no debug payloads.
	PrivacyBalanced PrivacyMode = "balanced"
	// PrivacyDebug allows everything, including debug payloads.
	PrivacyDebug PrivacyMode = "debug"
)

// valid reports whether the mode is one of the known values.
func (m PrivacyMode) valid() bool {
	switch m {
	case PrivacyStrict, PrivacyBalanced, PrivacyDebug:
		return true
	default:
		return false
	}
}

// AllowExcerpts reports whether literal excerpts may appear in responses.
func (m PrivacyMode) AllowExcerpts() bool {
	return m == PrivacyBalanced || m == PrivacyDebug
}

// AllowDebug reports whether debug payloads may appear in responses.
func (m PrivacyMode) AllowDebug() bool {
	return m == PrivacyDebug
}

// =============================================================================
// Profile
// =============================================================================

// Profile is a named response-shaping policy. Read-only after load.
type Profile struct {
	Name string `yaml:"name" json:"name"`
	// MaxSentences caps the number of sentences in spoken text.
	MaxSentences int `yaml:"max_sentences" json:"max_sentences"`
	// MaxWords caps the total word count of spoken text.
	MaxWords int `yaml:"max_words" json:"max_words"`
	// StrictConfirmation forces confirmation even for actions a policy
	// rule would otherwise ALLOW outright.
	StrictConfirmation bool `yaml:"strict_confirmation" json:"strict_confirmation"`
	// Privacy controls excerpt and debug detail in responses.
	Privacy PrivacyMode `yaml:"privacy" json:"privacy"`
}

// DefaultName is the profile used when a request names an unknown profile.
const DefaultName = "default"

// builtins are the profiles shipped with the assistant. A YAML catalog can
// override or extend them.
var builtins = map[string]Profile{
	"default": {Name: "default", MaxSentences: 4, MaxWords: 60, StrictConfirmation: false, Privacy: PrivacyBalanced},
	"workout": {Name: "workout", MaxSentences: 2, MaxWords: 30, StrictConfirmation: true, Privacy: PrivacyStrict},
	"commute": {Name: "commute", MaxSentences: 3, MaxWords: 45, StrictConfirmation: true, Privacy: PrivacyStrict},
	"kitchen": {Name: "kitchen", MaxSentences: 2, MaxWords: 35, StrictConfirmation: true, Privacy: PrivacyStrict},
	"focused": {Name: "focused", MaxSentences: 1, MaxWords: 20, StrictConfirmation: false, Privacy: PrivacyBalanced},
	"relaxed": {Name: "relaxed", MaxSentences: 6, MaxWords: 120, StrictConfirmation: false, Privacy: PrivacyBalanced},
}

// =============================================================================
// Registry
// =============================================================================

// Registry resolves profile names to profiles.
// Unknown names resolve to the default profile rather than erroring, so a
// malformed client request degrades gracefully instead of failing the
// whole command.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry creates a registry with the built-in profiles.
func NewRegistry() *Registry {
	profiles := make(map[string]Profile, len(builtins))
	for name, p := range builtins {
		profiles[name] = p
	}
	return &Registry{profiles: profiles}
}

// catalogFile models the on-disk profile catalog.
type catalogFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadCatalog merges profiles from a YAML catalog file over the built-ins.
func LoadCatalog(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog merges profiles from YAML over the built-ins.
func ParseCatalog(data []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile catalog: %w", err)
	}

	registry := NewRegistry()
	for _, p := range file.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("profile catalog contains an unnamed profile")
		}
		if p.MaxSentences <= 0 || p.MaxWords <= 0 {
			return nil, fmt.Errorf("profile %q has a non-positive verbosity budget", p.Name)
		}
		if !p.Privacy.valid() {
			return nil, fmt.Errorf("profile %q has invalid privacy mode %q", p.Name, p.Privacy)
		}
		registry.profiles[p.Name] = p
	}
	return registry, nil
}

// Resolve returns the profile for name, or the default profile when the
// name is unknown or empty.
func (r *Registry) Resolve(name string) Profile {
	if p, ok := r.profiles[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return r.profiles[DefaultName]
}

// Names returns all registered profile names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	return names
}
