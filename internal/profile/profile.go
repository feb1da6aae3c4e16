// Package profile manages library profiles: named configurations that
// each point at their own catalog database, file-type filter and fuzzy
// matching settings. Exactly one profile is active at a time; switching
// profiles atomically swaps the open catalog.
package profile

import (
	"errors"
	"strings"
	"time"

	"github.com/quentel/mp3org/internal/fuzzy"
)

var (
	// ErrProfileNotFound is returned for unknown profile ids.
	ErrProfileNotFound = errors.New("profile: not found")
	// ErrProfileExists is returned when a profile name is already taken.
	ErrProfileExists = errors.New("profile: name already exists")
	// ErrProfileActive is returned when deleting the active profile.
	ErrProfileActive = errors.New("profile: cannot delete the active profile")
)

// Profile is one named library configuration.
type Profile struct {
	ID               string       `json:"id" koanf:"id" toml:"id"`
	Name             string       `json:"name" koanf:"name" toml:"name"`
	Description      string       `json:"description" koanf:"description" toml:"description"`
	DatabasePath     string       `json:"databasePath" koanf:"database_path" toml:"database_path"`
	EnabledFileTypes []string     `json:"enabledFileTypes" koanf:"enabled_file_types" toml:"enabled_file_types"`
	CreatedAt        time.Time    `json:"createdAt" koanf:"created_at" toml:"created_at"`
	LastUsedAt       time.Time    `json:"lastUsedAt" koanf:"last_used_at" toml:"last_used_at"`
	Fuzzy            fuzzy.Config `json:"fuzzySearchConfig" koanf:"fuzzy" toml:"fuzzy"`
}

// clone returns a deep copy so callers never alias manager state.
func (p *Profile) clone() *Profile {
	cp := *p
	cp.EnabledFileTypes = append([]string(nil), p.EnabledFileTypes...)
	return &cp
}

// sameName compares profile names case-insensitively.
func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
