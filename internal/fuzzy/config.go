// Package fuzzy decides whether two tracks are metadata duplicates.
// String similarity is Jaro-Winkler over a configurable normalization
// pipeline; the per-field thresholds and tolerances live in Config.
package fuzzy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPreset is returned for preset names other than
// strict/balanced/lenient.
var ErrUnknownPreset = errors.New("fuzzy: unknown preset")

// Config holds the tunable matching parameters. Thresholds are percentages.
type Config struct {
	TitleThreshold  int `json:"titleThreshold" koanf:"title_threshold" toml:"title_threshold"`
	ArtistThreshold int `json:"artistThreshold" koanf:"artist_threshold" toml:"artist_threshold"`
	AlbumThreshold  int `json:"albumThreshold" koanf:"album_threshold" toml:"album_threshold"`

	DurationToleranceSec int `json:"durationToleranceSec" koanf:"duration_tol_sec" toml:"duration_tol_sec"`
	DurationTolerancePct int `json:"durationTolerancePct" koanf:"duration_tol_pct" toml:"duration_tol_pct"`
	BitrateToleranceKbps int `json:"bitrateToleranceKbps" koanf:"bitrate_tol_kbps" toml:"bitrate_tol_kbps"`

	// MinFieldsToMatch is the number of matching fields, out of
	// {title, artist, album, duration}, required to call a pair duplicate.
	MinFieldsToMatch int `json:"minFieldsToMatch" koanf:"min_fields_to_match" toml:"min_fields_to_match"`

	IgnoreCase          bool `json:"ignoreCase" koanf:"ignore_case" toml:"ignore_case"`
	IgnorePunctuation   bool `json:"ignorePunctuation" koanf:"ignore_punct" toml:"ignore_punct"`
	WordOrderSensitive  bool `json:"wordOrderSensitive" koanf:"word_order_sensitive" toml:"word_order_sensitive"`
	IgnoreArtistPrefix  bool `json:"ignoreArtistPrefixes" koanf:"ignore_artist_prefixes" toml:"ignore_artist_prefixes"`
	IgnoreFeaturing     bool `json:"ignoreFeaturing" koanf:"ignore_featuring" toml:"ignore_featuring"`
	IgnoreAlbumEditions bool `json:"ignoreAlbumEditions" koanf:"ignore_album_editions" toml:"ignore_album_editions"`

	TrackNumberMustMatch     bool `json:"trackNumberMustMatch" koanf:"track_number_must_match" toml:"track_number_must_match"`
	IgnoreMissingTrackNumber bool `json:"ignoreMissingTrackNumber" koanf:"ignore_missing_track_number" toml:"ignore_missing_track_number"`
}

// Preset names.
const (
	PresetStrict   = "strict"
	PresetBalanced = "balanced"
	PresetLenient  = "lenient"
)

// DefaultConfig returns the balanced defaults.
func DefaultConfig() Config {
	return Config{
		TitleThreshold:           85,
		ArtistThreshold:          90,
		AlbumThreshold:           85,
		DurationToleranceSec:     10,
		DurationTolerancePct:     5,
		BitrateToleranceKbps:     64,
		MinFieldsToMatch:         2,
		IgnoreCase:               true,
		IgnorePunctuation:        true,
		WordOrderSensitive:       false,
		IgnoreArtistPrefix:       true,
		IgnoreFeaturing:          false,
		IgnoreAlbumEditions:      true,
		TrackNumberMustMatch:     false,
		IgnoreMissingTrackNumber: true,
	}
}

// Preset returns the named preset configuration.
func Preset(name string) (Config, error) {
	switch strings.ToLower(name) {
	case PresetStrict:
		cfg := DefaultConfig()
		cfg.TitleThreshold = 100
		cfg.ArtistThreshold = 100
		cfg.AlbumThreshold = 100
		cfg.DurationToleranceSec = 0
		cfg.DurationTolerancePct = 0
		cfg.BitrateToleranceKbps = 0
		cfg.MinFieldsToMatch = 4
		cfg.TrackNumberMustMatch = true
		return cfg, nil
	case PresetBalanced:
		return DefaultConfig(), nil
	case PresetLenient:
		cfg := DefaultConfig()
		cfg.TitleThreshold = 70
		cfg.ArtistThreshold = 75
		cfg.AlbumThreshold = 70
		cfg.DurationToleranceSec = 30
		cfg.DurationTolerancePct = 10
		cfg.IgnoreFeaturing = true
		return cfg, nil
	}
	return Config{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
}

// Validate checks range constraints on the tunables.
func (c Config) Validate() error {
	check := func(name string, v, lo, hi int) error {
		if v < lo || v > hi {
			return fmt.Errorf("fuzzy: %s must be in [%d,%d], got %d", name, lo, hi, v)
		}
		return nil
	}
	if err := check("title_threshold", c.TitleThreshold, 0, 100); err != nil {
		return err
	}
	if err := check("artist_threshold", c.ArtistThreshold, 0, 100); err != nil {
		return err
	}
	if err := check("album_threshold", c.AlbumThreshold, 0, 100); err != nil {
		return err
	}
	if err := check("min_fields_to_match", c.MinFieldsToMatch, 1, 4); err != nil {
		return err
	}
	if c.DurationToleranceSec < 0 || c.DurationTolerancePct < 0 || c.BitrateToleranceKbps < 0 {
		return errors.New("fuzzy: tolerances must be non-negative")
	}
	return nil
}

// Fingerprint returns a stable string identifying this configuration.
// The duplicate-scan cache is keyed by it so a config change never serves
// stale groups.
func (c Config) Fingerprint() string {
	return fmt.Sprintf("%d:%d:%d:%d:%d:%d:%d:%t:%t:%t:%t:%t:%t:%t:%t",
		c.TitleThreshold, c.ArtistThreshold, c.AlbumThreshold,
		c.DurationToleranceSec, c.DurationTolerancePct, c.BitrateToleranceKbps,
		c.MinFieldsToMatch, c.IgnoreCase, c.IgnorePunctuation,
		c.WordOrderSensitive, c.IgnoreArtistPrefix, c.IgnoreFeaturing,
		c.IgnoreAlbumEditions, c.TrackNumberMustMatch, c.IgnoreMissingTrackNumber)
}
