package fuzzy

import (
	"regexp"
	"sort"
	"strings"
)

var (
	punctuationRe   = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	multipleSpaceRe = regexp.MustCompile(`\s+`)

	artistPrefixRe = regexp.MustCompile(`(?i)^(the|a|an)\s+`)
	featuringRe    = regexp.MustCompile(`(?i)\s*[(\[]?\s*(feat\.?|ft\.?|featuring)\s+[^)\]]*[)\]]?\s*$`)
	albumEditionRe = regexp.MustCompile(`(?i)\s*[-(\[]?\s*(deluxe|remastered|special|limited|extended|expanded|anniversary|collector'?s)(\s+(edition|version))?\s*[)\]]?\s*$`)
)

// field selects the field-specific normalization step.
type field int

const (
	fieldTitle field = iota
	fieldArtist
	fieldAlbum
)

// normalize runs the pipeline: trim, optional lowercase, field-specific
// strip, optional punctuation removal, whitespace collapse, trim. Applied
// twice it is a fixpoint.
func (c Config) normalize(s string, f field) string {
	s = strings.TrimSpace(s)
	if c.IgnoreCase {
		s = strings.ToLower(s)
	}

	switch f {
	case fieldArtist:
		if c.IgnoreFeaturing {
			s = featuringRe.ReplaceAllString(s, "")
		}
		if c.IgnoreArtistPrefix {
			s = artistPrefixRe.ReplaceAllString(s, "")
		}
	case fieldAlbum:
		if c.IgnoreAlbumEditions {
			s = albumEditionRe.ReplaceAllString(s, "")
		}
	case fieldTitle:
	}

	if c.IgnorePunctuation {
		s = punctuationRe.ReplaceAllString(s, " ")
	}
	s = multipleSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// sortWords rewrites s with its words in sorted order. Used at comparison
// time when word order is insensitive, so normalization itself stays a
// fixpoint.
func sortWords(s string) string {
	words := strings.Fields(s)
	sort.Strings(words)
	return strings.Join(words, " ")
}

// NormalizeTitle normalizes a title for comparison.
func (c Config) NormalizeTitle(s string) string { return c.normalize(s, fieldTitle) }

// NormalizeArtist normalizes an artist name for comparison.
func (c Config) NormalizeArtist(s string) string { return c.normalize(s, fieldArtist) }

// NormalizeAlbum normalizes an album name for comparison.
func (c Config) NormalizeAlbum(s string) string { return c.normalize(s, fieldAlbum) }
