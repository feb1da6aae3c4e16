// Package tags reads audio metadata and stream properties into catalog
// tracks. Tag decoding is delegated to dhowden/tag with id3v2 and taglib
// fallbacks; extraction never fails outright, a partial track comes back
// for any readable file.
package tags

import (
	"path/filepath"
	"strconv"
	"strings"
)

// File extensions the extractor understands.
const (
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
	ExtOPUS = ".opus"
	ExtOGG  = ".ogg"
	ExtOGA  = ".oga"
	ExtM4A  = ".m4a"
	ExtMP4  = ".mp4"
	ExtWAV  = ".wav"
	ExtWMA  = ".wma"
	ExtAIFF = ".aiff"
)

// DefaultFileTypes is the extension set (without dots) new profiles start
// with.
var DefaultFileTypes = []string{"mp3", "flac", "ogg", "opus", "m4a", "wav", "aiff", "wma"}

var knownExts = map[string]struct{}{
	ExtMP3: {}, ExtFLAC: {}, ExtOPUS: {}, ExtOGG: {}, ExtOGA: {},
	ExtM4A: {}, ExtMP4: {}, ExtWAV: {}, ExtWMA: {}, ExtAIFF: {},
}

// IsMusicFile reports whether path has a known audio extension.
func IsMusicFile(path string) bool {
	_, ok := knownExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// FileType returns the lowercased extension without the leading dot.
func FileType(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// parseTrackNumber parses a track number string like "5" or "5/10",
// taking the part before the slash.
func parseTrackNumber(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		s = s[:idx]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// parseYear extracts a four-digit year from a date-ish string ("1994",
// "1994-06-21"). Returns 0 when nothing parses.
func parseYear(s string) int {
	s = strings.TrimSpace(s)
	if len(s) > 4 {
		s = s[:4]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
