// Package catalog persists the music library: one row per audio file,
// with the metadata and fingerprint columns the duplicate pipeline works on.
package catalog

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
)

// Track is one audio file in the library. Nullable tag fields are pointers
// so "tag absent" and "tag empty" stay distinguishable in storage.
type Track struct {
	ID       int64
	FilePath string

	Title       *string
	Artist      *string
	Album       *string
	Genre       *string
	TrackNumber *int
	Year        *int

	DurationSeconds int
	FileSizeBytes   int64
	BitRate         int // kbps
	SampleRate      int // Hz
	FileType        string

	LastModified time.Time
	DateAdded    time.Time

	// Chromaprint raw fingerprint: comma-separated signed 32-bit ints.
	Fingerprint         *string
	FingerprintDuration *int
}

// CanonicalPath cleans a path and makes it absolute. Tracks are keyed by
// canonical path so the same file never inserts twice under different
// spellings.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("canonicalize %s: %w", path, err)
	}
	return abs, nil
}

// TitleOrFilename returns the title tag, or the base filename when untagged.
func (t *Track) TitleOrFilename() string {
	if t.Title != nil && *t.Title != "" {
		return *t.Title
	}
	base := filepath.Base(t.FilePath)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// ArtistOrEmpty returns the artist tag or "".
func (t *Track) ArtistOrEmpty() string {
	if t.Artist == nil {
		return ""
	}
	return *t.Artist
}

// AlbumOrEmpty returns the album tag or "".
func (t *Track) AlbumOrEmpty() string {
	if t.Album == nil {
		return ""
	}
	return *t.Album
}

// HasFingerprint reports whether a usable fingerprint is stored.
func (t *Track) HasFingerprint() bool {
	return t.Fingerprint != nil && *t.Fingerprint != ""
}

// MetadataFieldCount counts the populated fields among title, artist,
// album, year and track number. Used to rank duplicates by tag richness.
func (t *Track) MetadataFieldCount() int {
	n := 0
	if t.Title != nil && *t.Title != "" {
		n++
	}
	if t.Artist != nil && *t.Artist != "" {
		n++
	}
	if t.Album != nil && *t.Album != "" {
		n++
	}
	if t.Year != nil && *t.Year != 0 {
		n++
	}
	if t.TrackNumber != nil && *t.TrackNumber != 0 {
		n++
	}
	return n
}

// FormattedDuration renders the duration as m:ss (or h:mm:ss past an hour).
func (t *Track) FormattedDuration() string {
	d := t.DurationSeconds
	if d < 0 {
		d = 0
	}
	if d >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", d/3600, (d%3600)/60, d%60)
	}
	return fmt.Sprintf("%d:%02d", d/60, d%60)
}

// FormattedFileSize renders the file size for display ("7.4 MB").
func (t *Track) FormattedFileSize() string {
	if t.FileSizeBytes < 0 {
		return humanize.Bytes(0)
	}
	return humanize.Bytes(uint64(t.FileSizeBytes))
}
