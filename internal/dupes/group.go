// Package dupes finds duplicate tracks by combining fingerprint
// clustering with fuzzy metadata matching, and turns the resulting
// groups into deletion plans.
package dupes

import (
	"path/filepath"
	"strings"

	"github.com/quentel/mp3org/internal/catalog"
)

// Member is one file inside a duplicate group. Similarity is measured
// against the group's first member and is nil for the first member
// itself: fingerprint-derived (0..1) when both files are fingerprinted,
// otherwise the mean of the fuzzy field percentages scaled to 0..1.
type Member struct {
	Track      *catalog.Track
	Similarity *float64
}

// Group is a set of files believed to be the same recording. Members are
// ordered by lexicographic file path so snapshots are reproducible; IDs
// are dense and assigned per scan.
type Group struct {
	ID      int
	Members []Member
}

// FileCount returns the number of files in the group.
func (g Group) FileCount() int {
	return len(g.Members)
}

// RepresentativeTitle is the display title of the group's first member.
func (g Group) RepresentativeTitle() string {
	if len(g.Members) == 0 {
		return ""
	}
	return g.Members[0].Track.TitleOrFilename()
}

// RepresentativeArtist is the artist of the group's first member.
func (g Group) RepresentativeArtist() string {
	if len(g.Members) == 0 {
		return ""
	}
	return g.Members[0].Track.ArtistOrEmpty()
}

// memberIDs returns the track ids of all members.
func (g Group) memberIDs() []int64 {
	ids := make([]int64, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.Track.ID
	}
	return ids
}

// parentDir is the directory a track lives in.
func parentDir(t *catalog.Track) string {
	return filepath.Dir(t.FilePath)
}

// underDir reports whether path is dir itself or inside it.
func underDir(path, dir string) bool {
	dir = filepath.Clean(dir)
	if dir == "" || dir == "." {
		return false
	}
	path = filepath.Clean(path)
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}
