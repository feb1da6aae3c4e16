package dupes

import (
	"fmt"
	"sort"

	"github.com/quentel/mp3org/internal/catalog"
)

// FilePair is one duplicate pair spanning two directories; A lives in
// DirA, B in DirB.
type FilePair struct {
	A *catalog.Track
	B *catalog.Track
}

// DirectoryConflict collects every duplicate pair whose members live in
// the same two directories. DirA sorts before DirB.
type DirectoryConflict struct {
	DirA  string
	DirB  string
	Pairs []FilePair
}

// DirectoryConflicts buckets the cross-directory duplicate pairs of the
// given groups by their directory pair, sorted by (DirA, DirB).
func DirectoryConflicts(groups []Group) []DirectoryConflict {
	type dirKey struct{ a, b string }
	buckets := make(map[dirKey][]FilePair)

	for _, g := range groups {
		for i := 0; i < len(g.Members); i++ {
			for j := i + 1; j < len(g.Members); j++ {
				ta, tb := g.Members[i].Track, g.Members[j].Track
				da, db := parentDir(ta), parentDir(tb)
				if da == db {
					continue
				}
				if da > db {
					da, db = db, da
					ta, tb = tb, ta
				}
				buckets[dirKey{da, db}] = append(buckets[dirKey{da, db}], FilePair{A: ta, B: tb})
			}
		}
	}

	conflicts := make([]DirectoryConflict, 0, len(buckets))
	for k, pairs := range buckets {
		sort.Slice(pairs, func(a, b int) bool {
			return pairs[a].A.FilePath < pairs[b].A.FilePath
		})
		conflicts = append(conflicts, DirectoryConflict{DirA: k.a, DirB: k.b, Pairs: pairs})
	}
	sort.Slice(conflicts, func(a, b int) bool {
		if conflicts[a].DirA != conflicts[b].DirA {
			return conflicts[a].DirA < conflicts[b].DirA
		}
		return conflicts[a].DirB < conflicts[b].DirB
	})
	return conflicts
}

// PreviewDirectoryResolution returns the files in deleteDir that have a
// duplicate counterpart in keepDir, deduplicated and sorted by path.
// Nothing is deleted.
func PreviewDirectoryResolution(groups []Group, keepDir, deleteDir string) []*catalog.Track {
	seen := make(map[int64]struct{})
	var doomed []*catalog.Track

	for _, g := range groups {
		hasKeep := false
		for _, m := range g.Members {
			if parentDir(m.Track) == keepDir {
				hasKeep = true
				break
			}
		}
		if !hasKeep {
			continue
		}
		for _, m := range g.Members {
			if parentDir(m.Track) != deleteDir {
				continue
			}
			if _, dup := seen[m.Track.ID]; dup {
				continue
			}
			seen[m.Track.ID] = struct{}{}
			doomed = append(doomed, m.Track)
		}
	}

	sort.Slice(doomed, func(a, b int) bool { return doomed[a].FilePath < doomed[b].FilePath })
	return doomed
}

// ExecuteDirectoryResolution deletes the preview set for the directory
// pair: catalog rows go in one transaction, files are unlinked
// best-effort afterwards. Returns the number of tracks removed.
func (r *Resolver) ExecuteDirectoryResolution(groups []Group, keepDir, deleteDir string) (int, error) {
	doomed := PreviewDirectoryResolution(groups, keepDir, deleteDir)
	if len(doomed) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(doomed))
	for i, t := range doomed {
		ids[i] = t.ID
	}
	if err := r.store.DeleteAll(ids); err != nil {
		return 0, fmt.Errorf("directory resolution %s -> %s: %w", deleteDir, keepDir, err)
	}
	for _, t := range doomed {
		removeQuiet(r.log, t.FilePath)
	}
	return len(doomed), nil
}
