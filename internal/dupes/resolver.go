package dupes

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/quentel/mp3org/internal/catalog"
)

// Resolution keeps one file of a group and deletes another.
type Resolution struct {
	GroupID    int
	Keep       *catalog.Track
	Delete     *catalog.Track
	Similarity *float64
	Reason     string
}

// Plan is the outcome of auto-resolution: delete rows for groups with a
// clear winner, the rest queued for manual review. A plan is a pure
// value; nothing is deleted until Apply.
type Plan struct {
	Resolutions  []Resolution
	ManualReview []Group
}

// Options tunes auto-resolution.
type Options struct {
	// PreferredDir, when set, breaks ties in favor of files inside it.
	PreferredDir string
	// Exclude lists track ids that must never be deleted.
	Exclude map[int64]struct{}
	// BitrateTolKbps is the fuzzy config's bitrate tolerance; a quarter
	// of it is the margin a bitrate win must clear.
	BitrateTolKbps int
}

const (
	reasonBitrate  = "higher bitrate"
	reasonMetadata = "richer metadata"
	reasonDir      = "preferred directory"
)

// Resolve picks a keeper for each group using, in order: strictly higher
// bitrate, richer metadata, preferred directory. Groups with no clear
// winner go to manual review whole. Resolutions come out in group id
// order.
func Resolve(groups []Group, opts Options) Plan {
	margin := opts.BitrateTolKbps / 4

	var plan Plan
	for _, g := range groups {
		keep, reason := pickKeeper(g, margin, opts.PreferredDir)
		if keep < 0 {
			plan.ManualReview = append(plan.ManualReview, g)
			continue
		}
		for i, m := range g.Members {
			if i == keep {
				continue
			}
			if _, excluded := opts.Exclude[m.Track.ID]; excluded {
				continue
			}
			plan.Resolutions = append(plan.Resolutions, Resolution{
				GroupID:    g.ID,
				Keep:       g.Members[keep].Track,
				Delete:     m.Track,
				Similarity: m.Similarity,
				Reason:     reason,
			})
		}
	}
	return plan
}

// pickKeeper returns the index of the member to keep, or -1 for manual
// review.
func pickKeeper(g Group, bitrateMargin int, preferredDir string) (int, string) {
	if i := bestBitrate(g, bitrateMargin); i >= 0 {
		return i, reasonBitrate
	}
	if i := richestMetadata(g); i >= 0 {
		return i, reasonMetadata
	}
	if preferredDir != "" {
		if i := onlyInDir(g, preferredDir); i >= 0 {
			return i, reasonDir
		}
	}
	return -1, ""
}

// bestBitrate returns the member whose bitrate beats every other by more
// than margin, or -1.
func bestBitrate(g Group, margin int) int {
	best, second := -1, -1
	for i, m := range g.Members {
		switch {
		case best < 0 || m.Track.BitRate > g.Members[best].Track.BitRate:
			second = best
			best = i
		case second < 0 || m.Track.BitRate > g.Members[second].Track.BitRate:
			second = i
		}
	}
	if best >= 0 && g.Members[best].Track.BitRate-g.Members[second].Track.BitRate > margin {
		return best
	}
	return -1
}

// richestMetadata returns the member with strictly the most populated
// tag fields, or -1 on a tie.
func richestMetadata(g Group) int {
	best, bestCount, ties := -1, -1, 0
	for i, m := range g.Members {
		n := m.Track.MetadataFieldCount()
		switch {
		case n > bestCount:
			best, bestCount, ties = i, n, 1
		case n == bestCount:
			ties++
		}
	}
	if ties == 1 {
		return best
	}
	return -1
}

// onlyInDir returns the single member inside dir, or -1 when zero or
// several members are inside it.
func onlyInDir(g Group, dir string) int {
	found := -1
	for i, m := range g.Members {
		if underDir(m.Track.FilePath, dir) {
			if found >= 0 {
				return -1
			}
			found = i
		}
	}
	return found
}

// Resolver applies plans against the catalog.
type Resolver struct {
	store *catalog.Store
	log   *slog.Logger
}

// NewResolver returns a resolver bound to store.
func NewResolver(store *catalog.Store, log *slog.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// Apply executes a plan: each resolution's delete row is removed from
// the catalog and its file unlinked best-effort. Returns the number of
// rows deleted; a catalog failure stops the run.
func (r *Resolver) Apply(plan Plan) (int, error) {
	deleted := 0
	for _, res := range plan.Resolutions {
		if err := deleteTrackFile(r.store, r.log, res.Delete); err != nil {
			return deleted, fmt.Errorf("resolve group %d: %w", res.GroupID, err)
		}
		deleted++
	}
	return deleted, nil
}

// deleteTrackFile removes the catalog row, then unlinks the file.
// A row already gone is fine; an unlink failure is only logged.
func deleteTrackFile(store *catalog.Store, log *slog.Logger, t *catalog.Track) error {
	if err := store.Delete(t.ID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return err
	}
	removeQuiet(log, t.FilePath)
	return nil
}

func removeQuiet(log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("could not unlink file", "path", path, "err", err)
	}
}
