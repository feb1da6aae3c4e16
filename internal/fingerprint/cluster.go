package fingerprint

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/quentel/mp3org/internal/catalog"
)

// Group is a set of tracks whose fingerprints matched. Similarities[k] is
// the similarity of Tracks[k] to Tracks[0]; element 0 is 1.0 by
// convention.
type Group struct {
	Tracks       []*catalog.Track
	Similarities []float64
}

// workerCount is the pair-comparison parallelism: min(20, max(2*cores, 8)).
func workerCount() int {
	n := 2 * runtime.NumCPU()
	if n < 8 {
		n = 8
	}
	if n > 20 {
		n = 20
	}
	return n
}

// Cluster groups the fingerprinted tracks whose pairwise similarity
// reaches threshold. Tracks without a parseable fingerprint of at least
// MinLength integers are skipped. The O(N^2) pair loop is parallel over
// the outer index; unions go through one mutex. ctx cancellation is
// observed between pairs.
func Cluster(ctx context.Context, tracks []*catalog.Track, threshold float64) ([]Group, error) {
	type entry struct {
		track *catalog.Track
		fp    []int32
	}

	entries := make([]entry, 0, len(tracks))
	for _, t := range tracks {
		if !t.HasFingerprint() {
			continue
		}
		fp, err := Parse(*t.Fingerprint)
		if err != nil || len(fp) < MinLength {
			continue
		}
		entries = append(entries, entry{track: t, fp: fp})
	}
	if len(entries) < 2 {
		return nil, ctx.Err()
	}

	uf := newUnionFind(len(entries))
	var ufMu sync.Mutex

	// Outer indices are handed to workers; each worker scans all j > i.
	// Unions are rare, so the mutex sees little contention.
	work := make(chan int)
	var wg sync.WaitGroup
	for range workerCount() {
		wg.Go(func() {
			for i := range work {
				for j := i + 1; j < len(entries); j++ {
					if ctx.Err() != nil {
						return
					}
					if Similarity(entries[i].fp, entries[j].fp) >= threshold {
						ufMu.Lock()
						uf.union(i, j)
						ufMu.Unlock()
					}
				}
			}
		})
	}

	for i := range entries {
		if ctx.Err() != nil {
			break
		}
		work <- i
	}
	close(work)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Bucket by root; only buckets of two or more become groups.
	buckets := make(map[int][]int)
	for i := range entries {
		root := uf.find(i)
		buckets[root] = append(buckets[root], i)
	}

	var groups []Group
	for _, members := range buckets {
		if len(members) < 2 {
			continue
		}
		// Deterministic member order: lexicographically smallest path first.
		sort.Slice(members, func(a, b int) bool {
			return entries[members[a]].track.FilePath < entries[members[b]].track.FilePath
		})

		g := Group{
			Tracks:       make([]*catalog.Track, len(members)),
			Similarities: make([]float64, len(members)),
		}
		for k, idx := range members {
			g.Tracks[k] = entries[idx].track
			if k == 0 {
				g.Similarities[k] = 1.0
			} else {
				g.Similarities[k] = Similarity(entries[members[0]].fp, entries[idx].fp)
			}
		}
		groups = append(groups, g)
	}

	// Deterministic group order for reproducible snapshots.
	sort.Slice(groups, func(a, b int) bool {
		return groups[a].Tracks[0].FilePath < groups[b].Tracks[0].FilePath
	})
	return groups, nil
}
