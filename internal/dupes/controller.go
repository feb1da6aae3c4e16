package dupes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/quentel/mp3org/internal/catalog"
	"github.com/quentel/mp3org/internal/fingerprint"
	"github.com/quentel/mp3org/internal/fuzzy"
)

var (
	// ErrSessionNotFound is returned for unknown scan session ids.
	ErrSessionNotFound = errors.New("dupes: session not found")
	// ErrGroupNotFound is returned when a group id is not in the cached
	// results.
	ErrGroupNotFound = errors.New("dupes: group not found")
)

// ScanState is a duplicate-scan session's lifecycle state.
type ScanState string

const (
	ScanRunning   ScanState = "running"
	ScanCompleted ScanState = "completed"
	ScanCancelled ScanState = "cancelled"
	ScanError     ScanState = "error"
)

// ScanStatus is a point-in-time snapshot of a scan session.
type ScanStatus struct {
	ID              string
	State           ScanState
	TracksScanned   int
	GroupsFound     int
	PercentComplete float64
	Err             string
}

// EventKind discriminates stream events.
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventGroups   EventKind = "groups"
	EventError    EventKind = "error"
	EventDone     EventKind = "done"
)

// Event is one message on a scan's progress stream.
type Event struct {
	Kind       EventKind
	Progress   ScanStatus // EventProgress
	Groups     []Group    // EventGroups
	TotalFound int        // EventGroups
	Err        string     // EventError
}

// ConfigSource supplies the active profile and fuzzy configuration; the
// pair keys the result cache.
type ConfigSource interface {
	ActiveProfileID() string
	FuzzyConfig() fuzzy.Config
}

type scanSession struct {
	mu       sync.Mutex
	status   ScanStatus
	cancelCh context.CancelFunc
	cancel   atomic.Bool
	subs     []chan Event
}

func (s *scanSession) snapshot() ScanStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// publish sends ev to every subscriber. Progress events are coalesced
// when a buffer is full (the subscriber keeps an older one); group and
// terminal events are never dropped, so a subscriber too slow to take
// one is unsubscribed instead of blocking the scan.
func (s *scanSession) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.subs[:0]
	for _, ch := range s.subs {
		select {
		case ch <- ev:
			kept = append(kept, ch)
		default:
			if ev.Kind == EventProgress {
				kept = append(kept, ch)
			} else {
				close(ch)
			}
		}
	}
	s.subs = kept
}

func (s *scanSession) closeSubs() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}

// Controller runs duplicate scans and serves their cached results.
type Controller struct {
	store *catalog.Store
	cfg   ConfigSource
	log   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*scanSession

	// cached holds completed results keyed by profile id + config
	// fingerprint. Copy-on-write: readers Load without locking, writers
	// replace the whole map under cacheMu.
	cacheMu sync.Mutex
	cached  atomic.Value // map[string][]Group
}

// NewController returns a scan controller over store.
func NewController(store *catalog.Store, cfg ConfigSource, log *slog.Logger) *Controller {
	c := &Controller{
		store:    store,
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*scanSession),
	}
	c.cached.Store(map[string][]Group{})
	return c
}

func (c *Controller) activeKey() string {
	return c.cfg.ActiveProfileID() + "|" + c.cfg.FuzzyConfig().Fingerprint()
}

func (c *Controller) cacheMap() map[string][]Group {
	m, _ := c.cached.Load().(map[string][]Group)
	return m
}

func (c *Controller) storeCache(key string, groups []Group) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	next := make(map[string][]Group, len(c.cacheMap())+1)
	maps.Copy(next, c.cacheMap())
	next[key] = groups
	c.cached.Store(next)
}

// Invalidate purges all cached results. Wired to profile switches,
// config changes and catalog mutations.
func (c *Controller) Invalidate() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cached.Store(map[string][]Group{})
}

// Refresh is the explicit cache purge exposed over HTTP.
func (c *Controller) Refresh() {
	c.Invalidate()
}

// StartScan launches a background duplicate scan and returns its session
// id. A scan already running returns the running session's id.
func (c *Controller) StartScan() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, sess := range c.sessions {
		if sess.snapshot().State == ScanRunning {
			return id, nil
		}
	}

	// Results computed under the old config must not satisfy this scan.
	c.Invalidate()

	ctx, cancel := context.WithCancel(context.Background())
	sess := &scanSession{
		status:   ScanStatus{ID: uuid.NewString(), State: ScanRunning},
		cancelCh: cancel,
	}
	c.sessions[sess.status.ID] = sess

	key := c.activeKey()
	matcher := fuzzy.NewMatcher(c.cfg.FuzzyConfig())
	go c.runScan(ctx, sess, key, matcher)
	return sess.status.ID, nil
}

// Status returns a snapshot of the session.
func (c *Controller) Status(id string) (ScanStatus, error) {
	c.mu.Lock()
	sess, ok := c.sessions[id]
	c.mu.Unlock()
	if !ok {
		return ScanStatus{}, ErrSessionNotFound
	}
	return sess.snapshot(), nil
}

// Cancel requests cooperative cancellation of the session.
func (c *Controller) Cancel(id string) error {
	c.mu.Lock()
	sess, ok := c.sessions[id]
	c.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.cancel.Store(true)
	sess.cancelCh()
	return nil
}

// Subscribe attaches an event listener to a session. The channel closes
// when the session reaches a terminal state.
func (c *Controller) Subscribe(id string) (<-chan Event, error) {
	c.mu.Lock()
	sess, ok := c.sessions[id]
	c.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	ch := make(chan Event, 64)
	sess.mu.Lock()
	terminal := sess.status.State != ScanRunning
	if !terminal {
		sess.subs = append(sess.subs, ch)
	}
	sess.mu.Unlock()
	if terminal {
		close(ch)
	}
	return ch, nil
}

// pairWorkers is the fuzzy pair-comparison parallelism.
func pairWorkers() int {
	n := 2 * runtime.NumCPU()
	if n < 8 {
		n = 8
	}
	if n > 20 {
		n = 20
	}
	return n
}

// pairMatch is a fuzzy hit sent from a comparison worker to the
// collector. j < 0 marks an outer index as finished, for progress.
type pairMatch struct {
	i, j int
}

func (c *Controller) runScan(ctx context.Context, sess *scanSession, key string, matcher *fuzzy.Matcher) {
	defer sess.closeSubs()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("duplicate scan panicked", "err", r)
			c.finishError(sess, fmt.Sprintf("internal error: %v", r))
		}
	}()

	// Single logical snapshot: inserts after this point are ignored
	// until the next scan.
	tracks, err := c.store.ListAll()
	if err != nil {
		c.finishError(sess, err.Error())
		return
	}
	c.setProgress(sess, func(st *ScanStatus) {
		st.TracksScanned = len(tracks)
		st.PercentComplete = 5
	})

	// Stage 1: cluster the fingerprinted subset.
	fpGroups, err := fingerprint.Cluster(ctx, tracks, fingerprint.DefaultThreshold)
	if err != nil || sess.cancel.Load() {
		c.finishCancelled(sess)
		return
	}
	c.setProgress(sess, func(st *ScanStatus) { st.PercentComplete = 30 })

	// Stage 2: fuzzy comparison over all pairs, merged with the
	// fingerprint clusters through one union-find.
	byID := make(map[int64]int, len(tracks))
	for i, t := range tracks {
		byID[t.ID] = i
	}
	sets := newMergeSets(len(tracks))
	for _, g := range fpGroups {
		first := byID[g.Tracks[0].ID]
		for _, t := range g.Tracks[1:] {
			sets.union(first, byID[t.ID])
		}
	}

	matches := make(chan pairMatch, 256)
	outer := make(chan int)
	var wg sync.WaitGroup
	for range pairWorkers() {
		wg.Go(func() {
			for i := range outer {
				for j := i + 1; j < len(tracks); j++ {
					if ctx.Err() != nil {
						return
					}
					if matcher.IsDuplicate(tracks[i], tracks[j]) {
						matches <- pairMatch{i: i, j: j}
					}
				}
				matches <- pairMatch{i: i, j: -1}
			}
		})
	}

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		finished := 0
		for m := range matches {
			if m.j < 0 {
				finished++
				c.setProgress(sess, func(st *ScanStatus) {
					st.PercentComplete = 30 + 65*float64(finished)/float64(max(len(tracks), 1))
				})
				continue
			}
			sets.union(m.i, m.j)
		}
	}()

	for i := range tracks {
		if sess.cancel.Load() || ctx.Err() != nil {
			break
		}
		outer <- i
	}
	close(outer)
	wg.Wait()
	close(matches)
	<-collectorDone

	if sess.cancel.Load() || ctx.Err() != nil {
		c.finishCancelled(sess)
		return
	}

	// Stage 3: finalize, emit progressively, cache.
	groups := c.finalize(sess, tracks, sets, matcher)
	c.storeCache(key, groups)

	sess.mu.Lock()
	sess.status.State = ScanCompleted
	sess.status.GroupsFound = len(groups)
	sess.status.PercentComplete = 100
	sess.mu.Unlock()
	sess.publish(Event{Kind: EventDone})
	c.log.Info("duplicate scan completed", "session", sess.status.ID,
		"tracks", len(tracks), "groups", len(groups))
}

// finalize buckets the merged sets into groups with dense ids and
// deterministic member order, emitting each group as it is built.
func (c *Controller) finalize(sess *scanSession, tracks []*catalog.Track, sets *mergeSets, matcher *fuzzy.Matcher) []Group {
	buckets := make(map[int][]int)
	for i := range tracks {
		root := sets.find(i)
		buckets[root] = append(buckets[root], i)
	}

	var members [][]int
	for _, idxs := range buckets {
		if len(idxs) < 2 {
			continue
		}
		sort.Slice(idxs, func(a, b int) bool {
			return tracks[idxs[a]].FilePath < tracks[idxs[b]].FilePath
		})
		members = append(members, idxs)
	}
	sort.Slice(members, func(a, b int) bool {
		return tracks[members[a][0]].FilePath < tracks[members[b][0]].FilePath
	})

	groups := make([]Group, 0, len(members))
	for gi, idxs := range members {
		g := Group{ID: gi + 1, Members: make([]Member, len(idxs))}
		rep := tracks[idxs[0]]
		repFP := parsedFingerprint(rep)
		for k, idx := range idxs {
			m := Member{Track: tracks[idx]}
			if k > 0 {
				sim := memberSimilarity(rep, repFP, tracks[idx], matcher)
				m.Similarity = &sim
			}
			g.Members[k] = m
		}
		groups = append(groups, g)

		sess.mu.Lock()
		sess.status.GroupsFound = len(groups)
		sess.mu.Unlock()
		sess.publish(Event{Kind: EventGroups, Groups: []Group{g}, TotalFound: len(groups)})
	}
	return groups
}

func parsedFingerprint(t *catalog.Track) []int32 {
	if !t.HasFingerprint() {
		return nil
	}
	fp, err := fingerprint.Parse(*t.Fingerprint)
	if err != nil || len(fp) < fingerprint.MinLength {
		return nil
	}
	return fp
}

// memberSimilarity measures t against the group representative:
// fingerprint-derived when both are fingerprinted, else the mean of the
// fuzzy field percentages, both on a 0..1 scale.
func memberSimilarity(rep *catalog.Track, repFP []int32, t *catalog.Track, matcher *fuzzy.Matcher) float64 {
	if repFP != nil {
		if fp := parsedFingerprint(t); fp != nil {
			return fingerprint.Similarity(repFP, fp)
		}
	}
	r := matcher.Compare(rep, t)
	return (r.TitlePercent + r.ArtistPercent + r.AlbumPercent) / 3 / 100
}

func (c *Controller) setProgress(sess *scanSession, update func(*ScanStatus)) {
	sess.mu.Lock()
	update(&sess.status)
	st := sess.status
	sess.mu.Unlock()
	sess.publish(Event{Kind: EventProgress, Progress: st})
}

func (c *Controller) finishCancelled(sess *scanSession) {
	sess.mu.Lock()
	sess.status.State = ScanCancelled
	sess.mu.Unlock()
	sess.publish(Event{Kind: EventDone})
}

func (c *Controller) finishError(sess *scanSession, msg string) {
	sess.mu.Lock()
	sess.status.State = ScanError
	sess.status.Err = msg
	sess.mu.Unlock()
	sess.publish(Event{Kind: EventError, Err: msg})
}

// Groups returns one page of cached results for the active profile and
// config; page is 1-based. An empty cache yields an empty page.
func (c *Controller) Groups(page, size int) []Group {
	groups := c.cacheMap()[c.activeKey()]
	if page < 1 || size < 1 {
		return nil
	}
	start := (page - 1) * size
	if start >= len(groups) {
		return nil
	}
	end := min(start+size, len(groups))
	return groups[start:end]
}

// GroupCount returns the number of cached groups.
func (c *Controller) GroupCount() int {
	return len(c.cacheMap()[c.activeKey()])
}

// Group returns the cached group with the given id.
func (c *Controller) Group(id int) (Group, error) {
	for _, g := range c.cacheMap()[c.activeKey()] {
		if g.ID == id {
			return g, nil
		}
	}
	return Group{}, ErrGroupNotFound
}

// CompareResult is the on-demand comparison of two tracks.
type CompareResult struct {
	File1      *catalog.Track
	File2      *catalog.Track
	Similarity float64
	Breakdown  string
}

// Compare runs a one-off fuzzy (and, when possible, fingerprint)
// comparison of two tracks by id.
func (c *Controller) Compare(id1, id2 int64) (CompareResult, error) {
	a, err := c.store.GetByID(id1)
	if err != nil {
		return CompareResult{}, err
	}
	b, err := c.store.GetByID(id2)
	if err != nil {
		return CompareResult{}, err
	}

	cfg := c.cfg.FuzzyConfig()
	matcher := fuzzy.NewMatcher(cfg)
	r := matcher.Compare(a, b)
	breakdown := r.Breakdown(a, b, cfg)

	res := CompareResult{
		File1:      a,
		File2:      b,
		Similarity: (r.TitlePercent + r.ArtistPercent + r.AlbumPercent) / 3 / 100,
		Breakdown:  breakdown,
	}
	if fpA, fpB := parsedFingerprint(a), parsedFingerprint(b); fpA != nil && fpB != nil {
		res.Similarity = fingerprint.Similarity(fpA, fpB)
		res.Breakdown += "\n" + fingerprint.CompareBreakdown(fpA, fpB, fingerprint.DefaultThreshold)
	}
	return res, nil
}

// KeepFile deletes every member of the group except keepID, removing the
// rows from the catalog and unlinking the files best-effort. Returns the
// number of rows deleted.
func (c *Controller) KeepFile(groupID int, keepID int64) (int, error) {
	g, err := c.Group(groupID)
	if err != nil {
		return 0, err
	}

	found := false
	var doomed []*catalog.Track
	for _, m := range g.Members {
		if m.Track.ID == keepID {
			found = true
			continue
		}
		doomed = append(doomed, m.Track)
	}
	if !found {
		return 0, catalog.ErrNotFound
	}

	deleted := 0
	for _, t := range doomed {
		if err := deleteTrackFile(c.store, c.log, t); err != nil {
			return deleted, err
		}
		deleted++
	}
	c.Invalidate()
	return deleted, nil
}
