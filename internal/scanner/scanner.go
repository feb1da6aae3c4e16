// Package scanner walks directories, extracts metadata from new audio
// files and inserts them into the catalog, one session at a time with
// progress reporting and cooperative cancellation.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/quentel/mp3org/internal/catalog"
	"github.com/quentel/mp3org/internal/tags"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("scanner: session not found")

// State is a scan session's lifecycle state.
type State string

const (
	StateStarting    State = "starting"
	StateScanning    State = "scanning"
	StateReadingTags State = "reading_tags"
	StateSaving      State = "saving"
	StateCompleted   State = "completed"
	StateCancelled   State = "cancelled"
	StateError       State = "error"
)

// Progress is one progress event emitted while a session runs.
type Progress struct {
	Stage                State
	CurrentDirectory     string
	CurrentFile          string
	FilesFound           int
	FilesProcessed       int
	TotalDirectories     int
	DirectoriesProcessed int
}

// Status is a point-in-time snapshot of a session.
type Status struct {
	ID                   string
	State                State
	FilesFound           int
	FilesProcessed       int
	TracksAdded          int
	TotalDirectories     int
	DirectoriesProcessed int
	CurrentDirectory     string
	CurrentFile          string
	PercentComplete      float64
	Err                  string
	StartedAt            time.Time
}

type session struct {
	mu     sync.Mutex
	status Status
	cancel atomic.Bool
	subs   []chan Progress
}

func (s *session) snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// publish delivers a progress event to all subscribers without ever
// blocking the walker: when a buffer is full the oldest event is dropped
// so the latest state wins.
func (s *session) publish(p Progress) {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p:
			default:
			}
		}
	}
}

func (s *session) closeSubs() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}

// Controller runs scan sessions against one catalog store.
type Controller struct {
	store *catalog.Store
	log   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// New returns a scan controller.
func New(store *catalog.Store, log *slog.Logger) *Controller {
	return &Controller{
		store:    store,
		log:      log,
		sessions: make(map[string]*session),
	}
}

// Start launches a background scan of roots, admitting only files whose
// lowercased extension (without dot) is in enabledExts. It returns the
// new session's id.
func (c *Controller) Start(roots []string, enabledExts []string) (string, error) {
	known, err := c.store.AllPaths()
	if err != nil {
		return "", err
	}

	extSet := make(map[string]struct{}, len(enabledExts))
	for _, e := range enabledExts {
		extSet[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}

	sess := &session{
		status: Status{
			ID:        uuid.NewString(),
			State:     StateStarting,
			StartedAt: time.Now(),
		},
	}

	c.mu.Lock()
	c.sessions[sess.status.ID] = sess
	c.mu.Unlock()

	go c.run(sess, roots, extSet, known)
	return sess.status.ID, nil
}

// Status returns a snapshot of the session.
func (c *Controller) Status(id string) (Status, error) {
	c.mu.Lock()
	sess, ok := c.sessions[id]
	c.mu.Unlock()
	if !ok {
		return Status{}, ErrSessionNotFound
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
	return nil
}

// Subscribe attaches a progress listener to a running session. The
// returned channel closes when the session reaches a terminal state.
func (c *Controller) Subscribe(id string) (<-chan Progress, error) {
	c.mu.Lock()
	sess, ok := c.sessions[id]
	c.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	ch := make(chan Progress, 64)
	sess.mu.Lock()
	terminal := sess.status.State == StateCompleted ||
		sess.status.State == StateCancelled ||
		sess.status.State == StateError
	if !terminal {
		sess.subs = append(sess.subs, ch)
	}
	sess.mu.Unlock()
	if terminal {
		close(ch)
	}
	return ch, nil
}

// candidate is one discovered audio file.
type candidate struct {
	path string
	dir  string
}

func (c *Controller) run(sess *session, roots []string, extSet map[string]struct{}, known map[string]struct{}) {
	defer sess.closeSubs()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("scan worker panicked", "session", sess.status.ID, "panic", r)
			sess.mu.Lock()
			sess.status.State = StateError
			sess.status.Err = fmt.Sprintf("internal error: %v", r)
			sess.mu.Unlock()
		}
	}()

	setState := func(st State) {
		sess.mu.Lock()
		sess.status.State = st
		sess.mu.Unlock()
	}

	// Phase 1: discover candidates so percentages have a denominator.
	setState(StateScanning)
	candidates, dirCount := c.discover(sess, roots, extSet)

	sess.mu.Lock()
	sess.status.FilesFound = len(candidates)
	sess.status.TotalDirectories = dirCount
	sess.mu.Unlock()

	if sess.cancel.Load() {
		setState(StateCancelled)
		return
	}

	// Phase 2: extract and insert new files, one at a time.
	added := 0
	lastDir := ""
	dirsDone := 0
	for i, cand := range candidates {
		if sess.cancel.Load() {
			setState(StateCancelled)
			return
		}

		if cand.dir != lastDir {
			if lastDir != "" {
				dirsDone++
			}
			lastDir = cand.dir
		}

		if _, exists := known[cand.path]; !exists {
			setState(StateReadingTags)
			track, err := tags.Extract(cand.path)
			if err != nil {
				c.log.Warn("extraction failed, skipping", "path", cand.path, "err", err)
			} else {
				setState(StateSaving)
				switch err := c.store.Insert(track); {
				case err == nil:
					added++
				case errors.Is(err, catalog.ErrDuplicatePath):
					// Raced with another writer; already catalogued.
				default:
					c.log.Warn("insert failed, skipping", "path", cand.path, "err", err)
				}
			}
		}

		sess.mu.Lock()
		sess.status.FilesProcessed = i + 1
		sess.status.TracksAdded = added
		sess.status.CurrentDirectory = cand.dir
		sess.status.CurrentFile = filepath.Base(cand.path)
		sess.status.DirectoriesProcessed = dirsDone
		if len(candidates) > 0 {
			sess.status.PercentComplete = float64(i+1) / float64(len(candidates)) * 100
		}
		st := sess.status
		sess.mu.Unlock()

		sess.publish(Progress{
			Stage:                st.State,
			CurrentDirectory:     st.CurrentDirectory,
			CurrentFile:          st.CurrentFile,
			FilesFound:           st.FilesFound,
			FilesProcessed:       st.FilesProcessed,
			TotalDirectories:     st.TotalDirectories,
			DirectoriesProcessed: st.DirectoriesProcessed,
		})
	}

	sess.mu.Lock()
	sess.status.State = StateCompleted
	sess.status.PercentComplete = 100
	sess.status.DirectoriesProcessed = sess.status.TotalDirectories
	sess.mu.Unlock()

	c.log.Info("scan completed", "session", sess.status.ID,
		"found", len(candidates), "added", added)
}

// discover walks the roots and returns the matching files in walk order.
// Walk errors are logged and skipped; an unreadable root never fails the
// session.
func (c *Controller) discover(sess *session, roots []string, extSet map[string]struct{}) ([]candidate, int) {
	var candidates []candidate
	dirs := make(map[string]struct{})

	for _, root := range roots {
		canonical, err := catalog.CanonicalPath(root)
		if err != nil {
			c.log.Warn("skipping unreadable root", "root", root, "err", err)
			continue
		}
		walkErr := filepath.WalkDir(canonical, func(path string, d fs.DirEntry, err error) error {
			if sess.cancel.Load() {
				return filepath.SkipAll
			}
			if err != nil {
				c.log.Warn("walk error, skipping", "path", path, "err", err)
				return nil
			}
			if d.IsDir() {
				dirs[path] = struct{}{}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
			if _, ok := extSet[ext]; !ok {
				return nil
			}
			candidates = append(candidates, candidate{path: path, dir: filepath.Dir(path)})

			if len(candidates)%100 == 0 {
				sess.publish(Progress{
					Stage:            StateScanning,
					CurrentDirectory: filepath.Dir(path),
					FilesFound:       len(candidates),
				})
			}
			return nil
		})
		if walkErr != nil && !errors.Is(walkErr, filepath.SkipAll) {
			c.log.Warn("skipping unreadable root", "root", root, "err", walkErr)
		}
	}
	return candidates, len(dirs)
}

// BrowseEntry is one directory-listing row for the directory browser.
type BrowseEntry struct {
	Name  string
	Path  string
	IsDir bool
}

// Browse lists the directories and audio files directly under path.
func Browse(path string) ([]BrowseEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var out []BrowseEntry
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !e.IsDir() && !tags.IsMusicFile(e.Name()) {
			continue
		}
		out = append(out, BrowseEntry{
			Name:  e.Name(),
			Path:  filepath.Join(path, e.Name()),
			IsDir: e.IsDir(),
		})
	}
	return out, nil
}
