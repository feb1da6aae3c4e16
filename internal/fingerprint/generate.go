package fingerprint

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/quentel/mp3org/internal/catalog"
)

// fpcalcTimeout bounds a single fpcalc invocation.
const fpcalcTimeout = 60 * time.Second

// SessionState is the lifecycle state of a generation run.
type SessionState string

const (
	StateRunning   SessionState = "running"
	StateCompleted SessionState = "completed"
	StateError     SessionState = "error"
)

// Session reports the progress of one generation run.
type Session struct {
	ID        string
	State     SessionState
	Total     int
	Completed int
	Err       string
}

// Generator fills in missing fingerprints by running fpcalc over the
// catalog, a bounded number of files at a time.
type Generator struct {
	store   *catalog.Store
	locator *Locator
	log     *slog.Logger

	mu      sync.Mutex
	session *Session
	cancel  context.CancelFunc
}

// NewGenerator returns a generator bound to store.
func NewGenerator(store *catalog.Store, locator *Locator, log *slog.Logger) *Generator {
	return &Generator{store: store, locator: locator, log: log}
}

// Start launches a background generation run over every track missing a
// fingerprint and returns its session id. A missing fpcalc binary fails
// immediately with ErrFpcalcMissing.
func (g *Generator) Start() (string, error) {
	fpcalcPath, err := g.locator.Locate()
	if err != nil {
		return "", err
	}

	tracks, err := g.store.MissingFingerprints()
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session != nil && g.session.State == StateRunning {
		return g.session.ID, nil // one run at a time
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := &Session{
		ID:    uuid.NewString(),
		State: StateRunning,
		Total: len(tracks),
	}
	g.session = session
	g.cancel = cancel

	go g.run(ctx, fpcalcPath, tracks, session)
	return session.ID, nil
}

// Status returns a snapshot of the most recent session, or nil when no
// run has happened yet.
func (g *Generator) Status() *Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil {
		return nil
	}
	copied := *g.session
	return &copied
}

// Cancel stops the running session, if any.
func (g *Generator) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
}

// Available reports whether fpcalc can be located.
func (g *Generator) Available() bool {
	return g.locator.Available()
}

func (g *Generator) run(ctx context.Context, fpcalcPath string, tracks []*catalog.Track, session *Session) {
	sem := semaphore.NewWeighted(int64(runtime.NumCPU()))
	var wg sync.WaitGroup

	for _, track := range tracks {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(t *catalog.Track) {
			defer wg.Done()
			defer sem.Release(1)

			fp, duration, err := Compute(ctx, fpcalcPath, t.FilePath)
			if err != nil {
				// Failed files are skipped, not re-queued.
				g.log.Warn("fpcalc failed", "path", t.FilePath, "err", err)
			} else if err := g.store.SetFingerprint(t.ID, fp, duration); err != nil {
				g.log.Warn("storing fingerprint failed", "path", t.FilePath, "err", err)
			}

			g.mu.Lock()
			session.Completed++
			g.mu.Unlock()
		}(track)
	}
	wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	if ctx.Err() != nil {
		session.State = StateError
		session.Err = "cancelled"
		return
	}
	session.State = StateCompleted
}

// Compute invokes fpcalc on one file and returns the raw fingerprint and
// the duration in seconds fpcalc analyzed. Output lines look like
// DURATION=215 and FINGERPRINT=123,456,... in -raw mode.
func Compute(ctx context.Context, fpcalcPath, file string) (fp string, duration int, err error) {
	ctx, cancel := context.WithTimeout(ctx, fpcalcTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, fpcalcPath, "-raw", file)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return "", 0, fmt.Errorf("fpcalc %s: %w (%s)", file, err, strings.TrimSpace(stderr.String()))
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "DURATION="):
			val := strings.TrimPrefix(line, "DURATION=")
			// Some fpcalc builds emit fractional seconds.
			if dot := strings.IndexByte(val, '.'); dot >= 0 {
				val = val[:dot]
			}
			duration, _ = strconv.Atoi(val)
		case strings.HasPrefix(line, "FINGERPRINT="):
			fp = strings.TrimPrefix(line, "FINGERPRINT=")
		}
	}
	if fp == "" {
		return "", 0, fmt.Errorf("fpcalc %s: no FINGERPRINT in output", file)
	}
	return fp, duration, nil
}
