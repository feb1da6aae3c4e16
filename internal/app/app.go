// Package app wires the process together: configuration, profiles, the
// active catalog and the controllers working on it. Construction order
// is config, then catalog (via profiles), then everything else; nothing
// here is a process global, tests build fresh Applications.
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/quentel/mp3org/internal/catalog"
	"github.com/quentel/mp3org/internal/dupes"
	"github.com/quentel/mp3org/internal/events"
	"github.com/quentel/mp3org/internal/fingerprint"
	"github.com/quentel/mp3org/internal/profile"
	"github.com/quentel/mp3org/internal/scanner"
	"github.com/quentel/mp3org/internal/watcher"
)

// Application owns every long-lived component. Controllers are rebuilt
// when the active profile (and with it the catalog) changes; accessors
// always hand out the current generation.
type Application struct {
	Config   *Config
	Log      *slog.Logger
	Bus      *events.Bus
	Profiles *profile.Manager

	locator *fingerprint.Locator

	mu        sync.RWMutex
	scanner   *scanner.Controller
	dupes     *dupes.Controller
	resolver  *dupes.Resolver
	generator *fingerprint.Generator

	watch       *watcher.Watcher
	watchCancel context.CancelFunc
}

// New builds a fully wired application.
func New(cfg *Config, log *slog.Logger) (*Application, error) {
	bus := events.NewBus()

	profiles, err := profile.Load(cfg.ProfilesPath, cfg.DataDir, bus, log)
	if err != nil {
		return nil, err
	}

	a := &Application{
		Config:   cfg,
		Log:      log,
		Bus:      bus,
		Profiles: profiles,
		locator:  &fingerprint.Locator{Override: cfg.FpcalcPath},
	}
	a.rebuild()

	bus.Subscribe(func(ev events.Event) {
		switch ev.(type) {
		case events.ProfileChanged:
			a.rebuild()
		case events.ConfigChanged, events.CatalogMutated:
			a.Dupes().Invalidate()
		}
	})

	if cfg.WatchLibrary && len(cfg.WatchDirs) > 0 {
		if err := a.startWatcher(cfg.WatchDirs); err != nil {
			log.Warn("library watcher disabled", "err", err)
		}
	}
	return a, nil
}

// rebuild points the controllers at the current profile's catalog.
func (a *Application) rebuild() {
	store := a.Profiles.Catalog()
	store.SetMutationHook(func() {
		a.Bus.Publish(events.CatalogMutated{})
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	a.scanner = scanner.New(store, a.Log)
	a.dupes = dupes.NewController(store, a.Profiles, a.Log)
	a.resolver = dupes.NewResolver(store, a.Log)
	a.generator = fingerprint.NewGenerator(store, a.locator, a.Log)
}

func (a *Application) startWatcher(dirs []string) error {
	w, err := watcher.New(a.Log, func() {
		a.Log.Debug("library change detected, dropping duplicate results")
		a.Dupes().Invalidate()
	})
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := w.Watch(dir); err != nil {
			a.Log.Warn("could not watch directory", "dir", dir, "err", err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.watch = w
	a.watchCancel = cancel
	go w.Run(ctx)
	return nil
}

// Catalog returns the active profile's catalog store.
func (a *Application) Catalog() *catalog.Store {
	return a.Profiles.Catalog()
}

// Scanner returns the current directory-scan controller.
func (a *Application) Scanner() *scanner.Controller {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.scanner
}

// Dupes returns the current duplicate-scan controller.
func (a *Application) Dupes() *dupes.Controller {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dupes
}

// Resolver returns the current auto-resolver.
func (a *Application) Resolver() *dupes.Resolver {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.resolver
}

// Generator returns the current fingerprint generator.
func (a *Application) Generator() *fingerprint.Generator {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.generator
}

// DeleteTrackAndFile removes the catalog row and unlinks the file
// best-effort.
func (a *Application) DeleteTrackAndFile(id int64) error {
	store := a.Catalog()
	track, err := store.GetByID(id)
	if err != nil {
		return err
	}
	if err := store.Delete(id); err != nil {
		return err
	}
	if err := os.Remove(track.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.Log.Warn("could not unlink file", "path", track.FilePath, "err", err)
	}
	return nil
}

// DatabaseInfo summarises the active catalog.
type DatabaseInfo struct {
	Path               string `json:"path"`
	TrackCount         int    `json:"trackCount"`
	FingerprintedCount int    `json:"fingerprintedCount"`
}

// DatabaseInfo reports the active database path and track counts.
func (a *Application) DatabaseInfo() (DatabaseInfo, error) {
	store := a.Catalog()
	count, err := store.Count()
	if err != nil {
		return DatabaseInfo{}, err
	}
	fingerprinted, err := store.FingerprintedCount()
	if err != nil {
		return DatabaseInfo{}, err
	}
	return DatabaseInfo{
		Path:               store.Path(),
		TrackCount:         count,
		FingerprintedCount: fingerprinted,
	}, nil
}

// ResolveOptions builds auto-resolver options from the active config.
func (a *Application) ResolveOptions(preferredDir string, excludeIDs []int64) dupes.Options {
	exclude := make(map[int64]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		exclude[id] = struct{}{}
	}
	return dupes.Options{
		PreferredDir:   preferredDir,
		Exclude:        exclude,
		BitrateTolKbps: a.Profiles.FuzzyConfig().BitrateToleranceKbps,
	}
}

// Close shuts down the watcher and the catalog.
func (a *Application) Close() error {
	if a.watchCancel != nil {
		a.watchCancel()
	}
	if a.watch != nil {
		a.watch.Close()
	}
	return a.Profiles.Close()
}
