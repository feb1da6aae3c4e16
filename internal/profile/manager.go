package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	koanftoml "github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/quentel/mp3org/internal/catalog"
	"github.com/quentel/mp3org/internal/events"
	"github.com/quentel/mp3org/internal/fuzzy"
	"github.com/quentel/mp3org/internal/tags"
)

// fileSchema is the on-disk shape of the profiles TOML file.
type fileSchema struct {
	Active   string     `koanf:"active" toml:"active"`
	Profiles []*Profile `koanf:"profiles" toml:"profiles"`
}

// Manager owns the profile list, the profiles file and the catalog of
// the active profile.
type Manager struct {
	path    string
	dataDir string
	bus     *events.Bus
	log     *slog.Logger

	mu       sync.RWMutex
	profiles map[string]*Profile
	activeID string
	store    *catalog.Store
}

// Load reads the profiles file at path, creating it with a default
// profile on first run, and opens the active profile's catalog.
// Profile databases for new profiles are created under dataDir.
func Load(path, dataDir string, bus *events.Bus, log *slog.Logger) (*Manager, error) {
	m := &Manager{
		path:     path,
		dataDir:  dataDir,
		bus:      bus,
		log:      log,
		profiles: make(map[string]*Profile),
	}

	if _, err := os.Stat(path); err == nil {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), koanftoml.Parser()); err != nil {
			return nil, fmt.Errorf("loading profiles: %w", err)
		}
		var schema fileSchema
		if err := k.Unmarshal("", &schema); err != nil {
			return nil, fmt.Errorf("parsing profiles: %w", err)
		}
		for _, p := range schema.Profiles {
			m.profiles[p.ID] = p
		}
		m.activeID = schema.Active
	}

	if len(m.profiles) == 0 {
		def := &Profile{
			ID:               uuid.NewString(),
			Name:             "Default",
			DatabasePath:     filepath.Join(dataDir, "library.db"),
			EnabledFileTypes: append([]string(nil), tags.DefaultFileTypes...),
			CreatedAt:        time.Now(),
			Fuzzy:            fuzzy.DefaultConfig(),
		}
		m.profiles[def.ID] = def
		m.activeID = def.ID
		if err := m.save(); err != nil {
			return nil, err
		}
		m.log.Info("created default profile", "database", def.DatabasePath)
	}

	if _, ok := m.profiles[m.activeID]; !ok {
		// A deleted or corrupted active pointer falls back to any profile.
		for id := range m.profiles {
			m.activeID = id
			break
		}
	}

	store, err := catalog.Open(m.profiles[m.activeID].DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening catalog for profile %q: %w", m.profiles[m.activeID].Name, err)
	}
	m.store = store
	return m, nil
}

// Close closes the active catalog.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	err := m.store.Close()
	m.store = nil
	return err
}

// Catalog returns the active profile's open catalog store.
func (m *Manager) Catalog() *catalog.Store {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store
}

// ActiveProfileID implements dupes.ConfigSource.
func (m *Manager) ActiveProfileID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID
}

// FuzzyConfig implements dupes.ConfigSource.
func (m *Manager) FuzzyConfig() fuzzy.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profiles[m.activeID].Fuzzy
}

// Active returns a copy of the active profile.
func (m *Manager) Active() *Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profiles[m.activeID].clone()
}

// List returns copies of all profiles, oldest first.
func (m *Manager) List() []*Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].Name < out[b].Name
	})
	return out
}

// Get returns a copy of the profile with the given id.
func (m *Manager) Get(id string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p.clone(), nil
}

// Create adds a new profile with default settings and its own database.
func (m *Manager) Create(name, description string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkName(name, ""); err != nil {
		return nil, err
	}

	p := &Profile{
		ID:               uuid.NewString(),
		Name:             strings.TrimSpace(name),
		Description:      description,
		DatabasePath:     m.databasePath(name),
		EnabledFileTypes: append([]string(nil), tags.DefaultFileTypes...),
		CreatedAt:        time.Now(),
		Fuzzy:            fuzzy.DefaultConfig(),
	}
	m.profiles[p.ID] = p
	if err := m.save(); err != nil {
		delete(m.profiles, p.ID)
		return nil, err
	}
	return p.clone(), nil
}

// Update renames a profile and replaces its description and file-type
// filter. File-type changes affect future scans only.
func (m *Manager) Update(id, name, description string, fileTypes []string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	if err := m.checkName(name, id); err != nil {
		return nil, err
	}

	p.Name = strings.TrimSpace(name)
	p.Description = description
	if fileTypes != nil {
		p.EnabledFileTypes = normalizeFileTypes(fileTypes)
	}
	if err := m.save(); err != nil {
		return nil, err
	}
	return p.clone(), nil
}

// Delete removes a profile. The active profile cannot be deleted; the
// profile's database file is left on disk.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrProfileNotFound
	}
	if id == m.activeID {
		return ErrProfileActive
	}
	delete(m.profiles, id)
	if err := m.save(); err != nil {
		m.profiles[id] = p
		return err
	}
	return nil
}

// Duplicate copies a profile's settings into a new profile with a fresh
// empty database.
func (m *Manager) Duplicate(id, newName string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	if err := m.checkName(newName, ""); err != nil {
		return nil, err
	}

	p := src.clone()
	p.ID = uuid.NewString()
	p.Name = strings.TrimSpace(newName)
	p.DatabasePath = m.databasePath(newName)
	p.CreatedAt = time.Now()
	p.LastUsedAt = time.Time{}
	m.profiles[p.ID] = p
	if err := m.save(); err != nil {
		delete(m.profiles, p.ID)
		return nil, err
	}
	return p.clone(), nil
}

// Activate switches the active profile: the current catalog closes, the
// new profile's opens, and ProfileChanged is published. On failure the
// previous profile stays active.
func (m *Manager) Activate(id string) error {
	m.mu.Lock()
	p, ok := m.profiles[id]
	if !ok {
		m.mu.Unlock()
		return ErrProfileNotFound
	}
	if id == m.activeID {
		m.mu.Unlock()
		return nil
	}

	prevID, prevStore := m.activeID, m.store
	if prevStore != nil {
		if err := prevStore.Close(); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("closing catalog: %w", err)
		}
	}

	store, err := catalog.Open(p.DatabasePath)
	if err != nil {
		// Reopen the previous catalog so the process stays usable.
		if prev, reopenErr := catalog.Open(m.profiles[prevID].DatabasePath); reopenErr == nil {
			m.store = prev
		}
		m.mu.Unlock()
		return fmt.Errorf("opening catalog for profile %q: %w", p.Name, err)
	}

	m.store = store
	m.activeID = id
	p.LastUsedAt = time.Now()
	saveErr := m.save()
	m.mu.Unlock()

	if saveErr != nil {
		m.log.Warn("could not persist profile switch", "err", saveErr)
	}
	m.bus.Publish(events.ProfileChanged{ProfileID: id})
	return nil
}

// UpdateFuzzyConfig validates and stores a new fuzzy configuration on
// the active profile, then publishes ConfigChanged.
func (m *Manager) UpdateFuzzyConfig(cfg fuzzy.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.profiles[m.activeID].Fuzzy = cfg
	err := m.save()
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.bus.Publish(events.ConfigChanged{})
	return nil
}

// ApplyPreset replaces the active fuzzy configuration with a named
// preset and returns the resulting config.
func (m *Manager) ApplyPreset(name string) (fuzzy.Config, error) {
	cfg, err := fuzzy.Preset(name)
	if err != nil {
		return fuzzy.Config{}, err
	}
	if err := m.UpdateFuzzyConfig(cfg); err != nil {
		return fuzzy.Config{}, err
	}
	return cfg, nil
}

// FileTypes returns the active profile's enabled file types.
func (m *Manager) FileTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.profiles[m.activeID].EnabledFileTypes...)
}

// SetFileTypes replaces the active profile's file-type filter. Future
// scans use it; already-catalogued tracks are untouched.
func (m *Manager) SetFileTypes(types []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[m.activeID].EnabledFileTypes = normalizeFileTypes(types)
	return m.save()
}

// checkName rejects empty and duplicate names; selfID exempts the
// profile being renamed.
func (m *Manager) checkName(name, selfID string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("profile: name must not be empty")
	}
	for id, p := range m.profiles {
		if id != selfID && sameName(p.Name, name) {
			return ErrProfileExists
		}
	}
	return nil
}

// databasePath derives a fresh database path under dataDir from a
// profile name.
func (m *Manager) databasePath(name string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ', r == '-', r == '_':
			return '-'
		}
		return -1
	}, name)
	if slug == "" {
		slug = "profile"
	}
	path := filepath.Join(m.dataDir, slug+".db")
	for _, p := range m.profiles {
		if p.DatabasePath == path {
			return filepath.Join(m.dataDir, slug+"-"+uuid.NewString()[:8]+".db")
		}
	}
	return path
}

func normalizeFileTypes(types []string) []string {
	out := make([]string, 0, len(types))
	seen := make(map[string]struct{})
	for _, t := range types {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "."))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// save writes the profiles file. Callers hold m.mu.
func (m *Manager) save() error {
	schema := fileSchema{Active: m.activeID}
	for _, p := range m.profiles {
		schema.Profiles = append(schema.Profiles, p)
	}
	sort.Slice(schema.Profiles, func(a, b int) bool {
		return schema.Profiles[a].CreatedAt.Before(schema.Profiles[b].CreatedAt)
	})

	data, err := gotoml.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encoding profiles: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}
