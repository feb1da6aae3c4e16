package profile

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentel/mp3org/internal/catalog"
	"github.com/quentel/mp3org/internal/events"
	"github.com/quentel/mp3org/internal/fuzzy"
)

func newTestManager(t *testing.T) (*Manager, *events.Bus, string) {
	t.Helper()
	dir := t.TempDir()
	bus := events.NewBus()
	m, err := Load(filepath.Join(dir, "mp3org-profiles.toml"), dir, bus, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m, bus, dir
}

func TestFirstRunCreatesDefaultProfile(t *testing.T) {
	m, _, dir := newTestManager(t)

	profiles := m.List()
	require.Len(t, profiles, 1)
	assert.Equal(t, "Default", profiles[0].Name)
	assert.Equal(t, profiles[0].ID, m.ActiveProfileID())
	assert.Equal(t, fuzzy.DefaultConfig(), m.FuzzyConfig())
	assert.Contains(t, m.FileTypes(), "mp3")
	assert.NotNil(t, m.Catalog())

	_, err := os.Stat(filepath.Join(dir, "mp3org-profiles.toml"))
	assert.NoError(t, err)
}

func TestProfilesPersistAcrossReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mp3org-profiles.toml")
	bus := events.NewBus()
	log := slog.New(slog.DiscardHandler)

	m, err := Load(path, dir, bus, log)
	require.NoError(t, err)
	created, err := m.Create("Vinyl Rips", "needle drops")
	require.NoError(t, err)

	strict, err := fuzzy.Preset("strict")
	require.NoError(t, err)
	require.NoError(t, m.UpdateFuzzyConfig(strict))
	require.NoError(t, m.Close())

	m2, err := Load(path, dir, bus, log)
	require.NoError(t, err)
	defer m2.Close()

	require.Len(t, m2.List(), 2)
	got, err := m2.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Vinyl Rips", got.Name)
	assert.Equal(t, "needle drops", got.Description)
	assert.Equal(t, strict, m2.FuzzyConfig(), "preset survives reload bit-exactly")
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Create("Default", "")
	assert.ErrorIs(t, err, ErrProfileExists)
	_, err = m.Create("  default  ", "")
	assert.ErrorIs(t, err, ErrProfileExists, "names compare case-insensitively")
	_, err = m.Create("", "")
	assert.Error(t, err)
}

func TestUpdateProfile(t *testing.T) {
	m, _, _ := newTestManager(t)
	p, err := m.Create("Old", "")
	require.NoError(t, err)

	updated, err := m.Update(p.ID, "New", "desc", []string{".MP3", "flac", "mp3", ""})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Name)
	assert.Equal(t, []string{"mp3", "flac"}, updated.EnabledFileTypes)

	_, err = m.Update("missing", "X", "", nil)
	assert.ErrorIs(t, err, ErrProfileNotFound)
	_, err = m.Update(p.ID, "Default", "", nil)
	assert.ErrorIs(t, err, ErrProfileExists)
	// Renaming to its own name is fine.
	_, err = m.Update(p.ID, "New", "", nil)
	assert.NoError(t, err)
}

func TestDeleteProfile(t *testing.T) {
	m, _, _ := newTestManager(t)
	p, err := m.Create("Spare", "")
	require.NoError(t, err)

	assert.ErrorIs(t, m.Delete(m.ActiveProfileID()), ErrProfileActive)
	assert.ErrorIs(t, m.Delete("missing"), ErrProfileNotFound)
	require.NoError(t, m.Delete(p.ID))
	assert.Len(t, m.List(), 1)
}

func TestDuplicateProfile(t *testing.T) {
	m, _, _ := newTestManager(t)

	lenient, err := fuzzy.Preset("lenient")
	require.NoError(t, err)
	require.NoError(t, m.UpdateFuzzyConfig(lenient))

	src := m.Active()
	dup, err := m.Duplicate(src.ID, "Copy")
	require.NoError(t, err)
	assert.Equal(t, lenient, dup.Fuzzy)
	assert.Equal(t, src.EnabledFileTypes, dup.EnabledFileTypes)
	assert.NotEqual(t, src.ID, dup.ID)
	assert.NotEqual(t, src.DatabasePath, dup.DatabasePath)

	_, err = m.Duplicate(src.ID, "Default")
	assert.ErrorIs(t, err, ErrProfileExists)
	_, err = m.Duplicate("missing", "Other")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestActivateSwapsCatalog(t *testing.T) {
	m, bus, _ := newTestManager(t)

	var changed []string
	bus.Subscribe(func(ev events.Event) {
		if pc, ok := ev.(events.ProfileChanged); ok {
			changed = append(changed, pc.ProfileID)
		}
	})

	require.NoError(t, m.Catalog().Insert(&catalog.Track{FilePath: "/m/a.mp3", FileType: "mp3"}))

	other, err := m.Create("Other", "")
	require.NoError(t, err)
	require.NoError(t, m.Activate(other.ID))

	assert.Equal(t, other.ID, m.ActiveProfileID())
	assert.Equal(t, []string{other.ID}, changed)
	count, err := m.Catalog().Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count, "fresh profile sees an empty catalog")

	// Switching back finds the original data again.
	defaultID := m.List()[0].ID
	require.NoError(t, m.Activate(defaultID))
	count, err = m.Catalog().Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, m.Activate("missing"), ErrProfileNotFound)
	// Re-activating the active profile publishes nothing.
	changed = nil
	require.NoError(t, m.Activate(defaultID))
	assert.Empty(t, changed)
}

func TestFuzzyConfigUpdatePublishesAndValidates(t *testing.T) {
	m, bus, _ := newTestManager(t)

	configEvents := 0
	bus.Subscribe(func(ev events.Event) {
		if _, ok := ev.(events.ConfigChanged); ok {
			configEvents++
		}
	})

	bad := fuzzy.DefaultConfig()
	bad.TitleThreshold = 250
	assert.Error(t, m.UpdateFuzzyConfig(bad))
	assert.Equal(t, 0, configEvents)

	cfg, err := m.ApplyPreset("lenient")
	require.NoError(t, err)
	assert.Equal(t, 70, cfg.TitleThreshold)
	assert.Equal(t, cfg, m.FuzzyConfig())
	assert.Equal(t, 1, configEvents)

	_, err = m.ApplyPreset("nonsense")
	assert.ErrorIs(t, err, fuzzy.ErrUnknownPreset)
}

func TestSetFileTypes(t *testing.T) {
	m, _, _ := newTestManager(t)

	require.NoError(t, m.SetFileTypes([]string{"FLAC", ".ogg"}))
	assert.Equal(t, []string{"flac", "ogg"}, m.FileTypes())
}
