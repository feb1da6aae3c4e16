package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentel/mp3org/internal/catalog"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()
	dir := t.TempDir()
	cfg := &Config{
		ListenAddr:   ":0",
		DataDir:      dir,
		ProfilesPath: filepath.Join(dir, "mp3org-profiles.toml"),
		LogLevel:     "error",
	}
	a, err := New(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewWiresEverything(t *testing.T) {
	a := newTestApp(t)

	assert.NotNil(t, a.Catalog())
	assert.NotNil(t, a.Scanner())
	assert.NotNil(t, a.Dupes())
	assert.NotNil(t, a.Resolver())
	assert.NotNil(t, a.Generator())
	assert.Equal(t, "Default", a.Profiles.Active().Name)
}

func TestProfileSwitchRebuildsControllers(t *testing.T) {
	a := newTestApp(t)
	before := a.Dupes()

	p, err := a.Profiles.Create("Second", "")
	require.NoError(t, err)
	require.NoError(t, a.Profiles.Activate(p.ID))

	assert.NotSame(t, before, a.Dupes(), "controllers follow the new catalog")
	count, err := a.Catalog().Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDeleteTrackAndFile(t *testing.T) {
	a := newTestApp(t)

	path := filepath.Join(t.TempDir(), "gone.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	tr := &catalog.Track{FilePath: path, FileType: "mp3"}
	require.NoError(t, a.Catalog().Insert(tr))

	require.NoError(t, a.DeleteTrackAndFile(tr.ID))
	_, err := a.Catalog().GetByID(tr.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, a.DeleteTrackAndFile(tr.ID), catalog.ErrNotFound)
}

func TestDatabaseInfo(t *testing.T) {
	a := newTestApp(t)

	fp := "1,2,3"
	require.NoError(t, a.Catalog().Insert(&catalog.Track{FilePath: "/m/a.mp3", FileType: "mp3"}))
	tr := &catalog.Track{FilePath: "/m/b.mp3", FileType: "mp3", Fingerprint: &fp}
	require.NoError(t, a.Catalog().Insert(tr))

	info, err := a.DatabaseInfo()
	require.NoError(t, err)
	assert.Equal(t, 2, info.TrackCount)
	assert.Equal(t, 1, info.FingerprintedCount)
	assert.NotEmpty(t, info.Path)
}

func TestResolveOptionsCarriesConfigTolerance(t *testing.T) {
	a := newTestApp(t)

	opts := a.ResolveOptions("/music", []int64{4, 7})
	assert.Equal(t, "/music", opts.PreferredDir)
	assert.Equal(t, 64, opts.BitrateTolKbps)
	_, ok := opts.Exclude[4]
	assert.True(t, ok)
}
