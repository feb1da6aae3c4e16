package fingerprint

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentel/mp3org/internal/catalog"
)

// writeFakeFpcalc creates a shell script that mimics fpcalc -raw output.
func writeFakeFpcalc(t *testing.T, output string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fpcalc")
	script := "#!/bin/sh\ncat <<'OUT'\n" + output + "\nOUT\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestCompute(t *testing.T) {
	fpcalc := writeFakeFpcalc(t, "DURATION=215\nFINGERPRINT=1,2,3,4,5,6,7,8,9,10,11,12")

	fp, duration, err := Compute(context.Background(), fpcalc, "/any/file.mp3")
	require.NoError(t, err)
	assert.Equal(t, "1,2,3,4,5,6,7,8,9,10,11,12", fp)
	assert.Equal(t, 215, duration)
}

func TestComputeFractionalDuration(t *testing.T) {
	fpcalc := writeFakeFpcalc(t, "DURATION=215.73\nFINGERPRINT=1,2,3")

	_, duration, err := Compute(context.Background(), fpcalc, "/any/file.mp3")
	require.NoError(t, err)
	assert.Equal(t, 215, duration)
}

func TestComputeNoFingerprint(t *testing.T) {
	fpcalc := writeFakeFpcalc(t, "DURATION=215")

	_, _, err := Compute(context.Background(), fpcalc, "/any/file.mp3")
	assert.Error(t, err)
}

func TestLocatorOverride(t *testing.T) {
	fpcalc := writeFakeFpcalc(t, "FINGERPRINT=1")

	l := &Locator{Override: fpcalc}
	path, err := l.Locate()
	require.NoError(t, err)
	assert.Equal(t, fpcalc, path)
	assert.True(t, l.Available())

	l = &Locator{Override: filepath.Join(t.TempDir(), "missing")}
	_, err = l.Locate()
	assert.ErrorIs(t, err, ErrFpcalcMissing)
	assert.False(t, l.Available())
}

func TestGeneratorFillsMissingFingerprints(t *testing.T) {
	store, err := catalog.OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	for _, path := range []string{"/m/a.mp3", "/m/b.mp3"} {
		require.NoError(t, store.Insert(&catalog.Track{FilePath: path, FileType: "mp3"}))
	}

	fpcalc := writeFakeFpcalc(t, "DURATION=120\nFINGERPRINT=1,2,3,4,5,6,7,8,9,10")
	gen := NewGenerator(store, &Locator{Override: fpcalc}, slog.New(slog.DiscardHandler))

	id, err := gen.Start()
	require.NoError(t, err)
	require.NotEmpty(t, id)

	deadline := time.After(10 * time.Second)
	for {
		st := gen.Status()
		require.NotNil(t, st)
		if st.State != StateRunning {
			assert.Equal(t, StateCompleted, st.State)
			assert.Equal(t, 2, st.Total)
			assert.Equal(t, 2, st.Completed)
			break
		}
		select {
		case <-deadline:
			t.Fatal("generation did not finish")
		case <-time.After(10 * time.Millisecond):
		}
	}

	missing, err := store.MissingFingerprints()
	require.NoError(t, err)
	assert.Empty(t, missing)

	track, err := store.GetByPath("/m/a.mp3")
	require.NoError(t, err)
	require.NotNil(t, track.Fingerprint)
	assert.Equal(t, "1,2,3,4,5,6,7,8,9,10", *track.Fingerprint)
	require.NotNil(t, track.FingerprintDuration)
	assert.Equal(t, 120, *track.FingerprintDuration)
}

func TestGeneratorMissingBinary(t *testing.T) {
	store, err := catalog.OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	gen := NewGenerator(store, &Locator{Override: filepath.Join(t.TempDir(), "nope")}, slog.New(slog.DiscardHandler))
	_, err = gen.Start()
	assert.ErrorIs(t, err, ErrFpcalcMissing)
}
