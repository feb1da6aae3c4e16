package tags

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/require"
)

// createTestMP3 writes a minimal MP3 frame with optional ID3v2 tags.
func createTestMP3(t *testing.T, dir, name string, write func(tag *id3v2.Tag)) string {
	t.Helper()
	path := filepath.Join(dir, name)

	// Minimal MPEG1 Layer3 frame header (128kbps, 44100Hz, stereo).
	frame := make([]byte, 417)
	frame[0] = 0xff
	frame[1] = 0xfb
	frame[2] = 0x90
	require.NoError(t, os.WriteFile(path, frame, 0o600))

	if write != nil {
		id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
		require.NoError(t, err)
		write(id3tag)
		require.NoError(t, id3tag.Save())
		require.NoError(t, id3tag.Close())
	}
	return path
}

func TestExtractTaggedMP3(t *testing.T) {
	dir := t.TempDir()
	path := createTestMP3(t, dir, "song.mp3", func(id3tag *id3v2.Tag) {
		id3tag.SetTitle("Come Together")
		id3tag.SetArtist("The Beatles")
		id3tag.SetAlbum("Abbey Road")
		id3tag.SetGenre("Rock")
		id3tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, "1/17")
		id3tag.AddTextFrame("TYER", id3v2.EncodingUTF8, "1969")
	})

	track, err := Extract(path)
	require.NoError(t, err)

	require.Equal(t, path, track.FilePath)
	require.Equal(t, "mp3", track.FileType)
	require.NotZero(t, track.FileSizeBytes)
	require.False(t, track.LastModified.IsZero())

	require.NotNil(t, track.Title)
	require.Equal(t, "Come Together", *track.Title)
	require.NotNil(t, track.Artist)
	require.Equal(t, "The Beatles", *track.Artist)
	require.NotNil(t, track.Album)
	require.Equal(t, "Abbey Road", *track.Album)
	// "1/17" takes the part before the slash.
	require.NotNil(t, track.TrackNumber)
	require.Equal(t, 1, *track.TrackNumber)
}

func TestExtractUntaggedFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	path := createTestMP3(t, dir, "My Great Song.mp3", nil)

	track, err := Extract(path)
	require.NoError(t, err)

	require.NotNil(t, track.Title)
	require.Equal(t, "My Great Song", *track.Title)
	require.Nil(t, track.Artist)
	require.Nil(t, track.Album)
	require.Equal(t, "mp3", track.FileType)
}

func TestExtractGarbageFileStillReturnsTrack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.flac")
	require.NoError(t, os.WriteFile(path, []byte("not audio at all"), 0o600))

	track, err := Extract(path)
	require.NoError(t, err)
	require.Equal(t, "broken", *track.Title)
	require.Equal(t, "flac", track.FileType)
	require.Equal(t, int64(16), track.FileSizeBytes)
	require.Zero(t, track.DurationSeconds)
	require.Zero(t, track.BitRate)
}

func TestExtractMissingFile(t *testing.T) {
	_, err := Extract(filepath.Join(t.TempDir(), "nope.mp3"))
	require.Error(t, err)
}

func TestParseTrackNumber(t *testing.T) {
	cases := map[string]int{
		"":      0,
		"5":     5,
		"5/10":  5,
		" 3 ":   3,
		"3/":    3,
		"a/b":   0,
		"12/12": 12,
	}
	for in, want := range cases {
		if got := parseTrackNumber(in); got != want {
			t.Errorf("parseTrackNumber(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseYear(t *testing.T) {
	cases := map[string]int{
		"":           0,
		"1994":       1994,
		"1994-06-21": 1994,
		"junk":       0,
	}
	for in, want := range cases {
		if got := parseYear(in); got != want {
			t.Errorf("parseYear(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestIsMusicFile(t *testing.T) {
	require.True(t, IsMusicFile("/a/b.mp3"))
	require.True(t, IsMusicFile("/a/B.FLAC"))
	require.False(t, IsMusicFile("/a/b.txt"))
	require.False(t, IsMusicFile("/a/b"))
}
