package tags

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"

	"github.com/quentel/mp3org/internal/catalog"
)

// meta is the decoded tag set of one file, before it is shaped into a
// catalog track.
type meta struct {
	Title       string
	Artist      string
	Album       string
	Genre       string
	TrackNumber int
	Year        int
}

// Extract reads tags and stream properties from path into a new Track.
// It never returns an error for unreadable tags: the track comes back
// with the filename as title and whatever could be determined. Only a
// failed stat is an error, since without it there is no file to catalog.
func Extract(path string) (*catalog.Track, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	t := &catalog.Track{
		FilePath:      path,
		FileType:      FileType(path),
		FileSizeBytes: info.Size(),
		LastModified:  info.ModTime(),
		DateAdded:     time.Now(),
	}

	m := readMeta(path)
	if m.Title == "" {
		m.Title = filenameTitle(path)
	}
	setIfNotEmpty(&t.Title, m.Title)
	setIfNotEmpty(&t.Artist, m.Artist)
	setIfNotEmpty(&t.Album, m.Album)
	setIfNotEmpty(&t.Genre, m.Genre)
	if m.TrackNumber > 0 {
		t.TrackNumber = &m.TrackNumber
	}
	if m.Year > 0 {
		t.Year = &m.Year
	}

	// Stream properties are best-effort; missing ones stay at zero.
	if props, err := readProperties(path); err == nil {
		t.DurationSeconds = props.DurationSeconds
		t.BitRate = props.BitRateKbps
		t.SampleRate = props.SampleRateHz
	}

	return t, nil
}

// readMeta decodes tags with dhowden/tag, falling back to format-specific
// readers when it chokes (UTF-16 ID3 frames, ffmpeg-written M4A, ...).
func readMeta(path string) meta {
	f, err := os.Open(path)
	if err != nil {
		return meta{}
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		switch strings.ToLower(filepath.Ext(path)) {
		case ExtMP3:
			return readMP3WithID3v2Fallback(path)
		default:
			return readWithTaglib(path)
		}
	}

	track, _ := m.Track()
	return meta{
		Title:       strings.TrimSpace(m.Title()),
		Artist:      strings.TrimSpace(m.Artist()),
		Album:       strings.TrimSpace(m.Album()),
		Genre:       strings.TrimSpace(m.Genre()),
		TrackNumber: track,
		Year:        m.Year(),
	}
}

// filenameTitle is the filename without its extension, the title of last
// resort.
func filenameTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func setIfNotEmpty(dst **string, val string) {
	if val != "" {
		v := val
		*dst = &v
	}
}
