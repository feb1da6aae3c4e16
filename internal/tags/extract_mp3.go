package tags

import (
	"github.com/bogem/id3v2/v2"
)

// readMP3WithID3v2Fallback reads MP3 metadata using only the id3v2 library.
// Used when dhowden/tag fails (e.g. on some UTF-16 encoded tags).
func readMP3WithID3v2Fallback(path string) meta {
	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return readWithTaglib(path)
	}
	defer id3tag.Close()

	year := 0
	if s := id3tag.Year(); s != "" {
		year = parseYear(s)
	}
	if year == 0 {
		year = parseYear(getID3TextFrame(id3tag, "TDRC"))
	}

	return meta{
		Title:       id3tag.Title(),
		Artist:      id3tag.Artist(),
		Album:       id3tag.Album(),
		Genre:       id3tag.Genre(),
		TrackNumber: parseTrackNumber(getID3TextFrame(id3tag, "TRCK")),
		Year:        year,
	}
}

// getID3TextFrame reads a text frame value from an ID3v2 tag.
func getID3TextFrame(id3tag *id3v2.Tag, frameID string) string {
	frames := id3tag.GetFrames(frameID)
	if len(frames) == 0 {
		return ""
	}
	if tf, ok := frames[0].(id3v2.TextFrame); ok {
		return tf.Text
	}
	return ""
}
