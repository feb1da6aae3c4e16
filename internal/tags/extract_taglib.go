package tags

import (
	"strconv"
	"time"

	"go.senan.xyz/taglib"
)

// taglibTags wraps the raw tag map with lookup helpers.
type taglibTags map[string][]string

func (t taglibTags) get(key string) string {
	if vals := t[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func (t taglibTags) getInt(key string) int {
	n, _ := strconv.Atoi(t.get(key))
	return n
}

// readWithTaglib reads tags via TagLib, the fallback of last resort. It
// handles formats and encodings the pure-Go readers do not.
func readWithTaglib(path string) meta {
	rawTags, err := taglib.ReadTags(path)
	if err != nil {
		return meta{}
	}
	tags := taglibTags(rawTags)

	return meta{
		Title:       tags.get(taglib.Title),
		Artist:      tags.get(taglib.Artist),
		Album:       tags.get(taglib.Album),
		Genre:       tags.get(taglib.Genre),
		TrackNumber: parseTrackNumber(tags.get(taglib.TrackNumber)),
		Year:        parseYear(tags.get(taglib.Date)),
	}
}

// properties are the audio header fields the catalog records.
type properties struct {
	DurationSeconds int
	BitRateKbps     int
	SampleRateHz    int
}

// readProperties reads stream properties (duration, bitrate, sample rate)
// via TagLib, which covers every format we index with one call.
func readProperties(path string) (properties, error) {
	props, err := taglib.ReadProperties(path)
	if err != nil {
		return properties{}, err
	}
	return properties{
		DurationSeconds: int(props.Length / time.Second),
		BitRateKbps:     int(props.Bitrate),
		SampleRateHz:    int(props.SampleRate),
	}, nil
}
