package httpapi

import (
	"time"

	"github.com/quentel/mp3org/internal/catalog"
	"github.com/quentel/mp3org/internal/dupes"
)

// trackJSON is the wire shape of a catalog track.
type trackJSON struct {
	ID                int64     `json:"id"`
	FilePath          string    `json:"filePath"`
	Title             *string   `json:"title"`
	Artist            *string   `json:"artist"`
	Album             *string   `json:"album"`
	Genre             *string   `json:"genre"`
	TrackNumber       *int      `json:"trackNumber"`
	Year              *int      `json:"year"`
	DurationSeconds   int       `json:"durationSeconds"`
	FileSizeBytes     int64     `json:"fileSizeBytes"`
	BitRate           int       `json:"bitRate"`
	SampleRate        int       `json:"sampleRate"`
	FileType          string    `json:"fileType"`
	LastModified      time.Time `json:"lastModified"`
	DateAdded         time.Time `json:"dateAdded"`
	FormattedDuration string    `json:"formattedDuration"`
	FormattedFileSize string    `json:"formattedFileSize"`
}

func toTrackJSON(t *catalog.Track) trackJSON {
	return trackJSON{
		ID:                t.ID,
		FilePath:          t.FilePath,
		Title:             t.Title,
		Artist:            t.Artist,
		Album:             t.Album,
		Genre:             t.Genre,
		TrackNumber:       t.TrackNumber,
		Year:              t.Year,
		DurationSeconds:   t.DurationSeconds,
		FileSizeBytes:     t.FileSizeBytes,
		BitRate:           t.BitRate,
		SampleRate:        t.SampleRate,
		FileType:          t.FileType,
		LastModified:      t.LastModified,
		DateAdded:         t.DateAdded,
		FormattedDuration: t.FormattedDuration(),
		FormattedFileSize: t.FormattedFileSize(),
	}
}

func toTrackList(tracks []*catalog.Track) []trackJSON {
	out := make([]trackJSON, len(tracks))
	for i, t := range tracks {
		out[i] = toTrackJSON(t)
	}
	return out
}

// duplicateFileJSON pairs a track with its similarity to the group's
// first member; null for the first member itself.
type duplicateFileJSON struct {
	File       trackJSON `json:"file"`
	Similarity *float64  `json:"similarity"`
}

type duplicateGroupJSON struct {
	GroupID              int                 `json:"groupId"`
	Files                []duplicateFileJSON `json:"files"`
	FileCount            int                 `json:"fileCount"`
	RepresentativeTitle  string              `json:"representativeTitle"`
	RepresentativeArtist string              `json:"representativeArtist"`
}

func toGroupJSON(g dupes.Group) duplicateGroupJSON {
	files := make([]duplicateFileJSON, len(g.Members))
	for i, m := range g.Members {
		files[i] = duplicateFileJSON{File: toTrackJSON(m.Track), Similarity: m.Similarity}
	}
	return duplicateGroupJSON{
		GroupID:              g.ID,
		Files:                files,
		FileCount:            g.FileCount(),
		RepresentativeTitle:  g.RepresentativeTitle(),
		RepresentativeArtist: g.RepresentativeArtist(),
	}
}

func toGroupList(groups []dupes.Group) []duplicateGroupJSON {
	out := make([]duplicateGroupJSON, len(groups))
	for i, g := range groups {
		out[i] = toGroupJSON(g)
	}
	return out
}

type resolutionJSON struct {
	GroupID      int       `json:"groupId"`
	FileToKeep   trackJSON `json:"fileToKeep"`
	FileToDelete trackJSON `json:"fileToDelete"`
	Similarity   *float64  `json:"similarity"`
	Reason       string    `json:"reason"`
}

type planJSON struct {
	Resolutions  []resolutionJSON     `json:"resolutions"`
	ManualReview []duplicateGroupJSON `json:"manualReview"`
}

func toPlanJSON(p dupes.Plan) planJSON {
	out := planJSON{
		Resolutions:  make([]resolutionJSON, len(p.Resolutions)),
		ManualReview: toGroupList(p.ManualReview),
	}
	for i, r := range p.Resolutions {
		out.Resolutions[i] = resolutionJSON{
			GroupID:      r.GroupID,
			FileToKeep:   toTrackJSON(r.Keep),
			FileToDelete: toTrackJSON(r.Delete),
			Similarity:   r.Similarity,
			Reason:       r.Reason,
		}
	}
	if out.ManualReview == nil {
		out.ManualReview = []duplicateGroupJSON{}
	}
	if len(out.Resolutions) == 0 {
		out.Resolutions = []resolutionJSON{}
	}
	return out
}
