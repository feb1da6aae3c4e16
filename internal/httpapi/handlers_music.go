package httpapi

import (
	"net/http"
	"os"

	"github.com/quentel/mp3org/internal/catalog"
)

func (s *Server) listMusic(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	store := s.app.Catalog()

	tracks, err := store.ListPage((page-1)*size, size, catalog.Filters{})
	if err != nil {
		s.writeError(w, err)
		return
	}
	total, err := store.Count()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tracks": toTrackList(tracks),
		"total":  total,
		"page":   page,
		"size":   size,
	})
}

func (s *Server) searchMusic(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	q := r.URL.Query()
	filters := catalog.Filters{
		Query:  q.Get("q"),
		Title:  q.Get("title"),
		Artist: q.Get("artist"),
		Album:  q.Get("album"),
	}
	store := s.app.Catalog()

	tracks, err := store.ListPage((page-1)*size, size, filters)
	if err != nil {
		s.writeError(w, err)
		return
	}
	total, err := store.CountFiltered(filters)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tracks": toTrackList(tracks),
		"total":  total,
		"page":   page,
		"size":   size,
	})
}

func (s *Server) getTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	track, err := s.app.Catalog().GetByID(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTrackJSON(track))
}

// trackUpdateJSON carries the editable metadata fields. Absent fields
// are left untouched.
type trackUpdateJSON struct {
	Title       *string `json:"title"`
	Artist      *string `json:"artist"`
	Album       *string `json:"album"`
	Genre       *string `json:"genre"`
	TrackNumber *int    `json:"trackNumber"`
	Year        *int    `json:"year"`
}

func (u trackUpdateJSON) apply(t *catalog.Track) {
	if u.Title != nil {
		t.Title = u.Title
	}
	if u.Artist != nil {
		t.Artist = u.Artist
	}
	if u.Album != nil {
		t.Album = u.Album
	}
	if u.Genre != nil {
		t.Genre = u.Genre
	}
	if u.TrackNumber != nil {
		t.TrackNumber = u.TrackNumber
	}
	if u.Year != nil {
		t.Year = u.Year
	}
}

func (s *Server) updateTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var update trackUpdateJSON
	if err := decodeBody(r, &update); err != nil {
		s.writeError(w, err)
		return
	}

	store := s.app.Catalog()
	track, err := store.GetByID(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	update.apply(track)
	if err := store.Update(track); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTrackJSON(track))
}

func (s *Server) deleteTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.app.DeleteTrackAndFile(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type bulkUpdateJSON struct {
	Tracks []struct {
		ID int64 `json:"id"`
		trackUpdateJSON
	} `json:"tracks"`
}

func (s *Server) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	var body bulkUpdateJSON
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}

	store := s.app.Catalog()
	updated := make([]*catalog.Track, 0, len(body.Tracks))
	for _, item := range body.Tracks {
		track, err := store.GetByID(item.ID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		item.apply(track)
		updated = append(updated, track)
	}
	if err := store.UpdateAll(updated); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"updated": len(updated)})
}

// streamTrack serves the raw audio with range support.
func (s *Server) streamTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	track, err := s.app.Catalog().GetByID(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	f, err := os.Open(track.FilePath)
	if err != nil {
		s.writeError(w, catalog.ErrNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.writeError(w, err)
		return
	}
	http.ServeContent(w, r, track.FilePath, info.ModTime(), f)
}
