package httpapi

import (
	"net/http"
	"os"

	"github.com/quentel/mp3org/internal/scanner"
)

func (s *Server) startScan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Directories []string `json:"directories"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if len(body.Directories) == 0 {
		s.writeError(w, badRequest("directories must not be empty"))
		return
	}

	id, err := s.app.Scanner().Start(body.Directories, s.app.Profiles.FileTypes())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"sessionId": id})
}

func scanStatusToJSON(st scanner.Status) map[string]any {
	return map[string]any{
		"sessionId":            st.ID,
		"state":                string(st.State),
		"filesFound":           st.FilesFound,
		"filesProcessed":       st.FilesProcessed,
		"tracksAdded":          st.TracksAdded,
		"totalDirectories":     st.TotalDirectories,
		"directoriesProcessed": st.DirectoriesProcessed,
		"currentDirectory":     st.CurrentDirectory,
		"currentFile":          st.CurrentFile,
		"percentComplete":      st.PercentComplete,
		"error":                st.Err,
	}
}

func (s *Server) scanStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.Scanner().Status(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, scanStatusToJSON(st))
}

func (s *Server) cancelScan(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Scanner().Cancel(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) browseDirectory(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			s.writeError(w, err)
			return
		}
		path = home
	}

	entries, err := scanner.Browse(path)
	if err != nil {
		s.writeError(w, badRequest("cannot browse "+path))
		return
	}
	out := make([]map[string]any, len(entries))
	for i, e := range entries {
		out[i] = map[string]any{
			"name":  e.Name,
			"path":  e.Path,
			"isDir": e.IsDir,
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"path": path, "entries": out})
}

func (s *Server) createDirectory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if body.Path == "" {
		s.writeError(w, badRequest("path must not be empty"))
		return
	}
	if err := os.MkdirAll(body.Path, 0o755); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"path": body.Path})
}
