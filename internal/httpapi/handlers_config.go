package httpapi

import (
	"net/http"
)

func (s *Server) getFuzzyConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.app.Profiles.FuzzyConfig())
}

func (s *Server) putFuzzyConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.app.Profiles.FuzzyConfig()
	if err := decodeBody(r, &cfg); err != nil {
		s.writeError(w, err)
		return
	}
	if err := cfg.Validate(); err != nil {
		s.writeError(w, badRequest(err.Error()))
		return
	}
	if err := s.app.Profiles.UpdateFuzzyConfig(cfg); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) applyFuzzyPreset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Preset string `json:"preset"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	cfg, err := s.app.Profiles.ApplyPreset(body.Preset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) getFileTypes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"fileTypes": s.app.Profiles.FileTypes()})
}

func (s *Server) putFileTypes(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FileTypes []string `json:"fileTypes"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if len(body.FileTypes) == 0 {
		s.writeError(w, badRequest("fileTypes must not be empty"))
		return
	}
	if err := s.app.Profiles.SetFileTypes(body.FileTypes); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"fileTypes": s.app.Profiles.FileTypes()})
}

func (s *Server) databaseInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.app.DatabaseInfo()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}
