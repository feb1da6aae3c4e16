package httpapi

import (
	"net/http"

	"github.com/quentel/mp3org/internal/fingerprint"
)

func (s *Server) generateFingerprints(w http.ResponseWriter, r *http.Request) {
	id, err := s.app.Generator().Start()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"sessionId": id})
}

func (s *Server) fingerprintStatus(w http.ResponseWriter, r *http.Request) {
	gen := s.app.Generator()
	resp := map[string]any{
		"fpcalcAvailable": gen.Available(),
	}
	if session := gen.Status(); session != nil {
		resp["session"] = fingerprintSessionJSON(session)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func fingerprintSessionJSON(session *fingerprint.Session) map[string]any {
	return map[string]any{
		"sessionId": session.ID,
		"state":     string(session.State),
		"total":     session.Total,
		"completed": session.Completed,
		"error":     session.Err,
	}
}
