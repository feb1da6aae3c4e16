package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/quentel/mp3org/internal/dupes"
)

// duplicateScanEvents streams a scan's progress as server-sent events.
// Message kinds mirror the internal stream: progress, groups, error and
// a final done.
func (s *Server) duplicateScanEvents(w http.ResponseWriter, r *http.Request) {
	ch, err := s.app.Dupes().Subscribe(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, fmt.Errorf("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				writeSSE(w, map[string]any{"kind": "done"})
				flusher.Flush()
				return
			}
			if msg := sseMessage(ev); msg != nil {
				writeSSE(w, msg)
				flusher.Flush()
			}
		}
	}
}

func sseMessage(ev dupes.Event) map[string]any {
	switch ev.Kind {
	case dupes.EventProgress:
		msg := scanStatusJSON(ev.Progress)
		msg["kind"] = "progress"
		return msg
	case dupes.EventGroups:
		return map[string]any{
			"kind":       "groups",
			"groups":     toGroupList(ev.Groups),
			"totalFound": ev.TotalFound,
		}
	case dupes.EventError:
		return map[string]any{"kind": "error", "error": ev.Err}
	default:
		// The stream closes right after the internal done event; the
		// single done message goes out at close time.
		return nil
	}
}

func writeSSE(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
