// Package httpapi is the HTTP/JSON adapter over the application: thin
// handlers, camelCase wire shapes and an SSE stream for duplicate-scan
// progress.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/quentel/mp3org/internal/app"
	"github.com/quentel/mp3org/internal/catalog"
	"github.com/quentel/mp3org/internal/dupes"
	"github.com/quentel/mp3org/internal/fingerprint"
	"github.com/quentel/mp3org/internal/fuzzy"
	"github.com/quentel/mp3org/internal/profile"
	"github.com/quentel/mp3org/internal/scanner"
)

// Server handles the REST API.
type Server struct {
	app *app.Application
	log *slog.Logger
}

// New returns an HTTP server over the application.
func New(a *app.Application, log *slog.Logger) *Server {
	return &Server{app: a, log: log}
}

// Handler builds the full route table wrapped in CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/music", s.listMusic)
	mux.HandleFunc("GET /api/v1/music/search", s.searchMusic)
	mux.HandleFunc("GET /api/v1/music/{id}", s.getTrack)
	mux.HandleFunc("PUT /api/v1/music/{id}", s.updateTrack)
	mux.HandleFunc("DELETE /api/v1/music/{id}", s.deleteTrack)
	mux.HandleFunc("PUT /api/v1/music/bulk", s.bulkUpdate)
	mux.HandleFunc("GET /api/v1/music/{id}/stream", s.streamTrack)

	mux.HandleFunc("GET /api/v1/duplicates", s.listDuplicates)
	mux.HandleFunc("GET /api/v1/duplicates/count", s.duplicateCount)
	mux.HandleFunc("GET /api/v1/duplicates/{groupId}", s.getDuplicateGroup)
	mux.HandleFunc("POST /api/v1/duplicates/compare", s.compareTracks)
	mux.HandleFunc("POST /api/v1/duplicates/scan", s.startDuplicateScan)
	mux.HandleFunc("GET /api/v1/duplicates/scan/{id}", s.duplicateScanStatus)
	mux.HandleFunc("POST /api/v1/duplicates/scan/{id}/cancel", s.cancelDuplicateScan)
	mux.HandleFunc("GET /api/v1/duplicates/scan/{id}/events", s.duplicateScanEvents)
	mux.HandleFunc("POST /api/v1/duplicates/refresh", s.refreshDuplicates)
	mux.HandleFunc("DELETE /api/v1/duplicates/{groupId}/keep/{keepFileId}", s.keepFile)
	mux.HandleFunc("DELETE /api/v1/duplicates/file/{id}", s.deleteDuplicateFile)
	mux.HandleFunc("POST /api/v1/duplicates/auto-resolve/preview", s.autoResolvePreview)
	mux.HandleFunc("POST /api/v1/duplicates/auto-resolve/execute", s.autoResolveExecute)
	mux.HandleFunc("GET /api/v1/duplicates/directory-conflicts", s.directoryConflicts)
	mux.HandleFunc("POST /api/v1/duplicates/directory-resolution/preview", s.directoryResolutionPreview)
	mux.HandleFunc("POST /api/v1/duplicates/directory-resolution/execute", s.directoryResolutionExecute)

	mux.HandleFunc("POST /api/v1/scanning/start", s.startScan)
	mux.HandleFunc("GET /api/v1/scanning/status/{id}", s.scanStatus)
	mux.HandleFunc("POST /api/v1/scanning/cancel/{id}", s.cancelScan)
	mux.HandleFunc("GET /api/v1/scanning/browse", s.browseDirectory)
	mux.HandleFunc("POST /api/v1/scanning/create-directory", s.createDirectory)

	mux.HandleFunc("GET /api/v1/config/fuzzy-search", s.getFuzzyConfig)
	mux.HandleFunc("PUT /api/v1/config/fuzzy-search", s.putFuzzyConfig)
	mux.HandleFunc("POST /api/v1/config/fuzzy-search/preset", s.applyFuzzyPreset)
	mux.HandleFunc("GET /api/v1/config/file-types", s.getFileTypes)
	mux.HandleFunc("PUT /api/v1/config/file-types", s.putFileTypes)
	mux.HandleFunc("GET /api/v1/config/database", s.databaseInfo)

	mux.HandleFunc("GET /api/v1/profiles", s.listProfiles)
	mux.HandleFunc("POST /api/v1/profiles", s.createProfile)
	mux.HandleFunc("GET /api/v1/profiles/{id}", s.getProfile)
	mux.HandleFunc("PUT /api/v1/profiles/{id}", s.updateProfile)
	mux.HandleFunc("DELETE /api/v1/profiles/{id}", s.deleteProfile)
	mux.HandleFunc("POST /api/v1/profiles/{id}/activate", s.activateProfile)
	mux.HandleFunc("POST /api/v1/profiles/{id}/duplicate", s.duplicateProfile)

	mux.HandleFunc("POST /api/v1/fingerprints/generate", s.generateFingerprints)
	mux.HandleFunc("GET /api/v1/fingerprints/status", s.fingerprintStatus)

	return cors(mux)
}

// cors allows the paired front-end to call from any origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encoding response", "err", err)
	}
}

// writeError maps error kinds to HTTP statuses; anything unknown is a
// 500 with a generic message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, scanner.ErrSessionNotFound),
		errors.Is(err, dupes.ErrSessionNotFound),
		errors.Is(err, dupes.ErrGroupNotFound),
		errors.Is(err, profile.ErrProfileNotFound):
		status = http.StatusNotFound
	case errors.Is(err, catalog.ErrDuplicatePath),
		errors.Is(err, profile.ErrProfileExists),
		errors.Is(err, profile.ErrProfileActive):
		status = http.StatusConflict
	case errors.Is(err, fuzzy.ErrUnknownPreset),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, catalog.ErrLocked),
		errors.Is(err, fingerprint.ErrFpcalcMissing):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.Error("internal error", "err", err)
		msg = "internal error"
	}
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// errBadRequest marks malformed client input.
var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }
func (e *badRequestError) Is(target error) bool {
	return target == errBadRequest
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, badRequest("invalid " + name)
	}
	return id, nil
}

func pathInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, badRequest("invalid " + name)
	}
	return n, nil
}

// pageParams reads ?page&size with defaults 1 and 50.
func pageParams(r *http.Request) (page, size int) {
	page, size = 1, 50
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && v > 0 && v <= 500 {
		size = v
	}
	return page, size
}
