package httpapi

import (
	"net/http"

	"github.com/quentel/mp3org/internal/dupes"
)

func (s *Server) listDuplicates(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	d := s.app.Dupes()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"groups": toGroupList(d.Groups(page, size)),
		"total":  d.GroupCount(),
		"page":   page,
		"size":   size,
	})
}

func (s *Server) duplicateCount(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int{"count": s.app.Dupes().GroupCount()})
}

func (s *Server) getDuplicateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "groupId")
	if err != nil {
		s.writeError(w, err)
		return
	}
	g, err := s.app.Dupes().Group(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toGroupJSON(g))
}

func (s *Server) compareTracks(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FileID1 int64 `json:"fileId1"`
		FileID2 int64 `json:"fileId2"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.app.Dupes().Compare(body.FileID1, body.FileID2)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"file1":      toTrackJSON(res.File1),
		"file2":      toTrackJSON(res.File2),
		"similarity": res.Similarity,
		"breakdown":  res.Breakdown,
	})
}

func (s *Server) startDuplicateScan(w http.ResponseWriter, r *http.Request) {
	id, err := s.app.Dupes().StartScan()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"sessionId": id})
}

func scanStatusJSON(st dupes.ScanStatus) map[string]any {
	return map[string]any{
		"sessionId":       st.ID,
		"state":           string(st.State),
		"tracksScanned":   st.TracksScanned,
		"groupsFound":     st.GroupsFound,
		"percentComplete": st.PercentComplete,
		"error":           st.Err,
	}
}

func (s *Server) duplicateScanStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.Dupes().Status(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, scanStatusJSON(st))
}

func (s *Server) cancelDuplicateScan(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Dupes().Cancel(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) refreshDuplicates(w http.ResponseWriter, r *http.Request) {
	s.app.Dupes().Refresh()
	s.writeJSON(w, http.StatusOK, map[string]bool{"refreshed": true})
}

func (s *Server) keepFile(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathInt(r, "groupId")
	if err != nil {
		s.writeError(w, err)
		return
	}
	keepID, err := pathID(r, "keepFileId")
	if err != nil {
		s.writeError(w, err)
		return
	}
	deleted, err := s.app.Dupes().KeepFile(groupID, keepID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (s *Server) deleteDuplicateFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.app.DeleteTrackAndFile(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.app.Dupes().Invalidate()
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type autoResolveRequestJSON struct {
	PreferredDirectory string  `json:"preferredDirectory"`
	ExcludeFileIDs     []int64 `json:"excludeFileIds"`
}

// allGroups pulls the complete cached result set.
func allGroups(d *dupes.Controller) []dupes.Group {
	total := d.GroupCount()
	if total == 0 {
		return nil
	}
	return d.Groups(1, total)
}

func (s *Server) autoResolvePreview(w http.ResponseWriter, r *http.Request) {
	var body autoResolveRequestJSON
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	opts := s.app.ResolveOptions(body.PreferredDirectory, body.ExcludeFileIDs)
	plan := dupes.Resolve(allGroups(s.app.Dupes()), opts)
	s.writeJSON(w, http.StatusOK, toPlanJSON(plan))
}

func (s *Server) autoResolveExecute(w http.ResponseWriter, r *http.Request) {
	var body autoResolveRequestJSON
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	opts := s.app.ResolveOptions(body.PreferredDirectory, body.ExcludeFileIDs)
	plan := dupes.Resolve(allGroups(s.app.Dupes()), opts)

	deleted, err := s.app.Resolver().Apply(plan)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.app.Dupes().Invalidate()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"deleted":      deleted,
		"manualReview": len(plan.ManualReview),
	})
}

func (s *Server) directoryConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts := dupes.DirectoryConflicts(allGroups(s.app.Dupes()))
	out := make([]map[string]any, len(conflicts))
	for i, c := range conflicts {
		pairs := make([]map[string]any, len(c.Pairs))
		for j, p := range c.Pairs {
			pairs[j] = map[string]any{
				"fileA": toTrackJSON(p.A),
				"fileB": toTrackJSON(p.B),
			}
		}
		out[i] = map[string]any{
			"directoryA": c.DirA,
			"directoryB": c.DirB,
			"pairs":      pairs,
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conflicts": out})
}

type directoryResolutionJSON struct {
	KeepDirectory   string `json:"keepDirectory"`
	DeleteDirectory string `json:"deleteDirectory"`
}

func (s *Server) directoryResolutionPreview(w http.ResponseWriter, r *http.Request) {
	var body directoryResolutionJSON
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	doomed := dupes.PreviewDirectoryResolution(allGroups(s.app.Dupes()), body.KeepDirectory, body.DeleteDirectory)
	s.writeJSON(w, http.StatusOK, map[string]any{"filesToDelete": toTrackList(doomed)})
}

func (s *Server) directoryResolutionExecute(w http.ResponseWriter, r *http.Request) {
	var body directoryResolutionJSON
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	deleted, err := s.app.Resolver().ExecuteDirectoryResolution(
		allGroups(s.app.Dupes()), body.KeepDirectory, body.DeleteDirectory)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.app.Dupes().Invalidate()
	s.writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}
