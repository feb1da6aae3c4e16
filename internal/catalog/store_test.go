package catalog

import (
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func newTestTrack(path string) *Track {
	return &Track{
		FilePath:        path,
		Title:           strPtr("Come Together"),
		Artist:          strPtr("The Beatles"),
		Album:           strPtr("Abbey Road"),
		Genre:           strPtr("Rock"),
		TrackNumber:     intPtr(1),
		Year:            intPtr(1969),
		DurationSeconds: 259,
		FileSizeBytes:   10362880,
		BitRate:         320,
		SampleRate:      44100,
		FileType:        "mp3",
		LastModified:    time.Unix(1700000000, 0),
	}
}

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndGetByID(t *testing.T) {
	s := setupStore(t)

	track := newTestTrack("/music/beatles/abbey/01.mp3")
	if err := s.Insert(track); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if track.ID == 0 {
		t.Fatal("Insert should assign an id")
	}

	got, err := s.GetByID(track.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.FilePath != track.FilePath {
		t.Errorf("FilePath = %q, want %q", got.FilePath, track.FilePath)
	}
	if got.Title == nil || *got.Title != "Come Together" {
		t.Errorf("Title = %v, want Come Together", got.Title)
	}
	if got.TrackNumber == nil || *got.TrackNumber != 1 {
		t.Errorf("TrackNumber = %v, want 1", got.TrackNumber)
	}
	if got.DurationSeconds != 259 {
		t.Errorf("DurationSeconds = %d, want 259", got.DurationSeconds)
	}
	if got.BitRate != 320 {
		t.Errorf("BitRate = %d, want 320", got.BitRate)
	}
	if !got.LastModified.Equal(track.LastModified) {
		t.Errorf("LastModified = %v, want %v", got.LastModified, track.LastModified)
	}
	if got.Fingerprint != nil {
		t.Errorf("Fingerprint should be nil, got %q", *got.Fingerprint)
	}
}

func TestInsertDuplicatePath(t *testing.T) {
	s := setupStore(t)

	if err := s.Insert(newTestTrack("/music/a.mp3")); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}

	err := s.Insert(newTestTrack("/music/a.mp3"))
	if !errors.Is(err, ErrDuplicatePath) {
		t.Fatalf("second Insert = %v, want ErrDuplicatePath", err)
	}

	// Same file under a non-canonical spelling must also conflict.
	err = s.Insert(newTestTrack("/music//sub/../a.mp3"))
	if !errors.Is(err, ErrDuplicatePath) {
		t.Fatalf("non-canonical Insert = %v, want ErrDuplicatePath", err)
	}
}

func TestGetByPath(t *testing.T) {
	s := setupStore(t)

	track := newTestTrack("/music/a.mp3")
	if err := s.Insert(track); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := s.GetByPath("/music//a.mp3")
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if got.ID != track.ID {
		t.Errorf("ID = %d, want %d", got.ID, track.ID)
	}

	_, err = s.GetByPath("/music/missing.mp3")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByPath missing = %v, want ErrNotFound", err)
	}
}

func TestUpdateKeepsID(t *testing.T) {
	s := setupStore(t)

	track := newTestTrack("/music/a.mp3")
	if err := s.Insert(track); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	id := track.ID

	track.Title = strPtr("Something")
	track.BitRate = 256
	if err := s.Update(track); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := s.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ID != id {
		t.Errorf("id mutated: %d != %d", got.ID, id)
	}
	if got.Title == nil || *got.Title != "Something" {
		t.Errorf("Title = %v, want Something", got.Title)
	}
	if got.BitRate != 256 {
		t.Errorf("BitRate = %d, want 256", got.BitRate)
	}
}

func TestUpdateMissing(t *testing.T) {
	s := setupStore(t)

	track := newTestTrack("/music/a.mp3")
	track.ID = 999
	if err := s.Update(track); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update missing = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := setupStore(t)

	track := newTestTrack("/music/a.mp3")
	if err := s.Insert(track); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := s.Delete(track.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.GetByID(track.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(track.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestDeleteAllIdempotent(t *testing.T) {
	s := setupStore(t)

	a := newTestTrack("/music/a.mp3")
	b := newTestTrack("/music/b.mp3")
	for _, tr := range []*Track{a, b} {
		if err := s.Insert(tr); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	ids := []int64{a.ID, b.ID}
	if err := s.DeleteAll(ids); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	// Applying the same plan twice is a no-op.
	if err := s.DeleteAll(ids); err != nil {
		t.Fatalf("second DeleteAll failed: %v", err)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestListPageAndFilters(t *testing.T) {
	s := setupStore(t)

	rows := []struct {
		path, title, artist string
	}{
		{"/music/a.mp3", "Alpha", "Artist One"},
		{"/music/b.mp3", "Beta", "Artist One"},
		{"/music/c.mp3", "Gamma", "Artist Two"},
	}
	for _, row := range rows {
		tr := newTestTrack(row.path)
		tr.Title = strPtr(row.title)
		tr.Artist = strPtr(row.artist)
		if err := s.Insert(tr); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	page, err := s.ListPage(0, 2, Filters{})
	if err != nil {
		t.Fatalf("ListPage failed: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("page size = %d, want 2", len(page))
	}

	byArtist, err := s.ListPage(0, 10, Filters{Artist: "artist one"})
	if err != nil {
		t.Fatalf("ListPage filtered failed: %v", err)
	}
	if len(byArtist) != 2 {
		t.Errorf("artist filter matched %d, want 2", len(byArtist))
	}

	byQuery, err := s.ListPage(0, 10, Filters{Query: "gam"})
	if err != nil {
		t.Fatalf("ListPage query failed: %v", err)
	}
	if len(byQuery) != 1 || byQuery[0].Title == nil || *byQuery[0].Title != "Gamma" {
		t.Errorf("query filter = %+v, want single Gamma", byQuery)
	}
}

func TestMissingFingerprints(t *testing.T) {
	s := setupStore(t)

	a := newTestTrack("/music/a.mp3")
	b := newTestTrack("/music/b.mp3")
	for _, tr := range []*Track{a, b} {
		if err := s.Insert(tr); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	if err := s.SetFingerprint(a.ID, "1,2,3", 120); err != nil {
		t.Fatalf("SetFingerprint failed: %v", err)
	}

	missing, err := s.MissingFingerprints()
	if err != nil {
		t.Fatalf("MissingFingerprints failed: %v", err)
	}
	if len(missing) != 1 || missing[0].ID != b.ID {
		t.Errorf("missing = %+v, want just b", missing)
	}

	n, err := s.FingerprintedCount()
	if err != nil {
		t.Fatalf("FingerprintedCount failed: %v", err)
	}
	if n != 1 {
		t.Errorf("FingerprintedCount = %d, want 1", n)
	}

	got, err := s.GetByID(a.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Fingerprint == nil || *got.Fingerprint != "1,2,3" {
		t.Errorf("Fingerprint = %v, want 1,2,3", got.Fingerprint)
	}
	if got.FingerprintDuration == nil || *got.FingerprintDuration != 120 {
		t.Errorf("FingerprintDuration = %v, want 120", got.FingerprintDuration)
	}
}

func TestMutationHook(t *testing.T) {
	s := setupStore(t)

	var calls int
	s.SetMutationHook(func() { calls++ })

	track := newTestTrack("/music/a.mp3")
	if err := s.Insert(track); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := s.Update(track); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := s.Delete(track.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if calls != 3 {
		t.Errorf("mutation hook ran %d times, want 3", calls)
	}

	// Failed mutations must not fire the hook.
	if err := s.Delete(track.ID); err == nil {
		t.Fatal("expected delete of missing row to fail")
	}
	if calls != 3 {
		t.Errorf("hook fired on failed mutation: %d calls", calls)
	}
}

func TestFormattedHelpers(t *testing.T) {
	track := newTestTrack("/music/a.mp3")

	if got := track.FormattedDuration(); got != "4:19" {
		t.Errorf("FormattedDuration = %q, want 4:19", got)
	}
	track.DurationSeconds = 3725
	if got := track.FormattedDuration(); got != "1:02:05" {
		t.Errorf("FormattedDuration = %q, want 1:02:05", got)
	}
	if got := track.FormattedFileSize(); got == "" {
		t.Error("FormattedFileSize should not be empty")
	}
}

func TestTitleOrFilename(t *testing.T) {
	track := newTestTrack("/music/sub/My Song.mp3")
	track.Title = nil
	if got := track.TitleOrFilename(); got != "My Song" {
		t.Errorf("TitleOrFilename = %q, want My Song", got)
	}
	track.Title = strPtr("Real Title")
	if got := track.TitleOrFilename(); got != "Real Title" {
		t.Errorf("TitleOrFilename = %q, want Real Title", got)
	}
}
