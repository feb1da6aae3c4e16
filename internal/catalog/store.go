package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/quentel/mp3org/internal/db"
)

var (
	// ErrNotFound is returned when no track matches the given id or path.
	ErrNotFound = errors.New("catalog: track not found")
	// ErrDuplicatePath is returned when inserting a path that already exists.
	ErrDuplicatePath = errors.New("catalog: file path already in catalog")
	// ErrLocked is returned when the database file is held by another process.
	ErrLocked = errors.New("catalog: database locked by another process")
)

// Store owns all database connections for the catalog. Mutations run in a
// single transaction each; a mutex serializes writers on top of SQLite's
// own single-writer lock so busy errors stay rare.
type Store struct {
	db      *sql.DB
	path    string
	writeMu sync.Mutex

	mutateMu sync.Mutex
	onMutate func()
}

// Open opens (creating if needed) the catalog database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, wrapSQLiteErr(err)
		}
	}

	if err := initSchema(sqlDB); err != nil {
		sqlDB.Close()
		return nil, wrapSQLiteErr(err)
	}

	return &Store{db: sqlDB, path: path}, nil
}

// OpenMemory opens an in-memory catalog. Used by tests.
func OpenMemory() (*Store, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	if err := initSchema(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return &Store{db: sqlDB, path: ":memory:"}, nil
}

func initSchema(sqlDB *sql.DB) error {
	_, err := sqlDB.Exec(`
		CREATE TABLE IF NOT EXISTS tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_path TEXT NOT NULL UNIQUE,
			title TEXT,
			artist TEXT,
			album TEXT,
			genre TEXT,
			track_number INTEGER,
			year INTEGER,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			file_size_bytes INTEGER NOT NULL DEFAULT 0,
			bit_rate INTEGER NOT NULL DEFAULT 0,
			sample_rate INTEGER NOT NULL DEFAULT 0,
			file_type TEXT NOT NULL DEFAULT '',
			last_modified INTEGER NOT NULL DEFAULT 0,
			date_added INTEGER NOT NULL DEFAULT 0,
			fingerprint TEXT,
			fingerprint_duration INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist);
		CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album);
		CREATE INDEX IF NOT EXISTS idx_tracks_title ON tracks(title);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SetMutationHook installs fn to run after every successful mutation.
// The duplicate-scan cache hangs off this to stay coherent.
func (s *Store) SetMutationHook(fn func()) {
	s.mutateMu.Lock()
	s.onMutate = fn
	s.mutateMu.Unlock()
}

func (s *Store) notifyMutation() {
	s.mutateMu.Lock()
	fn := s.onMutate
	s.mutateMu.Unlock()
	if fn != nil {
		fn()
	}
}

const trackColumns = `id, file_path, title, artist, album, genre, track_number, year,
	duration_seconds, file_size_bytes, bit_rate, sample_rate, file_type,
	last_modified, date_added, fingerprint, fingerprint_duration`

// Insert adds a new track and assigns its id. The path is canonicalized
// first; a path already present fails with ErrDuplicatePath.
func (s *Store) Insert(t *Track) error {
	path, err := CanonicalPath(t.FilePath)
	if err != nil {
		return err
	}
	t.FilePath = path

	if t.DateAdded.IsZero() {
		t.DateAdded = time.Now()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = db.WithTx(s.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO tracks (file_path, title, artist, album, genre, track_number, year,
				duration_seconds, file_size_bytes, bit_rate, sample_rate, file_type,
				last_modified, date_added, fingerprint, fingerprint_duration)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			t.FilePath, db.NullString(t.Title), db.NullString(t.Artist), db.NullString(t.Album),
			db.NullString(t.Genre), db.NullInt(t.TrackNumber), db.NullInt(t.Year),
			t.DurationSeconds, t.FileSizeBytes, t.BitRate, t.SampleRate, t.FileType,
			t.LastModified.Unix(), t.DateAdded.Unix(),
			db.NullString(t.Fingerprint), db.NullInt(t.FingerprintDuration))
		if err != nil {
			return wrapSQLiteErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		t.ID = id
		return nil
	})
	if err != nil {
		return err
	}
	s.notifyMutation()
	return nil
}

// Update rewrites all columns of an existing track. The id never changes.
func (s *Store) Update(t *Track) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := db.WithTx(s.db, func(tx *sql.Tx) error {
		return updateInTx(tx, t)
	})
	if err != nil {
		return err
	}
	s.notifyMutation()
	return nil
}

// UpdateAll applies several updates in one transaction.
func (s *Store) UpdateAll(tracks []*Track) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := db.WithTx(s.db, func(tx *sql.Tx) error {
		for _, t := range tracks {
			if err := updateInTx(tx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notifyMutation()
	return nil
}

func updateInTx(tx *sql.Tx, t *Track) error {
	res, err := tx.Exec(`
		UPDATE tracks SET
			file_path = ?, title = ?, artist = ?, album = ?, genre = ?,
			track_number = ?, year = ?, duration_seconds = ?, file_size_bytes = ?,
			bit_rate = ?, sample_rate = ?, file_type = ?, last_modified = ?,
			fingerprint = ?, fingerprint_duration = ?
		WHERE id = ?
	`,
		t.FilePath, db.NullString(t.Title), db.NullString(t.Artist), db.NullString(t.Album),
		db.NullString(t.Genre), db.NullInt(t.TrackNumber), db.NullInt(t.Year),
		t.DurationSeconds, t.FileSizeBytes, t.BitRate, t.SampleRate, t.FileType,
		t.LastModified.Unix(), db.NullString(t.Fingerprint), db.NullInt(t.FingerprintDuration),
		t.ID)
	if err != nil {
		return wrapSQLiteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the row for id. It does not touch the file on disk;
// callers that want the file gone unlink it themselves.
func (s *Store) Delete(id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := db.WithTx(s.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM tracks WHERE id = ?`, id)
		if err != nil {
			return wrapSQLiteErr(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notifyMutation()
	return nil
}

// DeleteAll removes several rows in one transaction. Missing ids are
// skipped so applying a resolution plan twice is a no-op.
func (s *Store) DeleteAll(ids []int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := db.WithTx(s.db, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.Exec(`DELETE FROM tracks WHERE id = ?`, id); err != nil {
				return wrapSQLiteErr(err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notifyMutation()
	return nil
}

// SetFingerprint stores the chromaprint fingerprint and its duration for id.
func (s *Store) SetFingerprint(id int64, fingerprint string, duration int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := db.WithTx(s.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE tracks SET fingerprint = ?, fingerprint_duration = ? WHERE id = ?`,
			fingerprint, duration, id)
		if err != nil {
			return wrapSQLiteErr(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notifyMutation()
	return nil
}

// GetByID returns the track with the given id, or ErrNotFound.
func (s *Store) GetByID(id int64) (*Track, error) {
	row := s.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	return scanTrack(row)
}

// GetByPath returns the track with the given canonical path, or ErrNotFound.
func (s *Store) GetByPath(path string) (*Track, error) {
	canonical, err := CanonicalPath(path)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE file_path = ?`, canonical)
	return scanTrack(row)
}

// Count returns the number of tracks in the catalog.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tracks`).Scan(&count)
	return count, err
}

// Filters narrows ListPage results. Empty fields are ignored; Query
// matches title, artist or album.
type Filters struct {
	Query  string
	Title  string
	Artist string
	Album  string
}

func (f Filters) where() (string, []any) {
	var clauses []string
	var args []any
	like := func(col, val string) {
		clauses = append(clauses, col+" LIKE ? COLLATE NOCASE")
		args = append(args, "%"+val+"%")
	}
	if f.Query != "" {
		clauses = append(clauses, `(title LIKE ? COLLATE NOCASE OR artist LIKE ? COLLATE NOCASE OR album LIKE ? COLLATE NOCASE)`)
		q := "%" + f.Query + "%"
		args = append(args, q, q, q)
	}
	if f.Title != "" {
		like("title", f.Title)
	}
	if f.Artist != "" {
		like("artist", f.Artist)
	}
	if f.Album != "" {
		like("album", f.Album)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListPage returns a page of tracks ordered by artist, album, track number.
func (s *Store) ListPage(offset, limit int, filters Filters) ([]*Track, error) {
	where, args := filters.where()
	args = append(args, limit, offset)
	rows, err := s.db.Query(`
		SELECT `+trackColumns+` FROM tracks`+where+`
		ORDER BY artist COLLATE NOCASE, album COLLATE NOCASE, track_number, title COLLATE NOCASE
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTracks(rows)
}

// CountFiltered returns the number of tracks matching filters.
func (s *Store) CountFiltered(filters Filters) (int, error) {
	where, args := filters.where()
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tracks`+where, args...).Scan(&count)
	return count, err
}

// ListAll returns every track ordered by file path. Scans snapshot the
// catalog through this one call.
func (s *Store) ListAll() ([]*Track, error) {
	rows, err := s.db.Query(`SELECT ` + trackColumns + ` FROM tracks ORDER BY file_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTracks(rows)
}

// AllPaths returns the set of canonical paths already in the catalog.
// The scanner pre-loads this to skip known files.
func (s *Store) AllPaths() (map[string]struct{}, error) {
	rows, err := s.db.Query(`SELECT file_path FROM tracks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths[p] = struct{}{}
	}
	return paths, rows.Err()
}

// MissingFingerprints returns the tracks with no stored fingerprint.
func (s *Store) MissingFingerprints() ([]*Track, error) {
	rows, err := s.db.Query(`SELECT ` + trackColumns + ` FROM tracks
		WHERE fingerprint IS NULL OR fingerprint = '' ORDER BY file_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTracks(rows)
}

// FingerprintedCount returns how many tracks carry a fingerprint.
func (s *Store) FingerprintedCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tracks WHERE fingerprint IS NOT NULL AND fingerprint != ''`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (*Track, error) {
	var t Track
	var title, artist, album, genre, fingerprint sql.NullString
	var trackNum, year, fpDuration sql.NullInt64
	var lastModified, dateAdded int64

	err := row.Scan(&t.ID, &t.FilePath, &title, &artist, &album, &genre,
		&trackNum, &year, &t.DurationSeconds, &t.FileSizeBytes, &t.BitRate,
		&t.SampleRate, &t.FileType, &lastModified, &dateAdded,
		&fingerprint, &fpDuration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	t.Title = db.StringPtr(title)
	t.Artist = db.StringPtr(artist)
	t.Album = db.StringPtr(album)
	t.Genre = db.StringPtr(genre)
	t.TrackNumber = db.IntPtr(trackNum)
	t.Year = db.IntPtr(year)
	t.Fingerprint = db.StringPtr(fingerprint)
	t.FingerprintDuration = db.IntPtr(fpDuration)
	t.LastModified = time.Unix(lastModified, 0)
	t.DateAdded = time.Unix(dateAdded, 0)
	return &t, nil
}

func scanTracks(rows *sql.Rows) ([]*Track, error) {
	var tracks []*Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// wrapSQLiteErr maps driver error strings onto the catalog's error kinds.
func wrapSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: tracks.file_path"):
		return fmt.Errorf("%w: %v", ErrDuplicatePath, err)
	case strings.Contains(msg, "database is locked"):
		return fmt.Errorf("%w: %v", ErrLocked, err)
	}
	return err
}
