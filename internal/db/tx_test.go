package db

import (
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}

	_, err = db.Exec(`CREATE TABLE test_table (id INTEGER PRIMARY KEY, value TEXT)`)
	if err != nil {
		db.Close()
		t.Fatalf("failed to create table: %v", err)
	}

	return db
}

func TestWithTx_Success(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	err := WithTx(db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO test_table (value) VALUES (?)`, "test")
		return err
	})

	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	// Verify the insert was committed
	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM test_table`).Scan(&count)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestWithTx_Rollback(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	testErr := errors.New("test error")

	err := WithTx(db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO test_table (value) VALUES (?)`, "test")
		if err != nil {
			return err
		}
		return testErr // Return error to trigger rollback
	})

	if !errors.Is(err, testErr) {
		t.Fatalf("WithTx should return the error: got %v, want %v", err, testErr)
	}

	// Verify the insert was rolled back
	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM test_table`).Scan(&count)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 (rolled back)", count)
	}
}

func TestWithTx_MultipleOperations(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	err := WithTx(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO test_table (value) VALUES (?)`, "first"); err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO test_table (value) VALUES (?)`, "second"); err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO test_table (value) VALUES (?)`, "third"); err != nil {
			return err
		}
		return nil
	})

	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM test_table`).Scan(&count)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestNullString_RoundTrip(t *testing.T) {
	s := "hello"

	n := NullString(&s)
	if !n.Valid || n.String != "hello" {
		t.Fatalf("NullString = %+v, want valid hello", n)
	}
	if ptr := StringPtr(n); ptr == nil || *ptr != "hello" {
		t.Errorf("StringPtr round-trip failed: %v", ptr)
	}

	n = NullString(nil)
	if n.Valid {
		t.Errorf("NullString(nil) should be invalid")
	}
	if ptr := StringPtr(n); ptr != nil {
		t.Errorf("StringPtr of invalid should be nil, got %q", *ptr)
	}
}

func TestNullInt_RoundTrip(t *testing.T) {
	v := 42

	n := NullInt(&v)
	if !n.Valid || n.Int64 != 42 {
		t.Fatalf("NullInt = %+v, want valid 42", n)
	}
	if ptr := IntPtr(n); ptr == nil || *ptr != 42 {
		t.Errorf("IntPtr round-trip failed: %v", ptr)
	}

	if ptr := IntPtr(NullInt(nil)); ptr != nil {
		t.Errorf("IntPtr of invalid should be nil, got %d", *ptr)
	}

	// Valid zero is distinct from NULL.
	zero := 0
	if ptr := IntPtr(NullInt(&zero)); ptr == nil || *ptr != 0 {
		t.Errorf("valid zero lost in round-trip: %v", ptr)
	}
}

func TestNullValueHelpers(t *testing.T) {
	if got := NullInt64Value(sql.NullInt64{Int64: 123, Valid: true}); got != 123 {
		t.Errorf("NullInt64Value = %d, want 123", got)
	}
	if got := NullInt64Value(sql.NullInt64{Int64: 123, Valid: false}); got != 0 {
		t.Errorf("NullInt64Value invalid = %d, want 0", got)
	}
	if got := NullStringValue(sql.NullString{String: "x", Valid: true}); got != "x" {
		t.Errorf("NullStringValue = %q, want x", got)
	}
	if got := NullStringValue(sql.NullString{String: "x", Valid: false}); got != "" {
		t.Errorf("NullStringValue invalid = %q, want empty", got)
	}
}
