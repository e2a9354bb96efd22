package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marcus/fieldsync/internal/models"
)

// openRaw opens the queue database with an independent driver so the
// on-disk representation is checked without going through the store.
func openRaw(t *testing.T, baseDir string) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", filepath.Join(baseDir, dbFile))
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestOnDiskRowMatchesRecord(t *testing.T) {
	baseDir := t.TempDir()
	st, err := Initialize(baseDir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	rec := testRecord(t, `{"site":"north-depot"}`)
	rec.Status = models.StatusRetrying
	rec.RetryCount = 2
	rec.LastError = "connection refused"
	if err := st.Put(rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	st.Close()

	conn := openRaw(t, baseDir)

	var payload, status, lastError string
	var retryCount int
	err = conn.QueryRow(
		"SELECT payload, status, retry_count, last_error FROM pending_forms WHERE id = ?",
		rec.ID,
	).Scan(&payload, &status, &retryCount, &lastError)
	if err != nil {
		t.Fatalf("query row: %v", err)
	}

	if payload != `{"site":"north-depot"}` {
		t.Errorf("payload: got %s", payload)
	}
	if status != string(models.StatusRetrying) {
		t.Errorf("status: got %s", status)
	}
	if retryCount != 2 {
		t.Errorf("retry_count: got %d", retryCount)
	}
	if lastError != "connection refused" {
		t.Errorf("last_error: got %s", lastError)
	}
}

func TestOnDiskSchemaVersion(t *testing.T) {
	baseDir := t.TempDir()
	st, err := Initialize(baseDir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	st.Close()

	conn := openRaw(t, baseDir)

	var version int
	err = conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&version)
	if err != nil {
		t.Fatalf("query schema version: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("schema version: got %d, want %d", version, SchemaVersion)
	}
}
