package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marcus/fieldsync/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(t *testing.T, payload string) *models.SubmissionRecord {
	t.Helper()
	id, err := GenerateID()
	if err != nil {
		t.Fatalf("GenerateID failed: %v", err)
	}
	return &models.SubmissionRecord{
		ID:        id,
		Payload:   json.RawMessage(payload),
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestInitialize(t *testing.T) {
	dir := t.TempDir()

	s, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer s.Close()

	// Check database file exists
	dbPath := filepath.Join(dir, ".fieldsync", "queue.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Queue database file not created")
	}
}

func TestOpenWithoutInit(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("Open succeeded without init")
	}
	if !strings.Contains(err.Error(), "fieldsync init") {
		t.Errorf("Error should mention init: %v", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	rec := testRecord(t, `{"litres":500}`)
	if err := s.Put(rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	s.Close()

	// Re-opening must keep existing rows
	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if string(got.Payload) != `{"litres":500}` {
		t.Errorf("Payload mismatch after reopen: got %s", got.Payload)
	}
}

func TestPutAndGet(t *testing.T) {
	s := testStore(t)

	rec := testRecord(t, `{"driver":"m. okoye","litres":1200}`)
	rec.CreatedOffline = true

	if err := s.Put(rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.ID != rec.ID {
		t.Errorf("ID mismatch: got %s, want %s", got.ID, rec.ID)
	}
	if string(got.Payload) != string(rec.Payload) {
		t.Errorf("Payload mismatch: got %s, want %s", got.Payload, rec.Payload)
	}
	if got.Status != models.StatusPending {
		t.Errorf("Status mismatch: got %s, want pending", got.Status)
	}
	if got.RetryCount != 0 {
		t.Errorf("RetryCount mismatch: got %d, want 0", got.RetryCount)
	}
	if !got.CreatedOffline {
		t.Error("CreatedOffline not persisted")
	}
	if got.LastRetryAt != nil {
		t.Errorf("LastRetryAt should be nil, got %v", got.LastRetryAt)
	}
}

func TestPutIsUpsert(t *testing.T) {
	s := testStore(t)

	rec := testRecord(t, `{"site":"depot-7"}`)
	if err := s.Put(rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Same ID, updated retry state: must stay a single row
	now := time.Now().UTC().Truncate(time.Second)
	rec.Status = models.StatusRetrying
	rec.RetryCount = 2
	rec.LastError = "connection refused"
	rec.LastRetryAt = &now
	if err := s.Put(rec); err != nil {
		t.Fatalf("Second Put failed: %v", err)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 row after upsert, got %d", count)
	}

	got, err := s.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.StatusRetrying {
		t.Errorf("Status not updated: got %s", got.Status)
	}
	if got.RetryCount != 2 {
		t.Errorf("RetryCount not updated: got %d", got.RetryCount)
	}
	if got.LastError != "connection refused" {
		t.Errorf("LastError not updated: got %q", got.LastError)
	}
	if got.LastRetryAt == nil {
		t.Error("LastRetryAt not persisted")
	}
}

func TestGetNotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.Get("fr-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestGetNormalizesID(t *testing.T) {
	s := testStore(t)

	rec := testRecord(t, `{}`)
	if err := s.Put(rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	bare := strings.TrimPrefix(rec.ID, "fr-")
	got, err := s.Get(bare)
	if err != nil {
		t.Fatalf("Get with bare ID failed: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("ID mismatch: got %s, want %s", got.ID, rec.ID)
	}
}

func TestGetAllOrdered(t *testing.T) {
	s := testStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		rec := testRecord(t, `{}`)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.Put(rec); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	all, err := s.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
			t.Errorf("Records not ordered by created_at: %v before %v",
				all[i].CreatedAt, all[i-1].CreatedAt)
		}
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := testStore(t)

	rec := testRecord(t, `{}`)
	if err := s.Put(rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := s.Delete(rec.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Record still present after delete: %v", err)
	}

	// Second delete of the same ID is a no-op
	if err := s.Delete(rec.ID); err != nil {
		t.Errorf("Repeated Delete failed: %v", err)
	}
	if err := s.Delete("fr-never-existed"); err != nil {
		t.Errorf("Delete of absent ID failed: %v", err)
	}
}

func TestCountByStatus(t *testing.T) {
	s := testStore(t)

	statuses := []models.Status{
		models.StatusPending,
		models.StatusPending,
		models.StatusRetrying,
		models.StatusFailed,
	}
	for _, st := range statuses {
		rec := testRecord(t, `{}`)
		rec.Status = st
		if err := s.Put(rec); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	counts, err := s.CountByStatus()
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts[models.StatusPending] != 2 {
		t.Errorf("pending count: got %d, want 2", counts[models.StatusPending])
	}
	if counts[models.StatusRetrying] != 1 {
		t.Errorf("retrying count: got %d, want 1", counts[models.StatusRetrying])
	}
	if counts[models.StatusFailed] != 1 {
		t.Errorf("failed count: got %d, want 1", counts[models.StatusFailed])
	}
}

func TestSchemaVersion(t *testing.T) {
	s := testStore(t)

	v, err := s.GetSchemaVersion()
	if err != nil {
		t.Fatalf("GetSchemaVersion failed: %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("Schema version: got %d, want %d", v, SchemaVersion)
	}
}

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := GenerateID()
		if err != nil {
			t.Fatalf("GenerateID failed: %v", err)
		}
		if !strings.HasPrefix(id, "fr-") {
			t.Fatalf("ID missing prefix: %s", id)
		}
		if seen[id] {
			t.Fatalf("Duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestPayloadStoredVerbatim(t *testing.T) {
	s := testStore(t)

	// The store never parses or normalizes payloads
	payload := `{"z":1,  "a": [true, null],"nested":{"deep":"x"}}`
	rec := testRecord(t, payload)
	if err := s.Put(rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Payload) != payload {
		t.Errorf("Payload altered by store:\n got %s\nwant %s", got.Payload, payload)
	}
}
