package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marcus/fieldsync/internal/models"
)

func TestFormatValueSet(t *testing.T) {
	var f formatValue
	for _, valid := range []string{"table", "json", "ids"} {
		if err := f.Set(valid); err != nil {
			t.Errorf("Set(%q) failed: %v", valid, err)
		}
		if f.String() != valid {
			t.Errorf("String() after Set(%q): got %q", valid, f.String())
		}
	}

	if err := f.Set("yaml"); err == nil {
		t.Error("Set(\"yaml\") should fail")
	}
}

func TestReadPayloadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	body := `{"volume": 1200, "site": "north-depot"}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	payload, err := readPayload([]string{path})
	if err != nil {
		t.Fatalf("readPayload failed: %v", err)
	}
	if string(payload) != body {
		t.Errorf("payload altered: got %s", payload)
	}
}

func TestReadPayloadRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := readPayload([]string{path}); err == nil {
		t.Error("invalid JSON should be rejected")
	}
}

func TestReadPayloadMissingFile(t *testing.T) {
	if _, err := readPayload([]string{"/nonexistent/report.json"}); err == nil {
		t.Error("missing file should be an error")
	}
}

func TestRecordMarkdownIncludesPayload(t *testing.T) {
	rec := &models.SubmissionRecord{
		ID:         "fr-test-1234",
		Payload:    json.RawMessage(`{"site":"north-depot"}`),
		Status:     models.StatusRetrying,
		RetryCount: 2,
		LastError:  "connection refused",
		CreatedAt:  time.Now().Add(-time.Hour),
	}
	md := recordMarkdown(rec)

	for _, want := range []string{rec.ID, "Payload", "north-depot", "Retries", "connection refused"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}
