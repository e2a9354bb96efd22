package models

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle state of a queued submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRetrying Status = "retrying"
	StatusSynced   Status = "synced"
	StatusFailed   Status = "failed"
)

// IsValidStatus checks if a status is valid
func IsValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusRetrying, StatusSynced, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status ends automatic processing.
// StatusSynced records are deleted rather than kept; StatusFailed records
// wait for a manual retry or discard.
func (s Status) Terminal() bool {
	return s == StatusSynced || s == StatusFailed
}

// SubmissionRecord is one queued field report awaiting delivery.
// The payload is opaque: the engine never inspects or mutates it.
type SubmissionRecord struct {
	ID             string          `json:"id"`
	Payload        json.RawMessage `json:"payload"`
	Status         Status          `json:"status"`
	RetryCount     int             `json:"retry_count"`
	LastError      string          `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	LastRetryAt    *time.Time      `json:"last_retry_at,omitempty"`
	CreatedOffline bool            `json:"created_offline"`
}

// Clone returns a deep copy so callers can hand records to the UI
// without racing engine mutations.
func (r *SubmissionRecord) Clone() *SubmissionRecord {
	c := *r
	if r.Payload != nil {
		c.Payload = make(json.RawMessage, len(r.Payload))
		copy(c.Payload, r.Payload)
	}
	if r.LastRetryAt != nil {
		t := *r.LastRetryAt
		c.LastRetryAt = &t
	}
	return &c
}

// QueueStats summarises queue state for status displays.
type QueueStats struct {
	Total          int            `json:"total"`
	ByStatus       map[Status]int `json:"by_status"`
	Online         bool           `json:"online"`
	SyncInProgress bool           `json:"sync_in_progress"`
}
