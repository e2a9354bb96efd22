package store

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const idPrefix = "fr-"

// NormalizeID ensures a submission ID has the fr- prefix.
// Accepts bare IDs like "m2abc-deadbeef" and returns "fr-m2abc-deadbeef".
func NormalizeID(id string) string {
	if id == "" {
		return id
	}
	if !strings.HasPrefix(id, idPrefix) {
		return idPrefix + id
	}
	return id
}

// GenerateID generates a unique submission ID. The base36 timestamp keeps
// IDs roughly sortable by creation time; the random suffix avoids
// collisions between submissions created in the same millisecond.
func GenerateID() (string, error) {
	bytes := make([]byte, 4) // 8 hex characters
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return idPrefix + ts + "-" + hex.EncodeToString(bytes), nil
}
