package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// SlotKey derives the deterministic lock key for a slot. Instants are
// normalized to UTC and truncated to the second, so equal instants in
// different zones map to the same key.
func SlotKey(tenantID string, startAt, endAt time.Time, resourceID string) string {
	parts := []string{
		tenantID,
		startAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		endAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		resourceID,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
