package util

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewPendingID marks an id as belonging to a staged, not-yet-persisted
// record. Pending ids never reach the database.
func NewPendingID() string {
	return NewID("pend")
}

func IsPendingID(id string) bool {
	return strings.HasPrefix(id, "pend_")
}
