package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateEntityID creates a standardized, human-readable entity ID.
// Format: {PREFIX}-{12charHexUUID}
//
// Example:
//   - Input: prefix="REQ"
//   - Output: "REQ-a3f8e2b1c09d"
//
// The prefix makes ids self-describing in logs and audit trails while
// the UUID suffix keeps them globally unique.
func GenerateEntityID(prefix string) string {
	return prefix + "-" + generateShortUUID()
}

// generateShortUUID creates a 12-character hex string from a UUID.
// This provides sufficient uniqueness while keeping IDs compact.
func generateShortUUID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:12]
}
