package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateScanID creates a short, human-readable identifier for one scan run.
// Format: scan-{game}-{level}-{8charHexUUID}
//
// Example:
//   - Input: game="csgo", level="boost"
//   - Output: "scan-csgo-boost-a3f8e2b1"
//
// Empty parts are dropped so a batch run produces "scan-a3f8e2b1".
func GenerateScanID(parts ...string) string {
	segments := []string{"scan"}
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			segments = append(segments, strings.ReplaceAll(p, " ", "_"))
		}
	}
	segments = append(segments, uuid.New().String()[:8])
	return strings.Join(segments, "-")
}
