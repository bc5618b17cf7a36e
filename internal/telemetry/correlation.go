package telemetry

import (
	"github.com/OneOfOne/xxhash"
)

// CorrelationID derives a stable correlation id for a sanitized query
// template, letting a telemetry sink group spans by statement shape
// without hashing raw (unsanitized) SQL. Grounded on the teacher's
// util/hash_utils.go HashCode, which wraps the same xxhash.New64 for
// statement-cache keys; reused here for the same "cheap stable fingerprint
// of a string" purpose.
func CorrelationID(sanitizedSQL string) uint64 {
	h := xxhash.New64()
	h.Write([]byte(sanitizedSQL))
	return h.Sum64()
}
