package events

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// SanitizeMap returns a copy of data in which every value is JSON-safe.
// Nil input yields an empty map so event payloads always serialize to an
// object rather than null.
func SanitizeMap(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = sanitizeValue(v)
	}
	return out
}

// sanitizeValue normalizes a single value:
//   - NaN and infinities become nil (JSON null)
//   - time.Time becomes an RFC 3339 string
//   - maps and slices are sanitized recursively
//   - anything json.Marshal rejects is stringified via fmt
func sanitizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(time.RFC3339)
	case map[string]any:
		return SanitizeMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return val
	default:
		// Structs and other types go through the JSON encoder once; if they
		// fail there they would fail at the transport too, so fall back to
		// their string form.
		if _, err := json.Marshal(val); err != nil {
			return fmt.Sprintf("%v", val)
		}
		return val
	}
}
