package core

import (
	"encoding/json"
	"fmt"
)

// SanitizeMetadata returns a copy of md in which every value is JSON-safe.
// Numbers, strings, booleans, nil, and nested maps/slices pass through
// unchanged; anything json.Marshal would reject (channels, functions, complex
// numbers) is stringified with %v. The store itself performs no coercion, so
// callers that build metadata from arbitrary values run their input through
// this before writing.
func SanitizeMetadata(md map[string]interface{}) map[string]interface{} {
	if md == nil {
		return nil
	}
	out := make(map[string]interface{}, len(md))
	for k, v := range md {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return val
	case map[string]interface{}:
		return SanitizeMetadata(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		// Structs and other marshalable composites round-trip fine; only
		// stringify what the JSON encoder cannot represent.
		if _, err := json.Marshal(val); err == nil {
			return val
		}
		return fmt.Sprintf("%v", val)
	}
}
