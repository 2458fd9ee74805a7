package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"battery_project/internal/domain"
)

// ErrExtractedParse marks an extraction whose payload could not be parsed as
// JSON at all. This is a hard failure surfaced to the caller; downstream code
// never receives an empty point pretending to be valid data.
var ErrExtractedParse = errors.New("extracted data is not valid JSON")

// BuildDataPoint flattens an extraction payload into a single flat point at
// the supplied epoch-millisecond timestamp. Nested objects are walked
// recursively with the parent key prefixed (joined by "_") before
// normalization; arrays are opaque leaves only attempted as a single numeric
// scalar. Fields that do not coerce to a finite number are silently dropped,
// as are fields whose key is case-insensitively "timestamp" (the point's
// timestamp is always the one supplied).
func BuildDataPoint(extracted string, ts int64) (domain.DataPoint, error) {
	dec := json.NewDecoder(strings.NewReader(extracted))
	dec.UseNumber()

	var root map[string]interface{}
	if err := dec.Decode(&root); err != nil {
		return domain.DataPoint{}, fmt.Errorf("%w: %v", ErrExtractedParse, err)
	}
	if root == nil {
		// "null" decodes cleanly but is not an object; refusing it here keeps
		// empty points out of the merge path.
		return domain.DataPoint{}, fmt.Errorf("%w: payload is null", ErrExtractedParse)
	}

	point := domain.NewDataPoint(ts)
	flattenInto(point.Values, "", root)
	return point, nil
}

// ExtractedKeys returns the normalized metric keys an extraction payload
// would produce, without building a point. Used for verification flags.
func ExtractedKeys(extracted string) map[string]bool {
	point, err := BuildDataPoint(extracted, 0)
	if err != nil {
		return nil
	}
	keys := make(map[string]bool, len(point.Values))
	for k := range point.Values {
		keys[k] = true
	}
	return keys
}

func flattenInto(values map[string]float64, prefix string, obj map[string]interface{}) {
	for key, raw := range obj {
		if strings.EqualFold(key, "timestamp") {
			continue
		}

		path := key
		if prefix != "" {
			path = prefix + "_" + key
		}

		if nested, ok := raw.(map[string]interface{}); ok {
			flattenInto(values, path, nested)
			continue
		}

		name := NormalizeKey(path)
		if name == "" {
			// Fully-stripped key: unnamed, discard.
			continue
		}

		if v, ok := coerceFloat(raw); ok {
			values[name] = v
		}
	}
}

// coerceFloat converts a JSON leaf to a finite float64. Single-element
// arrays are unwrapped once; anything else non-numeric fails coercion.
func coerceFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return finite(f)
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case []interface{}:
		if len(v) != 1 {
			return 0, false
		}
		if _, again := v[0].([]interface{}); again {
			return 0, false
		}
		return coerceFloat(v[0])
	}
	return 0, false
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
