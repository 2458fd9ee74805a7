package pipeline

import "strings"

// canonicalKeys is checked in priority order. Order matters: an extracted
// field can match more than one substring (a field named "temp_voltage"
// matches both "temp" and "volt"), and the first hit wins.
var canonicalKeys = []struct {
	substr    string
	canonical string
}{
	{"soc", "soc"},
	{"volt", "voltage"},
	{"curr", "current"},
	{"cap", "capacity"},
	{"temp", "temperature"},
}

// CoreMetrics is the fixed set of canonical metric names used for
// per-extraction verification flags.
var CoreMetrics = []string{"soc", "voltage", "current", "capacity", "temperature"}

// NormalizeKey maps a free-form extracted field name to a canonical metric
// key, or to a cleaned form of the original when no canonical substring
// matches. Pure and total; an empty or fully-stripped key maps to "" and the
// caller should treat that as unnamed.
//
// Known limitation: substring matching is heuristic and can misclassify
// composite names ("overcurrent_protection_voltage" hits "volt" and lands
// on voltage, not current). The priority order is deliberate and must not
// be reordered.
func NormalizeKey(raw string) string {
	lower := strings.ToLower(raw)
	for _, ck := range canonicalKeys {
		if strings.Contains(lower, ck.substr) {
			return ck.canonical
		}
	}
	return cleanKey(lower)
}

// cleanKey strips everything outside [a-z0-9_] and collapses repeated
// underscores.
func cleanKey(lower string) string {
	var b strings.Builder
	b.Grow(len(lower))
	lastUnderscore := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_':
			if !lastUnderscore {
				b.WriteByte('_')
			}
			lastUnderscore = true
		}
	}
	return b.String()
}
