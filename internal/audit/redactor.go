package audit

// Mask replaces the values of denylisted keys in redacted records.
const Mask = "[REDACTED]"

// sensitiveKeys is the fixed, case-sensitive denylist of field names whose
// values must never reach the audit store.
var sensitiveKeys = map[string]struct{}{
	"password":   {},
	"token":      {},
	"secret":     {},
	"key":        {},
	"creditCard": {},
	"ssn":        {},
	"pin":        {},
	"cvv":        {},
}

// Redact returns a copy of record with every denylisted top-level key masked.
// All other keys pass through unchanged; nested structures are not descended
// into. A nil record yields nil.
func Redact(record map[string]interface{}) map[string]interface{} {
	if record == nil {
		return nil
	}

	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		if _, ok := sensitiveKeys[k]; ok {
			out[k] = Mask
			continue
		}
		out[k] = v
	}
	return out
}
