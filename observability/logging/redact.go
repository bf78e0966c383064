package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Keys the node logs in the clear. Anything else passed through MaskField is
// treated as a secret.
var clearKeys = map[string]struct{}{
	"service": {}, "env": {}, "component": {}, "error": {},
	"op": {}, "caller": {}, "method": {}, "events": {},
	"listing": {}, "offer": {}, "dispute": {}, "grant": {},
	"address": {}, "backend": {}, "storage": {}, "config": {},
	"listen": {}, "policy": {},
}

// IsAllowlisted reports whether key may be logged without masking.
func IsAllowlisted(key string) bool {
	_, ok := clearKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// RedactionAllowlist returns the clear keys in sorted order.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(clearKeys))
	for key := range clearKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskValue hides non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField keeps allowlisted keys and empty values; everything else is
// masked.
func MaskField(key, value string) slog.Attr {
	if IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, MaskValue(value))
}

// MaskSecrets renders a set of configuration fields as attributes in key
// order, masking every field that is not allowlisted.
func MaskSecrets(fields map[string]string) []any {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, key := range keys {
		out = append(out, MaskField(key, fields[key]))
	}
	return out
}
