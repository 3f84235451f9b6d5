package core

import "strings"

const RedactedValue = "[REDACTED]"

var sensitiveKeyFragments = []string{
	"access_token",
	"accesstoken",
	"authorization",
	"certificate",
	"code",
	"password",
	"secret",
}

// RedactFields masks values whose key names credential material. Nested maps
// are walked; other values are copied as is.
func RedactFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if isSensitiveKey(key) {
			out[key] = RedactedValue
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[key] = RedactFields(nested)
			continue
		}
		out[key] = value
	}
	return out
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	switch key {
	case "", "client_id", "clientid", "has_code", "expected_state", "state":
		return false
	}
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}
