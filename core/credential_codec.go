package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeRecord serializes a persisted record value.
func EncodeRecord[T any](value T) (string, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("core: encode record: %w", err)
	}
	return string(encoded), nil
}

// DecodeRecord is the fallible decode used on every persisted read. Absent,
// blank, "null" and malformed payloads all report ok=false.
func DecodeRecord[T any](payload string) (T, bool) {
	var zero T
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" || trimmed == "null" {
		return zero, false
	}
	var decoded T
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return zero, false
	}
	return decoded, true
}

// DecodeCertificate validates the JSON-encoded delegation certificate
// carried in service credentials and returns it compacted. Key order and
// string contents are kept as issued.
func DecodeCertificate(certificate string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(certificate)
	if trimmed == "" {
		return nil, nil
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, fmt.Errorf("core: invalid certificate payload: malformed json")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return nil, fmt.Errorf("core: invalid certificate payload: expected a json object")
	}
	var compacted bytes.Buffer
	if err := json.Compact(&compacted, []byte(trimmed)); err != nil {
		return nil, fmt.Errorf("core: invalid certificate payload: %w", err)
	}
	return json.RawMessage(compacted.Bytes()), nil
}
