package core

import (
	"sort"
	"strings"
)

// ParseQuery splits a raw redirect query string into a flat mapping.
//
// A single leading "?" is ignored. Pairs are split on "&" and then on the
// first "="; a repeated parameter keeps its last value. Values are returned
// exactly as they appear in the input: no percent-decoding is applied, so
// callers that need decoded values must decode them (or let the transport
// layer do it) before use.
func ParseQuery(query string) map[string]string {
	out := map[string]string{}
	query = strings.TrimPrefix(query, "?")
	if query == "" {
		return out
	}
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// EncodeQuery joins a mapping into a query string with sorted keys. Like
// ParseQuery it performs no escaping.
func EncodeQuery(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+values[key])
	}
	return strings.Join(parts, "&")
}

// AuthorizationCodeFromQuery extracts the code/state pair from a parsed
// redirect query.
func AuthorizationCodeFromQuery(params map[string]string) (AuthorizationCode, bool) {
	code := strings.TrimSpace(params["code"])
	if code == "" {
		return AuthorizationCode{}, false
	}
	return AuthorizationCode{
		Code:  code,
		State: strings.TrimSpace(params["state"]),
	}, true
}
