// Package redact implements the deep, structure-preserving redaction pass
// applied to tool arguments, tool results, and any value before it is
// logged or persisted. It never mutates its input and never panics across
// its public boundary: internal failures degrade to a safe sentinel rather
// than risk leaking a raw secret.
package redact

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// sentinel replaces a redacted leaf value.
const sentinel = "[REDACTED]"

// errorSentinelKey is the key used for the safe fallback value returned
// when redaction itself fails unexpectedly.
const errorSentinelKey = "_error"

// sensitiveKeys is the case-insensitive set of keys always redacted.
var sensitiveKeys = map[string]bool{
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"api_key":       true,
	"apikey":        true,
	"secret":        true,
	"password":      true,
	"cookie":        true,
	"authorization": true,
	"auth_token":    true,
}

// jwtLikePattern matches a triple-segment base64url blob longer than 20
// characters, a JWT-shape test independent of key name.
var jwtLikePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)

// vendorPrefixes are well-known secret prefixes redacted regardless of key.
var vendorPrefixes = []string{"sk-", "ghp_"}

// Result is the outcome of a Value call: the redacted copy plus every
// dotted path that was replaced, sorted for deterministic comparison.
type Result struct {
	Value         any
	RedactedPaths []string
}

// Value walks v (maps, slices, and scalars) and returns a deep copy with
// every sensitive leaf replaced by a sentinel, alongside the dotted paths
// that were redacted. It never returns an error: on an unexpected internal
// failure it returns the safe sentinel object instead of the raw value.
func Value(v any) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Value:         map[string]any{errorSentinelKey: "redaction_failed"},
				RedactedPaths: nil,
			}
		}
	}()

	var paths []string
	redacted := walk(v, "", &paths)
	sort.Strings(paths)
	return Result{Value: redacted, RedactedPaths: paths}
}

func walk(v any, path string, paths *[]string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			childPath := joinPath(path, k)
			if keyIsSensitive(k) {
				out[k] = sentinel
				*paths = append(*paths, childPath)
				continue
			}
			if s, ok := child.(string); ok && valueLooksSensitive(s) {
				out[k] = sentinel
				*paths = append(*paths, childPath)
				continue
			}
			out[k] = walk(child, childPath, paths)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			childPath := joinPath(path, strconv.Itoa(i))
			if s, ok := child.(string); ok && valueLooksSensitive(s) {
				out[i] = sentinel
				*paths = append(*paths, childPath)
				continue
			}
			out[i] = walk(child, childPath, paths)
		}
		return out
	case string:
		if valueLooksSensitive(t) {
			*paths = append(*paths, path)
			return sentinel
		}
		return t
	default:
		return t
	}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func keyIsSensitive(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// valueLooksSensitive flags values that look like secrets by shape alone,
// independent of the containing key.
func valueLooksSensitive(s string) bool {
	if len(s) > 20 && jwtLikePattern.MatchString(s) {
		return true
	}
	if len(s) > len("bearer ") && strings.EqualFold(s[:7], "Bearer ") {
		return true
	}
	for _, prefix := range vendorPrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// ContentHash computes the SHA-256 hex digest used for Memory dedup,
// applied to content after redaction.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum)
}
