package adapters

import (
	"encoding/base64"
	"regexp"
	"strings"
)

var (
	dataURIPattern = regexp.MustCompile(`^data:([a-zA-Z0-9.+/-]+);base64,`)
	bearerPattern  = regexp.MustCompile(`^Bearer\s+`)
)

// StripDataURI removes a leading data:<mime>;base64, prefix and returns the
// bare base64 payload plus the declared MIME type. Inputs without the prefix
// pass through unchanged with an empty MIME type.
func StripDataURI(s string) (payload, mimeType string) {
	m := dataURIPattern.FindStringSubmatch(s)
	if m == nil {
		return s, ""
	}
	return s[len(m[0]):], m[1]
}

// EnsureDataURI converts a bare base64 payload into a data URI with the
// given MIME type. URLs and strings that are already data URIs pass through.
func EnsureDataURI(s, defaultMIME string) string {
	if IsURL(s) || dataURIPattern.MatchString(s) {
		return s
	}
	return "data:" + defaultMIME + ";base64," + s
}

// NormalizeAPIKey strips surrounding whitespace and a leading "Bearer "
// prefix from a supplied API key. Callers re-prefix "Bearer " when building
// the Authorization header.
func NormalizeAPIKey(s string) string {
	s = strings.TrimSpace(s)
	s = bearerPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// TrimBaseURL strips trailing slashes from a base URL.
func TrimBaseURL(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}

// IsURL reports whether s looks like an http(s) URL rather than inline data.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// EncodeBase64 encodes raw bytes with standard base64.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes a bare base64 payload (data-URI prefix already
// stripped).
func DecodeBase64(payload string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(payload)
}
