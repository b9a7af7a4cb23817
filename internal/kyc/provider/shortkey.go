package provider

import (
	"strings"

	"github.com/tidwall/gjson"
)

const shortKeyLen = 7

// SessionURL reads the sessionUrl field from a provider response.
func SessionURL(body []byte) (string, bool) {
	v := gjson.GetBytes(body, "sessionUrl")
	if !v.Exists() || v.Type != gjson.String || v.Str == "" {
		return "", false
	}
	return v.Str, true
}

// ExtractShortKey returns the last path segment of sessionURL, truncated to
// its final seven characters. Shorter segments are returned whole.
func ExtractShortKey(sessionURL string) string {
	last := sessionURL[strings.LastIndex(sessionURL, "/")+1:]
	if len(last) >= shortKeyLen {
		return last[len(last)-shortKeyLen:]
	}
	return last
}
