package analysis

import (
	"regexp"
	"strings"
)

// fencePattern matches a whole response wrapped in a fenced code block with
// an optional language tag.
var fencePattern = regexp.MustCompile("(?s)^```([\\w.+-]*)?\\s*\\n?(.*?)\\n?\\s*```$")

// ExtractJSON returns the best-effort JSON payload of raw model text.
//
// The input is trimmed first. When it is entirely wrapped in a fence with a
// non-empty body, the trimmed body is returned; otherwise the trimmed input
// is returned unchanged. The result is never validated as JSON here.
func ExtractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	match := fencePattern.FindStringSubmatch(text)
	if match == nil || match[2] == "" {
		return text
	}
	return strings.TrimSpace(match[2])
}
