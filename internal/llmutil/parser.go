// File: internal/llmutil/parser.go
package llmutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Regexes use \x60 for backticks because Go raw strings cannot contain them.
var (
	// jsonObjectRegex extracts a JSON object wrapped in a markdown fence.
	jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	// jsonArrayRegex extracts a JSON array wrapped in a markdown fence.
	jsonArrayRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
	// codeBlockRegex extracts fenced content regardless of language tag.
	codeBlockRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")
)

// ParseJSONResponse parses an LLM response string into a target Go type,
// tolerating the usual formatting quirks: markdown fences around the payload
// and conversational text before or after it.
func ParseJSONResponse[T any](response string) (*T, error) {
	response = strings.TrimSpace(response)
	candidate := response

	looksObject := strings.Contains(response, "{")
	looksArray := strings.Contains(response, "[")

	if strings.HasPrefix(response, "```") {
		var matches []string
		if looksObject {
			matches = jsonObjectRegex.FindStringSubmatch(response)
		}
		if len(matches) <= 1 && looksArray {
			matches = jsonArrayRegex.FindStringSubmatch(response)
		}
		if len(matches) > 1 {
			candidate = matches[1]
		}
	} else if !strings.HasPrefix(response, "{") && !strings.HasPrefix(response, "[") {
		// Hunt for the structure inside surrounding prose.
		if s, ok := sliceBetween(response, "{", "}"); ok {
			candidate = s
		} else if s, ok := sliceBetween(response, "[", "]"); ok {
			candidate = s
		}
	}

	var result T
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, Truncate(candidate, 500))
	}
	return &result, nil
}

// sliceBetween returns the substring from the first open delimiter to the
// last close delimiter, when both exist in order.
func sliceBetween(s, open, close string) (string, bool) {
	first := strings.Index(s, open)
	last := strings.LastIndex(s, close)
	if first == -1 || last == -1 || last <= first {
		return "", false
	}
	return s[first : last+1], true
}

// CleanCodeOutput strips markdown fences (```python, ```go, ...) from a code
// snippet returned by an LLM.
func CleanCodeOutput(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if matches := codeBlockRegex.FindStringSubmatch(content); len(matches) > 1 {
			return strings.TrimSpace(matches[1])
		}
	}
	return content
}

// Truncate cuts a string to maxLen for error messages and logs. Byte-based;
// good enough for diagnostics.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
