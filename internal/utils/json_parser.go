package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseAIJSON extracts and parses a JSON value from model output that may be:
// - Pure JSON (the common case for tool-call arguments)
// - JSON wrapped in markdown code blocks (```json ... ```)
// - JSON with surrounding prose
func ParseAIJSON(input string, target interface{}) error {
	if input == "" {
		return fmt.Errorf("empty input")
	}

	// Try direct parsing first (most common case)
	if err := json.Unmarshal([]byte(input), target); err == nil {
		return nil
	}

	// Try to extract JSON from markdown code blocks
	if extracted := extractFromMarkdown(input); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), target); err == nil {
			return nil
		}
	}

	// Try to find a JSON object or array in surrounding text
	if extracted := extractJSONFromText(input); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), target); err == nil {
			return nil
		}
		// Last resort: strip trailing commas, a common model mistake
		if err := json.Unmarshal([]byte(stripTrailingCommas(extracted)), target); err == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to parse JSON from input: %s", truncateString(input, 100))
}

var (
	fencedJSON    = regexp.MustCompile("(?s)```json\\s*(.+?)\\s*```")
	fencedAny     = regexp.MustCompile("(?s)```\\s*(.+?)\\s*```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// extractFromMarkdown extracts JSON from markdown code blocks
func extractFromMarkdown(input string) string {
	if matches := fencedJSON.FindStringSubmatch(input); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	if matches := fencedAny.FindStringSubmatch(input); len(matches) > 1 {
		content := strings.TrimSpace(matches[1])
		if strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[") {
			return content
		}
	}
	return ""
}

// extractJSONFromText finds a JSON object or array in surrounding text
func extractJSONFromText(input string) string {
	if start := strings.Index(input, "{"); start >= 0 {
		if extracted := extractBalanced(input[start:], '{', '}'); extracted != "" {
			return extracted
		}
	}
	if start := strings.Index(input, "["); start >= 0 {
		if extracted := extractBalanced(input[start:], '[', ']'); extracted != "" {
			return extracted
		}
	}
	return ""
}

// extractBalanced extracts a span with balanced open/close runes,
// ignoring brackets inside JSON strings
func extractBalanced(input string, open, close rune) string {
	depth := 0
	inString := false
	escape := false
	start := 0

	for i, ch := range input {
		if escape {
			escape = false
			continue
		}
		if ch == '\\' {
			escape = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if ch == open {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == close {
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}

	return ""
}

// stripTrailingCommas removes commas before closing braces/brackets
func stripTrailingCommas(input string) string {
	return trailingComma.ReplaceAllString(input, "$1")
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
