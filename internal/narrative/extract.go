package narrative

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls one JSON object out of free-form model output. The whole
// trimmed text is tried first; otherwise the first balanced {...} span wins,
// which also covers objects wrapped in markdown code fences. Anything else is
// a ResponseParseError carrying the raw text.
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &ResponseParseError{Raw: text, Err: fmt.Errorf("empty response")}
	}

	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return json.RawMessage(trimmed), nil
	}

	if span, ok := balancedObject(trimmed); ok {
		return json.RawMessage(span), nil
	}

	return nil, &ResponseParseError{Raw: text, Err: fmt.Errorf("no balanced object found")}
}

// balancedObject scans for the first brace-balanced span that parses as JSON.
// Braces inside string literals do not count toward the depth.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false

		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					span := s[start : i+1]
					if json.Valid([]byte(span)) {
						return span, true
					}
					i = len(s) // malformed span, try the next opening brace
				}
			}
		}

		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start = start + 1 + next
	}

	return "", false
}
