package helpers

import (
	"errors"
	"strings"
)

// ExtractJSON finds and returns the first JSON object or array in s. Model
// replies often wrap JSON in Markdown code fences or surround it with prose,
// so the fence is stripped first and then a balanced {...} or [...] segment
// is scanned out, ignoring braces inside strings.
func ExtractJSON(s string) (string, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))

	if inner, ok := stripCodeFence(s); ok {
		s = strings.TrimSpace(inner)
	}

	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			if out, ok := balancedJSONAt(s, i); ok {
				return out, nil
			}
		}
	}

	return "", errors.New("no balanced JSON object/array found")
}

// stripCodeFence removes the first fenced code block when s starts with one.
// An optional language tag after the opening fence (e.g. ```json) is skipped.
func stripCodeFence(s string) (string, bool) {
	trim := strings.TrimLeft(s, "\n\r\t ")
	var fence string
	switch {
	case strings.HasPrefix(trim, "```"):
		fence = "```"
	case strings.HasPrefix(trim, "~~~"):
		fence = "~~~"
	default:
		return "", false
	}
	rest := trim[len(fence):]
	nl := strings.IndexByte(rest, '\n')
	if nl == -1 {
		return "", false
	}
	rest = rest[nl+1:]
	if end := strings.Index(rest, fence); end != -1 {
		return rest[:end], true
	}
	return "", false
}

// balancedJSONAt extracts a balanced JSON value starting at start, handling
// strings and escape sequences so braces inside them do not confuse the scan.
func balancedJSONAt(s string, start int) (string, bool) {
	if s[start] != '{' && s[start] != '[' {
		return "", false
	}

	var stack []byte
	var inString, escape bool
	stack = append(stack, s[start])

	for i := start + 1; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			top := stack[len(stack)-1]
			if (top == '{' && c != '}') || (top == '[' && c != ']') {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
