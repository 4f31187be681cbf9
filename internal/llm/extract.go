package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// fencedBlock matches a markdown code fence, optionally tagged json, whose
// body starts with an object.
var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?)```")

// Validator checks a decoded value after JSON extraction.
type Validator[T any] func(T) error

// ExtractObject extracts exactly one JSON object from raw provider text.
// A fenced code block is preferred; otherwise the first balanced {...} span
// is used. Only that one span is tried.
func ExtractObject(raw string) (map[string]any, error) {
	return ExtractJSON[map[string]any](raw, nil)
}

// ExtractJSON extracts the first JSON object in raw and decodes it into T.
// If validator is non-nil, the decoded value is validated before return.
func ExtractJSON[T any](raw string, validator Validator[T]) (T, error) {
	var zero T

	span := findObjectSpan(raw)
	if span == "" {
		return zero, fmt.Errorf("%w: no JSON object found in response", ErrExtractionFailed)
	}

	var result T
	if err := json.Unmarshal([]byte(span), &result); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	if validator != nil {
		if err := validator(result); err != nil {
			return zero, fmt.Errorf("%w: validation failed: %v", ErrExtractionFailed, err)
		}
	}
	return result, nil
}

func findObjectSpan(raw string) string {
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		if span := balancedBlock(m[1]); span != "" {
			return span
		}
	}
	return balancedBlock(raw)
}

// balancedBlock finds the first balanced { ... } block in s. Braces inside
// JSON strings are ignored.
func balancedBlock(s string) string {
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			start = i
			break
		}
	}
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return ""
}
