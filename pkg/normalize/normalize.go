// Package normalize converts free-form model output into typed ability
// results. It is the single seam where model entropy is absorbed: for any
// input string it returns a usable result and never returns an error.
package normalize

import (
	"encoding/json"
	"strings"

	"supportflow/pkg/state"
)

// Normalize parses a raw text payload into an ability result for the given
// ability name.
//
// Strategy, in order:
//  1. Strict JSON parse of the whole payload. If the parsed object's single
//     top-level key already equals the ability name, it is used as-is;
//     otherwise the parsed value is wrapped under the ability name.
//  2. On parse failure, the first balanced {...} or [...] substring inside
//     the text is extracted and step 1 retried on it.
//  3. Fallback: {<ability>: {raw: <original text>, parsed: false}}.
func Normalize(ability, raw string) state.Result {
	trimmed := strings.TrimSpace(raw)

	if parsed, ok := parseStrict(trimmed); ok {
		return wrap(ability, parsed)
	}

	if candidate, ok := balancedSubstring(trimmed); ok {
		if parsed, ok := parseStrict(candidate); ok {
			return wrap(ability, parsed)
		}
	}

	return state.NewResult(ability, map[string]any{
		ability: map[string]any{"raw": raw, "parsed": false},
	})
}

// NormalizeString handles abilities whose contract is a plain string answer
// rather than a JSON object: the trimmed text is stored under the ability name.
func NormalizeString(ability, raw string) state.Result {
	return state.NewResult(ability, map[string]any{
		ability: strings.TrimSpace(raw),
	})
}

func parseStrict(text string) (any, bool) {
	if text == "" {
		return nil, false
	}
	// Only object/array literals count as structured output; bare scalars
	// ("42", "true") are treated as free text.
	if text[0] != '{' && text[0] != '[' {
		return nil, false
	}
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// wrap shapes a successfully parsed value into field updates. A map whose
// sole top-level key matches the ability name is taken verbatim; anything
// else is nested under the ability name.
func wrap(ability string, parsed any) state.Result {
	if m, ok := parsed.(map[string]any); ok && len(m) == 1 {
		if _, ok := m[ability]; ok {
			return state.NewResult(ability, m)
		}
	}
	return state.NewResult(ability, map[string]any{ability: parsed})
}

// balancedSubstring finds the first balanced JSON object or array inside
// text, tracking string literals and escapes so braces in strings do not
// confuse the scan.
func balancedSubstring(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}

	open := text[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// Skip structural characters inside strings.
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
