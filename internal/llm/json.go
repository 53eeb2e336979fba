package llm

import (
	"encoding/json"
)

// ExtractJSONObject scans text for the first balanced top-level {...} and
// parses it. Unlike a permissive markdown-fence-stripping parse, this never
// guesses at structure: it either finds one complete brace-balanced object
// and decodes it, or it reports failure. Callers must not fall back to
// fuzzy key inference on failure.
func ExtractJSONObject(text string) (map[string]any, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]

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
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					var result map[string]any
					if err := json.Unmarshal([]byte(text[start:i+1]), &result); err != nil {
						return nil, false
					}
					return result, true
				}
			}
		}
	}

	return nil, false
}
