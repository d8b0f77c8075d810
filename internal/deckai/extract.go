package deckai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject parses the first JSON object found in text. Model
// output frequently wraps the object in prose or markdown fences, so a
// plain unmarshal is tried first and a balanced-brace scan second.
func ExtractJSONObject(text string, v interface{}) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty model response")
	}

	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	start := strings.IndexByte(text, '{')
	if start == -1 {
		return fmt.Errorf("no JSON object in model response")
	}

	depth := 0
	inStr := false
	esc := false

	for i := start; i < len(text); i++ {
		ch := text[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case ch == '\\':
				esc = true
			case ch == '"':
				inStr = false
			}
			continue
		}

		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if err := json.Unmarshal([]byte(candidate), v); err != nil {
					return fmt.Errorf("JSON object parse failed: %w", err)
				}
				return nil
			}
		}
	}

	return fmt.Errorf("unclosed JSON object in model response")
}
