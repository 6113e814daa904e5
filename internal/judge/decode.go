package judge

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// decodeJSON unmarshals a model response into v. Responses are asked
// for as bare JSON but often arrive wrapped in markdown fences or
// surrounded by prose, so decoding degrades through three attempts:
// the raw text, the fenced block, then the first balanced object.
func decodeJSON(raw string, v any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return eris.New("judge: empty response")
	}

	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}

	if fenced := stripFences(raw); fenced != raw {
		if err := json.Unmarshal([]byte(fenced), v); err == nil {
			return nil
		}
	}

	if block := firstObject(raw); block != "" {
		if err := json.Unmarshal([]byte(block), v); err == nil {
			return nil
		}
	}

	return eris.Errorf("judge: no decodable JSON in %d-byte response", len(raw))
}

// stripFences removes a surrounding markdown code fence, with or
// without a language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// firstObject returns the first balanced top-level JSON object in s,
// or "" if none closes. Brace counting ignores braces inside strings.
func firstObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}

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
				return s[start : i+1]
			}
		}
	}
	return ""
}
