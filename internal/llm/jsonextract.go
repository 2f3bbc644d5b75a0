package llm

import (
	"encoding/json"
	"strings"
)

// ExtractLastJSONObject returns the last balanced top-level JSON object in
// text. Every '{' is tried as a start; a successful parse skips the braces it
// contains, so nested objects never shadow their parent. Models that wrap the
// JSON in commentary are tolerated.
func ExtractLastJSONObject(text string) (json.RawMessage, bool) {
	var last json.RawMessage
	for i := 0; i < len(text); {
		j := strings.IndexByte(text[i:], '{')
		if j < 0 {
			break
		}
		start := i + j
		dec := json.NewDecoder(strings.NewReader(text[start:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			i = start + 1
			continue
		}
		last = raw
		i = start + int(dec.InputOffset())
	}
	return last, last != nil
}

// decodeJSONReply parses content as JSON, repairing it by extraction when the
// whole text does not parse.
func decodeJSONReply(content string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(content)
	if json.Valid([]byte(trimmed)) && trimmed != "" {
		return json.RawMessage(trimmed), nil
	}
	if raw, ok := ExtractLastJSONObject(content); ok {
		return raw, nil
	}
	return nil, &DecodeError{Raw: content}
}
