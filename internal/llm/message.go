package llm

import (
	"strings"

	"essaylens/internal/config"
)

// Message is one assistant reply. Thinking models may leave Content empty and
// put their deliberation in Reasoning.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Reasoning string `json:"reasoning_content,omitempty"`
}

// Answer returns the usable final text for a model family. Content wins when
// present. For the "thinking" family an empty Content falls back to the last
// complete sentence of Reasoning, or its trimmed tail when no sentence ends.
func (m Message) Answer(family string) string {
	if c := strings.TrimSpace(m.Content); c != "" {
		return c
	}
	if family != config.FamilyThinking {
		return ""
	}
	return LastSentence(m.Reasoning)
}

// LastSentence returns the last '.', '!' or '?' terminated sentence of text.
// Without a terminator it returns the trimmed trailing text.
func LastSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	var last string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if cand := strings.TrimSpace(text[start : i+1]); cand != "" {
				last = cand
			}
			start = i + 1
		}
	}
	if last != "" {
		return last
	}
	return strings.TrimSpace(text[start:])
}
