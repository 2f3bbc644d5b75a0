// Package chatml renders conversations in the ChatML template used by the
// Qwen family and handles the thinking-mode conventions around it.
package chatml

import "strings"

const (
	imStart = "<|im_start|>"
	// Stop ends every assistant turn.
	Stop = "<|im_end|>"
	// AssistantHeader opens the turn the model is expected to complete.
	AssistantHeader = imStart + "assistant\n"
)

// Thinking-mode switches understood by Qwen3 models.
const (
	ModeNoThink = "no_think"
	ModeThink   = "think"
)

// Message is one ChatML turn.
type Message struct {
	Role    string
	Content string
}

// Format renders msgs and, when open is true, appends the assistant header
// so the model continues from there.
func Format(msgs []Message, open bool) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(imStart)
		b.WriteString(m.Role)
		b.WriteByte('\n')
		b.WriteString(m.Content)
		b.WriteString(Stop)
		b.WriteByte('\n')
	}
	if open {
		b.WriteString(AssistantHeader)
	}
	return b.String()
}

// WithMode prefixes a system prompt with the directive for mode. Unknown or
// empty modes leave it unchanged.
func WithMode(mode, system string) string {
	switch mode {
	case ModeNoThink:
		return "/no_think\n" + system
	case ModeThink:
		return "/think\n" + system
	}
	return system
}

// SplitThinking separates a <think>...</think> block from the answer. An
// unterminated block is treated as reasoning with no answer.
func SplitThinking(text string) (content, reasoning string) {
	const open, closeTag = "<think>", "</think>"
	i := strings.Index(text, open)
	if i < 0 {
		// some templates open the block in the prompt, leaving only the close tag
		if j := strings.Index(text, closeTag); j >= 0 {
			return strings.TrimSpace(text[j+len(closeTag):]), strings.TrimSpace(text[:j])
		}
		return strings.TrimSpace(text), ""
	}
	rest := text[i+len(open):]
	j := strings.Index(rest, closeTag)
	if j < 0 {
		return strings.TrimSpace(text[:i]), strings.TrimSpace(rest)
	}
	content = strings.TrimSpace(text[:i] + rest[j+len(closeTag):])
	return content, strings.TrimSpace(rest[:j])
}
