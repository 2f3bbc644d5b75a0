package kvcache

import (
	"context"
	"encoding/json"

	"essaylens/internal/chatml"
	"essaylens/internal/llm"
)

// Chatter exposes the engine's uncached path through llm.Chatter, so callers
// that only need plain chat cannot tell it from a remote server.
func (e *Engine) Chatter() llm.Chatter { return chatter{e} }

type chatter struct{ e *Engine }

func (c chatter) Chat(ctx context.Context, system, user string, maxTokens int, opts ...llm.CallOption) (string, error) {
	m, err := c.ChatMessage(ctx, system, user, maxTokens, opts...)
	return m.Content, err
}

func (c chatter) ChatMessage(ctx context.Context, system, user string, maxTokens int, opts ...llm.CallOption) (llm.Message, error) {
	text, err := c.e.GenerateWithoutCache(ctx, system, user, maxTokens, opts...)
	if err != nil {
		return llm.Message{}, err
	}
	content, reasoning := chatml.SplitThinking(text)
	return llm.Message{Role: "assistant", Content: content, Reasoning: reasoning}, nil
}

func (c chatter) JSONSchemaChat(ctx context.Context, system, user string, maxTokens int, schema map[string]any) (json.RawMessage, error) {
	return c.e.JSONSchemaChatWithoutCache(ctx, system, user, maxTokens, schema)
}
