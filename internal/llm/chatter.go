package llm

import (
	"context"
	"encoding/json"
	"iter"
)

// Chatter is the narrow chat capability the grading pipeline depends on. It
// does not tell a remote llama-server apart from an in-process model.
type Chatter interface {
	Chat(ctx context.Context, system, user string, maxTokens int, opts ...CallOption) (string, error)
	ChatMessage(ctx context.Context, system, user string, maxTokens int, opts ...CallOption) (Message, error)
	JSONSchemaChat(ctx context.Context, system, user string, maxTokens int, schema map[string]any) (json.RawMessage, error)
}

// Streamer yields a reply incrementally.
type Streamer interface {
	ChatStream(ctx context.Context, system, user string, maxTokens int, opts ...CallOption) iter.Seq2[string, error]
}
