package feedback

import (
	"context"
	"encoding/json"
	"iter"

	"essaylens/internal/kvcache"
	"essaylens/internal/llm"
)

type call struct {
	system, user string
	maxTokens    int
	temperature  float64
	cached       bool
}

// fakeChatter answers from queues and records each call.
type fakeChatter struct {
	replies  []string
	messages []llm.Message
	json     []string
	chunks   []string
	err      error
	calls    []call
}

func (f *fakeChatter) record(system, user string, maxTokens int, opts []llm.CallOption) {
	f.calls = append(f.calls, call{system: system, user: user, maxTokens: maxTokens, temperature: llm.Temperature(-1, opts...)})
}

func (f *fakeChatter) Chat(_ context.Context, system, user string, maxTokens int, opts ...llm.CallOption) (string, error) {
	f.record(system, user, maxTokens, opts)
	if f.err != nil {
		return "", f.err
	}
	return pop(&f.replies), nil
}

func (f *fakeChatter) ChatMessage(_ context.Context, system, user string, maxTokens int, opts ...llm.CallOption) (llm.Message, error) {
	f.record(system, user, maxTokens, opts)
	if f.err != nil {
		return llm.Message{}, f.err
	}
	if len(f.messages) == 0 {
		return llm.Message{Role: "assistant"}, nil
	}
	m := f.messages[0]
	f.messages = f.messages[1:]
	return m, nil
}

func (f *fakeChatter) JSONSchemaChat(_ context.Context, system, user string, maxTokens int, _ map[string]any) (json.RawMessage, error) {
	f.record(system, user, maxTokens, nil)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(pop(&f.json)), nil
}

// streamingChatter adds ChatStream.
type streamingChatter struct{ *fakeChatter }

func (s streamingChatter) ChatStream(_ context.Context, system, user string, maxTokens int, opts ...llm.CallOption) iter.Seq2[string, error] {
	s.record(system, user, maxTokens, opts)
	return func(yield func(string, error) bool) {
		for _, c := range s.chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

// fakeEngine replays scripted generations for the KV paths.
type fakeEngine struct {
	chat      *fakeChatter
	generated []string
	json      []string
	calls     []call
	ingested  []string
}

func newFakeEngine() *fakeEngine { return &fakeEngine{chat: &fakeChatter{}} }

func (f *fakeEngine) Ingest(_ context.Context, prefix string) (*kvcache.CacheHandle, error) {
	f.ingested = append(f.ingested, prefix)
	return &kvcache.CacheHandle{Hash: "abc123", PrefixLen: 7}, nil
}

func (f *fakeEngine) GenerateWithCache(_ context.Context, _ *kvcache.CacheHandle, system, extra string, maxTokens int, opts ...llm.CallOption) (string, error) {
	f.calls = append(f.calls, call{system: system, user: extra, maxTokens: maxTokens, temperature: llm.Temperature(-1, opts...), cached: true})
	return pop(&f.generated), nil
}

func (f *fakeEngine) GenerateWithoutCache(_ context.Context, system, extra string, maxTokens int, opts ...llm.CallOption) (string, error) {
	f.calls = append(f.calls, call{system: system, user: extra, maxTokens: maxTokens, temperature: llm.Temperature(-1, opts...)})
	return pop(&f.generated), nil
}

func (f *fakeEngine) JSONSchemaChatWithCache(_ context.Context, _ *kvcache.CacheHandle, system, extra string, maxTokens int, _ map[string]any) (json.RawMessage, error) {
	f.calls = append(f.calls, call{system: system, user: extra, maxTokens: maxTokens, temperature: 0, cached: true})
	return json.RawMessage(pop(&f.json)), nil
}

func (f *fakeEngine) Chatter() llm.Chatter { return f.chat }

func pop(q *[]string) string {
	if len(*q) == 0 {
		return ""
	}
	v := (*q)[0]
	*q = (*q)[1:]
	return v
}
