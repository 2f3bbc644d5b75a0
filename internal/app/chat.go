package app

import (
	"context"
	"strings"

	"essaylens/internal/config"
	"essaylens/internal/llm"
	"essaylens/pkg/types"
)

// ErrEmptyUser rejects calls without a user message.
var ErrEmptyUser = &config.ValidationError{Field: "user", Msg: "user message is required"}

// requestConfig resolves the task preset and the per-call overrides of req.
func (a *App) requestConfig(task string, maxTokens int, temperature *float64, extra map[string]any) (config.RequestConfig, error) {
	overrides := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		overrides[k] = v
	}
	if maxTokens > 0 {
		overrides["max_tokens"] = maxTokens
	}
	if temperature != nil {
		overrides["temperature"] = *temperature
	}
	return config.ResolveRequestConfig(task, a.cfg, overrides)
}

func (a *App) admit(ctx context.Context) (func(), error) {
	if !a.Ready() {
		return func() {}, ErrNotReady
	}
	return a.adm.begin(ctx)
}

// Chat runs one blocking chat call. Thinking-family replies with an empty
// answer fall back to the last sentence of the reasoning trace.
func (a *App) Chat(ctx context.Context, req types.ChatRequest) (types.ChatResponse, error) {
	if strings.TrimSpace(req.User) == "" {
		return types.ChatResponse{}, ErrEmptyUser
	}
	rc, err := a.requestConfig(req.Task, req.MaxTokens, req.Temperature, req.Overrides)
	if err != nil {
		return types.ChatResponse{}, err
	}
	release, err := a.admit(ctx)
	if err != nil {
		return types.ChatResponse{}, err
	}
	defer release()

	m, err := a.chat.ChatMessage(ctx, req.System, req.User, rc.MaxTokens, llm.WithRequest(rc))
	if err != nil {
		a.setErr(err)
		return types.ChatResponse{}, err
	}
	return types.ChatResponse{
		Message: types.Message{Role: m.Role, Content: m.Answer(a.cfg.ModelFamily), Reasoning: m.Reasoning},
		Task:    req.Task,
		Backend: a.cfg.Backend,
	}, nil
}

// ChatStream runs a streaming chat call and hands every fragment to emit.
// Backends without streaming produce the whole answer as one fragment. It
// returns the number of fragments emitted.
func (a *App) ChatStream(ctx context.Context, req types.ChatRequest, emit func(string) error) (int, error) {
	if strings.TrimSpace(req.User) == "" {
		return 0, ErrEmptyUser
	}
	rc, err := a.requestConfig(req.Task, req.MaxTokens, req.Temperature, req.Overrides)
	if err != nil {
		return 0, err
	}
	release, err := a.admit(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	s, ok := a.chat.(llm.Streamer)
	if !ok {
		m, err := a.chat.ChatMessage(ctx, req.System, req.User, rc.MaxTokens, llm.WithRequest(rc))
		if err != nil {
			a.setErr(err)
			return 0, err
		}
		text := m.Answer(a.cfg.ModelFamily)
		if text == "" {
			return 0, nil
		}
		return 1, emit(text)
	}

	n := 0
	for chunk, err := range s.ChatStream(ctx, req.System, req.User, rc.MaxTokens, llm.WithRequest(rc)) {
		if err != nil {
			a.setErr(err)
			return n, err
		}
		if err := emit(chunk); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// JSON runs a schema-constrained chat and returns the decoded object.
func (a *App) JSON(ctx context.Context, req types.JSONRequest) (types.JSONResponse, error) {
	if strings.TrimSpace(req.User) == "" {
		return types.JSONResponse{}, ErrEmptyUser
	}
	if len(req.Schema) == 0 {
		return types.JSONResponse{}, &config.ValidationError{Field: "schema", Msg: "schema is required"}
	}
	rc, err := a.requestConfig(req.Task, req.MaxTokens, nil, nil)
	if err != nil {
		return types.JSONResponse{}, err
	}
	release, err := a.admit(ctx)
	if err != nil {
		return types.JSONResponse{}, err
	}
	defer release()

	raw, err := a.chat.JSONSchemaChat(ctx, req.System, req.User, rc.MaxTokens, req.Schema)
	if err != nil {
		if !llm.IsDecode(err) {
			a.setErr(err)
		}
		return types.JSONResponse{}, err
	}
	return types.JSONResponse{Data: raw, Backend: a.cfg.Backend}, nil
}
