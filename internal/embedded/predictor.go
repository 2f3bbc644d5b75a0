// Package embedded runs a GGUF model in-process through go-llama.cpp and
// exposes it as an llm.Chatter. Unlike kvcache it keeps no prefix between
// calls; every request is a full prompt.
package embedded

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"essaylens/internal/chatml"
	"essaylens/internal/config"
	"essaylens/internal/llm"
	"essaylens/internal/metrics"
)

// ErrUnavailable is returned by Load without the llama build tag.
var ErrUnavailable = errors.New("embedded llama support not built (missing 'llama' build tag)")

// PredictOptions are the sampling knobs passed to a Predictor.
type PredictOptions struct {
	MaxTokens     int
	Temperature   float64
	TopP          float64
	TopK          int
	RepeatPenalty float64
	Seed          int
	Stop          []string
}

// Predictor completes a raw prompt.
type Predictor interface {
	Predict(ctx context.Context, prompt string, opts PredictOptions) (string, error)
	Close() error
}

// Chatter adapts a Predictor to llm.Chatter. Calls are serialised.
type Chatter struct {
	mu       sync.Mutex
	p        Predictor
	mode     string
	defaults PredictOptions
	log      zerolog.Logger
}

// NewChatter wraps p. Sampling defaults come from the kv section of the
// configuration, which both in-process backends share.
func NewChatter(p Predictor, cfg config.KVConfig, log zerolog.Logger) *Chatter {
	return &Chatter{
		p:    p,
		mode: cfg.ThinkingMode,
		defaults: PredictOptions{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			TopK:        cfg.TopK,
		},
		log: log.With().Str("component", "embedded").Logger(),
	}
}

// Open loads the model at cfg.ModelPath and wraps it.
func Open(cfg config.KVConfig, log zerolog.Logger) (*Chatter, error) {
	p, err := Load(cfg)
	if err != nil {
		return nil, err
	}
	return NewChatter(p, cfg, log), nil
}

func (c *Chatter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.p.Close()
}

func (c *Chatter) predict(ctx context.Context, system, user string, maxTokens int, opts []llm.CallOption) (string, error) {
	prompt := chatml.Format([]chatml.Message{
		{Role: "system", Content: chatml.WithMode(c.mode, system)},
		{Role: "user", Content: user},
	}, true)
	po := c.defaults
	po.MaxTokens = maxTokens
	req := llm.ResolveSampling(opts...)
	if req.Temperature != nil {
		po.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		po.TopP = *req.TopP
	}
	if req.TopK != nil {
		po.TopK = *req.TopK
	}
	if req.RepeatPenalty != nil {
		po.RepeatPenalty = *req.RepeatPenalty
	}
	if req.Seed != nil {
		po.Seed = *req.Seed
	}
	po.Stop = append([]string{chatml.Stop}, req.Stop...)

	c.mu.Lock()
	defer c.mu.Unlock()
	text, err := c.p.Predict(ctx, prompt, po)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("embedded", "transport_error").Inc()
		return "", err
	}
	metrics.ChatRequestsTotal.WithLabelValues("embedded", "ok").Inc()
	// the stop word may be echoed back depending on the binding version
	return cutAtStop(text, po.Stop), nil
}

// cutAtStop drops everything from the earliest stop sequence on.
func cutAtStop(text string, stops []string) string {
	cut := len(text)
	for _, s := range stops {
		if i := strings.Index(text, s); s != "" && i >= 0 && i < cut {
			cut = i
		}
	}
	return text[:cut]
}

func (c *Chatter) Chat(ctx context.Context, system, user string, maxTokens int, opts ...llm.CallOption) (string, error) {
	m, err := c.ChatMessage(ctx, system, user, maxTokens, opts...)
	return m.Content, err
}

func (c *Chatter) ChatMessage(ctx context.Context, system, user string, maxTokens int, opts ...llm.CallOption) (llm.Message, error) {
	text, err := c.predict(ctx, system, user, maxTokens, opts)
	if err != nil {
		return llm.Message{}, err
	}
	content, reasoning := chatml.SplitThinking(text)
	return llm.Message{Role: "assistant", Content: content, Reasoning: reasoning}, nil
}

// JSONSchemaChat predicts at temperature 0 and returns the last JSON object
// in the reply. The schema is not enforced by this backend.
func (c *Chatter) JSONSchemaChat(ctx context.Context, system, user string, maxTokens int, _ map[string]any) (json.RawMessage, error) {
	text, err := c.predict(ctx, system, user, maxTokens, []llm.CallOption{llm.WithTemperature(0)})
	if err != nil {
		return nil, err
	}
	content, _ := chatml.SplitThinking(text)
	raw, ok := llm.ExtractLastJSONObject(content)
	if !ok {
		c.log.Warn().Int("content_len", len(content)).Msg("model returned invalid JSON")
		return nil, &llm.DecodeError{Raw: content}
	}
	return raw, nil
}

var _ llm.Chatter = (*Chatter)(nil)
