package kvcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"essaylens/internal/chatml"
	"essaylens/internal/config"
	"essaylens/internal/llm"
	"essaylens/internal/metrics"
)

// ErrStaleHandle is returned when a handle from an earlier ingestion (or
// another engine) is used after the cache was replaced.
var ErrStaleHandle = errors.New("kv cache handle is stale: the prefix was replaced by a newer ingestion")

// CacheHandle identifies one ingested prefix. It stays valid until the next
// Ingest on the same engine.
type CacheHandle struct {
	// Hash is the hex SHA-256 of the trimmed prefix, empty for an empty prefix.
	Hash         string
	PrefixTokens []int
	PrefixLen    int
	Stop         string

	owner *Engine
	epoch uint64
}

// Engine drives a single Model. All operations are serialised: one ingest or
// generation runs at a time and the others wait for it.
type Engine struct {
	model    Model
	mode     string
	sampling SamplingParams
	log      zerolog.Logger

	sem *semaphore.Weighted

	// guarded by sem
	epoch  uint64
	primed bool
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithThinkingMode selects the directive injected into system prompts:
// "no_think", "think" or "" for none.
func WithThinkingMode(mode string) Option { return func(e *Engine) { e.mode = mode } }

// WithSampling replaces the default sampling parameters.
func WithSampling(p SamplingParams) Option { return func(e *Engine) { e.sampling = p } }

// DefaultSampling matches the Qwen3 non-thinking recommendations.
func DefaultSampling() SamplingParams {
	return SamplingParams{Temperature: 0.7, TopP: 0.8, TopK: 20, MinP: 0, PresencePenalty: 1.5}
}

// New wraps an already loaded model. The engine owns it from here on.
func New(m Model, opts ...Option) *Engine {
	e := &Engine{
		model:    m,
		mode:     chatml.ModeNoThink,
		sampling: DefaultSampling(),
		log:      zerolog.Nop(),
		sem:      semaphore.NewWeighted(1),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With().Str("component", "kvcache").Logger()
	return e
}

// Open loads the model described by cfg and wraps it.
func Open(cfg config.KVConfig, log zerolog.Logger) (*Engine, error) {
	m, err := Load(cfg)
	if err != nil {
		return nil, err
	}
	return New(m, append(ConfigOptions(cfg), WithLogger(log))...), nil
}

// ConfigOptions maps the kv config section onto engine options.
func ConfigOptions(cfg config.KVConfig) []Option {
	return []Option{
		WithThinkingMode(cfg.ThinkingMode),
		WithSampling(SamplingParams{
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			TopK:            cfg.TopK,
			MinP:            cfg.MinP,
			PresencePenalty: cfg.PresencePenalty,
		}),
	}
}

// Close releases the model.
func (e *Engine) Close() error {
	if err := e.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer e.sem.Release(1)
	return e.model.Close()
}

// CacheLen reports how many tokens the model cache currently holds, waiting
// for a running call to finish first.
func (e *Engine) CacheLen(ctx context.Context) (int, error) {
	if err := e.lock(ctx); err != nil {
		return 0, err
	}
	defer e.sem.Release(1)
	return e.model.Len(), nil
}

// TryCacheLen is CacheLen without waiting; ok is false while a call runs.
func (e *Engine) TryCacheLen() (n int, ok bool) {
	if !e.sem.TryAcquire(1) {
		return 0, false
	}
	defer e.sem.Release(1)
	return e.model.Len(), true
}

func (e *Engine) lock(ctx context.Context) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for kv engine: %w", err)
	}
	return nil
}

// Ingest evaluates prefix once as a system turn and returns a handle to the
// resulting cache. It is the only operation that performs a full reset of the
// cache for reuse, and it invalidates every earlier handle.
func (e *Engine) Ingest(ctx context.Context, prefix string) (*CacheHandle, error) {
	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	p := strings.TrimSpace(prefix)
	var hash string
	if p != "" {
		sum := sha256.Sum256([]byte(p))
		hash = hex.EncodeToString(sum[:])
	}
	system := chatml.WithMode(e.mode, "PARAGRAPH:\n"+p)
	prompt := chatml.Format([]chatml.Message{{Role: "system", Content: system}}, false)
	tokens, err := e.model.Tokenize(prompt, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize prefix: %w", err)
	}

	e.epoch++
	e.primed = false
	e.model.Reset()
	if len(tokens) > 0 {
		if err := e.model.Eval(tokens); err != nil {
			e.model.Reset()
			return nil, fmt.Errorf("eval prefix: %w", err)
		}
	}
	e.primed = true
	h := &CacheHandle{
		Hash:         hash,
		PrefixTokens: tokens,
		PrefixLen:    e.model.Len(),
		Stop:         chatml.Stop,
		owner:        e,
		epoch:        e.epoch,
	}
	metrics.KVIngestTotal.Inc()
	metrics.KVPrefixTokens.Observe(float64(h.PrefixLen))
	e.log.Debug().Str("hash", short(hash)).Int("prefix_len", h.PrefixLen).Msg("prefix ingested")
	return h, nil
}

// GenerateWithCache rewinds the cache to the handle's prefix and completes a
// user turn built from system and extra. The prefix is not re-evaluated
// unless an uncached generation has overwritten it since ingestion.
func (e *Engine) GenerateWithCache(ctx context.Context, h *CacheHandle, system, extra string, maxTokens int, opts ...llm.CallOption) (string, error) {
	if h == nil {
		return "", errors.New("kv cache handle is nil")
	}
	if err := e.lock(ctx); err != nil {
		return "", err
	}
	defer e.sem.Release(1)

	if h.owner != e || h.epoch != e.epoch {
		return "", ErrStaleHandle
	}
	if !e.primed {
		e.model.Reset()
		if err := e.model.Eval(h.PrefixTokens); err != nil {
			e.model.Reset()
			return "", fmt.Errorf("re-evaluate prefix: %w", err)
		}
		e.primed = true
		metrics.KVReprimeTotal.Inc()
		e.log.Debug().Str("hash", short(h.Hash)).Msg("prefix re-evaluated")
	}
	if err := e.model.Truncate(h.PrefixLen); err != nil {
		return "", fmt.Errorf("rewind cache: %w", err)
	}

	content := strings.TrimSpace(system)
	if extra != "" {
		content += "\n\n" + strings.TrimSpace(extra)
	}
	prompt := chatml.Format([]chatml.Message{{Role: "user", Content: content}}, true)
	tokens, err := e.model.Tokenize(prompt, false)
	if err != nil {
		return "", fmt.Errorf("tokenize user turn: %w", err)
	}
	return e.generate(tokens, h.Stop, maxTokens, "cache", opts)
}

// GenerateWithoutCache resets the cache and completes a fresh system and
// user exchange. Any cached prefix must be re-evaluated before reuse.
func (e *Engine) GenerateWithoutCache(ctx context.Context, system, extra string, maxTokens int, opts ...llm.CallOption) (string, error) {
	if err := e.lock(ctx); err != nil {
		return "", err
	}
	defer e.sem.Release(1)

	prompt := chatml.Format([]chatml.Message{
		{Role: "system", Content: chatml.WithMode(e.mode, system)},
		{Role: "user", Content: extra},
	}, true)
	tokens, err := e.model.Tokenize(prompt, true)
	if err != nil {
		return "", fmt.Errorf("tokenize prompt: %w", err)
	}
	e.primed = false
	e.model.Reset()
	return e.generate(tokens, chatml.Stop, maxTokens, "nocache", opts)
}

// JSONSchemaChatWithCache generates at temperature 0 against the cached
// prefix and returns the last JSON object in the output.
func (e *Engine) JSONSchemaChatWithCache(ctx context.Context, h *CacheHandle, system, extra string, maxTokens int, _ map[string]any) (json.RawMessage, error) {
	text, err := e.GenerateWithCache(ctx, h, system, extra, maxTokens, llm.WithTemperature(0))
	if err != nil {
		return nil, err
	}
	return lastObject(text)
}

// JSONSchemaChatWithoutCache is JSONSchemaChatWithCache on a reset cache.
func (e *Engine) JSONSchemaChatWithoutCache(ctx context.Context, system, extra string, maxTokens int, _ map[string]any) (json.RawMessage, error) {
	text, err := e.GenerateWithoutCache(ctx, system, extra, maxTokens, llm.WithTemperature(0))
	if err != nil {
		return nil, err
	}
	return lastObject(text)
}

func lastObject(text string) (json.RawMessage, error) {
	raw, ok := llm.ExtractLastJSONObject(text)
	if !ok {
		return nil, &llm.DecodeError{Raw: text}
	}
	return raw, nil
}

// generate evaluates prompt and samples until EOG, a stop string, or
// maxTokens. stop is the chat-template terminator; the call options may add
// more. Output is cut right before the earliest stop occurrence.
func (e *Engine) generate(prompt []int, stop string, maxTokens int, path string, opts []llm.CallOption) (string, error) {
	start := time.Now()
	req := llm.ResolveSampling(opts...)
	params := e.sampling
	if req.Temperature != nil {
		params.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		params.TopP = *req.TopP
	}
	if req.TopK != nil {
		params.TopK = *req.TopK
	}
	if req.RepeatPenalty != nil {
		params.RepeatPenalty = *req.RepeatPenalty
	}
	if req.Seed != nil {
		params.Seed = uint32(*req.Seed)
	}
	if err := e.model.StartSampling(params); err != nil {
		return "", fmt.Errorf("init sampler: %w", err)
	}
	if len(prompt) > 0 {
		if err := e.model.Eval(prompt); err != nil {
			return "", fmt.Errorf("eval prompt: %w", err)
		}
	}

	var seps [][]byte
	for _, s := range append([]string{stop}, req.Stop...) {
		if s != "" {
			seps = append(seps, []byte(s))
		}
	}
	var (
		out    []byte
		n      int
		reason = "max_tokens"
	)
	for n < maxTokens {
		tok, err := e.model.Sample()
		if err != nil {
			return "", fmt.Errorf("sample: %w", err)
		}
		if e.model.IsEOG(tok) {
			reason = "eog"
			break
		}
		n++
		prev := len(out)
		out = append(out, e.model.TokenBytes(tok)...)
		if cut := firstStop(out, prev, seps); cut >= 0 {
			out = out[:cut]
			reason = "stop"
			break
		}
		if n >= maxTokens {
			break
		}
		if err := e.model.Eval([]int{tok}); err != nil {
			return "", fmt.Errorf("eval token: %w", err)
		}
	}

	metrics.KVGenerateTotal.WithLabelValues(path, reason).Inc()
	metrics.KVGenerateDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	metrics.KVTokensGenerated.Add(float64(n))
	e.log.Debug().Str("path", path).Str("reason", reason).Int("tokens", n).Dur("dur", time.Since(start)).Msg("generation done")
	return strings.TrimSpace(strings.ToValidUTF8(string(out), "")), nil
}

// firstStop returns the offset of the earliest stop sequence in out, or -1.
// Bytes before prev were already checked, so only the tail can hold a new
// occurrence.
func firstStop(out []byte, prev int, seps [][]byte) int {
	cut := -1
	for _, sep := range seps {
		from := max(0, prev-len(sep)+1)
		if i := bytes.Index(out[from:], sep); i >= 0 && (cut < 0 || from+i < cut) {
			cut = from + i
		}
	}
	return cut
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
