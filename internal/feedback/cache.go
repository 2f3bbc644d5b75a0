package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"essaylens/internal/chatml"
	"essaylens/internal/config"
	"essaylens/internal/explain"
	"essaylens/internal/kvcache"
	"essaylens/internal/llm"
)

// ErrCacheNotPrepared is returned by the paragraph tasks before PrepareCache.
var ErrCacheNotPrepared = errors.New("kv cache not prepared: call PrepareCache first")

// Engine is the part of kvcache.Engine the paragraph tasks use.
type Engine interface {
	Ingest(ctx context.Context, prefix string) (*kvcache.CacheHandle, error)
	GenerateWithCache(ctx context.Context, h *kvcache.CacheHandle, system, extra string, maxTokens int, opts ...llm.CallOption) (string, error)
	GenerateWithoutCache(ctx context.Context, system, extra string, maxTokens int, opts ...llm.CallOption) (string, error)
	JSONSchemaChatWithCache(ctx context.Context, h *kvcache.CacheHandle, system, extra string, maxTokens int, schema map[string]any) (json.RawMessage, error)
	Chatter() llm.Chatter
}

// Branch names the feedback route taken for a dimension.
type Branch string

const (
	BranchSuggest  Branch = "suggest"
	BranchFeedback Branch = "feedback"
	BranchPraise   Branch = "praise"
)

// Result is the outcome of one feedback dimension.
type Result struct {
	Feedback string   `json:"feedback"`
	Examples []string `json:"examples"`
	Branch   Branch   `json:"branch"`
}

// dimension describes one language feature the paragraph is checked for.
// A dimension without a feedback prompt goes straight from suggest to praise.
type dimension struct {
	category string
	extract  string
	suggest  string
	feedback string
	praise   string

	fallbackSuggest  string
	fallbackFeedback string
	fallbackPraise   string
}

// CacheService runs the paragraph tasks over a KV engine: the paragraph is
// ingested once and each dimension reuses its cache. Sentence-level tasks
// inherited from Service use the engine's uncached path.
type CacheService struct {
	*Service
	engine Engine
	handle *kvcache.CacheHandle
}

func NewCacheService(e Engine, cfg config.Config, rec explain.Recorder) *CacheService {
	return &CacheService{Service: NewService(e.Chatter(), cfg, rec), engine: e}
}

// PrepareCache ingests paragraph; later dimension calls reuse it.
func (s *CacheService) PrepareCache(ctx context.Context, paragraph string) (*kvcache.CacheHandle, error) {
	h, err := s.engine.Ingest(ctx, paragraph)
	if err != nil {
		return nil, err
	}
	s.handle = h
	s.explain.Log("LLM - kv cache", fmt.Sprintf("Cached paragraph length: %d", len(paragraph)))
	s.explain.Log("LLM - kv cache", "Cache hash: "+h.Hash)
	return h, nil
}

func (s *CacheService) cache() (*kvcache.CacheHandle, error) {
	if s.handle == nil {
		return nil, ErrCacheNotPrepared
	}
	return s.handle, nil
}

func (s *CacheService) CauseEffect(ctx context.Context) (Result, error) {
	return s.route(ctx, causeEffect, config.TaskCauseEffectFeedback)
}

func (s *CacheService) CompareContrast(ctx context.Context) (Result, error) {
	return s.route(ctx, compareContrast, config.TaskCompareContrastFeedback)
}

func (s *CacheService) Hedging(ctx context.Context) (Result, error) {
	return s.route(ctx, hedging, config.TaskHedgingFeedback)
}

func (s *CacheService) route(ctx context.Context, d dimension, task string) (Result, error) {
	h, err := s.cache()
	if err != nil {
		return Result{}, err
	}
	rc, err := s.request(task)
	if err != nil {
		return Result{}, err
	}
	raw, err := s.engine.JSONSchemaChatWithCache(ctx, h, d.extract, "", rc.MaxTokens, examplesSchema)
	if err != nil {
		return Result{}, err
	}
	examples := parseExamples(raw)

	res := Result{Examples: examples}
	var system, fallback string
	switch {
	case len(examples) == 0:
		res.Branch, system, fallback = BranchSuggest, d.suggest, d.fallbackSuggest
	case len(examples) == 1 && d.feedback != "":
		res.Branch, system, fallback = BranchFeedback, d.feedback, d.fallbackFeedback
	default:
		res.Branch, system, fallback = BranchPraise, d.praise, d.fallbackPraise
	}
	text, err := s.engine.GenerateWithCache(ctx, h, system, "", rc.MaxTokens, llm.WithRequest(rc))
	if err != nil {
		return Result{}, err
	}
	res.Feedback = orDefault(text, fallback)

	s.explain.Log(d.category, fmt.Sprintf("Extracted examples: %d", len(examples)))
	if len(examples) > 0 {
		s.explain.Log(d.category, "Examples: "+strings.Join(examples, "; "))
	} else {
		s.explain.Log(d.category, "Examples: none")
	}
	s.explain.Log(d.category, "Branch: "+string(res.Branch))
	s.explain.Log(d.category, "Feedback: "+res.Feedback)
	return res, nil
}

// parseExamples reads {"examples": [...]}; anything else counts as none.
func parseExamples(raw json.RawMessage) []string {
	var v struct {
		Examples []any `json:"examples"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	out := make([]string, 0, len(v.Examples))
	for _, x := range v.Examples {
		var s string
		switch t := x.(type) {
		case string:
			s = t
		case nil:
			continue
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TopicSentence judges the learner's first sentence as a topic sentence. A
// reference topic sentence is written for the rest of the paragraph without
// the cache, then compared against the learner's with it.
func (s *CacheService) TopicSentence(ctx context.Context, text string) (string, error) {
	sentences := SplitSentences(text)
	var learnerTopic, rest string
	if len(sentences) > 0 {
		learnerTopic = sentences[0]
		rest = strings.Join(sentences[1:], " ")
	}

	gen, err := s.request(config.TaskTopicSentenceGenerate)
	if err != nil {
		return "", err
	}
	suggested, err := s.engine.GenerateWithoutCache(ctx, systemTopicGenerate,
		"Write a topic sentence for this paragraph:\n"+rest, gen.MaxTokens, llm.WithRequest(gen))
	if err != nil {
		return "", err
	}
	suggested = clean(suggested)
	s.explain.Log("LLM - topic sentence analysis", "Generate suggested sentence: "+suggested)

	h, err := s.cache()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	payload, err := marshalNoEscape(struct {
		LearnerText          string `json:"learner_text"`
		LearnerTopicSentence string `json:"learner_topic_sentence"`
		GoodTopicSentence    string `json:"good_topic_sentence"`
		Task                 string `json:"task"`
	}{text, learnerTopic, suggested, topicTask})
	if err != nil {
		return "", err
	}
	ana, err := s.request(config.TaskTopicSentenceAnalyze)
	if err != nil {
		return "", err
	}
	out, err := s.engine.GenerateWithCache(ctx, h, systemTopicAnalyze, payload, ana.MaxTokens, llm.WithRequest(ana))
	if err != nil {
		return "", err
	}
	analysis := orDefault(out, "No analysis given!")
	s.explain.Log("LLM - topic sentence analysis", "Provide feedback: "+analysis)
	return analysis, nil
}

// Content compares the cached paragraph with a fixed reference paragraph.
func (s *CacheService) Content(ctx context.Context) (string, error) {
	h, err := s.cache()
	if err != nil {
		return "", err
	}
	rc, err := s.request(config.TaskContentCompare)
	if err != nil {
		return "", err
	}
	extra := referenceParagraph + "\n\nThis is the learner's paragraph:"
	out, err := s.engine.GenerateWithCache(ctx, h, systemContentCompare, extra, rc.MaxTokens, llm.WithRequest(rc))
	if err != nil {
		return "", err
	}
	fb := orDefault(out, "Try adding a compare/contrast sentence to support your idea.")
	s.explain.Log("LLM - content feedback", "Feedback: "+fb)
	return fb, nil
}

// clean drops an empty or filled <think> block emitted by Qwen3 models.
func clean(text string) string {
	content, _ := chatml.SplitThinking(text)
	return content
}

func orDefault(text, fallback string) string {
	if c := clean(text); c != "" {
		return c
	}
	return fallback
}

func marshalNoEscape(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
