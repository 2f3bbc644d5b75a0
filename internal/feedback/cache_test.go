package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"essaylens/internal/config"
	"essaylens/internal/explain"
)

func TestRoute_ByExampleCount(t *testing.T) {
	cases := []struct {
		name     string
		dim      func(*CacheService, context.Context) (Result, error)
		json     string
		reply    string
		branch   Branch
		system   string
		feedback string
	}{
		{"cause none", (*CacheService).CauseEffect, `{"examples": []}`, "", BranchSuggest, causeEffect.suggest, causeEffect.fallbackSuggest},
		{"cause one", (*CacheService).CauseEffect, `{"examples": ["because"]}`, "Nice.", BranchFeedback, causeEffect.feedback, "Nice."},
		{"cause many", (*CacheService).CauseEffect, `{"examples": ["because", "so"]}`, "", BranchPraise, causeEffect.praise, causeEffect.fallbackPraise},
		{"compare one", (*CacheService).CompareContrast, `{"examples": ["however"]}`, "", BranchFeedback, compareContrast.feedback, compareContrast.fallbackFeedback},
		{"hedging one", (*CacheService).Hedging, `{"examples": ["maybe"]}`, "Good.", BranchPraise, hedging.praise, "Good."},
		{"hedging none", (*CacheService).Hedging, `{"examples": ["  ", null]}`, "", BranchSuggest, hedging.suggest, hedging.fallbackSuggest},
		{"malformed examples", (*CacheService).Hedging, `{"examples": "maybe"}`, "", BranchSuggest, hedging.suggest, hedging.fallbackSuggest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newFakeEngine()
			e.json = []string{tc.json}
			e.generated = []string{tc.reply}
			s := NewCacheService(e, config.Default(), nil)
			if _, err := s.PrepareCache(context.Background(), "A paragraph."); err != nil {
				t.Fatal(err)
			}
			res, err := tc.dim(s, context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if res.Branch != tc.branch || res.Feedback != tc.feedback {
				t.Fatalf("result=%+v", res)
			}
			gen := e.calls[1]
			if gen.system != tc.system || !gen.cached || gen.maxTokens != 512 || gen.temperature != 0.2 {
				t.Fatalf("generation call=%+v", gen)
			}
			if e.calls[0].maxTokens != 512 || !e.calls[0].cached {
				t.Fatalf("extraction call=%+v", e.calls[0])
			}
		})
	}
}

func TestRoute_ExplainLines(t *testing.T) {
	e := newFakeEngine()
	e.json = []string{`{"examples": ["because", 3]}`}
	e.generated = []string{"<think>\n\n</think>\n\nWell done."}
	rec := &explain.Memory{}
	s := NewCacheService(e, config.Default(), rec)
	_, _ = s.PrepareCache(context.Background(), "P.")
	res, err := s.CauseEffect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"because", "3"}, res.Examples); diff != "" {
		t.Fatalf("examples (-want +got):\n%s", diff)
	}
	want := []string{
		"Extracted examples: 2",
		"Examples: because; 3",
		"Branch: praise",
		"Feedback: Well done.",
	}
	if diff := cmp.Diff(want, rec.Messages("LLM - cause effect")); diff != "" {
		t.Fatalf("explain (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Cached paragraph length: 2", "Cache hash: abc123"}, rec.Messages("LLM - kv cache")); diff != "" {
		t.Fatalf("kv explain (-want +got):\n%s", diff)
	}
}

func TestRequiresPreparedCache(t *testing.T) {
	s := NewCacheService(newFakeEngine(), config.Default(), nil)
	ctx := context.Background()
	if _, err := s.Hedging(ctx); !errors.Is(err, ErrCacheNotPrepared) {
		t.Fatalf("hedging: %v", err)
	}
	if _, err := s.Content(ctx); !errors.Is(err, ErrCacheNotPrepared) {
		t.Fatalf("content: %v", err)
	}
	if _, err := s.TopicSentence(ctx, "A. B."); !errors.Is(err, ErrCacheNotPrepared) {
		t.Fatalf("topic: %v", err)
	}
}

func TestTopicSentence(t *testing.T) {
	e := newFakeEngine()
	e.generated = []string{"Jobs teach students skills.", ""}
	rec := &explain.Memory{}
	s := NewCacheService(e, config.Default(), rec)
	ctx := context.Background()
	_, _ = s.PrepareCache(ctx, "Part-time jobs are good. They pay money. They teach time management.")

	out, err := s.TopicSentence(ctx, "Part-time jobs are good. They pay money. They teach time management.")
	if err != nil {
		t.Fatal(err)
	}
	if out != "No analysis given!" {
		t.Fatalf("out=%q", out)
	}
	gen, ana := e.calls[0], e.calls[1]
	if gen.cached || gen.temperature != 0.5 || gen.maxTokens != 1024 || gen.system != systemTopicGenerate {
		t.Fatalf("generate call=%+v", gen)
	}
	if gen.user != "Write a topic sentence for this paragraph:\nThey pay money. They teach time management." {
		t.Fatalf("generate extra=%q", gen.user)
	}
	if !ana.cached || ana.temperature != 0 || ana.maxTokens != 1024 || ana.system != systemTopicAnalyze {
		t.Fatalf("analyze call=%+v", ana)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(ana.user), &payload); err != nil {
		t.Fatalf("payload %q: %v", ana.user, err)
	}
	if payload["learner_topic_sentence"] != "Part-time jobs are good." || payload["good_topic_sentence"] != "Jobs teach students skills." || payload["task"] != topicTask {
		t.Fatalf("payload=%v", payload)
	}
	if got := rec.Messages("LLM - topic sentence analysis"); len(got) != 2 {
		t.Fatalf("explain=%v", got)
	}
}

func TestContent(t *testing.T) {
	e := newFakeEngine()
	e.generated = []string{"The second paragraph is more engaging."}
	s := NewCacheService(e, config.Default(), nil)
	_, _ = s.PrepareCache(context.Background(), "p")
	out, err := s.Content(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out != "The second paragraph is more engaging." {
		t.Fatalf("out=%q", out)
	}
	c := e.calls[0]
	if c.user != referenceParagraph+"\n\nThis is the learner's paragraph:" || c.system != systemContentCompare || c.temperature != 0.2 {
		t.Fatalf("call=%+v", c)
	}
}

func TestCacheService_SentenceTasksUseUncachedChatter(t *testing.T) {
	e := newFakeEngine()
	e.chat.replies = []string{"Hello back."}
	s := NewCacheService(e, config.Default(), nil)
	out, err := s.Answer(context.Background(), "Hello")
	if err != nil || out != "Hello back." {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if len(e.calls) != 0 {
		t.Fatalf("cached engine paths must not be used: %+v", e.calls)
	}
}
