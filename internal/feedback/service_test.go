package feedback

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"essaylens/internal/config"
	"essaylens/internal/explain"
	"essaylens/internal/llm"
)

func TestAnswer(t *testing.T) {
	f := &fakeChatter{replies: []string{"Hi!", ""}}
	rec := &explain.Memory{}
	s := NewService(f, config.Default(), rec)
	ctx := context.Background()

	got, err := s.Answer(ctx, "  Hello  ")
	if err != nil || got != "Hi!" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if c := f.calls[0]; c.user != "Hello" || c.maxTokens != 128 || c.temperature != 0 || c.system != systemAnswer {
		t.Fatalf("call=%+v", c)
	}
	got, _ = s.Answer(ctx, "Echo")
	if got != "Echo" {
		t.Fatalf("empty reply should fall back to input, got %q", got)
	}
	got, _ = s.Answer(ctx, "   ")
	if got != "   " || len(f.calls) != 2 {
		t.Fatalf("blank input must not call the model")
	}
	if msgs := rec.Messages("LLM - answer"); len(msgs) == 0 || msgs[0] != "Answer prompt length: 9" {
		t.Fatalf("explain=%v", msgs)
	}
}

func TestStreamAnswer(t *testing.T) {
	base := &fakeChatter{chunks: []string{"Hi", " there"}}
	rec := &explain.Memory{}
	s := NewService(streamingChatter{base}, config.Default(), rec)
	var sb strings.Builder
	chunks, err := s.StreamAnswer(context.Background(), "Hello", &sb)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Hi", " there"}, chunks); diff != "" {
		t.Fatalf("chunks (-want +got):\n%s", diff)
	}
	if sb.String() != "Hi there" {
		t.Fatalf("writer=%q", sb.String())
	}
	if base.calls[0].system != systemStreamAnswer {
		t.Fatalf("system=%q", base.calls[0].system)
	}
	if got := rec.Messages("LLM - stream"); got[len(got)-1] != "Streamed 2 chunks" {
		t.Fatalf("explain=%v", got)
	}

	_, err = NewService(&fakeChatter{}, config.Default(), nil).StreamAnswer(context.Background(), "x", nil)
	if !errors.Is(err, ErrStreamingUnsupported) {
		t.Fatalf("want ErrStreamingUnsupported, got %v", err)
	}
}

func TestExtractMetadata(t *testing.T) {
	f := &fakeChatter{json: []string{`{"student_name":"Ann","student_number":"S1","essay_title":"Jobs","essay":"I agree."}`}}
	rec := &explain.Memory{}
	md, err := NewService(f, config.Default(), rec).ExtractMetadata(context.Background(), "Ann S1 Jobs I agree.")
	if err != nil {
		t.Fatal(err)
	}
	want := Metadata{StudentName: "Ann", StudentNumber: "S1", EssayTitle: "Jobs", Essay: "I agree."}
	if diff := cmp.Diff(want, md); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if f.calls[0].maxTokens != 1024 || f.calls[0].system != systemMetadata {
		t.Fatalf("call=%+v", f.calls[0])
	}
	msgs := rec.Messages("LLM - metadata extraction")
	if msgs[len(msgs)-1] != "JSON keys: essay, essay_title, student_name, student_number" {
		t.Fatalf("explain=%v", msgs)
	}
}

func TestExtractMetadata_NotAnObject(t *testing.T) {
	f := &fakeChatter{json: []string{`["a"]`}}
	_, err := NewService(f, config.Default(), nil).ExtractMetadata(context.Background(), "text")
	if !llm.IsDecode(err) {
		t.Fatalf("want decode error, got %v", err)
	}
	md, err := NewService(f, config.Default(), nil).ExtractMetadata(context.Background(), " ")
	if err != nil || md.Essay != " " {
		t.Fatalf("blank input: %+v %v", md, err)
	}
}

func TestCorrectSentences_Instruct(t *testing.T) {
	f := &fakeChatter{messages: []llm.Message{
		{Content: "He goes home."},
		{Content: ""},
	}}
	out, err := NewService(f, config.Default(), nil).CorrectSentences(context.Background(), []string{"He go home.", "", "Keep me."})
	if err != nil {
		t.Fatal(err)
	}
	want := []Correction{{Text: "He goes home."}, {Text: ""}, {Text: "Keep me."}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if len(f.calls) != 2 || f.calls[0].maxTokens != 128 || f.calls[0].temperature != 0 {
		t.Fatalf("calls=%+v", f.calls)
	}
}

func TestCorrectSentences_ThinkingFallback(t *testing.T) {
	cfg := config.Default()
	cfg.ModelFamily = config.FamilyThinking
	f := &fakeChatter{messages: []llm.Message{
		{Reasoning: "The verb must agree. So: He goes home."},
	}}
	out, err := NewService(f, cfg, nil).CorrectSentences(context.Background(), []string{"He go home."})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Text != "So: He goes home." {
		t.Fatalf("text=%q", out[0].Text)
	}
	if out[0].Reasoning == "" {
		t.Fatalf("reasoning should be kept")
	}
	if f.calls[0].maxTokens != 1024 {
		t.Fatalf("thinking budget=%d", f.calls[0].maxTokens)
	}
}

func TestCorrectSentences_Error(t *testing.T) {
	f := &fakeChatter{err: errors.New("down")}
	if _, err := NewService(f, config.Default(), nil).CorrectSentences(context.Background(), []string{"x"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTaskOverridesFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Tasks = map[string]map[string]any{config.TaskAnswer: {"max_tokens": 42}}
	f := &fakeChatter{replies: []string{"ok"}}
	if _, err := NewService(f, cfg, nil).Answer(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}
	if f.calls[0].maxTokens != 42 {
		t.Fatalf("max_tokens=%d", f.calls[0].maxTokens)
	}
}

func TestSplitSentences(t *testing.T) {
	cases := map[string][]string{
		"":                                 nil,
		"One sentence":                     {"One sentence"},
		"First one. Second one! Third?":    {"First one.", "Second one!", "Third?"},
		"It costs 3.5 dollars. Yes.":       {"It costs 3.5 dollars.", "Yes."},
		"Use e.g. this form. Then stop.":   {"Use e.g. this form.", "Then stop."},
		`He said "Go." Then left.`:         {`He said "Go."`, "Then left."},
		"Wait... What happened?  Nothing.": {"Wait...", "What happened?", "Nothing."},
	}
	for in, want := range cases {
		if diff := cmp.Diff(want, SplitSentences(in)); diff != "" {
			t.Errorf("SplitSentences(%q) (-want +got):\n%s", in, diff)
		}
	}
}
