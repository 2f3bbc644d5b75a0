// Package feedback holds the grading-pipeline services built on top of the
// chat capability: sentence correction, metadata extraction and the
// paragraph feedback dimensions.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"essaylens/internal/config"
	"essaylens/internal/explain"
	"essaylens/internal/llm"
)

// ErrStreamingUnsupported is returned by StreamAnswer when the backend cannot stream.
var ErrStreamingUnsupported = errors.New("backend does not support streaming")

// thinkingSentenceTokens is the correction budget for thinking models, which
// spend most of their tokens deliberating.
const thinkingSentenceTokens = 1024

// Metadata is the header information of an essay.
type Metadata struct {
	StudentName   string `json:"student_name"`
	StudentNumber string `json:"student_number"`
	EssayTitle    string `json:"essay_title"`
	Essay         string `json:"essay"`
}

// Correction is one corrected sentence and, for thinking models, the
// reasoning that produced it.
type Correction struct {
	Text      string `json:"text"`
	Reasoning string `json:"reasoning,omitempty"`
}

// Service runs the per-sentence and per-essay tasks against any llm.Chatter.
type Service struct {
	chat    llm.Chatter
	cfg     config.Config
	explain explain.Recorder
}

// NewService binds the tasks to chat. Request parameters come from cfg's
// task layering; rec may be nil.
func NewService(chat llm.Chatter, cfg config.Config, rec explain.Recorder) *Service {
	if rec == nil {
		rec = explain.Nop
	}
	return &Service{chat: chat, cfg: cfg, explain: rec}
}

func (s *Service) request(task string) (config.RequestConfig, error) {
	return config.ResolveRequestConfig(task, s.cfg, nil)
}

// Answer replies to a sentence in plain English. An empty sentence, or an
// empty reply, returns the input unchanged.
func (s *Service) Answer(ctx context.Context, sentence string) (string, error) {
	s.explain.Log("LLM - answer", fmt.Sprintf("Answer prompt length: %d", len(sentence)))
	in := strings.TrimSpace(sentence)
	if in == "" {
		return sentence, nil
	}
	rc, err := s.request(config.TaskAnswer)
	if err != nil {
		return "", err
	}
	out, err := s.chat.Chat(ctx, systemAnswer, in, rc.MaxTokens, llm.WithRequest(rc))
	if err != nil {
		return "", err
	}
	if out == "" {
		out = in
	}
	s.explain.Log("LLM - answer", fmt.Sprintf("Answer response length: %d", len(out)))
	return out, nil
}

// StreamAnswer is Answer over a streaming backend. Chunks are copied to w as
// they arrive when w is not nil.
func (s *Service) StreamAnswer(ctx context.Context, sentence string, w io.Writer) ([]string, error) {
	s.explain.Log("LLM - stream", fmt.Sprintf("Stream prompt length: %d", len(sentence)))
	in := strings.TrimSpace(sentence)
	if in == "" {
		return nil, nil
	}
	st, ok := s.chat.(llm.Streamer)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	rc, err := s.request(config.TaskStreamAnswer)
	if err != nil {
		return nil, err
	}
	var chunks []string
	for chunk, err := range st.ChatStream(ctx, systemStreamAnswer, in, rc.MaxTokens, llm.WithRequest(rc)) {
		if err != nil {
			return chunks, err
		}
		if w != nil {
			if _, err := io.WriteString(w, chunk); err != nil {
				return chunks, err
			}
		}
		chunks = append(chunks, chunk)
	}
	s.explain.Log("LLM - stream", fmt.Sprintf("Streamed %d chunks", len(chunks)))
	return chunks, nil
}

// ExtractMetadata pulls student and essay fields out of raw essay text. Blank
// input yields Metadata whose Essay is the input.
func (s *Service) ExtractMetadata(ctx context.Context, text string) (Metadata, error) {
	s.explain.Log("LLM - metadata extraction", fmt.Sprintf("JSON prompt length: %d", len(text)))
	in := strings.TrimSpace(text)
	if in == "" {
		return Metadata{Essay: text}, nil
	}
	rc, err := s.request(config.TaskMetadataExtraction)
	if err != nil {
		return Metadata{}, err
	}
	raw, err := s.chat.JSONSchemaChat(ctx, systemMetadata, in, rc.MaxTokens, metadataSchema)
	if err != nil {
		return Metadata{}, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		s.explain.Log("LLM - metadata extraction", "JSON type: not an object")
		return Metadata{}, &llm.DecodeError{Raw: string(raw), Err: err}
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.explain.Log("LLM - metadata extraction", "JSON keys: "+strings.Join(keys, ", "))

	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return Metadata{}, &llm.DecodeError{Raw: string(raw), Err: err}
	}
	return md, nil
}

// CorrectSentences fixes grammar one sentence at a time. Blank sentences are
// kept as they are; a sentence the model returns nothing for is kept too.
func (s *Service) CorrectSentences(ctx context.Context, sentences []string) ([]Correction, error) {
	s.explain.Log("LLM - grammar correction", fmt.Sprintf("Correction sentence count: %d", len(sentences)))
	rc, err := s.request(config.TaskGrammarCorrection)
	if err != nil {
		return nil, err
	}
	maxTokens := rc.MaxTokens
	if s.cfg.ModelFamily == config.FamilyThinking {
		maxTokens = thinkingSentenceTokens
	}
	out := make([]Correction, 0, len(sentences))
	for _, sentence := range sentences {
		in := strings.TrimSpace(sentence)
		if in == "" {
			out = append(out, Correction{Text: sentence})
			continue
		}
		msg, err := s.chat.ChatMessage(ctx, systemGrammar, in, maxTokens, llm.WithRequest(rc))
		if err != nil {
			return out, err
		}
		final := msg.Answer(s.cfg.ModelFamily)
		if final == "" {
			final = in
		}
		out = append(out, Correction{Text: final, Reasoning: strings.TrimSpace(msg.Reasoning)})
	}
	s.explain.Log("LLM - grammar correction", fmt.Sprintf("Correction output count: %d", len(out)))
	return out, nil
}
