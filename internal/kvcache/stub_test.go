package kvcache

import (
	"errors"
	"sync"
)

const (
	stubBOS = 1
	stubEOG = 2
)

type evalCall struct {
	at     int // cache length before the call
	tokens []int
}

// stubModel tokenizes one token per rune and replays scripted pieces as
// generated tokens. Each StartSampling consumes the next script; an exhausted
// script yields EOG.
type stubModel struct {
	mu      sync.Mutex
	vocab   map[string]int
	pieces  map[int]string
	cache   []int
	scripts [][]string
	cur     []string
	repeat  string // when set, an exhausted script keeps yielding this piece

	resets   int
	evals    []evalCall
	sampling []SamplingParams
	sampled  int
	closed   bool

	// block, when non-nil, is received from before each Sample.
	block chan struct{}
	// started is signalled once per StartSampling when non-nil.
	started chan struct{}
}

func newStub(scripts ...[]string) *stubModel {
	return &stubModel{
		vocab:   map[string]int{},
		pieces:  map[int]string{},
		scripts: scripts,
	}
}

func (s *stubModel) intern(p string) int {
	if id, ok := s.vocab[p]; ok {
		return id
	}
	id := 10 + len(s.vocab)
	s.vocab[p] = id
	s.pieces[id] = p
	return id
}

func (s *stubModel) Tokenize(text string, addBOS bool) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	if addBOS {
		out = append(out, stubBOS)
	}
	for _, r := range text {
		out = append(out, s.intern(string(r)))
	}
	return out, nil
}

func (s *stubModel) TokenBytes(tok int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []byte(s.pieces[tok])
}

func (s *stubModel) IsEOG(tok int) bool { return tok == stubEOG }

func (s *stubModel) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.cache = nil
}

func (s *stubModel) Eval(tokens []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evals = append(s.evals, evalCall{at: len(s.cache), tokens: append([]int(nil), tokens...)})
	s.cache = append(s.cache, tokens...)
	return nil
}

func (s *stubModel) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

func (s *stubModel) Truncate(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 || n > len(s.cache) {
		return errors.New("truncate out of range")
	}
	s.cache = s.cache[:n]
	return nil
}

func (s *stubModel) StartSampling(p SamplingParams) error {
	s.mu.Lock()
	s.sampling = append(s.sampling, p)
	s.cur = nil
	if len(s.scripts) > 0 {
		s.cur = append([]string(nil), s.scripts[0]...)
		s.scripts = s.scripts[1:]
	}
	started := s.started
	s.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	return nil
}

func (s *stubModel) Sample() (int, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampled++
	if len(s.cur) == 0 {
		if s.repeat != "" {
			return s.intern(s.repeat), nil
		}
		return stubEOG, nil
	}
	p := s.cur[0]
	s.cur = s.cur[1:]
	return s.intern(p), nil
}

func (s *stubModel) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubModel) evalLog() []evalCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]evalCall(nil), s.evals...)
}
