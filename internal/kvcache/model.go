// Package kvcache keeps one model resident in-process and lets many short
// completions share the evaluated attention cache of a common prefix.
package kvcache

import "errors"

// ErrUnavailable is returned by Load when the binary was built without the
// llamakv tag.
var ErrUnavailable = errors.New("in-process KV model not available in this build (rebuild with -tags llamakv)")

// SamplingParams configures token selection for one generation.
type SamplingParams struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MinP            float64
	PresencePenalty float64
	// RepeatPenalty of 0 leaves repetition unpenalised.
	RepeatPenalty float64
	Seed          uint32
}

// Model is the stateful llama context the engine drives. Its cache holds the
// tokens evaluated so far, at positions 0..Len()-1. Implementations are not
// safe for concurrent use.
type Model interface {
	// Tokenize converts text, parsing special tokens, optionally with BOS.
	Tokenize(text string, addBOS bool) ([]int, error)
	// TokenBytes returns the raw bytes of one token. A multi-byte rune may
	// span several tokens.
	TokenBytes(tok int) []byte
	IsEOG(tok int) bool

	// Reset clears the whole cache.
	Reset()
	// Eval appends tokens to the cache and computes logits for the last one.
	Eval(tokens []int) error
	Len() int
	// Truncate drops cached tokens at positions >= n.
	Truncate(n int) error

	// StartSampling resets the sampler for a new generation.
	StartSampling(p SamplingParams) error
	// Sample picks the next token from the logits of the last Eval.
	Sample() (int, error)

	Close() error
}
