//go:build llamakv

package kvcache

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/ollama/ollama/llama"
	"github.com/ollama/ollama/ml"

	"essaylens/internal/config"
)

const Built = true

var backendOnce sync.Once

// llamaModel binds Model to llama.cpp through ollama's cgo package. It uses a
// single sequence (id 0) whose positions match the cache length.
type llamaModel struct {
	model   *llama.Model
	ctx     *llama.Context
	batch   *llama.Batch
	sampler *llama.SamplingContext
	nCtx    int
	nBatch  int

	n int // tokens in the cache
	// batch index carrying logits after the last Eval
	logitIdx int
}

// Load reads the GGUF at cfg.ModelPath and creates a context of cfg.NCtx.
func Load(cfg config.KVConfig) (Model, error) {
	if strings.TrimSpace(cfg.ModelPath) == "" {
		return nil, errors.New("kv model path is empty")
	}
	backendOnce.Do(llama.BackendInit)

	threads := cfg.NThreads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	nBatch := cfg.NBatch
	if nBatch <= 0 {
		nBatch = 512
	}
	nCtx := cfg.NCtx
	if nCtx <= 0 {
		nCtx = 4096
	}

	m, err := llama.LoadModelFromFile(cfg.ModelPath, llama.ModelParams{
		NumGpuLayers: cfg.NGPULayers,
		UseMmap:      true,
	})
	if err != nil {
		return nil, err
	}
	lc, err := llama.NewContextWithModel(m, llama.NewContextParams(nCtx, nBatch, 1, threads, ml.FlashAttentionAuto, ""))
	if err != nil {
		llama.FreeModel(m)
		return nil, fmt.Errorf("create llama context: %w", err)
	}
	b, err := llama.NewBatch(nBatch, 1, 0)
	if err != nil {
		llama.FreeModel(m)
		return nil, err
	}
	return &llamaModel{model: m, ctx: lc, batch: b, nCtx: nCtx, nBatch: nBatch}, nil
}

func (l *llamaModel) Tokenize(text string, addBOS bool) ([]int, error) {
	return l.model.Tokenize(text, addBOS, true)
}

func (l *llamaModel) TokenBytes(tok int) []byte { return []byte(l.model.TokenToPiece(tok)) }

func (l *llamaModel) IsEOG(tok int) bool { return l.model.TokenIsEog(tok) }

func (l *llamaModel) Reset() {
	l.ctx.KvCacheClear()
	l.n = 0
}

func (l *llamaModel) Len() int { return l.n }

func (l *llamaModel) Truncate(n int) error {
	if n < 0 || n > l.n {
		return fmt.Errorf("truncate to %d outside cache of %d tokens", n, l.n)
	}
	if n == l.n {
		return nil
	}
	if !l.ctx.KvCacheSeqRm(0, n, -1) {
		return errors.New("llama context refused partial cache removal")
	}
	l.n = n
	return nil
}

// Eval decodes tokens in batches of nBatch; only the final token gets logits.
func (l *llamaModel) Eval(tokens []int) error {
	if l.n+len(tokens) > l.nCtx {
		return fmt.Errorf("context overflow: %d cached + %d new > n_ctx %d", l.n, len(tokens), l.nCtx)
	}
	for i := 0; i < len(tokens); i += l.nBatch {
		end := min(i+l.nBatch, len(tokens))
		l.batch.Clear()
		for j := i; j < end; j++ {
			l.batch.Add(tokens[j], nil, l.n+j-i, j == len(tokens)-1, 0)
		}
		if err := l.ctx.Decode(l.batch); err != nil {
			return err
		}
		l.n += end - i
		l.logitIdx = end - i - 1
	}
	return nil
}

func (l *llamaModel) StartSampling(p SamplingParams) error {
	repeat := float32(1)
	if p.RepeatPenalty > 0 {
		repeat = float32(p.RepeatPenalty)
	}
	sc, err := llama.NewSamplingContext(l.model, llama.SamplingParams{
		TopK:           p.TopK,
		TopP:           float32(p.TopP),
		MinP:           float32(p.MinP),
		TypicalP:       1,
		Temp:           float32(p.Temperature),
		RepeatLastN:    64,
		PenaltyRepeat:  repeat,
		PenaltyPresent: float32(p.PresencePenalty),
		Seed:           p.Seed,
	})
	if err != nil {
		return err
	}
	l.sampler = sc
	return nil
}

func (l *llamaModel) Sample() (int, error) {
	if l.sampler == nil {
		return 0, errors.New("sampler not started")
	}
	tok := l.sampler.Sample(l.ctx, l.logitIdx)
	l.sampler.Accept(tok, true)
	return tok, nil
}

func (l *llamaModel) Close() error {
	if l.batch != nil {
		l.batch.Free()
		l.batch = nil
	}
	if l.model != nil {
		llama.FreeModel(l.model)
		l.model = nil
	}
	return nil
}
