//go:build llama

package embedded

import (
	"context"
	"errors"
	"runtime"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"

	"essaylens/internal/config"
)

// Built indicates this binary was compiled with go-llama.cpp.
const Built = true

type llamaPredictor struct {
	model   *llama.LLama
	threads int
}

// Load opens the GGUF at cfg.ModelPath with go-llama.cpp.
func Load(cfg config.KVConfig) (Predictor, error) {
	if strings.TrimSpace(cfg.ModelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{llama.SetContext(zn(cfg.NCtx, 4096))}
	if cfg.NGPULayers > 0 {
		mo = append(mo, llama.SetGPULayers(cfg.NGPULayers))
	}
	m, err := llama.New(cfg.ModelPath, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaPredictor{model: m, threads: zn(cfg.NThreads, runtime.NumCPU())}, nil
}

func (p *llamaPredictor) Predict(ctx context.Context, prompt string, opts PredictOptions) (string, error) {
	if p.model == nil {
		return "", errors.New("llama model not initialized")
	}
	// stop early when the caller gives up
	p.model.SetTokenCallback(func(string) bool { return ctx.Err() == nil })
	text, err := p.model.Predict(prompt, predictOptions(opts, p.threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return text, nil
}

func (p *llamaPredictor) Close() error {
	if p.model != nil {
		p.model.Free()
		p.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v float64, def float32) float32 {
	if v > 0 {
		return float32(v)
	}
	return def
}

// predictOptions converts PredictOptions into go-llama.cpp options.
// Temperature 0 is passed through; other zero values fall back to defaults.
func predictOptions(o PredictOptions, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, o.MaxTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(zf(o.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(o.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(float32(o.Temperature)),
		llama.SetPenalty(zf(o.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if o.Seed != 0 {
		po = append(po, llama.SetSeed(o.Seed))
	}
	if len(o.Stop) > 0 {
		po = append(po, llama.SetStopWords(o.Stop...))
	}
	return po
}
