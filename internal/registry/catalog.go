package registry

import (
	"fmt"
	"path/filepath"

	"essaylens/internal/common/fsutil"
	"essaylens/internal/config"
	"essaylens/pkg/types"
)

var catalog = []types.ModelSpec{
	{
		Key:         "qwen3_4b_instruct_q8",
		DisplayName: "Qwen3 4B Q8_0 Instruct",
		HFRepoID:    "unsloth/Qwen3-4B-Instruct-2507-GGUF",
		HFFilename:  "Qwen3-4B-Instruct-2507-Q8_0.gguf",
		Backend:     config.BackendServer,
		Family:      config.FamilyInstruct,
		BaseNCtx:    4096,
		MinRAMGB:    12,
		MinVRAMGB:   6,
		ParamSizeB:  4,
		Notes:       "CPU/GPU friendly; good quality for 4B.",
	},
	{
		Key:         "qwen3_4b_thinking_q8",
		DisplayName: "Qwen3 4B Q8_0 Thinking",
		HFRepoID:    "unsloth/Qwen3-4B-Thinking-2507-GGUF",
		HFFilename:  "Qwen3-4B-Thinking-2507-Q8_0.gguf",
		Backend:     config.BackendServer,
		Family:      config.FamilyThinking,
		BaseNCtx:    4096,
		MinRAMGB:    12,
		MinVRAMGB:   6,
		ParamSizeB:  4,
		Notes:       "Thinking variant; slower but stronger reasoning.",
	},
	{
		Key:            "qwen3_8b_vl_instruct_q8",
		DisplayName:    "Qwen3 8B Q8_0 Instruct (VL)",
		HFRepoID:       "unsloth/Qwen3-VL-8B-Instruct-GGUF",
		HFFilename:     "Qwen3-VL-8B-Instruct-Q8_0.gguf",
		MmprojFilename: "mmproj-F16.gguf",
		Backend:        config.BackendServer,
		Family:         config.FamilyInstruct,
		BaseNCtx:       4096,
		MinRAMGB:       20,
		MinVRAMGB:      10,
		ParamSizeB:     8,
		Notes:          "VL model; needs mmproj for vision tasks.",
	},
	{
		Key:            "qwen3_vl_30B_A3B_instruct",
		DisplayName:    "Qwen3 30B A3B Q4_K_M Instruct (VL)",
		HFRepoID:       "Qwen/Qwen3-VL-30B-A3B-Instruct-GGUF",
		HFFilename:     "Qwen3VL-30B-A3B-Instruct-Q4_K_M.gguf",
		MmprojFilename: "mmproj-F16.gguf",
		Backend:        config.BackendServer,
		Family:         config.FamilyInstruct,
		BaseNCtx:       4096,
		MinRAMGB:       22,
		MinVRAMGB:      12,
		ParamSizeB:     30,
		Notes:          "VL model; needs mmproj for vision tasks.",
	},
	{
		Key:            "qwen3_8b_vl_thinking_q8",
		DisplayName:    "Qwen3 8B Q8_0 Thinking (VL)",
		HFRepoID:       "unsloth/Qwen3-VL-8B-Thinking-GGUF",
		HFFilename:     "Qwen3-VL-8B-Thinking-Q8_0.gguf",
		MmprojFilename: "mmproj-F16.gguf",
		Backend:        config.BackendServer,
		Family:         config.FamilyThinking,
		BaseNCtx:       4096,
		MinRAMGB:       20,
		MinVRAMGB:      10,
		ParamSizeB:     8,
		Notes:          "VL thinking variant; highest quality if it fits.",
	},
	{
		Key:         "gemma-3-1b-it",
		DisplayName: "Gemma3 1B IT",
		HFRepoID:    "bartowski/google_gemma-3-1b-it-GGUF",
		HFFilename:  "google_gemma-3-1b-it-bf16.gguf",
		Backend:     config.BackendServer,
		Family:      config.FamilyInstruct,
		BaseNCtx:    4096,
		MinRAMGB:    6,
		MinVRAMGB:   4,
		ParamSizeB:  1,
		Notes:       "CPU/GPU friendly; good quality for 1B.",
	},
}

// Catalog returns a copy of the built-in model catalog.
func Catalog() []types.ModelSpec {
	return append([]types.ModelSpec(nil), catalog...)
}

// Lookup finds a catalog entry by key.
func Lookup(key string) (types.ModelSpec, bool) {
	for _, s := range catalog {
		if s.Key == key {
			return s, true
		}
	}
	return types.ModelSpec{}, false
}

// NCtx is the context size to run spec with. Thinking models get twice the
// base size to leave room for the reasoning trace.
func NCtx(spec types.ModelSpec) int {
	if spec.Family == config.FamilyThinking {
		return spec.BaseNCtx * 2
	}
	return spec.BaseNCtx
}

// Installed reports whether the weights of spec (and its projector, if any)
// are present in dir.
func Installed(spec types.ModelSpec, dir string) bool {
	if !fsutil.IsRegularFile(filepath.Join(dir, spec.HFFilename)) {
		return false
	}
	return spec.MmprojFilename == "" || fsutil.IsRegularFile(filepath.Join(dir, spec.MmprojFilename))
}

// Apply points cfg at the catalog entry cfg.ModelKey. Model paths are
// resolved against cfg.ModelsDir and the key becomes the server alias. A
// family set by the user wins over the catalog's; with neither, the family is
// instruct.
func Apply(cfg *config.Config) error {
	if cfg.ModelKey == "" {
		if cfg.ModelFamily == "" {
			cfg.ModelFamily = config.FamilyInstruct
		}
		return nil
	}
	spec, ok := Lookup(cfg.ModelKey)
	if !ok {
		return &config.ValidationError{Field: "model_key", Msg: fmt.Sprintf("unknown catalog model %q", cfg.ModelKey)}
	}
	if cfg.ModelsDir == "" {
		return &config.ValidationError{Field: "models_dir", Msg: "required when model_key is set"}
	}
	model := filepath.Join(cfg.ModelsDir, spec.HFFilename)
	cfg.Server.ModelPath = model
	cfg.KV.ModelPath = model
	cfg.Server.MmprojPath = ""
	if spec.MmprojFilename != "" {
		cfg.Server.MmprojPath = filepath.Join(cfg.ModelsDir, spec.MmprojFilename)
	}
	cfg.Server.ModelAlias = spec.Key
	if cfg.ModelFamily == "" {
		cfg.ModelFamily = spec.Family
	}
	cfg.Server.NCtx = NCtx(spec)
	cfg.KV.NCtx = NCtx(spec)
	return nil
}
