package types

// Model represents a GGUF model file found on disk.
type Model struct {
	// Stable identifier for the model (the file name).
	// example: Qwen3-4B-Instruct-2507-Q8_0.gguf
	ID string `json:"id" example:"Qwen3-4B-Instruct-2507-Q8_0.gguf"`
	// Human-friendly name. Catalog display name when the file is a known model.
	// example: Qwen3 4B Q8_0 Instruct
	Name string `json:"name" example:"Qwen3 4B Q8_0 Instruct"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/Qwen3-4B-Instruct-2507-Q8_0.gguf
	Path string `json:"path" example:"/home/user/models/Qwen3-4B-Instruct-2507-Q8_0.gguf"`
	// Quantization level or variant string parsed from the file name.
	// example: Q8_0
	Quant string `json:"quant" example:"Q8_0"`
	// Model family (instruct or thinking) when known.
	// example: instruct
	Family string `json:"family,omitempty" example:"instruct"`
	// Catalog key when the file matches a built-in catalog entry.
	// example: qwen3_4b_instruct_q8
	CatalogKey string `json:"catalog_key,omitempty" example:"qwen3_4b_instruct_q8"`
}

// ModelSpec is one entry of the built-in model catalog.
type ModelSpec struct {
	// example: qwen3_4b_instruct_q8
	Key string `json:"key" example:"qwen3_4b_instruct_q8"`
	// example: Qwen3 4B Q8_0 Instruct
	DisplayName string `json:"display_name" example:"Qwen3 4B Q8_0 Instruct"`
	// Hugging Face repository the weights are published in.
	// example: unsloth/Qwen3-4B-Instruct-2507-GGUF
	HFRepoID string `json:"hf_repo_id" example:"unsloth/Qwen3-4B-Instruct-2507-GGUF"`
	// example: Qwen3-4B-Instruct-2507-Q8_0.gguf
	HFFilename string `json:"hf_filename" example:"Qwen3-4B-Instruct-2507-Q8_0.gguf"`
	// Multimodal projector file, set for vision-language models.
	// example: mmproj-F16.gguf
	MmprojFilename string `json:"mmproj_filename,omitempty" example:"mmproj-F16.gguf"`
	// example: server
	Backend string `json:"backend" example:"server"`
	// example: instruct
	Family string `json:"family" example:"instruct"`
	// Context size before the thinking-family doubling.
	// example: 4096
	BaseNCtx int `json:"base_n_ctx" example:"4096"`
	// example: 12
	MinRAMGB int `json:"min_ram_gb" example:"12"`
	// example: 6
	MinVRAMGB int `json:"min_vram_gb" example:"6"`
	// example: 4
	ParamSizeB int    `json:"param_size_b" example:"4"`
	Notes      string `json:"notes,omitempty"`
}
