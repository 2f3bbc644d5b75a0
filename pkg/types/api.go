package types

import "encoding/json"

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	// Optional system prompt.
	// example: Always answer in plain English.
	System string `json:"system,omitempty" example:"Always answer in plain English."`
	// Required user message.
	// example: Write a haiku about the ocean.
	User string `json:"user" example:"Write a haiku about the ocean."`
	// Task whose preset request parameters apply. Empty uses the global defaults.
	// example: answer
	Task string `json:"task,omitempty" example:"answer"`
	// Maximum number of new tokens. Overrides the task preset when > 0.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature. Overrides the task preset when set.
	// example: 0.2
	Temperature *float64 `json:"temperature,omitempty" example:"0.2"`
	// If true, stream results as NDJSON chunks.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	// Extra request overrides (top_p, top_k, repeat_penalty, seed, stop).
	Overrides map[string]any `json:"overrides,omitempty"`
}

// ChatResponse is returned by POST /v1/chat when stream is false.
type ChatResponse struct {
	Message Message `json:"message"`
	// example: answer
	Task string `json:"task,omitempty" example:"answer"`
	// Backend that served the call.
	// example: server
	Backend string `json:"backend" example:"server"`
}

// StreamChunk is one NDJSON line of a streamed chat. The last line has Done set.
type StreamChunk struct {
	// example: Hello
	Token string `json:"token,omitempty" example:"Hello"`
	// example: false
	Done bool `json:"done,omitempty" example:"false"`
	// Number of chunks sent before the final line.
	// example: 12
	Chunks int `json:"chunks,omitempty" example:"12"`
	// Error that ended the stream early, reported on the final line.
	Error string `json:"error,omitempty"`
}

// JSONRequest is the body of POST /v1/json.
type JSONRequest struct {
	System string `json:"system,omitempty"`
	// example: Extract the student name from: Ann wrote this.
	User string `json:"user" example:"Extract the student name from: Ann wrote this."`
	// example: metadata_extraction
	Task string `json:"task,omitempty" example:"metadata_extraction"`
	// example: 256
	MaxTokens int `json:"max_tokens,omitempty" example:"256"`
	// JSON schema the reply must follow.
	Schema map[string]any `json:"schema"`
}

// JSONResponse wraps the decoded object returned by POST /v1/json.
type JSONResponse struct {
	Data json.RawMessage `json:"data" swaggertype:"object"`
	// example: server
	Backend string `json:"backend" example:"server"`
}

// ModelsResponse is returned by GET /v1/models.
type ModelsResponse struct {
	// Model files found in the models directory.
	Models []Model `json:"models"`
	// Built-in catalog entries.
	Catalog []ModelSpec `json:"catalog"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Raw model output for decode failures.
	Raw string `json:"raw,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Configured backend: server, kv or embedded.
	// example: server
	Backend string `json:"backend" example:"server"`
	// Model alias or path in use.
	// example: Qwen3 4B Q8_0 Instruct
	Model string `json:"model" example:"Qwen3 4B Q8_0 Instruct"`
	// example: instruct
	Family string `json:"family" example:"instruct"`
	// Backend state (e.g., stopped, starting, ready, failed).
	// example: ready
	State string `json:"state" example:"ready"`
	// Chat completions endpoint of the server backend.
	// example: http://127.0.0.1:8080/v1/chat/completions
	ChatURL string `json:"chat_url,omitempty" example:"http://127.0.0.1:8080/v1/chat/completions"`
	// Process ID of the supervised llama-server (server backend only).
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// Tokens currently held in the KV cache (kv backend only).
	// example: 312
	CacheTokens int `json:"cache_tokens,omitempty" example:"312"`
	// Chat calls waiting for or holding a slot.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Chat calls currently running.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued calls allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Last startup or call error, if any.
	LastError string `json:"last_error,omitempty"`
	// Uptime of the daemon in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
