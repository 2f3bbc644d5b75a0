package config

import (
	"fmt"
	"strings"

	"essaylens/internal/common/fsutil"
)

// Backend names accepted by Config.Backend.
const (
	BackendServer   = "server"
	BackendKV       = "kv"
	BackendEmbedded = "embedded"
)

// Model families. Thinking models may return an empty answer and put their
// deliberation in a separate reasoning field.
const (
	FamilyInstruct = "instruct"
	FamilyThinking = "thinking"
)

// ServerConfig describes how to launch one llama-server process.
// Pointer fields are optional; nil means the flag is not passed.
type ServerConfig struct {
	ServerBin     string   `json:"server_bin" yaml:"server_bin" toml:"server_bin" mapstructure:"server_bin"`
	ModelPath     string   `json:"model_path" yaml:"model_path" toml:"model_path" mapstructure:"model_path"`
	MmprojPath    string   `json:"mmproj_path,omitempty" yaml:"mmproj_path,omitempty" toml:"mmproj_path,omitempty" mapstructure:"mmproj_path"`
	ModelAlias    string   `json:"model_alias" yaml:"model_alias" toml:"model_alias" mapstructure:"model_alias"`
	Host          string   `json:"host" yaml:"host" toml:"host" mapstructure:"host"`
	Port          int      `json:"port" yaml:"port" toml:"port" mapstructure:"port"`
	NCtx          int      `json:"n_ctx" yaml:"n_ctx" toml:"n_ctx" mapstructure:"n_ctx"`
	NThreads      *int     `json:"n_threads,omitempty" yaml:"n_threads,omitempty" toml:"n_threads,omitempty" mapstructure:"n_threads"`
	NGPULayers    *int     `json:"n_gpu_layers,omitempty" yaml:"n_gpu_layers,omitempty" toml:"n_gpu_layers,omitempty" mapstructure:"n_gpu_layers"`
	NBatch        *int     `json:"n_batch,omitempty" yaml:"n_batch,omitempty" toml:"n_batch,omitempty" mapstructure:"n_batch"`
	Seed          *int     `json:"seed,omitempty" yaml:"seed,omitempty" toml:"seed,omitempty" mapstructure:"seed"`
	RopeFreqBase  *float64 `json:"rope_freq_base,omitempty" yaml:"rope_freq_base,omitempty" toml:"rope_freq_base,omitempty" mapstructure:"rope_freq_base"`
	RopeFreqScale *float64 `json:"rope_freq_scale,omitempty" yaml:"rope_freq_scale,omitempty" toml:"rope_freq_scale,omitempty" mapstructure:"rope_freq_scale"`
	// ExtraArgs are appended verbatim after the generated flags.
	ExtraArgs []string `json:"extra_args,omitempty" yaml:"extra_args,omitempty" toml:"extra_args,omitempty" mapstructure:"extra_args"`
}

// BaseURL returns the http root of the server described by c.
func (c ServerConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

func (c ServerConfig) clone() ServerConfig {
	out := c
	out.NThreads = cloneInt(c.NThreads)
	out.NGPULayers = cloneInt(c.NGPULayers)
	out.NBatch = cloneInt(c.NBatch)
	out.Seed = cloneInt(c.Seed)
	out.RopeFreqBase = cloneFloat(c.RopeFreqBase)
	out.RopeFreqScale = cloneFloat(c.RopeFreqScale)
	out.ExtraArgs = append([]string(nil), c.ExtraArgs...)
	return out
}

// RequestConfig holds the generation parameters for one chat call.
type RequestConfig struct {
	MaxTokens      int            `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens" mapstructure:"max_tokens"`
	Temperature    float64        `json:"temperature" yaml:"temperature" toml:"temperature" mapstructure:"temperature"`
	TopP           *float64       `json:"top_p,omitempty" yaml:"top_p,omitempty" toml:"top_p,omitempty" mapstructure:"top_p"`
	TopK           *int           `json:"top_k,omitempty" yaml:"top_k,omitempty" toml:"top_k,omitempty" mapstructure:"top_k"`
	RepeatPenalty  *float64       `json:"repeat_penalty,omitempty" yaml:"repeat_penalty,omitempty" toml:"repeat_penalty,omitempty" mapstructure:"repeat_penalty"`
	Seed           *int           `json:"seed,omitempty" yaml:"seed,omitempty" toml:"seed,omitempty" mapstructure:"seed"`
	Stop           []string       `json:"stop,omitempty" yaml:"stop,omitempty" toml:"stop,omitempty" mapstructure:"stop"`
	ResponseFormat map[string]any `json:"response_format,omitempty" yaml:"response_format,omitempty" toml:"response_format,omitempty" mapstructure:"response_format"`
	Stream         *bool          `json:"stream,omitempty" yaml:"stream,omitempty" toml:"stream,omitempty" mapstructure:"stream"`
}

func (c RequestConfig) clone() RequestConfig {
	out := c
	out.TopP = cloneFloat(c.TopP)
	out.TopK = cloneInt(c.TopK)
	out.RepeatPenalty = cloneFloat(c.RepeatPenalty)
	out.Seed = cloneInt(c.Seed)
	out.Stop = append([]string(nil), c.Stop...)
	if c.ResponseFormat != nil {
		out.ResponseFormat = make(map[string]any, len(c.ResponseFormat))
		for k, v := range c.ResponseFormat {
			out.ResponseFormat[k] = v
		}
	}
	if c.Stream != nil {
		v := *c.Stream
		out.Stream = &v
	}
	return out
}

// KVConfig configures the in-process prefix cache engine.
type KVConfig struct {
	ModelPath       string  `json:"model_path" yaml:"model_path" toml:"model_path"`
	NCtx            int     `json:"n_ctx" yaml:"n_ctx" toml:"n_ctx"`
	NThreads        int     `json:"n_threads,omitempty" yaml:"n_threads,omitempty" toml:"n_threads,omitempty"`
	NGPULayers      int     `json:"n_gpu_layers,omitempty" yaml:"n_gpu_layers,omitempty" toml:"n_gpu_layers,omitempty"`
	NBatch          int     `json:"n_batch,omitempty" yaml:"n_batch,omitempty" toml:"n_batch,omitempty"`
	ThinkingMode    string  `json:"thinking_mode" yaml:"thinking_mode" toml:"thinking_mode"`
	Temperature     float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP            float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	TopK            int     `json:"top_k" yaml:"top_k" toml:"top_k"`
	MinP            float64 `json:"min_p" yaml:"min_p" toml:"min_p"`
	PresencePenalty float64 `json:"presence_penalty" yaml:"presence_penalty" toml:"presence_penalty"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level string `json:"level" yaml:"level" toml:"level"`
	// Format is "console" or "json".
	Format string `json:"format" yaml:"format" toml:"format"`
	// File, when set, receives a rotated copy of the log stream.
	File       string `json:"file,omitempty" yaml:"file,omitempty" toml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty" toml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty" toml:"max_backups,omitempty"`
	// ExplainFile is the per-run explainability trace.
	ExplainFile string `json:"explain_file,omitempty" yaml:"explain_file,omitempty" toml:"explain_file,omitempty"`
}

// HTTPConfig configures the local daemon surface.
type HTTPConfig struct {
	Addr           string   `json:"addr" yaml:"addr" toml:"addr"`
	MaxBodyBytes   int64    `json:"max_body_bytes,omitempty" yaml:"max_body_bytes,omitempty" toml:"max_body_bytes,omitempty"`
	CORSEnabled    bool     `json:"cors_enabled,omitempty" yaml:"cors_enabled,omitempty" toml:"cors_enabled,omitempty"`
	CORSOrigins    []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty" toml:"cors_origins,omitempty"`
	ShutdownSecond int      `json:"shutdown_seconds,omitempty" yaml:"shutdown_seconds,omitempty" toml:"shutdown_seconds,omitempty"`
	// Slots is the number of chat calls run concurrently against the backend.
	Slots int `json:"slots,omitempty" yaml:"slots,omitempty" toml:"slots,omitempty"`
	// MaxQueueDepth bounds calls waiting for a slot; beyond it callers get 429.
	MaxQueueDepth    int `json:"max_queue_depth,omitempty" yaml:"max_queue_depth,omitempty" toml:"max_queue_depth,omitempty"`
	QueueWaitSeconds int `json:"queue_wait_seconds,omitempty" yaml:"queue_wait_seconds,omitempty" toml:"queue_wait_seconds,omitempty"`
}

// Config is the application configuration. It is built once at startup, from
// defaults and an optional file; resolvers read it but never mutate it.
type Config struct {
	Backend     string `json:"backend" yaml:"backend" toml:"backend"`
	// ModelFamily is instruct or thinking. Left empty, the catalog entry
	// decides, falling back to instruct.
	ModelFamily string `json:"model_family" yaml:"model_family" toml:"model_family"`
	// ModelKey selects a built-in catalog entry; see registry.Catalog.
	ModelKey  string `json:"model_key,omitempty" yaml:"model_key,omitempty" toml:"model_key,omitempty"`
	ModelsDir string `json:"models_dir,omitempty" yaml:"models_dir,omitempty" toml:"models_dir,omitempty"`
	// ServerURL points the chat client at an already running backend and
	// disables process supervision.
	ServerURL string `json:"server_url,omitempty" yaml:"server_url,omitempty" toml:"server_url,omitempty"`
	// StartTimeoutSeconds bounds the readiness wait of a supervised server.
	StartTimeoutSeconds int `json:"start_timeout_seconds" yaml:"start_timeout_seconds" toml:"start_timeout_seconds"`
	// RequestTimeoutSeconds bounds each chat call.
	RequestTimeoutSeconds int `json:"request_timeout_seconds" yaml:"request_timeout_seconds" toml:"request_timeout_seconds"`

	Server  ServerConfig              `json:"server" yaml:"server" toml:"server"`
	Request RequestConfig             `json:"request" yaml:"request" toml:"request"`
	Tasks   map[string]map[string]any `json:"tasks,omitempty" yaml:"tasks,omitempty" toml:"tasks,omitempty"`
	KV      KVConfig                  `json:"kv" yaml:"kv" toml:"kv"`
	Log     LogConfig                 `json:"log" yaml:"log" toml:"log"`
	HTTP    HTTPConfig                `json:"http" yaml:"http" toml:"http"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:               BackendServer,
		StartTimeoutSeconds:   120,
		RequestTimeoutSeconds: 120,
		Server: ServerConfig{
			ModelAlias: "llama",
			Host:       "127.0.0.1",
			Port:       8080,
			NCtx:       4096,
		},
		Request: RequestConfig{
			MaxTokens:   256,
			Temperature: 0.2,
		},
		KV: KVConfig{
			NCtx:            4096,
			ThinkingMode:    "no_think",
			Temperature:     0.7,
			TopP:            0.8,
			TopK:            20,
			MinP:            0,
			PresencePenalty: 1.5,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		HTTP: HTTPConfig{
			Addr:             "127.0.0.1:8090",
			MaxBodyBytes:     1 << 20,
			ShutdownSecond:   5,
			Slots:            1,
			MaxQueueDepth:    32,
			QueueWaitSeconds: 30,
		},
	}
}

// Normalize expands and absolutizes every path field and validates enums.
// It is the one place configuration construction touches the environment.
func (c *Config) Normalize() error {
	for _, p := range []*string{&c.Server.ServerBin, &c.Server.ModelPath, &c.Server.MmprojPath, &c.KV.ModelPath, &c.ModelsDir, &c.Log.File, &c.Log.ExplainFile} {
		v, err := fsutil.ResolvePath(*p)
		if err != nil {
			return err
		}
		*p = v
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case BackendServer, BackendKV, BackendEmbedded:
	default:
		return &ValidationError{Field: "backend", Msg: fmt.Sprintf("unsupported backend %q", c.Backend)}
	}
	c.ModelFamily = strings.ToLower(strings.TrimSpace(c.ModelFamily))
	switch c.ModelFamily {
	case "", FamilyInstruct, FamilyThinking:
	default:
		return &ValidationError{Field: "model_family", Msg: fmt.Sprintf("unsupported model family %q", c.ModelFamily)}
	}
	switch c.KV.ThinkingMode {
	case "no_think", "think", "":
	default:
		return &ValidationError{Field: "kv.thinking_mode", Msg: fmt.Sprintf("unsupported thinking mode %q", c.KV.ThinkingMode)}
	}
	return nil
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
