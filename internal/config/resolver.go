package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ResolveServerConfig starts from the app-wide server settings and applies
// overrides. It never reads the environment or the filesystem; callers check
// that the binary and model files exist before launching.
func ResolveServerConfig(cfg Config, overrides map[string]any) (ServerConfig, error) {
	out := cfg.Server.clone()
	if err := applyOverrides(&out, overrides); err != nil {
		return ServerConfig{}, err
	}
	if strings.TrimSpace(out.ServerBin) == "" {
		return ServerConfig{}, &ValidationError{Field: "server_bin", Msg: "llama-server binary path is required for the server backend"}
	}
	if strings.TrimSpace(out.Host) == "" {
		return ServerConfig{}, &ValidationError{Field: "host", Msg: "host is required"}
	}
	if out.Port <= 0 || out.Port > 65535 {
		return ServerConfig{}, &ValidationError{Field: "port", Msg: fmt.Sprintf("port must be in 1..65535, got %d", out.Port)}
	}
	if out.NCtx < 0 {
		return ServerConfig{}, &ValidationError{Field: "n_ctx", Msg: "n_ctx must not be negative"}
	}
	return out, nil
}

// ResolveRequestConfig layers, in order: global request defaults, the built-in
// defaults for task, task entries from the config file, then overrides.
// A task with no registered defaults resolves to the global defaults.
func ResolveRequestConfig(task string, cfg Config, overrides map[string]any) (RequestConfig, error) {
	out := cfg.Request.clone()
	if d, ok := taskDefaults[task]; ok {
		if err := applyOverrides(&out, d); err != nil {
			return RequestConfig{}, fmt.Errorf("task %s defaults: %w", task, err)
		}
	}
	if d, ok := cfg.Tasks[task]; ok {
		if err := applyOverrides(&out, d); err != nil {
			return RequestConfig{}, fmt.Errorf("task %s config: %w", task, err)
		}
	}
	if err := applyOverrides(&out, overrides); err != nil {
		return RequestConfig{}, err
	}
	if out.MaxTokens <= 0 {
		return RequestConfig{}, &ValidationError{Field: "max_tokens", Msg: fmt.Sprintf("max_tokens must be positive, got %d", out.MaxTokens)}
	}
	return out, nil
}

// applyOverrides decodes overrides into dst. Keys must match a field tag
// exactly; any leftover key fails the whole call. dst must not share pointers
// with caller-visible config since decoding writes through them.
func applyOverrides[T any](dst *T, overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	tmp := *dst
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &tmp,
		Metadata:         &md,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		MatchName:        func(mapKey, fieldName string) bool { return mapKey == fieldName },
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(overrides); err != nil {
		return &ValidationError{Msg: err.Error()}
	}
	if len(md.Unused) > 0 {
		unknown := append([]string(nil), md.Unused...)
		sort.Strings(unknown)
		return &ValidationError{Unknown: unknown}
	}
	*dst = tmp
	return nil
}
