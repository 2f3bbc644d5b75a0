package supervisor

import (
	"strconv"

	"essaylens/internal/config"
)

// BuildArgs returns the llama-server command line for cfg. Optional settings
// are passed only when present.
func BuildArgs(cfg config.ServerConfig) []string {
	args := []string{
		"-m", cfg.ModelPath,
		"--alias", cfg.ModelAlias,
		"-c", strconv.Itoa(cfg.NCtx),
		"--host", cfg.Host,
		"--port", strconv.Itoa(cfg.Port),
	}
	if cfg.MmprojPath != "" {
		args = append(args, "--mmproj", cfg.MmprojPath)
	}
	if cfg.NThreads != nil {
		args = append(args, "-t", strconv.Itoa(*cfg.NThreads))
	}
	if cfg.NGPULayers != nil {
		args = append(args, "-ngl", strconv.Itoa(*cfg.NGPULayers))
	}
	if cfg.NBatch != nil {
		args = append(args, "-b", strconv.Itoa(*cfg.NBatch))
	}
	if cfg.Seed != nil {
		args = append(args, "--seed", strconv.Itoa(*cfg.Seed))
	}
	if cfg.RopeFreqBase != nil {
		args = append(args, "--rope-freq-base", strconv.FormatFloat(*cfg.RopeFreqBase, 'g', -1, 64))
	}
	if cfg.RopeFreqScale != nil {
		args = append(args, "--rope-freq-scale", strconv.FormatFloat(*cfg.RopeFreqScale, 'g', -1, 64))
	}
	if len(cfg.ExtraArgs) > 0 {
		args = append(args, cfg.ExtraArgs...)
	}
	return args
}
