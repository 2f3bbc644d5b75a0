//go:build !llama

package embedded

import "essaylens/internal/config"

// Built is false in builds without cgo llama support.
const Built = false

// Load fails fast; no mocked inference ships in production binaries.
func Load(config.KVConfig) (Predictor, error) { return nil, ErrUnavailable }
