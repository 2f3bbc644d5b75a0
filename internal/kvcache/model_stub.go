//go:build !llamakv

package kvcache

import "essaylens/internal/config"

// Built reports whether the in-process model binding is compiled in.
const Built = false

// Load always fails without the llamakv build tag.
func Load(config.KVConfig) (Model, error) { return nil, ErrUnavailable }
