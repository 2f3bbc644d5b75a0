package llm

import "essaylens/internal/config"

// CallOption adjusts a single chat call. Options apply in order; a later
// option overrides fields set by an earlier one.
type CallOption func(*callOptions)

type callOptions struct {
	temperature    *float64
	topP           *float64
	topK           *int
	repeatPenalty  *float64
	seed           *int
	stop           []string
	responseFormat map[string]any
}

// WithTemperature sets the sampling temperature for one call.
func WithTemperature(t float64) CallOption {
	return func(o *callOptions) { o.temperature = &t }
}

// WithRequest applies a resolved request configuration. MaxTokens is not
// taken from rc; callers pass it explicitly.
func WithRequest(rc config.RequestConfig) CallOption {
	return func(o *callOptions) {
		t := rc.Temperature
		o.temperature = &t
		o.topP = rc.TopP
		o.topK = rc.TopK
		o.repeatPenalty = rc.RepeatPenalty
		o.seed = rc.Seed
		o.stop = rc.Stop
		o.responseFormat = rc.ResponseFormat
	}
}

// WithStop sets stop sequences for one call.
func WithStop(stop ...string) CallOption {
	return func(o *callOptions) { o.stop = stop }
}

func resolveCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// Temperature returns the temperature selected by opts, or def.
func Temperature(def float64, opts ...CallOption) float64 {
	o := resolveCallOptions(opts)
	if o.temperature != nil {
		return *o.temperature
	}
	return def
}

// Sampling is the resolved view of a call's options for backends that sample
// in process. Nil fields and an empty Stop were not set by any option.
type Sampling struct {
	Temperature   *float64
	TopP          *float64
	TopK          *int
	RepeatPenalty *float64
	Seed          *int
	Stop          []string
}

// ResolveSampling applies opts in order and returns the sampling fields.
func ResolveSampling(opts ...CallOption) Sampling {
	o := resolveCallOptions(opts)
	return Sampling{
		Temperature:   o.temperature,
		TopP:          o.topP,
		TopK:          o.topK,
		RepeatPenalty: o.repeatPenalty,
		Seed:          o.seed,
		Stop:          o.stop,
	}
}
