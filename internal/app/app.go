package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"essaylens/internal/config"
	"essaylens/internal/embedded"
	"essaylens/internal/explain"
	"essaylens/internal/feedback"
	"essaylens/internal/kvcache"
	"essaylens/internal/llm"
	"essaylens/internal/registry"
	"essaylens/internal/supervisor"
)

// App owns one configured backend for the lifetime of the process.
type App struct {
	cfg     config.Config
	log     zerolog.Logger
	explain explain.Recorder
	started time.Time
	adm     *admission

	sup      *supervisor.Supervisor
	supOpts  []supervisor.Option
	client   *llm.Client
	engine   *kvcache.Engine
	embedded *embedded.Chatter
	chat     llm.Chatter

	kvModel   kvcache.Model
	predictor embedded.Predictor

	mu      sync.Mutex
	lastErr string
}

// Option configures an App.
type Option func(*App)

func WithLogger(l zerolog.Logger) Option { return func(a *App) { a.log = l } }

// WithExplain records feedback decisions to rec.
func WithExplain(rec explain.Recorder) Option { return func(a *App) { a.explain = rec } }

// WithSupervisorOptions passes extra options to the llama-server supervisor.
func WithSupervisorOptions(opts ...supervisor.Option) Option {
	return func(a *App) { a.supOpts = append(a.supOpts, opts...) }
}

// WithKVModel uses m instead of loading the kv model from disk.
func WithKVModel(m kvcache.Model) Option { return func(a *App) { a.kvModel = m } }

// WithPredictor uses p instead of loading the embedded model from disk.
func WithPredictor(p embedded.Predictor) Option { return func(a *App) { a.predictor = p } }

// New builds the backend selected by cfg.Backend. The server backend is not
// started; call Start. In-process backends load their model here.
func New(cfg config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		log:     zerolog.Nop(),
		explain: explain.Nop,
		started: time.Now(),
	}
	for _, o := range opts {
		o(a)
	}
	if err := registry.Apply(&a.cfg); err != nil {
		return nil, err
	}
	a.adm = newAdmission(a.cfg.HTTP.Slots, a.cfg.HTTP.MaxQueueDepth, seconds(a.cfg.HTTP.QueueWaitSeconds))

	switch a.cfg.Backend {
	case config.BackendServer:
		if err := a.buildServer(); err != nil {
			return nil, err
		}
	case config.BackendKV:
		if a.kvModel != nil {
			a.engine = kvcache.New(a.kvModel, append(kvcache.ConfigOptions(a.cfg.KV), kvcache.WithLogger(a.log))...)
		} else {
			e, err := kvcache.Open(a.cfg.KV, a.log)
			if err != nil {
				return nil, fmt.Errorf("open kv engine: %w", err)
			}
			a.engine = e
		}
		a.chat = a.engine.Chatter()
	case config.BackendEmbedded:
		if a.predictor != nil {
			a.embedded = embedded.NewChatter(a.predictor, a.cfg.KV, a.log)
		} else {
			c, err := embedded.Open(a.cfg.KV, a.log)
			if err != nil {
				return nil, fmt.Errorf("open embedded model: %w", err)
			}
			a.embedded = c
		}
		a.chat = a.embedded
	default:
		return nil, &config.ValidationError{Field: "backend", Msg: fmt.Sprintf("unsupported backend %q", a.cfg.Backend)}
	}
	a.log.Info().Str("backend", a.cfg.Backend).Str("family", a.cfg.ModelFamily).Msg("backend configured")
	return a, nil
}

func (a *App) buildServer() error {
	base := a.cfg.ServerURL
	if base == "" {
		var overrides map[string]any
		if a.cfg.Server.Port == 0 {
			port, err := supervisor.FreePort(a.cfg.Server.Host)
			if err != nil {
				return err
			}
			overrides = map[string]any{"port": port}
		}
		sc, err := config.ResolveServerConfig(a.cfg, overrides)
		if err != nil {
			return err
		}
		a.sup = supervisor.New(sc, append([]supervisor.Option{supervisor.WithLogger(a.log)}, a.supOpts...)...)
		base = sc.BaseURL()
	}
	a.client = llm.NewClient(base,
		llm.WithModel(a.cfg.Server.ModelAlias),
		llm.WithTimeout(seconds(a.cfg.RequestTimeoutSeconds)),
		llm.WithLogger(a.log),
	)
	a.chat = a.client
	return nil
}

// Start launches the supervised llama-server, if any, and waits for it to
// answer a chat ping.
func (a *App) Start(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	err := a.sup.Start(ctx, seconds(a.cfg.StartTimeoutSeconds))
	a.setErr(err)
	return err
}

// Close stops the server process or releases the in-process model.
func (a *App) Close() error {
	var errs []error
	if a.sup != nil {
		errs = append(errs, a.sup.Stop())
	}
	if a.engine != nil {
		errs = append(errs, a.engine.Close())
	}
	if a.embedded != nil {
		errs = append(errs, a.embedded.Close())
	}
	return errors.Join(errs...)
}

// Ready reports whether chat calls can be served now.
func (a *App) Ready() bool {
	if a.sup != nil {
		return a.sup.State() == supervisor.StateReady && a.sup.IsRunning()
	}
	return a.chat != nil
}

// Config returns the effective configuration, catalog selection applied.
func (a *App) Config() config.Config { return a.cfg }

// Chatter returns the backend-agnostic chat capability.
func (a *App) Chatter() llm.Chatter { return a.chat }

// Feedback returns the sentence-level grading services.
func (a *App) Feedback() *feedback.Service {
	return feedback.NewService(a.chat, a.cfg, a.explain)
}

// CacheFeedback returns the paragraph services. Only the kv backend has them.
func (a *App) CacheFeedback() (*feedback.CacheService, error) {
	if a.engine == nil {
		return nil, ErrNoCache
	}
	return feedback.NewCacheService(a.engine, a.cfg, a.explain), nil
}

func (a *App) setErr(err error) {
	if err == nil {
		return
	}
	a.mu.Lock()
	a.lastErr = err.Error()
	a.mu.Unlock()
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
