// Package supervisor owns the lifecycle of one llama-server process: launch,
// readiness probing with a real chat completion, and graceful shutdown.
package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"essaylens/internal/common/fsutil"
	"essaylens/internal/config"
	"essaylens/internal/metrics"
)

// State is the supervisor lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	defaultPollInterval = 250 * time.Millisecond
	defaultStopGrace    = 5 * time.Second
	defaultPingTimeout  = 10 * time.Second
	defaultWait         = 120 * time.Second
)

// process is one launched llama-server. err is written before done is closed.
type process struct {
	cmd     *exec.Cmd
	done    chan struct{}
	err     error
	stdout  *tailBuffer
	stderr  *tailBuffer
	started time.Time
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Supervisor owns exactly one llama-server process. Running a second model
// takes a second Supervisor bound to a different host/port.
type Supervisor struct {
	cfg          config.ServerConfig
	log          zerolog.Logger
	publisher    EventPublisher
	httpClient   *http.Client
	pollInterval time.Duration
	stopGrace    time.Duration
	pingTimeout  time.Duration
	output       io.Writer

	// opMu serialises Start and Stop.
	opMu sync.Mutex

	mu    sync.Mutex
	state State
	proc  *process
	last  *process
	// abortStart cancels the readiness wait of an in-flight Start.
	abortStart context.CancelFunc
}

// Option configures a Supervisor.
type Option func(*Supervisor)

func WithLogger(l zerolog.Logger) Option { return func(s *Supervisor) { s.log = l } }

func WithPublisher(p EventPublisher) Option {
	return func(s *Supervisor) {
		if p == nil {
			p = noopPublisher{}
		}
		s.publisher = p
	}
}

// WithPollInterval sets the sleep between readiness pings.
func WithPollInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithStopGrace sets how long Stop waits after SIGTERM before killing.
func WithStopGrace(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.stopGrace = d
		}
	}
}

func WithPingTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.pingTimeout = d
		}
	}
}

// WithOutput tees the process stdout and stderr to w in addition to the
// captured tails.
func WithOutput(w io.Writer) Option { return func(s *Supervisor) { s.output = w } }

func WithHTTPClient(c *http.Client) Option {
	return func(s *Supervisor) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// New returns a stopped supervisor for cfg.
func New(cfg config.ServerConfig, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:          cfg,
		log:          zerolog.Nop(),
		publisher:    noopPublisher{},
		httpClient:   &http.Client{Timeout: 0},
		pollInterval: defaultPollInterval,
		stopGrace:    defaultStopGrace,
		pingTimeout:  defaultPingTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With().Str("component", "supervisor").Str("model", cfg.ModelAlias).Logger()
	return s
}

// Config returns the server configuration this supervisor launches with.
func (s *Supervisor) Config() config.ServerConfig { return s.cfg }

// BaseURL is the http root of the supervised server.
func (s *Supervisor) BaseURL() string { return s.cfg.BaseURL() }

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRunning reports whether a launched process has not exited yet. It never blocks.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil && !s.proc.exited()
}

// PID returns the process id of the running server, or 0.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil || s.proc.cmd.Process == nil {
		return 0
	}
	return s.proc.cmd.Process.Pid
}

// Output returns the captured stdout and stderr tails of the current or most
// recent process.
func (s *Supervisor) Output() (stdout, stderr string) {
	s.mu.Lock()
	p := s.proc
	if p == nil {
		p = s.last
	}
	s.mu.Unlock()
	if p == nil {
		return "", ""
	}
	return p.stdout.String(), p.stderr.String()
}

// Start launches llama-server and blocks until a readiness ping succeeds,
// the process exits, waitTimeout elapses, or ctx is done. It is a no-op when
// the process is already running. waitTimeout <= 0 uses a 120s default.
func (s *Supervisor) Start(ctx context.Context, waitTimeout time.Duration) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.IsRunning() {
		return nil
	}
	if waitTimeout <= 0 {
		waitTimeout = defaultWait
	}
	if !fsutil.IsRegularFile(s.cfg.ServerBin) {
		metrics.SupervisorStartsTotal.WithLabelValues("not_found").Inc()
		return &NotFoundError{What: "llama-server binary", Path: s.cfg.ServerBin}
	}
	if !fsutil.IsRegularFile(s.cfg.ModelPath) {
		metrics.SupervisorStartsTotal.WithLabelValues("not_found").Inc()
		return &NotFoundError{What: "model file", Path: s.cfg.ModelPath}
	}
	if s.cfg.MmprojPath != "" && !fsutil.IsRegularFile(s.cfg.MmprojPath) {
		metrics.SupervisorStartsTotal.WithLabelValues("not_found").Inc()
		return &NotFoundError{What: "mmproj file", Path: s.cfg.MmprojPath}
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.abortStart = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.abortStart = nil
		s.mu.Unlock()
		cancel()
	}()

	p, err := s.spawn()
	if err != nil {
		metrics.SupervisorStartsTotal.WithLabelValues("startup_failure").Inc()
		s.setState(StateFailed)
		return err
	}
	return s.awaitReady(ctx, p, waitTimeout)
}

func (s *Supervisor) spawn() (*process, error) {
	args := BuildArgs(s.cfg)
	cmd := exec.Command(s.cfg.ServerBin, args...)
	cmd.SysProcAttr = procAttr()
	p := &process{
		cmd:    cmd,
		done:   make(chan struct{}),
		stdout: newTailBuffer(defaultTailBytes),
		stderr: newTailBuffer(defaultTailBytes),
	}
	var stdout, stderr io.Writer = p.stdout, p.stderr
	if s.output != nil {
		stdout = io.MultiWriter(p.stdout, s.output)
		stderr = io.MultiWriter(p.stderr, s.output)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// bounds Wait when a grandchild keeps the output pipes open
	cmd.WaitDelay = s.stopGrace
	if err := cmd.Start(); err != nil {
		return nil, &StartupError{Err: fmt.Errorf("start llama-server: %w", err)}
	}
	p.started = time.Now()

	s.mu.Lock()
	s.proc = p
	s.last = p
	s.state = StateStarting
	s.mu.Unlock()

	pid := cmd.Process.Pid
	s.log.Info().Int("pid", pid).Str("url", s.BaseURL()).Strs("args", args).Msg("spawned llama-server")
	s.publisher.Publish(Event{Name: EventSpawnStart, Model: s.cfg.ModelAlias, Fields: map[string]any{"pid": pid, "host": s.cfg.Host, "port": s.cfg.Port}})

	go func() {
		err := cmd.Wait()
		p.err = err
		s.mu.Lock()
		unexpected := s.proc == p && s.state == StateReady
		if unexpected {
			s.state = StateStopped
			s.proc = nil
		}
		s.mu.Unlock()
		close(p.done)
		if unexpected {
			s.log.Warn().Int("pid", pid).AnErr("exit", err).Msg("llama-server exited")
			s.publisher.Publish(Event{Name: EventSpawnExit, Model: s.cfg.ModelAlias, Fields: map[string]any{"pid": pid, "after_ready": true}})
		}
	}()
	return p, nil
}

func (s *Supervisor) awaitReady(ctx context.Context, p *process, waitTimeout time.Duration) error {
	pid := p.cmd.Process.Pid
	deadline := p.started.Add(waitTimeout)
	for {
		if p.exited() {
			return s.failExited(p)
		}
		remaining := time.Until(deadline)
		if remaining > 0 && s.ping(ctx, min(remaining, s.pingTimeout)) {
			// a ping can race a crash; trust the process state
			if p.exited() {
				return s.failExited(p)
			}
			elapsed := time.Since(p.started)
			s.setState(StateReady)
			metrics.SupervisorStartsTotal.WithLabelValues("ready").Inc()
			metrics.SupervisorReadySeconds.Observe(elapsed.Seconds())
			s.log.Info().Int("pid", pid).Dur("elapsed", elapsed).Msg("llama-server ready")
			s.publisher.Publish(Event{Name: EventSpawnReady, Model: s.cfg.ModelAlias, Fields: map[string]any{"pid": pid, "url": s.BaseURL()}})
			return nil
		}
		if p.exited() {
			return s.failExited(p)
		}
		remaining = time.Until(deadline)
		if remaining <= 0 {
			elapsed := time.Since(p.started)
			s.kill(p)
			s.setState(StateFailed)
			metrics.SupervisorStartsTotal.WithLabelValues("timeout").Inc()
			s.log.Error().Int("pid", pid).Dur("elapsed", elapsed).Msg("llama-server readiness timeout")
			s.publisher.Publish(Event{Name: EventSpawnTimeout, Model: s.cfg.ModelAlias, Fields: map[string]any{"pid": pid}})
			return &TimeoutError{URL: s.BaseURL(), Elapsed: elapsed}
		}
		t := time.NewTimer(min(s.pollInterval, remaining))
		select {
		case <-p.done:
			t.Stop()
		case <-ctx.Done():
			t.Stop()
			s.kill(p)
			s.setState(StateFailed)
			metrics.SupervisorStartsTotal.WithLabelValues("canceled").Inc()
			return fmt.Errorf("waiting for llama-server: %w", ctx.Err())
		case <-t.C:
		}
	}
}

func (s *Supervisor) failExited(p *process) error {
	s.mu.Lock()
	if s.proc == p {
		s.proc = nil
	}
	s.state = StateFailed
	s.mu.Unlock()
	stdout, stderr := p.stdout.String(), p.stderr.String()
	exitErr := p.err
	if exitErr == nil {
		exitErr = fmt.Errorf("exit status 0")
	}
	metrics.SupervisorStartsTotal.WithLabelValues("startup_failure").Inc()
	s.log.Error().Int("pid", p.cmd.Process.Pid).AnErr("exit", exitErr).Msg("llama-server exited before ready")
	s.publisher.Publish(Event{Name: EventSpawnExit, Model: s.cfg.ModelAlias, Fields: map[string]any{"pid": p.cmd.Process.Pid, "error": exitErr.Error()}})
	return &StartupError{Err: exitErr, Stdout: stdout, Stderr: stderr}
}

// ping posts a one-token chat completion. Only HTTP 200 counts as ready:
// llama-server answers its health endpoint before weights finish loading.
func (s *Supervisor) ping(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	body, _ := json.Marshal(map[string]any{
		"model":       s.cfg.ModelAlias,
		"messages":    []map[string]string{{"role": "user", "content": "ping"}},
		"max_tokens":  1,
		"temperature": 0,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL()+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Debug().Err(err).Msg("readiness ping failed")
		return false
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.log.Debug().Int("status", resp.StatusCode).Msg("readiness ping not ok")
	}
	return resp.StatusCode == http.StatusOK
}

// Stop terminates the process: SIGTERM, then SIGKILL after the grace period.
// A Start still waiting for readiness is aborted first and returns
// context.Canceled. Stop is a no-op when nothing is running and always leaves
// the state stopped.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.abortStart != nil {
		s.abortStart()
	}
	s.mu.Unlock()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	p := s.proc
	s.state = StateStopped
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	pid := p.cmd.Process.Pid
	if !p.exited() {
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
		t := time.NewTimer(s.stopGrace)
		select {
		case <-p.done:
			t.Stop()
		case <-t.C:
			s.log.Warn().Int("pid", pid).Dur("grace", s.stopGrace).Msg("llama-server ignored SIGTERM; killing")
			_ = p.cmd.Process.Kill()
			<-p.done
		}
	}
	s.mu.Lock()
	if s.proc == p {
		s.proc = nil
	}
	s.state = StateStopped
	s.mu.Unlock()
	s.log.Info().Int("pid", pid).Msg("llama-server stopped")
	s.publisher.Publish(Event{Name: EventSpawnStop, Model: s.cfg.ModelAlias, Fields: map[string]any{"pid": pid}})
	return nil
}

func (s *Supervisor) kill(p *process) {
	if !p.exited() {
		_ = p.cmd.Process.Kill()
		<-p.done
	}
	s.mu.Lock()
	if s.proc == p {
		s.proc = nil
	}
	s.mu.Unlock()
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
