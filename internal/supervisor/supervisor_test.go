package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"essaylens/internal/config"
)

var (
	fakeOnce sync.Once
	fakeBin  string
	fakeErr  error
	fakeDir  string
)

func TestMain(m *testing.M) {
	code := m.Run()
	if fakeDir != "" {
		_ = os.RemoveAll(fakeDir)
	}
	os.Exit(code)
}

// buildTestBinary builds the fake llama server once per package run and returns its path.
func buildTestBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("signal handling differs on windows")
	}
	if testing.Short() {
		t.Skip("short mode")
	}
	fakeOnce.Do(func() {
		fakeDir, fakeErr = os.MkdirTemp("", "fake-llama-*")
		if fakeErr != nil {
			return
		}
		fakeBin = filepath.Join(fakeDir, "fake_llama_server")
		cmd := exec.Command("go", "build", "-o", fakeBin, "./testdata/fake_llama_server.go")
		cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
		if out, err := cmd.CombinedOutput(); err != nil {
			fakeErr = fmt.Errorf("build fake server: %v: %s", err, out)
		}
	})
	if fakeErr != nil {
		t.Fatal(fakeErr)
	}
	return fakeBin
}

func testServerConfig(t *testing.T, bin string) config.ServerConfig {
	t.Helper()
	d := t.TempDir()
	model := filepath.Join(d, "m.gguf")
	if err := os.WriteFile(model, []byte("gguf"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	port, err := FreePort("127.0.0.1")
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	return config.ServerConfig{
		ServerBin:  bin,
		ModelPath:  model,
		ModelAlias: "test-model",
		Host:       "127.0.0.1",
		Port:       port,
		NCtx:       2048,
	}
}

func newTestSupervisor(cfg config.ServerConfig, pub EventPublisher, opts ...Option) *Supervisor {
	base := []Option{WithPublisher(pub), WithPollInterval(50 * time.Millisecond), WithStopGrace(2 * time.Second), WithPingTimeout(time.Second)}
	return New(cfg, append(base, opts...)...)
}

func hasEvent(pub *MemoryPublisher, name string) bool {
	for _, n := range pub.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func TestStartNotFound(t *testing.T) {
	d := t.TempDir()
	model := filepath.Join(d, "m.gguf")
	_ = os.WriteFile(model, []byte("x"), 0o644)

	pub := NewMemoryPublisher()
	s := newTestSupervisor(config.ServerConfig{ServerBin: filepath.Join(d, "missing-bin"), ModelPath: model, Host: "127.0.0.1", Port: 1}, pub)
	err := s.Start(context.Background(), time.Second)
	if !IsNotFound(err) {
		t.Fatalf("expected not found for binary, got %v", err)
	}

	s = newTestSupervisor(config.ServerConfig{ServerBin: model, ModelPath: filepath.Join(d, "missing.gguf"), Host: "127.0.0.1", Port: 1}, pub)
	err = s.Start(context.Background(), time.Second)
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.What != "model file" {
		t.Fatalf("expected model not found, got %v", err)
	}
	if s.IsRunning() || s.State() != StateStopped {
		t.Fatalf("unexpected state after not found: running=%v state=%s", s.IsRunning(), s.State())
	}
	if len(pub.Events()) != 0 {
		t.Fatalf("no process should have been spawned: %v", pub.Names())
	}
}

func TestStartAndStop(t *testing.T) {
	bin := buildTestBinary(t)
	pub := NewMemoryPublisher()
	s := newTestSupervisor(testServerConfig(t, bin), pub)
	t.Cleanup(func() { _ = s.Stop() })

	if err := s.Start(context.Background(), 10*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.IsRunning() || s.State() != StateReady || s.PID() <= 0 {
		t.Fatalf("not ready: running=%v state=%s pid=%d", s.IsRunning(), s.State(), s.PID())
	}
	pid := s.PID()
	// second Start is a no-op
	if err := s.Start(context.Background(), time.Second); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if s.PID() != pid {
		t.Fatalf("second Start relaunched: pid %d -> %d", pid, s.PID())
	}
	if stdout, _ := s.Output(); !strings.Contains(stdout, "alias=test-model") {
		t.Fatalf("stdout not captured: %q", stdout)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.IsRunning() || s.State() != StateStopped {
		t.Fatalf("after stop: running=%v state=%s", s.IsRunning(), s.State())
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	want := []string{EventSpawnStart, EventSpawnReady, EventSpawnStop}
	got := pub.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events=%v want %v", got, want)
	}
}

func TestStartWaitsForDelayedReadiness(t *testing.T) {
	bin := buildTestBinary(t)
	t.Setenv("FAKE_READY_DELAY_MS", "1500")

	s := newTestSupervisor(testServerConfig(t, bin), NewMemoryPublisher())
	t.Cleanup(func() { _ = s.Stop() })
	start := time.Now()
	if err := s.Start(context.Background(), 1500*time.Millisecond+5*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if el := time.Since(start); el < 1400*time.Millisecond {
		t.Fatalf("ready too early: %s", el)
	}
}

func TestStartTimesOut(t *testing.T) {
	bin := buildTestBinary(t)
	t.Setenv("FAKE_READY_DELAY_MS", "5000")

	pub := NewMemoryPublisher()
	s := newTestSupervisor(testServerConfig(t, bin), pub)
	t.Cleanup(func() { _ = s.Stop() })
	err := s.Start(context.Background(), 700*time.Millisecond)
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if IsStartupFailure(err) {
		t.Fatalf("timeout must not be reported as startup failure")
	}
	if s.IsRunning() || s.State() != StateFailed {
		t.Fatalf("after timeout: running=%v state=%s", s.IsRunning(), s.State())
	}
	if !hasEvent(pub, EventSpawnTimeout) {
		t.Fatalf("missing timeout event: %v", pub.Names())
	}
}

func TestStartEarlyExitIsStartupFailure(t *testing.T) {
	bin := buildTestBinary(t)
	t.Setenv("FAKE_EXIT_EARLY", "3")

	pub := NewMemoryPublisher()
	s := newTestSupervisor(testServerConfig(t, bin), pub)
	start := time.Now()
	err := s.Start(context.Background(), 30*time.Second)
	var se *StartupError
	if !errors.As(err, &se) {
		t.Fatalf("expected startup failure, got %v", err)
	}
	if IsTimeout(err) {
		t.Fatalf("early exit reported as timeout")
	}
	if time.Since(start) > 10*time.Second {
		t.Fatalf("early exit was not detected promptly")
	}
	if !strings.Contains(se.Stderr, "failed to load model") || !strings.Contains(se.Stdout, "loading model") {
		t.Fatalf("captured output missing: stdout=%q stderr=%q", se.Stdout, se.Stderr)
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Fatalf("expected exit code 3, got %v", se.Err)
	}
	if s.State() != StateFailed || s.IsRunning() {
		t.Fatalf("state=%s running=%v", s.State(), s.IsRunning())
	}
	if !hasEvent(pub, EventSpawnStart) || !hasEvent(pub, EventSpawnExit) {
		t.Fatalf("expected spawn_start and spawn_exit, got %v", pub.Names())
	}
}

func TestStartCleanExitBeforeReady(t *testing.T) {
	bin := buildTestBinary(t)
	t.Setenv("FAKE_EXIT_EARLY", "0")

	s := newTestSupervisor(testServerConfig(t, bin), NewMemoryPublisher())
	err := s.Start(context.Background(), 30*time.Second)
	if !IsStartupFailure(err) {
		t.Fatalf("expected startup failure for clean exit, got %v", err)
	}
}

func TestStartContextCanceled(t *testing.T) {
	bin := buildTestBinary(t)
	t.Setenv("FAKE_READY_DELAY_MS", "10000")

	s := newTestSupervisor(testServerConfig(t, bin), NewMemoryPublisher())
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := s.Start(ctx, 30*time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context error, got %v", err)
	}
	if s.IsRunning() {
		t.Fatalf("process should be killed on cancellation")
	}
}

func TestStopAbortsPendingStart(t *testing.T) {
	bin := buildTestBinary(t)
	t.Setenv("FAKE_READY_DELAY_MS", "30000")

	s := newTestSupervisor(testServerConfig(t, bin), NewMemoryPublisher())
	errc := make(chan error, 1)
	go func() { errc <- s.Start(context.Background(), time.Minute) }()
	deadline := time.Now().Add(5 * time.Second)
	for s.State() != StateStarting {
		if time.Now().After(deadline) {
			t.Fatalf("process never reached starting, state=%s", s.State())
		}
		time.Sleep(10 * time.Millisecond)
	}

	start := time.Now()
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if el := time.Since(start); el > 5*time.Second {
		t.Fatalf("stop waited out the readiness timeout: %s", el)
	}
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Start should be aborted, got %v", err)
	}
	if s.IsRunning() || s.State() != StateStopped {
		t.Fatalf("after stop: running=%v state=%s", s.IsRunning(), s.State())
	}
}

func TestStopKillsAfterGrace(t *testing.T) {
	bin := buildTestBinary(t)
	t.Setenv("FAKE_IGNORE_SIGTERM", "1")

	s := newTestSupervisor(testServerConfig(t, bin), NewMemoryPublisher(), WithStopGrace(300*time.Millisecond))
	if err := s.Start(context.Background(), 10*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}
	start := time.Now()
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if el := time.Since(start); el < 250*time.Millisecond {
		t.Fatalf("stop returned before the grace period: %s", el)
	}
	if s.IsRunning() || s.State() != StateStopped {
		t.Fatalf("after stop: running=%v state=%s", s.IsRunning(), s.State())
	}
}

func TestProcessExitAfterReady(t *testing.T) {
	bin := buildTestBinary(t)
	pub := NewMemoryPublisher()
	s := newTestSupervisor(testServerConfig(t, bin), pub)
	if err := s.Start(context.Background(), 10*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}
	proc, err := os.FindProcess(s.PID())
	if err != nil {
		t.Fatalf("find process: %v", err)
	}
	_ = proc.Kill()
	deadline := time.Now().Add(5 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Fatalf("IsRunning still true after the process died")
	}
	for !hasEvent(pub, EventSpawnExit) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if s.State() != StateStopped || !hasEvent(pub, EventSpawnExit) {
		t.Fatalf("state=%s events=%v", s.State(), pub.Names())
	}
}

func TestLaunchArgsReachProcess(t *testing.T) {
	bin := buildTestBinary(t)
	argsFile := filepath.Join(t.TempDir(), "args.json")
	t.Setenv("FAKE_ARGS_FILE", argsFile)

	cfg := testServerConfig(t, bin)
	ngl, seed := 33, 42
	cfg.NGPULayers = &ngl
	cfg.Seed = &seed
	s := newTestSupervisor(cfg, NewMemoryPublisher())
	t.Cleanup(func() { _ = s.Stop() })
	if err := s.Start(context.Background(), 10*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}
	b, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	var args []string
	if err := json.Unmarshal(b, &args); err != nil {
		t.Fatalf("decode args: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{"--alias test-model", "-ngl 33", "--seed 42", "-c 2048"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
	if strings.Contains(joined, "-t ") {
		t.Fatalf("unset thread count should not be passed: %q", joined)
	}
}
