package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"essaylens/internal/app"
	"essaylens/internal/httpapi"
)

func newServeCmd(o *cliOptions) *cobra.Command {
	var (
		addr        string
		corsEnabled bool
		corsOrigins string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Example: "  essaylens serve --server-bin ~/llama.cpp/build/bin/llama-server --model ~/models/qwen3-4b.gguf\n" +
			"  essaylens serve --backend kv --model ~/models/qwen3-4b.gguf --addr :8090",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				o.cfg.HTTP.Addr = addr
			}
			if cmd.Flags().Changed("cors-enabled") {
				o.cfg.HTTP.CORSEnabled = corsEnabled
			}
			if cmd.Flags().Changed("cors-origins") {
				o.cfg.HTTP.CORSOrigins = splitCSV(corsOrigins)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rec, closeRec, err := openExplain(o.cfg)
			if err != nil {
				return err
			}
			defer closeRec()
			a, err := app.New(o.cfg, app.WithLogger(o.log), app.WithExplain(rec))
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					o.log.Warn().Err(err).Msg("close backend")
				}
			}()

			ln, err := net.Listen("tcp", o.cfg.HTTP.Addr)
			if err != nil {
				return err
			}
			// The API answers /readyz with 503 until the backend is up.
			go func() {
				if err := a.Start(ctx); err != nil && ctx.Err() == nil {
					o.log.Error().Err(err).Msg("backend failed to start")
				}
			}()
			return runServer(ctx, ln, a, o.cfg.HTTP.ShutdownSecond, o.log)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "HTTP listen address (default from config, 127.0.0.1:8090)")
	f.BoolVar(&corsEnabled, "cors-enabled", false, "Enable CORS")
	f.StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins")
	return cmd
}

// runServer serves the API on ln until ctx is cancelled, then shuts down
// within shutdownSeconds. Chat calls still running are cancelled through the
// base context.
func runServer(ctx context.Context, ln net.Listener, a *app.App, shutdownSeconds int, log zerolog.Logger) error {
	cfg := a.Config()
	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.HTTP.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.HTTP.CORSEnabled, cfg.HTTP.CORSOrigins, nil, nil)
	httpapi.SetRequestTimeoutSeconds(cfg.RequestTimeoutSeconds + cfg.HTTP.QueueWaitSeconds)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Handler:           httpapi.NewMux(a),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Str("backend", cfg.Backend).Msg("essaylens listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	if shutdownSeconds <= 0 {
		shutdownSeconds = 5
	}
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), time.Duration(shutdownSeconds)*time.Second)
	defer cancel()
	cancelBase()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
		_ = srv.Close()
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
