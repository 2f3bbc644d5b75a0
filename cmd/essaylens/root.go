package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"essaylens/internal/app"
	"essaylens/internal/config"
	"essaylens/internal/explain"
	"essaylens/internal/logging"
)

// cliOptions holds the persistent flags and the configuration they resolve to.
type cliOptions struct {
	configPath string
	backend    string
	family     string
	modelKey   string
	modelsDir  string
	serverURL  string
	serverBin  string
	modelPath  string
	port       int
	logLevel   string
	logFormat  string

	cfg      config.Config
	log      zerolog.Logger
	closeLog func()
}

func newRootCmd() *cobra.Command {
	o := &cliOptions{closeLog: func() {}}
	root := &cobra.Command{
		Use:   "essaylens",
		Short: "Local model inference for essay feedback",
		Long: "essaylens runs a local llama.cpp model behind a small chat API. The server\n" +
			"backend supervises llama-server, the kv backend keeps a prefix cache in\n" +
			"process, and the embedded backend predicts in process without one.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return o.load(cmd) },
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", os.Getenv("ESSAYLENS_CONFIG"), "Config file (.yaml, .json or .toml; defaults ESSAYLENS_CONFIG)")
	pf.StringVar(&o.backend, "backend", "", "Backend: server|kv|embedded")
	pf.StringVar(&o.family, "family", "", "Model family: instruct|thinking")
	pf.StringVar(&o.modelKey, "model-key", "", "Catalog model to use (see 'essaylens models')")
	pf.StringVar(&o.modelsDir, "models-dir", "", "Directory holding GGUF files")
	pf.StringVar(&o.serverURL, "server-url", "", "Use an already running llama-server instead of launching one")
	pf.StringVar(&o.serverBin, "server-bin", "", "Path to the llama-server binary")
	pf.StringVar(&o.modelPath, "model", "", "GGUF model path for the server and kv backends")
	pf.IntVar(&o.port, "port", 0, "llama-server port (0 picks a free one)")
	pf.StringVar(&o.logLevel, "log-level", "", "Log level: debug|info|warn|error|off")
	pf.StringVar(&o.logFormat, "log-format", "", "Log format: console|json")

	root.AddCommand(
		newServeCmd(o),
		newChatCmd(o),
		newKVCmd(o),
		newFeedbackCmd(o),
		newModelsCmd(o),
		newConfigCmd(o),
		newCompletionCmd(root),
	)
	closeLogAfterRun(root, o)
	return root
}

// closeLogAfterRun releases the log file once a command finishes.
// PersistentPostRun is skipped when RunE fails, so each RunE is wrapped.
func closeLogAfterRun(c *cobra.Command, o *cliOptions) {
	if run := c.RunE; run != nil {
		c.RunE = func(cmd *cobra.Command, args []string) error {
			defer o.closeLog()
			return run(cmd, args)
		}
	}
	for _, sub := range c.Commands() {
		closeLogAfterRun(sub, o)
	}
}

// load reads the config file and layers the persistent flags that were set
// on the command line over it.
func (o *cliOptions) load(cmd *cobra.Command) error {
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return err
	}
	fl := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if fl.Changed(name) {
			*dst = v
		}
	}
	set("backend", &cfg.Backend, o.backend)
	set("family", &cfg.ModelFamily, o.family)
	set("model-key", &cfg.ModelKey, o.modelKey)
	set("models-dir", &cfg.ModelsDir, o.modelsDir)
	set("server-url", &cfg.ServerURL, o.serverURL)
	set("server-bin", &cfg.Server.ServerBin, o.serverBin)
	set("log-level", &cfg.Log.Level, o.logLevel)
	set("log-format", &cfg.Log.Format, o.logFormat)
	if fl.Changed("model") {
		cfg.Server.ModelPath = o.modelPath
		cfg.KV.ModelPath = o.modelPath
	}
	if fl.Changed("port") {
		cfg.Server.Port = o.port
	}
	if err := cfg.Normalize(); err != nil {
		return err
	}

	log, closeLog, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	o.cfg, o.log, o.closeLog = cfg, log, closeLog
	return nil
}

// openExplain opens the explainability trace named in the config, or a no-op
// recorder when none is configured.
func openExplain(cfg config.Config) (explain.Recorder, func(), error) {
	if cfg.Log.ExplainFile == "" {
		return explain.Nop, func() {}, nil
	}
	t, err := explain.Open(cfg.Log.ExplainFile, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, map[string]string{
		"backend": cfg.Backend,
		"model":   modelName(cfg),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open explain trace: %w", err)
	}
	return t, func() { _ = t.Close() }, nil
}

func modelName(cfg config.Config) string {
	if cfg.Backend == config.BackendServer {
		return cfg.Server.ModelAlias
	}
	return cfg.KV.ModelPath
}

// startApp builds the configured backend and, for the server backend, waits
// until llama-server answers. The returned func releases everything.
func (o *cliOptions) startApp(ctx context.Context) (*app.App, func(), error) {
	rec, closeRec, err := openExplain(o.cfg)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(o.cfg, app.WithLogger(o.log), app.WithExplain(rec))
	if err != nil {
		closeRec()
		return nil, nil, err
	}
	cleanup := func() {
		if err := a.Close(); err != nil {
			o.log.Warn().Err(err).Msg("close backend")
		}
		closeRec()
	}
	if err := a.Start(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}

// readInput joins args, or reads stdin when there are none or the only arg
// is "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", fmt.Errorf("no input: pass text as arguments or on stdin")
	}
	return text, nil
}

// splitCSV splits a comma separated flag value, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(
		&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, _ []string) error {
			return root.GenBashCompletionV2(cmd.OutOrStdout(), true)
		}},
		&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, _ []string) error {
			return root.GenZshCompletion(cmd.OutOrStdout())
		}},
		&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, _ []string) error {
			return root.GenFishCompletion(cmd.OutOrStdout(), true)
		}},
		&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, _ []string) error {
			return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		}},
	)
	return completionCmd
}
