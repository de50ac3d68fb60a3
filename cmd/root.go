package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/timvw/tmx/internal/config"
	"github.com/timvw/tmx/internal/events"
	"github.com/timvw/tmx/internal/lock"
	"github.com/timvw/tmx/internal/mux"
	telem "github.com/timvw/tmx/internal/otel"
	"github.com/timvw/tmx/internal/output"
	"github.com/timvw/tmx/internal/runner"
	"github.com/timvw/tmx/internal/watch"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	// Global flags.
	flagMux     string
	flagSocket  string
	flagJSON    bool
	flagConfig  string
	flagVerbose bool
	flagLock    bool
)

var rootCmd = &cobra.Command{
	Use:   "tmx",
	Short: "tmux wrapper for agent use: familiar commands with reliability fixes",
	Long: `tmx drives tmux panes on behalf of automated callers.

Besides thin wrappers around the usual tmux commands, it can run a command
in a pane synchronously (execute), returning the command's output and real
exit code, and wait for a pattern or for the pane to go quiet.

Configuration is loaded from .tmx.yaml / .tmx.toml, ~/.config/tmx/, or
TMX_* environment variables. Flags override both.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitCodeError ends the process with code without printing an error.
// Commands return it when they completed but the outcome is unsuccessful,
// e.g. a failed or timed-out execute.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMux, "mux", envOrDefault("TMX_MUX", ""), "terminal multiplexer: tmux (default: auto-detect)")
	rootCmd.PersistentFlags().StringVarP(&flagSocket, "socket", "L", "", "tmux socket name (default: config socket or the default server)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .tmx.yaml, .tmx.toml or ~/.config/tmx/config.{yaml,toml})")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "debug logging on stderr")
	rootCmd.PersistentFlags().BoolVar(&flagLock, "lock", false, "serialise execute calls per pane with a lock file")
}

// env is everything a command needs, built once per invocation.
type env struct {
	ctx   context.Context
	cfg   *config.Config
	log   *slog.Logger
	mux   mux.Multiplexer
	out   *output.Printer
	tel   *telem.Telemetry
	runID string

	span   trace.Span
	cancel context.CancelFunc
}

// newEnv loads configuration, sets up logging and telemetry, and opens the
// root span for cmd. Callers must defer close.
func newEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if flagSocket != "" {
		cfg.Socket = flagSocket
	}
	if flagLock {
		cfg.PaneLock = true
	}

	runID := uuid.NewString()
	log := newLogger(cfg.LogLevel).With("run_id", runID)
	if cfg.ConfigFile != "" {
		log.Debug("config loaded", "file", cfg.ConfigFile)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	telem.Version = Version
	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
		RunID:    runID,
		Socket:   cfg.Socket,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: otel init failed: %v\n", err)
	}

	m, err := getMultiplexer(cfg.Socket)
	if err != nil {
		cancel()
		tel.Shutdown(context.Background())
		return nil, err
	}

	e := &env{
		ctx:    ctx,
		cfg:    cfg,
		log:    log,
		mux:    m,
		out:    output.New(cmd.OutOrStdout(), flagJSON, lipgloss.NewRenderer(cmd.OutOrStdout())),
		tel:    tel,
		runID:  runID,
		cancel: cancel,
	}
	e.ctx, e.span = e.tracer().Start(ctx, "tmx "+cmd.Name(), trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("tmux.socket", cfg.Socket),
	))
	return e, nil
}

// close ends the root span and flushes telemetry.
func (e *env) close() {
	e.span.End()
	e.tel.Shutdown(context.Background())
	e.cancel()
}

func (e *env) tracer() trace.Tracer {
	if e.tel == nil {
		return noop.NewTracerProvider().Tracer("")
	}
	return e.tel.Tracer
}

func (e *env) metrics() *telem.Metrics {
	if e.tel == nil {
		return nil
	}
	return e.tel.Metrics
}

// engine builds an execution engine from the resolved configuration.
func (e *env) engine() *runner.Engine {
	eng := &runner.Engine{
		Pane:    e.mux,
		Levels:  e.cfg.Levels,
		Tracer:  e.tracer(),
		Metrics: e.metrics(),
		Logger:  e.log,
		Events:  e.events(),
	}
	if e.cfg.PaneLock {
		dir := e.cfg.LockDir
		if dir == "" {
			dir = lock.DefaultPath()
		}
		eng.Locker = lock.Dir{Path: dir, Socket: e.cfg.Socket}
	}
	return eng
}

// watcher builds a pane watcher from the resolved configuration.
func (e *env) watcher() *watch.Watcher {
	return &watch.Watcher{
		Pane:    e.mux,
		Tracer:  e.tracer(),
		Metrics: e.metrics(),
		Logger:  e.log,
		Events:  e.events(),
	}
}

// events returns the hook event emitter; disabled without an event socket.
func (e *env) events() *events.Emitter {
	path := e.cfg.EventSocket
	if path == "default" {
		path = events.DefaultSocketPath()
	}
	return events.NewEmitter(path)
}

// getMultiplexer returns the configured or auto-detected multiplexer.
func getMultiplexer(socket string) (mux.Multiplexer, error) {
	if flagMux != "" {
		return mux.FromName(flagMux, socket)
	}
	return mux.Detect(socket)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: unknown log level %q, using warn\n", level)
		lvl = slog.LevelWarn
	}
	if flagVerbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// durationFlag returns the flag value parsed as a duration, or fallback when unset.
func durationFlag(cmd *cobra.Command, name string, fallback time.Duration) (time.Duration, error) {
	if !cmd.Flags().Changed(name) {
		return fallback, nil
	}
	raw, _ := cmd.Flags().GetString(name)
	d, err := config.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	return d, nil
}

// positiveDurationFlag is durationFlag for deadlines and poll intervals,
// where zero would silently fall back to a built-in default.
func positiveDurationFlag(cmd *cobra.Command, name string, fallback time.Duration) (time.Duration, error) {
	d, err := durationFlag(cmd, name, fallback)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid --%s: must be greater than zero", name)
	}
	return d, nil
}

// linesFlag returns the --lines value, or fallback when unset.
func linesFlag(cmd *cobra.Command, fallback int) (int, error) {
	if !cmd.Flags().Changed("lines") {
		return fallback, nil
	}
	raw, _ := cmd.Flags().GetString("lines")
	n, err := config.ParseDepth(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid --lines %q: %w", raw, err)
	}
	return n, nil
}

// scrollbackFlag is linesFlag for the wait commands, which always search a
// scrollback window: a line count or all, never the visible region alone.
func scrollbackFlag(cmd *cobra.Command, fallback int) (int, error) {
	n, err := linesFlag(cmd, fallback)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid --lines 0: use a line count above zero or \"all\"")
	}
	return n, nil
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
