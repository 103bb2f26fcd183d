// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jeranaias/warden/internal/config"
	"github.com/jeranaias/warden/internal/credstore"
	"github.com/jeranaias/warden/internal/logging"
	"github.com/jeranaias/warden/internal/session"
	"github.com/jeranaias/warden/internal/telemetry"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app carries global flags and the lazily built runtime shared by every
// command of one invocation.
type app struct {
	configPath string
	logLevel   string
	jsonOut    bool

	cfg     *config.Config
	log     *slog.Logger
	reg     *prometheus.Registry
	metrics *telemetry.Metrics
	sess    *session.Orchestrator
	closers []func()
}

// Execute runs the command line against the process arguments and streams.
// The returned error has already been reported; pass it to ExitCode.
func Execute(ctx context.Context) error {
	return run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	a := &app{}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	defer a.close()

	cmd, err := root.ExecuteContextC(ctx)
	if err != nil {
		a.report(cmd, err)
	}
	return err
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warden",
		Short: "Terminal client for a token-authenticated backend",
		Long: `warden signs in to a REST authentication backend, keeps the access
token fresh and signs the user out after a period of inactivity.

Run without a subcommand to open the terminal UI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file path (TOML)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "Machine-readable JSON output")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	})

	cmd.AddCommand(
		a.tuiCommand(),
		a.loginCommand(),
		a.registerCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.pingCommand(),
		a.configCommand(),
		a.versionCommand(),
	)
	return cmd
}

// report prints err in the selected output mode.
func (a *app) report(cmd *cobra.Command, err error) {
	if a.jsonOut {
		_ = outputJSON(cmd.OutOrStdout(), NewJSONErrorResponse(cmd.Name(), err))
		return
	}
	newPrinter(cmd.ErrOrStderr()).fail(describe(err))
}

// config loads the configuration once. --log-level overrides the file.
func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if a.logLevel != "" {
		if _, err := logging.ParseLevel(a.logLevel); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUsage, err)
		}
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	return cfg, nil
}

// logger builds the logger once. toFile sends records to the configured log
// file instead of stderr, which the TUI needs to keep its screen intact.
func (a *app) logger(cmd *cobra.Command, toFile bool) (*slog.Logger, error) {
	if a.log != nil {
		return a.log, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}

	var w io.Writer = cmd.ErrOrStderr()
	if toFile {
		if cfg.Log.File == "" {
			a.log = logging.Discard()
			return a.log, nil
		}
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		a.onClose(func() { _ = f.Close() })
		w = f
	}
	a.log = logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: w})
	return a.log, nil
}

// session opens the credential store and builds the orchestrator once.
func (a *app) session(cmd *cobra.Command, toFile bool) (*session.Orchestrator, error) {
	if a.sess != nil {
		return a.sess, nil
	}
	log, err := a.logger(cmd, toFile)
	if err != nil {
		return nil, err
	}
	cfg := a.cfg

	kv, err := credstore.Open(cfg.Storage.StoreOptions())
	if err != nil {
		return nil, &CommandError{Command: cmd.Name(), Action: "open", Reason: "credential store", Err: fmt.Errorf("%w: %w", ErrConfig, err)}
	}
	store := credstore.New(kv)
	a.onClose(func() {
		if err := store.Close(); err != nil {
			log.Warn("STORE_CLOSE_FAILED", "error", err)
		}
	})

	a.reg = newRegistry()
	a.metrics = telemetry.New(a.reg)
	a.sess = session.New(store,
		session.WithBaseURL(cfg.Server.BaseURL),
		session.WithTimeouts(cfg.Server.RequestTimeout(), cfg.Server.RefreshTimeout(), cfg.Server.LogoutTimeout()),
		session.WithLogger(log),
		session.WithMetrics(a.metrics),
	)
	a.onClose(a.sess.Close)
	return a.sess, nil
}

// onClose registers fn to run when the invocation ends.
func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// close runs the registered cleanups, newest first.
func (a *app) close() {
	for _, fn := range slices.Backward(a.closers) {
		fn()
	}
	a.closers = nil
}
