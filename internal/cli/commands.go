// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/warden/internal/model"
	"github.com/jeranaias/warden/internal/ui"
)

// usageArgs marks argument validation failures as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", ErrUsage, err)
		}
		return nil
	}
}

func viewOf(u model.User) userView {
	return userView{ID: u.ID, Email: u.Email, Role: u.Role.String()}
}

// =============================================================================
// TUI
// =============================================================================

func (a *app) tuiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal UI",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd)
		},
	}
}

func (a *app) runTUI(cmd *cobra.Command) error {
	if !IsTTY(cmd.InOrStdin()) || !IsTTY(cmd.OutOrStdout()) {
		return fmt.Errorf("%w: the terminal UI needs an interactive terminal", ErrUsage)
	}
	sess, err := a.session(cmd, true)
	if err != nil {
		return err
	}
	cfg := a.cfg

	if cfg.Metrics.ListenAddr != "" {
		ms, err := serveMetrics(cfg.Metrics.ListenAddr, a.reg, a.log)
		if err != nil {
			return err
		}
		a.onClose(ms.Close)
	}

	m := ui.New(ui.Options{
		Session:     sess,
		Idle:        cfg.Idle.Monitor(),
		Logger:      a.log,
		Metrics:     a.metrics,
		CallTimeout: cfg.Server.RequestTimeout(),
	})
	defer m.Close()

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}

// =============================================================================
// AUTH COMMANDS
// =============================================================================

func (a *app) loginCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Sign in with email and password. The password is read without echo
from the terminal, or as a single line when input is piped.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.session(cmd, false)
			if err != nil {
				return err
			}
			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			if email == "" {
				if email, err = p.line("Email: "); err != nil {
					return err
				}
			}
			password, err := p.secret("Password: ")
			if err != nil {
				return err
			}

			user, err := sess.Login(cmd.Context(), model.Credentials{Email: email, Password: password})
			if err != nil {
				return err
			}
			return a.printUser(cmd, "Signed in as %s", *user)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email (prompted when omitted)")
	return cmd
}

func (a *app) registerCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.session(cmd, false)
			if err != nil {
				return err
			}
			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			if email == "" {
				if email, err = p.line("Email: "); err != nil {
					return err
				}
			}
			password, err := p.secret("Password: ")
			if err != nil {
				return err
			}
			confirm, err := p.secret("Confirm password: ")
			if err != nil {
				return err
			}

			user, err := sess.Register(cmd.Context(), model.Credentials{Email: email, Password: password}, confirm)
			if err != nil {
				return err
			}
			return a.printUser(cmd, "Account created for %s", *user)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email (prompted when omitted)")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.session(cmd, false)
			if err != nil {
				return err
			}

			wasSignedIn := sess.IsAuthenticated()
			if wasSignedIn {
				if err := sess.Logout(cmd.Context()); err != nil {
					return err
				}
			}

			if a.jsonOut {
				return outputJSON(cmd.OutOrStdout(), NewJSONResponse("logout", map[string]bool{"signedOut": wasSignedIn}))
			}
			pr := newPrinter(cmd.OutOrStdout())
			if !wasSignedIn {
				pr.hint("Not signed in.")
				return nil
			}
			pr.ok("Signed out.")
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.session(cmd, false)
			if err != nil {
				return err
			}
			user, ok := sess.CurrentUser()
			if !ok {
				return ErrNotSignedIn
			}
			return a.printUser(cmd, "Signed in as %s", user)
		},
	}
}

func (a *app) pingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Call the authenticated health endpoint",
		Long: `Call the health endpoint with the stored access token. An expired
token is refreshed transparently; a rejected refresh ends the session.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.session(cmd, false)
			if err != nil {
				return err
			}
			if !sess.IsAuthenticated() {
				return ErrNotSignedIn
			}

			start := time.Now()
			resp, err := sess.API().Ping(cmd.Context())
			if err != nil {
				return err
			}
			latency := time.Since(start).Round(time.Millisecond)

			if a.jsonOut {
				return outputJSON(cmd.OutOrStdout(), NewJSONResponse("ping", map[string]any{
					"message":   resp.Message,
					"timestamp": resp.Timestamp,
					"latencyMs": latency.Milliseconds(),
				}))
			}
			pr := newPrinter(cmd.OutOrStdout())
			pr.ok("%s", resp.Message)
			pr.field("Latency", latency)
			if resp.Timestamp != "" {
				pr.field("Server", resp.Timestamp)
			}
			return nil
		},
	}
}

// printUser reports a signed-in user. format takes the email.
func (a *app) printUser(cmd *cobra.Command, format string, user model.User) error {
	if a.jsonOut {
		return outputJSON(cmd.OutOrStdout(), NewJSONResponse(cmd.Name(), viewOf(user)))
	}
	pr := newPrinter(cmd.OutOrStdout())
	pr.ok(format, user.Email)
	pr.field("ID", user.ID)
	pr.field("Role", user.Role)
	return nil
}

// =============================================================================
// VERSION
// =============================================================================

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.jsonOut {
				return outputJSON(cmd.OutOrStdout(), NewJSONResponse("version", map[string]string{
					"version":   Version,
					"gitCommit": GitCommit,
					"buildDate": BuildDate,
				}))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "warden version %s (commit: %s, built: %s)\n", Version, GitCommit, BuildDate)
			return nil
		},
	}
}
