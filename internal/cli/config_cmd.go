// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/warden/internal/config"
)

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		a.configShowCommand(),
		a.configGetCommand(),
		a.configSetCommand(),
		a.configPathCommand(),
		a.configInitCommand(),
	)
	return cmd
}

// path returns the config file in use.
func (a *app) path() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	p, err := config.ConfigPath()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return p, nil
}

func (a *app) configShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if a.jsonOut {
				return outputJSON(cmd.OutOrStdout(), NewJSONResponse("show", cfg))
			}
			if err := toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return nil
		},
	}
}

func (a *app) configGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print one setting, e.g. idle.logout_after_ms",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", ErrUsage, err)
			}
			if a.jsonOut {
				return outputJSON(cmd.OutOrStdout(), NewJSONResponse("get", map[string]any{args[0]: v}))
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func (a *app) configSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting in the config file",
		Long: `Change one setting in the config file. Only the file is read and
written; WARDEN_* environment overrides are not persisted.`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.path()
			if err != nil {
				return err
			}

			cfg := config.Default()
			if _, err := os.Stat(path); err == nil {
				if err := config.LoadTOML(cfg, path); err != nil {
					return fmt.Errorf("%w: %w", ErrConfig, err)
				}
			} else if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %w", ErrConfig, err)
			}

			key, value := args[0], args[1]
			if err := cfg.Set(key, value); err != nil {
				return fmt.Errorf("%w: %w", ErrUsage, err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return &CommandError{Command: "config", Action: "set", Reason: "could not save " + path, Err: fmt.Errorf("%w: %w", ErrConfig, err)}
			}

			if a.jsonOut {
				return outputJSON(cmd.OutOrStdout(), NewJSONResponse("set", map[string]string{key: value}))
			}
			newPrinter(cmd.OutOrStdout()).ok("%s = %s", key, value)
			return nil
		},
	}
}

func (a *app) configPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.path()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func (a *app) configInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.path()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return &CommandError{Command: "config", Action: "init", Reason: path + " already exists (use --force to overwrite)", Err: ErrUsage}
			}
			if err := config.Save(config.Default(), path); err != nil {
				return &CommandError{Command: "config", Action: "init", Reason: "could not write " + path, Err: fmt.Errorf("%w: %w", ErrConfig, err)}
			}
			newPrinter(cmd.OutOrStdout()).ok("Wrote %s", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
