// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invowk/svcload/internal/config"
)

// newConfigCommand creates the `svcload config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage svcload configuration",
		Long: `Manage svcload configuration.

The configuration file is the first of:
  - the --config flag
  - $XDG_CONFIG_HOME/svcload/config.cue (Linux), ~/Library/Application Support/svcload/config.cue (macOS), %APPDATA%\svcload\config.cue (Windows)
  - ./config.cue

SVCLOAD_* environment variables override file values, e.g. SVCLOAD_LOG_LEVEL=debug.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app)
		},
	})

	return cfgCmd
}

func showConfig(app *App) error {
	cfg, err := app.config()
	if err != nil {
		return err
	}
	path, err := app.Config.Path(app.loadOptions())
	if err != nil {
		return err
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
	if path == "" {
		fmt.Fprintf(app.stdout, "%s: %s\n\n", NameStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(app.stdout, "%s: %s\n\n", NameStyle.Render("Config file"), path)
	}
	fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
	return nil
}

func showConfigPath(app *App) error {
	path, err := app.Config.Path(app.loadOptions())
	if err != nil {
		return err
	}
	if path == "" {
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
		fmt.Fprintf(app.stdout, "%s %s\n", path, SubtitleStyle.Render("(not created)"))
		return nil
	}
	fmt.Fprintln(app.stdout, path)
	return nil
}

func initConfig(app *App) error {
	path := app.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	created, err := config.CreateDefaultConfig(path)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s Created %s\n", successIcon, path)
	return nil
}
