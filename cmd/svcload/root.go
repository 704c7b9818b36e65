// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the svcload command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the svcload command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "svcload",
		Short: "Discover service providers across module graphs",
		Long: TitleStyle.Render("svcload") + SubtitleStyle.Render(" - Discover service providers across module graphs") + `

svcload resolves named modules (<name>.svcmod directories) into a boot
graph, adds the classpath as the unnamed context and lists the providers
each context declares for a service contract, in discovery order.

` + SubtitleStyle.Render("Examples:") + `
  svcload discover org.example.Codec          List providers of a contract
  svcload resolve --dir ./plugins app.core    Resolve a child graph
  svcload validate ./modules                  Lint modules and descriptors
  svcload explain dependency-cycle            Show a troubleshooting guide
  svcload config show                         Show current configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			app.initialize(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/svcload/config.cue)")

	rootCmd.AddCommand(
		newDiscoverCommand(app),
		newResolveCommand(app),
		newValidateCommand(app),
		newExplainCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI with process arguments and exits non-zero on failure.
// It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.renderError),
	); err != nil {
		os.Exit(int(exitCodeFor(err)))
	}
}
