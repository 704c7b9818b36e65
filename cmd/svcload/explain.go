// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invowk/svcload/internal/config"
	"github.com/invowk/svcload/internal/issue"
	"github.com/invowk/svcload/pkg/types"
)

func newExplainCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "explain [issue]",
		Short: "Show the troubleshooting guide for an error kind",
		Long: `Show the troubleshooting guide for an error kind. Without an argument the
available guides are listed. Error messages name the guide to read.`,
		Example: `  svcload explain
  svcload explain mixed-declarations`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				listIssues(app)
				return nil
			}
			return explainIssue(app, args[0])
		},
	}
}

func listIssues(app *App) {
	fmt.Fprintln(app.stdout, TitleStyle.Render("Available guides"))
	for _, i := range issue.Values() {
		fmt.Fprintf(app.stdout, "  %-22s %s\n", NameStyle.Render(i.Slug()), SubtitleStyle.Render(i.Title()))
	}
}

func explainIssue(app *App, slug string) error {
	guide, ok := issue.Lookup(slug)
	if !ok {
		return &ExitError{
			Code: types.ExitUsage,
			Err:  fmt.Errorf("no guide named %q; run 'svcload explain' to list them", slug),
		}
	}

	style := string(config.ColorSchemeAuto)
	if app.cfg != nil {
		style = string(app.cfg.UI.ColorScheme)
	}
	rendered, err := guide.Render(style)
	if err != nil {
		return fmt.Errorf("render guide %s: %w", slug, err)
	}
	fmt.Fprint(app.stdout, rendered)
	return nil
}
