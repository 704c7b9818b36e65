// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/invowk/svcload/internal/bootstrap"
	"github.com/invowk/svcload/internal/issue"
	"github.com/invowk/svcload/pkg/layer"
	"github.com/invowk/svcload/pkg/types"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
	formatTOML = "toml"
)

var outputFormats = []string{formatText, formatJSON, formatYAML, formatTOML}

type (
	resolveOptions struct {
		dirs   []string
		format string
	}

	// graphReport is the machine-readable form of a graph chain, child first.
	graphReport struct {
		Graphs []graphView `json:"graphs" yaml:"graphs" toml:"graphs"`
	}

	graphView struct {
		ID       string        `json:"id" yaml:"id" toml:"id"`
		Label    string        `json:"label" yaml:"label" toml:"label"`
		Contexts []contextView `json:"contexts" yaml:"contexts" toml:"contexts"`
		// Classpath lists the roots of the unnamed context, boot graph only.
		Classpath []string `json:"classpath,omitempty" yaml:"classpath,omitempty" toml:"classpath,omitempty"`
	}

	contextView struct {
		Name     string   `json:"name" yaml:"name" toml:"name"`
		Version  string   `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`
		Requires []string `json:"requires,omitempty" yaml:"requires,omitempty" toml:"requires,omitempty"`
		Services []string `json:"services,omitempty" yaml:"services,omitempty" toml:"services,omitempty"`
		Path     string   `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	}
)

func newResolveCommand(app *App) *cobra.Command {
	opts := &resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve [roots...]",
		Short: "Resolve module roots into a graph on top of the boot graph",
		Long: `Resolve module roots into a child graph whose parent is the boot graph
and print the chain, child first. Without roots the boot graph is printed.

Modules are looked up in --dir directories (default: module_path). A
requirement already resolved in the boot graph is not resolved again.`,
		Example: `  svcload resolve
  svcload resolve --dir ./plugins app.plugin --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(app, args, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.dirs, "dir", nil, "directory holding <name>.svcmod modules (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "output format: "+strings.Join(outputFormats, ", "))

	return cmd
}

func runResolve(app *App, args []string, opts *resolveOptions) error {
	if !slices.Contains(outputFormats, opts.format) {
		return &ExitError{Code: types.ExitUsage, Err: fmt.Errorf("unknown format %q (want one of %s)", opts.format, strings.Join(outputFormats, ", "))}
	}
	roots := make([]types.QualifiedName, len(args))
	for i, a := range args {
		roots[i] = types.QualifiedName(a)
		if err := roots[i].Validate(); err != nil {
			return &ExitError{Code: types.ExitUsage, Err: err}
		}
	}

	env, err := app.environment()
	if err != nil {
		return err
	}

	g := env.Boot
	if len(roots) > 0 {
		finder := env.Finder
		if len(opts.dirs) > 0 {
			dirs := make([]string, len(opts.dirs))
			for i, d := range opts.dirs {
				if dirs[i], err = filepath.Abs(d); err != nil {
					return err
				}
			}
			finder = bootstrap.NewFinder(dirs...)
		}
		g, err = layer.Resolve(roots, finder, env.Boot)
		if err != nil {
			return issue.NewErrorContext().
				WithOperation("resolve graph").
				WithResource(strings.Join(args, ", ")).
				WithSuggestion("Check that every required module is in a --dir directory or in the boot graph").
				Wrap(err).
				BuildError()
		}
	}

	report := newGraphReport(g, env.Boot)
	return writeReport(app.stdout, opts.format, report)
}

func newGraphReport(g, boot *layer.Graph) graphReport {
	var report graphReport
	for _, cur := range g.Ancestry() {
		if cur.IsEmpty() {
			continue
		}
		view := graphView{ID: cur.ID().String(), Label: "resolved", Contexts: []contextView{}}
		if cur == boot {
			view.Label = "boot"
			if unnamed, ok := cur.Unnamed(); ok {
				for _, r := range unnamed.Roots() {
					view.Classpath = append(view.Classpath, r.Name)
				}
			}
		}
		for _, c := range cur.Contexts() {
			cv := contextView{
				Name:    string(c.Name()),
				Version: string(c.Version()),
			}
			for _, r := range c.Requires() {
				cv.Requires = append(cv.Requires, string(r))
			}
			if mod := c.Module(); mod != nil {
				cv.Path = mod.Path
				for _, s := range mod.Services() {
					cv.Services = append(cv.Services, string(s))
				}
			}
			view.Contexts = append(view.Contexts, cv)
		}
		report.Graphs = append(report.Graphs, view)
	}
	return report
}

func writeReport(w io.Writer, format string, report graphReport) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case formatJSON:
		data, err = json.MarshalIndent(report, "", "  ")
		data = append(data, '\n')
	case formatYAML:
		data, err = yaml.Marshal(report)
	case formatTOML:
		data, err = toml.Marshal(report)
	default:
		writeReportText(w, report)
		return nil
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}

func writeReportText(w io.Writer, report graphReport) {
	for i, g := range report.Graphs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s\n", TitleStyle.Render("Graph "+g.Label), SubtitleStyle.Render("("+g.ID+")"))
		if len(g.Contexts) == 0 {
			fmt.Fprintln(w, SubtitleStyle.Render("  (no named contexts)"))
		}
		for j, c := range g.Contexts {
			line := NameStyle.Render(c.Name)
			if c.Version != "" {
				line += " " + c.Version
			}
			fmt.Fprintf(w, "%3d. %s\n", j+1, line)
			if len(c.Requires) > 0 {
				fmt.Fprintf(w, "     requires: %s\n", strings.Join(c.Requires, ", "))
			}
			if len(c.Services) > 0 {
				fmt.Fprintf(w, "     provides: %s\n", strings.Join(c.Services, ", "))
			}
		}
		if len(g.Classpath) > 0 {
			fmt.Fprintf(w, "  unnamed: %s\n", strings.Join(g.Classpath, ", "))
		}
	}
}
