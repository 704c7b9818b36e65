// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/invowk/svcload/internal/bootstrap"
	"github.com/invowk/svcload/internal/issue"
	"github.com/invowk/svcload/pkg/registry"
	"github.com/invowk/svcload/pkg/serviceloader"
	"github.com/invowk/svcload/pkg/types"
)

var errNotInstantiated = errors.New("providers are not instantiated by discover")

type discoverOptions struct {
	from      string
	graphOnly bool
	scope     string
	metrics   bool
}

func newDiscoverCommand(app *App) *cobra.Command {
	opts := &discoverOptions{}
	cmd := &cobra.Command{
		Use:   "discover <contract>",
		Short: "List the providers of a service contract",
		Long: `List the providers of a service contract in discovery order, without
instantiating any of them.

Named contexts of the boot graph are visited in dependency order, roots
first, then the unnamed context built from the classpath.`,
		Example: `  svcload discover org.example.Codec
  svcload discover org.example.Codec --from app.core
  svcload discover org.example.Codec --graph-only --scope named`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(app, types.QualifiedName(args[0]), opts)
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "start the visit at this module of the boot graph")
	cmd.Flags().BoolVar(&opts.graphOnly, "graph-only", false, "skip the unnamed context")
	cmd.Flags().StringVar(&opts.scope, "scope", "", "only visit contexts in this scope (all, named, boot or a configured scope)")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "print discovery counters after the listing")

	return cmd
}

func runDiscover(app *App, name types.QualifiedName, opts *discoverOptions) error {
	contract, err := serviceloader.NewContract[any](name)
	if err != nil {
		return &ExitError{Code: types.ExitUsage, Err: err}
	}
	env, err := app.environment()
	if err != nil {
		return err
	}

	engineOpts := []serviceloader.Option{
		serviceloader.WithRegistry(env.Registry),
		serviceloader.WithLogger(app.logger),
	}
	var reg *prometheus.Registry
	if opts.metrics {
		reg = prometheus.NewRegistry()
		m, err := serviceloader.NewMetrics(reg)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, serviceloader.WithMetrics(m))
	}

	engine, err := serviceloader.New(env.Boot, serviceloader.ConstructorFunc(func(registry.Declaration) (any, error) {
		return nil, errNotInstantiated
	}), engineOpts...)
	if err != nil {
		return err
	}

	loadOpts, err := discoverLoadOptions(env, opts)
	if err != nil {
		return err
	}
	loader, err := serviceloader.Load(engine, contract, loadOpts...)
	if err != nil {
		return &ExitError{Code: types.ExitUsage, Err: err}
	}

	w := app.stdout
	fmt.Fprintln(w, TitleStyle.Render("Providers of "+string(name)))
	count := 0
	for p, err := range loader.Providers() {
		if err != nil {
			return issue.NewErrorContext().
				WithOperation("discover providers").
				WithResource(string(name)).
				WithSuggestion("Run 'svcload validate' to locate the broken declaration").
				Wrap(err).
				BuildError()
		}
		count++
		writeProvider(w, count, p.Declaration(), app.verbose)
	}
	if count == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("  (no providers found)"))
	}

	if reg != nil {
		return writeMetrics(w, reg)
	}
	return nil
}

func discoverLoadOptions(env *bootstrap.Environment, opts *discoverOptions) ([]serviceloader.LoadOption, error) {
	var out []serviceloader.LoadOption
	if opts.from != "" {
		ctx, ok := env.Boot.Find(types.QualifiedName(opts.from))
		if !ok {
			return nil, issue.NewErrorContext().
				WithOperation("select start module").
				WithResource(opts.from).
				WithSuggestion("Use a module resolved into the boot graph; 'svcload resolve' lists them").
				WithIssue(issue.ModuleNotFoundId).
				Wrap(fmt.Errorf("module %q is not in the boot graph", opts.from)).
				BuildError()
		}
		out = append(out, serviceloader.FromContext(ctx))
	}
	if opts.graphOnly {
		out = append(out, serviceloader.InGraph(env.Boot))
	}
	if opts.scope != "" {
		scope, err := env.Scope(opts.scope)
		if err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("select scope").
				WithResource(opts.scope).
				WithSuggestion("Define the scope under 'scopes' in the configuration").
				WithIssue(issue.InvalidScopeId).
				Wrap(err).
				BuildError()
		}
		out = append(out, serviceloader.WithScope(scope))
	}
	return out, nil
}

func writeProvider(w io.Writer, index int, decl registry.Declaration, verbose bool) {
	fmt.Fprintf(w, "%3d. %s (%s, %s)\n", index, NameStyle.Render(string(decl.TypeName)), decl.Context, decl.Origin)
	if verbose {
		if decl.Factory != "" {
			fmt.Fprintf(w, "     %s\n", VerboseStyle.Render("factory: "+decl.Factory))
		}
		if decl.Source != "" {
			fmt.Fprintf(w, "     %s\n", VerboseStyle.Render("source: "+decl.Source))
		}
	}
}

func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
