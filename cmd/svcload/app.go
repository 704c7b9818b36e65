// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"

	"github.com/invowk/svcload/internal/bootstrap"
	"github.com/invowk/svcload/internal/config"
	"github.com/invowk/svcload/internal/issue"
	"github.com/invowk/svcload/pkg/types"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives the App and reads configuration through it.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer

		// Set from persistent flags before any command runs.
		verbose    bool
		configPath string

		cfg    *config.Config
		cfgErr error
		logger *slog.Logger
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
		Path(opts config.LoadOptions) (string, error)
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
		logger: slog.New(slog.DiscardHandler),
	}
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.configPath}
}

// initialize loads the configuration once per invocation and installs the
// logger. A configuration error is kept and reported by the first command
// that needs the configuration.
func (a *App) initialize(ctx context.Context) {
	a.cfg, a.cfgErr = a.Config.Load(ctx, a.loadOptions())

	level := config.DefaultConfig().Log.Level.Slog()
	if a.cfg != nil {
		level = a.cfg.Log.Level.Slog()
		a.verbose = a.verbose || a.cfg.UI.Verbose
	}
	if a.verbose {
		level = slog.LevelDebug
	}

	a.logger = slog.New(log.NewWithOptions(a.stderr, log.Options{
		Prefix: config.AppName,
		Level:  log.Level(level),
	}))
	slog.SetDefault(a.logger)

	if a.cfgErr != nil {
		a.logger.Debug("configuration not loaded", "error", a.cfgErr)
	}
}

// config returns the loaded configuration or the load failure.
func (a *App) config() (*config.Config, error) {
	if a.cfgErr != nil {
		return nil, &ExitError{Code: types.ExitConfig, Err: a.cfgErr}
	}
	if a.cfg == nil {
		return nil, &ExitError{Code: types.ExitConfig, Err: errors.New("configuration not loaded")}
	}
	return a.cfg, nil
}

// environment builds the boot graph and everything around it.
func (a *App) environment() (*bootstrap.Environment, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	env, err := bootstrap.Build(cfg)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("resolve boot graph").
			WithSuggestion("Check module_path, boot_modules and classpath in the configuration").
			WithSuggestion("Run 'svcload validate' to lint every module and descriptor").
			Wrap(err).
			BuildError()
	}
	a.logger.Debug("boot graph resolved",
		"graph", env.Boot.ID(),
		"contexts", len(env.Boot.Contexts()),
		"classpath_roots", len(env.Classpath))
	return env, nil
}

// renderError is the fang error handler. ExitErrors without a cause have
// already been reported by the command.
func (a *App) renderError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	isExit := errors.As(err, &exitErr)
	if isExit && exitErr.Err == nil {
		return
	}
	if !isExit && isUsageError(err) {
		fang.DefaultErrorHandler(w, styles, err)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, a.verbose))
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// use their Format method, which shows the error chain in verbose mode.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

func isUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{
		"unknown command",
		"unknown flag:",
		"unknown shorthand flag:",
		"flag needs an argument:",
		"invalid argument",
		"accepts ",
		"requires at least ",
	} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
