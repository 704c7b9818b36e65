// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/invowk/svcload/pkg/registry"
	"github.com/invowk/svcload/pkg/types"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidSearchPath is the sentinel error wrapped by InvalidSearchPathError.
	ErrInvalidSearchPath = errors.New("invalid search path")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// LogLevel is the minimum level of log records printed to stderr.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// SearchPath is a module_path directory or a classpath entry. Classpath
	// entries may be doublestar patterns.
	SearchPath string

	// InvalidSearchPathError is returned for blank paths and broken patterns.
	InvalidSearchPathError struct {
		Field  string
		Value  SearchPath
		Reason string
	}

	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// ModulePath lists directories scanned for <name>.svcmod modules.
		ModulePath []SearchPath `json:"module_path" yaml:"module_path" mapstructure:"module_path"`
		// BootModules are the roots of the boot graph. Empty means every module found.
		BootModules []types.QualifiedName `json:"boot_modules" yaml:"boot_modules" mapstructure:"boot_modules"`
		// Classpath lists the roots of the unnamed context.
		Classpath []SearchPath `json:"classpath" yaml:"classpath" mapstructure:"classpath"`
		// MixedDeclarations is "reject" or "append".
		MixedDeclarations registry.MixPolicy `json:"mixed_declarations" yaml:"mixed_declarations" mapstructure:"mixed_declarations"`
		// Scopes maps a scope name to an expr-lang predicate over contexts.
		Scopes map[string]string `json:"scopes" yaml:"scopes" mapstructure:"scopes"`
		Log    LogConfig         `json:"log" yaml:"log" mapstructure:"log"`
		UI     UIConfig          `json:"ui" yaml:"ui" mapstructure:"ui"`

		// Dir is the directory of the loaded config file; relative paths are
		// resolved against it. Empty when no file was loaded.
		Dir string `json:"-" yaml:"-" mapstructure:"-"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level LogLevel `json:"level" yaml:"level" mapstructure:"level"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		ColorScheme ColorScheme `json:"color_scheme" yaml:"color_scheme" mapstructure:"color_scheme"`
		// Verbose prints error chains and debug logs.
		Verbose bool `json:"verbose" yaml:"verbose" mapstructure:"verbose"`
	}
)

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// Error implements the error interface.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// IsValid returns whether the level is known.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Slog maps the level to a slog.Level. Unknown levels map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the path.
func (p SearchPath) String() string { return string(p) }

// IsGlob reports whether the path contains doublestar meta characters.
func (p SearchPath) IsGlob() bool {
	return strings.ContainsAny(string(p), "*?[{")
}

func (p SearchPath) validate(field string) error {
	if strings.TrimSpace(string(p)) == "" {
		return &InvalidSearchPathError{Field: field, Value: p, Reason: "must not be blank"}
	}
	if p.IsGlob() && !doublestar.ValidatePathPattern(string(p)) {
		return &InvalidSearchPathError{Field: field, Value: p, Reason: "malformed glob pattern"}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidSearchPathError) Error() string {
	return fmt.Sprintf("%s: invalid path %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap returns ErrInvalidSearchPath for errors.Is() compatibility.
func (e *InvalidSearchPathError) Unwrap() error { return ErrInvalidSearchPath }

// IsValid checks what the CUE schema cannot: glob syntax, qualified names
// coming from environment overrides, and enum fields overridden by env.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for i, p := range c.ModulePath {
		if p.IsGlob() {
			errs = append(errs, &InvalidSearchPathError{Field: fmt.Sprintf("module_path[%d]", i), Value: p, Reason: "patterns are only allowed in classpath"})
			continue
		}
		if err := p.validate(fmt.Sprintf("module_path[%d]", i)); err != nil {
			errs = append(errs, err)
		}
	}
	for i, p := range c.Classpath {
		if err := p.validate(fmt.Sprintf("classpath[%d]", i)); err != nil {
			errs = append(errs, err)
		}
	}
	for i, n := range c.BootModules {
		if err := n.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("boot_modules[%d]: %w", i, err))
		}
	}
	if _, err := registry.ParseMixPolicy(string(c.MixedDeclarations)); err != nil {
		errs = append(errs, fmt.Errorf("mixed_declarations: %w", err))
	}
	for name, src := range c.Scopes {
		if strings.TrimSpace(src) == "" {
			errs = append(errs, fmt.Errorf("scopes.%s: expression must not be empty", name))
		}
	}
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return "invalid config: " + e.FieldErrors[0].Error()
	}
	msgs := make([]string, len(e.FieldErrors))
	for i, fe := range e.FieldErrors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("invalid config: %d field error(s): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ModulePath:        []SearchPath{},
		BootModules:       []types.QualifiedName{},
		Classpath:         []SearchPath{},
		MixedDeclarations: registry.MixReject,
		Scopes:            map[string]string{},
		Log:               LogConfig{Level: LogLevelInfo},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
	}
}
