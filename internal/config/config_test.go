// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/invowk/svcload/internal/issue"
	"github.com/invowk/svcload/internal/testutil"
	"github.com/invowk/svcload/pkg/registry"
	"github.com/invowk/svcload/pkg/types"
)

func loadFile(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.cue")
	testutil.MustWriteFile(t, path, content)
	return NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path})
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.MixedDeclarations != registry.MixReject {
		t.Errorf("MixedDeclarations = %q, want reject", cfg.MixedDeclarations)
	}
	if cfg.Log.Level != LogLevelInfo || cfg.UI.ColorScheme != ColorSchemeAuto || cfg.UI.Verbose {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if len(cfg.ModulePath) != 0 || len(cfg.Classpath) != 0 || len(cfg.BootModules) != 0 || len(cfg.Scopes) != 0 {
		t.Errorf("lists should default to empty: %+v", cfg)
	}
	if valid, errs := cfg.IsValid(); !valid {
		t.Errorf("defaults are invalid: %v", errs)
	}
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	cfg, err := loadFile(t, `
module_path: ["mods", "/opt/svcload/mods"]
boot_modules: ["com.example.app"]
classpath: ["build/classes", "lib/**/*.jar.d"]
mixed_declarations: "append"
scopes: {
	example: "named && name startsWith \"com.example.\""
}
log: level: "debug"
ui: {
	color_scheme: "dark"
	verbose: true
}
`)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !slices.Equal(cfg.ModulePath, []SearchPath{"mods", "/opt/svcload/mods"}) {
		t.Errorf("ModulePath = %v", cfg.ModulePath)
	}
	if !slices.Equal(cfg.BootModules, []types.QualifiedName{"com.example.app"}) {
		t.Errorf("BootModules = %v", cfg.BootModules)
	}
	if !slices.Equal(cfg.Classpath, []SearchPath{"build/classes", "lib/**/*.jar.d"}) {
		t.Errorf("Classpath = %v", cfg.Classpath)
	}
	if cfg.MixedDeclarations != registry.MixAppend {
		t.Errorf("MixedDeclarations = %q", cfg.MixedDeclarations)
	}
	if cfg.Scopes["example"] != `named && name startsWith "com.example."` {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}
	if cfg.Log.Level != LogLevelDebug || cfg.UI.ColorScheme != ColorSchemeDark || !cfg.UI.Verbose {
		t.Errorf("unexpected log/ui settings %+v %+v", cfg.Log, cfg.UI)
	}
	if cfg.Dir == "" || !filepath.IsAbs(cfg.Dir) {
		t.Errorf("Dir = %q, want the absolute config directory", cfg.Dir)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := loadFile(t, `module_path: ["mods"]`)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MixedDeclarations != registry.MixReject || cfg.Log.Level != LogLevelInfo || cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantIs  error
	}{
		{name: "syntax error", content: `module_path: [`},
		{name: "unknown field", content: `container_engine: "docker"`},
		{name: "bad mixed policy", content: `mixed_declarations: "merge"`},
		{name: "bad boot module", content: `boot_modules: ["9bad"]`},
		{name: "bad scope name", content: `scopes: {"Has Space": "true"}`},
		{name: "glob in module path", content: `module_path: ["mods/**"]`, wantIs: ErrInvalidSearchPath},
		{name: "broken classpath glob", content: `classpath: ["lib/[a-"]`, wantIs: ErrInvalidSearchPath},
		{name: "bad log level", content: `log: level: "trace"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := loadFile(t, tt.content)
			if err == nil {
				t.Fatal("Load() should fail")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("expected ActionableError, got %T: %v", err, err)
			}
			if ae.Issue != issue.ConfigLoadFailedId {
				t.Errorf("Issue = %d, want ConfigLoadFailedId", ae.Issue)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("error = %v, want errors.Is %v", err, tt.wantIs)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue")})
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Operation != "load configuration" {
		t.Fatalf("expected ActionableError, got %v", err)
	}
}

func TestLoad_Lookup(t *testing.T) {
	t.Parallel()

	cfgDir, baseDir := t.TempDir(), t.TempDir()
	p := NewProvider()
	opts := LoadOptions{ConfigDirPath: cfgDir, BaseDir: baseDir}

	path, err := p.Path(opts)
	if err != nil || path != "" {
		t.Fatalf("Path() with no files = %q, %v", path, err)
	}
	cfg, err := p.Load(t.Context(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Dir != "" || cfg.MixedDeclarations != registry.MixReject {
		t.Errorf("expected defaults, got %+v", cfg)
	}

	local := filepath.Join(baseDir, "config.cue")
	testutil.MustWriteFile(t, local, `mixed_declarations: "append"`)
	if path, _ := p.Path(opts); path != local {
		t.Errorf("Path() = %q, want the local file", path)
	}

	global := filepath.Join(cfgDir, "config.cue")
	testutil.MustWriteFile(t, global, `log: level: "warn"`)
	if path, _ := p.Path(opts); path != global {
		t.Errorf("Path() = %q, want the config dir file first", path)
	}
	cfg, err = p.Load(t.Context(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != LogLevelWarn || cfg.MixedDeclarations != registry.MixReject {
		t.Errorf("only the config dir file should be read: %+v", cfg)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SVCLOAD_MIXED_DECLARATIONS", "append")
	t.Setenv("SVCLOAD_MODULE_PATH", "a,b")
	t.Setenv("SVCLOAD_BOOT_MODULES", "com.x.app")
	t.Setenv("SVCLOAD_LOG_LEVEL", "debug")

	cfg, err := loadFile(t, `mixed_declarations: "reject"`)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MixedDeclarations != registry.MixAppend {
		t.Errorf("MixedDeclarations = %q, env should win", cfg.MixedDeclarations)
	}
	if !slices.Equal(cfg.ModulePath, []SearchPath{"a", "b"}) {
		t.Errorf("ModulePath = %v", cfg.ModulePath)
	}
	if !slices.Equal(cfg.BootModules, []types.QualifiedName{"com.x.app"}) {
		t.Errorf("BootModules = %v", cfg.BootModules)
	}
	if cfg.Log.Level != LogLevelDebug {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoad_InvalidEnvOverride(t *testing.T) {
	t.Setenv("SVCLOAD_UI_COLOR_SCHEME", "neon")

	_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: t.TempDir(), BaseDir: t.TempDir()})
	if !errors.Is(err, ErrInvalidColorScheme) {
		t.Errorf("Load() error = %v, want ErrInvalidColorScheme", err)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	want := DefaultConfig()
	want.ModulePath = []SearchPath{"mods"}
	want.BootModules = []types.QualifiedName{"com.example.app", "com.example.tools"}
	want.Classpath = []SearchPath{"classes/**"}
	want.MixedDeclarations = registry.MixAppend
	want.Scopes = map[string]string{"example": `name startsWith "com.example."`, "boot_only": "boot"}
	want.UI.Verbose = true

	got, err := loadFile(t, GenerateCUE(want))
	if err != nil {
		t.Fatalf("loading generated CUE: %v\n%s", err, GenerateCUE(want))
	}
	got.Dir = ""
	if !slices.Equal(got.ModulePath, want.ModulePath) ||
		!slices.Equal(got.BootModules, want.BootModules) ||
		!slices.Equal(got.Classpath, want.Classpath) ||
		got.MixedDeclarations != want.MixedDeclarations ||
		len(got.Scopes) != 2 || got.Scopes["example"] != want.Scopes["example"] ||
		got.UI != want.UI || got.Log != want.Log {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.cue")
	written, err := CreateDefaultConfig(path)
	if err != nil || !written {
		t.Fatalf("CreateDefaultConfig() = %v, %v", written, err)
	}
	if content := testutil.MustReadFile(t, path); !strings.Contains(content, `mixed_declarations: "reject"`) {
		t.Errorf("default file content:\n%s", content)
	}
	written, err = CreateDefaultConfig(path)
	if err != nil || written {
		t.Errorf("second CreateDefaultConfig() = %v, %v, want no write", written, err)
	}
	if _, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path}); err != nil {
		t.Errorf("generated default file does not load: %v", err)
	}
}

func TestConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	got, err := ConfigDir()
	if err != nil || got != dir {
		t.Errorf("ConfigDir() = %q, %v", got, err)
	}
	path, err := DefaultPath()
	if err != nil || path != filepath.Join(dir, "config.cue") {
		t.Errorf("DefaultPath() = %q, %v", path, err)
	}
}
