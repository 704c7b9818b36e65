// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/invowk/svcload/internal/config"
	"github.com/invowk/svcload/pkg/layer"
	"github.com/invowk/svcload/pkg/registry"
	"github.com/invowk/svcload/pkg/serviceloader"
	"github.com/invowk/svcload/pkg/svcmod"
	"github.com/invowk/svcload/pkg/types"
)

const (
	ScopeAll   = "all"
	ScopeNamed = "named"
	ScopeBoot  = "boot"
)

var (
	// ErrUnknownScope is returned by Scope for names that are neither built in nor configured.
	ErrUnknownScope = errors.New("unknown scope")
	// ErrInvalidScope is returned when a configured scope cannot be compiled.
	ErrInvalidScope = errors.New("invalid scope")
)

type (
	// Environment is everything derived from a Config.
	Environment struct {
		Config     *config.Config
		ModuleDirs []string
		Classpath  []layer.Root
		Finder     svcmod.Finder
		Boot       *layer.Graph
		Registry   *registry.Registry
		Scopes     map[string]serviceloader.Scope
	}

	// osFinder finds modules in one directory of the host filesystem and
	// reports host paths.
	osFinder struct {
		dir   string
		inner *svcmod.DirFinder
	}
)

// Build loads everything the CLI needs from cfg.
func Build(cfg *config.Config) (*Environment, error) {
	env := &Environment{Config: cfg, ModuleDirs: ModuleDirs(cfg)}

	classpath, err := ClasspathRoots(cfg)
	if err != nil {
		return nil, err
	}
	env.Classpath = classpath
	env.Finder = NewFinder(env.ModuleDirs...)

	env.Boot, err = layer.NewBoot(env.Finder, cfg.BootModules, classpath...)
	if err != nil {
		return nil, err
	}
	env.Registry, err = NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	env.Scopes, err = Scopes(cfg, env.Boot)
	if err != nil {
		return nil, err
	}
	return env, nil
}

// BuildBoot resolves the boot graph: modules from module_path, roots from
// boot_modules (all modules when empty), and the classpath as unnamed context.
func BuildBoot(cfg *config.Config) (*layer.Graph, error) {
	classpath, err := ClasspathRoots(cfg)
	if err != nil {
		return nil, err
	}
	return layer.NewBoot(NewFinder(ModuleDirs(cfg)...), cfg.BootModules, classpath...)
}

// NewFinder returns a finder over host directories, first directory wins.
func NewFinder(dirs ...string) svcmod.Finder {
	finders := make([]svcmod.Finder, 0, len(dirs))
	for _, dir := range dirs {
		finders = append(finders, &osFinder{dir: dir, inner: svcmod.NewDirFinder(os.DirFS(dir))})
	}
	return svcmod.Compose(finders...)
}

// Find implements svcmod.Finder.
func (f *osFinder) Find(name types.QualifiedName) (*svcmod.Module, bool, error) {
	mod, found, err := f.inner.Find(name)
	if err != nil || !found {
		return mod, found, err
	}
	return f.rebase(mod), true, nil
}

// FindAll implements svcmod.Finder.
func (f *osFinder) FindAll() ([]*svcmod.Module, error) {
	mods, err := f.inner.FindAll()
	if err != nil {
		return nil, err
	}
	for i, m := range mods {
		mods[i] = f.rebase(m)
	}
	return mods, nil
}

func (f *osFinder) rebase(mod *svcmod.Module) *svcmod.Module {
	mod.Path = filepath.Join(f.dir, filepath.FromSlash(mod.Path))
	if mod.Metadata != nil && mod.Metadata.FilePath != "" {
		mod.Metadata.FilePath = filepath.Join(f.dir, filepath.FromSlash(mod.Metadata.FilePath))
	}
	return mod
}

// ModuleDirs returns module_path resolved against the config directory.
func ModuleDirs(cfg *config.Config) []string {
	dirs := make([]string, 0, len(cfg.ModulePath))
	for _, p := range cfg.ModulePath {
		dirs = append(dirs, resolve(cfg, string(p)))
	}
	return dirs
}

// ClasspathRoots expands classpath entries into unnamed-context roots, in
// configuration order. Patterns are expanded with doublestar and sorted; a
// pattern without matches contributes nothing. Plain entries that do not
// exist are skipped with a warning. Only directories can be roots.
func ClasspathRoots(cfg *config.Config) ([]layer.Root, error) {
	var roots []layer.Root
	seen := make(map[string]bool)
	add := func(dir string) {
		if seen[dir] {
			return
		}
		seen[dir] = true
		roots = append(roots, layer.Root{Name: dir, FS: os.DirFS(dir)})
	}

	for _, entry := range cfg.Classpath {
		p := resolve(cfg, string(entry))
		if !entry.IsGlob() {
			info, err := os.Stat(p)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				slog.Warn("classpath entry does not exist", "path", p)
				continue
			case err != nil:
				return nil, fmt.Errorf("classpath entry %s: %w", p, err)
			case !info.IsDir():
				slog.Warn("classpath entry is not a directory", "path", p)
				continue
			}
			add(p)
			continue
		}

		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("expand classpath pattern %s: %w", entry, err)
		}
		if len(matches) == 0 {
			slog.Debug("classpath pattern matched nothing", "pattern", p)
		}
		slices.Sort(matches)
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.IsDir() {
				add(m)
			}
		}
	}
	return roots, nil
}

// NewRegistry returns the declaration registry for the configured mix policy.
func NewRegistry(cfg *config.Config) (*registry.Registry, error) {
	policy, err := registry.ParseMixPolicy(string(cfg.MixedDeclarations))
	if err != nil {
		return nil, err
	}
	return registry.New(registry.WithMixPolicy(policy)), nil
}

// Scopes returns the built-in scopes (all, named, boot) plus the configured
// expression scopes. Configured names may not replace built-in ones.
func Scopes(cfg *config.Config, boot *layer.Graph) (map[string]serviceloader.Scope, error) {
	scopes := map[string]serviceloader.Scope{
		ScopeAll:   serviceloader.AllScope(),
		ScopeNamed: serviceloader.NamedScope(),
		ScopeBoot:  serviceloader.GraphScope(boot),
	}
	for _, name := range slices.Sorted(maps.Keys(cfg.Scopes)) {
		if _, builtin := scopes[name]; builtin {
			return nil, fmt.Errorf("%w: scope %q is built in and cannot be redefined", ErrInvalidScope, name)
		}
		s, err := serviceloader.ExprScope(cfg.Scopes[name])
		if err != nil {
			return nil, fmt.Errorf("%w: scope %q: %w", ErrInvalidScope, name, err)
		}
		scopes[name] = s
	}
	return scopes, nil
}

// Scope looks a scope up by name.
func (e *Environment) Scope(name string) (serviceloader.Scope, error) {
	s, ok := e.Scopes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownScope, name, slices.Sorted(maps.Keys(e.Scopes)))
	}
	return s, nil
}

func resolve(cfg *config.Config, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) || cfg.Dir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(cfg.Dir, p)
}
