// SPDX-License-Identifier: MPL-2.0

package svcmod

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"

	"github.com/invowk/svcload/pkg/types"
)

type (
	// Finder locates module artifacts by name. Implementations must be safe
	// for concurrent use and must not instantiate anything.
	Finder interface {
		// Find returns the module named name. found is false, with a nil
		// error, when the finder has no such module.
		Find(name types.QualifiedName) (mod *Module, found bool, err error)
		// FindAll returns every module the finder can see, one per name.
		FindAll() ([]*Module, error)
	}

	// DirFinder finds module artifacts in a list of directories of a
	// filesystem. When several directories hold the same module, the first
	// directory wins.
	DirFinder struct {
		fsys fs.FS
		dirs []string
	}

	// StaticFinder serves a fixed set of modules.
	StaticFinder struct {
		byName map[types.QualifiedName]*Module
		order  []*Module
	}

	composite []Finder
)

// NewDirFinder returns a finder over dirs, which are slash-separated paths
// inside fsys. With no dirs the filesystem root is searched.
func NewDirFinder(fsys fs.FS, dirs ...string) *DirFinder {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	return &DirFinder{fsys: fsys, dirs: dirs}
}

// Find implements Finder.
func (f *DirFinder) Find(name types.QualifiedName) (*Module, bool, error) {
	if err := name.Validate(); err != nil {
		return nil, false, err
	}
	for _, dir := range f.dirs {
		modDir := path.Join(dir, string(name)+ModuleSuffix)
		info, err := fs.Stat(f.fsys, modDir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, false, fmt.Errorf("stat %s: %w", modDir, err)
		}
		if !info.IsDir() {
			continue
		}
		mod, err := Load(f.fsys, modDir)
		if err != nil {
			return nil, false, err
		}
		return mod, true, nil
	}
	return nil, false, nil
}

// FindAll implements Finder. Modules are returned directory by directory, in
// lexical order within a directory. A missing directory contributes nothing.
func (f *DirFinder) FindAll() ([]*Module, error) {
	seen := make(map[types.QualifiedName]string)
	var mods []*Module
	for _, dir := range f.dirs {
		entries, err := fs.ReadDir(f.fsys, dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("module directory does not exist", "dir", dir)
				continue
			}
			return nil, fmt.Errorf("read module directory %s: %w", dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() || !IsModuleDir(entry.Name()) {
				continue
			}
			mod, err := Load(f.fsys, path.Join(dir, entry.Name()))
			if err != nil {
				return nil, err
			}
			if first, dup := seen[mod.Name()]; dup {
				slog.Debug("module shadowed by earlier directory", "module", mod.Name(), "kept", first, "ignored", mod.Path)
				continue
			}
			seen[mod.Name()] = mod.Path
			mods = append(mods, mod)
		}
	}
	return mods, nil
}

// NewStaticFinder returns a finder over mods. The first module with a given
// name wins.
func NewStaticFinder(mods ...*Module) *StaticFinder {
	f := &StaticFinder{byName: make(map[types.QualifiedName]*Module, len(mods))}
	for _, m := range mods {
		if m == nil {
			continue
		}
		if _, dup := f.byName[m.Name()]; dup {
			continue
		}
		f.byName[m.Name()] = m
		f.order = append(f.order, m)
	}
	return f
}

// Find implements Finder.
func (f *StaticFinder) Find(name types.QualifiedName) (*Module, bool, error) {
	m, ok := f.byName[name]
	return m, ok, nil
}

// FindAll implements Finder.
func (f *StaticFinder) FindAll() ([]*Module, error) {
	out := make([]*Module, len(f.order))
	copy(out, f.order)
	return out, nil
}

// Compose returns a finder that asks each finder in turn. Find returns the
// first hit; FindAll keeps the first module seen for each name.
func Compose(finders ...Finder) Finder {
	return composite(finders)
}

// EmptyFinder returns a finder that finds nothing.
func EmptyFinder() Finder {
	return composite(nil)
}

func (c composite) Find(name types.QualifiedName) (*Module, bool, error) {
	for _, f := range c {
		mod, found, err := f.Find(name)
		if err != nil {
			return nil, false, err
		}
		if found {
			return mod, true, nil
		}
	}
	return nil, false, nil
}

func (c composite) FindAll() ([]*Module, error) {
	seen := make(map[types.QualifiedName]bool)
	var mods []*Module
	for _, f := range c {
		found, err := f.FindAll()
		if err != nil {
			return nil, err
		}
		for _, m := range found {
			if seen[m.Name()] {
				continue
			}
			seen[m.Name()] = true
			mods = append(mods, m)
		}
	}
	return mods, nil
}
