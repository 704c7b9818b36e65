// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/invowk/svcload/pkg/svcmod"
	"github.com/invowk/svcload/pkg/types"
)

type (
	// Provide is one provides entry of a test module.
	Provide struct {
		Service   string
		With      []string
		Factories map[string]string
	}

	// ModuleSpec describes a module artifact for tests.
	ModuleSpec struct {
		Name    string
		Version string
		// Requires entries are "name" or "name@constraint".
		Requires []string
		Provides []Provide
		// Descriptors maps a contract name to the content of services/<contract>.
		Descriptors map[string]string
	}
)

// CUE renders s as svcmod.cue source.
func (s ModuleSpec) CUE() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module: %q\n", s.Name)
	if s.Version != "" {
		fmt.Fprintf(&b, "version: %q\n", s.Version)
	}
	if len(s.Requires) > 0 {
		b.WriteString("requires: [\n")
		for _, r := range s.Requires {
			name, constraint, _ := strings.Cut(r, "@")
			if constraint != "" {
				fmt.Fprintf(&b, "\t{module: %q, version: %q},\n", name, constraint)
			} else {
				fmt.Fprintf(&b, "\t{module: %q},\n", name)
			}
		}
		b.WriteString("]\n")
	}
	if len(s.Provides) > 0 {
		b.WriteString("provides: [\n")
		for _, p := range s.Provides {
			fmt.Fprintf(&b, "\t{service: %q, with: [", p.Service)
			for i, w := range p.With {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%q", w)
			}
			b.WriteString("]")
			if len(p.Factories) > 0 {
				b.WriteString(", factories: {")
				first := true
				for impl, f := range p.Factories {
					if !first {
						b.WriteString(", ")
					}
					first = false
					fmt.Fprintf(&b, "%q: %q", impl, f)
				}
				b.WriteString("}")
			}
			b.WriteString("},\n")
		}
		b.WriteString("]\n")
	}
	return b.String()
}

// Metadata converts s to parsed metadata without going through CUE.
func (s ModuleSpec) Metadata() *svcmod.Svcmod {
	meta := &svcmod.Svcmod{
		Module:  types.QualifiedName(s.Name),
		Version: svcmod.SemVer(s.Version),
	}
	for _, r := range s.Requires {
		name, constraint, _ := strings.Cut(r, "@")
		meta.Requires = append(meta.Requires, svcmod.Requirement{
			Module:  types.QualifiedName(name),
			Version: svcmod.SemVerConstraint(constraint),
		})
	}
	for _, p := range s.Provides {
		prov := svcmod.Provision{Service: types.QualifiedName(p.Service)}
		for _, w := range p.With {
			prov.With = append(prov.With, types.QualifiedName(w))
		}
		if len(p.Factories) > 0 {
			prov.Factories = make(map[types.QualifiedName]string, len(p.Factories))
			for impl, f := range p.Factories {
				prov.Factories[types.QualifiedName(impl)] = f
			}
		}
		meta.Provides = append(meta.Provides, prov)
	}
	return meta
}

// Module builds an in-memory module from spec. Descriptors are served from a
// MapFS storage.
func Module(t testing.TB, spec ModuleSpec) *svcmod.Module {
	t.Helper()
	storage := fstest.MapFS{}
	for contract, content := range spec.Descriptors {
		storage[path.Join("services", contract)] = &fstest.MapFile{Data: []byte(content)}
	}
	mod, err := svcmod.New(spec.Metadata(), storage)
	if err != nil {
		t.Fatalf("build module %s: %v", spec.Name, err)
	}
	return mod
}

// Finder builds a static finder over in-memory modules.
func Finder(t testing.TB, specs ...ModuleSpec) svcmod.Finder {
	t.Helper()
	mods := make([]*svcmod.Module, len(specs))
	for i, s := range specs {
		mods[i] = Module(t, s)
	}
	return svcmod.NewStaticFinder(mods...)
}

// AddModule lays spec out as <dir>/<name>.svcmod inside fsys.
func AddModule(fsys fstest.MapFS, dir string, spec ModuleSpec) {
	modDir := path.Join(dir, spec.Name+svcmod.ModuleSuffix)
	fsys[path.Join(modDir, svcmod.MetadataFile)] = &fstest.MapFile{Data: []byte(spec.CUE())}
	for contract, content := range spec.Descriptors {
		fsys[path.Join(modDir, "services", contract)] = &fstest.MapFile{Data: []byte(content)}
	}
}

// WriteModule writes spec as <dir>/<name>.svcmod on disk and returns the module directory.
func WriteModule(t testing.TB, dir string, spec ModuleSpec) string {
	t.Helper()
	modDir := filepath.Join(dir, spec.Name+svcmod.ModuleSuffix)
	MustMkdirAll(t, filepath.Join(modDir, "services"), 0o755)
	MustWriteFile(t, filepath.Join(modDir, svcmod.MetadataFile), spec.CUE())
	for contract, content := range spec.Descriptors {
		MustWriteFile(t, filepath.Join(modDir, "services", contract), content)
	}
	return modDir
}

// WriteDescriptor writes services/<contract> under root and returns its path.
func WriteDescriptor(t testing.TB, root, contract, content string) string {
	t.Helper()
	p := filepath.Join(root, "services", contract)
	MustMkdirAll(t, filepath.Dir(p), 0o755)
	MustWriteFile(t, p, content)
	return p
}

// DescriptorRoot returns an in-memory storage root holding the given descriptors.
func DescriptorRoot(descriptors map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for contract, content := range descriptors {
		fsys[path.Join("services", contract)] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

// MustWriteFile writes content to path with 0o644 permissions.
func MustWriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
