// SPDX-License-Identifier: MPL-2.0

package layer

import (
	"io/fs"
	"slices"

	"github.com/invowk/svcload/pkg/svcmod"
	"github.com/invowk/svcload/pkg/types"
)

type (
	// Root is one storage root of a context. Descriptor files are looked up
	// under services/ inside FS.
	Root struct {
		// Name identifies the root in diagnostics (a path or label).
		Name string
		FS   fs.FS
	}

	// Context is an isolation unit inside a Graph.
	Context struct {
		name     types.QualifiedName
		named    bool
		module   *svcmod.Module
		requires []svcmod.Requirement
		roots    []Root
		graph    *Graph
	}
)

// Name returns the context name, or "" for the unnamed context.
func (c *Context) Name() types.QualifiedName { return c.name }

// IsNamed reports whether the context is backed by a module.
func (c *Context) IsNamed() bool { return c.named }

// Version returns the module version, or "" when none is declared.
func (c *Context) Version() svcmod.SemVer {
	if c.module == nil {
		return ""
	}
	return c.module.Version()
}

// Module returns the backing module, or nil for the unnamed context.
func (c *Context) Module() *svcmod.Module { return c.module }

// Requires returns the names of the modules this context requires.
func (c *Context) Requires() []types.QualifiedName {
	names := make([]types.QualifiedName, len(c.requires))
	for i, r := range c.requires {
		names[i] = r.Module
	}
	return names
}

// Provides returns the implementations the backing module declares for
// contract, and their static factories. The unnamed context declares none.
func (c *Context) Provides(contract types.QualifiedName) ([]types.QualifiedName, map[types.QualifiedName]string) {
	if c.module == nil {
		return nil, nil
	}
	return c.module.Provides(contract)
}

// Roots returns the context's storage roots in lookup order.
func (c *Context) Roots() []Root { return slices.Clone(c.roots) }

// Graph returns the graph the context belongs to.
func (c *Context) Graph() *Graph { return c.graph }

// String returns the context name, or "unnamed".
func (c *Context) String() string {
	if !c.named {
		return "unnamed"
	}
	return string(c.name)
}
