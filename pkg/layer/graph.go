// SPDX-License-Identifier: MPL-2.0

package layer

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/invowk/svcload/pkg/types"
)

// Graph is an immutable set of resolved contexts with a parent graph.
type Graph struct {
	id       uuid.UUID
	parent   *Graph
	contexts []*Context
	byName   map[types.QualifiedName]*Context
	unnamed  *Context
}

var (
	emptyOnce  sync.Once
	emptyGraph *Graph
)

// Empty returns the graph with no contexts and no parent. Every resolution
// chain ends at it.
func Empty() *Graph {
	emptyOnce.Do(func() {
		emptyGraph = &Graph{
			id:     uuid.Nil,
			byName: map[types.QualifiedName]*Context{},
		}
	})
	return emptyGraph
}

// ID returns the graph's identity. Two resolutions of the same roots yield
// graphs with different IDs.
func (g *Graph) ID() uuid.UUID { return g.id }

// Parent returns the parent graph, or nil for Empty().
func (g *Graph) Parent() *Graph { return g.parent }

// IsEmpty reports whether g is the Empty() graph.
func (g *Graph) IsEmpty() bool { return g == Empty() }

// Contexts returns the named contexts of this graph, without parents, in
// deterministic topological order: a context comes before those it requires,
// roots first in the order given.
func (g *Graph) Contexts() []*Context { return slices.Clone(g.contexts) }

// FindLocal looks a named context up in this graph only.
func (g *Graph) FindLocal(name types.QualifiedName) (*Context, bool) {
	c, ok := g.byName[name]
	return c, ok
}

// Find looks a named context up in this graph, then in each parent.
func (g *Graph) Find(name types.QualifiedName) (*Context, bool) {
	for cur := g; cur != nil; cur = cur.parent {
		if c, ok := cur.FindLocal(name); ok {
			return c, true
		}
	}
	return nil, false
}

// Unnamed returns the unnamed context visible from g, which lives on the
// nearest ancestor that carries one (normally the boot graph).
func (g *Graph) Unnamed() (*Context, bool) {
	for cur := g; cur != nil; cur = cur.parent {
		if cur.unnamed != nil {
			return cur.unnamed, true
		}
	}
	return nil, false
}

// Ancestry returns g followed by its parents, ending with Empty().
func (g *Graph) Ancestry() []*Graph {
	var out []*Graph
	for cur := g; cur != nil; cur = cur.parent {
		out = append(out, cur)
	}
	return out
}
