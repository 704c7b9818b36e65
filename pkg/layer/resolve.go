// SPDX-License-Identifier: MPL-2.0

package layer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/invowk/svcload/internal/dag"
	"github.com/invowk/svcload/pkg/svcmod"
	"github.com/invowk/svcload/pkg/types"
)

// edge is one pending requirement on the resolution worklist.
type edge struct {
	name       types.QualifiedName
	constraint svcmod.SemVerConstraint
	requiredBy types.QualifiedName
}

// Resolve builds a graph from the transitive requires closure of roots.
//
// Every name is looked up in finder first and then in the parent chain. Names
// found by the finder become contexts of the new graph; names found in a
// parent are reused from there and contribute no new contexts. Nothing is
// instantiated. The result is ordered with a topological sort, so a requires
// cycle fails with CyclicDependencyError naming the cycle.
func Resolve(roots []types.QualifiedName, finder svcmod.Finder, parent *Graph) (*Graph, error) {
	if finder == nil {
		return nil, &InvalidArgumentError{Arg: "finder", Reason: "must not be nil"}
	}
	if parent == nil {
		return nil, &InvalidArgumentError{Arg: "parent", Reason: "must not be nil"}
	}
	for i, r := range roots {
		if err := r.Validate(); err != nil {
			return nil, &InvalidArgumentError{Arg: fmt.Sprintf("roots[%d]", i), Reason: err.Error()}
		}
	}

	local := make(map[types.QualifiedName]*svcmod.Module)
	order := dag.New()

	queue := make([]edge, 0, len(roots))
	for _, r := range roots {
		queue = append(queue, edge{name: r})
	}

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		if mod, ok := local[e.name]; ok {
			if err := checkVersion(e, mod.Version()); err != nil {
				return nil, err
			}
			if e.requiredBy != "" {
				order.AddEdge(string(e.requiredBy), string(e.name))
			}
			continue
		}

		mod, found, err := finder.Find(e.name)
		if err != nil {
			return nil, fmt.Errorf("find module %s: %w", e.name, err)
		}
		if !found {
			inParent, ok := parent.Find(e.name)
			if !ok {
				return nil, &UnresolvedDependencyError{Name: e.name, RequiredBy: e.requiredBy}
			}
			if err := checkVersion(e, inParent.Version()); err != nil {
				return nil, err
			}
			continue
		}

		if err := checkVersion(e, mod.Version()); err != nil {
			return nil, err
		}
		local[e.name] = mod
		order.AddNode(string(e.name))
		if e.requiredBy != "" {
			order.AddEdge(string(e.requiredBy), string(e.name))
		}
		for _, req := range mod.Metadata.Requires {
			queue = append(queue, edge{name: req.Module, constraint: req.Version, requiredBy: e.name})
		}
	}

	sorted, err := order.TopologicalSort()
	if err != nil {
		return nil, cycleError(err)
	}

	g := &Graph{
		id:       uuid.New(),
		parent:   parent,
		contexts: make([]*Context, 0, len(sorted)),
		byName:   make(map[types.QualifiedName]*Context, len(sorted)),
	}
	for _, n := range sorted {
		name := types.QualifiedName(n)
		mod := local[name]
		c := &Context{
			name:     name,
			named:    true,
			module:   mod,
			requires: mod.Metadata.Requires,
			roots:    []Root{{Name: mod.Path, FS: mod.Storage}},
			graph:    g,
		}
		g.contexts = append(g.contexts, c)
		g.byName[name] = c
	}

	slog.Debug("resolved context graph", "graph", g.id, "roots", len(roots), "contexts", len(g.contexts))
	return g, nil
}

// NewBoot resolves the boot graph on top of Empty() and attaches the unnamed
// context backed by classpath. With no roots every module the finder can see
// becomes a root.
func NewBoot(finder svcmod.Finder, roots []types.QualifiedName, classpath ...Root) (*Graph, error) {
	if finder == nil {
		return nil, &InvalidArgumentError{Arg: "finder", Reason: "must not be nil"}
	}
	for i, r := range classpath {
		if r.FS == nil {
			return nil, &InvalidArgumentError{Arg: fmt.Sprintf("classpath[%d]", i), Reason: "root filesystem must not be nil"}
		}
	}
	if len(roots) == 0 {
		mods, err := finder.FindAll()
		if err != nil {
			return nil, fmt.Errorf("list boot modules: %w", err)
		}
		for _, m := range mods {
			roots = append(roots, m.Name())
		}
	}

	g, err := Resolve(roots, finder, Empty())
	if err != nil {
		return nil, err
	}
	g.unnamed = &Context{
		roots: append([]Root(nil), classpath...),
		graph: g,
	}
	return g, nil
}

func checkVersion(e edge, found svcmod.SemVer) error {
	if e.constraint == "" {
		return nil
	}
	ok, err := e.constraint.Satisfied(found)
	if err != nil {
		return fmt.Errorf("module %s required by %s: %w", e.name, e.requiredBy, err)
	}
	if !ok {
		return &VersionMismatchError{Name: e.name, Constraint: e.constraint, Found: found, RequiredBy: e.requiredBy}
	}
	return nil
}

func cycleError(err error) error {
	var cycleErr *dag.CycleError
	if !errors.As(err, &cycleErr) {
		return err
	}
	names := make([]types.QualifiedName, len(cycleErr.Cycle))
	for i, n := range cycleErr.Cycle {
		names[i] = types.QualifiedName(n)
	}
	return &CyclicDependencyError{Cycle: names}
}
