// SPDX-License-Identifier: MPL-2.0

package serviceloader

import (
	"iter"

	"github.com/invowk/svcload/pkg/layer"
	"github.com/invowk/svcload/pkg/types"
)

type (
	// LoadOption configures a Loader.
	LoadOption func(*loadConfig)

	loadConfig struct {
		start     *layer.Context
		graph     *layer.Graph
		graphOnly bool
		scope     Scope
		err       error
	}

	// Loader is a lazy, re-iterable view of the providers of one contract.
	// Each call to Providers re-runs discovery from scratch; handles from
	// earlier passes are not reused.
	Loader[T any] struct {
		engine   *Engine
		contract Contract[T]
		cfg      loadConfig
	}
)

// FromContext starts discovery at c: its providers come first, then the rest
// of its graph, then the parents, then the unnamed context.
func FromContext(c *layer.Context) LoadOption {
	return func(cfg *loadConfig) {
		if c == nil {
			cfg.fail("start context must not be nil")
			return
		}
		cfg.start = c
	}
}

// InGraph restricts discovery to g and its parents. The unnamed context is
// never visited.
func InGraph(g *layer.Graph) LoadOption {
	return func(cfg *loadConfig) {
		if g == nil {
			cfg.fail("graph must not be nil")
			return
		}
		cfg.graph = g
		cfg.graphOnly = true
	}
}

// WithScope keeps only providers whose owning context s includes.
func WithScope(s Scope) LoadOption {
	return func(cfg *loadConfig) {
		if s == nil {
			cfg.fail("scope must not be nil")
			return
		}
		cfg.scope = s
	}
}

func (cfg *loadConfig) fail(msg string) {
	if cfg.err == nil {
		cfg.err = invalidArgument("%s", msg)
	}
}

// Load prepares discovery of contract's providers. Arguments are validated
// here; no context is read until the Loader is iterated.
func Load[T any](e *Engine, contract Contract[T], opts ...LoadOption) (*Loader[T], error) {
	if e == nil {
		return nil, invalidArgument("engine must not be nil")
	}
	if contract.IsZero() {
		return nil, invalidArgument("contract must not be the zero value")
	}
	cfg := loadConfig{scope: AllScope()}
	for _, opt := range opts {
		if opt == nil {
			return nil, invalidArgument("load option must not be nil")
		}
		opt(&cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}
	if cfg.start != nil && cfg.graph != nil && cfg.start.Graph() != cfg.graph {
		return nil, invalidArgument("start context %s is not in the requested graph", cfg.start)
	}
	return &Loader[T]{engine: e, contract: contract, cfg: cfg}, nil
}

// Contract returns the contract being discovered.
func (l *Loader[T]) Contract() Contract[T] { return l.contract }

// Contexts returns the contexts discovery visits, in order, after scope filtering.
func (l *Loader[T]) Contexts() []*layer.Context {
	var ordered []*layer.Context
	seen := make(map[*layer.Context]bool)
	add := func(c *layer.Context) {
		if seen[c] {
			return
		}
		seen[c] = true
		ordered = append(ordered, c)
	}

	g := l.engine.boot
	switch {
	case l.cfg.start != nil:
		g = l.cfg.start.Graph()
		if l.cfg.start.IsNamed() {
			add(l.cfg.start)
		}
	case l.cfg.graph != nil:
		g = l.cfg.graph
	}

	for _, cur := range g.Ancestry() {
		for _, c := range cur.Contexts() {
			add(c)
		}
	}
	if !l.cfg.graphOnly {
		if u, ok := g.Unnamed(); ok {
			add(u)
		}
	}

	out := ordered[:0]
	for _, c := range ordered {
		if l.cfg.scope.Includes(c) {
			out = append(out, c)
		}
	}
	return out
}

// Providers yields a handle per discovered provider without instantiating
// anything. Contexts are read only as iteration reaches them. A discovery
// error (malformed descriptor, mixed declarations) is yielded once and ends
// the sequence.
func (l *Loader[T]) Providers() iter.Seq2[*Provider[T], error] {
	return func(yield func(*Provider[T], error) bool) {
		e := l.engine
		e.metrics.discovery(string(l.contract.Name()))
		log := e.logger.With("contract", l.contract.Name())

		seen := make(map[TypeIdentity]bool)
		namedTypes := make(map[types.QualifiedName]bool)

		for _, c := range l.Contexts() {
			log.Debug("visiting context", "context", c.String(), "graph", c.Graph().ID())
			for decl, err := range e.registry.Declarations(c, l.contract.Name()) {
				if err != nil {
					log.Debug("discovery failed", "context", c.String(), "error", err)
					yield(nil, err)
					return
				}
				id := identityOf(decl)
				if seen[id] {
					continue
				}
				if !c.IsNamed() && namedTypes[decl.TypeName] {
					log.Debug("skipping unnamed declaration of a named type", "type", decl.TypeName)
					continue
				}
				seen[id] = true
				if c.IsNamed() {
					namedTypes[decl.TypeName] = true
				}
				e.metrics.yielded(decl.Origin)
				if !yield(newProvider(decl, l.contract, e.ctor, e.metrics), nil) {
					return
				}
			}
		}
	}
}

// Instances yields the instance of each provider in discovery order. An
// instantiation failure is yielded with a zero value and iteration goes on
// with the next provider; a discovery error ends the sequence.
func (l *Loader[T]) Instances() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for p, err := range l.Providers() {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(p.Get()) {
				return
			}
		}
	}
}

// Collect runs a full discovery pass and returns every handle. On a discovery
// error no handles are returned.
func (l *Loader[T]) Collect() ([]*Provider[T], error) {
	var out []*Provider[T]
	for p, err := range l.Providers() {
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// FindFirst instantiates the first provider only. found is false when there
// are no providers. An instantiation failure of the first provider is returned
// as is; later providers are not tried.
func (l *Loader[T]) FindFirst() (value T, found bool, err error) {
	for p, discoverErr := range l.Providers() {
		if discoverErr != nil {
			return value, false, discoverErr
		}
		value, err = p.Get()
		return value, err == nil, err
	}
	return value, false, nil
}
