// SPDX-License-Identifier: MPL-2.0

package serviceloader

import (
	"log/slog"

	"github.com/invowk/svcload/pkg/layer"
	"github.com/invowk/svcload/pkg/registry"
)

type (
	// Option configures an Engine.
	Option func(*Engine)

	// Engine binds a boot graph, a declaration registry and a construction
	// strategy. It is immutable and safe for concurrent use.
	Engine struct {
		boot     *layer.Graph
		ctor     Constructor
		registry *registry.Registry
		logger   *slog.Logger
		metrics  *Metrics
	}
)

// WithRegistry sets the declaration registry. The default rejects mixed declarations.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithLogger sets the logger used for debug traces of discovery passes.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics enables metric collection.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine over the boot graph.
func New(boot *layer.Graph, ctor Constructor, opts ...Option) (*Engine, error) {
	if boot == nil {
		return nil, invalidArgument("boot graph must not be nil")
	}
	if ctor == nil {
		return nil, invalidArgument("constructor must not be nil")
	}
	e := &Engine{
		boot:     boot,
		ctor:     ctor,
		registry: registry.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Boot returns the boot graph.
func (e *Engine) Boot() *layer.Graph { return e.boot }

// Registry returns the declaration registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }
