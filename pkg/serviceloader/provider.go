// SPDX-License-Identifier: MPL-2.0

package serviceloader

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/invowk/svcload/pkg/registry"
	"github.com/invowk/svcload/pkg/types"
)

var errNilInstance = errors.New("constructor returned nil")

// TypeIdentity identifies an implementation type: its name qualified by the
// context that declares it.
type TypeIdentity struct {
	Name    types.QualifiedName
	Context types.QualifiedName
	Named   bool
	Graph   uuid.UUID
}

// String returns name@context, or name@unnamed.
func (t TypeIdentity) String() string {
	if !t.Named {
		return string(t.Name) + "@unnamed"
	}
	return string(t.Name) + "@" + string(t.Context)
}

// Provider is a handle on one discovered implementation. Type and
// Declaration never instantiate; Get instantiates at most once, even under
// concurrent callers, and returns the same outcome every time.
type Provider[T any] struct {
	decl     registry.Declaration
	identity TypeIdentity
	contract Contract[T]
	ctor     Constructor
	metrics  *Metrics

	once  sync.Once
	value T
	err   error
}

func newProvider[T any](decl registry.Declaration, contract Contract[T], ctor Constructor, metrics *Metrics) *Provider[T] {
	return &Provider[T]{
		decl:     decl,
		identity: identityOf(decl),
		contract: contract,
		ctor:     ctor,
		metrics:  metrics,
	}
}

func identityOf(decl registry.Declaration) TypeIdentity {
	return TypeIdentity{
		Name:    decl.TypeName,
		Context: decl.Context.Name(),
		Named:   decl.Context.IsNamed(),
		Graph:   decl.Context.Graph().ID(),
	}
}

// Type returns the implementation's identity without instantiating it.
func (p *Provider[T]) Type() TypeIdentity { return p.identity }

// Declaration returns the declaration the handle was created from.
func (p *Provider[T]) Declaration() registry.Declaration { return p.decl }

// Get returns the provider instance, constructing it on the first call.
// Failures are InstantiationError or NotAServiceError and are memoized too.
func (p *Provider[T]) Get() (T, error) {
	p.once.Do(func() {
		p.value, p.err = p.construct()
		switch {
		case p.err == nil:
			p.metrics.instantiated(resultOK)
		case errors.Is(p.err, ErrNotAService):
			p.metrics.instantiated(resultNotAService)
		default:
			p.metrics.instantiated(resultError)
		}
	})
	return p.value, p.err
}

func (p *Provider[T]) construct() (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = &InstantiationError{Type: p.identity, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	raw, err := p.ctor.Construct(p.decl)
	if err != nil {
		return value, &InstantiationError{Type: p.identity, Cause: err}
	}
	if raw == nil {
		return value, &InstantiationError{Type: p.identity, Cause: errNilInstance}
	}
	v, ok := raw.(T)
	if !ok {
		return value, &NotAServiceError{
			Type:     p.identity,
			Contract: p.contract.Name(),
			Got:      fmt.Sprintf("%T", raw),
			Want:     p.contract.goType(),
		}
	}
	return v, nil
}
