// SPDX-License-Identifier: MPL-2.0

package serviceloader

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/invowk/svcload/pkg/registry"
	"github.com/invowk/svcload/pkg/types"
)

// ErrDuplicateType is returned when a constructor is registered twice for the same name.
var ErrDuplicateType = errors.New("implementation type already registered")

type (
	// Constructor is the construction strategy: it turns a declaration into
	// an instance. Implementations must be safe for concurrent use.
	Constructor interface {
		Construct(decl registry.Declaration) (any, error)
	}

	// ConstructorFunc adapts a function to Constructor.
	ConstructorFunc func(decl registry.Declaration) (any, error)

	// NewFunc builds one instance of an implementation.
	NewFunc func() (any, error)

	factoryKey struct {
		name    types.QualifiedName
		factory string
	}

	// Types is a Constructor backed by a table of registered implementation
	// names. It is safe for concurrent use; registration normally happens
	// during program initialization.
	Types struct {
		mu        sync.RWMutex
		ctors     map[types.QualifiedName]NewFunc
		factories map[factoryKey]NewFunc
	}
)

// Construct implements Constructor.
func (f ConstructorFunc) Construct(decl registry.Declaration) (any, error) {
	return f(decl)
}

// NewTypes returns an empty type table.
func NewTypes() *Types {
	return &Types{
		ctors:     make(map[types.QualifiedName]NewFunc),
		factories: make(map[factoryKey]NewFunc),
	}
}

// Register binds an implementation name to its constructor.
func (t *Types) Register(name types.QualifiedName, fn NewFunc) error {
	if err := name.Validate(); err != nil {
		return invalidArgument("implementation: %v", err)
	}
	if fn == nil {
		return invalidArgument("constructor for %s is nil", name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.ctors[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, name)
	}
	t.ctors[name] = fn
	return nil
}

// RegisterFactory binds the static factory entry point factory of an
// implementation. Declarations that name a factory use it instead of the
// plain constructor.
func (t *Types) RegisterFactory(name types.QualifiedName, factory string, fn NewFunc) error {
	if err := name.Validate(); err != nil {
		return invalidArgument("implementation: %v", err)
	}
	if factory == "" {
		return invalidArgument("factory name for %s is empty", name)
	}
	if fn == nil {
		return invalidArgument("factory %s.%s is nil", name, factory)
	}

	key := factoryKey{name: name, factory: factory}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.factories[key]; exists {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateType, name, factory)
	}
	t.factories[key] = fn
	return nil
}

// MustRegister is Register that panics on error.
func (t *Types) MustRegister(name types.QualifiedName, fn NewFunc) {
	if err := t.Register(name, fn); err != nil {
		panic(err)
	}
}

// Names returns the registered implementation names, sorted.
func (t *Types) Names() []types.QualifiedName {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]types.QualifiedName, 0, len(t.ctors))
	for n := range t.ctors {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Construct implements Constructor.
func (t *Types) Construct(decl registry.Declaration) (any, error) {
	t.mu.RLock()
	var fn NewFunc
	var ok bool
	if decl.Factory != "" {
		fn, ok = t.factories[factoryKey{name: decl.TypeName, factory: decl.Factory}]
	} else {
		fn, ok = t.ctors[decl.TypeName]
	}
	t.mu.RUnlock()

	if !ok {
		if decl.Factory != "" {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownType, decl.TypeName, decl.Factory)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, decl.TypeName)
	}
	return fn()
}
