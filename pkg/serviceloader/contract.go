// SPDX-License-Identifier: MPL-2.0

package serviceloader

import (
	"reflect"

	"github.com/invowk/svcload/pkg/types"
)

// Contract identifies a service. The name is the lookup key in module
// metadata and descriptor files; T is the type every provider instance must
// satisfy.
type Contract[T any] struct {
	name types.QualifiedName
}

// NewContract validates name and returns the contract for T.
func NewContract[T any](name types.QualifiedName) (Contract[T], error) {
	if err := name.Validate(); err != nil {
		return Contract[T]{}, invalidArgument("contract: %v", err)
	}
	return Contract[T]{name: name}, nil
}

// MustContract is NewContract that panics on an invalid name. Intended for
// package-level contract variables.
func MustContract[T any](name types.QualifiedName) Contract[T] {
	c, err := NewContract[T](name)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the contract name.
func (c Contract[T]) Name() types.QualifiedName { return c.name }

// IsZero reports whether c is the zero Contract.
func (c Contract[T]) IsZero() bool { return c.name == "" }

// String returns the contract name.
func (c Contract[T]) String() string { return string(c.name) }

func (c Contract[T]) goType() string {
	return reflect.TypeFor[T]().String()
}
