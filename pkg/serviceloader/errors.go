// SPDX-License-Identifier: MPL-2.0

package serviceloader

import (
	"errors"
	"fmt"

	"github.com/invowk/svcload/pkg/types"
)

var (
	// ErrInvalidArgument is returned for nil or zero arguments, before any I/O.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInstantiation is the sentinel error wrapped by InstantiationError.
	ErrInstantiation = errors.New("provider instantiation failed")

	// ErrNotAService is the sentinel error wrapped by NotAServiceError.
	ErrNotAService = errors.New("provider is not a service")

	// ErrUnknownType is returned by Types when no constructor is registered
	// for a declared implementation.
	ErrUnknownType = errors.New("unknown implementation type")
)

type (
	// InstantiationError reports a provider whose construction failed.
	InstantiationError struct {
		Type  TypeIdentity
		Cause error
	}

	// NotAServiceError reports a provider whose instance does not satisfy the
	// contract's Go type.
	NotAServiceError struct {
		Type     TypeIdentity
		Contract types.QualifiedName
		// Got is the dynamic type of the constructed value.
		Got string
		// Want is the Go type required by the contract.
		Want string
	}
)

// Error implements the error interface.
func (e *InstantiationError) Error() string {
	return fmt.Sprintf("provider %s could not be instantiated: %v", e.Type, e.Cause)
}

// Unwrap returns ErrInstantiation and the cause.
func (e *InstantiationError) Unwrap() []error { return []error{ErrInstantiation, e.Cause} }

// Error implements the error interface.
func (e *NotAServiceError) Error() string {
	return fmt.Sprintf("provider %s not a subtype: %s does not implement %s (%s)", e.Type, e.Got, e.Contract, e.Want)
}

// Unwrap returns ErrNotAService for errors.Is() compatibility.
func (e *NotAServiceError) Unwrap() error { return ErrNotAService }

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
