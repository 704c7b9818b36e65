// SPDX-License-Identifier: MPL-2.0

package layer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/invowk/svcload/pkg/svcmod"
	"github.com/invowk/svcload/pkg/types"
)

var (
	// ErrInvalidArgument is returned for nil or malformed inputs before any lookup happens.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnresolvedDependency is returned when a root or required module cannot be found.
	ErrUnresolvedDependency = errors.New("unresolved dependency")

	// ErrCyclicDependency is returned when requires form a cycle.
	ErrCyclicDependency = errors.New("cyclic dependency")
)

type (
	// InvalidArgumentError describes a rejected argument.
	InvalidArgumentError struct {
		Arg    string
		Reason string
	}

	// UnresolvedDependencyError reports a module found neither by the finder
	// nor in the parent chain.
	UnresolvedDependencyError struct {
		Name types.QualifiedName
		// RequiredBy is the requiring module, or "" for a root.
		RequiredBy types.QualifiedName
	}

	// VersionMismatchError reports a module that was found but whose version
	// does not satisfy the requirement constraint.
	VersionMismatchError struct {
		Name       types.QualifiedName
		Constraint svcmod.SemVerConstraint
		Found      svcmod.SemVer
		RequiredBy types.QualifiedName
	}

	// CyclicDependencyError reports a requires cycle. Cycle starts and ends
	// with the same module.
	CyclicDependencyError struct {
		Cycle []types.QualifiedName
	}
)

// Error implements the error interface.
func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Arg, e.Reason)
}

// Unwrap returns ErrInvalidArgument for errors.Is() compatibility.
func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

// Error implements the error interface.
func (e *UnresolvedDependencyError) Error() string {
	if e.RequiredBy == "" {
		return fmt.Sprintf("module %s not found", e.Name)
	}
	return fmt.Sprintf("module %s not found, required by %s", e.Name, e.RequiredBy)
}

// Unwrap returns ErrUnresolvedDependency for errors.Is() compatibility.
func (e *UnresolvedDependencyError) Unwrap() error { return ErrUnresolvedDependency }

// Error implements the error interface.
func (e *VersionMismatchError) Error() string {
	found := string(e.Found)
	if found == "" {
		found = "no version"
	}
	return fmt.Sprintf("module %s %s does not satisfy %q, required by %s", e.Name, found, e.Constraint, e.RequiredBy)
}

// Unwrap returns ErrUnresolvedDependency for errors.Is() compatibility.
func (e *VersionMismatchError) Unwrap() error { return ErrUnresolvedDependency }

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, n := range e.Cycle {
		parts[i] = string(n)
	}
	return "cycle detected in module requires: " + strings.Join(parts, " -> ")
}

// Unwrap returns ErrCyclicDependency for errors.Is() compatibility.
func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }
