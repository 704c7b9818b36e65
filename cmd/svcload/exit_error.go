// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/invowk/svcload/internal/bootstrap"
	"github.com/invowk/svcload/pkg/descriptor"
	"github.com/invowk/svcload/pkg/layer"
	"github.com/invowk/svcload/pkg/registry"
	"github.com/invowk/svcload/pkg/svcmod"
	"github.com/invowk/svcload/pkg/types"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
// An ExitError without Err has already been reported to the user.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFor classifies err into a process exit code.
func exitCodeFor(err error) types.ExitCode {
	var exitErr *ExitError
	switch {
	case err == nil:
		return types.ExitOK
	case errors.As(err, &exitErr):
		return exitErr.Code
	case isUsageError(err):
		return types.ExitUsage
	case errors.Is(err, descriptor.ErrMalformed),
		errors.Is(err, registry.ErrMixedDeclarations),
		errors.Is(err, svcmod.ErrInvalidModule):
		return types.ExitMalformed
	case errors.Is(err, layer.ErrUnresolvedDependency),
		errors.Is(err, layer.ErrCyclicDependency):
		return types.ExitResolution
	case errors.Is(err, bootstrap.ErrInvalidScope),
		errors.Is(err, bootstrap.ErrUnknownScope):
		return types.ExitUsage
	default:
		return types.ExitFailure
	}
}
