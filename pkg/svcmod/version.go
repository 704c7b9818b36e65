// SPDX-License-Identifier: MPL-2.0

package svcmod

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

var (
	// ErrInvalidSemVer is the sentinel error wrapped by InvalidSemVerError.
	ErrInvalidSemVer = errors.New("invalid semver")
	// ErrInvalidSemVerConstraint is the sentinel error wrapped by InvalidSemVerConstraintError.
	ErrInvalidSemVerConstraint = errors.New("invalid semver constraint")
)

type (
	// SemVer is a concrete semantic version such as "1.2.0" or "2.0.0-rc.1".
	SemVer string

	// InvalidSemVerError is returned when a SemVer cannot be parsed.
	InvalidSemVerError struct {
		Value SemVer
	}

	// SemVerConstraint is a version range such as "^1.2.0", "~1.4" or ">=1.0.0 <2.0.0".
	SemVerConstraint string

	// InvalidSemVerConstraintError is returned when a SemVerConstraint cannot be parsed.
	InvalidSemVerConstraintError struct {
		Value SemVerConstraint
	}
)

// Error implements the error interface.
func (e *InvalidSemVerError) Error() string {
	return fmt.Sprintf("invalid semver %q", e.Value)
}

// Unwrap returns ErrInvalidSemVer so callers can use errors.Is for programmatic detection.
func (e *InvalidSemVerError) Unwrap() error { return ErrInvalidSemVer }

// Error implements the error interface.
func (e *InvalidSemVerConstraintError) Error() string {
	return fmt.Sprintf("invalid semver constraint %q", e.Value)
}

// Unwrap returns ErrInvalidSemVerConstraint so callers can use errors.Is for programmatic detection.
func (e *InvalidSemVerConstraintError) Unwrap() error { return ErrInvalidSemVerConstraint }

// String returns the string representation of the SemVer.
func (s SemVer) String() string { return string(s) }

// Validate returns nil if the version parses.
func (s SemVer) Validate() error {
	_, err := s.parse()
	return err
}

func (s SemVer) parse() (*semver.Version, error) {
	v, err := semver.NewVersion(string(s))
	if err != nil {
		return nil, &InvalidSemVerError{Value: s}
	}
	return v, nil
}

// String returns the string representation of the SemVerConstraint.
func (c SemVerConstraint) String() string { return string(c) }

// Validate returns nil if the constraint parses.
func (c SemVerConstraint) Validate() error {
	_, err := c.parse()
	return err
}

func (c SemVerConstraint) parse() (*semver.Constraints, error) {
	parsed, err := semver.NewConstraint(string(c))
	if err != nil {
		return nil, &InvalidSemVerConstraintError{Value: c}
	}
	return parsed, nil
}

// Satisfied reports whether v satisfies the constraint. An empty constraint is
// satisfied by anything, including an unversioned module; a non-empty one is
// never satisfied by an empty version.
func (c SemVerConstraint) Satisfied(v SemVer) (bool, error) {
	if c == "" {
		return true, nil
	}
	constraint, err := c.parse()
	if err != nil {
		return false, err
	}
	if v == "" {
		return false, nil
	}
	version, err := v.parse()
	if err != nil {
		return false, err
	}
	return constraint.Check(version), nil
}
