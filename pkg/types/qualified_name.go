// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidQualifiedName is the sentinel error wrapped by InvalidQualifiedNameError.
var ErrInvalidQualifiedName = errors.New("invalid qualified name")

type (
	// QualifiedName is a fully qualified type name such as "org.pear.PearScriptEngineFactory".
	// It is a non-empty sequence of identifiers separated by single dots. An identifier
	// starts with a letter, '_' or '$' and continues with letters, digits, '_' or '$'.
	QualifiedName string

	// InvalidQualifiedNameError is returned when a QualifiedName is not a
	// syntactically valid dotted identifier.
	InvalidQualifiedNameError struct {
		Value  QualifiedName
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidQualifiedNameError) Error() string {
	return fmt.Sprintf("invalid qualified name %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidQualifiedName for errors.Is() compatibility.
func (e *InvalidQualifiedNameError) Unwrap() error { return ErrInvalidQualifiedName }

// String returns the string representation of the QualifiedName.
func (n QualifiedName) String() string { return string(n) }

// Validate returns nil if the name is a valid qualified identifier.
func (n QualifiedName) Validate() error {
	if n == "" {
		return &InvalidQualifiedNameError{Value: n, Reason: "must not be empty"}
	}
	for i, segment := range strings.Split(string(n), ".") {
		if segment == "" {
			return &InvalidQualifiedNameError{Value: n, Reason: fmt.Sprintf("empty identifier at segment %d", i+1)}
		}
		for j, r := range segment {
			if j == 0 && !isIdentifierStart(r) {
				return &InvalidQualifiedNameError{Value: n, Reason: fmt.Sprintf("illegal first character %q in %q", r, segment)}
			}
			if !isIdentifierPart(r) {
				return &InvalidQualifiedNameError{Value: n, Reason: fmt.Sprintf("illegal character %q in %q", r, segment)}
			}
		}
	}
	return nil
}

// IsValid returns whether the QualifiedName is valid, and the validation errors if not.
func (n QualifiedName) IsValid() (bool, []error) {
	if err := n.Validate(); err != nil {
		return false, []error{err}
	}
	return true, nil
}

// Package returns everything before the last dot, or "" for a simple name.
func (n QualifiedName) Package() string {
	idx := strings.LastIndexByte(string(n), '.')
	if idx < 0 {
		return ""
	}
	return string(n[:idx])
}

// SimpleName returns the last identifier of the name.
func (n QualifiedName) SimpleName() string {
	idx := strings.LastIndexByte(string(n), '.')
	return string(n[idx+1:])
}

func isIdentifierStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '$'
}

func isIdentifierPart(r rune) bool {
	return isIdentifierStart(r) || unicode.IsDigit(r)
}
