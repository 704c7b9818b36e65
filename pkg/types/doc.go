// SPDX-License-Identifier: MPL-2.0

// Package types defines cross-cutting value types used by the svcload
// packages. These types carry validation but have no domain dependencies.
//
// This package is a leaf dependency: it imports only the standard library.
package types
