// SPDX-License-Identifier: MPL-2.0

// Package testutil lays out module artifacts and descriptor files for tests,
// in memory (fstest.MapFS) or on disk, and provides Must* helpers that fail
// the test instead of returning errors.
package testutil
