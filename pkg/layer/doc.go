// SPDX-License-Identifier: MPL-2.0

// Package layer resolves isolation contexts into immutable context graphs.
//
// A Context is one isolation unit: either a named context backed by a module
// artifact, or the single unnamed context whose storage roots play the role
// of a legacy classpath. A Graph is the set of contexts reachable from a list
// of root names, resolved against a svcmod.Finder and a parent graph that is
// always visible as a fallback. The boot graph sits on top of Empty() and is
// the only graph that carries an unnamed context.
//
// Graphs are built once and never mutated, so they are safe for concurrent
// readers.
package layer
