// SPDX-License-Identifier: MPL-2.0

// Package serviceloader discovers and lazily instantiates service providers.
//
// A Contract[T] names a service and the Go type its providers must satisfy.
// Load returns a Loader whose Providers sequence walks the visible contexts
// in a fixed order:
//
//  1. the start context (FromContext), then the rest of its graph;
//  2. the named contexts of each parent graph, nearest first;
//  3. the unnamed context, last.
//
// Every provider from a named context therefore precedes every provider from
// the unnamed context. Nothing is instantiated while iterating: each Provider
// constructs its instance on the first Get, through the engine's Constructor,
// and memoizes the outcome.
//
//	contract := serviceloader.MustContract[ScriptEngineFactory]("javax.script.ScriptEngineFactory")
//	loader, err := serviceloader.Load(engine, contract, serviceloader.FromContext(ctx))
//	if err != nil {
//		return err
//	}
//	factory, found, err := loader.FindFirst()
package serviceloader
