// SPDX-License-Identifier: MPL-2.0

package serviceloader

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/invowk/svcload/pkg/layer"
	"github.com/invowk/svcload/pkg/types"
)

type (
	// Scope restricts which contexts contribute providers.
	Scope interface {
		Includes(c *layer.Context) bool
	}

	// ScopeFunc adapts a predicate to Scope.
	ScopeFunc func(c *layer.Context) bool

	// scopeEnv is what an ExprScope expression sees.
	scopeEnv struct {
		Name    string `expr:"name"`
		Named   bool   `expr:"named"`
		Version string `expr:"version"`
		Graph   string `expr:"graph"`
		// Boot is true for contexts of a graph whose parent is Empty().
		Boot bool `expr:"boot"`
	}

	exprScope struct {
		expression string
		program    *vm.Program
	}
)

// Includes implements Scope.
func (f ScopeFunc) Includes(c *layer.Context) bool { return f(c) }

// AllScope includes every context.
func AllScope() Scope {
	return ScopeFunc(func(*layer.Context) bool { return true })
}

// NamedScope includes named contexts only, hiding the unnamed context.
func NamedScope() Scope {
	return ScopeFunc(func(c *layer.Context) bool { return c.IsNamed() })
}

// GraphScope includes the contexts that belong to g itself. The unnamed
// context belongs to the graph that carries it.
func GraphScope(g *layer.Graph) Scope {
	return ScopeFunc(func(c *layer.Context) bool { return c.Graph() == g })
}

// ContextScope includes the named contexts with the given names.
func ContextScope(names ...types.QualifiedName) Scope {
	return ScopeFunc(func(c *layer.Context) bool {
		return c.IsNamed() && slices.Contains(names, c.Name())
	})
}

// ExprScope compiles an expr-lang predicate over the context. The expression
// sees name, named, version, graph and boot, and must evaluate to a bool:
//
//	named && name startsWith "com.example."
//	boot || version != ""
func ExprScope(expression string) (Scope, error) {
	if expression == "" {
		return nil, invalidArgument("scope expression must not be empty")
	}
	program, err := expr.Compile(expression, expr.Env(scopeEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile scope %q: %w", expression, err)
	}
	return &exprScope{expression: expression, program: program}, nil
}

// Includes implements Scope. A runtime evaluation error excludes the context.
func (s *exprScope) Includes(c *layer.Context) bool {
	env := scopeEnv{
		Name:    string(c.Name()),
		Named:   c.IsNamed(),
		Version: string(c.Version()),
		Graph:   c.Graph().ID().String(),
		Boot:    c.Graph().Parent() == layer.Empty(),
	}
	out, err := expr.Run(s.program, env)
	if err != nil {
		slog.Warn("scope expression failed", "expr", s.expression, "context", c.String(), "error", err)
		return false
	}
	included, _ := out.(bool)
	return included
}

// String returns the source expression.
func (s *exprScope) String() string { return s.expression }
