// SPDX-License-Identifier: MPL-2.0

package serviceloader

import (
	"io/fs"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/invowk/svcload/internal/testutil"
	"github.com/invowk/svcload/pkg/layer"
	"github.com/invowk/svcload/pkg/types"
)

const factoryName types.QualifiedName = "javax.script.ScriptEngineFactory"

type (
	// ScriptEngineFactory is the service type used throughout the tests.
	ScriptEngineFactory interface {
		EngineName() string
	}

	engineFactory struct{ name string }

	notAFactory struct{}

	// countingFS counts Open calls.
	countingFS struct {
		fstest.MapFS
		opens *atomic.Int32
	}
)

func (f *engineFactory) EngineName() string { return f.name }

func (c countingFS) Open(name string) (fs.File, error) {
	c.opens.Add(1)
	return c.MapFS.Open(name)
}

var factoryContract = MustContract[ScriptEngineFactory](factoryName)

// typesFor registers an engineFactory constructor for every name.
func typesFor(t *testing.T, names ...types.QualifiedName) *Types {
	t.Helper()
	table := NewTypes()
	for _, n := range names {
		name := string(n)
		if err := table.Register(n, func() (any, error) { return &engineFactory{name: name}, nil }); err != nil {
			t.Fatalf("Register(%s) error = %v", n, err)
		}
	}
	return table
}

func provides(impls ...string) []testutil.Provide {
	return []testutil.Provide{{Service: string(factoryName), With: impls}}
}

func classpathRoot(name, content string) layer.Root {
	return layer.Root{Name: name, FS: testutil.DescriptorRoot(map[string]string{string(factoryName): content})}
}

func newBoot(t *testing.T, classpath []layer.Root, specs ...testutil.ModuleSpec) *layer.Graph {
	t.Helper()
	boot, err := layer.NewBoot(testutil.Finder(t, specs...), nil, classpath...)
	if err != nil {
		t.Fatalf("NewBoot() error = %v", err)
	}
	return boot
}

func newEngine(t *testing.T, boot *layer.Graph, ctor Constructor, opts ...Option) *Engine {
	t.Helper()
	e, err := New(boot, ctor, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func mustLoad[T any](t *testing.T, e *Engine, c Contract[T], opts ...LoadOption) *Loader[T] {
	t.Helper()
	l, err := Load(e, c, opts...)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return l
}

func mustCollect[T any](t *testing.T, l *Loader[T]) []*Provider[T] {
	t.Helper()
	ps, err := l.Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return ps
}

func providerNames[T any](ps []*Provider[T]) []types.QualifiedName {
	out := make([]types.QualifiedName, len(ps))
	for i, p := range ps {
		out[i] = p.Type().Name
	}
	return out
}
