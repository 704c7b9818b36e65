// SPDX-License-Identifier: MPL-2.0

package serviceloader

import (
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/invowk/svcload/internal/testutil"
	"github.com/invowk/svcload/pkg/descriptor"
	"github.com/invowk/svcload/pkg/layer"
	"github.com/invowk/svcload/pkg/registry"
	"github.com/invowk/svcload/pkg/svcmod"
	"github.com/invowk/svcload/pkg/types"
)

func TestLoad_NamedBeforeUnnamed(t *testing.T) {
	t.Parallel()

	boot := newBoot(t,
		[]layer.Root{classpathRoot("cp", "legacy.Impl\n")},
		testutil.ModuleSpec{Name: "alpha", Provides: provides("alpha.Impl")},
	)
	e := newEngine(t, boot, typesFor(t, "alpha.Impl", "legacy.Impl"))
	alpha, _ := boot.Find("alpha")

	ps := mustCollect(t, mustLoad(t, e, factoryContract, FromContext(alpha)))
	if got := providerNames(ps); !slices.Equal(got, []types.QualifiedName{"alpha.Impl", "legacy.Impl"}) {
		t.Fatalf("providers = %v", got)
	}
	if ps[0].Declaration().Origin != registry.OriginModule || ps[1].Declaration().Origin != registry.OriginDescriptor {
		t.Errorf("unexpected origins")
	}
	if !ps[0].Type().Named || ps[1].Type().Named {
		t.Errorf("unexpected identities %v, %v", ps[0].Type(), ps[1].Type())
	}
}

func TestLoad_DuplicateDescriptorLinesCoalesce(t *testing.T) {
	t.Parallel()

	boot := newBoot(t, []layer.Root{classpathRoot("cp", "# comment\n\ncom.x.Impl\ncom.x.Impl\n")})
	e := newEngine(t, boot, typesFor(t, "com.x.Impl"))

	ps := mustCollect(t, mustLoad(t, e, factoryContract))
	if got := providerNames(ps); !slices.Equal(got, []types.QualifiedName{"com.x.Impl"}) {
		t.Errorf("providers = %v", got)
	}
}

func TestLoad_MalformedDescriptor(t *testing.T) {
	t.Parallel()

	boot := newBoot(t, []layer.Root{classpathRoot("cp", "com.x.Impl\nnot a valid identifier !!\n")})
	e := newEngine(t, boot, typesFor(t, "com.x.Impl"))
	l := mustLoad(t, e, factoryContract)

	ps, err := l.Collect()
	if ps != nil {
		t.Errorf("expected no handles, got %v", providerNames(ps))
	}
	var malformed *descriptor.MalformedError
	if !errors.As(err, &malformed) || malformed.Line != 2 {
		t.Fatalf("expected MalformedError at line 2, got %v", err)
	}

	if _, found, err := l.FindFirst(); found || !errors.Is(err, descriptor.ErrMalformed) {
		t.Errorf("FindFirst() = %v, %v", found, err)
	}
}

func TestLoad_NotAService(t *testing.T) {
	t.Parallel()

	boot := newBoot(t, []layer.Root{classpathRoot("cp", "com.x.Bad\ncom.x.Good\n")})
	table := typesFor(t, "com.x.Good")
	table.MustRegister("com.x.Bad", func() (any, error) { return notAFactory{}, nil })
	e := newEngine(t, boot, table)

	ps := mustCollect(t, mustLoad(t, e, factoryContract))
	if len(ps) != 2 {
		t.Fatalf("expected 2 handles, got %v", providerNames(ps))
	}

	_, err := ps[0].Get()
	var notService *NotAServiceError
	if !errors.As(err, &notService) {
		t.Fatalf("expected NotAServiceError, got %v", err)
	}
	if notService.Contract != factoryName || notService.Got != "serviceloader.notAFactory" {
		t.Errorf("unexpected error fields %+v", notService)
	}

	good, err := ps[1].Get()
	if err != nil || good.EngineName() != "com.x.Good" {
		t.Errorf("second handle should remain usable: %v, %v", good, err)
	}
}

func TestLoad_VisitOrderAcrossGraphs(t *testing.T) {
	t.Parallel()

	boot := newBoot(t,
		[]layer.Root{classpathRoot("cp1", "cp.One\n"), classpathRoot("cp2", "cp.Two\ncp.One\n")},
		testutil.ModuleSpec{Name: "boot.a", Provides: provides("boot.a.Impl")},
		testutil.ModuleSpec{Name: "boot.b", Provides: provides("boot.b.Impl1", "boot.b.Impl2")},
	)
	child, err := layer.Resolve([]types.QualifiedName{"plugin"}, testutil.Finder(t,
		testutil.ModuleSpec{Name: "plugin", Requires: []string{"plugin.dep", "boot.a"}, Provides: provides("plugin.Impl")},
		testutil.ModuleSpec{Name: "plugin.dep", Provides: provides("plugin.dep.Impl")},
	), boot)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	e := newEngine(t, boot, typesFor(t))
	dep, _ := child.FindLocal("plugin.dep")

	tests := []struct {
		name string
		opts []LoadOption
		want []types.QualifiedName
	}{
		{
			name: "default starts at boot",
			want: []types.QualifiedName{"boot.a.Impl", "boot.b.Impl1", "boot.b.Impl2", "cp.One", "cp.Two"},
		},
		{
			name: "start context first, then its graph, then parents, then unnamed",
			opts: []LoadOption{FromContext(dep)},
			want: []types.QualifiedName{"plugin.dep.Impl", "plugin.Impl", "boot.a.Impl", "boot.b.Impl1", "boot.b.Impl2", "cp.One", "cp.Two"},
		},
		{
			name: "graph only skips the unnamed context",
			opts: []LoadOption{InGraph(child)},
			want: []types.QualifiedName{"plugin.Impl", "plugin.dep.Impl", "boot.a.Impl", "boot.b.Impl1", "boot.b.Impl2"},
		},
		{
			name: "graph only with a start context",
			opts: []LoadOption{InGraph(child), FromContext(dep)},
			want: []types.QualifiedName{"plugin.dep.Impl", "plugin.Impl", "boot.a.Impl", "boot.b.Impl1", "boot.b.Impl2"},
		},
		{
			name: "boot graph only",
			opts: []LoadOption{InGraph(boot)},
			want: []types.QualifiedName{"boot.a.Impl", "boot.b.Impl1", "boot.b.Impl2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ps := mustCollect(t, mustLoad(t, e, factoryContract, tt.opts...))
			got := providerNames(ps)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("providers = %v, want %v", got, tt.want)
			}
			seenUnnamed := false
			for _, p := range ps {
				if !p.Type().Named {
					seenUnnamed = true
				} else if seenUnnamed {
					t.Errorf("named provider %s after an unnamed one", p.Type())
				}
			}
		})
	}
}

func TestLoad_ShadowedModuleYieldsBoth(t *testing.T) {
	t.Parallel()

	boot := newBoot(t, nil, testutil.ModuleSpec{Name: "shared", Version: "1.0.0", Provides: provides("shared.Impl")})
	child, err := layer.Resolve([]types.QualifiedName{"shared"}, testutil.Finder(t,
		testutil.ModuleSpec{Name: "shared", Version: "2.0.0", Provides: provides("shared.Impl")},
	), boot)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	e := newEngine(t, boot, typesFor(t, "shared.Impl"))

	ps := mustCollect(t, mustLoad(t, e, factoryContract, InGraph(child)))
	if len(ps) != 2 {
		t.Fatalf("expected both shared.Impl providers, got %v", providerNames(ps))
	}
	if ps[0].Type().Graph != child.ID() || ps[1].Type().Graph != boot.ID() {
		t.Errorf("child provider must come first")
	}
	if ps[0].Type() == ps[1].Type() {
		t.Errorf("identities must differ across graphs")
	}
}

func TestLoad_UnnamedEntryForNamedTypeIsSkipped(t *testing.T) {
	t.Parallel()

	boot := newBoot(t,
		[]layer.Root{classpathRoot("cp", "alpha.Impl\nlegacy.Impl\n")},
		testutil.ModuleSpec{Name: "alpha", Provides: provides("alpha.Impl")},
	)
	e := newEngine(t, boot, typesFor(t))

	got := providerNames(mustCollect(t, mustLoad(t, e, factoryContract)))
	if !slices.Equal(got, []types.QualifiedName{"alpha.Impl", "legacy.Impl"}) {
		t.Errorf("providers = %v", got)
	}

	// With named contexts scoped out the classpath entry is the only alpha.Impl.
	got = providerNames(mustCollect(t, mustLoad(t, e, factoryContract, WithScope(ScopeFunc(func(c *layer.Context) bool { return !c.IsNamed() })))))
	if !slices.Equal(got, []types.QualifiedName{"alpha.Impl", "legacy.Impl"}) {
		t.Errorf("providers with unnamed-only scope = %v", got)
	}
}

func TestLoad_Scopes(t *testing.T) {
	t.Parallel()

	boot := newBoot(t,
		[]layer.Root{classpathRoot("cp", "legacy.Impl\n")},
		testutil.ModuleSpec{Name: "com.example.alpha", Version: "1.0.0", Provides: provides("alpha.Impl")},
		testutil.ModuleSpec{Name: "org.other.beta", Provides: provides("beta.Impl")},
	)
	child, err := layer.Resolve([]types.QualifiedName{"com.example.gamma"}, testutil.Finder(t,
		testutil.ModuleSpec{Name: "com.example.gamma", Provides: provides("gamma.Impl")},
	), boot)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	e := newEngine(t, boot, typesFor(t))
	gamma, _ := child.FindLocal("com.example.gamma")

	mustExpr := func(src string) Scope {
		s, err := ExprScope(src)
		if err != nil {
			t.Fatalf("ExprScope(%q) error = %v", src, err)
		}
		return s
	}

	tests := []struct {
		name  string
		scope Scope
		want  []types.QualifiedName
	}{
		{name: "all", scope: AllScope(), want: []types.QualifiedName{"gamma.Impl", "alpha.Impl", "beta.Impl", "legacy.Impl"}},
		{name: "named", scope: NamedScope(), want: []types.QualifiedName{"gamma.Impl", "alpha.Impl", "beta.Impl"}},
		{name: "boot graph", scope: GraphScope(boot), want: []types.QualifiedName{"alpha.Impl", "beta.Impl", "legacy.Impl"}},
		{name: "empty graph excludes everything", scope: GraphScope(layer.Empty()), want: nil},
		{name: "by name", scope: ContextScope("org.other.beta", "com.example.gamma"), want: []types.QualifiedName{"gamma.Impl", "beta.Impl"}},
		{name: "expr prefix", scope: mustExpr(`named && name startsWith "com.example."`), want: []types.QualifiedName{"gamma.Impl", "alpha.Impl"}},
		{name: "expr version", scope: mustExpr(`version != ""`), want: []types.QualifiedName{"alpha.Impl"}},
		{name: "expr boot", scope: mustExpr(`boot && named`), want: []types.QualifiedName{"alpha.Impl", "beta.Impl"}},
		{name: "expr false", scope: mustExpr(`false`), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := mustLoad(t, e, factoryContract, FromContext(gamma), WithScope(tt.scope))
			ps, err := l.Collect()
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if got := providerNames(ps); !slices.Equal(got, tt.want) {
				t.Errorf("providers = %v, want %v", got, tt.want)
			}
			if len(tt.want) == 0 {
				if _, found, err := l.FindFirst(); found || err != nil {
					t.Errorf("FindFirst() on empty scope = %v, %v", found, err)
				}
			}
		})
	}
}

func TestExprScope_Errors(t *testing.T) {
	t.Parallel()

	if _, err := ExprScope(""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty expression: %v", err)
	}
	if _, err := ExprScope(`name +`); err == nil {
		t.Error("expected syntax error")
	}
	if _, err := ExprScope(`name`); err == nil {
		t.Error("expected error for a non-bool expression")
	}
	if _, err := ExprScope(`unknown == 1`); err == nil {
		t.Error("expected error for an unknown variable")
	}
}

func TestLoader_ReiterationRescans(t *testing.T) {
	t.Parallel()

	cp := fstest.MapFS{"services/" + string(factoryName): {Data: []byte("cp.One\n")}}
	boot := newBoot(t, []layer.Root{{Name: "cp", FS: cp}},
		testutil.ModuleSpec{Name: "alpha", Provides: provides("alpha.Impl")},
	)
	e := newEngine(t, boot, typesFor(t, "alpha.Impl", "cp.One", "cp.Two"))
	l := mustLoad(t, e, factoryContract)

	first := mustCollect(t, l)
	second := mustCollect(t, l)
	if !slices.Equal(providerNames(first), providerNames(second)) {
		t.Fatalf("re-iteration changed the order: %v vs %v", providerNames(first), providerNames(second))
	}
	if first[0] == second[0] {
		t.Error("each pass must create fresh handles")
	}
	v1, _ := first[0].Get()
	v2, _ := second[0].Get()
	if v1 == v2 {
		t.Error("fresh handles must not share a memoized instance")
	}

	cp["services/"+string(factoryName)] = &fstest.MapFile{Data: []byte("cp.One\ncp.Two\n")}
	third := mustCollect(t, l)
	if got := providerNames(third); !slices.Equal(got, []types.QualifiedName{"alpha.Impl", "cp.One", "cp.Two"}) {
		t.Errorf("rescan did not pick up the change: %v", got)
	}
}

func TestLoader_Laziness(t *testing.T) {
	t.Parallel()

	var opens atomic.Int32
	cp := countingFS{MapFS: testutil.DescriptorRoot(map[string]string{string(factoryName): "cp.Impl\n"}), opens: &opens}
	boot := newBoot(t, []layer.Root{{Name: "cp", FS: cp}},
		testutil.ModuleSpec{Name: "alpha", Provides: provides("alpha.Impl")},
	)

	var constructed atomic.Int32
	ctor := ConstructorFunc(func(d registry.Declaration) (any, error) {
		constructed.Add(1)
		return &engineFactory{name: string(d.TypeName)}, nil
	})
	e := newEngine(t, boot, ctor)

	l := mustLoad(t, e, factoryContract)
	if opens.Load() != 0 {
		t.Fatal("Load must not read any storage")
	}

	first, found, err := l.FindFirst()
	if err != nil || !found || first.EngineName() != "alpha.Impl" {
		t.Fatalf("FindFirst() = %v, %v, %v", first, found, err)
	}
	if opens.Load() != 0 {
		t.Error("FindFirst read the unnamed context although a named provider came first")
	}
	if constructed.Load() != 1 {
		t.Errorf("FindFirst constructed %d providers, want 1", constructed.Load())
	}

	ps := mustCollect(t, l)
	if constructed.Load() != 1 {
		t.Error("collecting handles must not instantiate")
	}
	if len(ps) != 2 || opens.Load() == 0 {
		t.Errorf("full pass should read the classpath: %d handles, %d opens", len(ps), opens.Load())
	}
}

func TestLoader_Instances(t *testing.T) {
	t.Parallel()

	boot := newBoot(t, []layer.Root{classpathRoot("cp", "com.x.A\ncom.x.Missing\ncom.x.B\n")})
	e := newEngine(t, boot, typesFor(t, "com.x.A", "com.x.B"))

	var names []string
	var failures []error
	for f, err := range mustLoad(t, e, factoryContract).Instances() {
		if err != nil {
			failures = append(failures, err)
			continue
		}
		names = append(names, f.EngineName())
	}
	if !slices.Equal(names, []string{"com.x.A", "com.x.B"}) {
		t.Errorf("instances = %v", names)
	}
	if len(failures) != 1 || !errors.Is(failures[0], ErrInstantiation) || !errors.Is(failures[0], ErrUnknownType) {
		t.Errorf("failures = %v", failures)
	}
}

func TestLoader_FindFirstEmpty(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newBoot(t, nil), typesFor(t))
	v, found, err := mustLoad(t, e, factoryContract).FindFirst()
	if v != nil || found || err != nil {
		t.Errorf("FindFirst() = %v, %v, %v", v, found, err)
	}
}

func TestLoader_MixedDeclarationsFailDiscovery(t *testing.T) {
	t.Parallel()

	boot := newBoot(t, nil, testutil.ModuleSpec{
		Name:        "both",
		Provides:    provides("both.A"),
		Descriptors: map[string]string{string(factoryName): "both.B\n"},
	})

	strict := newEngine(t, boot, typesFor(t))
	if _, err := mustLoad(t, strict, factoryContract).Collect(); !errors.Is(err, registry.ErrMixedDeclarations) {
		t.Errorf("expected ErrMixedDeclarations, got %v", err)
	}

	lenient := newEngine(t, boot, typesFor(t), WithRegistry(registry.New(registry.WithMixPolicy(registry.MixAppend))))
	got := providerNames(mustCollect(t, mustLoad(t, lenient, factoryContract)))
	if !slices.Equal(got, []types.QualifiedName{"both.A", "both.B"}) {
		t.Errorf("providers = %v", got)
	}
}

func TestLoad_InvalidArguments(t *testing.T) {
	t.Parallel()

	var opens atomic.Int32
	boot := newBoot(t, []layer.Root{{Name: "cp", FS: countingFS{MapFS: fstest.MapFS{}, opens: &opens}}})
	e := newEngine(t, boot, typesFor(t))
	other, err := layer.Resolve([]types.QualifiedName{"x"}, testutil.Finder(t, testutil.ModuleSpec{Name: "x"}), boot)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	x, _ := other.FindLocal("x")

	tests := []struct {
		name string
		load func() error
	}{
		{name: "nil engine", load: func() error { _, err := Load(nil, factoryContract); return err }},
		{name: "zero contract", load: func() error { _, err := Load(e, Contract[ScriptEngineFactory]{}); return err }},
		{name: "nil start context", load: func() error { _, err := Load(e, factoryContract, FromContext(nil)); return err }},
		{name: "nil graph", load: func() error { _, err := Load(e, factoryContract, InGraph(nil)); return err }},
		{name: "nil scope", load: func() error { _, err := Load(e, factoryContract, WithScope(nil)); return err }},
		{name: "nil option", load: func() error { _, err := Load(e, factoryContract, nil); return err }},
		{name: "start outside graph", load: func() error { _, err := Load(e, factoryContract, FromContext(x), InGraph(boot)); return err }},
		{name: "nil boot", load: func() error { _, err := New(nil, typesFor(t)); return err }},
		{name: "nil constructor", load: func() error { _, err := New(boot, nil); return err }},
		{name: "bad contract name", load: func() error { _, err := NewContract[any]("not valid"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.load(); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
	if opens.Load() != 0 {
		t.Errorf("argument validation touched storage %d times", opens.Load())
	}
}

func TestMustContractPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("MustContract should panic on an invalid name")
		}
	}()
	MustContract[any]("9invalid")
}

func TestLoad_FromDirectoryArtifacts(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{}
	testutil.AddModule(fsys, "mods", testutil.ModuleSpec{
		Name:     "com.example.pear",
		Provides: []testutil.Provide{{Service: string(factoryName), With: []string{"com.example.pear.Factory"}, Factories: map[string]string{"com.example.pear.Factory": "provider"}}},
	})
	boot, err := layer.NewBoot(svcmod.NewDirFinder(fsys, "mods"), nil)
	if err != nil {
		t.Fatalf("NewBoot() error = %v", err)
	}

	table := NewTypes()
	if err := table.RegisterFactory("com.example.pear.Factory", "provider", func() (any, error) {
		return &engineFactory{name: "pear via provider()"}, nil
	}); err != nil {
		t.Fatalf("RegisterFactory() error = %v", err)
	}
	e := newEngine(t, boot, table)

	f, found, err := mustLoad(t, e, factoryContract).FindFirst()
	if err != nil || !found || f.EngineName() != "pear via provider()" {
		t.Errorf("FindFirst() = %v, %v, %v", f, found, err)
	}
}
