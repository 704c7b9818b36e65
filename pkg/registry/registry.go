// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"fmt"
	"iter"
	"path"
	"slices"

	"github.com/invowk/svcload/pkg/descriptor"
	"github.com/invowk/svcload/pkg/layer"
	"github.com/invowk/svcload/pkg/types"
)

const (
	// OriginModule marks a declaration taken from module metadata.
	OriginModule Origin = iota + 1
	// OriginDescriptor marks a declaration taken from a descriptor file.
	OriginDescriptor
)

const (
	// MixReject fails a context that declares providers for the same contract
	// both in module metadata and in a descriptor file.
	MixReject MixPolicy = "reject"
	// MixAppend appends descriptor entries after module entries, dropping repeats.
	MixAppend MixPolicy = "append"
)

var (
	// ErrMixedDeclarations is the sentinel error wrapped by MixedDeclarationsError.
	ErrMixedDeclarations = errors.New("mixed provider declarations")

	// ErrInvalidMixPolicy is returned by ParseMixPolicy for unknown values.
	ErrInvalidMixPolicy = errors.New("invalid mixed declarations policy")

	// ErrInvalidArgument is returned for a nil context or an invalid contract name.
	ErrInvalidArgument = errors.New("invalid argument")
)

type (
	// Origin says where a declaration came from.
	Origin int

	// MixPolicy decides what happens when a named context declares providers
	// for one contract in both module metadata and a descriptor file.
	MixPolicy string

	// Declaration is one implementation declared by a context for a contract.
	Declaration struct {
		TypeName types.QualifiedName
		Context  *layer.Context
		Origin   Origin
		// Factory is the static factory entry point from module metadata, if any.
		Factory string
		// Source locates the declaration (svcmod.cue or descriptor path).
		Source string
	}

	// MixedDeclarationsError reports a context that mixes declaration origins.
	MixedDeclarationsError struct {
		Context    types.QualifiedName
		Contract   types.QualifiedName
		Descriptor string
	}

	// Option configures a Registry.
	Option func(*Registry)

	// Registry extracts provider declarations from contexts. It holds no
	// mutable state and is safe for concurrent use.
	Registry struct {
		policy MixPolicy
	}
)

// String returns "module" or "descriptor".
func (o Origin) String() string {
	switch o {
	case OriginModule:
		return "module"
	case OriginDescriptor:
		return "descriptor"
	default:
		return fmt.Sprintf("Origin(%d)", int(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Origin) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// ParseMixPolicy parses "reject" or "append". The empty string means MixReject.
func ParseMixPolicy(s string) (MixPolicy, error) {
	switch MixPolicy(s) {
	case "", MixReject:
		return MixReject, nil
	case MixAppend:
		return MixAppend, nil
	default:
		return "", fmt.Errorf("%w: %q (expected reject or append)", ErrInvalidMixPolicy, s)
	}
}

// Error implements the error interface.
func (e *MixedDeclarationsError) Error() string {
	return fmt.Sprintf("module %s declares providers of %s in svcmod.cue and in %s", e.Context, e.Contract, e.Descriptor)
}

// Unwrap returns ErrMixedDeclarations for errors.Is() compatibility.
func (e *MixedDeclarationsError) Unwrap() error { return ErrMixedDeclarations }

// WithMixPolicy sets the policy for contexts that mix declaration origins.
func WithMixPolicy(p MixPolicy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

// New creates a Registry. The default policy is MixReject.
func New(opts ...Option) *Registry {
	r := &Registry{policy: MixReject}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the configured mix policy.
func (r *Registry) Policy() MixPolicy { return r.policy }

// Declarations yields the declarations of ctx for contract, in declared order
// with repeated names removed. A read or syntax error is yielded once and
// ends the sequence.
func (r *Registry) Declarations(ctx *layer.Context, contract types.QualifiedName) iter.Seq2[Declaration, error] {
	return func(yield func(Declaration, error) bool) {
		if ctx == nil {
			yield(Declaration{}, fmt.Errorf("%w: context must not be nil", ErrInvalidArgument))
			return
		}
		if err := contract.Validate(); err != nil {
			yield(Declaration{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err))
			return
		}
		if ctx.IsNamed() {
			r.named(ctx, contract, yield)
			return
		}
		r.unnamed(ctx, contract, yield)
	}
}

// DeclarationsFor collects Declarations into a slice.
func (r *Registry) DeclarationsFor(ctx *layer.Context, contract types.QualifiedName) ([]Declaration, error) {
	var out []Declaration
	for d, err := range r.Declarations(ctx, contract) {
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// named reads everything a named context declares before yielding, so a
// mixed-origin context fails without yielding a partial list.
func (r *Registry) named(ctx *layer.Context, contract types.QualifiedName, yield func(Declaration, error) bool) {
	names, factories := ctx.Provides(contract)
	source := ""
	if mod := ctx.Module(); mod != nil && mod.Metadata != nil {
		source = mod.Metadata.FilePath
	}

	decls := make([]Declaration, 0, len(names))
	for _, n := range names {
		decls = append(decls, Declaration{
			TypeName: n,
			Context:  ctx,
			Origin:   OriginModule,
			Factory:  factories[n],
			Source:   source,
		})
	}

	for _, root := range ctx.Roots() {
		listed, found, err := descriptor.Read(root.FS, contract)
		if err != nil {
			yield(Declaration{}, fmt.Errorf("%s: %w", root.Name, err))
			return
		}
		if !found || len(listed) == 0 {
			continue
		}
		where := path.Join(root.Name, descriptor.Path(contract))
		if len(names) > 0 && r.policy != MixAppend {
			yield(Declaration{}, &MixedDeclarationsError{Context: ctx.Name(), Contract: contract, Descriptor: where})
			return
		}
		for _, n := range listed {
			if slices.ContainsFunc(decls, func(d Declaration) bool { return d.TypeName == n }) {
				continue
			}
			decls = append(decls, Declaration{TypeName: n, Context: ctx, Origin: OriginDescriptor, Source: where})
		}
	}

	for _, d := range decls {
		if !yield(d, nil) {
			return
		}
	}
}

// unnamed reads the unnamed context root by root. A name listed in several
// roots is yielded once, from the first root that lists it.
func (r *Registry) unnamed(ctx *layer.Context, contract types.QualifiedName, yield func(Declaration, error) bool) {
	seen := make(map[types.QualifiedName]bool)
	for _, root := range ctx.Roots() {
		listed, found, err := descriptor.Read(root.FS, contract)
		if err != nil {
			yield(Declaration{}, fmt.Errorf("%s: %w", root.Name, err))
			return
		}
		if !found {
			continue
		}
		where := path.Join(root.Name, descriptor.Path(contract))
		for _, n := range listed {
			if seen[n] {
				continue
			}
			seen[n] = true
			if !yield(Declaration{TypeName: n, Context: ctx, Origin: OriginDescriptor, Source: where}, nil) {
				return
			}
		}
	}
}
