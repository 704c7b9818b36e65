// SPDX-License-Identifier: MPL-2.0

package svcmod

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/invowk/svcload/pkg/cueutil"
	"github.com/invowk/svcload/pkg/types"
)

const (
	// ModuleSuffix is the directory suffix identifying a module artifact.
	ModuleSuffix = ".svcmod"

	// MetadataFile is the metadata file name inside a module artifact.
	MetadataFile = "svcmod.cue"
)

var (
	//go:embed svcmod_schema.cue
	svcmodSchema string

	// ErrSvcmodNotFound is returned when a module directory has no svcmod.cue.
	ErrSvcmodNotFound = errors.New("svcmod.cue not found")

	// ErrInvalidModule is the sentinel error wrapped by InvalidModuleError.
	ErrInvalidModule = errors.New("invalid module")
)

type (
	// Requirement names a module that must be resolvable alongside the declaring one.
	Requirement struct {
		Module  types.QualifiedName `json:"module"`
		Version SemVerConstraint    `json:"version,omitempty"`
	}

	// Provision declares the implementations a module offers for one service.
	Provision struct {
		Service types.QualifiedName   `json:"service"`
		With    []types.QualifiedName `json:"with"`
		// Factories maps an implementation name to a static factory entry point.
		Factories map[types.QualifiedName]string `json:"factories,omitempty"`
	}

	// Svcmod is the parsed content of svcmod.cue.
	Svcmod struct {
		Module   types.QualifiedName `json:"module"`
		Version  SemVer              `json:"version,omitempty"`
		Requires []Requirement       `json:"requires,omitempty"`
		Provides []Provision         `json:"provides,omitempty"`
		// FilePath is where the metadata was read from (not in CUE).
		FilePath string `json:"-"`
	}

	// Module is a loaded module artifact.
	Module struct {
		// Metadata is the parsed svcmod.cue.
		Metadata *Svcmod
		// Path locates the artifact inside the filesystem it was found in.
		Path string
		// Storage is the artifact directory; descriptor files are read from it.
		Storage fs.FS
	}

	// InvalidModuleError reports metadata that parsed but is not usable.
	InvalidModuleError struct {
		Path   string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidModuleError) Error() string {
	return fmt.Sprintf("invalid module at %s: %s", e.Path, e.Reason)
}

// Unwrap returns ErrInvalidModule for errors.Is() compatibility.
func (e *InvalidModuleError) Unwrap() error { return ErrInvalidModule }

// Name returns the module name from metadata.
func (m *Module) Name() types.QualifiedName {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata.Module
}

// Version returns the module version, or "" if it declares none.
func (m *Module) Version() SemVer {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata.Version
}

// Provides returns the implementations the module declares for service, in
// declared order with repeats removed, together with any static factories.
// Several provides entries for the same service are merged.
func (m *Module) Provides(service types.QualifiedName) ([]types.QualifiedName, map[types.QualifiedName]string) {
	if m.Metadata == nil {
		return nil, nil
	}
	var names []types.QualifiedName
	var factories map[types.QualifiedName]string
	for _, p := range m.Metadata.Provides {
		if p.Service != service {
			continue
		}
		for _, impl := range p.With {
			if slices.Contains(names, impl) {
				continue
			}
			names = append(names, impl)
			if f, ok := p.Factories[impl]; ok {
				if factories == nil {
					factories = make(map[types.QualifiedName]string)
				}
				factories[impl] = f
			}
		}
	}
	return names, factories
}

// Services returns every service the module declares providers for, in order of first mention.
func (m *Module) Services() []types.QualifiedName {
	if m.Metadata == nil {
		return nil
	}
	var services []types.QualifiedName
	for _, p := range m.Metadata.Provides {
		if !slices.Contains(services, p.Service) {
			services = append(services, p.Service)
		}
	}
	return services
}

// New builds a Module from already parsed metadata. storage may be nil for a
// module without descriptor files.
func New(meta *Svcmod, storage fs.FS) (*Module, error) {
	if meta == nil {
		return nil, &InvalidModuleError{Path: "<memory>", Reason: "metadata is nil"}
	}
	where := meta.FilePath
	if where == "" {
		where = "<memory>"
	}
	if err := meta.Validate(where); err != nil {
		return nil, err
	}
	if storage == nil {
		storage = emptyFS{}
	}
	return &Module{Metadata: meta, Path: where, Storage: storage}, nil
}

// Validate checks identifier syntax, versions and factory references.
func (s *Svcmod) Validate(where string) error {
	invalid := func(format string, args ...any) error {
		return &InvalidModuleError{Path: where, Reason: fmt.Sprintf(format, args...)}
	}

	if err := s.Module.Validate(); err != nil {
		return invalid("module: %v", err)
	}
	if s.Version != "" {
		if err := s.Version.Validate(); err != nil {
			return invalid("version: %v", err)
		}
	}
	for i, req := range s.Requires {
		if err := req.Module.Validate(); err != nil {
			return invalid("requires[%d].module: %v", i, err)
		}
		if req.Module == s.Module {
			return invalid("requires[%d]: module cannot require itself", i)
		}
		if req.Version != "" {
			if err := req.Version.Validate(); err != nil {
				return invalid("requires[%d].version: %v", i, err)
			}
		}
	}
	for i, p := range s.Provides {
		if err := p.Service.Validate(); err != nil {
			return invalid("provides[%d].service: %v", i, err)
		}
		if len(p.With) == 0 {
			return invalid("provides[%d].with: at least one implementation is required", i)
		}
		for j, impl := range p.With {
			if err := impl.Validate(); err != nil {
				return invalid("provides[%d].with[%d]: %v", i, j, err)
			}
		}
		for impl := range p.Factories {
			if !slices.Contains(p.With, impl) {
				return invalid("provides[%d].factories: %q is not listed in with", i, impl)
			}
		}
	}
	return nil
}

// ParseSvcmodBytes parses module metadata from CUE source.
func ParseSvcmodBytes(data []byte, filename string) (*Svcmod, error) {
	result, err := cueutil.ParseAndDecodeString[Svcmod](
		svcmodSchema,
		data,
		"#Svcmod",
		cueutil.WithFilename(filename),
	)
	if err != nil {
		return nil, err
	}

	meta := result.Value
	meta.FilePath = filename
	if err := meta.Validate(filename); err != nil {
		return nil, err
	}
	return meta, nil
}

// ParseModuleName extracts and validates the module name from a directory name.
func ParseModuleName(dirName string) (types.QualifiedName, error) {
	if !strings.HasSuffix(dirName, ModuleSuffix) {
		return "", fmt.Errorf("directory name must end with '%s'", ModuleSuffix)
	}
	name := types.QualifiedName(strings.TrimSuffix(dirName, ModuleSuffix))
	if err := name.Validate(); err != nil {
		return "", fmt.Errorf("module directory %q: %w", dirName, err)
	}
	return name, nil
}

// IsModuleDir reports whether dirName looks like a module artifact directory.
func IsModuleDir(dirName string) bool {
	_, err := ParseModuleName(dirName)
	return err == nil
}

// Load reads the module artifact at dir inside fsys. The module name declared
// in svcmod.cue must equal the directory prefix.
func Load(fsys fs.FS, dir string) (*Module, error) {
	prefix, err := ParseModuleName(path.Base(dir))
	if err != nil {
		return nil, &InvalidModuleError{Path: dir, Reason: err.Error()}
	}

	metaPath := path.Join(dir, MetadataFile)
	data, err := fs.ReadFile(fsys, metaPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", dir, ErrSvcmodNotFound)
		}
		return nil, fmt.Errorf("failed to read svcmod at %s: %w", metaPath, err)
	}

	meta, err := ParseSvcmodBytes(data, metaPath)
	if err != nil {
		return nil, err
	}
	if meta.Module != prefix {
		return nil, &InvalidModuleError{
			Path:   dir,
			Reason: fmt.Sprintf("module %q does not match directory prefix %q", meta.Module, prefix),
		}
	}

	storage, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("open module storage %s: %w", dir, err)
	}

	return &Module{Metadata: meta, Path: dir, Storage: storage}, nil
}

// emptyFS is the storage of a module that has no files.
type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
