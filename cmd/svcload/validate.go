// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/invowk/svcload/internal/bootstrap"
	"github.com/invowk/svcload/pkg/descriptor"
	"github.com/invowk/svcload/pkg/registry"
	"github.com/invowk/svcload/pkg/svcmod"
	"github.com/invowk/svcload/pkg/types"
)

type (
	// validation accumulates lint results so every problem is reported in one pass.
	validation struct {
		w        io.Writer
		policy   registry.MixPolicy
		checked  int
		problems int
	}
)

func newValidateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [paths...]",
		Short: "Lint modules and provider descriptor files",
		Long: `Lint modules and provider descriptor files, reporting every problem with
its location.

A path may be a descriptor file, a <name>.svcmod module directory, or a
directory holding modules and/or a services/ directory. Without paths the
configured module_path and classpath are checked.`,
		Example: `  svcload validate
  svcload validate ./modules ./lib/services/org.example.Codec`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(app, args)
		},
	}
}

func runValidate(app *App, args []string) error {
	v := &validation{w: app.stdout, policy: registry.MixReject}
	if app.cfg != nil {
		v.policy = app.cfg.MixedDeclarations
	}

	paths := args
	if len(paths) == 0 {
		cfg, err := app.config()
		if err != nil {
			return err
		}
		paths = bootstrap.ModuleDirs(cfg)
		roots, err := bootstrap.ClasspathRoots(cfg)
		if err != nil {
			return err
		}
		for _, r := range roots {
			paths = append(paths, r.Name)
		}
		if len(paths) == 0 {
			fmt.Fprintln(app.stdout, SubtitleStyle.Render("Nothing to validate: module_path and classpath are empty"))
			return nil
		}
	}

	for _, p := range paths {
		v.path(p)
	}

	fmt.Fprintln(app.stdout)
	if v.problems > 0 {
		fmt.Fprintf(app.stdout, "%s %d checked, %d problem(s)\n", errorIcon, v.checked, v.problems)
		return &ExitError{Code: types.ExitMalformed}
	}
	fmt.Fprintf(app.stdout, "%s %d checked, no problems\n", successIcon, v.checked)
	return nil
}

func (v *validation) ok(what string) {
	v.checked++
	fmt.Fprintf(v.w, "%s %s\n", successIcon, what)
}

func (v *validation) fail(err error) {
	v.checked++
	v.problems++
	fmt.Fprintf(v.w, "%s %s\n", errorIcon, err)
}

func (v *validation) path(p string) {
	info, err := os.Stat(p)
	if err != nil {
		v.fail(err)
		return
	}
	if !info.IsDir() {
		v.descriptorFile(os.DirFS(filepath.Dir(p)), filepath.Base(p), p)
		return
	}
	if svcmod.IsModuleDir(filepath.Base(p)) {
		v.module(os.DirFS(filepath.Dir(p)), filepath.Base(p), p)
		return
	}

	fsys := os.DirFS(p)
	modules, err := doublestar.Glob(fsys, "*"+svcmod.ModuleSuffix, doublestar.WithFailOnIOErrors())
	if err != nil {
		v.fail(err)
		return
	}
	for _, m := range modules {
		if fi, err := fs.Stat(fsys, m); err == nil && fi.IsDir() {
			v.module(fsys, m, filepath.Join(p, m))
		}
	}
	v.descriptors(fsys, p)
}

func (v *validation) module(fsys fs.FS, dir, where string) {
	mod, err := svcmod.Load(fsys, dir)
	if err != nil {
		v.fail(fmt.Errorf("%s: %w", where, err))
		return
	}
	v.ok(fmt.Sprintf("%s (module %s)", where, mod.Name()))

	for _, contract := range v.descriptors(mod.Storage, where) {
		names, _ := mod.Provides(contract)
		if len(names) > 0 && v.policy == registry.MixReject {
			v.fail(&registry.MixedDeclarationsError{
				Context:    mod.Name(),
				Contract:   contract,
				Descriptor: filepath.Join(where, filepath.FromSlash(descriptor.Path(contract))),
			})
		}
	}
}

// descriptors lints services/* under fsys and returns the contracts with at
// least one declared provider.
func (v *validation) descriptors(fsys fs.FS, where string) []types.QualifiedName {
	files, err := doublestar.Glob(fsys, path.Join(descriptor.Dir, "*"), doublestar.WithFilesOnly())
	if err != nil {
		v.fail(fmt.Errorf("%s: %w", where, err))
		return nil
	}
	var declared []types.QualifiedName
	for _, f := range files {
		contract, n := v.descriptorFile(fsys, f, filepath.Join(where, filepath.FromSlash(f)))
		if n > 0 {
			declared = append(declared, contract)
		}
	}
	return declared
}

// descriptorFile lints one descriptor and returns its contract and entry count.
func (v *validation) descriptorFile(fsys fs.FS, name, where string) (types.QualifiedName, int) {
	contract := types.QualifiedName(path.Base(name))
	if err := contract.Validate(); err != nil {
		v.fail(fmt.Errorf("%s: file name is not a contract name: %w", where, err))
		return contract, 0
	}

	f, err := fsys.Open(name)
	if err != nil {
		v.fail(err)
		return contract, 0
	}
	defer f.Close()

	names, err := descriptor.Parse(f, where)
	if err != nil {
		var malformed *descriptor.MalformedError
		if !errors.As(err, &malformed) {
			err = fmt.Errorf("%s: %w", where, err)
		}
		v.fail(err)
		return contract, 0
	}
	v.ok(fmt.Sprintf("%s (%d provider(s))", where, len(names)))
	return contract, len(names)
}
