// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/invowk/svcload/pkg/descriptor"
	"github.com/invowk/svcload/pkg/layer"
	"github.com/invowk/svcload/pkg/registry"
	"github.com/invowk/svcload/pkg/serviceloader"
	"github.com/invowk/svcload/pkg/svcmod"
)

const (
	ModuleNotFoundId Id = iota + 1
	VersionMismatchId
	DependencyCycleId
	InvalidModuleId
	MalformedDescriptorId
	MixedDeclarationsId
	NotAServiceId
	InstantiationFailedId
	ConfigLoadFailedId
	InvalidScopeId
)

type (
	// Id identifies a catalog entry.
	Id int

	MarkdownMsg string

	HttpLink string

	// Issue is a catalog entry: a Markdown guide for one kind of failure.
	Issue struct {
		id       Id
		slug     string
		mdMsg    MarkdownMsg
		extLinks []HttpLink
	}
)

// Id returns the catalog id.
func (i *Issue) Id() Id { return i.id }

// Slug returns the name used by `svcload explain`.
func (i *Issue) Slug() string { return i.slug }

func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

func (i *Issue) ExtLinks() []HttpLink { return slices.Clone(i.extLinks) }

// Title returns the first heading of the guide.
func (i *Issue) Title() string {
	for line := range strings.Lines(string(i.mdMsg)) {
		if title, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return title
		}
	}
	return i.slug
}

// Render renders the guide with the given glamour style ("dark", "light",
// "notty", "auto" or a JSON style path).
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.extLinks) > 0 {
		var b strings.Builder
		b.WriteString(md)
		b.WriteString("\n\n## See also\n")
		for _, link := range i.extLinks {
			b.WriteString("- <" + string(link) + ">\n")
		}
		md = b.String()
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	moduleNotFoundIssue = &Issue{
		id:   ModuleNotFoundId,
		slug: "module-not-found",
		mdMsg: `
# Required module not found

A module listed as a root, or in another module's ` + "`requires`" + `, could not
be located by any finder or in any parent graph.

## Things you can try:
- Check the spelling of the module name in ` + "`svcmod.cue`" + `
- Make sure the directory ` + "`<name>.svcmod`" + ` exists in one of the ` + "`module_path`" + ` directories
- Run the resolution again with ` + "`--verbose`" + ` to see every directory that was scanned:
~~~
$ svcload resolve --verbose my.module
~~~`,
	}

	versionMismatchIssue = &Issue{
		id:   VersionMismatchId,
		slug: "version-mismatch",
		mdMsg: `
# Module version does not satisfy a requirement

A module was found, but its ` + "`version`" + ` does not match the constraint
declared by the module that requires it. A module without a version never
satisfies a constraint.

## Things you can try:
- Relax the constraint in the requiring module:
~~~cue
requires: [{module: "com.example.store", version: ">=1.2.0, <3.0.0"}]
~~~
- Put a matching release of the module first on the ` + "`module_path`" + `
- Add a ` + "`version`" + ` field to the required module's ` + "`svcmod.cue`",
		extLinks: []HttpLink{"https://github.com/Masterminds/semver#checking-version-constraints"},
	}

	dependencyCycleIssue = &Issue{
		id:   DependencyCycleId,
		slug: "dependency-cycle",
		mdMsg: `
# Cyclic module requirements

The ` + "`requires`" + ` relation between modules must be acyclic. The error
lists the cycle as a path that starts and ends with the same module.

## Things you can try:
- Move the shared service contract into a module that both sides require
- Remove the requirement that closes the loop`,
	}

	invalidModuleIssue = &Issue{
		id:   InvalidModuleId,
		slug: "invalid-module",
		mdMsg: `
# Invalid module artifact

A ` + "`<name>.svcmod`" + ` directory could not be loaded. Either its
` + "`svcmod.cue`" + ` does not match the schema, or the declared module name
differs from the directory name.

## Expected layout:
~~~
com.example.pear.svcmod/
  svcmod.cue
  services/
    javax.script.ScriptEngineFactory
~~~

## Example svcmod.cue:
~~~cue
module:  "com.example.pear"
version: "1.4.0"
requires: [{module: "com.example.fruit", version: "^1.0.0"}]
provides: [{
	service: "javax.script.ScriptEngineFactory"
	with: ["com.example.pear.PearScriptEngineFactory"]
}]
~~~`,
	}

	malformedDescriptorIssue = &Issue{
		id:   MalformedDescriptorId,
		slug: "malformed-descriptor",
		mdMsg: `
# Malformed service descriptor

A file under ` + "`services/`" + ` must be UTF-8 and list one provider type name
per line. ` + "`#`" + ` starts a comment; blank lines are ignored. A line may not
hold more than one name.

## Things you can try:
- Fix the line reported in the error
- Lint every descriptor before shipping:
~~~
$ svcload validate ./build/classes
~~~`,
	}

	mixedDeclarationsIssue = &Issue{
		id:   MixedDeclarationsId,
		slug: "mixed-declarations",
		mdMsg: `
# Providers declared twice

A named module lists providers for a contract in ` + "`svcmod.cue`" + ` and
also ships a ` + "`services/`" + ` descriptor for the same contract.

## Things you can try:
- Keep the ` + "`provides`" + ` entry and delete the descriptor file
- Or accept both sources, module entries first:
~~~cue
mixed_declarations: "append"
~~~`,
	}

	notAServiceIssue = &Issue{
		id:   NotAServiceId,
		slug: "not-a-service",
		mdMsg: `
# Provider does not implement the service

A declared provider was constructed, but the value does not satisfy the Go
type bound to the contract. Other providers stay usable.

## Things you can try:
- Check that the type registered for the provider name implements the service interface
- Remove the stale name from the declaration`,
	}

	instantiationFailedIssue = &Issue{
		id:   InstantiationFailedId,
		slug: "instantiation-failed",
		mdMsg: `
# Provider could not be instantiated

The constructor of a provider returned an error, returned nil or panicked.
No constructor is registered for a declared name either.

## Things you can try:
- Register the implementation in the type table before loading
- Inspect the cause printed with ` + "`--verbose`",
	}

	configLoadFailedIssue = &Issue{
		id:   ConfigLoadFailedId,
		slug: "config-load-failed",
		mdMsg: `
# Failed to load configuration

The configuration file is not valid CUE or does not match the schema.

## Things you can try:
- Print the effective configuration:
~~~
$ svcload config show
~~~
- Regenerate a default file:
~~~
$ svcload config init
~~~`,
	}

	invalidScopeIssue = &Issue{
		id:   InvalidScopeId,
		slug: "invalid-scope",
		mdMsg: `
# Invalid scope

A scope name is unknown, or a configured scope expression does not compile
to a boolean. Expressions see ` + "`name`, `named`, `version`, `graph`" + ` and ` + "`boot`" + `.

## Example:
~~~cue
scopes: {
	example: "named && name startsWith \"com.example.\""
}
~~~`,
		extLinks: []HttpLink{"https://expr-lang.org/docs/language-definition"},
	}

	issues = map[Id]*Issue{
		moduleNotFoundIssue.Id():      moduleNotFoundIssue,
		versionMismatchIssue.Id():     versionMismatchIssue,
		dependencyCycleIssue.Id():     dependencyCycleIssue,
		invalidModuleIssue.Id():       invalidModuleIssue,
		malformedDescriptorIssue.Id(): malformedDescriptorIssue,
		mixedDeclarationsIssue.Id():   mixedDeclarationsIssue,
		notAServiceIssue.Id():         notAServiceIssue,
		instantiationFailedIssue.Id(): instantiationFailedIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		invalidScopeIssue.Id():        invalidScopeIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int { return int(a.id - b.id) })
}

// Get returns the entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}

// Lookup finds an entry by slug.
func Lookup(slug string) (*Issue, bool) {
	for _, i := range issues {
		if i.slug == slug {
			return i, true
		}
	}
	return nil, false
}

// ForError maps an error to the catalog entry that explains it.
func ForError(err error) (*Issue, bool) {
	var id Id
	switch {
	case err == nil:
		return nil, false
	case errors.As(err, new(*layer.VersionMismatchError)):
		id = VersionMismatchId
	case errors.Is(err, layer.ErrUnresolvedDependency):
		id = ModuleNotFoundId
	case errors.Is(err, layer.ErrCyclicDependency):
		id = DependencyCycleId
	case errors.Is(err, svcmod.ErrInvalidModule):
		id = InvalidModuleId
	case errors.Is(err, descriptor.ErrMalformed):
		id = MalformedDescriptorId
	case errors.Is(err, registry.ErrMixedDeclarations):
		id = MixedDeclarationsId
	case errors.Is(err, serviceloader.ErrNotAService):
		id = NotAServiceId
	case errors.Is(err, serviceloader.ErrInstantiation):
		id = InstantiationFailedId
	default:
		return nil, false
	}
	return issues[id], true
}
