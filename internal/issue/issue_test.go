// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/invowk/svcload/pkg/descriptor"
	"github.com/invowk/svcload/pkg/layer"
	"github.com/invowk/svcload/pkg/registry"
	"github.com/invowk/svcload/pkg/serviceloader"
	"github.com/invowk/svcload/pkg/svcmod"
)

func TestCatalog(t *testing.T) {
	t.Parallel()

	all := Values()
	if len(all) != int(InvalidScopeId) {
		t.Fatalf("catalog has %d entries, want %d", len(all), InvalidScopeId)
	}
	slugs := make(map[string]bool)
	for i, entry := range all {
		if entry.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d, want sorted ids", i, entry.Id())
		}
		if entry.Slug() == "" || slugs[entry.Slug()] {
			t.Errorf("slug %q is empty or duplicated", entry.Slug())
		}
		slugs[entry.Slug()] = true
		if entry.MarkdownMsg() == "" || entry.Title() == entry.Slug() {
			t.Errorf("%s has no guide heading", entry.Slug())
		}
		if found, ok := Lookup(entry.Slug()); !ok || found != entry {
			t.Errorf("Lookup(%q) did not return the entry", entry.Slug())
		}
		if Get(entry.Id()) != entry {
			t.Errorf("Get(%d) did not return the entry", entry.Id())
		}
	}
	if _, ok := Lookup("no-such-guide"); ok {
		t.Error("Lookup() should miss unknown slugs")
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	entry := Get(VersionMismatchId)
	out, err := entry.Render("notty")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "Module version does not satisfy a requirement") {
		t.Errorf("rendered guide lacks its title:\n%s", out)
	}
	if !strings.Contains(out, "See also") {
		t.Errorf("rendered guide lacks external links:\n%s", out)
	}
	links := entry.ExtLinks()
	links[0] = "mutated"
	if entry.ExtLinks()[0] == "mutated" {
		t.Error("ExtLinks() must return a copy")
	}
}

func TestForError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Id
	}{
		{"unresolved", &layer.UnresolvedDependencyError{Name: "a"}, ModuleNotFoundId},
		{"version mismatch", fmt.Errorf("wrapped: %w", &layer.VersionMismatchError{Name: "a", Constraint: "^2", Found: "1.0.0"}), VersionMismatchId},
		{"cycle", &layer.CyclicDependencyError{Cycle: nil}, DependencyCycleId},
		{"invalid module", &svcmod.InvalidModuleError{Path: "x.svcmod", Reason: "bad"}, InvalidModuleId},
		{"malformed", &descriptor.MalformedError{Source: "s", Line: 1}, MalformedDescriptorId},
		{"mixed", &registry.MixedDeclarationsError{Context: "a"}, MixedDeclarationsId},
		{"not a service", &serviceloader.NotAServiceError{}, NotAServiceId},
		{"instantiation", &serviceloader.InstantiationError{Cause: errors.New("x")}, InstantiationFailedId},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ForError(tt.err)
			if !ok || got.Id() != tt.want {
				t.Errorf("ForError() = %v, %v, want id %d", got, ok, tt.want)
			}
		})
	}

	if _, ok := ForError(errors.New("plain")); ok {
		t.Error("plain errors have no guide")
	}
	if _, ok := ForError(nil); ok {
		t.Error("nil has no guide")
	}
}
