package loader

import (
	"fmt"
	"sort"
)

// Selector is the four optional comma-separated-in-the-wire lists of
// spec.md §4.2: packages, modules, test_sets, tests. Union semantics —
// the tests to run are every test matched by any list. An empty
// Selector means "all installed tests."
type Selector struct {
	Packages []string
	Modules  []string
	TestSets []string
	Tests    []string
}

// Empty reports whether no selector list was supplied.
func (s Selector) Empty() bool {
	return len(s.Packages) == 0 && len(s.Modules) == 0 && len(s.TestSets) == 0 && len(s.Tests) == 0
}

// ErrUnknownName is returned by Select when a selector names a
// canonical path that isn't installed. Callers map this to 404 with
// no partial execution.
type ErrUnknownName struct {
	Name string
}

func (e *ErrUnknownName) Error() string {
	return fmt.Sprintf("loader: unknown canonical name %q", e.Name)
}

// Select resolves sel against the currently installed forest, returning
// the canonical test names to run in deterministic order. An unknown
// name in any list fails the whole request before anything is matched.
func (r *Registry) Select(sel Selector) ([]string, error) {
	snap := r.current.Load()

	if sel.Empty() {
		out := make([]string, len(snap.testOrder))
		copy(out, snap.testOrder)
		return out, nil
	}

	for _, name := range sel.Packages {
		if !snap.packages[name] {
			return nil, &ErrUnknownName{Name: name}
		}
	}
	for _, name := range sel.Modules {
		if !snap.modules[name] {
			return nil, &ErrUnknownName{Name: name}
		}
	}
	for _, name := range sel.TestSets {
		if !snap.testSets[name] {
			return nil, &ErrUnknownName{Name: name}
		}
	}
	for _, name := range sel.Tests {
		if !snap.tests[name] {
			return nil, &ErrUnknownName{Name: name}
		}
	}

	selected := make(map[string]bool)
	for testName, anc := range snap.ancestry {
		if containsAny(sel.Packages, anc.packages) ||
			contains(sel.Modules, anc.module) ||
			contains(sel.TestSets, anc.testSet) {
			selected[testName] = true
		}
	}
	for _, name := range sel.Tests {
		selected[name] = true
	}

	out := make([]string, 0, len(selected))
	for name := range selected {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func containsAny(list, values []string) bool {
	for _, v := range values {
		if contains(list, v) {
			return true
		}
	}
	return false
}
