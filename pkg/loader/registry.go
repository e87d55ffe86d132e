// Package loader holds the Node's in-process test registry: an
// atomically-swapped snapshot of the installed test-package forest
// plus the executable Go closures bound to each canonical test name,
// and the selective-execution logic of spec.md §4.2.
package loader

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/secchiware/secchiware/pkg/testpkg"
)

// TestFunc is the executable body of one Test, registered by canonical
// name at bundle-load time. This is the Go-idiomatic answer to the
// "dynamic loading" design note: tests are closures resolved from a
// declarative manifest shipped inside the bundle, not loaded via a
// dynamic language's import machinery or OS-specific plugin binaries.
type TestFunc func(ctx Context) Outcome

// SetupFunc and TeardownFunc bracket a TestSet's tests within one run.
type SetupFunc func(ctx Context) error
type TeardownFunc func(ctx Context) error

// Outcome is a test's raw result, turned into a testpkg.Report by Run.
type Outcome struct {
	ResultCode     int
	AdditionalInfo map[string]interface{}
}

// Context is the minimal environment handed to a TestFunc/Setup/Teardown.
// It is a thin alias kept distinct from context.Context so that test
// bodies written against this package don't need a net/context import
// merely to be registered; Run always derives it from a real
// context.Context at call time.
type Context struct {
	Done <-chan struct{}
}

// Manifest is the declarative bundle descriptor (tests.yaml) mapping
// canonical test-set names to their setup/teardown hooks, and
// canonical test names to their registered closures. A concrete bundle
// loader (outside this package) parses tests.yaml and resolves its
// symbol names against a compiled-in closure table, then calls Reload.
type Manifest struct {
	Tests     map[string]TestFunc
	Setups    map[string]SetupFunc
	Teardowns map[string]TeardownFunc
}

type ancestry struct {
	packages []string // every ancestor package canonical name, root to leaf
	module   string
	testSet  string
}

type registrySnapshot struct {
	roots     []*testpkg.Package
	manifest  Manifest
	packages  map[string]bool
	modules   map[string]bool
	testSets  map[string]bool
	tests     map[string]bool
	ancestry  map[string]ancestry // test canonical name -> ancestry
	testOrder []string            // every test canonical name, sorted
}

// Registry is an atomically-swapped, immutable view of the installed
// test forest. Readers never block writers and vice versa; a failed
// Reload leaves the previously active snapshot untouched.
type Registry struct {
	current atomic.Pointer[registrySnapshot]
}

// NewRegistry returns an empty registry (no packages installed).
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(&registrySnapshot{
		packages: map[string]bool{},
		modules:  map[string]bool{},
		testSets: map[string]bool{},
		tests:    map[string]bool{},
		ancestry: map[string]ancestry{},
	})
	return r
}

// Reload validates and atomically installs a new forest + manifest.
// Validation fails if the manifest is missing a TestFunc for any test
// the forest declares, or declares a TestFunc for a name the forest
// doesn't have — in both cases the previous snapshot is left in place.
func Reload(r *Registry, roots []*testpkg.Package, manifest Manifest) error {
	snap, err := buildSnapshot(roots, manifest)
	if err != nil {
		return err
	}
	r.current.Store(snap)
	return nil
}

func buildSnapshot(roots []*testpkg.Package, manifest Manifest) (*registrySnapshot, error) {
	snap := &registrySnapshot{
		roots:    roots,
		manifest: manifest,
		packages: map[string]bool{},
		modules:  map[string]bool{},
		testSets: map[string]bool{},
		tests:    map[string]bool{},
		ancestry: map[string]ancestry{},
	}

	for _, root := range roots {
		if err := walkPackage(root, nil, snap); err != nil {
			return nil, err
		}
	}

	for name := range snap.tests {
		if _, ok := manifest.Tests[name]; !ok {
			return nil, fmt.Errorf("loader: no TestFunc registered for %s", name)
		}
	}
	for name := range manifest.Tests {
		if !snap.tests[name] {
			return nil, fmt.Errorf("loader: TestFunc registered for unknown test %s", name)
		}
	}

	snap.testOrder = make([]string, 0, len(snap.tests))
	for name := range snap.tests {
		snap.testOrder = append(snap.testOrder, name)
	}
	sort.Strings(snap.testOrder)

	return snap, nil
}

func walkPackage(p *testpkg.Package, parents []string, snap *registrySnapshot) error {
	name := p.Name
	if len(parents) > 0 {
		name = parents[len(parents)-1] + "." + p.Name
	}
	if snap.packages[name] {
		return fmt.Errorf("loader: duplicate package name %s", name)
	}
	snap.packages[name] = true

	chain := append(append([]string(nil), parents...), name)
	for _, sub := range p.Packages {
		if err := walkPackage(sub, chain, snap); err != nil {
			return err
		}
	}
	for _, mod := range p.Modules {
		if err := walkModule(mod, name, chain, snap); err != nil {
			return err
		}
	}
	return nil
}

func walkModule(m *testpkg.Module, pkgName string, pkgChain []string, snap *registrySnapshot) error {
	modName := pkgName + "." + m.Name
	if snap.modules[modName] {
		return fmt.Errorf("loader: duplicate module name %s", modName)
	}
	snap.modules[modName] = true

	for _, ts := range m.TestSets {
		tsName := modName + "." + ts.Name
		if snap.testSets[tsName] {
			return fmt.Errorf("loader: duplicate test set name %s", tsName)
		}
		snap.testSets[tsName] = true

		for _, t := range ts.Tests {
			testName := tsName + "." + t.Name
			if snap.tests[testName] {
				return fmt.Errorf("loader: duplicate test name %s", testName)
			}
			snap.tests[testName] = true
			snap.ancestry[testName] = ancestry{
				packages: pkgChain,
				module:   modName,
				testSet:  tsName,
			}
		}
	}
	return nil
}

// Info renders the currently installed forest as the sorted wire tree
// GET /test_sets returns.
func (r *Registry) Info() []testpkg.Info {
	snap := r.current.Load()
	roots := append([]*testpkg.Package(nil), snap.roots...)
	sort.Slice(roots, func(i, j int) bool { return roots[i].Name < roots[j].Name })
	out := make([]testpkg.Info, 0, len(roots))
	for _, root := range roots {
		out = append(out, root.BuildInfo())
	}
	return out
}

// HasPackage reports whether name is installed anywhere in the forest,
// at any depth (e.g. "p1" or the nested "p1.sub").
func (r *Registry) HasPackage(name string) bool {
	return r.current.Load().packages[name]
}

// HasRootPackage reports whether name is one of the top-level root
// packages unpacked directly under TestRoot, used by
// DELETE /test_sets/{package} (404 if absent): that endpoint removes a
// root package's directory and everything beneath it, so it must not
// accept a nested package's dotted canonical name (there is no
// corresponding directory to remove for those).
func (r *Registry) HasRootPackage(name string) bool {
	for _, root := range r.current.Load().roots {
		if root.Name == name {
			return true
		}
	}
	return false
}
