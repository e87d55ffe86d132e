package testpkg

import (
	"sort"
	"strings"
)

// CanonicalName returns the dotted path of p under prefix (empty
// prefix means p is a root).
func (p *Package) CanonicalName(prefix string) string {
	if prefix == "" {
		return p.Name
	}
	return prefix + "." + p.Name
}

// CanonicalName returns the dotted path of m under its owning package's
// canonical name.
func (m *Module) CanonicalName(pkgName string) string {
	return pkgName + "." + m.Name
}

// CanonicalName returns the dotted path of ts under its owning module's
// canonical name.
func (ts *TestSet) CanonicalName(moduleName string) string {
	return moduleName + "." + ts.Name
}

// CanonicalName returns the dotted path of t under its owning test
// set's canonical name.
func (t *Test) CanonicalName(testSetName string) string {
	return testSetName + "." + t.Name
}

// sortedPackages returns p.Packages sorted alphabetically by name,
// without mutating p.
func sortedPackages(pkgs []*Package) []*Package {
	out := make([]*Package, len(pkgs))
	copy(out, pkgs)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortedModules(mods []*Module) []*Module {
	out := make([]*Module, len(mods))
	copy(out, mods)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortedTestSets(sets []*TestSet) []*TestSet {
	out := make([]*TestSet, len(sets))
	copy(out, sets)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortedTests(tests []*Test) []*Test {
	out := make([]*Test, len(tests))
	copy(out, tests)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Entry is one node visited during a Walk, identified by its kind and
// canonical dotted name.
type Entry struct {
	Kind     Kind
	Name     string
	Package  *Package
	Module   *Module
	TestSet  *TestSet
	Test     *Test
}

// Kind discriminates the node type of an Entry.
type Kind int

const (
	KindPackage Kind = iota
	KindModule
	KindTestSet
	KindTest
)

// Walk performs a deterministic (alphabetical at every level,
// sub-packages before modules) depth-first traversal of roots, invoking
// visit once per package, module, test set, and test with its canonical
// name. BuildInfo and the loader's registry construction sort on their
// own rather than calling Walk (spec.md §4.2 "Enumeration is
// deterministic (alphabetical) for reproducible diffs"; invariant I4).
func Walk(roots []*Package, visit func(Entry)) {
	for _, root := range sortedPackages(roots) {
		walkPackage(root, "", visit)
	}
}

func walkPackage(p *Package, prefix string, visit func(Entry)) {
	name := p.CanonicalName(prefix)
	visit(Entry{Kind: KindPackage, Name: name, Package: p})

	for _, sub := range sortedPackages(p.Packages) {
		walkPackage(sub, name, visit)
	}
	for _, mod := range sortedModules(p.Modules) {
		walkModule(mod, name, visit)
	}
}

func walkModule(m *Module, pkgName string, visit func(Entry)) {
	name := m.CanonicalName(pkgName)
	visit(Entry{Kind: KindModule, Name: name, Module: m})

	for _, ts := range sortedTestSets(m.TestSets) {
		walkTestSet(ts, name, visit)
	}
}

func walkTestSet(ts *TestSet, moduleName string, visit func(Entry)) {
	name := ts.CanonicalName(moduleName)
	visit(Entry{Kind: KindTestSet, Name: name, TestSet: ts})

	for _, t := range sortedTests(ts.Tests) {
		visit(Entry{Kind: KindTest, Name: t.CanonicalName(name), Test: t, TestSet: ts})
	}
}

// Info is the wire-format recursive tree GET /test_sets returns
// (spec.md §4.2's PackageInfo).
type Info struct {
	Name        string      `json:"name"`
	Subpackages []Info      `json:"subpackages,omitempty"`
	Modules     []ModuleInfo `json:"modules,omitempty"`
}

type ModuleInfo struct {
	Name     string        `json:"name"`
	TestSets []TestSetInfo `json:"test_sets"`
}

type TestSetInfo struct {
	Name  string     `json:"name"`
	Tests []TestInfo `json:"tests"`
}

type TestInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// BuildInfo renders p into the sorted wire-format tree.
func (p *Package) BuildInfo() Info {
	info := Info{Name: p.Name}
	for _, sub := range sortedPackages(p.Packages) {
		info.Subpackages = append(info.Subpackages, sub.BuildInfo())
	}
	for _, mod := range sortedModules(p.Modules) {
		mi := ModuleInfo{Name: mod.Name}
		for _, ts := range sortedTestSets(mod.TestSets) {
			tsi := TestSetInfo{Name: ts.Name}
			for _, t := range sortedTests(ts.Tests) {
				tsi.Tests = append(tsi.Tests, TestInfo{Name: t.Name, Description: t.Description})
			}
			mi.TestSets = append(mi.TestSets, tsi)
		}
		info.Modules = append(info.Modules, mi)
	}
	return info
}

// Equal reports whether p and other describe the same tree, ignoring
// child ordering (invariant I4's round-trip equality).
func (p *Package) Equal(other *Package) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.Name != other.Name {
		return false
	}
	if len(p.Packages) != len(other.Packages) || len(p.Modules) != len(other.Modules) {
		return false
	}

	a, b := sortedPackages(p.Packages), sortedPackages(other.Packages)
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}

	am, bm := sortedModules(p.Modules), sortedModules(other.Modules)
	for i := range am {
		if !am[i].equal(bm[i]) {
			return false
		}
	}
	return true
}

func (m *Module) equal(other *Module) bool {
	if m.Name != other.Name || len(m.TestSets) != len(other.TestSets) {
		return false
	}
	a, b := sortedTestSets(m.TestSets), sortedTestSets(other.TestSets)
	for i := range a {
		if !a[i].equal(b[i]) {
			return false
		}
	}
	return true
}

func (ts *TestSet) equal(other *TestSet) bool {
	if ts.Name != other.Name || len(ts.Tests) != len(other.Tests) {
		return false
	}
	a, b := sortedTests(ts.Tests), sortedTests(other.Tests)
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Description != b[i].Description {
			return false
		}
	}
	return true
}

// SplitCanonicalName splits a dotted canonical name into its segments.
func SplitCanonicalName(name string) []string {
	return strings.Split(name, ".")
}
