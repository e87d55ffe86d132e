package node

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/secchiware/secchiware/pkg/testpkg"
	"gopkg.in/yaml.v3"
)

// manifestFile is the declarative bundle descriptor a test package
// ships as "tests.yaml" at its root — the concrete form of spec.md §9's
// option (b) ("a declarative test DSL interpreted at runtime") for
// dynamic test loading without a systems-language import machinery.
// Each leaf test names a "symbol": a key into the Node's compiled-in
// TestFunc registry (pkg/node/testsuite) rather than code shipped in
// the bundle itself.
type manifestFile struct {
	Name     string            `yaml:"name"`
	Packages []manifestPackage `yaml:"packages,omitempty"`
	Modules  []manifestModule  `yaml:"modules,omitempty"`
}

type manifestPackage = manifestFile

type manifestModule struct {
	Name     string            `yaml:"name"`
	TestSets []manifestTestSet `yaml:"test_sets"`
}

type manifestTestSet struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Setup       string         `yaml:"setup,omitempty"`
	Teardown    string         `yaml:"teardown,omitempty"`
	Tests       []manifestTest `yaml:"tests"`
}

type manifestTest struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Symbol      string `yaml:"symbol"`
}

// bundleSymbols maps a canonical name to the registry symbol that
// resolves it: tests map to a TestFunc symbol, test sets optionally map
// to setup/teardown symbols.
type bundleSymbols struct {
	tests     map[string]string
	setups    map[string]string
	teardowns map[string]string
}

// loadPackageTree reads "tests.yaml" out of each top-level directory of
// root and parses it into a *testpkg.Package plus its bundleSymbols.
func loadPackageTree(root string) ([]*testpkg.Package, bundleSymbols, error) {
	syms := bundleSymbols{
		tests:     map[string]string{},
		setups:    map[string]string{},
		teardowns: map[string]string{},
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, syms, nil
		}
		return nil, syms, fmt.Errorf("node: read test root: %w", err)
	}

	var packages []*testpkg.Package
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifestPath := filepath.Join(root, entry.Name(), "tests.yaml")
		data, err := os.ReadFile(manifestPath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, syms, fmt.Errorf("node: read %s: %w", manifestPath, err)
		}

		var mf manifestFile
		if err := yaml.Unmarshal(data, &mf); err != nil {
			return nil, syms, fmt.Errorf("node: parse %s: %w", manifestPath, err)
		}
		if mf.Name == "" {
			mf.Name = entry.Name()
		}

		pkg, err := buildPackage(mf, nil, &syms)
		if err != nil {
			return nil, syms, err
		}
		packages = append(packages, pkg)
	}

	return packages, syms, nil
}

func buildPackage(mf manifestFile, parents []string, syms *bundleSymbols) (*testpkg.Package, error) {
	pkg := &testpkg.Package{Name: mf.Name}
	chain := append(append([]string(nil), parents...), mf.Name)

	for _, sub := range mf.Packages {
		child, err := buildPackage(sub, chain, syms)
		if err != nil {
			return nil, err
		}
		pkg.Packages = append(pkg.Packages, child)
	}

	for _, mm := range mf.Modules {
		mod := &testpkg.Module{Name: mm.Name}
		modName := joinName(chain) + "." + mm.Name

		for _, mts := range mm.TestSets {
			ts := &testpkg.TestSet{Name: mts.Name, Description: mts.Description}
			tsName := modName + "." + mts.Name

			if mts.Setup != "" {
				syms.setups[tsName] = mts.Setup
			}
			if mts.Teardown != "" {
				syms.teardowns[tsName] = mts.Teardown
			}

			for _, mt := range mts.Tests {
				ts.Tests = append(ts.Tests, &testpkg.Test{Name: mt.Name, Description: mt.Description})
				testName := tsName + "." + mt.Name
				syms.tests[testName] = mt.Symbol
			}
			mod.TestSets = append(mod.TestSets, ts)
		}
		pkg.Modules = append(pkg.Modules, mod)
	}

	return pkg, nil
}

func joinName(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}
