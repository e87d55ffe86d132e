package node

import (
	"fmt"

	"github.com/secchiware/secchiware/pkg/loader"
	"github.com/secchiware/secchiware/pkg/node/testsuite"
)

// resolveManifest binds bundleSymbols against the compiled-in testsuite
// registry, failing closed on any symbol the registry doesn't provide
// (a bundle referencing an unknown symbol must not silently no-op).
func resolveManifest(syms bundleSymbols) (loader.Manifest, error) {
	manifest := loader.Manifest{
		Tests:     map[string]loader.TestFunc{},
		Setups:    map[string]loader.SetupFunc{},
		Teardowns: map[string]loader.TeardownFunc{},
	}

	for testName, symbol := range syms.tests {
		fn, ok := testsuite.Test(symbol)
		if !ok {
			return loader.Manifest{}, fmt.Errorf("node: test %s references unknown symbol %q", testName, symbol)
		}
		manifest.Tests[testName] = fn
	}
	for tsName, symbol := range syms.setups {
		fn, ok := testsuite.Setup(symbol)
		if !ok {
			return loader.Manifest{}, fmt.Errorf("node: test set %s setup references unknown symbol %q", tsName, symbol)
		}
		manifest.Setups[tsName] = fn
	}
	for tsName, symbol := range syms.teardowns {
		fn, ok := testsuite.Teardown(symbol)
		if !ok {
			return loader.Manifest{}, fmt.Errorf("node: test set %s teardown references unknown symbol %q", tsName, symbol)
		}
		manifest.Teardowns[tsName] = fn
	}

	return manifest, nil
}

// reloadFromRoot re-derives the full package tree from testRoot on disk
// and atomically installs it into registry.
func reloadFromRoot(registry *loader.Registry, testRoot string) error {
	packages, syms, err := loadPackageTree(testRoot)
	if err != nil {
		return err
	}
	manifest, err := resolveManifest(syms)
	if err != nil {
		return err
	}
	return loader.Reload(registry, packages, manifest)
}
