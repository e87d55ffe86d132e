// Package node implements the Node service of spec.md §4.3: the local
// HTTP server inside the analysis environment that registers with C2
// at startup, serves test listing/upload/delete/execution, and
// authenticates C2-signed requests.
package node

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/secchiware/secchiware/internal/logger"
	"github.com/secchiware/secchiware/pkg/health"
	"github.com/secchiware/secchiware/pkg/loader"
	"github.com/secchiware/secchiware/pkg/signing"
	"github.com/secchiware/secchiware/pkg/testpkg"
)

// Node holds the in-process state of one Node server: its test
// registry, the root directory test bundles are unpacked under, and
// the verifier used to authenticate C2-signed requests.
type Node struct {
	Registry *loader.Registry
	Verifier *signing.Verifier
	Logger   logger.Logger
	Health   *health.Checker

	TestRoot string

	// registryMu serializes registry mutation (upload/delete/reload)
	// distinct from execMu, matching spec.md §5's requirement that
	// listing/upload/delete may interleave with each other but never
	// with an in-flight execution's registry read.
	registryMu sync.Mutex
	execMu     sync.Mutex
}

// New creates a Node bound to testRoot, loading whatever test bundles
// are already unpacked there.
func New(testRoot string, verifier *signing.Verifier, log logger.Logger) (*Node, error) {
	checker := health.NewChecker()
	checker.Register("test_root", func(ctx context.Context) error {
		_, err := os.Stat(testRoot)
		return err
	})

	n := &Node{
		Registry: loader.NewRegistry(),
		Verifier: verifier,
		Logger:   log,
		Health:   checker,
		TestRoot: testRoot,
	}
	if err := reloadFromRoot(n.Registry, testRoot); err != nil {
		return nil, fmt.Errorf("node: initial load: %w", err)
	}
	return n, nil
}

// Info returns the installed package tree.
func (n *Node) Info() []testpkg.Info {
	return n.Registry.Info()
}

// Install merge-installs a bundle into TestRoot and reloads the
// registry from the resulting tree. If the reload fails, the unpacked
// files stay on disk (same-named packages already replaced), while the
// in-memory registry keeps its previous snapshot (Reload is itself
// atomic).
func (n *Node) Install(ctx context.Context, bundle []byte) error {
	n.registryMu.Lock()
	defer n.registryMu.Unlock()

	if err := unpackBundle(n.TestRoot, bundle); err != nil {
		return err
	}
	return reloadFromRoot(n.Registry, n.TestRoot)
}

// Remove deletes a root package directory and reloads.
func (n *Node) Remove(ctx context.Context, packageName string) error {
	n.registryMu.Lock()
	defer n.registryMu.Unlock()

	if !n.Registry.HasRootPackage(packageName) {
		return errPackageNotFound(packageName)
	}
	if err := removePackageDir(n.TestRoot, packageName); err != nil {
		return err
	}
	return reloadFromRoot(n.Registry, n.TestRoot)
}

// Execute resolves sel against the registry and runs the matched tests
// sequentially, serialized against concurrent installs/removes and
// other executions. registryMu is held across both the selector
// resolution and the run itself so an Install/Remove can't swap the
// snapshot out from under a name Select already resolved.
func (n *Node) Execute(ctx context.Context, sel loader.Selector) ([]testpkg.Report, error) {
	n.registryMu.Lock()
	defer n.registryMu.Unlock()

	names, err := n.Registry.Select(sel)
	if err != nil {
		return nil, err
	}

	n.execMu.Lock()
	defer n.execMu.Unlock()

	return n.Registry.Run(ctx, names), nil
}
