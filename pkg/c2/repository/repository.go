// Package repository manages the C2's master test-package repository:
// the on-disk tree of root packages Clients upload, from which
// PATCH /environments/{ip}/{port}/installed replicates named packages
// to a Node. The C2 never executes these tests; it only stores,
// enumerates, and tars them (spec.md §4.4).
package repository

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/secchiware/secchiware/pkg/testpkg"
	"gopkg.in/yaml.v3"
)

// Repository is a view over Root whose reads and writes are all
// serialized by one mutex: a
// directory whose top-level subdirectories are root test packages,
// each optionally describing its structure in a "tests.yaml" manifest.
type Repository struct {
	Root string
	mu   sync.Mutex
}

// New creates a Repository rooted at root, creating the directory if
// it doesn't exist.
func New(root string) (*Repository, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("repository: create root: %w", err)
	}
	return &Repository{Root: root}, nil
}

// Info returns the repository's package tree for GET /test_sets.
func (r *Repository) Info() ([]testpkg.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	packages, err := r.tree()
	if err != nil {
		return nil, err
	}
	out := make([]testpkg.Info, len(packages))
	for i, p := range packages {
		out[i] = p.BuildInfo()
	}
	return out, nil
}

// isValidPackageName reports whether name is safe to join onto Root:
// a single path segment, not "." or "..", and not absolute. Rejects
// anything a Client could use to escape the repository root via
// package names taken from request path/body (DELETE /test_sets/{name},
// PATCH /environments/{ip}/{port}/installed's body).
func isValidPackageName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name
}

// HasPackage reports whether name is a top-level package directory.
func (r *Repository) HasPackage(name string) bool {
	if !isValidPackageName(name) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	info, err := os.Stat(filepath.Join(r.Root, name))
	return err == nil && info.IsDir()
}

// Install merge-installs a tar.gz bundle: packages it contains replace
// any existing directory of the same name; others are untouched.
func (r *Repository) Install(bundle []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return unpackBundle(r.Root, bundle)
}

// Remove deletes a top-level package directory. It is the caller's
// responsibility to have already confirmed HasPackage.
func (r *Repository) Remove(name string) error {
	if !isValidPackageName(name) {
		return fmt.Errorf("repository: invalid package name %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return os.RemoveAll(filepath.Join(r.Root, name))
}

// Pack tars and gzips the named root packages for replication. Returns
// an error naming the first package that isn't present.
func (r *Repository) Pack(names []string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		if !isValidPackageName(name) {
			return nil, fmt.Errorf("repository: invalid package name %q", name)
		}
		if info, err := os.Stat(filepath.Join(r.Root, name)); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("repository: package %q not found", name)
		}
	}

	reader, err := testpkg.Pack(r.Root, names)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(reader)
}

func unpackBundle(root string, bundle []byte) error {
	return testpkg.Unpack(root, bytes.NewReader(bundle))
}

func (r *Repository) tree() ([]*testpkg.Package, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		return nil, fmt.Errorf("repository: read root: %w", err)
	}

	var packages []*testpkg.Package
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pkg, err := readPackageManifest(filepath.Join(r.Root, entry.Name()), entry.Name())
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, nil
}

// manifest mirrors the declarative shape a package directory may carry
// in its own "tests.yaml", scoped here to the names Info enumerates
// (the repository doesn't resolve or run tests, so setup/teardown/
// symbol fields are irrelevant to it).
type manifest struct {
	Name     string     `yaml:"name"`
	Packages []manifest `yaml:"packages,omitempty"`
	Modules  []struct {
		Name     string `yaml:"name"`
		TestSets []struct {
			Name  string `yaml:"name"`
			Tests []struct {
				Name string `yaml:"name"`
			} `yaml:"tests"`
		} `yaml:"test_sets"`
	} `yaml:"modules,omitempty"`
}

func readPackageManifest(dir, fallbackName string) (*testpkg.Package, error) {
	data, err := os.ReadFile(filepath.Join(dir, "tests.yaml"))
	if os.IsNotExist(err) {
		return &testpkg.Package{Name: fallbackName}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: read manifest for %s: %w", fallbackName, err)
	}

	var mf manifest
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("repository: parse manifest for %s: %w", fallbackName, err)
	}
	if mf.Name == "" {
		mf.Name = fallbackName
	}
	return buildFromManifest(mf), nil
}

func buildFromManifest(mf manifest) *testpkg.Package {
	pkg := &testpkg.Package{Name: mf.Name}
	for _, sub := range mf.Packages {
		pkg.Packages = append(pkg.Packages, buildFromManifest(sub))
	}
	for _, mm := range mf.Modules {
		mod := &testpkg.Module{Name: mm.Name}
		for _, mts := range mm.TestSets {
			ts := &testpkg.TestSet{Name: mts.Name}
			for _, mt := range mts.Tests {
				ts.Tests = append(ts.Tests, &testpkg.Test{Name: mt.Name})
			}
			mod.TestSets = append(mod.TestSets, ts)
		}
		pkg.Modules = append(pkg.Modules, mod)
	}
	return pkg
}
