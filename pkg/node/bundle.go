package node

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/secchiware/secchiware/pkg/testpkg"
)

// ErrPackageNotFound is returned by Node.Remove for an unknown root
// package name (404 at the HTTP layer).
type ErrPackageNotFound struct{ Name string }

func (e *ErrPackageNotFound) Error() string {
	return fmt.Sprintf("node: package %q not installed", e.Name)
}

func errPackageNotFound(name string) error {
	return &ErrPackageNotFound{Name: name}
}

func unpackBundle(testRoot string, bundle []byte) error {
	if err := os.MkdirAll(testRoot, 0o755); err != nil {
		return fmt.Errorf("node: create test root: %w", err)
	}
	return testpkg.Unpack(testRoot, bytes.NewReader(bundle))
}

func removePackageDir(testRoot, packageName string) error {
	return os.RemoveAll(filepath.Join(testRoot, packageName))
}
