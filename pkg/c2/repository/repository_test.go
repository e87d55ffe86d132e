package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, yaml string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tests.yaml"), []byte(yaml), 0o644))
}

func TestInfoReflectsManifests(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "p1"), "p1", `
name: p1
modules:
  - name: m
    test_sets:
      - name: S
        tests:
          - name: a
          - name: b
`)

	repo, err := New(root)
	require.NoError(t, err)

	info, err := repo.Info()
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.Equal(t, "p1", info[0].Name)
}

func TestPackAndInstallRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeManifest(t, filepath.Join(src, "p1"), "p1", "name: p1\n")
	require.NoError(t, os.WriteFile(filepath.Join(src, "p1", "probe.txt"), []byte("x"), 0o644))

	srcRepo, err := New(src)
	require.NoError(t, err)

	bundle, err := srcRepo.Pack([]string{"p1"})
	require.NoError(t, err)

	dst := t.TempDir()
	dstRepo, err := New(dst)
	require.NoError(t, err)

	require.NoError(t, dstRepo.Install(bundle))
	assert.True(t, dstRepo.HasPackage("p1"))

	data, err := os.ReadFile(filepath.Join(dst, "p1", "probe.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestPackUnknownPackageFails(t *testing.T) {
	root := t.TempDir()
	repo, err := New(root)
	require.NoError(t, err)

	_, err = repo.Pack([]string{"missing"})
	assert.Error(t, err)
}

func TestRemoveDeletesPackageDirectory(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "p1"), "p1", "name: p1\n")

	repo, err := New(root)
	require.NoError(t, err)
	require.True(t, repo.HasPackage("p1"))

	require.NoError(t, repo.Remove("p1"))
	assert.False(t, repo.HasPackage("p1"))
}

func TestPackageNameRejectsPathTraversal(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "p1"), "p1", "name: p1\n")

	repo, err := New(root)
	require.NoError(t, err)

	assert.False(t, repo.HasPackage(".."))
	assert.False(t, repo.HasPackage("../p1"))
	assert.False(t, repo.HasPackage("a/b"))

	assert.Error(t, repo.Remove(".."))
	_, err = repo.Pack([]string{"../p1"})
	assert.Error(t, err)

	assert.True(t, repo.HasPackage("p1"), "a legitimate sibling package must remain unaffected")
}
