package testpkg

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestTree(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "p1", "m"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "p1", "m", "tests.yaml"), []byte("name: m\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "p2"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "p2", "marker.txt"), []byte("p2"), 0o644))
}

func TestPackUnpackRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeTestTree(t, src)

	archive, err := Pack(src, []string{"p1"})
	require.NoError(t, err)

	dst := t.TempDir()
	require.NoError(t, Unpack(dst, archive))

	data, err := os.ReadFile(filepath.Join(dst, "p1", "m", "tests.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "name: m\n", string(data))
}

func TestUnpackReplacesOnlyNamedPackages(t *testing.T) {
	dst := t.TempDir()
	writeTestTree(t, dst)
	require.NoError(t, os.WriteFile(filepath.Join(dst, "p1", "stale.txt"), []byte("old"), 0o644))

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "p1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "p1", "fresh.txt"), []byte("new"), 0o644))

	archive, err := Pack(src, []string{"p1"})
	require.NoError(t, err)
	require.NoError(t, Unpack(dst, archive))

	_, err = os.Stat(filepath.Join(dst, "p1", "stale.txt"))
	assert.True(t, os.IsNotExist(err), "stale file from the replaced package must be gone")

	_, err = os.Stat(filepath.Join(dst, "p1", "fresh.txt"))
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(dst, "p2", "marker.txt"))
	assert.NoError(t, err, "untouched package p2 must survive")
}

func TestInstallingSameBundleTwiceIsIdempotent(t *testing.T) {
	src := t.TempDir()
	writeTestTree(t, src)

	dst := t.TempDir()
	for i := 0; i < 2; i++ {
		archive, err := Pack(src, []string{"p1", "p2"})
		require.NoError(t, err)
		require.NoError(t, Unpack(dst, archive))
	}

	data, err := os.ReadFile(filepath.Join(dst, "p2", "marker.txt"))
	require.NoError(t, err)
	assert.Equal(t, "p2", string(data))
}

func tarGzWithEntries(t *testing.T, entries map[string]string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(body)), Mode: 0o644}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return &buf
}

func TestUnpackRejectsPathTraversal(t *testing.T) {
	dst := t.TempDir()
	archive := tarGzWithEntries(t, map[string]string{"../escape.txt": "evil"})
	err := Unpack(dst, archive)
	assert.Error(t, err)
}

func TestUnpackRejectsAbsolutePath(t *testing.T) {
	dst := t.TempDir()
	archive := tarGzWithEntries(t, map[string]string{"/etc/passwd": "evil"})
	err := Unpack(dst, archive)
	assert.Error(t, err)
}

func TestUnpackRejectsSymlink(t *testing.T) {
	dst := t.TempDir()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "p1/link",
		Typeflag: tar.TypeSymlink,
		Linkname: "/etc/passwd",
	}))
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	err := Unpack(dst, &buf)
	assert.Error(t, err)
}
