package testpkg

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Pack tars and gzips the named top-level package directories under
// root into a single archive. Package directory names become the
// tar entries' top-level path component, so Unpack can later replace
// packages one at a time by name (spec.md §4.2 merge semantics).
func Pack(root string, names []string) (io.Reader, error) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, name := range sorted {
		src := filepath.Join(root, name)
		if err := addDir(tw, src, name); err != nil {
			return nil, fmt.Errorf("testpkg: pack %s: %w", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("testpkg: close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("testpkg: close gzip writer: %w", err)
	}
	return &buf, nil
}

func addDir(tw *tar.Writer, src, archivePath string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		name := archivePath
		if rel != "." {
			name = filepath.ToSlash(filepath.Join(archivePath, rel))
		}

		if info.IsDir() {
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = name + "/"
			return tw.WriteHeader(hdr)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to pack symlink %s", path)
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = name
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
}

// Unpack extracts a gzipped tar bundle into dst, merge-installing each
// top-level package: a package directory present in the bundle fully
// replaces any existing directory of the same name (delete-then-
// extract); packages absent from the bundle are left untouched
// (spec.md §4.2). Entries escaping dst via ".." or an absolute path,
// and symlink entries, are rejected before anything is written.
func Unpack(dst string, r io.Reader) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("testpkg: open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)

	headers := make([]*tar.Header, 0)
	topLevel := make(map[string]struct{})

	// First pass: validate every entry before touching the filesystem,
	// so a malicious or truncated bundle can't leave a partial install.
	var bodies [][]byte
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("testpkg: read tar entry: %w", err)
		}

		if err := validateEntry(hdr); err != nil {
			return err
		}

		top := strings.SplitN(filepath.ToSlash(hdr.Name), "/", 2)[0]
		topLevel[top] = struct{}{}

		headers = append(headers, hdr)
		if hdr.Typeflag == tar.TypeReg {
			data, err := io.ReadAll(tr)
			if err != nil {
				return fmt.Errorf("testpkg: read tar entry body for %s: %w", hdr.Name, err)
			}
			bodies = append(bodies, data)
		} else {
			bodies = append(bodies, nil)
		}
	}

	for top := range topLevel {
		if err := os.RemoveAll(filepath.Join(dst, top)); err != nil {
			return fmt.Errorf("testpkg: remove existing package %s: %w", top, err)
		}
	}

	for i, hdr := range headers {
		target := filepath.Join(dst, filepath.FromSlash(hdr.Name))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("testpkg: create directory %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("testpkg: create parent directory for %s: %w", hdr.Name, err)
			}
			if err := os.WriteFile(target, bodies[i], os.FileMode(hdr.Mode)&0o777); err != nil {
				return fmt.Errorf("testpkg: write file %s: %w", hdr.Name, err)
			}
		default:
			return fmt.Errorf("testpkg: unsupported tar entry type for %s", hdr.Name)
		}
	}

	return nil
}

func validateEntry(hdr *tar.Header) error {
	name := filepath.ToSlash(hdr.Name)

	if hdr.Typeflag == tar.TypeSymlink || hdr.Typeflag == tar.TypeLink {
		return fmt.Errorf("testpkg: bundle entry %q is a symlink, rejected", name)
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("testpkg: bundle entry %q has an absolute path, rejected", name)
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == ".." {
			return fmt.Errorf("testpkg: bundle entry %q escapes the test root, rejected", name)
		}
	}
	return nil
}
