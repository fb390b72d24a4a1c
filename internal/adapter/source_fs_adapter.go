// Package adapter contains infrastructure adapters for the memoscope CLI.
package adapter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	m "memoscope.dev/pkg/memoscope/internal/model"
)

// SourceFSAdapter abstracts filesystem operations the domain layer relies
// on when scanning and patching user projects. It hides direct `os`
// access so workflow logic can be tested without touching the disk.
type SourceFSAdapter interface {
	// GoFiles lists .go files (tests excluded) under each root, skipping
	// vendor and VCS directories.
	GoFiles(roots []m.Path, exclude []string) ([]m.Path, error)

	// ReadFile loads a file from disk and returns its contents.
	ReadFile(path m.Path) ([]byte, error)

	// WriteFile writes content to a file with the given permissions.
	WriteFile(path m.Path, content []byte, perm os.FileMode) error

	// Fingerprint returns a stable content fingerprint for the file.
	Fingerprint(path m.Path) (string, error)

	// CopyFile duplicates src to dst, preserving the file mode.
	CopyFile(src, dst m.Path) error

	// Remove deletes a single file.
	Remove(path m.Path) error

	// Exists reports whether the path exists.
	Exists(path m.Path) bool

	// FindProjectRoot walks up from startPath looking for go.mod.
	FindProjectRoot(startPath m.Path) (m.Path, error)
}

// LocalSourceFSAdapter is the concrete SourceFSAdapter backed by os.
type LocalSourceFSAdapter struct{}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{}
}

// GoFiles walks each root collecting non-test Go files.
func (a *LocalSourceFSAdapter) GoFiles(roots []m.Path, exclude []string) ([]m.Path, error) {
	var files []m.Path

	for _, root := range roots {
		// Accept Go-style recursive patterns; the walk is recursive anyway.
		dir := strings.TrimSuffix(string(root), "...")
		dir = strings.TrimSuffix(dir, string(filepath.Separator))
		if dir == "" {
			dir = "."
		}

		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if info.IsDir() {
				base := filepath.Base(path)
				if base == ".git" || base == "vendor" || base == "testdata" || base == "node_modules" {
					return filepath.SkipDir
				}

				return nil
			}

			if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
				return nil
			}

			for _, pattern := range exclude {
				if pattern != "" && strings.Contains(path, pattern) {
					return nil
				}
			}

			files = append(files, m.Path(path))

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	return files, nil
}

// ReadFile loads file contents from disk.
func (a *LocalSourceFSAdapter) ReadFile(path m.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// WriteFile writes content to a file with the given permissions.
func (a *LocalSourceFSAdapter) WriteFile(path m.Path, content []byte, perm os.FileMode) error {
	return os.WriteFile(string(path), content, perm)
}

// Fingerprint returns the xxhash-64 digest of the file contents.
func (a *LocalSourceFSAdapter) Fingerprint(path m.Path) (string, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return "", err
	}

	defer func() { _ = f.Close() }()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// CopyFile duplicates src to dst, preserving the source file mode.
func (a *LocalSourceFSAdapter) CopyFile(src, dst m.Path) error {
	info, err := os.Stat(string(src))
	if err != nil {
		return err
	}

	in, err := os.Open(string(src))
	if err != nil {
		return err
	}

	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(string(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, in)

	return err
}

// Remove deletes a single file.
func (a *LocalSourceFSAdapter) Remove(path m.Path) error {
	return os.Remove(string(path))
}

// Exists reports whether the path exists.
func (a *LocalSourceFSAdapter) Exists(path m.Path) bool {
	_, err := os.Stat(string(path))

	return err == nil
}

// FindProjectRoot searches for go.mod walking up the directory tree.
func (a *LocalSourceFSAdapter) FindProjectRoot(startPath m.Path) (m.Path, error) {
	dir := string(startPath)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return m.Path(dir), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory of %s", startPath)
		}

		dir = parent
	}
}
