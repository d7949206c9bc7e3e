// Package manifest reads module manifests from a directory tree laid out as
// one sub-directory per module, each holding a module.yaml.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/shared"
)

// maxManifestSize bounds a module.yaml.
const maxManifestSize = 1 << 20

// ErrOutsideRoot is returned for paths that leave the module root.
var ErrOutsideRoot = fmt.Errorf("%w: path is outside the module root", shared.ErrValidation)

// Reader implements module.ManifestReader and module.SourceRemover on the
// local filesystem.
type Reader struct {
	root string
}

var (
	_ module.ManifestReader = (*Reader)(nil)
	_ module.SourceRemover  = (*Reader)(nil)
)

// NewReader creates a reader rooted at dir.
func NewReader(dir string) (*Reader, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve module root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("module root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("module root %s is not a directory", abs)
	}
	return &Reader{root: abs}, nil
}

// Root returns the absolute module root.
func (r *Reader) Root() string { return r.root }

// Discover lists the immediate sub-directories of the root that contain a
// manifest, sorted by name. Hidden directories are skipped.
func (r *Reader) Discover(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("read module root: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.root, e.Name(), module.ManifestFile)); err == nil {
			paths = append(paths, e.Name())
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// Read decodes the manifest of one module directory. Unknown keys are ignored.
func (r *Reader) Read(ctx context.Context, path string) (*module.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := r.resolve(path)
	if err != nil {
		return nil, err
	}

	file := filepath.Join(dir, module.ManifestFile)
	info, err := os.Stat(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s has no %s", module.ErrInvalidManifest, path, module.ManifestFile)
		}
		return nil, fmt.Errorf("stat manifest: %w", err)
	}
	if info.Size() > maxManifestSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", module.ErrInvalidManifest, module.ManifestFile, maxManifestSize)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m module.Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: invalid YAML: %v", module.ErrInvalidManifest, err)
	}
	return &m, nil
}

// Remove deletes a module directory. The root itself can never be removed.
func (r *Reader) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := r.resolve(path)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove module source: %w", err)
	}
	return nil
}

// resolve maps a root-relative module path to an absolute directory strictly
// below the root.
func (r *Reader) resolve(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) {
		return "", ErrOutsideRoot
	}
	dir := filepath.Join(r.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(r.root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return dir, nil
}
