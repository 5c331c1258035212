package objstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore implements ObjectStore on the local filesystem under a root
// directory. It stands in for the hosted storage bucket in local and
// development deployments.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed and returns a DiskStore.
func NewDiskStore(root string) (*DiskStore, error) {
	if root == "" {
		return nil, fmt.Errorf("objstore: root path is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("objstore: create root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

// Root returns the root directory of the store.
func (d *DiskStore) Root() string {
	return d.root
}

// resolve maps an opaque object path to a filesystem path, rejecting anything
// that would escape the root.
func (d *DiskStore) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("objstore: empty path")
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("objstore: invalid path %q", path)
	}
	return filepath.Join(d.root, clean), nil
}

// Put stores content at path. Fails if the object already exists.
func (d *DiskStore) Put(ctx context.Context, path string, r io.Reader) (int64, error) {
	full, err := d.resolve(path)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return 0, fmt.Errorf("objstore: create dir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return 0, fmt.Errorf("objstore: object already exists: %s", path)
		}
		return 0, fmt.Errorf("objstore: create object: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return 0, fmt.Errorf("objstore: write object: %w", err)
	}
	return n, nil
}

// Get returns the bytes stored at path.
func (d *DiskStore) Get(ctx context.Context, path string) ([]byte, error) {
	full, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("objstore: read object %s: %w", path, err)
	}
	return data, nil
}

// Delete removes the object at path. Missing objects are ignored.
func (d *DiskStore) Delete(ctx context.Context, path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("objstore: delete object %s: %w", path, err)
	}
	return nil
}
