package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mweide/shadowtwin/internal/apperr"
)

// FS implements Provider on the local file system. Ids are vault-relative
// slash-separated paths; the empty id is the vault root.
type FS struct {
	root string // absolute path to vault directory
}

// NewFS creates an FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// abs resolves an id against the vault root and rejects any result that
// escapes it (directory traversal).
func (f *FS) abs(id string) (string, error) {
	if id == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute ids not allowed: %s", id)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve id: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: id escapes vault root: %s", id)
	}
	return abs, nil
}

func (f *FS) fileAt(id string, info os.FileInfo) File {
	return File{
		ID:         id,
		Name:       info.Name(),
		ParentID:   parentID(id),
		IsFolder:   info.IsDir(),
		SizeBytes:  info.Size(),
		ModifiedAt: info.ModTime(),
	}
}

func parentID(id string) string {
	dir := path.Dir(id)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// List returns the direct children of a folder.
func (f *FS) List(_ context.Context, folderID string) ([]File, error) {
	abs, err := f.abs(folderID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("storage: list %s: %w", folderID, err)
	}
	out := make([]File, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		id := path.Join(folderID, e.Name())
		out = append(out, f.fileAt(id, info))
	}
	return out, nil
}

// Stat returns metadata for one id.
func (f *FS) Stat(_ context.Context, fileID string) (File, error) {
	abs, err := f.abs(fileID)
	if err != nil {
		return File{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{}, apperr.ErrNotFound
		}
		return File{}, fmt.Errorf("storage: stat %s: %w", fileID, err)
	}
	return f.fileAt(fileID, info), nil
}

// Child looks up a direct child by name.
func (f *FS) Child(ctx context.Context, folderID, name string) (File, error) {
	if name == "" || name != path.Base(name) {
		return File{}, fmt.Errorf("storage: invalid child name: %s", name)
	}
	return f.Stat(ctx, path.Join(folderID, name))
}

// Read returns the raw bytes of a file.
func (f *FS) Read(_ context.Context, fileID string) ([]byte, error) {
	abs, err := f.abs(fileID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("storage: read %s: %w", fileID, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(ctx context.Context, parentID, name string, content []byte) (File, error) {
	if name == "" || name != path.Base(name) {
		return File{}, fmt.Errorf("storage: invalid file name: %s", name)
	}
	id := path.Join(parentID, name)
	abs, err := f.abs(id)
	if err != nil {
		return File{}, err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return File{}, fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".twin-tmp-*")
	if err != nil {
		return File{}, fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return File{}, fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return File{}, fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return File{}, fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return File{}, fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return f.Stat(ctx, id)
}

// CreateFolder creates (or returns) a folder under parentID.
func (f *FS) CreateFolder(ctx context.Context, parentID, name string) (File, error) {
	if name == "" || name != path.Base(name) {
		return File{}, fmt.Errorf("storage: invalid folder name: %s", name)
	}
	id := path.Join(parentID, name)
	abs, err := f.abs(id)
	if err != nil {
		return File{}, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return File{}, fmt.Errorf("storage: create folder: %w", err)
	}
	return f.Stat(ctx, id)
}

// Delete removes a single file.
func (f *FS) Delete(_ context.Context, fileID string) error {
	abs, err := f.abs(fileID)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: refusing to delete vault root")
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("storage: delete %s: %w", fileID, err)
	}
	return nil
}

// DeleteFolder removes a folder recursively.
func (f *FS) DeleteFolder(_ context.Context, folderID string) error {
	abs, err := f.abs(folderID)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: refusing to delete vault root")
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("storage: delete folder %s: %w", folderID, err)
	}
	return nil
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)
