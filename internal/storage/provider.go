// Package storage defines the hierarchical file-store boundary the twin
// engine consumes. The store addresses files and folders by opaque id; the
// engine never assumes ids are paths.
package storage

import (
	"context"
	"time"
)

// File is the metadata of a file or folder in the store.
type File struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ParentID   string    `json:"parentId"`
	IsFolder   bool      `json:"isFolder"`
	SizeBytes  int64     `json:"sizeBytes"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Provider is the interface to the external file store.
// Implementations return apperr.ErrNotFound for missing ids.
type Provider interface {
	// List returns the direct children of the folder with the given id.
	// The root folder has the empty id.
	List(ctx context.Context, folderID string) ([]File, error)
	// Stat returns metadata for a single file or folder.
	Stat(ctx context.Context, fileID string) (File, error)
	// Child looks up a direct child of folderID by name.
	Child(ctx context.Context, folderID, name string) (File, error)
	// Read returns the full content of a file.
	Read(ctx context.Context, fileID string) ([]byte, error)
	// Write creates or replaces a file named name under parentID.
	Write(ctx context.Context, parentID, name string, content []byte) (File, error)
	// CreateFolder creates a folder under parentID, returning the existing
	// folder if one with that name is already present.
	CreateFolder(ctx context.Context, parentID, name string) (File, error)
	// Delete removes a single file.
	Delete(ctx context.Context, fileID string) error
	// DeleteFolder removes a folder and everything beneath it.
	DeleteFolder(ctx context.Context, folderID string) error
}
