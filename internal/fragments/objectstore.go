package fragments

import (
	"bytes"
	"context"
	"fmt"
	"path"

	storage_go "github.com/supabase-community/storage-go"
)

// ObjectStore is the content-addressed object storage used for embedded
// images. Paths follow <libraryID>/<scope>/<sourceID>/<hash>.<ext>.
type ObjectStore interface {
	// Exists reports whether an object already lives at objectPath, returning
	// its public URL when it does.
	Exists(ctx context.Context, objectPath string) (string, bool, error)
	// Upload stores data at objectPath and returns its public URL.
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
}

// SupabaseStore implements ObjectStore on a Supabase storage bucket.
type SupabaseStore struct {
	client *storage_go.Client
	bucket string
}

// NewSupabaseStore creates a store for the given project URL, service key,
// and bucket.
func NewSupabaseStore(url, key, bucket string) *SupabaseStore {
	return &SupabaseStore{
		client: storage_go.NewClient(url, key, nil),
		bucket: bucket,
	}
}

// Exists lists the object's folder and looks for its name. Listing instead of
// downloading keeps the dedup check cheap for large images.
func (s *SupabaseStore) Exists(_ context.Context, objectPath string) (string, bool, error) {
	dir := path.Dir(objectPath)
	name := path.Base(objectPath)
	files, err := s.client.ListFiles(s.bucket, dir, storage_go.FileSearchOptions{Limit: 1000})
	if err != nil {
		return "", false, fmt.Errorf("object store: list %s: %w", dir, err)
	}
	for _, f := range files {
		if f.Name == name {
			return s.publicURL(objectPath), true, nil
		}
	}
	return "", false, nil
}

// Upload writes the object with upsert semantics; re-uploading the same
// content-addressed path is harmless.
func (s *SupabaseStore) Upload(_ context.Context, objectPath string, data []byte, contentType string) (string, error) {
	upsert := true
	opts := storage_go.FileOptions{Upsert: &upsert}
	if contentType != "" {
		opts.ContentType = &contentType
	}
	if _, err := s.client.UploadFile(s.bucket, objectPath, bytes.NewReader(data), opts); err != nil {
		return "", fmt.Errorf("object store: upload %s: %w", objectPath, err)
	}
	return s.publicURL(objectPath), nil
}

func (s *SupabaseStore) publicURL(objectPath string) string {
	return s.client.GetPublicUrl(s.bucket, objectPath).SignedURL
}

// Verify *SupabaseStore satisfies ObjectStore at compile time.
var _ ObjectStore = (*SupabaseStore)(nil)
