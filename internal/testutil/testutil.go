// Package testutil provides shared test helpers for setting up vaults and
// in-memory store fakes.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/mweide/shadowtwin/internal/storage"
)

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteFile writes one file through the provider, failing the test on error.
func WriteFile(t *testing.T, store storage.Provider, parentID, name string, content []byte) storage.File {
	t.Helper()
	f, err := store.Write(context.Background(), parentID, name, content)
	if err != nil {
		t.Fatalf("write %s/%s: %v", parentID, name, err)
	}
	return f
}

// CreateFolder creates one folder through the provider, failing the test on
// error.
func CreateFolder(t *testing.T, store storage.Provider, parentID, name string) storage.File {
	t.Helper()
	f, err := store.CreateFolder(context.Background(), parentID, name)
	if err != nil {
		t.Fatalf("create folder %s/%s: %v", parentID, name, err)
	}
	return f
}

// FakeObjectStore keeps uploaded objects in memory and counts uploads so
// tests can assert hash-based reuse.
type FakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// Uploads counts actual uploads, not reuse hits.
	Uploads int
}

// NewFakeObjectStore creates an empty fake object store.
func NewFakeObjectStore() *FakeObjectStore {
	return &FakeObjectStore{objects: make(map[string][]byte)}
}

func (f *FakeObjectStore) url(objectPath string) string {
	return "https://objects.test/" + objectPath
}

// Exists reports whether the object path is already stored.
func (f *FakeObjectStore) Exists(_ context.Context, objectPath string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[objectPath]; ok {
		return f.url(objectPath), true, nil
	}
	return "", false, nil
}

// Upload stores the object and returns its public URL.
func (f *FakeObjectStore) Upload(_ context.Context, objectPath string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objectPath] = data
	f.Uploads++
	return f.url(objectPath), nil
}

// Object returns a stored object's bytes.
func (f *FakeObjectStore) Object(objectPath string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectPath]
	return data, ok
}
