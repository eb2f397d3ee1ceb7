package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/mweide/shadowtwin/internal/apperr"
	"github.com/mweide/shadowtwin/internal/models"
	"github.com/mweide/shadowtwin/internal/twin"
)

// MemStore is an in-memory twin.Store with the same upsert semantics as the
// mongo-backed repository: record createdAt survives re-writes, document
// identity fields are set on every write, filesystemSync is seeded only on
// first insert.
type MemStore struct {
	mu        sync.Mutex
	LibraryID string
	Docs      map[string]*models.ShadowTwinDocument
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(libraryID string) *MemStore {
	return &MemStore{LibraryID: libraryID, Docs: make(map[string]*models.ShadowTwinDocument)}
}

// Get returns the document for sourceID.
func (m *MemStore) Get(_ context.Context, sourceID string) (*models.ShadowTwinDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.Docs[sourceID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

// UpsertArtifact writes one artifact path.
func (m *MemStore) UpsertArtifact(_ context.Context, meta twin.Meta, key models.ArtifactKey, rec models.ArtifactRecord, frags []models.BinaryFragment, sync models.FilesystemSync) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.Docs[meta.SourceID]
	if !ok {
		doc = &models.ShadowTwinDocument{
			LibraryID:       m.LibraryID,
			SourceID:        meta.SourceID,
			Owner:           meta.Owner,
			BinaryFragments: []models.BinaryFragment{},
			FilesystemSync:  sync,
			CreatedAt:       rec.CreatedAt,
		}
		m.Docs[meta.SourceID] = doc
	}
	doc.SourceName = meta.SourceName
	doc.ParentID = meta.ParentID
	doc.UpdatedAt = rec.UpdatedAt

	if prev, found := doc.Artifacts.Lookup(key); found {
		rec.CreatedAt = prev.CreatedAt
	}
	switch key.Kind {
	case models.KindTranscript:
		if doc.Artifacts.Transcript == nil {
			doc.Artifacts.Transcript = make(map[string]models.ArtifactRecord)
		}
		doc.Artifacts.Transcript[key.Language] = rec
	case models.KindTransformation:
		if doc.Artifacts.Transformation == nil {
			doc.Artifacts.Transformation = make(map[string]map[string]models.ArtifactRecord)
		}
		if doc.Artifacts.Transformation[key.TemplateName] == nil {
			doc.Artifacts.Transformation[key.TemplateName] = make(map[string]models.ArtifactRecord)
		}
		doc.Artifacts.Transformation[key.TemplateName][key.Language] = rec
	}

	if len(frags) > 0 {
		doc.BinaryFragments = models.MergeFragments(doc.BinaryFragments, frags)
	}
	return nil
}

// UpdateArtifactMarkdown overwrites the record of one existing artifact path.
func (m *MemStore) UpdateArtifactMarkdown(_ context.Context, sourceID string, key models.ArtifactKey, markdown string, fm models.Frontmatter, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.Docs[sourceID]
	if !ok {
		return apperr.ErrNotFound
	}
	rec, found := doc.Artifacts.Lookup(key)
	if !found {
		return apperr.ErrNotFound
	}
	rec.Markdown = markdown
	rec.Frontmatter = fm
	rec.UpdatedAt = at
	switch key.Kind {
	case models.KindTranscript:
		doc.Artifacts.Transcript[key.Language] = rec
	case models.KindTransformation:
		doc.Artifacts.Transformation[key.TemplateName][key.Language] = rec
	}
	doc.UpdatedAt = at
	return nil
}

// SetMirrorFolder records the companion folder id.
func (m *MemStore) SetMirrorFolder(_ context.Context, sourceID, folderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.Docs[sourceID]
	if !ok {
		return apperr.ErrNotFound
	}
	doc.FilesystemSync.MirrorFolderID = folderID
	return nil
}

// SetLastSyncedAt stamps the last sync time.
func (m *MemStore) SetLastSyncedAt(_ context.Context, sourceID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.Docs[sourceID]
	if !ok {
		return apperr.ErrNotFound
	}
	doc.FilesystemSync.LastSyncedAt = &at
	return nil
}

// Delete removes the whole document.
func (m *MemStore) Delete(_ context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Docs[sourceID]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.Docs, sourceID)
	return nil
}

// Verify *MemStore satisfies twin.Store at compile time.
var _ twin.Store = (*MemStore)(nil)

// MemRunStore is an in-memory twin.RunStore.
type MemRunStore struct {
	mu   sync.Mutex
	Runs map[string]*models.MigrationRun
}

// NewMemRunStore creates an empty in-memory run store.
func NewMemRunStore() *MemRunStore {
	return &MemRunStore{Runs: make(map[string]*models.MigrationRun)}
}

// Create inserts a new run.
func (m *MemRunStore) Create(_ context.Context, run *models.MigrationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.Runs[run.RunID] = &cp
	return nil
}

// AppendStep appends one log entry.
func (m *MemRunStore) AppendStep(_ context.Context, runID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.Runs[runID]
	if !ok {
		return apperr.ErrNotFound
	}
	run.Steps = append(run.Steps, models.MigrationStep{At: time.Now().UTC(), Message: message})
	return nil
}

// Finalize records the terminal status and report.
func (m *MemRunStore) Finalize(_ context.Context, runID string, status models.MigrationStatus, report models.MigrationReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.Runs[runID]
	if !ok {
		return apperr.ErrNotFound
	}
	now := time.Now().UTC()
	run.Status = status
	run.Report = report
	run.FinishedAt = &now
	return nil
}

// Get returns a run by id.
func (m *MemRunStore) Get(_ context.Context, runID string) (*models.MigrationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.Runs[runID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

// Verify *MemRunStore satisfies twin.RunStore at compile time.
var _ twin.RunStore = (*MemRunStore)(nil)
