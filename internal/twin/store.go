// Package twin owns the shadow-twin document aggregate: the dual-store
// persistence layer and the database representation of derived artifacts.
package twin

import (
	"context"
	"fmt"
	"time"

	"github.com/mweide/shadowtwin/internal/models"
)

// Meta carries the document-level identity fields set on every upsert.
type Meta struct {
	SourceID   string
	SourceName string
	ParentID   string
	Owner      models.Owner
}

// Store is the persistence boundary for twin documents. Consumers depend on
// this interface rather than the mongo-backed Repository so logic can be
// tested against an in-memory implementation.
type Store interface {
	// Get returns the twin document for sourceID, or apperr.ErrNotFound.
	Get(ctx context.Context, sourceID string) (*models.ShadowTwinDocument, error)
	// UpsertArtifact writes one artifact path and merges fragments by name.
	// The document is created on first write; sync seeds filesystemSync only
	// then.
	UpsertArtifact(ctx context.Context, meta Meta, key models.ArtifactKey, rec models.ArtifactRecord, frags []models.BinaryFragment, sync models.FilesystemSync) error
	// UpdateArtifactMarkdown overwrites only markdown, frontmatter, and
	// updatedAt of one existing artifact path, leaving fragments untouched.
	UpdateArtifactMarkdown(ctx context.Context, sourceID string, key models.ArtifactKey, markdown string, fm models.Frontmatter, at time.Time) error
	// SetMirrorFolder records the companion folder id for mirror resolution.
	SetMirrorFolder(ctx context.Context, sourceID, folderID string) error
	// SetLastSyncedAt stamps the last storage→database sync.
	SetLastSyncedAt(ctx context.Context, sourceID string, at time.Time) error
	// Delete removes the whole document. Administrative use only.
	Delete(ctx context.Context, sourceID string) error
}

// EmptyContentError rejects an empty or whitespace-only artifact write. It
// names the offending key so callers can tell which artifact failed.
type EmptyContentError struct {
	Key models.ArtifactKey
}

func (e *EmptyContentError) Error() string {
	if e.Key.Kind == models.KindTransformation {
		return fmt.Sprintf("artifact content must not be empty (kind=%s language=%s template=%s source=%s)",
			e.Key.Kind, e.Key.Language, e.Key.TemplateName, e.Key.SourceID)
	}
	return fmt.Sprintf("artifact content must not be empty (kind=%s language=%s source=%s)",
		e.Key.Kind, e.Key.Language, e.Key.SourceID)
}
