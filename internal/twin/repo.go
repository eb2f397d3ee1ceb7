package twin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mweide/shadowtwin/internal/apperr"
	"github.com/mweide/shadowtwin/internal/models"
)

// Repository is the mongo-backed Store. One collection per library, keyed
// shadow_twins__<libraryID>, with a unique (libraryId, sourceId) index created
// idempotently at construction.
type Repository struct {
	libraryID string
	col       *mongo.Collection
}

// NewRepository builds a repository over an injected client handle and
// ensures the collection indexes exist.
func NewRepository(ctx context.Context, client *mongo.Client, database, libraryID string) (*Repository, error) {
	if libraryID == "" {
		return nil, fmt.Errorf("twin: library id is required")
	}
	r := &Repository{
		libraryID: libraryID,
		col:       client.Database(database).Collection("shadow_twins__" + libraryID),
	}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) ensureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "libraryId", Value: 1}, {Key: "sourceId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("twin: ensure indexes: %w", err)
	}
	return nil
}

func (r *Repository) filter(sourceID string) bson.M {
	return bson.M{"libraryId": r.libraryID, "sourceId": sourceID}
}

// artifactPath returns the dotted document path of one artifact record.
// Languages and template names never contain dots (the naming codec splits on
// them), so the path is unambiguous.
func artifactPath(key models.ArtifactKey) string {
	if key.Kind == models.KindTransformation {
		return "artifacts.transformation." + key.TemplateName + "." + key.Language
	}
	return "artifacts.transcript." + key.Language
}

// Get returns the twin document for sourceID.
func (r *Repository) Get(ctx context.Context, sourceID string) (*models.ShadowTwinDocument, error) {
	var doc models.ShadowTwinDocument
	err := r.col.FindOne(ctx, r.filter(sourceID)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("twin: get %s: %w", sourceID, err)
	}
	return &doc, nil
}

// UpsertArtifact writes one artifact path via $set. The fragment list is
// merged by name in memory and written alongside; a concurrent writer to the
// same source may race on it, last write wins.
func (r *Repository) UpsertArtifact(ctx context.Context, meta Meta, key models.ArtifactKey, rec models.ArtifactRecord, frags []models.BinaryFragment, sync models.FilesystemSync) error {
	existing, err := r.Get(ctx, meta.SourceID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	if existing != nil {
		if prev, ok := existing.Artifacts.Lookup(key); ok {
			rec.CreatedAt = prev.CreatedAt
		}
	}

	set := bson.M{
		"sourceName":      meta.SourceName,
		"parentId":        meta.ParentID,
		"updatedAt":       rec.UpdatedAt,
		artifactPath(key): rec,
	}
	setOnInsert := bson.M{
		"libraryId": r.libraryID,
		"sourceId":  meta.SourceID,
		"owner":     meta.Owner,
		"createdAt": rec.UpdatedAt,
	}

	if len(frags) > 0 {
		var prev []models.BinaryFragment
		if existing != nil {
			prev = existing.BinaryFragments
		}
		set["binaryFragments"] = models.MergeFragments(prev, frags)
	} else if existing == nil {
		setOnInsert["binaryFragments"] = []models.BinaryFragment{}
	}

	// filesystemSync is bootstrapped on first insert only; later writes must
	// not clobber mirrorFolderId or lastSyncedAt.
	if existing == nil {
		setOnInsert["filesystemSync"] = sync
	}

	_, err = r.col.UpdateOne(ctx, r.filter(meta.SourceID),
		bson.M{"$set": set, "$setOnInsert": setOnInsert},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("twin: upsert %s: %w", key, err)
	}
	return nil
}

// UpdateArtifactMarkdown overwrites only the markdown, frontmatter, and
// updatedAt fields of an existing artifact path.
func (r *Repository) UpdateArtifactMarkdown(ctx context.Context, sourceID string, key models.ArtifactKey, markdown string, fm models.Frontmatter, at time.Time) error {
	p := artifactPath(key)
	res, err := r.col.UpdateOne(ctx, r.filter(sourceID), bson.M{"$set": bson.M{
		p + ".markdown":    markdown,
		p + ".frontmatter": fm,
		p + ".updatedAt":   at,
		"updatedAt":        at,
	}})
	if err != nil {
		return fmt.Errorf("twin: update markdown %s: %w", key, err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetMirrorFolder records the companion folder id on the sync state.
func (r *Repository) SetMirrorFolder(ctx context.Context, sourceID, folderID string) error {
	_, err := r.col.UpdateOne(ctx, r.filter(sourceID), bson.M{"$set": bson.M{
		"filesystemSync.mirrorFolderId": folderID,
	}})
	if err != nil {
		return fmt.Errorf("twin: set mirror folder: %w", err)
	}
	return nil
}

// SetLastSyncedAt stamps the last storage→database sync time.
func (r *Repository) SetLastSyncedAt(ctx context.Context, sourceID string, at time.Time) error {
	_, err := r.col.UpdateOne(ctx, r.filter(sourceID), bson.M{"$set": bson.M{
		"filesystemSync.lastSyncedAt": at,
	}})
	if err != nil {
		return fmt.Errorf("twin: set last synced: %w", err)
	}
	return nil
}

// Delete removes the whole twin document.
func (r *Repository) Delete(ctx context.Context, sourceID string) error {
	res, err := r.col.DeleteOne(ctx, r.filter(sourceID))
	if err != nil {
		return fmt.Errorf("twin: delete %s: %w", sourceID, err)
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Verify *Repository satisfies Store at compile time.
var _ Store = (*Repository)(nil)
