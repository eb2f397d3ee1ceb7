package twin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mweide/shadowtwin/internal/apperr"
	"github.com/mweide/shadowtwin/internal/models"
	"github.com/mweide/shadowtwin/internal/naming"
	"github.com/mweide/shadowtwin/internal/parser"
	"github.com/mweide/shadowtwin/internal/storage"
)

// Primary store backends.
const (
	PrimaryMongo      = "mongo"
	PrimaryFilesystem = "filesystem"
)

// LibraryConfig is the per-library storage behavior.
type LibraryConfig struct {
	LibraryID          string
	PrimaryStore       string // PrimaryMongo or PrimaryFilesystem
	MirrorToFilesystem bool
	Owner              models.Owner
}

// MirrorExpected reports whether artifacts should have a file-store copy:
// either the filesystem is primary, or mirroring is requested alongside the
// database.
func (c LibraryConfig) MirrorExpected() bool {
	return c.PrimaryStore == PrimaryFilesystem || c.MirrorToFilesystem
}

// Service is the dual-store persistence layer: every artifact write goes
// through it. The database is the durability source of truth; mirroring to
// the file store is best-effort.
type Service struct {
	cfg    LibraryConfig
	store  Store
	files  storage.Provider // may be nil when the storage collaborator is unavailable
	logger *slog.Logger
}

// NewService creates the persistence layer. files may be nil; mirroring is
// then skipped.
func NewService(cfg LibraryConfig, store Store, files storage.Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, store: store, files: files, logger: logger}
}

// Config exposes the library configuration to collaborating components.
func (s *Service) Config() LibraryConfig { return s.cfg }

// UpsertInput is one live-path artifact write. Markdown must already carry
// resolved image URLs (see fragments.Uploader); Fragments lists the images it
// references.
type UpsertInput struct {
	SourceID   string
	SourceName string
	ParentID   string
	Key        models.ArtifactKey
	Markdown   string
	Fragments  []models.BinaryFragment
}

// UpsertArtifact validates, writes the database record, and mirrors to the
// file store when the library asks for it. Validation failures leave the
// aggregate untouched.
func (s *Service) UpsertArtifact(ctx context.Context, in UpsertInput) (*models.ArtifactRecord, error) {
	key := in.Key
	key.SourceID = in.SourceID
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Markdown) == "" {
		return nil, &EmptyContentError{Key: key}
	}

	res := parser.Parse([]byte(in.Markdown))
	now := time.Now().UTC()
	rec := models.ArtifactRecord{
		Markdown:    in.Markdown,
		Frontmatter: res.Frontmatter,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	meta := Meta{
		SourceID:   in.SourceID,
		SourceName: in.SourceName,
		ParentID:   in.ParentID,
		Owner:      s.cfg.Owner,
	}
	sync := models.FilesystemSync{Enabled: s.cfg.MirrorExpected()}
	if err := s.store.UpsertArtifact(ctx, meta, key, rec, in.Fragments, sync); err != nil {
		return nil, err
	}

	if s.cfg.MirrorExpected() {
		s.mirror(ctx, in, key)
	}

	return &rec, nil
}

// mirror ensures the companion folder and mirrored file exist. Failures are
// logged, never returned: the database write already succeeded.
func (s *Service) mirror(ctx context.Context, in UpsertInput, key models.ArtifactKey) {
	if s.files == nil {
		s.logger.Warn("twin: mirroring requested but file store unavailable",
			slog.String("artifact", key.String()))
		return
	}
	folder, err := s.files.CreateFolder(ctx, in.ParentID, naming.CompanionFolderName(in.SourceName))
	if err != nil {
		s.logger.Warn("twin: mirror folder create failed",
			slog.String("artifact", key.String()), slog.String("error", err.Error()))
		return
	}
	name := naming.ArtifactFileName(in.SourceName, key)
	if _, err := s.files.Write(ctx, folder.ID, name, []byte(in.Markdown)); err != nil {
		s.logger.Warn("twin: mirror write failed",
			slog.String("artifact", key.String()), slog.String("error", err.Error()))
		return
	}
	if err := s.store.SetMirrorFolder(ctx, in.SourceID, folder.ID); err != nil {
		s.logger.Warn("twin: record mirror folder failed",
			slog.String("source", in.SourceID), slog.String("error", err.Error()))
	}
}

// UpdateArtifactMarkdown is the partial-update path used by the
// storage→database sync: it overwrites only markdown, frontmatter, and
// updatedAt, never re-deriving binary fragments from the synced file.
func (s *Service) UpdateArtifactMarkdown(ctx context.Context, sourceID string, key models.ArtifactKey, markdown string) error {
	key.SourceID = sourceID
	if err := key.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(markdown) == "" {
		return &EmptyContentError{Key: key}
	}
	res := parser.Parse([]byte(markdown))
	return s.store.UpdateArtifactMarkdown(ctx, sourceID, key, markdown, res.Frontmatter, time.Now().UTC())
}

// GetDocument returns the whole twin aggregate for a source.
func (s *Service) GetDocument(ctx context.Context, sourceID string) (*models.ShadowTwinDocument, error) {
	return s.store.Get(ctx, sourceID)
}

// GetArtifact returns one artifact record.
func (s *Service) GetArtifact(ctx context.Context, sourceID string, key models.ArtifactKey) (*models.ArtifactRecord, error) {
	doc, err := s.store.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Artifacts.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("twin: artifact %s: %w", key, apperr.ErrNotFound)
	}
	return &rec, nil
}

// DeleteDocument removes the whole twin document. Administrative use only
// (test/reset flows); artifacts are never deleted implicitly.
func (s *Service) DeleteDocument(ctx context.Context, sourceID string) error {
	return s.store.Delete(ctx, sourceID)
}

// SetLastSyncedAt is forwarded for the sync component.
func (s *Service) SetLastSyncedAt(ctx context.Context, sourceID string, at time.Time) error {
	return s.store.SetLastSyncedAt(ctx, sourceID, at)
}
