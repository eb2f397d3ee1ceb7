// Package syncback pulls externally edited mirrored files back into the
// database. It is the only path by which file-store edits re-enter the
// database; it never creates or deletes mirrored files.
package syncback

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mweide/shadowtwin/internal/apperr"
	"github.com/mweide/shadowtwin/internal/freshness"
	"github.com/mweide/shadowtwin/internal/models"
	"github.com/mweide/shadowtwin/internal/resolver"
	"github.com/mweide/shadowtwin/internal/storage"
	"github.com/mweide/shadowtwin/internal/twin"
)

// Outcome is the per-artifact result of a sync pass.
type Outcome string

const (
	OutcomeSynced        Outcome = "synced"
	OutcomeAlreadySynced Outcome = "alreadySynced"
	OutcomeNotFound      Outcome = "notFound"
	OutcomeError         Outcome = "error"
)

// ItemResult is one artifact's outcome.
type ItemResult struct {
	Kind         models.ArtifactKind `json:"kind"`
	Language     string              `json:"language"`
	TemplateName string              `json:"templateName,omitempty"`
	FileName     string              `json:"fileName,omitempty"`
	Outcome      Outcome             `json:"outcome"`
	Error        string              `json:"error,omitempty"`
}

// Report tallies a sync pass over one source.
type Report struct {
	SourceID string       `json:"sourceId"`
	Synced   int          `json:"synced"`
	Skipped  int          `json:"skipped"`
	Failed   int          `json:"failed"`
	Items    []ItemResult `json:"items"`
}

// Syncer brings database records up to date with newer mirrored files.
type Syncer struct {
	svc    *twin.Service
	res    *resolver.Resolver
	files  storage.Provider
	logger *slog.Logger
}

// New creates a syncer.
func New(svc *twin.Service, files storage.Provider, res *resolver.Resolver, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{svc: svc, res: res, files: files, logger: logger}
}

// SyncSource checks every artifact of the source and overwrites the database
// record where the mirrored file is newer than the tolerance band allows.
// Only markdown, frontmatter, and updatedAt change; binary fragments are
// never re-derived from a synced file.
func (s *Syncer) SyncSource(ctx context.Context, sourceID, parentID string) (*Report, error) {
	doc, err := s.svc.GetDocument(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	rep := &Report{SourceID: sourceID}
	if !s.svc.Config().MirrorExpected() || s.files == nil {
		return rep, nil
	}
	if parentID == "" {
		parentID = doc.ParentID
	}

	for _, key := range doc.Artifacts.Keys(sourceID) {
		rec, _ := doc.Artifacts.Lookup(key)
		item := ItemResult{Kind: key.Kind, Language: key.Language, TemplateName: key.TemplateName}

		hit, err := s.res.ResolveWithHint(ctx, resolver.Request{
			SourceID:      sourceID,
			SourceName:    doc.SourceName,
			ParentID:      parentID,
			Language:      key.Language,
			TemplateName:  key.TemplateName,
			PreferredKind: key.Kind,
		}, doc.FilesystemSync.MirrorFolderID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			item.Outcome = OutcomeNotFound
			rep.Skipped++
			rep.Items = append(rep.Items, item)
			continue
		case err != nil:
			item.Outcome = OutcomeError
			item.Error = err.Error()
			rep.Failed++
			rep.Items = append(rep.Items, item)
			continue
		}
		item.FileName = hit.FileName

		if hit.ModifiedAt.Sub(rec.UpdatedAt) <= freshness.Tolerance {
			item.Outcome = OutcomeAlreadySynced
			rep.Skipped++
			rep.Items = append(rep.Items, item)
			continue
		}

		data, err := s.files.Read(ctx, hit.FileID)
		if err != nil {
			item.Outcome = OutcomeError
			item.Error = err.Error()
			rep.Failed++
			rep.Items = append(rep.Items, item)
			continue
		}

		if err := s.svc.UpdateArtifactMarkdown(ctx, sourceID, key, string(data)); err != nil {
			item.Outcome = OutcomeError
			item.Error = err.Error()
			rep.Failed++
			rep.Items = append(rep.Items, item)
			s.logger.Warn("syncback: update failed",
				slog.String("artifact", key.String()), slog.String("error", err.Error()))
			continue
		}

		item.Outcome = OutcomeSynced
		rep.Synced++
		rep.Items = append(rep.Items, item)
		s.logger.Debug("syncback: pulled mirrored edit",
			slog.String("artifact", key.String()), slog.String("file", hit.FileID))
	}

	if rep.Synced > 0 {
		if err := s.svc.SetLastSyncedAt(ctx, sourceID, time.Now().UTC()); err != nil {
			s.logger.Warn("syncback: stamp last synced failed",
				slog.String("source", sourceID), slog.String("error", err.Error()))
		}
	}

	return rep, nil
}
