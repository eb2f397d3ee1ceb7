package freshness

import (
	"context"
	"errors"
	"time"

	"github.com/mweide/shadowtwin/internal/apperr"
	"github.com/mweide/shadowtwin/internal/models"
	"github.com/mweide/shadowtwin/internal/naming"
	"github.com/mweide/shadowtwin/internal/resolver"
	"github.com/mweide/shadowtwin/internal/storage"
	"github.com/mweide/shadowtwin/internal/twin"
)

// ArtifactFreshness is the per-artifact slice of a freshness report.
type ArtifactFreshness struct {
	Kind             models.ArtifactKind    `json:"kind"`
	Language         string                 `json:"language"`
	TemplateName     string                 `json:"templateName,omitempty"`
	FileName         string                 `json:"fileName,omitempty"`
	Status           models.FreshnessStatus `json:"status"`
	DBCreatedAt      *time.Time             `json:"dbCreatedAt,omitempty"`
	DBUpdatedAt      *time.Time             `json:"dbUpdatedAt,omitempty"`
	MirrorFileID     string                 `json:"mirrorFileId,omitempty"`
	MirrorModifiedAt *time.Time             `json:"mirrorModifiedAt,omitempty"`
}

// Report answers the UI freshness query for one source.
type Report struct {
	SourceID          string              `json:"sourceId"`
	SourceModifiedAt  *time.Time          `json:"sourceModifiedAt,omitempty"`
	DocumentUpdatedAt *time.Time          `json:"documentUpdatedAt,omitempty"`
	// Degraded is set when the storage collaborator was unavailable and the
	// report carries database-only information.
	Degraded  bool                `json:"degraded,omitempty"`
	Artifacts []ArtifactFreshness `json:"artifacts"`
}

// Checker builds freshness reports. files and res may be nil when the storage
// collaborator could not be initialized; the checker then degrades to
// database-only answers instead of failing.
type Checker struct {
	cfg   twin.LibraryConfig
	store twin.Store
	files storage.Provider
	res   *resolver.Resolver
}

// NewChecker creates a freshness checker.
func NewChecker(cfg twin.LibraryConfig, store twin.Store, files storage.Provider, res *resolver.Resolver) *Checker {
	return &Checker{cfg: cfg, store: store, files: files, res: res}
}

// Report classifies every artifact of the source, covering both artifacts
// recorded in the database and artifact files found only in storage.
func (c *Checker) Report(ctx context.Context, sourceID, parentID string) (*Report, error) {
	rep := &Report{SourceID: sourceID, Degraded: c.files == nil}

	doc, err := c.store.Get(ctx, sourceID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	sourceName := ""
	if doc != nil {
		rep.DocumentUpdatedAt = &doc.UpdatedAt
		sourceName = doc.SourceName
		if parentID == "" {
			parentID = doc.ParentID
		}
	}

	if c.files != nil {
		if f, err := c.files.Stat(ctx, sourceID); err == nil {
			t := f.ModifiedAt
			rep.SourceModifiedAt = &t
			if sourceName == "" {
				sourceName = f.Name
			}
		}
	}

	mirrorExpected := c.cfg.MirrorExpected() && !rep.Degraded

	seen := make(map[models.ArtifactKey]bool)
	if doc != nil {
		for _, key := range doc.Artifacts.Keys(sourceID) {
			rec, _ := doc.Artifacts.Lookup(key)
			entry := ArtifactFreshness{
				Kind:         key.Kind,
				Language:     key.Language,
				TemplateName: key.TemplateName,
				DBCreatedAt:  &rec.CreatedAt,
				DBUpdatedAt:  &rec.UpdatedAt,
			}
			if sourceName != "" {
				entry.FileName = naming.ArtifactFileName(sourceName, key)
			}

			var mirrorAt *time.Time
			if !rep.Degraded && sourceName != "" {
				hit, err := c.res.ResolveWithHint(ctx, resolver.Request{
					SourceID:      sourceID,
					SourceName:    sourceName,
					ParentID:      parentID,
					Language:      key.Language,
					TemplateName:  key.TemplateName,
					PreferredKind: key.Kind,
				}, doc.FilesystemSync.MirrorFolderID)
				if err == nil {
					t := hit.ModifiedAt
					mirrorAt = &t
					entry.MirrorFileID = hit.FileID
					entry.FileName = hit.FileName
				} else if !errors.Is(err, apperr.ErrNotFound) {
					return nil, err
				}
			}
			entry.MirrorModifiedAt = mirrorAt
			entry.Status = Classify(rep.SourceModifiedAt, entry.DBUpdatedAt, mirrorAt, mirrorExpected)
			rep.Artifacts = append(rep.Artifacts, entry)
			seen[key] = true
		}
	}

	// Artifact files present in storage without a database record.
	if !rep.Degraded && sourceName != "" {
		orphans, err := c.storageOnly(ctx, doc, sourceID, sourceName, parentID, seen)
		if err != nil {
			return nil, err
		}
		rep.Artifacts = append(rep.Artifacts, orphans...)
	}

	return rep, nil
}

// storageOnly lists the companion folder and siblings for decodable artifact
// files whose key is absent from the database; each classifies mongo-missing.
func (c *Checker) storageOnly(ctx context.Context, doc *models.ShadowTwinDocument, sourceID, sourceName, parentID string, seen map[models.ArtifactKey]bool) ([]ArtifactFreshness, error) {
	var folders []string
	if doc != nil && doc.FilesystemSync.MirrorFolderID != "" {
		folders = append(folders, doc.FilesystemSync.MirrorFolderID)
	} else if f, err := c.res.CompanionFolder(ctx, parentID, sourceName); err == nil {
		folders = append(folders, f.ID)
	}
	folders = append(folders, parentID)

	var out []ArtifactFreshness
	for _, folderID := range folders {
		files, err := c.files.List(ctx, folderID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		for _, f := range files {
			if f.IsFolder || f.ID == sourceID {
				continue
			}
			d, ok := naming.Decode(f.Name, sourceName)
			if !ok || d.Kind == models.KindRaw {
				continue
			}
			key := d.Key(sourceID)
			if seen[key] {
				continue
			}
			seen[key] = true
			t := f.ModifiedAt
			out = append(out, ArtifactFreshness{
				Kind:             d.Kind,
				Language:         d.Language,
				TemplateName:     d.TemplateName,
				FileName:         f.Name,
				Status:           models.StatusMongoMissing,
				MirrorFileID:     f.ID,
				MirrorModifiedAt: &t,
			})
		}
	}
	return out, nil
}
