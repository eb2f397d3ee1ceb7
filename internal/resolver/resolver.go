// Package resolver locates mirrored artifact files in the file store.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mweide/shadowtwin/internal/apperr"
	"github.com/mweide/shadowtwin/internal/models"
	"github.com/mweide/shadowtwin/internal/naming"
	"github.com/mweide/shadowtwin/internal/storage"
)

// Location says where a resolved artifact file was found.
type Location string

const (
	LocationCompanion Location = "companionFolder"
	LocationSibling   Location = "sibling"
)

// Request identifies the artifact to resolve.
type Request struct {
	SourceID   string
	SourceName string
	ParentID   string
	Language   string
	// TemplateName, when set, implies kind = transformation.
	TemplateName string
	// PreferredKind disambiguates when TemplateName is empty.
	// Defaults to transcript.
	PreferredKind models.ArtifactKind
}

// kind returns the effective artifact kind of the request.
func (req Request) kind() models.ArtifactKind {
	if req.TemplateName != "" {
		return models.KindTransformation
	}
	if req.PreferredKind != "" {
		return req.PreferredKind
	}
	return models.KindTranscript
}

// Resolved is a located artifact file.
type Resolved struct {
	Key               models.ArtifactKey
	FileID            string
	FileName          string
	Location          Location
	CompanionFolderID string
	ModifiedAt        time.Time
}

// Resolver finds artifact files across the two candidate locations.
// It is read-only against the file store.
type Resolver struct {
	store storage.Provider
}

// New creates a resolver over the given store.
func New(store storage.Provider) *Resolver {
	return &Resolver{store: store}
}

// CompanionFolder returns the source's companion folder, or
// apperr.ErrNotFound when none exists.
func (r *Resolver) CompanionFolder(ctx context.Context, parentID, sourceName string) (storage.File, error) {
	f, err := r.store.Child(ctx, parentID, naming.CompanionFolderName(sourceName))
	if err != nil {
		return storage.File{}, err
	}
	if !f.IsFolder {
		return storage.File{}, apperr.ErrNotFound
	}
	return f, nil
}

// Resolve returns the best matching artifact file for the request, checking
// the companion folder before siblings. A miss in both locations returns
// apperr.ErrNotFound; storage failures are returned as errors so callers can
// tell "absent" from "unreachable".
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	kind := req.kind()
	if kind == models.KindRaw {
		return nil, fmt.Errorf("resolver: raw artifacts are out of scope")
	}

	folder, err := r.CompanionFolder(ctx, req.ParentID, req.SourceName)
	switch {
	case err == nil:
		hit, err := r.matchIn(ctx, folder.ID, req, kind)
		if err != nil {
			return nil, err
		}
		if hit != nil {
			hit.Location = LocationCompanion
			hit.CompanionFolderID = folder.ID
			return hit, nil
		}
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	hit, err := r.matchSiblings(ctx, req, kind)
	if err != nil {
		return nil, err
	}
	if hit == nil {
		return nil, apperr.ErrNotFound
	}
	hit.Location = LocationSibling
	return hit, nil
}

// ResolveWithHint checks an explicitly recorded companion folder id before
// falling back to the usual two-location precedence. Used by callers holding
// a twin document whose filesystemSync.mirrorFolderId is set.
func (r *Resolver) ResolveWithHint(ctx context.Context, req Request, mirrorFolderID string) (*Resolved, error) {
	kind := req.kind()
	if mirrorFolderID != "" && kind != models.KindRaw {
		hit, err := r.matchIn(ctx, mirrorFolderID, req, kind)
		if err != nil {
			return nil, err
		}
		if hit != nil {
			hit.Location = LocationCompanion
			hit.CompanionFolderID = mirrorFolderID
			return hit, nil
		}
	}
	return r.Resolve(ctx, req)
}

// ResolveTranscript is the legacy mode used by callers that pre-date the
// transformation kind: transcript-only, same two-location precedence.
func (r *Resolver) ResolveTranscript(ctx context.Context, sourceID, sourceName, parentID, language string) (*Resolved, error) {
	return r.Resolve(ctx, Request{
		SourceID:      sourceID,
		SourceName:    sourceName,
		ParentID:      parentID,
		Language:      language,
		PreferredKind: models.KindTranscript,
	})
}

func (r *Resolver) matchIn(ctx context.Context, folderID string, req Request, kind models.ArtifactKind) (*Resolved, error) {
	files, err := r.store.List(ctx, folderID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolver: list %s: %w", folderID, err)
	}
	for _, f := range files {
		if f.IsFolder {
			continue
		}
		d, ok := naming.Decode(f.Name, req.SourceName)
		if !ok || !d.Matches(kind, req.Language, req.TemplateName) {
			continue
		}
		return &Resolved{
			Key:        d.Key(req.SourceID),
			FileID:     f.ID,
			FileName:   f.Name,
			ModifiedAt: f.ModifiedAt,
		}, nil
	}
	return nil, nil
}

func (r *Resolver) matchSiblings(ctx context.Context, req Request, kind models.ArtifactKind) (*Resolved, error) {
	files, err := r.store.List(ctx, req.ParentID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolver: list siblings: %w", err)
	}
	for _, f := range files {
		if f.IsFolder || f.ID == req.SourceID {
			continue
		}
		d, ok := naming.Decode(f.Name, req.SourceName)
		if !ok || !d.Matches(kind, req.Language, req.TemplateName) {
			continue
		}
		return &Resolved{
			Key:        d.Key(req.SourceID),
			FileID:     f.ID,
			FileName:   f.Name,
			ModifiedAt: f.ModifiedAt,
		}, nil
	}
	return nil, nil
}
