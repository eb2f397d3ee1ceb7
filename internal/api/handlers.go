package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mweide/shadowtwin/internal/apperr"
	"github.com/mweide/shadowtwin/internal/fragments"
	"github.com/mweide/shadowtwin/internal/freshness"
	"github.com/mweide/shadowtwin/internal/migrate"
	"github.com/mweide/shadowtwin/internal/models"
	"github.com/mweide/shadowtwin/internal/naming"
	"github.com/mweide/shadowtwin/internal/sse"
	"github.com/mweide/shadowtwin/internal/storage"
	"github.com/mweide/shadowtwin/internal/syncback"
	"github.com/mweide/shadowtwin/internal/twin"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *twin.Service
	checker  *freshness.Checker
	syncer   *syncback.Syncer
	engine   *migrate.Engine
	runs     twin.RunStore
	uploader *fragments.Uploader
	files    storage.Provider // may be nil in database-only deployments
	broker   *sse.Broker      // may be nil when events are disabled
}

// NewHandler creates a new Handler.
func NewHandler(svc *twin.Service, checker *freshness.Checker, syncer *syncback.Syncer, engine *migrate.Engine, runs twin.RunStore, uploader *fragments.Uploader, files storage.Provider, broker *sse.Broker) *Handler {
	return &Handler{
		svc:      svc,
		checker:  checker,
		syncer:   syncer,
		engine:   engine,
		runs:     runs,
		uploader: uploader,
		files:    files,
		broker:   broker,
	}
}

// GetTwin handles GET /api/twins/{sourceID}.
//
//	@Summary		Get the full twin document for a source
//	@Tags			twins
//	@Produce		json
//	@Param			sourceID	path		string	true	"Source file id"
//	@Success		200			{object}	TwinDocument
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/twins/{sourceID} [get]
func (h *Handler) GetTwin(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	doc, err := h.svc.GetDocument(r.Context(), sourceID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get twin failed", slog.String("source", sourceID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// UpsertArtifact handles POST /api/twins/{sourceID}/artifacts.
//
//	@Summary		Write one derived artifact (live path)
//	@Tags			twins
//	@Accept			json
//	@Produce		json
//	@Param			sourceID	path		string					true	"Source file id"
//	@Param			body		body		UpsertArtifactRequest	true	"Artifact to write"
//	@Success		200			{object}	ArtifactResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/twins/{sourceID}/artifacts [post]
func (h *Handler) UpsertArtifact(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	sourceID := chi.URLParam(r, "sourceID")

	var req UpsertArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.SourceName == "" || req.Language == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("sourceName and language are required"))
		return
	}

	key := models.ArtifactKey{
		SourceID:     sourceID,
		Kind:         artifactKind(req),
		Language:     req.Language,
		TemplateName: req.TemplateName,
	}

	markdown := req.Markdown
	var frags []models.BinaryFragment
	if h.uploader != nil && h.files != nil {
		doc, err := h.svc.GetDocument(r.Context(), sourceID)
		var fm models.Frontmatter
		if err == nil {
			fm = frontmatterHint(doc)
		}
		out, err := h.uploader.Process(r.Context(), fragments.Input{
			LibraryID:   h.svc.Config().LibraryID,
			SourceID:    sourceID,
			Markdown:    markdown,
			Frontmatter: fm,
			Lookup:      h.companionLookup(req.ParentID, req.SourceName),
		})
		if err != nil {
			slog.Error("fragment processing failed", slog.String("source", sourceID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		markdown = out.Markdown
		frags = out.Fragments
	}

	rec, err := h.svc.UpsertArtifact(r.Context(), twin.UpsertInput{
		SourceID:   sourceID,
		SourceName: req.SourceName,
		ParentID:   req.ParentID,
		Key:        key,
		Markdown:   markdown,
		Fragments:  frags,
	})
	if err != nil {
		var empty *twin.EmptyContentError
		if errors.As(err, &empty) {
			writeJSON(w, http.StatusBadRequest, errorBody(empty.Error()))
			return
		}
		slog.Error("upsert artifact failed",
			slog.String("artifact", key.String()), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	if h.broker != nil {
		h.broker.PublishTwinEvent("upserted", sourceID)
	}
	writeJSON(w, http.StatusOK, ArtifactResponse{
		SourceID:     sourceID,
		Kind:         key.Kind,
		Language:     key.Language,
		TemplateName: key.TemplateName,
		Record:       *rec,
	})
}

// DeleteTwin handles DELETE /api/twins/{sourceID}.
//
//	@Summary		Delete a twin document (administrative)
//	@Tags			twins
//	@Param			sourceID	path	string	true	"Source file id"
//	@Success		204			"Twin deleted"
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/twins/{sourceID} [delete]
func (h *Handler) DeleteTwin(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	if err := h.svc.DeleteDocument(r.Context(), sourceID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("delete twin failed", slog.String("source", sourceID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if h.broker != nil {
		h.broker.PublishTwinEvent("deleted", sourceID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Freshness handles GET /api/twins/{sourceID}/freshness.
//
//	@Summary		Classify drift between source, database, and mirror
//	@Tags			twins
//	@Produce		json
//	@Param			sourceID	path		string	true	"Source file id"
//	@Param			parentId	query		string	false	"Parent folder id"
//	@Success		200			{object}	FreshnessReport
//	@Security		BearerAuth
//	@Router			/twins/{sourceID}/freshness [get]
func (h *Handler) Freshness(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	rep, err := h.checker.Report(r.Context(), sourceID, r.URL.Query().Get("parentId"))
	if err != nil {
		slog.Error("freshness failed", slog.String("source", sourceID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Sync handles POST /api/twins/{sourceID}/sync.
//
//	@Summary		Pull newer mirrored files back into the database
//	@Tags			twins
//	@Produce		json
//	@Param			sourceID	path		string	true	"Source file id"
//	@Param			parentId	query		string	false	"Parent folder id"
//	@Success		200			{object}	SyncReport
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/twins/{sourceID}/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	rep, err := h.syncer.SyncSource(r.Context(), sourceID, r.URL.Query().Get("parentId"))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("sync failed", slog.String("source", sourceID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if h.broker != nil && rep.Synced > 0 {
		h.broker.PublishTwinEvent("synced", sourceID)
	}
	writeJSON(w, http.StatusOK, rep)
}

// StartMigration handles POST /api/admin/migration.
//
//	@Summary		Start a background migration run
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MigrationStartRequest	true	"Migration parameters"
//	@Success		202		{object}	MigrationStartResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/admin/migration [post]
func (h *Handler) StartMigration(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("migration unavailable: no file store configured"))
		return
	}
	var req MigrationStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	runID, err := h.engine.Start(r.Context(), models.MigrationParams{
		RootFolderID:      req.RootFolderID,
		Recursive:         req.Recursive,
		DryRun:            req.DryRun,
		CleanupFilesystem: req.CleanupFilesystem,
		Limit:             req.Limit,
	})
	if err != nil {
		slog.Error("start migration failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusAccepted, MigrationStartResponse{RunID: runID})
}

// GetMigration handles GET /api/admin/migration/{runID}.
//
//	@Summary		Get a migration run audit record
//	@Tags			admin
//	@Produce		json
//	@Param			runID	path		string	true	"Run id"
//	@Success		200		{object}	MigrationRun
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/admin/migration/{runID} [get]
func (h *Handler) GetMigration(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := h.runs.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get migration failed", slog.String("run", runID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// artifactKind derives the artifact kind from the request: an explicit kind
// wins, a template implies transformation, everything else is a transcript.
func artifactKind(req UpsertArtifactRequest) models.ArtifactKind {
	if req.Kind != "" {
		return models.ArtifactKind(req.Kind)
	}
	if req.TemplateName != "" {
		return models.KindTransformation
	}
	return models.KindTranscript
}

// frontmatterHint pulls the scope-bearing frontmatter from the most recent
// artifact record so new uploads land in the same object-path scope.
func frontmatterHint(doc *models.ShadowTwinDocument) models.Frontmatter {
	for _, key := range doc.Artifacts.Keys(doc.SourceID) {
		if rec, ok := doc.Artifacts.Lookup(key); ok && !rec.Frontmatter.IsZero() {
			return rec.Frontmatter
		}
	}
	return models.Frontmatter{}
}

// companionLookup resolves fragment references against the source's companion
// folder.
func (h *Handler) companionLookup(parentID, sourceName string) fragments.FileLookup {
	return func(ctx context.Context, name string) (storage.File, []byte, error) {
		folder, err := h.files.Child(ctx, parentID, naming.CompanionFolderName(sourceName))
		if err != nil {
			return storage.File{}, nil, apperr.ErrNotFound
		}
		f, err := h.files.Child(ctx, folder.ID, name)
		if err != nil || f.IsFolder {
			return storage.File{}, nil, apperr.ErrNotFound
		}
		data, err := h.files.Read(ctx, f.ID)
		if err != nil {
			return storage.File{}, nil, err
		}
		return f, data, nil
	}
}
