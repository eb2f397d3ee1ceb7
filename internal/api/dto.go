package api

import (
	"github.com/mweide/shadowtwin/internal/freshness"
	"github.com/mweide/shadowtwin/internal/models"
	"github.com/mweide/shadowtwin/internal/syncback"
)

// UpsertArtifactRequest is the request body for the live-path artifact write.
type UpsertArtifactRequest struct {
	SourceName   string `json:"sourceName" example:"lecture.pdf" validate:"required"`
	ParentID     string `json:"parentId" example:"course-a"`
	Kind         string `json:"kind" example:"transcript"`
	Language     string `json:"language" example:"de" validate:"required"`
	TemplateName string `json:"templateName,omitempty" example:"summary"`
	Markdown     string `json:"markdown" validate:"required"`
}

// ArtifactResponse is returned after a successful artifact write.
type ArtifactResponse struct {
	SourceID     string                `json:"sourceId" validate:"required"`
	Kind         models.ArtifactKind   `json:"kind" validate:"required"`
	Language     string                `json:"language" validate:"required"`
	TemplateName string                `json:"templateName,omitempty"`
	Record       models.ArtifactRecord `json:"record" validate:"required"`
}

// TwinDocument is the full twin aggregate (aliased from the domain layer).
type TwinDocument = models.ShadowTwinDocument

// FreshnessReport is the freshness query response (aliased from the domain layer).
type FreshnessReport = freshness.Report

// SyncReport is the sync operation response (aliased from the domain layer).
type SyncReport = syncback.Report

// MigrationStartRequest is the request body for starting a migration run.
type MigrationStartRequest struct {
	RootFolderID      string `json:"rootFolderId" example:"course-a"`
	Recursive         bool   `json:"recursive" example:"true"`
	DryRun            bool   `json:"dryRun" example:"false"`
	CleanupFilesystem bool   `json:"cleanupFilesystem" example:"false"`
	Limit             int    `json:"limit" example:"100"`
}

// MigrationStartResponse returns the id of the accepted background run.
type MigrationStartResponse struct {
	RunID string `json:"runId" validate:"required"`
}

// MigrationRun is the run audit record (aliased from the domain layer).
type MigrationRun = models.MigrationRun
