package models

import "time"

// MigrationStatus is the lifecycle state of a migration run.
type MigrationStatus string

const (
	MigrationRunning   MigrationStatus = "running"
	MigrationCompleted MigrationStatus = "completed"
	MigrationFailed    MigrationStatus = "failed"
)

// MigrationParams are the caller-supplied inputs of a migration run.
type MigrationParams struct {
	RootFolderID      string `bson:"rootFolderId" json:"rootFolderId"`
	Recursive         bool   `bson:"recursive" json:"recursive"`
	DryRun            bool   `bson:"dryRun" json:"dryRun"`
	CleanupFilesystem bool   `bson:"cleanupFilesystem" json:"cleanupFilesystem"`
	Limit             int    `bson:"limit,omitempty" json:"limit,omitempty"`
}

// MigrationStep is one timestamped entry in a run's ordered log.
type MigrationStep struct {
	At      time.Time `bson:"at" json:"at"`
	Message string    `bson:"message" json:"message"`
}

// MigrationError records a per-source failure without aborting the run.
type MigrationError struct {
	SourceID string `bson:"sourceId" json:"sourceId"`
	Message  string `bson:"message" json:"message"`
}

// MigrationReport is the final tally of a run.
type MigrationReport struct {
	SourcesScanned    int              `bson:"sourcesScanned" json:"sourcesScanned"`
	ArtifactsFound    int              `bson:"artifactsFound" json:"artifactsFound"`
	ArtifactsUpserted int              `bson:"artifactsUpserted" json:"artifactsUpserted"`
	ArtifactsDeleted  int              `bson:"artifactsDeleted" json:"artifactsDeleted"`
	FoldersDeleted    int              `bson:"foldersDeleted" json:"foldersDeleted"`
	Errors            []MigrationError `bson:"errors" json:"errors"`
}

// MigrationRun is the audit record of one migration. Steps are append-only
// while the run is in progress; the run is finalized exactly once.
type MigrationRun struct {
	RunID      string          `bson:"runId" json:"runId"`
	LibraryID  string          `bson:"libraryId" json:"libraryId"`
	Params     MigrationParams `bson:"params" json:"params"`
	Status     MigrationStatus `bson:"status" json:"status"`
	Steps      []MigrationStep `bson:"steps" json:"steps"`
	Report     MigrationReport `bson:"report" json:"report"`
	StartedAt  time.Time       `bson:"startedAt" json:"startedAt"`
	FinishedAt *time.Time      `bson:"finishedAt,omitempty" json:"finishedAt,omitempty"`
}
