package models

// FreshnessStatus describes the relationship between a source file, its
// database record, and its mirrored file-store copy.
type FreshnessStatus string

const (
	// StatusSynced means database and mirror agree within tolerance.
	StatusSynced FreshnessStatus = "synced"
	// StatusSourceNewer means the source document changed after the last
	// database write; the artifact should be regenerated.
	StatusSourceNewer FreshnessStatus = "source-newer"
	// StatusStorageNewer means the mirrored file was edited after the
	// database record.
	StatusStorageNewer FreshnessStatus = "storage-newer"
	// StatusMongoNewer means the database record is ahead of the mirror.
	StatusMongoNewer FreshnessStatus = "mongo-newer"
	// StatusStorageMissing means a mirror is expected but no mirrored file exists.
	StatusStorageMissing FreshnessStatus = "storage-missing"
	// StatusMongoMissing means no database record exists for the artifact.
	StatusMongoMissing FreshnessStatus = "mongo-missing"
)
