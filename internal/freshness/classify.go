// Package freshness classifies the drift between a source document, its
// database record, and its mirrored file-store copy.
package freshness

import (
	"time"

	"github.com/mweide/shadowtwin/internal/models"
)

// Tolerance absorbs write-propagation latency between the two stores. Mirror
// writes land a few seconds after the database write under normal timing;
// without the band the engine flaps between synced and storage-newer.
const Tolerance = 5 * time.Second

// Classify maps the three clocks of one artifact onto a freshness status.
// Nil timestamps mean "absent". Precedence is strict: a missing database
// record outranks everything, then a missing expected mirror, then a newer
// source, then the mirror/database comparison within the tolerance band.
func Classify(sourceModifiedAt, dbUpdatedAt, mirrorModifiedAt *time.Time, mirrorExpected bool) models.FreshnessStatus {
	if dbUpdatedAt == nil {
		return models.StatusMongoMissing
	}
	if mirrorExpected && mirrorModifiedAt == nil {
		return models.StatusStorageMissing
	}
	if sourceModifiedAt != nil && sourceModifiedAt.After(*dbUpdatedAt) {
		return models.StatusSourceNewer
	}
	if mirrorModifiedAt == nil {
		return models.StatusSynced
	}
	switch d := mirrorModifiedAt.Sub(*dbUpdatedAt); {
	case d > Tolerance:
		return models.StatusStorageNewer
	case d < -Tolerance:
		return models.StatusMongoNewer
	default:
		return models.StatusSynced
	}
}
