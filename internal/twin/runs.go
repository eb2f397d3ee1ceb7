package twin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mweide/shadowtwin/internal/apperr"
	"github.com/mweide/shadowtwin/internal/models"
)

// RunStore persists migration run audit records.
type RunStore interface {
	// Create inserts a new run in running state.
	Create(ctx context.Context, run *models.MigrationRun) error
	// AppendStep appends one timestamped log entry to a running run.
	AppendStep(ctx context.Context, runID, message string) error
	// Finalize sets the terminal status and report. A run is finalized once.
	Finalize(ctx context.Context, runID string, status models.MigrationStatus, report models.MigrationReport) error
	// Get returns a run by id, or apperr.ErrNotFound.
	Get(ctx context.Context, runID string) (*models.MigrationRun, error)
}

// MongoRunStore keeps migration runs in a shared collection across libraries.
type MongoRunStore struct {
	col *mongo.Collection
}

// NewMongoRunStore builds a run store over an injected client handle.
func NewMongoRunStore(client *mongo.Client, database string) *MongoRunStore {
	return &MongoRunStore{col: client.Database(database).Collection("shadow_twin_migrations")}
}

// Create inserts a new run record.
func (s *MongoRunStore) Create(ctx context.Context, run *models.MigrationRun) error {
	if _, err := s.col.InsertOne(ctx, run); err != nil {
		return fmt.Errorf("runs: create %s: %w", run.RunID, err)
	}
	return nil
}

// AppendStep pushes one log entry onto the run.
func (s *MongoRunStore) AppendStep(ctx context.Context, runID, message string) error {
	step := models.MigrationStep{At: time.Now().UTC(), Message: message}
	_, err := s.col.UpdateOne(ctx, bson.M{"runId": runID},
		bson.M{"$push": bson.M{"steps": step}})
	if err != nil {
		return fmt.Errorf("runs: append step: %w", err)
	}
	return nil
}

// Finalize records the terminal status and final report.
func (s *MongoRunStore) Finalize(ctx context.Context, runID string, status models.MigrationStatus, report models.MigrationReport) error {
	now := time.Now().UTC()
	_, err := s.col.UpdateOne(ctx, bson.M{"runId": runID}, bson.M{"$set": bson.M{
		"status":     status,
		"report":     report,
		"finishedAt": now,
	}})
	if err != nil {
		return fmt.Errorf("runs: finalize %s: %w", runID, err)
	}
	return nil
}

// Get returns a run by id.
func (s *MongoRunStore) Get(ctx context.Context, runID string) (*models.MigrationRun, error) {
	var run models.MigrationRun
	err := s.col.FindOne(ctx, bson.M{"runId": runID}).Decode(&run)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("runs: get %s: %w", runID, err)
	}
	return &run, nil
}

// Verify *MongoRunStore satisfies RunStore at compile time.
var _ RunStore = (*MongoRunStore)(nil)
