package mapstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hochfrequenz/tasklink/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mappingDoc struct {
	RecordID        string     `bson:"_id"`
	Type            string     `bson:"type"`
	LocalID         string     `bson:"local_id"`
	RemoteID        string     `bson:"remote_id"`
	Category        string     `bson:"category,omitempty"`
	Title           string     `bson:"title,omitempty"`
	LastSyncedAt    time.Time  `bson:"last_synced_at"`
	LocalUpdatedAt  *time.Time `bson:"local_updated_at,omitempty"`
	RemoteUpdatedAt *time.Time `bson:"remote_updated_at,omitempty"`
}

type runDoc struct {
	RunID       string               `bson:"_id"`
	StartedAt   time.Time            `bson:"started_at"`
	FinishedAt  time.Time            `bson:"finished_at"`
	Phase       string               `bson:"phase"`
	Outcome     string               `bson:"outcome"`
	Projects    domain.Counts        `bson:"projects"`
	Tasks       domain.Counts        `bson:"tasks"`
	Conflicts   int                  `bson:"conflicts"`
	Mapped      int                  `bson:"mapped_projects"`
	Errors      []domain.EntityError `bson:"errors,omitempty"`
	Failure     string               `bson:"failure,omitempty"`
	FailedPhase string               `bson:"failed_phase,omitempty"`
	Notes       string               `bson:"notes"`
}

// MongoRepository stores mappings and runs in MongoDB collections
type MongoRepository struct {
	provider CollectionProvider
	closer   func(context.Context) error
}

// NewMongoRepository creates a new MongoRepository
func NewMongoRepository(provider CollectionProvider) *MongoRepository {
	return &MongoRepository{provider: provider}
}

// ReadAll returns every mapping document
func (r *MongoRepository) ReadAll(ctx context.Context) ([]domain.MappingEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "type", Value: 1}, {Key: "local_id", Value: 1}})
	cur, err := r.provider.Collection(mappingsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", mappingsCollection, err)
	}

	var docs []mappingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", mappingsCollection, err)
	}

	entries := make([]domain.MappingEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, domain.MappingEntry{
			LocalID:         d.LocalID,
			RemoteID:        d.RemoteID,
			Type:            domain.EntityType(d.Type),
			Category:        d.Category,
			Title:           d.Title,
			LastSyncedAt:    d.LastSyncedAt,
			LocalUpdatedAt:  d.LocalUpdatedAt,
			RemoteUpdatedAt: d.RemoteUpdatedAt,
			RecordID:        d.RecordID,
		})
	}
	return entries, nil
}

// WriteOne upserts the document keyed by (type, local_id). An existing
// document keeps its _id.
func (r *MongoRepository) WriteOne(ctx context.Context, e domain.MappingEntry) (string, error) {
	recordID := e.RecordID
	if recordID == "" {
		recordID = uuid.NewString()
	}

	filter := bson.M{"type": string(e.Type), "local_id": e.LocalID}
	set := bson.M{
		"remote_id":      e.RemoteID,
		"category":       e.Category,
		"title":          e.Title,
		"last_synced_at": e.LastSyncedAt.UTC(),
	}
	if e.LocalUpdatedAt != nil {
		set["local_updated_at"] = e.LocalUpdatedAt.UTC()
	}
	if e.RemoteUpdatedAt != nil {
		set["remote_updated_at"] = e.RemoteUpdatedAt.UTC()
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"_id": recordID},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored mappingDoc
	res := r.provider.Collection(mappingsCollection).FindOneAndUpdate(ctx, filter, update, opts)
	if err := res.Decode(&stored); err != nil {
		return "", fmt.Errorf("upserting mapping %s: %w", e.Key(), err)
	}
	return stored.RecordID, nil
}

// RecordRun inserts a run document
func (r *MongoRepository) RecordRun(ctx context.Context, run domain.RunResult) error {
	doc := runDoc{
		RunID:       run.RunID,
		StartedAt:   run.StartedAt.UTC(),
		FinishedAt:  run.FinishedAt.UTC(),
		Phase:       string(run.Phase),
		Outcome:     string(run.Outcome()),
		Projects:    run.Projects,
		Tasks:       run.Tasks,
		Conflicts:   run.Conflicts,
		Mapped:      run.MappedProjects,
		Errors:      run.Errors,
		Failure:     run.Failure,
		FailedPhase: string(run.FailedPhase),
		Notes:       run.Notes(),
	}
	if _, err := r.provider.Collection(runsCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert into %s collection: %w", runsCollection, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first
func (r *MongoRepository) ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(int64(limit))
	cur, err := r.provider.Collection(runsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", runsCollection, err)
	}

	var docs []runDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", runsCollection, err)
	}

	runs := make([]domain.RunResult, 0, len(docs))
	for _, d := range docs {
		runs = append(runs, domain.RunResult{
			RunID:          d.RunID,
			StartedAt:      d.StartedAt,
			FinishedAt:     d.FinishedAt,
			Phase:          domain.Phase(d.Phase),
			Projects:       d.Projects,
			Tasks:          d.Tasks,
			Conflicts:      d.Conflicts,
			MappedProjects: d.Mapped,
			Errors:         d.Errors,
			Failure:        d.Failure,
			FailedPhase:    domain.Phase(d.FailedPhase),
		})
	}
	return runs, nil
}

// Close disconnects the client when the repository owns it
func (r *MongoRepository) Close() error {
	if r.closer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.closer(ctx)
}
