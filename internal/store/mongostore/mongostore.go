// Package mongostore implements the coordinator's persistence, threshold-config, and directory store contracts
// on top of a MongoDB database, issuing per-document upserts with the official mongo-driver client.
package mongostore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sarayu-io/telemetrymon/internal/batcher"
	"github.com/sarayu-io/telemetrymon/internal/directory"
	"github.com/sarayu-io/telemetrymon/internal/telemetry"
	"github.com/sarayu-io/telemetrymon/internal/telemetrylog"
	"github.com/sarayu-io/telemetrymon/internal/thresholds"
)

// DefaultTimeout bounds any single Mongo operation issued by this store.
const DefaultTimeout = 10 * time.Second

// Store wraps a Mongo database handle with the collections the coordinator's adapters read and write.
type Store struct {
	db  *mongo.Database
	log *slog.Logger
}

// Connect dials uri and returns a Store bound to dbName. Callers own the returned client's lifecycle through
// Store.Disconnect.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return &Store{db: client.Database(dbName), log: telemetrylog.ForComponent("mongostore")}, nil
}

// Disconnect closes the underlying Mongo client.
func (s *Store) Disconnect(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

type sampleRecord struct {
	Message   float64   `bson:"message"`
	Timestamp time.Time `bson:"timestamp"`
}

// BulkAppendSamples issues one upsert per topic, appending its batch of samples to the topic's document via
// $push/$each, creating the document if absent. Per-topic failures are logged and do not abort sibling
// operations; they are aggregated into a single error only when every operation failed.
func (s *Store) BulkAppendSamples(ctx context.Context, ops []batcher.AppendOp) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	collection := s.db.Collection("samples")

	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []error

	wg.Add(len(ops))
	for _, op := range ops {
		go func(op batcher.AppendOp) {
			defer wg.Done()

			records := make([]sampleRecord, len(op.Samples))
			for i, sample := range op.Samples {
				records[i] = sampleRecord{Message: sample.Value, Timestamp: sample.Timestamp}
			}

			_, err := collection.UpdateOne(ctx,
				bson.M{"_id": op.Topic},
				bson.M{"$push": bson.M{"samples": bson.M{"$each": records}}},
				options.Update().SetUpsert(true),
			)
			if err != nil {
				s.log.With(telemetrylog.Error(err), telemetrylog.Topic(op.Topic)).Warn("append samples failed")
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
		}(op)
	}
	wg.Wait()

	if len(failures) > 0 && len(failures) == len(ops) {
		return errors.Join(failures...)
	}
	return nil
}

type thresholdLevelDoc struct {
	Color      string  `bson:"color"`
	Value      float64 `bson:"value"`
	ResetValue float64 `bson:"resetValue"`
}

type thresholdDoc struct {
	Topic  string              `bson:"_id"`
	Levels []thresholdLevelDoc `bson:"levels"`
}

// LoadThresholds fetches the threshold document for topic.
func (s *Store) LoadThresholds(ctx context.Context, topic string) (telemetry.ThresholdConfig, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var doc thresholdDoc
	err := s.db.Collection("thresholds").FindOne(ctx, bson.M{"_id": topic}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return telemetry.ThresholdConfig{}, false, nil
	}
	if err != nil {
		return telemetry.ThresholdConfig{}, false, err
	}

	levels := make([]telemetry.ThresholdLevel, len(doc.Levels))
	for i, l := range doc.Levels {
		levels[i] = telemetry.ThresholdLevel{Color: l.Color, Value: l.Value, ResetValue: l.ResetValue}
	}

	return telemetry.ThresholdConfig{Topic: topic, Levels: levels}, true, nil
}

// UpsertThresholds replaces the threshold document for topic with newLevels, creating it if absent.
func (s *Store) UpsertThresholds(ctx context.Context, topic string, newLevels []telemetry.ThresholdLevel) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	levels := make([]thresholdLevelDoc, len(newLevels))
	for i, l := range newLevels {
		levels[i] = thresholdLevelDoc{Color: l.Color, Value: l.Value, ResetValue: l.ResetValue}
	}

	_, err := s.db.Collection("thresholds").ReplaceOne(ctx,
		bson.M{"_id": topic},
		thresholdDoc{Topic: topic, Levels: levels},
		options.Replace().SetUpsert(true),
	)
	return err
}

type emailDoc struct {
	Email string `bson:"email"`
}

// LoadEmployeesByTopic returns every employee document whose topics array contains topic.
func (s *Store) LoadEmployeesByTopic(ctx context.Context, topic string) ([]directory.Employee, error) {
	docs, err := s.loadEmailsByTopic(ctx, "employees", topic)
	if err != nil {
		return nil, err
	}

	employees := make([]directory.Employee, len(docs))
	for i, d := range docs {
		employees[i] = directory.Employee{Email: d.Email}
	}
	return employees, nil
}

// LoadSupervisorsByTopic returns every supervisor document whose topics array contains topic.
func (s *Store) LoadSupervisorsByTopic(ctx context.Context, topic string) ([]directory.Supervisor, error) {
	docs, err := s.loadEmailsByTopic(ctx, "supervisors", topic)
	if err != nil {
		return nil, err
	}

	supervisors := make([]directory.Supervisor, len(docs))
	for i, d := range docs {
		supervisors[i] = directory.Supervisor{Email: d.Email}
	}
	return supervisors, nil
}

func (s *Store) loadEmailsByTopic(ctx context.Context, collection, topic string) ([]emailDoc, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{"topics": topic})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []emailDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

var _ thresholds.Store = (*Store)(nil)
var _ directory.Store = (*Store)(nil)
var _ batcher.Store = (*Store)(nil)
