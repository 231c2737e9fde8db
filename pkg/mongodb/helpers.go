package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OperationRecorder receives the outcome of a collection operation
type OperationRecorder interface {
	RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration)
}

// Observe times fn and reports it to rec. rec may be nil.
func Observe(rec OperationRecorder, collection, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	if rec != nil {
		success := err == nil || IsNotFound(err)
		rec.RecordMongoDBOperation(collection, operation, success, time.Since(start))
	}
	return err
}

// Now returns the current time in UTC truncated to the millisecond precision
// BSON dates store.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// SortAscending creates an ascending sort option
func SortAscending(field string) bson.D {
	return bson.D{{Key: field, Value: 1}}
}

// IndexSpec is a declarative index definition used by EnsureIndexes
type IndexSpec struct {
	Keys   bson.D
	Unique bool
	Name   string
	// PartialFilter restricts the index to matching documents
	PartialFilter bson.M
	// TTL expires documents this long after the indexed date field
	TTL time.Duration
}

// EnsureIndexes creates the given indexes on coll
func EnsureIndexes(ctx context.Context, coll *mongo.Collection, specs []IndexSpec) error {
	if len(specs) == 0 {
		return nil
	}
	models := make([]mongo.IndexModel, 0, len(specs))
	for _, spec := range specs {
		opts := options.Index()
		if spec.Unique {
			opts.SetUnique(true)
		}
		if spec.Name != "" {
			opts.SetName(spec.Name)
		}
		if spec.PartialFilter != nil {
			opts.SetPartialFilterExpression(spec.PartialFilter)
		}
		if spec.TTL > 0 {
			opts.SetExpireAfterSeconds(int32(spec.TTL.Seconds()))
		}
		models = append(models, mongo.IndexModel{Keys: spec.Keys, Options: opts})
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}
