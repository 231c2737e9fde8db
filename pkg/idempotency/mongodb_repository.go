package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName holds idempotency records
const CollectionName = "idempotency_keys"

// MongoKeyRepository implements KeyRepository on MongoDB
type MongoKeyRepository struct {
	collection *mongo.Collection
}

// NewMongoKeyRepository creates a MongoDB-backed key repository
func NewMongoKeyRepository(db *mongo.Database) *MongoKeyRepository {
	return &MongoKeyRepository{collection: db.Collection(CollectionName)}
}

// AcquireLock implements KeyRepository. The upsert is keyed on _id, so two
// racing inserts resolve to one document; the loser sees isNew=false.
func (r *MongoKeyRepository) AcquireLock(ctx context.Context, rec *Record, staleAfter time.Duration) (*Record, bool, error) {
	now := time.Now().UTC()
	token := uuid.NewString()

	insert := bson.M{
		"key":                rec.Key,
		"serviceId":          rec.ServiceID,
		"requestPath":        rec.RequestPath,
		"requestMethod":      rec.RequestMethod,
		"requestFingerprint": rec.RequestFingerprint,
		"createdAt":          rec.CreatedAt,
		"expiresAt":          rec.ExpiresAt,
		"lockedAt":           now,
		"lockToken":          token,
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored Record
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": rec.ID},
		bson.M{"$setOnInsert": insert},
		opts,
	).Decode(&stored)
	if mongo.IsDuplicateKeyError(err) {
		// lost an upsert race; read the winner
		err = r.collection.FindOne(ctx, bson.M{"_id": rec.ID}).Decode(&stored)
	}
	if err != nil {
		return nil, false, err
	}

	if stored.LockToken == token {
		return &stored, true, nil
	}

	if !stored.IsCompleted() && (stored.LockedAt == nil || now.Sub(*stored.LockedAt) >= staleAfter) {
		// take over a stale lock only if nobody else did first
		res, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": rec.ID, "completedAt": bson.M{"$exists": false}, "lockedAt": stored.LockedAt},
			bson.M{"$set": bson.M{"lockedAt": now, "lockToken": token, "requestFingerprint": rec.RequestFingerprint}},
		)
		if err != nil {
			return nil, false, err
		}
		if res.ModifiedCount == 1 {
			stored.LockedAt = &now
			stored.RequestFingerprint = rec.RequestFingerprint
			return &stored, true, nil
		}
	}
	return &stored, false, nil
}

// ReleaseLock implements KeyRepository
func (r *MongoKeyRepository) ReleaseLock(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "completedAt": bson.M{"$exists": false}})
	return err
}

// StoreResponse implements KeyRepository
func (r *MongoKeyRepository) StoreResponse(ctx context.Context, id string, code int, body []byte, headers map[string]string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{
				"responseCode":    code,
				"responseBody":    body,
				"responseHeaders": headers,
				"completedAt":     time.Now().UTC(),
			},
			"$unset": bson.M{"lockedAt": ""},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Clean implements KeyRepository. The TTL index normally does this.
func (r *MongoKeyRepository) Clean(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": before}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// EnsureIndexes creates the TTL index on expiresAt
func (r *MongoKeyRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetName("idx_expiresAt_ttl").SetExpireAfterSeconds(0),
	})
	return err
}
