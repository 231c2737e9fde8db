package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	pkgmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
)

const returnsCollection = "return_items"

// ReturnItemRepository stores return items with optimistic versioning
type ReturnItemRepository struct {
	collection *mongo.Collection
	recorder   pkgmongo.OperationRecorder
}

// NewReturnItemRepository creates a return item repository on db
func NewReturnItemRepository(db *mongo.Database, recorder pkgmongo.OperationRecorder) *ReturnItemRepository {
	return &ReturnItemRepository{collection: db.Collection(returnsCollection), recorder: recorder}
}

// EnsureIndexes creates the return item indexes
func (r *ReturnItemRepository) EnsureIndexes(ctx context.Context) error {
	specs := []pkgmongo.IndexSpec{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}, Name: "status_created"},
		{Keys: bson.D{{Key: "barcode", Value: 1}}, Name: "barcode"},
	}
	if err := pkgmongo.EnsureIndexes(ctx, r.collection, specs); err != nil {
		return fmt.Errorf("failed to create return item indexes: %w", err)
	}
	return nil
}

// Save inserts a new item or replaces the stored one at the same version
func (r *ReturnItemRepository) Save(ctx context.Context, item *domain.ReturnItem) error {
	expected := item.Version
	doc := *item
	doc.Version = expected + 1

	if expected == 0 {
		err := pkgmongo.Observe(r.recorder, returnsCollection, "insert", func() error {
			_, err := r.collection.InsertOne(ctx, &doc)
			return err
		})
		if err != nil {
			if pkgmongo.IsDuplicateKey(err) {
				return fmt.Errorf("%w: return item %s already exists", domain.ErrConcurrentUpdate, item.ID)
			}
			return fmt.Errorf("failed to insert return item: %w", err)
		}
		item.Version = doc.Version
		return nil
	}

	var result *mongo.UpdateResult
	err := pkgmongo.Observe(r.recorder, returnsCollection, "replace", func() error {
		var err error
		result, err = r.collection.ReplaceOne(ctx, bson.M{"_id": item.ID, "version": expected}, &doc)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save return item: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: return item %s version %d", domain.ErrConcurrentUpdate, item.ID, expected)
	}
	item.Version = doc.Version
	return nil
}

// FindByID retrieves a return item
func (r *ReturnItemRepository) FindByID(ctx context.Context, id string) (*domain.ReturnItem, error) {
	var item domain.ReturnItem
	err := pkgmongo.Observe(r.recorder, returnsCollection, "find", func() error {
		return r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	})
	if err != nil {
		if pkgmongo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrReturnItemNotFound, id)
		}
		return nil, fmt.Errorf("failed to find return item: %w", err)
	}
	return &item, nil
}

// FindByStatus lists return items in status, oldest first
func (r *ReturnItemRepository) FindByStatus(ctx context.Context, status domain.ReturnStatus, limit int) ([]*domain.ReturnItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	var items []*domain.ReturnItem
	err := pkgmongo.Observe(r.recorder, returnsCollection, "find", func() error {
		cursor, err := r.collection.Find(ctx, bson.M{"status": string(status)}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &items)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find return items: %w", err)
	}
	return items, nil
}

var _ domain.ReturnItemRepository = (*ReturnItemRepository)(nil)
