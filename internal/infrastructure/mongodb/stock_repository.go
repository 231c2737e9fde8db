package mongodb

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	pkgmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
)

const (
	movementsCollection  = "stock_movements"
	locationsCollection  = "location_stock"
	aggregatesCollection = "product_stock"
)

// locationDocument keys a location row by product and shelf
type locationDocument struct {
	ID                   string `bson:"_id"`
	domain.LocationStock `bson:",inline"`
}

// StockRepository stores the ledger, location stock and product aggregates
type StockRepository struct {
	movements  *mongo.Collection
	locations  *mongo.Collection
	aggregates *mongo.Collection
	recorder   pkgmongo.OperationRecorder
}

// NewStockRepository creates a stock repository on db. recorder may be nil.
func NewStockRepository(db *mongo.Database, recorder pkgmongo.OperationRecorder) *StockRepository {
	return &StockRepository{
		movements:  db.Collection(movementsCollection),
		locations:  db.Collection(locationsCollection),
		aggregates: db.Collection(aggregatesCollection),
		recorder:   recorder,
	}
}

// EnsureIndexes creates the stock collections' indexes
func (r *StockRepository) EnsureIndexes(ctx context.Context) error {
	movementIndexes := []pkgmongo.IndexSpec{
		{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "recordedAt", Value: 1}}, Name: "product_recorded"},
		{Keys: bson.D{{Key: "sourceShelfId", Value: 1}, {Key: "recordedAt", Value: 1}}, Name: "source_shelf_recorded"},
		{Keys: bson.D{{Key: "targetShelfId", Value: 1}, {Key: "recordedAt", Value: 1}}, Name: "target_shelf_recorded"},
		{Keys: bson.D{{Key: "reference.kind", Value: 1}, {Key: "reference.id", Value: 1}}, Name: "reference"},
		{
			Keys:   bson.D{{Key: "reference.id", Value: 1}},
			Name:   "one_reversal_per_movement",
			Unique: true,
			PartialFilter: bson.M{
				"type":           string(domain.MovementCancel),
				"reference.kind": string(domain.ReferenceMovement),
			},
		},
	}
	if err := pkgmongo.EnsureIndexes(ctx, r.movements, movementIndexes); err != nil {
		return fmt.Errorf("failed to create movement indexes: %w", err)
	}

	locationIndexes := []pkgmongo.IndexSpec{
		{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "shelfId", Value: 1}}, Name: "product_shelf", Unique: true},
		{Keys: bson.D{{Key: "shelfId", Value: 1}}, Name: "shelf"},
	}
	if err := pkgmongo.EnsureIndexes(ctx, r.locations, locationIndexes); err != nil {
		return fmt.Errorf("failed to create location indexes: %w", err)
	}
	return nil
}

// AppendMovement inserts a ledger entry. Entries are never updated.
func (r *StockRepository) AppendMovement(ctx context.Context, m *domain.StockMovement) error {
	err := pkgmongo.Observe(r.recorder, movementsCollection, "insert", func() error {
		_, err := r.movements.InsertOne(ctx, m)
		return err
	})
	if err != nil {
		if pkgmongo.IsDuplicateKey(err) && m.Type == domain.MovementCancel {
			return fmt.Errorf("%w: %s", domain.ErrAlreadyReversed, m.Reference.ID)
		}
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

// FindMovement retrieves a ledger entry by id
func (r *StockRepository) FindMovement(ctx context.Context, id string) (*domain.StockMovement, error) {
	var m domain.StockMovement
	err := pkgmongo.Observe(r.recorder, movementsCollection, "find", func() error {
		return r.movements.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	})
	if err != nil {
		if pkgmongo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMovementNotFound, id)
		}
		return nil, fmt.Errorf("failed to find movement: %w", err)
	}
	return &m, nil
}

// FindReversal returns the CANCEL entry compensating movementID, or nil
func (r *StockRepository) FindReversal(ctx context.Context, movementID string) (*domain.StockMovement, error) {
	filter := bson.M{
		"type":           string(domain.MovementCancel),
		"reference.kind": string(domain.ReferenceMovement),
		"reference.id":   movementID,
	}
	var m domain.StockMovement
	err := pkgmongo.Observe(r.recorder, movementsCollection, "find", func() error {
		return r.movements.FindOne(ctx, filter).Decode(&m)
	})
	if err != nil {
		if pkgmongo.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find reversal: %w", err)
	}
	return &m, nil
}

// ListMovements returns matching entries oldest first
func (r *StockRepository) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recordedAt", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	var out []*domain.StockMovement
	err := pkgmongo.Observe(r.recorder, movementsCollection, "find", func() error {
		cursor, err := r.movements.Find(ctx, movementQuery(filter), opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return out, nil
}

func movementQuery(f domain.MovementFilter) bson.M {
	q := bson.M{}
	if f.ProductID != "" {
		q["productId"] = f.ProductID
	}
	if f.ShelfID != "" {
		// an entry changes its source shelf when OUT, its target when IN
		q["$or"] = bson.A{
			bson.M{"direction": string(domain.DirectionOut), "sourceShelfId": f.ShelfID},
			bson.M{"direction": string(domain.DirectionIn), "targetShelfId": f.ShelfID},
		}
	}
	if f.Type != "" {
		q["type"] = string(f.Type)
	}
	if f.ReferenceKind != "" {
		q["reference.kind"] = string(f.ReferenceKind)
	}
	if f.ReferenceID != "" {
		q["reference.id"] = f.ReferenceID
	}
	if f.From != nil || f.To != nil {
		window := bson.M{}
		if f.From != nil {
			window["$gte"] = *f.From
		}
		if f.To != nil {
			window["$lt"] = *f.To
		}
		q["recordedAt"] = window
	}
	return q
}

// GetLocationStock returns the stock of productID on shelfID
func (r *StockRepository) GetLocationStock(ctx context.Context, productID, shelfID string) (*domain.LocationStock, error) {
	var doc locationDocument
	err := pkgmongo.Observe(r.recorder, locationsCollection, "find", func() error {
		return r.locations.FindOne(ctx, bson.M{"_id": domain.LocationKey(productID, shelfID)}).Decode(&doc)
	})
	if err != nil {
		if pkgmongo.IsNotFound(err) {
			return domain.NewLocationStock(productID, shelfID), nil
		}
		return nil, fmt.Errorf("failed to find location stock: %w", err)
	}
	return &doc.LocationStock, nil
}

// SaveLocationStock upserts a location row, removing it at zero
func (r *StockRepository) SaveLocationStock(ctx context.Context, stock *domain.LocationStock) error {
	key := stock.Key()
	if stock.IsEmpty() {
		err := pkgmongo.Observe(r.recorder, locationsCollection, "delete", func() error {
			_, err := r.locations.DeleteOne(ctx, bson.M{"_id": key})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to delete location stock: %w", err)
		}
		return nil
	}

	doc := locationDocument{ID: key, LocationStock: *stock}
	err := pkgmongo.Observe(r.recorder, locationsCollection, "upsert", func() error {
		_, err := r.locations.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save location stock: %w", err)
	}
	return nil
}

// ListLocationStock returns a product's locations ordered by shelf id
func (r *StockRepository) ListLocationStock(ctx context.Context, productID string) ([]*domain.LocationStock, error) {
	return r.listLocations(ctx, bson.M{"productId": productID})
}

// ListLocationStockByShelf returns the products stocked on shelfID
func (r *StockRepository) ListLocationStockByShelf(ctx context.Context, shelfID string) ([]*domain.LocationStock, error) {
	return r.listLocations(ctx, bson.M{"shelfId": shelfID})
}

func (r *StockRepository) listLocations(ctx context.Context, filter bson.M) ([]*domain.LocationStock, error) {
	var docs []locationDocument
	err := pkgmongo.Observe(r.recorder, locationsCollection, "find", func() error {
		cursor, err := r.locations.Find(ctx, filter, options.Find().SetSort(pkgmongo.SortAscending("_id")))
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list location stock: %w", err)
	}

	out := make([]*domain.LocationStock, len(docs))
	for i := range docs {
		out[i] = &docs[i].LocationStock
	}
	return out, nil
}

// GetProductAggregate returns the aggregate of productID
func (r *StockRepository) GetProductAggregate(ctx context.Context, productID string) (*domain.ProductAggregate, error) {
	var agg domain.ProductAggregate
	err := pkgmongo.Observe(r.recorder, aggregatesCollection, "find", func() error {
		return r.aggregates.FindOne(ctx, bson.M{"_id": productID}).Decode(&agg)
	})
	if err != nil {
		if pkgmongo.IsNotFound(err) {
			return domain.NewProductAggregate(productID), nil
		}
		return nil, fmt.Errorf("failed to find product stock: %w", err)
	}
	return &agg, nil
}

// SaveProductAggregate upserts an aggregate
func (r *StockRepository) SaveProductAggregate(ctx context.Context, agg *domain.ProductAggregate) error {
	err := pkgmongo.Observe(r.recorder, aggregatesCollection, "upsert", func() error {
		_, err := r.aggregates.ReplaceOne(ctx, bson.M{"_id": agg.ProductID}, agg, options.Replace().SetUpsert(true))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save product stock: %w", err)
	}
	return nil
}

// ListProductIDs returns every product with an aggregate, sorted
func (r *StockRepository) ListProductIDs(ctx context.Context) ([]string, error) {
	var raw []interface{}
	err := pkgmongo.Observe(r.recorder, aggregatesCollection, "distinct", func() error {
		var err error
		raw, err = r.aggregates.Distinct(ctx, "_id", bson.M{})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

var _ domain.StockRepository = (*StockRepository)(nil)
