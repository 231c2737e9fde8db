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

const routesCollection = "routes"

// RouteRepository stores routes with optimistic versioning
type RouteRepository struct {
	collection *mongo.Collection
	recorder   pkgmongo.OperationRecorder
}

// NewRouteRepository creates a route repository on db. recorder may be nil.
func NewRouteRepository(db *mongo.Database, recorder pkgmongo.OperationRecorder) *RouteRepository {
	return &RouteRepository{collection: db.Collection(routesCollection), recorder: recorder}
}

// EnsureIndexes creates the route indexes
func (r *RouteRepository) EnsureIndexes(ctx context.Context) error {
	specs := []pkgmongo.IndexSpec{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}, Name: "status_created"},
		{Keys: bson.D{{Key: "orderIds", Value: 1}, {Key: "status", Value: 1}}, Name: "order_status"},
	}
	if err := pkgmongo.EnsureIndexes(ctx, r.collection, specs); err != nil {
		return fmt.Errorf("failed to create route indexes: %w", err)
	}
	return nil
}

// Save inserts a new route or replaces the stored one at the same version
func (r *RouteRepository) Save(ctx context.Context, route *domain.Route) error {
	expected := route.Version
	doc := *route
	doc.Version = expected + 1

	if expected == 0 {
		err := pkgmongo.Observe(r.recorder, routesCollection, "insert", func() error {
			_, err := r.collection.InsertOne(ctx, &doc)
			return err
		})
		if err != nil {
			if pkgmongo.IsDuplicateKey(err) {
				return fmt.Errorf("%w: route %s already exists", domain.ErrConcurrentUpdate, route.ID)
			}
			return fmt.Errorf("failed to insert route: %w", err)
		}
		route.Version = doc.Version
		return nil
	}

	var result *mongo.UpdateResult
	err := pkgmongo.Observe(r.recorder, routesCollection, "replace", func() error {
		var err error
		result, err = r.collection.ReplaceOne(ctx, bson.M{"_id": route.ID, "version": expected}, &doc)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save route: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: route %s version %d", domain.ErrConcurrentUpdate, route.ID, expected)
	}
	route.Version = doc.Version
	return nil
}

// FindByID retrieves a route
func (r *RouteRepository) FindByID(ctx context.Context, routeID string) (*domain.Route, error) {
	var route domain.Route
	err := pkgmongo.Observe(r.recorder, routesCollection, "find", func() error {
		return r.collection.FindOne(ctx, bson.M{"_id": routeID}).Decode(&route)
	})
	if err != nil {
		if pkgmongo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRouteNotFound, routeID)
		}
		return nil, fmt.Errorf("failed to find route: %w", err)
	}
	return &route, nil
}

// FindByStatus lists routes in status, newest first
func (r *RouteRepository) FindByStatus(ctx context.Context, status domain.RouteStatus, limit int) ([]*domain.Route, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{"status": string(status)}, opts)
}

// FindActiveByOrderIDs returns COLLECTING or READY routes holding any of orderIDs
func (r *RouteRepository) FindActiveByOrderIDs(ctx context.Context, orderIDs []string) ([]*domain.Route, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	filter := bson.M{
		"orderIds": bson.M{"$in": orderIDs},
		"status": bson.M{"$in": bson.A{
			string(domain.RouteStatusCollecting),
			string(domain.RouteStatusReady),
		}},
	}
	return r.find(ctx, filter, options.Find().SetSort(pkgmongo.SortAscending("_id")))
}

func (r *RouteRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Route, error) {
	var routes []*domain.Route
	err := pkgmongo.Observe(r.recorder, routesCollection, "find", func() error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &routes)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find routes: %w", err)
	}
	return routes, nil
}

var _ domain.RouteRepository = (*RouteRepository)(nil)
