package application

import (
	"context"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/outbox"
)

// OrderService reads orders from the order service. Unknown orders return
// domain.ErrOrderNotFound.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

// ShelfCatalog is the read-only view of warehouse configuration
type ShelfCatalog interface {
	FindShelf(ctx context.Context, shelfID string) (*domain.Shelf, error)
	FindShelfByBarcode(ctx context.Context, barcode string) (*domain.Shelf, error)
	ListShelves(ctx context.Context) ([]*domain.Shelf, error)
	// ClassOf is the synchronous lookup handed to domain calculations
	ClassOf(shelfID string) (domain.ShelfClass, bool)
}

// ProductCatalog is the read-only view of product data
type ProductCatalog interface {
	FindProduct(ctx context.Context, productID string) (*domain.Product, error)
	FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
}

// Locker serializes work on one key across goroutines, and across replicas
// when backed by a shared store
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// EventRecorder writes domain events to the outbox inside the caller's
// transaction
type EventRecorder interface {
	Record(ctx context.Context, aggregateType, aggregateID string, events ...outbox.Event) error
}

// Aggregate types used as outbox subjects
const (
	aggregateStock  = "stock"
	aggregateRoute  = "route"
	aggregateReturn = "return"
)

func routeLockKey(routeID string) string { return "route:" + routeID }

func orderLockKey(orderID string) string { return "order:" + orderID }

func toOutboxEvents(events []domain.DomainEvent) []outbox.Event {
	out := make([]outbox.Event, len(events))
	for i, e := range events {
		out[i] = e
	}
	return out
}
