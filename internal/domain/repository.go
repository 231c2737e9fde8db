package domain

import "context"

// StockRepository persists the ledger and its read models. Implementations
// join the transaction carried by ctx. Find methods report a missing entity
// with the matching not-found sentinel.
type StockRepository interface {
	AppendMovement(ctx context.Context, m *StockMovement) error
	FindMovement(ctx context.Context, id string) (*StockMovement, error)
	// FindReversal returns the CANCEL entry compensating movementID, or nil
	FindReversal(ctx context.Context, movementID string) (*StockMovement, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]*StockMovement, error)

	// GetLocationStock returns an empty location when none is stored
	GetLocationStock(ctx context.Context, productID, shelfID string) (*LocationStock, error)
	// SaveLocationStock removes the row when quantity is zero
	SaveLocationStock(ctx context.Context, stock *LocationStock) error
	ListLocationStock(ctx context.Context, productID string) ([]*LocationStock, error)
	ListLocationStockByShelf(ctx context.Context, shelfID string) ([]*LocationStock, error)

	// GetProductAggregate returns an empty aggregate when none is stored
	GetProductAggregate(ctx context.Context, productID string) (*ProductAggregate, error)
	SaveProductAggregate(ctx context.Context, agg *ProductAggregate) error
	ListProductIDs(ctx context.Context) ([]string, error)
}

// RouteRepository persists routes
type RouteRepository interface {
	// Save inserts a route with version 0 and otherwise updates it when the
	// stored version matches, incrementing Version. A mismatch returns
	// ErrConcurrentUpdate.
	Save(ctx context.Context, route *Route) error
	FindByID(ctx context.Context, routeID string) (*Route, error)
	FindByStatus(ctx context.Context, status RouteStatus, limit int) ([]*Route, error)
	// FindActiveByOrderIDs returns COLLECTING or READY routes holding any of orderIDs
	FindActiveByOrderIDs(ctx context.Context, orderIDs []string) ([]*Route, error)
}

// ReturnItemRepository persists return items
type ReturnItemRepository interface {
	Save(ctx context.Context, item *ReturnItem) error
	FindByID(ctx context.Context, id string) (*ReturnItem, error)
	FindByStatus(ctx context.Context, status ReturnStatus, limit int) ([]*ReturnItem, error)
}

// TransactionManager runs fn as one unit of work. Nested calls join the
// outer transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
