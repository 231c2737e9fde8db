package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// TransferAdvisory decides whether a route can be picked from sellable
// stock. It never changes state.
type TransferAdvisory struct {
	routes  domain.RouteRepository
	stock   domain.StockRepository
	tx      domain.TransactionManager
	shelves ShelfCatalog
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewTransferAdvisory creates a new TransferAdvisory
func NewTransferAdvisory(
	routes domain.RouteRepository,
	stock domain.StockRepository,
	tx domain.TransactionManager,
	shelves ShelfCatalog,
	m *metrics.Metrics,
	logger *logging.Logger,
) *TransferAdvisory {
	return &TransferAdvisory{
		routes:  routes,
		stock:   stock,
		tx:      tx,
		shelves: shelves,
		metrics: m,
		logger:  logger,
	}
}

// CheckAvailability reports the shortfalls blocking routeID
func (a *TransferAdvisory) CheckAvailability(ctx context.Context, routeID string) (*AvailabilityDTO, error) {
	var availability *domain.Availability
	err := a.tx.WithTransaction(ctx, func(ctx context.Context) error {
		route, err := a.routes.FindByID(ctx, routeID)
		if err != nil {
			return err
		}
		availability, err = a.Evaluate(ctx, route)
		return err
	})
	if err != nil {
		return nil, toAppError(err)
	}

	if !availability.OK {
		a.metrics.RecordTransferShortfall("check")
		a.logger.Info("Route requires transfer", "routeId", routeID, "products", len(availability.Shortfalls))
	}
	return ToAvailabilityDTO(availability), nil
}

// Evaluate compares the route's open quantities with sellable stock. Only
// lines still waiting to be picked count; finished routes are always OK.
func (a *TransferAdvisory) Evaluate(ctx context.Context, route *domain.Route) (*domain.Availability, error) {
	if !route.Status.IsActive() {
		return &domain.Availability{RouteID: route.ID, OK: true}, nil
	}

	required := route.QuantitiesByProduct(true)
	snapshots := make(map[string]domain.StockSnapshot, len(required))
	for productID := range required {
		agg, err := a.stock.GetProductAggregate(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("failed to load product aggregate: %w", err)
		}
		locations, err := a.stock.ListLocationStock(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("failed to load location stock: %w", err)
		}
		snapshots[productID] = domain.StockSnapshot{Aggregate: agg, Locations: locations}
	}
	return domain.EvaluateAvailability(route.ID, required, snapshots, a.shelves.ClassOf), nil
}

// Gate returns a TransferRequiredError when the route has a shortfall
func (a *TransferAdvisory) Gate(ctx context.Context, route *domain.Route) error {
	availability, err := a.Evaluate(ctx, route)
	if err != nil {
		return err
	}
	if !availability.OK {
		return &domain.TransferRequiredError{RouteID: route.ID, Shortfalls: availability.Shortfalls}
	}
	return nil
}
