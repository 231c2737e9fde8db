package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

const defaultRouteListLimit = 100

// RouteService groups orders into routes and drives their lifecycle
type RouteService struct {
	routes   domain.RouteRepository
	stock    domain.StockRepository
	ledger   *StockLedger
	advisory *TransferAdvisory
	orders   OrderService
	shelves  ShelfCatalog
	tx       domain.TransactionManager
	events   EventRecorder
	locker   Locker
	metrics  *metrics.Metrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewRouteService creates a new RouteService
func NewRouteService(
	routes domain.RouteRepository,
	stock domain.StockRepository,
	ledger *StockLedger,
	advisory *TransferAdvisory,
	orders OrderService,
	shelves ShelfCatalog,
	tx domain.TransactionManager,
	events EventRecorder,
	locker Locker,
	m *metrics.Metrics,
	logger *logging.Logger,
) *RouteService {
	return &RouteService{
		routes:   routes,
		stock:    stock,
		ledger:   ledger,
		advisory: advisory,
		orders:   orders,
		shelves:  shelves,
		tx:       tx,
		events:   events,
		locker:   locker,
		metrics:  m,
		logger:   logger,
		now:      clock,
	}
}

// CreateRoute groups pickable orders into a COLLECTING route and reserves
// their quantities. A shortfall does not block creation; it is reported in
// the result and as a transfer-required event.
func (s *RouteService) CreateRoute(ctx context.Context, cmd CreateRouteCommand) (*RouteDTO, error) {
	ctx, span := tracing.StartSpan(ctx, "RouteService.CreateRoute", attribute.Int("wms.order_count", len(cmd.OrderIDs)))
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	orderIDs := uniqueIDs(cmd.OrderIDs)
	if len(orderIDs) == 0 {
		err = domain.ErrEmptyOrderSet
		return nil, toAppError(err)
	}

	orders := make([]*domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		var order *domain.Order
		order, err = s.orders.GetOrder(ctx, id)
		if err != nil {
			s.logger.Warn("Failed to fetch order for route", "orderId", id, "error", err)
			return nil, toAppError(err)
		}
		orders = append(orders, order)
	}

	// orders are locked in sorted order so concurrent creations cannot deadlock
	locked := append([]string(nil), orderIDs...)
	sort.Strings(locked)
	for _, id := range locked {
		var unlock func()
		unlock, err = s.locker.Lock(ctx, orderLockKey(id))
		if err != nil {
			return nil, toAppError(err)
		}
		defer unlock()
	}

	actor := actorOrContext(ctx, cmd.Actor)
	var (
		route        *domain.Route
		availability *domain.Availability
	)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		route, err = domain.NewRoute(cmd.Name, cmd.Description, orders, actor, s.now())
		if err != nil {
			return err
		}
		if route.Name == "" {
			route.Name = route.ID
		}

		active, err := s.routes.FindActiveByOrderIDs(ctx, route.OrderIDs)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return activeRouteConflict(active[0], route.OrderIDs)
		}

		if err := s.assignShelves(ctx, route); err != nil {
			return err
		}
		for productID, qty := range route.QuantitiesByProduct(false) {
			if err := s.ledger.Reserve(ctx, productID, qty); err != nil {
				return err
			}
		}

		availability, err = s.advisory.Evaluate(ctx, route)
		if err != nil {
			return err
		}
		if !availability.OK {
			route.AddDomainEvent(&domain.TransferRequiredEvent{
				RouteID:    route.ID,
				Shortfalls: availability.Shortfalls,
				DetectedAt: route.CreatedAt,
			})
		}

		events := route.GetDomainEvents()
		if err := s.routes.Save(ctx, route); err != nil {
			return err
		}
		return s.events.Record(ctx, aggregateRoute, route.ID, toOutboxEvents(events)...)
	})
	if err != nil {
		s.logger.Warn("Route creation rejected", "orderIds", orderIDs, "error", err)
		return nil, toAppError(err)
	}

	s.metrics.RecordRouteTransition(string(domain.RouteStatusCollecting))
	if !availability.OK {
		s.metrics.RecordTransferShortfall("create")
	}

	s.logger.Info("Created route",
		"routeId", route.ID,
		"orders", len(route.OrderIDs),
		"items", len(route.Items),
		"quantity", route.TotalQuantity(),
		"transferRequired", !availability.OK,
	)
	dto := ToRouteDTO(route)
	dto.Availability = ToAvailabilityDTO(availability)
	return dto, nil
}

// assignShelves picks the sellable shelf each item is collected from
func (s *RouteService) assignShelves(ctx context.Context, route *domain.Route) error {
	for i := range route.Items {
		item := &route.Items[i]
		if err := refreshItemShelf(ctx, s.stock, s.shelves, route, item); err != nil {
			return err
		}
	}
	return nil
}

// CancelRoute cancels a route nobody has picked from and releases its
// reservations
func (s *RouteService) CancelRoute(ctx context.Context, cmd CancelRouteCommand) (*RouteDTO, error) {
	unlock, err := s.locker.Lock(ctx, routeLockKey(cmd.RouteID))
	if err != nil {
		return nil, toAppError(err)
	}
	defer unlock()

	var route *domain.Route
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		route, err = s.routes.FindByID(ctx, cmd.RouteID)
		if err != nil {
			return err
		}
		release := route.QuantitiesByProduct(true)
		if err := route.Cancel(cmd.Reason, s.now()); err != nil {
			return err
		}
		for productID, qty := range release {
			if err := s.ledger.Release(ctx, productID, qty); err != nil {
				return err
			}
		}
		events := route.GetDomainEvents()
		if err := s.routes.Save(ctx, route); err != nil {
			return err
		}
		return s.events.Record(ctx, aggregateRoute, route.ID, toOutboxEvents(events)...)
	})
	if err != nil {
		s.logger.Warn("Route cancellation rejected", "routeId", cmd.RouteID, "error", err)
		return nil, toAppError(err)
	}

	s.metrics.RecordRouteTransition(string(domain.RouteStatusCancelled))
	s.logger.Info("Cancelled route", "routeId", route.ID, "reason", cmd.Reason, "actor", actorOrContext(ctx, cmd.Actor))
	return ToRouteDTO(route), nil
}

// CompleteRoute marks a READY route as packed and ships its committed stock
func (s *RouteService) CompleteRoute(ctx context.Context, cmd CompleteRouteCommand) (*RouteDTO, error) {
	unlock, err := s.locker.Lock(ctx, routeLockKey(cmd.RouteID))
	if err != nil {
		return nil, toAppError(err)
	}
	defer unlock()

	var route *domain.Route
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		route, err = s.routes.FindByID(ctx, cmd.RouteID)
		if err != nil {
			return err
		}
		if err := route.Complete(s.now()); err != nil {
			return err
		}
		for productID, qty := range route.PickedByProduct() {
			if err := s.ledger.Ship(ctx, productID, qty); err != nil {
				return err
			}
		}
		events := route.GetDomainEvents()
		if err := s.routes.Save(ctx, route); err != nil {
			return err
		}
		return s.events.Record(ctx, aggregateRoute, route.ID, toOutboxEvents(events)...)
	})
	if err != nil {
		s.logger.Warn("Route completion rejected", "routeId", cmd.RouteID, "error", err)
		return nil, toAppError(err)
	}

	s.metrics.RecordRouteTransition(string(domain.RouteStatusCompleted))
	s.logger.Info("Completed route", "routeId", route.ID, "shipped", route.PickedQuantity(), "actor", actorOrContext(ctx, cmd.Actor))
	return ToRouteDTO(route), nil
}

// GetRoute retrieves a route by id
func (s *RouteService) GetRoute(ctx context.Context, routeID string) (*RouteDTO, error) {
	route, err := s.routes.FindByID(ctx, routeID)
	if err != nil {
		return nil, toAppError(err)
	}
	return ToRouteDTO(route), nil
}

// ListRoutes lists routes in a status, newest first
func (s *RouteService) ListRoutes(ctx context.Context, query ListRoutesQuery) ([]*RouteDTO, error) {
	status := query.Status
	if status == "" {
		status = domain.RouteStatusCollecting
	}
	if !status.IsValid() {
		return nil, errors.ErrValidation(fmt.Sprintf("unknown route status %q", status))
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultRouteListLimit
	}

	routes, err := s.routes.FindByStatus(ctx, status, limit)
	if err != nil {
		s.logger.Error("Failed to list routes", "status", status, "error", err)
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	out := make([]*RouteDTO, 0, len(routes))
	for _, r := range routes {
		out = append(out, ToRouteDTO(r))
	}
	return out, nil
}

// GetPickingProgress returns the pick list of a route
func (s *RouteService) GetPickingProgress(ctx context.Context, routeID string) (*PickingProgressDTO, error) {
	route, err := s.routes.FindByID(ctx, routeID)
	if err != nil {
		return nil, toAppError(err)
	}
	return ToPickingProgressDTO(domain.BuildPickingProgress(route)), nil
}

// refreshItemShelf re-resolves the shelf an item is picked from against
// current stock. Items with no sellable stock keep their last shelf.
func refreshItemShelf(ctx context.Context, stock domain.StockRepository, shelves ShelfCatalog, route *domain.Route, item *domain.RouteItem) error {
	locations, err := stock.ListLocationStock(ctx, item.ProductID)
	if err != nil {
		return fmt.Errorf("failed to load location stock: %w", err)
	}
	shelfID := domain.PickShelf(item.ShelfID, locations, shelves.ClassOf)
	if shelfID == "" || shelfID == item.ShelfID {
		return nil
	}
	shelf, err := shelves.FindShelf(ctx, shelfID)
	if err != nil {
		return err
	}
	return route.AssignShelf(item.Barcode, shelf)
}

func activeRouteConflict(active *domain.Route, orderIDs []string) error {
	held := make(map[string]bool, len(active.OrderIDs))
	for _, id := range active.OrderIDs {
		held[id] = true
	}
	var overlap []string
	for _, id := range orderIDs {
		if held[id] {
			overlap = append(overlap, id)
		}
	}
	return &domain.OrderNotPickableError{
		OrderID: strings.Join(overlap, ","),
		Reason:  fmt.Sprintf("already on active route %s", active.ID),
	}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
