package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// ScanService resolves operator scans against a route. Each scan is one
// unit of work under the route's lock: it is either applied completely or
// rejected without any change.
type ScanService struct {
	routes   domain.RouteRepository
	stock    domain.StockRepository
	ledger   *StockLedger
	advisory *TransferAdvisory
	shelves  ShelfCatalog
	tx       domain.TransactionManager
	events   EventRecorder
	locker   Locker
	metrics  *metrics.Metrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewScanService creates a new ScanService
func NewScanService(
	routes domain.RouteRepository,
	stock domain.StockRepository,
	ledger *StockLedger,
	advisory *TransferAdvisory,
	shelves ShelfCatalog,
	tx domain.TransactionManager,
	events EventRecorder,
	locker Locker,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ScanService {
	return &ScanService{
		routes:   routes,
		stock:    stock,
		ledger:   ledger,
		advisory: advisory,
		shelves:  shelves,
		tx:       tx,
		events:   events,
		locker:   locker,
		metrics:  m,
		logger:   logger,
		now:      clock,
	}
}

// ScanShelf validates the shelf the operator is standing at against the
// next pending item
func (s *ScanService) ScanShelf(ctx context.Context, cmd ScanShelfCommand) (*ScanResultDTO, error) {
	ctx, span := tracing.StartSpan(ctx, "ScanService.ScanShelf",
		attribute.String("wms.route_id", cmd.RouteID),
		attribute.String("wms.shelf_barcode", cmd.ShelfBarcode),
	)
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	unlock, err := s.locker.Lock(ctx, routeLockKey(cmd.RouteID))
	if err != nil {
		return nil, toAppError(err)
	}
	defer unlock()

	var (
		route *domain.Route
		shelf *domain.Shelf
	)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		route, err = s.routes.FindByID(ctx, cmd.RouteID)
		if err != nil {
			return err
		}
		if err := route.EnsureCollecting(); err != nil {
			return err
		}
		if err := s.advisory.Gate(ctx, route); err != nil {
			return err
		}

		next := route.NextPendingItem()
		if next == nil {
			return fmt.Errorf("%w: nothing left to pick", domain.ErrRouteNotCollecting)
		}
		if err := refreshItemShelf(ctx, s.stock, s.shelves, route, next); err != nil {
			return err
		}

		shelf, err = s.shelves.FindShelfByBarcode(ctx, cmd.ShelfBarcode)
		if err != nil {
			if stderrors.Is(err, domain.ErrShelfNotFound) {
				return &domain.WrongShelfError{Expected: next.ShelfID, Scanned: cmd.ShelfBarcode}
			}
			return err
		}
		if shelf.ID != next.ShelfID {
			return &domain.WrongShelfError{Expected: next.ShelfID, Scanned: shelf.ID}
		}

		route.ValidateShelf(shelf.ID, s.now())
		return s.routes.Save(ctx, route)
	})
	if err != nil {
		return nil, s.reject(ctx, scanKindShelf, cmd.RouteID, err)
	}

	s.metrics.RecordScan(scanKindShelf, "accepted")
	s.logger.Info("Validated shelf", "routeId", route.ID, "shelfId", shelf.ID, "actor", actorOrContext(ctx, cmd.Actor))
	return &ScanResultDTO{
		RouteID:  route.ID,
		Kind:     scanKindShelf,
		Status:   string(route.Status),
		ShelfID:  shelf.ID,
		Progress: ToPickingProgressDTO(domain.BuildPickingProgress(route)),
	}, nil
}

// ScanBarcode picks qty units of barcode from the validated shelf and
// apportions them across the route's orders in precedence order
func (s *ScanService) ScanBarcode(ctx context.Context, cmd ScanBarcodeCommand) (*ScanResultDTO, error) {
	ctx, span := tracing.StartSpan(ctx, "ScanService.ScanBarcode",
		attribute.String("wms.route_id", cmd.RouteID),
		attribute.String("wms.barcode", cmd.Barcode),
		attribute.Int("wms.quantity", cmd.Quantity),
	)
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	if cmd.Quantity <= 0 {
		err = fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, cmd.Quantity)
		return nil, s.reject(ctx, scanKindBarcode, cmd.RouteID, err)
	}

	unlock, err := s.locker.Lock(ctx, routeLockKey(cmd.RouteID))
	if err != nil {
		return nil, toAppError(err)
	}
	defer unlock()

	actor := actorOrContext(ctx, cmd.Actor)
	var (
		route    *domain.Route
		plan     []domain.Apportionment
		movement *domain.StockMovement
	)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		route, err = s.routes.FindByID(ctx, cmd.RouteID)
		if err != nil {
			return err
		}
		if err := route.EnsureCollecting(); err != nil {
			return err
		}
		if err := s.advisory.Gate(ctx, route); err != nil {
			return err
		}

		item, ok := route.Item(cmd.Barcode)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnknownBarcodeForRoute, cmd.Barcode)
		}
		if total, picked := route.ItemQuantities(cmd.Barcode); picked >= total {
			return fmt.Errorf("%w: %s is already picked", domain.ErrUnknownBarcodeForRoute, cmd.Barcode)
		}
		if !route.IsShelfValidatedFor(item) {
			return fmt.Errorf("%w: scan shelf %s first", domain.ErrShelfNotValidated, item.ShelfID)
		}

		plan, err = domain.Apportion(cmd.Barcode, route.Allocations(cmd.Barcode), cmd.Quantity)
		if err != nil {
			return err
		}

		// stock may be split across shelves; the validated one caps the scan
		onShelf, err := s.stock.GetLocationStock(ctx, item.ProductID, item.ShelfID)
		if err != nil {
			return fmt.Errorf("failed to load location stock: %w", err)
		}
		if cmd.Quantity > onShelf.Quantity {
			return &domain.OverPickError{
				Barcode:   cmd.Barcode,
				ShelfID:   item.ShelfID,
				Requested: cmd.Quantity,
				Remaining: onShelf.Quantity,
			}
		}

		movement, err = s.ledger.Apply(ctx, domain.MovementDraft{
			ProductID:     item.ProductID,
			Quantity:      cmd.Quantity,
			Type:          domain.MovementPicking,
			Direction:     domain.DirectionOut,
			SourceShelfID: item.ShelfID,
			Reference:     domain.Reference{Kind: domain.ReferenceRoute, ID: route.ID},
			Actor:         actor,
		})
		if err != nil {
			var insufficient *domain.InsufficientStockError
			if stderrors.As(err, &insufficient) {
				return fmt.Errorf("%w: %v", domain.ErrStockMismatch, insufficient)
			}
			return err
		}
		if err := s.ledger.Commit(ctx, item.ProductID, cmd.Quantity); err != nil {
			return err
		}

		if err := route.ApplyPick(cmd.Barcode, plan, s.now()); err != nil {
			return err
		}
		// the pick may have emptied the shelf the next item was assigned to
		if next := route.NextPendingItem(); next != nil {
			if err := refreshItemShelf(ctx, s.stock, s.shelves, route, next); err != nil {
				return err
			}
			route.SyncShelfValidation()
		}
		events := route.GetDomainEvents()
		if err := s.routes.Save(ctx, route); err != nil {
			return err
		}
		return s.events.Record(ctx, aggregateRoute, route.ID, toOutboxEvents(events)...)
	})
	if err != nil {
		return nil, s.reject(ctx, scanKindBarcode, cmd.RouteID, err)
	}

	s.metrics.RecordScan(scanKindBarcode, "accepted")
	s.ledger.observe(movement)
	ready := route.Status == domain.RouteStatusReady
	if ready {
		s.metrics.RecordRouteTransition(string(domain.RouteStatusReady))
	}

	s.logger.Info("Picked item",
		"routeId", route.ID,
		"barcode", cmd.Barcode,
		"quantity", cmd.Quantity,
		"orders", len(plan),
		"movementId", movement.ID,
		"routeReady", ready,
		"actor", actor,
	)
	return &ScanResultDTO{
		RouteID:       route.ID,
		Kind:          scanKindBarcode,
		Status:        string(route.Status),
		ShelfID:       movement.SourceShelfID,
		Barcode:       cmd.Barcode,
		Quantity:      cmd.Quantity,
		MovementID:    movement.ID,
		Apportionment: ToApportionmentDTOs(plan),
		RouteReady:    ready,
		Progress:      ToPickingProgressDTO(domain.BuildPickingProgress(route)),
	}, nil
}

// reject records a refused scan. Stock mismatches are integrity failures
// and are reported apart from operator mistakes.
func (s *ScanService) reject(ctx context.Context, kind, routeID string, err error) error {
	if stderrors.Is(err, domain.ErrStockMismatch) {
		s.metrics.RecordStockMismatch()
		s.logger.IntegrityViolation(ctx, "scan_"+kind, err, map[string]any{"routeId": routeID})
	} else if stderrors.Is(err, domain.ErrTransferRequired) {
		s.metrics.RecordTransferShortfall("scan")
	}

	appErr := toAppError(err)
	s.metrics.RecordScan(kind, errorCode(appErr))
	s.logger.Warn("Scan rejected", "routeId", routeID, "kind", kind, "error", err)
	return appErr
}
