package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
)

// ReturnService books returned units in two steps: register by barcode,
// resolve to a product, then restock onto a return shelf
type ReturnService struct {
	returns  domain.ReturnItemRepository
	ledger   *StockLedger
	products ProductCatalog
	shelves  ShelfCatalog
	tx       domain.TransactionManager
	events   EventRecorder
	logger   *logging.Logger
	now      func() time.Time
}

// NewReturnService creates a new ReturnService
func NewReturnService(
	returns domain.ReturnItemRepository,
	ledger *StockLedger,
	products ProductCatalog,
	shelves ShelfCatalog,
	tx domain.TransactionManager,
	events EventRecorder,
	logger *logging.Logger,
) *ReturnService {
	return &ReturnService{
		returns:  returns,
		ledger:   ledger,
		products: products,
		shelves:  shelves,
		tx:       tx,
		events:   events,
		logger:   logger,
		now:      clock,
	}
}

// Register books an unresolved return
func (s *ReturnService) Register(ctx context.Context, cmd RegisterReturnCommand) (*ReturnItemDTO, error) {
	var item *domain.ReturnItem
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = domain.NewReturnItem(cmd.Barcode, cmd.OrderID, cmd.Quantity, cmd.Condition, s.now())
		if err != nil {
			return err
		}
		return s.save(ctx, item)
	})
	if err != nil {
		return nil, toAppError(err)
	}

	s.logger.Info("Registered return item", "returnItemId", item.ID, "barcode", item.Barcode, "quantity", item.Quantity, "actor", actorOrContext(ctx, cmd.Actor))
	return ToReturnItemDTO(item), nil
}

// Resolve links a return to the product its barcode belongs to
func (s *ReturnService) Resolve(ctx context.Context, returnItemID string) (*ReturnItemDTO, error) {
	var item *domain.ReturnItem
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.returns.FindByID(ctx, returnItemID)
		if err != nil {
			return err
		}
		product, err := s.products.FindProductByBarcode(ctx, item.Barcode)
		if err != nil {
			return err
		}
		if err := item.Resolve(product, s.now()); err != nil {
			return err
		}
		return s.save(ctx, item)
	})
	if err != nil {
		s.logger.Warn("Return resolution rejected", "returnItemId", returnItemID, "error", err)
		return nil, toAppError(err)
	}

	s.logger.Info("Resolved return item", "returnItemId", item.ID, "productId", item.ProductID)
	return ToReturnItemDTO(item), nil
}

// Restock puts a resolved return on a shelf accepting its condition and
// books the RETURN ledger entry in the same unit of work
func (s *ReturnService) Restock(ctx context.Context, cmd RestockReturnCommand) (*ReturnItemDTO, error) {
	var (
		item     *domain.ReturnItem
		movement *domain.StockMovement
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.returns.FindByID(ctx, cmd.ReturnItemID)
		if err != nil {
			return err
		}
		shelf, err := s.shelves.FindShelf(ctx, cmd.ShelfID)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidShelf, err)
		}
		if err := item.CheckRestock(shelf); err != nil {
			return err
		}

		movement, err = s.ledger.Apply(ctx, domain.MovementDraft{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			Type:          domain.MovementReturn,
			Direction:     domain.DirectionIn,
			TargetShelfID: shelf.ID,
			Reference:     domain.Reference{Kind: domain.ReferenceReturn, ID: item.ID},
			Actor:         actorOrContext(ctx, cmd.Actor),
			Note:          string(item.Condition),
		})
		if err != nil {
			return err
		}
		if err := item.MarkRestocked(shelf, movement.ID, s.now()); err != nil {
			return err
		}
		return s.save(ctx, item)
	})
	if err != nil {
		s.logger.Warn("Restock rejected", "returnItemId", cmd.ReturnItemID, "shelfId", cmd.ShelfID, "error", err)
		return nil, toAppError(err)
	}
	s.ledger.observe(movement)

	s.logger.Info("Restocked return item", "returnItemId", item.ID, "shelfId", item.ShelfID, "movementId", movement.ID)
	return ToReturnItemDTO(item), nil
}

// GetReturnItem retrieves a return item by id
func (s *ReturnService) GetReturnItem(ctx context.Context, returnItemID string) (*ReturnItemDTO, error) {
	item, err := s.returns.FindByID(ctx, returnItemID)
	if err != nil {
		return nil, toAppError(err)
	}
	return ToReturnItemDTO(item), nil
}

// ListReturnItems lists return items in a status
func (s *ReturnService) ListReturnItems(ctx context.Context, status domain.ReturnStatus, limit int) ([]*ReturnItemDTO, error) {
	if status == "" {
		status = domain.ReturnStatusUnresolved
	}
	if limit <= 0 {
		limit = defaultRouteListLimit
	}
	items, err := s.returns.FindByStatus(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list return items: %w", err)
	}
	out := make([]*ReturnItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, ToReturnItemDTO(item))
	}
	return out, nil
}

func (s *ReturnService) save(ctx context.Context, item *domain.ReturnItem) error {
	events := item.GetDomainEvents()
	if err := s.returns.Save(ctx, item); err != nil {
		return err
	}
	return s.events.Record(ctx, aggregateReturn, item.ID, toOutboxEvents(events)...)
}
