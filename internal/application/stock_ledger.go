package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// StockLedger is the only writer of stock state. Every change to location
// stock or a product aggregate goes through a ledger entry recorded in the
// same transaction.
type StockLedger struct {
	repo     domain.StockRepository
	tx       domain.TransactionManager
	shelves  ShelfCatalog
	products ProductCatalog
	events   EventRecorder
	metrics  *metrics.Metrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewStockLedger creates a new StockLedger
func NewStockLedger(
	repo domain.StockRepository,
	tx domain.TransactionManager,
	shelves ShelfCatalog,
	products ProductCatalog,
	events EventRecorder,
	m *metrics.Metrics,
	logger *logging.Logger,
) *StockLedger {
	return &StockLedger{
		repo:     repo,
		tx:       tx,
		shelves:  shelves,
		products: products,
		events:   events,
		metrics:  m,
		logger:   logger,
		now:      clock,
	}
}

// Apply validates and books one ledger entry and updates both stores. It
// must run inside a transaction; callers commit or roll back as a unit.
func (l *StockLedger) Apply(ctx context.Context, draft domain.MovementDraft) (*domain.StockMovement, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	if _, err := l.products.FindProduct(ctx, draft.ProductID); err != nil {
		if stderrors.Is(err, domain.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: unknown product %s", domain.ErrInvalidProduct, draft.ProductID)
		}
		return nil, err
	}
	for _, shelfID := range []string{draft.SourceShelfID, draft.TargetShelfID} {
		if shelfID == "" {
			continue
		}
		if _, err := l.shelves.FindShelf(ctx, shelfID); err != nil {
			if stderrors.Is(err, domain.ErrShelfNotFound) {
				return nil, fmt.Errorf("%w: unknown shelf %s", domain.ErrInvalidShelf, shelfID)
			}
			return nil, err
		}
	}

	now := l.now()
	movement, err := domain.NewStockMovement(draft, now)
	if err != nil {
		return nil, err
	}
	shelfID := movement.ShelfID()
	class, _ := l.shelves.ClassOf(shelfID)

	loc, err := l.repo.GetLocationStock(ctx, movement.ProductID, shelfID)
	if err != nil {
		return nil, fmt.Errorf("failed to load location stock: %w", err)
	}
	if err := loc.Apply(movement.Quantity, now); err != nil {
		return nil, err
	}
	agg, err := l.repo.GetProductAggregate(ctx, movement.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product aggregate: %w", err)
	}
	agg.ApplyLocationDelta(movement.Quantity, class, now)

	if err := l.repo.AppendMovement(ctx, movement); err != nil {
		return nil, fmt.Errorf("failed to append movement: %w", err)
	}
	if err := l.repo.SaveLocationStock(ctx, loc); err != nil {
		return nil, fmt.Errorf("failed to save location stock: %w", err)
	}
	if err := l.repo.SaveProductAggregate(ctx, agg); err != nil {
		return nil, fmt.Errorf("failed to save product aggregate: %w", err)
	}

	event := &domain.StockMovementRecordedEvent{
		MovementID:    movement.ID,
		ProductID:     movement.ProductID,
		Type:          movement.Type,
		Direction:     movement.Direction,
		Quantity:      movement.AbsQuantity(),
		ShelfID:       shelfID,
		SourceShelfID: movement.SourceShelfID,
		TargetShelfID: movement.TargetShelfID,
		Reference:     movement.Reference,
		LocationQty:   loc.Quantity,
		OnHand:        agg.OnHand,
		Sellable:      agg.Sellable,
		Actor:         movement.Actor,
		RecordedAt:    now,
	}
	if err := l.events.Record(ctx, aggregateStock, movement.ProductID, event); err != nil {
		return nil, fmt.Errorf("failed to record movement event: %w", err)
	}
	return movement, nil
}

// Reserve raises the soft reservation of productID
func (l *StockLedger) Reserve(ctx context.Context, productID string, qty int) error {
	return l.updateAggregate(ctx, productID, func(agg *domain.ProductAggregate, now time.Time) error {
		return agg.Reserve(qty, now)
	})
}

// Release returns reserved units
func (l *StockLedger) Release(ctx context.Context, productID string, qty int) error {
	return l.updateAggregate(ctx, productID, func(agg *domain.ProductAggregate, now time.Time) error {
		return agg.Release(qty, now)
	})
}

// Commit moves picked units from reserved to committed
func (l *StockLedger) Commit(ctx context.Context, productID string, qty int) error {
	return l.updateAggregate(ctx, productID, func(agg *domain.ProductAggregate, now time.Time) error {
		return agg.Commit(qty, now)
	})
}

// Ship clears committed units when packing completes
func (l *StockLedger) Ship(ctx context.Context, productID string, qty int) error {
	return l.updateAggregate(ctx, productID, func(agg *domain.ProductAggregate, now time.Time) error {
		return agg.Ship(qty, now)
	})
}

func (l *StockLedger) updateAggregate(ctx context.Context, productID string, fn func(*domain.ProductAggregate, time.Time) error) error {
	agg, err := l.repo.GetProductAggregate(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to load product aggregate: %w", err)
	}
	if err := fn(agg, l.now()); err != nil {
		return err
	}
	return l.repo.SaveProductAggregate(ctx, agg)
}

// Record books a raw ledger entry as its own unit of work
func (l *StockLedger) Record(ctx context.Context, cmd RecordMovementCommand) (*MovementDTO, error) {
	draft := domain.MovementDraft{
		ProductID:     cmd.ProductID,
		Quantity:      cmd.Quantity,
		Type:          cmd.Type,
		Direction:     cmd.Direction,
		SourceShelfID: cmd.SourceShelfID,
		TargetShelfID: cmd.TargetShelfID,
		Reference:     domain.Reference{Kind: cmd.ReferenceKind, ID: cmd.ReferenceID},
		Actor:         actorOrContext(ctx, cmd.Actor),
		Note:          cmd.Note,
	}
	movement, err := l.applyOne(ctx, draft)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Recorded stock movement",
		"movementId", movement.ID,
		"productId", movement.ProductID,
		"type", movement.Type,
		"quantity", movement.Quantity,
		"shelfId", movement.ShelfID(),
	)
	return ToMovementDTO(movement), nil
}

// Receive books goods into a shelf
func (l *StockLedger) Receive(ctx context.Context, cmd ReceiveStockCommand) (*MovementDTO, error) {
	draft := domain.MovementDraft{
		ProductID:     cmd.ProductID,
		Quantity:      cmd.Quantity,
		Type:          domain.MovementReceiving,
		Direction:     domain.DirectionIn,
		TargetShelfID: cmd.ShelfID,
		Actor:         actorOrContext(ctx, cmd.Actor),
		Note:          cmd.Note,
	}
	if cmd.ReferenceID != "" {
		draft.Reference = domain.Reference{Kind: domain.ReferenceOrder, ID: cmd.ReferenceID}
	}
	movement, err := l.applyOne(ctx, draft)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Received stock", "productId", cmd.ProductID, "shelfId", cmd.ShelfID, "quantity", cmd.Quantity)
	return ToMovementDTO(movement), nil
}

// Adjust corrects a shelf count by a signed delta
func (l *StockLedger) Adjust(ctx context.Context, cmd AdjustStockCommand) (*MovementDTO, error) {
	draft := domain.MovementDraft{
		ProductID: cmd.ProductID,
		Type:      domain.MovementAdjustment,
		Actor:     actorOrContext(ctx, cmd.Actor),
		Note:      cmd.Reason,
	}
	switch {
	case cmd.Delta > 0:
		draft.Direction = domain.DirectionIn
		draft.Quantity = cmd.Delta
		draft.TargetShelfID = cmd.ShelfID
	case cmd.Delta < 0:
		draft.Direction = domain.DirectionOut
		draft.Quantity = -cmd.Delta
		draft.SourceShelfID = cmd.ShelfID
	default:
		return nil, toAppError(fmt.Errorf("%w: adjustment delta must not be zero", domain.ErrInvalidQuantity))
	}

	movement, err := l.applyOne(ctx, draft)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Adjusted stock", "productId", cmd.ProductID, "shelfId", cmd.ShelfID, "delta", cmd.Delta, "reason", cmd.Reason)
	return ToMovementDTO(movement), nil
}

// Transfer moves stock between two shelves as one unit of work. Both legs
// share the transfer id as their reference.
func (l *StockLedger) Transfer(ctx context.Context, cmd TransferStockCommand) (*TransferDTO, error) {
	if cmd.FromShelfID == "" || cmd.ToShelfID == "" || cmd.FromShelfID == cmd.ToShelfID {
		return nil, toAppError(fmt.Errorf("%w: transfer needs two different shelves", domain.ErrInvalidShelf))
	}

	transferID := domain.NewTransferID()
	ref := domain.Reference{Kind: domain.ReferenceTransfer, ID: transferID}
	actor := actorOrContext(ctx, cmd.Actor)

	var out, in *domain.StockMovement
	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.Apply(ctx, domain.MovementDraft{
			ProductID:     cmd.ProductID,
			Quantity:      cmd.Quantity,
			Type:          domain.MovementTransfer,
			Direction:     domain.DirectionOut,
			SourceShelfID: cmd.FromShelfID,
			TargetShelfID: cmd.ToShelfID,
			Reference:     ref,
			Actor:         actor,
			Note:          cmd.Note,
		})
		if err != nil {
			return err
		}
		in, err = l.Apply(ctx, domain.MovementDraft{
			ProductID:     cmd.ProductID,
			Quantity:      cmd.Quantity,
			Type:          domain.MovementTransfer,
			Direction:     domain.DirectionIn,
			SourceShelfID: cmd.FromShelfID,
			TargetShelfID: cmd.ToShelfID,
			Reference:     ref,
			Actor:         actor,
			Note:          cmd.Note,
		})
		return err
	})
	if err != nil {
		l.logger.Warn("Transfer rejected", "productId", cmd.ProductID, "from", cmd.FromShelfID, "to", cmd.ToShelfID, "error", err)
		return nil, toAppError(err)
	}
	l.observe(out, in)

	l.logger.Info("Transferred stock",
		"transferId", transferID,
		"productId", cmd.ProductID,
		"from", cmd.FromShelfID,
		"to", cmd.ToShelfID,
		"quantity", cmd.Quantity,
	)
	return &TransferDTO{TransferID: transferID, Out: ToMovementDTO(out), In: ToMovementDTO(in)}, nil
}

// ReturnStock books returned units onto a shelf accepting their condition
func (l *StockLedger) ReturnStock(ctx context.Context, cmd ReturnStockCommand) (*MovementDTO, error) {
	if !cmd.Condition.IsValid() {
		return nil, toAppError(fmt.Errorf("%w: unknown return condition %q", domain.ErrInvalidMovement, cmd.Condition))
	}
	class, ok := l.shelves.ClassOf(cmd.ShelfID)
	if !ok {
		return nil, toAppError(fmt.Errorf("%w: unknown shelf %s", domain.ErrInvalidShelf, cmd.ShelfID))
	}
	if !cmd.Condition.Accepts(class) {
		return nil, toAppError(fmt.Errorf("%w: %s return on %s shelf %s", domain.ErrReturnShelfMismatch, cmd.Condition, class, cmd.ShelfID))
	}

	draft := domain.MovementDraft{
		ProductID:     cmd.ProductID,
		Quantity:      cmd.Quantity,
		Type:          domain.MovementReturn,
		Direction:     domain.DirectionIn,
		TargetShelfID: cmd.ShelfID,
		Actor:         actorOrContext(ctx, cmd.Actor),
		Note:          string(cmd.Condition),
	}
	if cmd.ReturnID != "" {
		draft.Reference = domain.Reference{Kind: domain.ReferenceReturn, ID: cmd.ReturnID}
	}
	movement, err := l.applyOne(ctx, draft)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Returned stock", "productId", cmd.ProductID, "shelfId", cmd.ShelfID, "quantity", cmd.Quantity, "condition", cmd.Condition)
	return ToMovementDTO(movement), nil
}

// Reverse books a CANCEL entry compensating an earlier movement. A
// movement can be reversed once.
func (l *StockLedger) Reverse(ctx context.Context, cmd ReverseMovementCommand) (*MovementDTO, error) {
	var reversal *domain.StockMovement
	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		original, err := l.repo.FindMovement(ctx, cmd.MovementID)
		if err != nil {
			return err
		}
		existing, err := l.repo.FindReversal(ctx, original.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s reversed by %s", domain.ErrAlreadyReversed, original.ID, existing.ID)
		}
		draft, err := original.ReversalDraft(actorOrContext(ctx, cmd.Actor), cmd.Reason)
		if err != nil {
			return err
		}
		reversal, err = l.Apply(ctx, draft)
		return err
	})
	if err != nil {
		l.logger.Warn("Reversal rejected", "movementId", cmd.MovementID, "error", err)
		return nil, toAppError(err)
	}
	l.observe(reversal)

	l.logger.Info("Reversed stock movement", "movementId", cmd.MovementID, "reversalId", reversal.ID, "quantity", reversal.Quantity)
	return ToMovementDTO(reversal), nil
}

// RecomputeShelf rebuilds the aggregates of every product stocked on
// shelfID. Called after the shelf's class changes in the catalog.
func (l *StockLedger) RecomputeShelf(ctx context.Context, shelfID string) (int, error) {
	updated := 0
	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		updated = 0
		rows, err := l.repo.ListLocationStockByShelf(ctx, shelfID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			locations, err := l.repo.ListLocationStock(ctx, row.ProductID)
			if err != nil {
				return err
			}
			prev, err := l.repo.GetProductAggregate(ctx, row.ProductID)
			if err != nil {
				return err
			}
			agg := domain.ComputeAggregate(row.ProductID, locations, l.shelves.ClassOf, prev)
			agg.UpdatedAt = l.now()
			if err := l.repo.SaveProductAggregate(ctx, agg); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to recompute shelf aggregates", "shelfId", shelfID, "error", err)
		return 0, toAppError(err)
	}

	if updated > 0 {
		l.logger.Info("Recomputed product aggregates for shelf", "shelfId", shelfID, "products", updated)
	}
	return updated, nil
}

func (l *StockLedger) applyOne(ctx context.Context, draft domain.MovementDraft) (*domain.StockMovement, error) {
	var movement *domain.StockMovement
	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		movement, err = l.Apply(ctx, draft)
		return err
	})
	if err != nil {
		l.logger.Warn("Stock movement rejected",
			"productId", draft.ProductID,
			"type", draft.Type,
			"direction", draft.Direction,
			"quantity", draft.Quantity,
			"error", err,
		)
		return nil, toAppError(err)
	}
	l.observe(movement)
	return movement, nil
}

// observe records metrics for committed movements
func (l *StockLedger) observe(movements ...*domain.StockMovement) {
	for _, m := range movements {
		if m == nil {
			continue
		}
		l.metrics.RecordLedgerMovement(string(m.Type), string(m.Direction), m.AbsQuantity())
	}
}

func actorOrContext(ctx context.Context, actor string) string {
	if actor != "" {
		return actor
	}
	return logging.ActorFromContext(ctx)
}

// clock is UTC truncated to what the document store keeps
func clock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
