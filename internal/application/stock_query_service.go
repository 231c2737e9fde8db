package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

const defaultMovementLimit = 200

// StockQueryService answers stock questions and audits the ledger
type StockQueryService struct {
	repo    domain.StockRepository
	tx      domain.TransactionManager
	shelves ShelfCatalog
	metrics *metrics.Metrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewStockQueryService creates a new StockQueryService
func NewStockQueryService(
	repo domain.StockRepository,
	tx domain.TransactionManager,
	shelves ShelfCatalog,
	m *metrics.Metrics,
	logger *logging.Logger,
) *StockQueryService {
	return &StockQueryService{
		repo:    repo,
		tx:      tx,
		shelves: shelves,
		metrics: m,
		logger:  logger,
		now:     clock,
	}
}

// GetLocationStock returns the quantity of a product on one shelf. Unknown
// pairs report zero.
func (s *StockQueryService) GetLocationStock(ctx context.Context, productID, shelfID string) (*LocationStockDTO, error) {
	loc, err := s.repo.GetLocationStock(ctx, productID, shelfID)
	if err != nil {
		s.logger.Error("Failed to get location stock", "productId", productID, "shelfId", shelfID, "error", err)
		return nil, fmt.Errorf("failed to get location stock: %w", err)
	}
	return ToLocationStockDTO(loc, s.shelves.ClassOf), nil
}

// GetProductStock returns a product's aggregate with its locations, read as
// one snapshot
func (s *StockQueryService) GetProductStock(ctx context.Context, productID string) (*ProductStockDTO, error) {
	var (
		agg       *domain.ProductAggregate
		locations []*domain.LocationStock
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if agg, err = s.repo.GetProductAggregate(ctx, productID); err != nil {
			return err
		}
		locations, err = s.repo.ListLocationStock(ctx, productID)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to get product stock", "productId", productID, "error", err)
		return nil, fmt.Errorf("failed to get product stock: %w", err)
	}
	return ToProductStockDTO(agg, locations, s.shelves.ClassOf), nil
}

// ListMovements returns ledger entries oldest first
func (s *StockQueryService) ListMovements(ctx context.Context, query ListMovementsQuery) ([]MovementDTO, error) {
	if query.From != nil && query.To != nil && !query.From.Before(*query.To) {
		return nil, toAppError(fmt.Errorf("%w: from must be before to", domain.ErrInvalidMovement))
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultMovementLimit
	}

	movements, err := s.repo.ListMovements(ctx, domain.MovementFilter{
		ProductID:     query.ProductID,
		ShelfID:       query.ShelfID,
		Type:          query.Type,
		ReferenceKind: query.ReferenceKind,
		ReferenceID:   query.ReferenceID,
		From:          query.From,
		To:            query.To,
		Limit:         limit,
	})
	if err != nil {
		s.logger.Error("Failed to list movements", "productId", query.ProductID, "error", err)
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return ToMovementDTOs(movements), nil
}

// Reconcile replays a product's ledger and compares it with both stores
func (s *StockQueryService) Reconcile(ctx context.Context, productID string) (*ReconcileReportDTO, error) {
	report, err := s.reconcile(ctx, productID)
	if err != nil {
		s.logger.Error("Failed to reconcile product", "productId", productID, "error", err)
		return nil, fmt.Errorf("failed to reconcile product: %w", err)
	}
	s.reportDrift(ctx, report)
	return ToReconcileReportDTO(report), nil
}

// ReconcileAll reconciles every product that has ever had stock
func (s *StockQueryService) ReconcileAll(ctx context.Context) ([]*ReconcileReportDTO, error) {
	ids, err := s.repo.ListProductIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	reports := make([]*ReconcileReportDTO, 0, len(ids))
	drifted := 0
	for _, id := range ids {
		report, err := s.reconcile(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to reconcile product %s: %w", id, err)
		}
		if !report.Consistent() {
			drifted++
		}
		s.reportDrift(ctx, report)
		reports = append(reports, ToReconcileReportDTO(report))
	}

	s.logger.Info("Reconciled ledger", "products", len(ids), "drifted", drifted)
	return reports, nil
}

func (s *StockQueryService) reconcile(ctx context.Context, productID string) (*domain.ReconcileReport, error) {
	var report *domain.ReconcileReport
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		movements, err := s.repo.ListMovements(ctx, domain.MovementFilter{ProductID: productID})
		if err != nil {
			return err
		}
		stored, err := s.repo.ListLocationStock(ctx, productID)
		if err != nil {
			return err
		}
		agg, err := s.repo.GetProductAggregate(ctx, productID)
		if err != nil {
			return err
		}
		report = domain.Reconcile(productID, movements, stored, agg, s.shelves.ClassOf, s.now())
		return nil
	})
	return report, err
}

func (s *StockQueryService) reportDrift(ctx context.Context, report *domain.ReconcileReport) {
	if report.Consistent() {
		return
	}
	s.metrics.RecordStockMismatch()
	s.logger.IntegrityViolation(ctx, "reconcile", domain.ErrStockMismatch, map[string]any{
		"productId": report.ProductID,
		"drifts":    len(report.Drifts),
		"movements": report.MovementCount,
	})
}
