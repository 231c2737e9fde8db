package consumers

import (
	"context"
	"fmt"
	"sync"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/kafka"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
)

// ShelfConfiguredData is the payload of wms.facility.shelf-configured
type ShelfConfiguredData struct {
	ShelfID     string `json:"shelfId"`
	Barcode     string `json:"barcode"`
	Label       string `json:"label"`
	Class       string `json:"class"`
	WarehouseID string `json:"warehouseId"`
}

// ShelfRemovedData is the payload of wms.facility.shelf-removed
type ShelfRemovedData struct {
	ShelfID string `json:"shelfId"`
}

// ProductUpsertedData is the payload of wms.product.upserted
type ProductUpsertedData struct {
	ProductID string `json:"productId"`
	Barcode   string `json:"barcode"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
}

// Catalog is the writable side of the shelf and product catalog
type Catalog interface {
	UpsertShelf(s domain.Shelf) (domain.ShelfClass, bool, error)
	RemoveShelf(shelfID string) bool
	UpsertProduct(p domain.Product) error
}

// ShelfRecomputer refreshes product aggregates after a shelf changes class
type ShelfRecomputer interface {
	RecomputeShelf(ctx context.Context, shelfID string) (int, error)
}

// ShelfStock lists what is stored on a shelf
type ShelfStock interface {
	ListLocationStockByShelf(ctx context.Context, shelfID string) ([]*domain.LocationStock, error)
}

// CatalogProjector keeps the in-process catalog in sync with facility and
// product events
type CatalogProjector struct {
	catalog    Catalog
	recomputer ShelfRecomputer
	stock      ShelfStock
	logger     *logging.Logger

	mu sync.Mutex
	// shelves whose class changed but whose aggregates are not yet refreshed
	pending map[string]bool
}

// NewCatalogProjector creates a new catalog projector
func NewCatalogProjector(catalog Catalog, recomputer ShelfRecomputer, stock ShelfStock, logger *logging.Logger) *CatalogProjector {
	return &CatalogProjector{
		catalog:    catalog,
		recomputer: recomputer,
		stock:      stock,
		logger:     logger,
		pending:    make(map[string]bool),
	}
}

// Register subscribes the projector's handlers on consumer
func (p *CatalogProjector) Register(consumer *kafka.Consumer) {
	consumer.Subscribe(kafka.Topics.FacilityEvents, cloudevents.ShelfConfigured, p.OnShelfConfigured)
	consumer.Subscribe(kafka.Topics.FacilityEvents, cloudevents.ShelfRemoved, p.OnShelfRemoved)
	consumer.Subscribe(kafka.Topics.ProductEvents, cloudevents.ProductUpserted, p.OnProductUpserted)
}

// OnShelfConfigured upserts a shelf and recomputes the aggregates of its
// products when the class changed. A failed recompute is retried on
// redelivery.
func (p *CatalogProjector) OnShelfConfigured(ctx context.Context, event *cloudevents.WMSCloudEvent) error {
	var data ShelfConfiguredData
	if err := event.DecodeData(&data); err != nil {
		p.logger.WithError(err).Warn("Dropping malformed shelf event", "eventId", event.ID)
		return nil
	}

	shelf := domain.Shelf{
		ID:          data.ShelfID,
		Barcode:     data.Barcode,
		Label:       data.Label,
		Class:       domain.ShelfClass(data.Class),
		WarehouseID: data.WarehouseID,
	}
	prev, changed, err := p.catalog.UpsertShelf(shelf)
	if err != nil {
		p.logger.WithError(err).Warn("Rejected shelf configuration", "eventId", event.ID, "shelfId", data.ShelfID)
		return nil
	}

	p.mu.Lock()
	if changed {
		p.pending[shelf.ID] = true
	}
	recompute := p.pending[shelf.ID]
	p.mu.Unlock()

	if !recompute {
		p.logger.Debug("Shelf configured", "shelfId", shelf.ID, "class", shelf.Class)
		return nil
	}

	n, err := p.recomputer.RecomputeShelf(ctx, shelf.ID)
	if err != nil {
		return fmt.Errorf("recompute shelf %s: %w", shelf.ID, err)
	}

	p.mu.Lock()
	delete(p.pending, shelf.ID)
	p.mu.Unlock()

	p.logger.Info("Shelf reclassified",
		"shelfId", shelf.ID,
		"from", prev,
		"to", shelf.Class,
		"productsRecomputed", n,
	)
	return nil
}

// OnShelfRemoved drops an empty shelf. A shelf still holding stock is kept
// and reported.
func (p *CatalogProjector) OnShelfRemoved(ctx context.Context, event *cloudevents.WMSCloudEvent) error {
	var data ShelfRemovedData
	if err := event.DecodeData(&data); err != nil || data.ShelfID == "" {
		p.logger.Warn("Dropping malformed shelf removal", "eventId", event.ID, "error", err)
		return nil
	}

	stock, err := p.stock.ListLocationStockByShelf(ctx, data.ShelfID)
	if err != nil {
		return fmt.Errorf("list stock on shelf %s: %w", data.ShelfID, err)
	}
	if len(stock) > 0 {
		p.logger.IntegrityViolation(ctx, "remove_shelf", nil, map[string]any{
			"shelfId":  data.ShelfID,
			"products": len(stock),
		})
		return nil
	}

	if p.catalog.RemoveShelf(data.ShelfID) {
		p.logger.Info("Shelf removed", "shelfId", data.ShelfID)
	}
	return nil
}

// OnProductUpserted adds or replaces a product
func (p *CatalogProjector) OnProductUpserted(ctx context.Context, event *cloudevents.WMSCloudEvent) error {
	var data ProductUpsertedData
	if err := event.DecodeData(&data); err != nil {
		p.logger.WithError(err).Warn("Dropping malformed product event", "eventId", event.ID)
		return nil
	}

	product := domain.Product{ID: data.ProductID, Barcode: data.Barcode, SKU: data.SKU, Name: data.Name}
	if err := p.catalog.UpsertProduct(product); err != nil {
		p.logger.WithError(err).Warn("Rejected product", "eventId", event.ID, "productId", data.ProductID)
		return nil
	}
	p.logger.Debug("Product upserted", "productId", product.ID)
	return nil
}
