package application

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/catalog"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/locking"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/memory"
	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/outbox"
)

// Shelves and products every test environment starts with
const (
	shelfS1  = "S1"
	shelfS2  = "S2"
	shelfRcv = "RCV"
	shelfRN  = "RN"
	shelfRD  = "RD"

	productX = "PX"
	productY = "PY"
	productZ = "PZ"

	barcodeX = "BX"
	barcodeY = "BY"
	barcodeZ = "BZ"
)

// fakeOrderService is an in-memory order service
type fakeOrderService struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	err    error
}

func (f *fakeOrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	o, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	copied := *o
	copied.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &copied, nil
}

type testEnv struct {
	store    *memory.Store
	stock    *memory.StockRepository
	routes   *memory.RouteRepository
	returns  *memory.ReturnItemRepository
	outbox   *memory.OutboxRepository
	catalog  *catalog.Catalog
	orders   *fakeOrderService
	metrics  *metrics.Metrics
	ledger   *StockLedger
	queries  *StockQueryService
	advisory *TransferAdvisory
	routeSvc *RouteService
	scanSvc  *ScanService
	returnSv *ReturnService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	cat := catalog.New()
	for _, s := range []domain.Shelf{
		{ID: shelfS1, Barcode: "SH-" + shelfS1, Label: "A-01", Class: domain.ShelfClassSellable},
		{ID: shelfS2, Barcode: "SH-" + shelfS2, Label: "A-02", Class: domain.ShelfClassSellable},
		{ID: shelfRcv, Barcode: "SH-" + shelfRcv, Class: domain.ShelfClassReceiving},
		{ID: shelfRN, Barcode: "SH-" + shelfRN, Class: domain.ShelfClassReturnNormal},
		{ID: shelfRD, Barcode: "SH-" + shelfRD, Class: domain.ShelfClassReturnDamaged},
	} {
		_, _, err := cat.UpsertShelf(s)
		require.NoError(t, err)
	}
	for _, p := range []domain.Product{
		{ID: productX, Barcode: barcodeX, SKU: "SKU-X"},
		{ID: productY, Barcode: barcodeY, SKU: "SKU-Y"},
		{ID: productZ, Barcode: barcodeZ, SKU: "SKU-Z"},
	} {
		require.NoError(t, cat.UpsertProduct(p))
	}

	env := &testEnv{
		store:   store,
		stock:   memory.NewStockRepository(store),
		routes:  memory.NewRouteRepository(store),
		returns: memory.NewReturnItemRepository(store),
		outbox:  memory.NewOutboxRepository(store),
		catalog: cat,
		orders:  &fakeOrderService{orders: make(map[string]*domain.Order)},
		metrics: metrics.New(metrics.DefaultConfig("fulfillment-test")),
	}

	logger := logging.NewNop()
	recorder := outbox.NewRecorder(env.outbox, cloudevents.NewEventFactory("/fulfillment-test"), "wms.fulfillment.events")
	locks := locking.NewKeyedMutex()

	env.ledger = NewStockLedger(env.stock, store, cat, cat, recorder, env.metrics, logger)
	env.queries = NewStockQueryService(env.stock, store, cat, env.metrics, logger)
	env.advisory = NewTransferAdvisory(env.routes, env.stock, store, cat, env.metrics, logger)
	env.routeSvc = NewRouteService(env.routes, env.stock, env.ledger, env.advisory, env.orders, cat, store, recorder, locks, env.metrics, logger)
	env.scanSvc = NewScanService(env.routes, env.stock, env.ledger, env.advisory, cat, store, recorder, locks, env.metrics, logger)
	env.returnSv = NewReturnService(env.returns, env.ledger, cat, cat, store, recorder, logger)
	return env
}

func orderLine(productID, barcode string, qty int) domain.OrderLine {
	return domain.OrderLine{ProductID: productID, Barcode: barcode, Quantity: qty, UnitPrice: decimal.RequireFromString("4.25")}
}

// addOrder registers a confirmed order with the fake order service
func (e *testEnv) addOrder(id string, lines ...domain.OrderLine) {
	for i := range lines {
		if lines[i].LineID == "" {
			lines[i].LineID = fmt.Sprintf("%s-L%d", id, i+1)
		}
	}
	e.orders.mu.Lock()
	defer e.orders.mu.Unlock()
	e.orders.orders[id] = &domain.Order{
		ID:          id,
		OrderNumber: "NO-" + id,
		Status:      domain.OrderStatusConfirmed,
		Lines:       lines,
	}
}

func (e *testEnv) receive(t *testing.T, productID, shelfID string, qty int) {
	t.Helper()
	_, err := e.ledger.Receive(context.Background(), ReceiveStockCommand{
		ProductID: productID,
		ShelfID:   shelfID,
		Quantity:  qty,
		Actor:     "receiver",
	})
	require.NoError(t, err)
}

func (e *testEnv) createRoute(t *testing.T, orderIDs ...string) *RouteDTO {
	t.Helper()
	route, err := e.routeSvc.CreateRoute(context.Background(), CreateRouteCommand{OrderIDs: orderIDs, Actor: "planner"})
	require.NoError(t, err)
	return route
}

func (e *testEnv) scanShelf(routeID, shelfID string) (*ScanResultDTO, error) {
	return e.scanSvc.ScanShelf(context.Background(), ScanShelfCommand{RouteID: routeID, ShelfBarcode: "SH-" + shelfID, Actor: "picker"})
}

func (e *testEnv) scanBarcode(routeID, barcode string, qty int) (*ScanResultDTO, error) {
	return e.scanSvc.ScanBarcode(context.Background(), ScanBarcodeCommand{RouteID: routeID, Barcode: barcode, Quantity: qty, Actor: "picker"})
}

func (e *testEnv) location(t *testing.T, productID, shelfID string) int {
	t.Helper()
	loc, err := e.queries.GetLocationStock(context.Background(), productID, shelfID)
	require.NoError(t, err)
	return loc.Quantity
}

func (e *testEnv) product(t *testing.T, productID string) *ProductStockDTO {
	t.Helper()
	p, err := e.queries.GetProductStock(context.Background(), productID)
	require.NoError(t, err)
	return p
}

// eventTypes lists outbox event types for one aggregate in write order
func (e *testEnv) eventTypes(aggregateID string) []string {
	var out []string
	for _, ev := range e.outbox.Events() {
		if ev.AggregateID == aggregateID {
			out = append(out, ev.EventType)
		}
	}
	return out
}

// requireCode asserts err is an AppError carrying code
func requireCode(t *testing.T, err error, code string) *errors.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok, "expected an AppError, got %v", err)
	assert.Equal(t, code, appErr.Code, appErr.Error())
	return appErr
}

// requireConsistent reconciles every product and fails on drift
func (e *testEnv) requireConsistent(t *testing.T) {
	t.Helper()
	reports, err := e.queries.ReconcileAll(context.Background())
	require.NoError(t, err)
	for _, r := range reports {
		assert.True(t, r.Consistent, "product %s drifted: %+v", r.ProductID, r.Drifts)
	}
}
