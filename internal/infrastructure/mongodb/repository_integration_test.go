//go:build integration

package mongodb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/catalog"
	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	pkgmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
	"github.com/wms-platform/fulfillment-service/pkg/outbox"
	testinfra "github.com/wms-platform/fulfillment-service/pkg/testing"
)

type RepositoryIntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	container *testinfra.MongoDBContainer
	client    *pkgmongo.Client
	store     *Store
	catalog   *catalog.Catalog
	ledger    *application.StockLedger
	queries   *application.StockQueryService
}

func TestRepositoryIntegration(t *testing.T) {
	suite.Run(t, new(RepositoryIntegrationTestSuite))
}

func (s *RepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := testinfra.NewMongoDBContainer(s.ctx)
	s.Require().NoError(err)
	s.container = container

	cfg := pkgmongo.DefaultConfig()
	cfg.URI = container.URI
	cfg.Database = "fulfillment_test"
	cfg.Direct = true
	cfg.Registry = NewRegistry()
	client, err := pkgmongo.NewClient(s.ctx, cfg)
	s.Require().NoError(err)
	s.client = client

	s.catalog = catalog.New()
	for _, shelf := range []domain.Shelf{
		{ID: "S1", Barcode: "SH-S1", Label: "A-01", Class: domain.ShelfClassSellable},
		{ID: "S2", Barcode: "SH-S2", Label: "A-02", Class: domain.ShelfClassSellable},
		{ID: "RD", Barcode: "SH-RD", Class: domain.ShelfClassReturnDamaged},
	} {
		_, _, err := s.catalog.UpsertShelf(shelf)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.catalog.UpsertProduct(domain.Product{ID: "PX", Barcode: "BX"}))
}

func (s *RepositoryIntegrationTestSuite) SetupTest() {
	s.store = NewStore(s.client, nil)
	s.Require().NoError(s.store.EnsureIndexes(s.ctx))

	logger := logging.NewNop()
	m := metrics.New(metrics.DefaultConfig("fulfillment-it"))
	recorder := outbox.NewRecorder(s.store.Outbox, cloudevents.NewEventFactory("/fulfillment-it"), "wms.fulfillment.events")
	s.ledger = application.NewStockLedger(s.store.Stock, s.store.Tx, s.catalog, s.catalog, recorder, m, logger)
	s.queries = application.NewStockQueryService(s.store.Stock, s.store.Tx, s.catalog, m, logger)
}

func (s *RepositoryIntegrationTestSuite) TearDownTest() {
	s.Require().NoError(s.client.Database().Drop(s.ctx))
}

func (s *RepositoryIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close(s.ctx)
	}
	if s.container != nil {
		s.Require().NoError(s.container.Close(s.ctx))
	}
}

func (s *RepositoryIntegrationTestSuite) TestLedgerUpdatesStoresAtomically() {
	_, err := s.ledger.Receive(s.ctx, application.ReceiveStockCommand{ProductID: "PX", ShelfID: "S1", Quantity: 6})
	s.Require().NoError(err)
	_, err = s.ledger.Transfer(s.ctx, application.TransferStockCommand{ProductID: "PX", FromShelfID: "S1", ToShelfID: "RD", Quantity: 2})
	s.Require().NoError(err)

	loc, err := s.store.Stock.GetLocationStock(s.ctx, "PX", "S1")
	s.Require().NoError(err)
	s.Equal(4, loc.Quantity)

	agg, err := s.store.Stock.GetProductAggregate(s.ctx, "PX")
	s.Require().NoError(err)
	s.Equal(6, agg.OnHand)
	s.Equal(4, agg.Sellable)

	events, err := s.store.Outbox.FindByAggregateID(s.ctx, "PX")
	s.Require().NoError(err)
	s.Len(events, 3)

	report, err := s.queries.Reconcile(s.ctx, "PX")
	s.Require().NoError(err)
	s.True(report.Consistent)
	s.Equal(3, report.MovementCount)
}

func (s *RepositoryIntegrationTestSuite) TestFailedTransferRollsBack() {
	_, err := s.ledger.Receive(s.ctx, application.ReceiveStockCommand{ProductID: "PX", ShelfID: "S1", Quantity: 1})
	s.Require().NoError(err)

	_, err = s.ledger.Transfer(s.ctx, application.TransferStockCommand{ProductID: "PX", FromShelfID: "S1", ToShelfID: "NOPE", Quantity: 1})
	s.Require().Error(err)

	loc, err := s.store.Stock.GetLocationStock(s.ctx, "PX", "S1")
	s.Require().NoError(err)
	s.Equal(1, loc.Quantity)

	movements, err := s.store.Stock.ListMovements(s.ctx, domain.MovementFilter{ProductID: "PX"})
	s.Require().NoError(err)
	s.Len(movements, 1)

	events, err := s.store.Outbox.FindByAggregateID(s.ctx, "PX")
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *RepositoryIntegrationTestSuite) TestConcurrentOutMovementsNeverGoNegative() {
	_, err := s.ledger.Receive(s.ctx, application.ReceiveStockCommand{ProductID: "PX", ShelfID: "S1", Quantity: 5})
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.ledger.Adjust(s.ctx, application.AdjustStockCommand{ProductID: "PX", ShelfID: "S1", Delta: -1})
		}()
	}
	wg.Wait()

	loc, err := s.store.Stock.GetLocationStock(s.ctx, "PX", "S1")
	s.Require().NoError(err)
	s.GreaterOrEqual(loc.Quantity, 0)

	report, err := s.queries.Reconcile(s.ctx, "PX")
	s.Require().NoError(err)
	s.True(report.Consistent)
}

func (s *RepositoryIntegrationTestSuite) TestListMovementsFilters() {
	_, err := s.ledger.Receive(s.ctx, application.ReceiveStockCommand{ProductID: "PX", ShelfID: "S1", Quantity: 3})
	s.Require().NoError(err)
	transfer, err := s.ledger.Transfer(s.ctx, application.TransferStockCommand{ProductID: "PX", FromShelfID: "S1", ToShelfID: "S2", Quantity: 1})
	s.Require().NoError(err)

	byShelf, err := s.store.Stock.ListMovements(s.ctx, domain.MovementFilter{ShelfID: "S2"})
	s.Require().NoError(err)
	s.Require().Len(byShelf, 1)
	s.Equal(transfer.In.ID, byShelf[0].ID)

	byRef, err := s.store.Stock.ListMovements(s.ctx, domain.MovementFilter{ReferenceKind: domain.ReferenceTransfer, ReferenceID: transfer.TransferID})
	s.Require().NoError(err)
	s.Len(byRef, 2)

	future := time.Now().Add(time.Hour)
	none, err := s.store.Stock.ListMovements(s.ctx, domain.MovementFilter{From: &future})
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *RepositoryIntegrationTestSuite) TestSecondReversalIsRejectedByIndex() {
	received, err := s.ledger.Receive(s.ctx, application.ReceiveStockCommand{ProductID: "PX", ShelfID: "S1", Quantity: 2})
	s.Require().NoError(err)

	original, err := s.store.Stock.FindMovement(s.ctx, received.ID)
	s.Require().NoError(err)
	draft, err := original.ReversalDraft("", "")
	s.Require().NoError(err)

	first, err := domain.NewStockMovement(draft, pkgmongo.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Stock.AppendMovement(s.ctx, first))

	second, err := domain.NewStockMovement(draft, pkgmongo.Now())
	s.Require().NoError(err)
	err = s.store.Stock.AppendMovement(s.ctx, second)
	s.ErrorIs(err, domain.ErrAlreadyReversed)

	found, err := s.store.Stock.FindReversal(s.ctx, received.ID)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(first.ID, found.ID)
}

func (s *RepositoryIntegrationTestSuite) TestRouteVersioningAndDecimals() {
	route := &domain.Route{
		ID:       "RT-1",
		Name:     "morning",
		Status:   domain.RouteStatusCollecting,
		OrderIDs: []string{"A"},
		Orders: []domain.RouteOrder{{
			OrderID: "A",
			Lines: []domain.RouteLine{{
				LineID: "A-L1", ProductID: "PX", Barcode: "BX", Quantity: 2,
				UnitPrice: decimal.RequireFromString("4.25"),
			}},
		}},
		CreatedAt: pkgmongo.Now(),
	}
	s.Require().NoError(s.store.Routes.Save(s.ctx, route))
	s.Equal(int64(1), route.Version)

	loaded, err := s.store.Routes.FindByID(s.ctx, "RT-1")
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("4.25").Equal(loaded.Orders[0].Lines[0].UnitPrice))

	stale := *loaded
	loaded.Name = "updated"
	s.Require().NoError(s.store.Routes.Save(s.ctx, loaded))
	s.Equal(int64(2), loaded.Version)

	stale.Name = "lost update"
	s.ErrorIs(s.store.Routes.Save(s.ctx, &stale), domain.ErrConcurrentUpdate)

	active, err := s.store.Routes.FindActiveByOrderIDs(s.ctx, []string{"A", "B"})
	s.Require().NoError(err)
	s.Len(active, 1)

	_, err = s.store.Routes.FindByID(s.ctx, "RT-404")
	s.ErrorIs(err, domain.ErrRouteNotFound)
}

func (s *RepositoryIntegrationTestSuite) TestReturnItemsByStatus() {
	now := pkgmongo.Now()
	for i, id := range []string{"RI-2", "RI-1"} {
		item := &domain.ReturnItem{
			ID: id, Barcode: "BX", Quantity: 1,
			Condition: domain.ReturnConditionNormal,
			Status:    domain.ReturnStatusUnresolved,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		s.Require().NoError(s.store.Returns.Save(s.ctx, item))
	}

	items, err := s.store.Returns.FindByStatus(s.ctx, domain.ReturnStatusUnresolved, 0)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal("RI-2", items[0].ID)

	_, err = s.store.Returns.FindByID(s.ctx, "RI-404")
	s.ErrorIs(err, domain.ErrReturnItemNotFound)
}
