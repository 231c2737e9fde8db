package main

import (
	"context"
	"fmt"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/memory"
	mongoRepo "github.com/wms-platform/fulfillment-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/fulfillment-service/pkg/config"
	"github.com/wms-platform/fulfillment-service/pkg/idempotency"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	pkgmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
	"github.com/wms-platform/fulfillment-service/pkg/outbox"
)

// storage is the set of repositories the services run on
type storage struct {
	stock   domain.StockRepository
	routes  domain.RouteRepository
	returns domain.ReturnItemRepository
	outbox  outbox.Repository
	tx      domain.TransactionManager
	keys    idempotency.KeyRepository
	health  func(ctx context.Context) error
	close   func(ctx context.Context)
}

func openStorage(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *logging.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("Using in-memory storage; state is lost on restart")
		return newMemoryStorage(), nil
	case config.StorageMongoDB:
		return openMongoStorage(ctx, cfg.MongoDB, m, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func newMemoryStorage() *storage {
	store := memory.NewStore()
	return &storage{
		stock:   memory.NewStockRepository(store),
		routes:  memory.NewRouteRepository(store),
		returns: memory.NewReturnItemRepository(store),
		outbox:  memory.NewOutboxRepository(store),
		tx:      store,
		keys:    idempotency.NewMemoryKeyRepository(),
		health:  store.HealthCheck,
		close:   func(context.Context) {},
	}
}

func openMongoStorage(ctx context.Context, mongoConfig *pkgmongo.Config, m *metrics.Metrics, logger *logging.Logger) (*storage, error) {
	mongoConfig.Registry = mongoRepo.NewRegistry()
	client, err := pkgmongo.NewClient(ctx, mongoConfig)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to MongoDB", "database", mongoConfig.Database)

	store := mongoRepo.NewStore(client, m)
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	keys := idempotency.NewMongoKeyRepository(client.Database())
	if err := keys.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to initialize idempotency indexes")
	}

	return &storage{
		stock:   store.Stock,
		routes:  store.Routes,
		returns: store.Returns,
		outbox:  store.Outbox,
		tx:      store.Tx,
		keys:    keys,
		health:  store.HealthCheck,
		close: func(ctx context.Context) {
			if err := client.Close(ctx); err != nil {
				logger.WithError(err).Warn("Failed to close MongoDB client")
			}
		},
	}, nil
}
