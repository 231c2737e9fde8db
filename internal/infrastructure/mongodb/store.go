package mongodb

import (
	"context"

	outboxmongo "github.com/wms-platform/fulfillment-service/pkg/outbox/mongodb"
	pkgmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
)

// Store bundles the MongoDB-backed repositories sharing one client
type Store struct {
	Client  *pkgmongo.Client
	Tx      *TxManager
	Stock   *StockRepository
	Routes  *RouteRepository
	Returns *ReturnItemRepository
	Outbox  *outboxmongo.OutboxRepository
}

// NewStore wires every repository on client's database. recorder may be nil.
func NewStore(client *pkgmongo.Client, recorder pkgmongo.OperationRecorder) *Store {
	db := client.Database()
	return &Store{
		Client:  client,
		Tx:      NewTxManager(client),
		Stock:   NewStockRepository(db, recorder),
		Routes:  NewRouteRepository(db, recorder),
		Returns: NewReturnItemRepository(db, recorder),
		Outbox:  outboxmongo.NewOutboxRepository(db),
	}
}

// EnsureIndexes creates the indexes of every collection
func (s *Store) EnsureIndexes(ctx context.Context) error {
	steps := []func(context.Context) error{
		s.Stock.EnsureIndexes,
		s.Routes.EnsureIndexes,
		s.Returns.EnsureIndexes,
		s.Outbox.EnsureIndexes,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// HealthCheck pings the primary
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.Client.HealthCheck(ctx)
}
