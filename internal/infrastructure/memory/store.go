// Package memory is a transactional in-process store used for tests and the
// memory storage driver. Writers are serialized and stage their changes in a
// transaction overlay that is applied to the committed state in one step, so
// readers observe either the state before or after a unit of work.
package memory

import (
	"context"
	"sync"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/outbox"
)

type txKey struct{}

// Store holds committed state
type Store struct {
	writer sync.Mutex
	mu     sync.RWMutex

	movements  []*domain.StockMovement
	movementAt map[string]int
	locations  map[string]*domain.LocationStock
	aggregates map[string]*domain.ProductAggregate
	routes     map[string]*domain.Route
	returns    map[string]*domain.ReturnItem
	outbox     []*outbox.OutboxEvent
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		movementAt: make(map[string]int),
		locations:  make(map[string]*domain.LocationStock),
		aggregates: make(map[string]*domain.ProductAggregate),
		routes:     make(map[string]*domain.Route),
		returns:    make(map[string]*domain.ReturnItem),
	}
}

// tx is the overlay of one unit of work. A nil location marks a deletion.
type tx struct {
	movements  []*domain.StockMovement
	locations  map[string]*domain.LocationStock
	aggregates map[string]*domain.ProductAggregate
	routes     map[string]*domain.Route
	returns    map[string]*domain.ReturnItem
	outbox     []*outbox.OutboxEvent
}

func newTx() *tx {
	return &tx{
		locations:  make(map[string]*domain.LocationStock),
		aggregates: make(map[string]*domain.ProductAggregate),
		routes:     make(map[string]*domain.Route),
		returns:    make(map[string]*domain.ReturnItem),
	}
}

func txFrom(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

// WithTransaction runs fn as one unit of work. Nested calls join the outer
// transaction; only the outermost call commits.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writer.Lock()
	defer s.writer.Unlock()

	t := newTx()
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	s.commit(t)
	return nil
}

func (s *Store) commit(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range t.movements {
		s.movementAt[m.ID] = len(s.movements)
		s.movements = append(s.movements, m)
	}
	for key, loc := range t.locations {
		if loc == nil {
			delete(s.locations, key)
			continue
		}
		s.locations[key] = loc
	}
	for id, agg := range t.aggregates {
		s.aggregates[id] = agg
	}
	for id, r := range t.routes {
		s.routes[id] = r
	}
	for id, item := range t.returns {
		s.returns[id] = item
	}
	s.outbox = append(s.outbox, t.outbox...)
}

// write runs fn against the transaction in ctx, or in a transaction of its
// own when there is none
func (s *Store) write(ctx context.Context, fn func(t *tx) error) error {
	if t := txFrom(ctx); t != nil {
		return fn(t)
	}
	return s.WithTransaction(ctx, func(ctx context.Context) error {
		return fn(txFrom(ctx))
	})
}

// Reset drops all state
func (s *Store) Reset() {
	s.writer.Lock()
	defer s.writer.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.movements = nil
	s.movementAt = make(map[string]int)
	s.locations = make(map[string]*domain.LocationStock)
	s.aggregates = make(map[string]*domain.ProductAggregate)
	s.routes = make(map[string]*domain.Route)
	s.returns = make(map[string]*domain.ReturnItem)
	s.outbox = nil
}

// HealthCheck always succeeds
func (s *Store) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

var _ domain.TransactionManager = (*Store)(nil)
