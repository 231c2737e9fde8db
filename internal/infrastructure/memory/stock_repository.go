package memory

import (
	"context"
	"sort"

	"github.com/wms-platform/fulfillment-service/internal/domain"
)

// StockRepository is the in-memory ledger and stock store
type StockRepository struct {
	store *Store
}

// NewStockRepository creates a stock repository on store
func NewStockRepository(store *Store) *StockRepository {
	return &StockRepository{store: store}
}

// AppendMovement stages a ledger entry
func (r *StockRepository) AppendMovement(ctx context.Context, m *domain.StockMovement) error {
	clone := *m
	return r.store.write(ctx, func(t *tx) error {
		t.movements = append(t.movements, &clone)
		return nil
	})
}

// FindMovement retrieves a ledger entry by id
func (r *StockRepository) FindMovement(ctx context.Context, id string) (*domain.StockMovement, error) {
	for _, m := range r.movements(ctx) {
		if m.ID == id {
			clone := *m
			return &clone, nil
		}
	}
	return nil, domain.ErrMovementNotFound
}

// FindReversal returns the CANCEL entry referencing movementID, or nil
func (r *StockRepository) FindReversal(ctx context.Context, movementID string) (*domain.StockMovement, error) {
	for _, m := range r.movements(ctx) {
		if m.Type == domain.MovementCancel && m.Reference.Kind == domain.ReferenceMovement && m.Reference.ID == movementID {
			clone := *m
			return &clone, nil
		}
	}
	return nil, nil
}

// ListMovements returns matching entries in recording order. A zero limit
// returns everything.
func (r *StockRepository) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error) {
	var out []*domain.StockMovement
	for _, m := range r.movements(ctx) {
		if !filter.Matches(m) {
			continue
		}
		clone := *m
		out = append(out, &clone)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// movements is committed entries followed by the ones staged in ctx
func (r *StockRepository) movements(ctx context.Context) []*domain.StockMovement {
	r.store.mu.RLock()
	out := append([]*domain.StockMovement(nil), r.store.movements...)
	r.store.mu.RUnlock()
	if t := txFrom(ctx); t != nil {
		out = append(out, t.movements...)
	}
	return out
}

// GetLocationStock returns the stock of productID on shelfID
func (r *StockRepository) GetLocationStock(ctx context.Context, productID, shelfID string) (*domain.LocationStock, error) {
	key := domain.LocationKey(productID, shelfID)
	if t := txFrom(ctx); t != nil {
		if loc, ok := t.locations[key]; ok {
			if loc == nil {
				return domain.NewLocationStock(productID, shelfID), nil
			}
			clone := *loc
			return &clone, nil
		}
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if loc, ok := r.store.locations[key]; ok {
		clone := *loc
		return &clone, nil
	}
	return domain.NewLocationStock(productID, shelfID), nil
}

// SaveLocationStock stages a location row, removing it at zero
func (r *StockRepository) SaveLocationStock(ctx context.Context, stock *domain.LocationStock) error {
	return r.store.write(ctx, func(t *tx) error {
		if stock.IsEmpty() {
			t.locations[stock.Key()] = nil
			return nil
		}
		clone := *stock
		t.locations[stock.Key()] = &clone
		return nil
	})
}

// ListLocationStock returns a product's locations ordered by shelf id
func (r *StockRepository) ListLocationStock(ctx context.Context, productID string) ([]*domain.LocationStock, error) {
	return r.listLocations(ctx, func(loc *domain.LocationStock) bool {
		return loc.ProductID == productID
	}), nil
}

// ListLocationStockByShelf returns the products stocked on shelfID
func (r *StockRepository) ListLocationStockByShelf(ctx context.Context, shelfID string) ([]*domain.LocationStock, error) {
	return r.listLocations(ctx, func(loc *domain.LocationStock) bool {
		return loc.ShelfID == shelfID
	}), nil
}

func (r *StockRepository) listLocations(ctx context.Context, match func(*domain.LocationStock) bool) []*domain.LocationStock {
	merged := make(map[string]*domain.LocationStock)
	r.store.mu.RLock()
	for key, loc := range r.store.locations {
		merged[key] = loc
	}
	r.store.mu.RUnlock()
	if t := txFrom(ctx); t != nil {
		for key, loc := range t.locations {
			merged[key] = loc
		}
	}

	var out []*domain.LocationStock
	for _, loc := range merged {
		if loc == nil || !match(loc) {
			continue
		}
		clone := *loc
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// GetProductAggregate returns the aggregate of productID
func (r *StockRepository) GetProductAggregate(ctx context.Context, productID string) (*domain.ProductAggregate, error) {
	if t := txFrom(ctx); t != nil {
		if agg, ok := t.aggregates[productID]; ok {
			clone := *agg
			return &clone, nil
		}
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if agg, ok := r.store.aggregates[productID]; ok {
		clone := *agg
		return &clone, nil
	}
	return domain.NewProductAggregate(productID), nil
}

// SaveProductAggregate stages an aggregate
func (r *StockRepository) SaveProductAggregate(ctx context.Context, agg *domain.ProductAggregate) error {
	clone := *agg
	return r.store.write(ctx, func(t *tx) error {
		t.aggregates[agg.ProductID] = &clone
		return nil
	})
}

// ListProductIDs returns every product with an aggregate, sorted
func (r *StockRepository) ListProductIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	r.store.mu.RLock()
	for id := range r.store.aggregates {
		seen[id] = true
	}
	r.store.mu.RUnlock()
	if t := txFrom(ctx); t != nil {
		for id := range t.aggregates {
			seen[id] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

var _ domain.StockRepository = (*StockRepository)(nil)
