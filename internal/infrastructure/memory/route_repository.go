package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/wms-platform/fulfillment-service/internal/domain"
)

// RouteRepository is the in-memory route store
type RouteRepository struct {
	store *Store
}

// NewRouteRepository creates a route repository on store
func NewRouteRepository(store *Store) *RouteRepository {
	return &RouteRepository{store: store}
}

// Save stages a route, checking its version
func (r *RouteRepository) Save(ctx context.Context, route *domain.Route) error {
	return r.store.write(ctx, func(t *tx) error {
		current, exists := r.lookup(t, route.ID)
		switch {
		case route.Version == 0 && exists:
			return fmt.Errorf("%w: route %s already exists", domain.ErrConcurrentUpdate, route.ID)
		case route.Version > 0 && (!exists || current.Version != route.Version):
			return fmt.Errorf("%w: route %s version %d", domain.ErrConcurrentUpdate, route.ID, route.Version)
		}
		route.Version++
		t.routes[route.ID] = cloneRoute(route)
		return nil
	})
}

// FindByID retrieves a route
func (r *RouteRepository) FindByID(ctx context.Context, routeID string) (*domain.Route, error) {
	route, ok := r.lookup(txFrom(ctx), routeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRouteNotFound, routeID)
	}
	return cloneRoute(route), nil
}

// FindByStatus lists routes in status, newest first
func (r *RouteRepository) FindByStatus(ctx context.Context, status domain.RouteStatus, limit int) ([]*domain.Route, error) {
	out := r.filter(txFrom(ctx), func(route *domain.Route) bool { return route.Status == status })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindActiveByOrderIDs returns active routes holding any of orderIDs
func (r *RouteRepository) FindActiveByOrderIDs(ctx context.Context, orderIDs []string) ([]*domain.Route, error) {
	wanted := make(map[string]bool, len(orderIDs))
	for _, id := range orderIDs {
		wanted[id] = true
	}
	out := r.filter(txFrom(ctx), func(route *domain.Route) bool {
		if !route.Status.IsActive() {
			return false
		}
		for _, id := range route.OrderIDs {
			if wanted[id] {
				return true
			}
		}
		return false
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *RouteRepository) lookup(t *tx, routeID string) (*domain.Route, bool) {
	if t != nil {
		if route, ok := t.routes[routeID]; ok {
			return route, true
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	route, ok := r.store.routes[routeID]
	return route, ok
}

func (r *RouteRepository) filter(t *tx, match func(*domain.Route) bool) []*domain.Route {
	merged := make(map[string]*domain.Route)
	r.store.mu.RLock()
	for id, route := range r.store.routes {
		merged[id] = route
	}
	r.store.mu.RUnlock()
	if t != nil {
		for id, route := range t.routes {
			merged[id] = route
		}
	}

	var out []*domain.Route
	for _, route := range merged {
		if match(route) {
			out = append(out, cloneRoute(route))
		}
	}
	return out
}

// cloneRoute deep-copies a route without its pending events
func cloneRoute(r *domain.Route) *domain.Route {
	c := *r
	c.DomainEvents = nil
	c.OrderIDs = append([]string(nil), r.OrderIDs...)
	c.Items = append([]domain.RouteItem(nil), r.Items...)
	c.Orders = make([]domain.RouteOrder, len(r.Orders))
	for i, o := range r.Orders {
		o.Lines = append([]domain.RouteLine(nil), o.Lines...)
		c.Orders[i] = o
	}
	c.Shelf.ValidatedAt = copyTime(r.Shelf.ValidatedAt)
	c.ReadyAt = copyTime(r.ReadyAt)
	c.CompletedAt = copyTime(r.CompletedAt)
	c.CancelledAt = copyTime(r.CancelledAt)
	return &c
}

var _ domain.RouteRepository = (*RouteRepository)(nil)
