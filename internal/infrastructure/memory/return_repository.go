package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wms-platform/fulfillment-service/internal/domain"
)

// ReturnItemRepository is the in-memory return item store
type ReturnItemRepository struct {
	store *Store
}

// NewReturnItemRepository creates a return item repository on store
func NewReturnItemRepository(store *Store) *ReturnItemRepository {
	return &ReturnItemRepository{store: store}
}

// Save stages a return item, checking its version
func (r *ReturnItemRepository) Save(ctx context.Context, item *domain.ReturnItem) error {
	return r.store.write(ctx, func(t *tx) error {
		current, exists := r.lookup(t, item.ID)
		switch {
		case item.Version == 0 && exists:
			return fmt.Errorf("%w: return item %s already exists", domain.ErrConcurrentUpdate, item.ID)
		case item.Version > 0 && (!exists || current.Version != item.Version):
			return fmt.Errorf("%w: return item %s version %d", domain.ErrConcurrentUpdate, item.ID, item.Version)
		}
		item.Version++
		t.returns[item.ID] = cloneReturnItem(item)
		return nil
	})
}

// FindByID retrieves a return item
func (r *ReturnItemRepository) FindByID(ctx context.Context, id string) (*domain.ReturnItem, error) {
	item, ok := r.lookup(txFrom(ctx), id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrReturnItemNotFound, id)
	}
	return cloneReturnItem(item), nil
}

// FindByStatus lists return items in status, oldest first
func (r *ReturnItemRepository) FindByStatus(ctx context.Context, status domain.ReturnStatus, limit int) ([]*domain.ReturnItem, error) {
	merged := make(map[string]*domain.ReturnItem)
	r.store.mu.RLock()
	for id, item := range r.store.returns {
		merged[id] = item
	}
	r.store.mu.RUnlock()
	if t := txFrom(ctx); t != nil {
		for id, item := range t.returns {
			merged[id] = item
		}
	}

	var out []*domain.ReturnItem
	for _, item := range merged {
		if item.Status == status {
			out = append(out, cloneReturnItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ReturnItemRepository) lookup(t *tx, id string) (*domain.ReturnItem, bool) {
	if t != nil {
		if item, ok := t.returns[id]; ok {
			return item, true
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	item, ok := r.store.returns[id]
	return item, ok
}

func cloneReturnItem(item *domain.ReturnItem) *domain.ReturnItem {
	c := *item
	c.DomainEvents = nil
	c.ResolvedAt = copyTime(item.ResolvedAt)
	c.RestockedAt = copyTime(item.RestockedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var _ domain.ReturnItemRepository = (*ReturnItemRepository)(nil)
