package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/wms-platform/fulfillment-service/pkg/outbox"
)

// OutboxRepository keeps outbox rows next to the state they describe
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository creates an outbox repository on store
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

// SaveAll stages events in the caller's transaction
func (r *OutboxRepository) SaveAll(ctx context.Context, events []*outbox.OutboxEvent) error {
	clones := make([]*outbox.OutboxEvent, len(events))
	for i, e := range events {
		c := *e
		clones[i] = &c
	}
	return r.store.write(ctx, func(t *tx) error {
		t.outbox = append(t.outbox, clones...)
		return nil
	})
}

// FindUnpublished returns retryable events in insertion order
func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*outbox.OutboxEvent
	for _, e := range r.store.outbox {
		if !e.ShouldRetry() {
			continue
		}
		c := *e
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkPublished stamps an event as delivered
func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	return r.update(eventID, func(e *outbox.OutboxEvent) {
		now := time.Now().UTC()
		e.PublishedAt = &now
	})
}

// IncrementRetry records a failed delivery
func (r *OutboxRepository) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	return r.update(eventID, func(e *outbox.OutboxEvent) {
		e.RetryCount++
		e.LastError = errorMsg
	})
}

// DeletePublished drops events delivered before olderThan
func (r *OutboxRepository) DeletePublished(ctx context.Context, olderThan time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.outbox[:0]
	var deleted int64
	for _, e := range r.store.outbox {
		if e.PublishedAt != nil && e.PublishedAt.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.store.outbox = kept
	return deleted, nil
}

// FindByAggregateID returns the committed events of one aggregate
func (r *OutboxRepository) FindByAggregateID(ctx context.Context, aggregateID string) ([]*outbox.OutboxEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*outbox.OutboxEvent
	for _, e := range r.store.outbox {
		if e.AggregateID == aggregateID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// Events returns every committed event in insertion order
func (r *OutboxRepository) Events() []*outbox.OutboxEvent {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*outbox.OutboxEvent, len(r.store.outbox))
	for i, e := range r.store.outbox {
		c := *e
		out[i] = &c
	}
	return out
}

func (r *OutboxRepository) update(eventID string, fn func(*outbox.OutboxEvent)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, e := range r.store.outbox {
		if e.ID == eventID {
			fn(e)
			return nil
		}
	}
	return fmt.Errorf("outbox event %s not found", eventID)
}

var _ outbox.Repository = (*OutboxRepository)(nil)
