package outbox

import (
	"context"
	"time"
)

// Repository persists outbox events
type Repository interface {
	// SaveAll saves events; honours a transaction carried by ctx
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished returns retryable unpublished events, oldest first
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkPublished marks an event as published
	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry records a failed delivery attempt
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	// DeletePublished removes events published before olderThan
	DeletePublished(ctx context.Context, olderThan time.Time) (int64, error)

	// FindByAggregateID returns all events raised by one aggregate
	FindByAggregateID(ctx context.Context, aggregateID string) ([]*OutboxEvent, error)
}
