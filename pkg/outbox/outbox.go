package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
)

// DefaultMaxRetries bounds delivery attempts before an event is parked
const DefaultMaxRetries = 10

// OutboxEvent is a CloudEvent waiting to be delivered to Kafka. It is written
// in the same transaction as the state change it describes.
type OutboxEvent struct {
	ID            string          `bson:"_id" json:"id"`
	AggregateID   string          `bson:"aggregateId" json:"aggregateId"`
	AggregateType string          `bson:"aggregateType" json:"aggregateType"`
	EventType     string          `bson:"eventType" json:"eventType"`
	Topic         string          `bson:"topic" json:"topic"`
	Payload       json.RawMessage `bson:"payload" json:"payload"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	PublishedAt   *time.Time      `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	RetryCount    int             `bson:"retryCount" json:"retryCount"`
	LastError     string          `bson:"lastError,omitempty" json:"lastError,omitempty"`
	MaxRetries    int             `bson:"maxRetries" json:"maxRetries"`
}

// NewOutboxEventFromCloudEvent wraps a CloudEvent for the outbox
func NewOutboxEventFromCloudEvent(aggregateID, aggregateType, topic string, cloudEvent *cloudevents.WMSCloudEvent) (*OutboxEvent, error) {
	payload, err := json.Marshal(cloudEvent)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", cloudEvent.Type, err)
	}

	return &OutboxEvent{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     cloudEvent.Type,
		Topic:         topic,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
		MaxRetries:    DefaultMaxRetries,
	}, nil
}

// IsPublished checks if the event has been published
func (e *OutboxEvent) IsPublished() bool {
	return e.PublishedAt != nil
}

// ShouldRetry checks if the event should be retried
func (e *OutboxEvent) ShouldRetry() bool {
	return !e.IsPublished() && e.RetryCount < e.MaxRetries
}

// ToCloudEvent decodes the stored payload
func (e *OutboxEvent) ToCloudEvent() (*cloudevents.WMSCloudEvent, error) {
	var cloudEvent cloudevents.WMSCloudEvent
	if err := json.Unmarshal(e.Payload, &cloudEvent); err != nil {
		return nil, err
	}
	return &cloudEvent, nil
}

// Event is anything with a CloudEvents type; domain events satisfy it
type Event interface {
	EventType() string
}

// Recorder turns domain events into outbox rows. Call it with the
// transaction context so the rows commit with the aggregate.
type Recorder struct {
	repo    Repository
	factory *cloudevents.EventFactory
	topic   string
}

// NewRecorder creates a recorder that writes to repo for topic
func NewRecorder(repo Repository, factory *cloudevents.EventFactory, topic string) *Recorder {
	return &Recorder{repo: repo, factory: factory, topic: topic}
}

// Record appends events raised by one aggregate
func (r *Recorder) Record(ctx context.Context, aggregateType, aggregateID string, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]*OutboxEvent, 0, len(events))
	for _, event := range events {
		ce := r.factory.CreateEvent(ctx, event.EventType(), aggregateType+"/"+aggregateID, event)
		if aggregateType == "route" {
			ce.RouteID = aggregateID
		}
		if o, ok := event.(interface{ EventOrderID() string }); ok {
			ce.OrderID = o.EventOrderID()
		}
		row, err := NewOutboxEventFromCloudEvent(aggregateID, aggregateType, r.topic, ce)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return r.repo.SaveAll(ctx, rows)
}
