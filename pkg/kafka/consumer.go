package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// EventHandler handles a CloudEvent
type EventHandler func(ctx context.Context, event *cloudevents.WMSCloudEvent) error

// Consumer reads CloudEvents from subscribed topics and routes them by type
type Consumer struct {
	config   *Config
	readers  map[string]*kafka.Reader
	handlers map[string]map[string]EventHandler // topic -> eventType -> handler
	logger   *logging.Logger
	metrics  *metrics.Metrics
	wg       sync.WaitGroup
}

// NewConsumer creates a new Kafka consumer. m may be nil.
func NewConsumer(config *Config, logger *logging.Logger, m *metrics.Metrics) *Consumer {
	return &Consumer{
		config:   config,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]map[string]EventHandler),
		logger:   logger,
		metrics:  m,
	}
}

// Subscribe registers handler for eventType on topic. "*" matches any type.
func (c *Consumer) Subscribe(topic, eventType string, handler EventHandler) {
	if _, exists := c.handlers[topic]; !exists {
		c.handlers[topic] = make(map[string]EventHandler)
	}
	c.handlers[topic][eventType] = handler
}

// Start consumes every subscribed topic until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	for topic := range c.handlers {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:        c.config.Brokers,
			GroupID:        c.config.ConsumerGroup,
			Topic:          topic,
			MinBytes:       c.config.MinBytes,
			MaxBytes:       c.config.MaxBytes,
			MaxWait:        c.config.MaxWait,
			CommitInterval: c.config.CommitInterval,
		})
		c.readers[topic] = reader

		c.wg.Add(1)
		go func(topic string, reader *kafka.Reader) {
			defer c.wg.Done()
			c.consumeTopic(ctx, topic, reader)
		}(topic, reader)
	}

	<-ctx.Done()
	c.wg.Wait()
	return ctx.Err()
}

func (c *Consumer) consumeTopic(ctx context.Context, topic string, reader *kafka.Reader) {
	c.logger.Info("Starting consumer for topic", "topic", topic, "group", c.config.ConsumerGroup)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Stopping consumer for topic", "topic", topic)
				return
			}
			c.logger.WithError(err).Error("Error fetching message", "topic", topic)
			continue
		}

		event, err := ParseMessage(msg)
		if err != nil {
			// Poison message: commit so the partition keeps moving
			c.logger.WithError(err).Error("Error parsing message", "topic", topic, "offset", msg.Offset)
			c.commit(ctx, reader, topic, msg)
			continue
		}

		c.logger.KafkaConsume(ctx, topic, event.Type, msg.Partition, msg.Offset)

		if err := c.Dispatch(ctx, topic, event); err != nil {
			c.metrics.RecordKafkaConsume(topic, event.Type, false)
			c.logger.WithError(err).Error("Error handling event",
				"topic", topic,
				"eventType", event.Type,
				"eventId", event.ID,
			)
			// not committed; redelivered after rebalance or restart
			continue
		}

		c.metrics.RecordKafkaConsume(topic, event.Type, true)
		c.commit(ctx, reader, topic, msg)
	}
}

func (c *Consumer) commit(ctx context.Context, reader *kafka.Reader, topic string, msg kafka.Message) {
	if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		c.logger.WithError(err).Error("Error committing message", "topic", topic)
	}
}

// ParseMessage decodes a Kafka message into a CloudEvent, letting ce-*
// headers fill in extensions missing from the body.
func ParseMessage(msg kafka.Message) (*cloudevents.WMSCloudEvent, error) {
	var event cloudevents.WMSCloudEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	for _, header := range msg.Headers {
		v := string(header.Value)
		switch header.Key {
		case "ce-wmscorrelationid":
			if event.CorrelationID == "" {
				event.CorrelationID = v
			}
		case "ce-wmswarehouseid":
			if event.WarehouseID == "" {
				event.WarehouseID = v
			}
		case "ce-traceparent":
			if event.TraceParent == "" {
				event.TraceParent = v
			}
		case "ce-tracestate":
			if event.TraceState == "" {
				event.TraceState = v
			}
		}
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

// Dispatch routes event to the handler registered for its type on topic.
// The handler runs in a span continuing the producer's trace.
func (c *Consumer) Dispatch(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) (err error) {
	handlers, exists := c.handlers[topic]
	if !exists {
		return fmt.Errorf("no handlers registered for topic %s", topic)
	}

	if event.TraceParent != "" {
		ctx = tracing.ExtractTraceContext(ctx, tracing.MapCarrier{
			"traceparent": event.TraceParent,
			"tracestate":  event.TraceState,
		})
	}
	ctx, span := tracing.StartSpan(ctx, "kafka.process "+event.Type,
		tracing.MessagingSpanAttributes("kafka", topic, "process")...)
	defer func() { tracing.EndSpan(span, err) }()

	if event.CorrelationID != "" {
		ctx = logging.ContextWithCorrelationID(ctx, event.CorrelationID)
	}

	if handler, exists := handlers[event.Type]; exists {
		return handler(ctx, event)
	}
	if handler, exists := handlers["*"]; exists {
		return handler(ctx, event)
	}

	c.logger.Debug("No handler for event type", "topic", topic, "eventType", event.Type)
	return nil
}

// Close closes all readers
func (c *Consumer) Close() error {
	var lastErr error
	for topic, reader := range c.readers {
		if err := reader.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close reader for topic %s: %w", topic, err)
		}
	}
	return lastErr
}
