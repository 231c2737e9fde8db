package kafka

import "time"

// Config holds Kafka configuration
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack

	// Consumer settings
	MinBytes       int
	MaxBytes       int
	MaxWait        time.Duration
	CommitInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:       []string{"localhost:9092"},
		ConsumerGroup: "fulfillment-service",
		ClientID:      "fulfillment-service",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,

		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
	}
}

// Topics used by the fulfillment service
var Topics = struct {
	// Published
	FulfillmentEvents string

	// Consumed
	FacilityEvents string
	ProductEvents  string
}{
	FulfillmentEvents: "wms.fulfillment.events",
	FacilityEvents:    "wms.facility.events",
	ProductEvents:     "wms.product.events",
}
