package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the fulfillment service's Prometheus collectors.
// All Record helpers are safe on a nil receiver so tests can pass nil.
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaEventsConsumed  *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Fulfillment metrics
	ScansTotal         *prometheus.CounterVec
	LedgerMovements    *prometheus.CounterVec
	LedgerQuantity     *prometheus.CounterVec
	StockMismatches    prometheus.Counter
	RouteTransitions   *prometheus.CounterVec
	TransferShortfalls *prometheus.CounterVec
	OutboxPending      prometheus.Gauge
	IdempotentReplays  *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// New creates a new Metrics instance
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ns := config.Namespace
	service := prometheus.Labels{"service": config.ServiceName}

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"service", "method", "path", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"service", "method", "path"})

	m.HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "http_requests_in_flight",
		Help:        "Number of HTTP requests currently being processed",
		ConstLabels: service,
	})

	m.KafkaEventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "kafka_events_published_total",
		Help:      "Total number of Kafka events published",
	}, []string{"service", "topic", "event_type", "status"})

	m.KafkaEventsConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "kafka_events_consumed_total",
		Help:      "Total number of Kafka events consumed",
	}, []string{"service", "topic", "event_type", "status"})

	m.KafkaPublishDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "kafka_publish_duration_seconds",
		Help:      "Kafka publish duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"service", "topic"})

	m.MongoDBOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "mongodb_operations_total",
		Help:      "Total number of MongoDB operations",
	}, []string{"service", "collection", "operation", "status"})

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "mongodb_operation_duration_seconds",
		Help:      "MongoDB operation duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"service", "collection", "operation"})

	m.ScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "scans_total",
		Help:      "Shelf and barcode scans by outcome",
	}, []string{"service", "kind", "result"})

	m.LedgerMovements = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "ledger_movements_total",
		Help:      "Stock ledger entries recorded",
	}, []string{"service", "type", "direction"})

	m.LedgerQuantity = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "ledger_quantity_total",
		Help:      "Units moved through the stock ledger",
	}, []string{"service", "type", "direction"})

	m.StockMismatches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "stock_mismatch_total",
		Help:        "Scans aborted because the ledger refused a gated pick",
		ConstLabels: service,
	})

	m.RouteTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "route_transitions_total",
		Help:      "Route status transitions",
	}, []string{"service", "to"})

	m.TransferShortfalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "transfer_shortfalls_total",
		Help:      "Availability checks that reported a sellable shortfall",
	}, []string{"service", "trigger"})

	m.OutboxPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "outbox_pending_events",
		Help:        "Outbox events waiting to be published",
		ConstLabels: service,
	})

	m.IdempotentReplays = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "idempotent_replays_total",
		Help:      "Requests answered from a stored idempotent response",
	}, []string{"service", "path"})

	m.CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"service", "name"})

	m.CircuitBreakerTrips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "circuit_breaker_trips_total",
		Help:      "Total number of circuit breaker trips",
	}, []string{"service", "name"})

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaEventsConsumed,
		m.KafkaPublishDuration,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.ScansTotal,
		m.LedgerMovements,
		m.LedgerQuantity,
		m.StockMismatches,
		m.RouteTransitions,
		m.TransferShortfalls,
		m.OutboxPending,
		m.IdempotentReplays,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish event
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, status(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordKafkaConsume records a Kafka consume event
func (m *Metrics) RecordKafkaConsume(topic, eventType string, success bool) {
	if m == nil {
		return
	}
	m.KafkaEventsConsumed.WithLabelValues(m.serviceName, topic, eventType, status(success)).Inc()
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, status(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// RecordScan records the outcome of a shelf or barcode scan. result is
// "accepted" or the rejection code.
func (m *Metrics) RecordScan(kind, result string) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(m.serviceName, kind, result).Inc()
}

// RecordLedgerMovement records one ledger entry
func (m *Metrics) RecordLedgerMovement(movementType, direction string, quantity int) {
	if m == nil {
		return
	}
	m.LedgerMovements.WithLabelValues(m.serviceName, movementType, direction).Inc()
	m.LedgerQuantity.WithLabelValues(m.serviceName, movementType, direction).Add(float64(quantity))
}

// RecordStockMismatch counts a gated scan the ledger refused
func (m *Metrics) RecordStockMismatch() {
	if m == nil {
		return
	}
	m.StockMismatches.Inc()
}

// RecordRouteTransition records a route entering a new status
func (m *Metrics) RecordRouteTransition(to string) {
	if m == nil {
		return
	}
	m.RouteTransitions.WithLabelValues(m.serviceName, to).Inc()
}

// RecordTransferShortfall records an availability check that blocked a route
func (m *Metrics) RecordTransferShortfall(trigger string) {
	if m == nil {
		return
	}
	m.TransferShortfalls.WithLabelValues(m.serviceName, trigger).Inc()
}

// SetOutboxPending sets the number of unpublished outbox events
func (m *Metrics) SetOutboxPending(n int) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(n))
}

// RecordIdempotentReplay counts a response served from the idempotency store
func (m *Metrics) RecordIdempotentReplay(path string) {
	if m == nil {
		return
	}
	m.IdempotentReplays.WithLabelValues(m.serviceName, path).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	if m == nil {
		return
	}
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}
