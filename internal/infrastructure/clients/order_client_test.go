package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/resilience"
)

const orderJSON = `{
	"orderId": "ORD-001",
	"orderNumber": "NO-1001",
	"status": "CONFIRMED",
	"createdAt": "2024-12-31T23:59:59Z",
	"items": [
		{"lineId": "L1", "productId": "P1", "barcode": "4006381333931", "quantity": 3, "unitPrice": "4.25"},
		{"lineId": "L2", "productId": "P2", "barcode": "4006381333948", "quantity": 1, "unitPrice": "10"}
	]
}`

func newClient(url string, breaker *resilience.CircuitBreaker) *OrderServiceClient {
	return NewOrderServiceClient(OrderClientConfig{BaseURL: url, Timeout: time.Second}, breaker, logging.NewNop())
}

func TestOrderServiceClient_GetOrder(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		orderID     string
		wantErr     error
		errContains string
	}{
		{
			name: "Successfully get order",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/api/v1/orders/ORD-001", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(orderJSON))
			},
			orderID: "ORD-001",
		},
		{
			name: "Order not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			orderID:     "ORD-999",
			wantErr:     domain.ErrOrderNotFound,
			errContains: "ORD-999",
		},
		{
			name: "Service returns error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			orderID:     "ORD-001",
			wantErr:     domain.ErrOrderServiceDown,
			errContains: "status 500",
		},
		{
			name: "Malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"orderId":`))
			},
			orderID:     "ORD-001",
			wantErr:     domain.ErrOrderServiceDown,
			errContains: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			order, err := newClient(server.URL, nil).GetOrder(context.Background(), tt.orderID)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Nil(t, order)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, order)
			assert.Equal(t, "ORD-001", order.ID)
			assert.Equal(t, "NO-1001", order.OrderNumber)
			assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
			require.Len(t, order.Lines, 2)
			assert.Equal(t, "P1", order.Lines[0].ProductID)
			assert.Equal(t, 3, order.Lines[0].Quantity)
			assert.True(t, decimal.RequireFromString("4.25").Equal(order.Lines[0].UnitPrice))
			assert.NoError(t, order.CheckPickable())
		})
	}
}

func TestOrderServiceClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newClient(url, nil).GetOrder(context.Background(), "ORD-001")
	assert.ErrorIs(t, err, domain.ErrOrderServiceDown)
}

func TestOrderServiceClient_CircuitBreaker(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/api/v1/orders/MISSING" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := resilience.DefaultCircuitBreakerConfig("order-service")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Minute
	breaker := resilience.NewCircuitBreaker(cfg, logging.NewNop().Logger, nil)
	client := newClient(server.URL, breaker)
	ctx := context.Background()

	// not found is an answer, not a failure
	for i := 0; i < 3; i++ {
		_, err := client.GetOrder(ctx, "MISSING")
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	}

	for i := 0; i < 2; i++ {
		_, err := client.GetOrder(ctx, "ORD-001")
		assert.ErrorIs(t, err, domain.ErrOrderServiceDown)
	}
	require.Equal(t, int32(5), calls.Load())

	_, err := client.GetOrder(ctx, "ORD-001")
	assert.ErrorIs(t, err, domain.ErrOrderServiceDown)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, int32(5), calls.Load())
}

func TestOrderServiceClient_RetriesUpstreamFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		switch {
		case r.URL.Path == "/api/v1/orders/MISSING":
			w.WriteHeader(http.StatusNotFound)
		case n == 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.Write([]byte(orderJSON))
		}
	}))
	defer server.Close()

	retry := &resilience.RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffFactor:   2,
		RetryableErrors: RetryUpstream,
	}
	client := NewOrderServiceClient(OrderClientConfig{BaseURL: server.URL, Timeout: time.Second, Retry: retry}, nil, logging.NewNop())

	order, err := client.GetOrder(context.Background(), "ORD-001")
	require.NoError(t, err)
	assert.Equal(t, "ORD-001", order.ID)
	assert.Equal(t, int32(2), calls.Load())

	_, err = client.GetOrder(context.Background(), "MISSING")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryUpstream(t *testing.T) {
	assert.True(t, RetryUpstream(errUpstream))
	assert.False(t, RetryUpstream(errors.New("decode")))
	assert.False(t, RetryUpstream(errors.Join(errUpstream, resilience.ErrCircuitOpen)))
}
