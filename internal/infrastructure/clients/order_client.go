package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/resilience"
)

// OrderDTO represents order data fetched from order-service
type OrderDTO struct {
	OrderID     string         `json:"orderId"`
	OrderNumber string         `json:"orderNumber"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	Items       []OrderItemDTO `json:"items"`
}

// OrderItemDTO is one line of an order
type OrderItemDTO struct {
	LineID    string          `json:"lineId"`
	ProductID string          `json:"productId"`
	Barcode   string          `json:"barcode"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// OrderServiceClient handles communication with order-service
// Implements application.OrderService
type OrderServiceClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retry      *resilience.RetryConfig
	logger     *logging.Logger
}

// OrderClientConfig configures the order-service client
type OrderClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// Retry re-issues lookups that failed upstream. nil means one attempt.
	Retry *resilience.RetryConfig
}

// errUpstream marks transport failures and 5xx answers
var errUpstream = errors.New("order service unavailable")

// RetryUpstream reports whether err is worth another attempt. An open
// circuit is not.
func RetryUpstream(err error) bool {
	return errors.Is(err, errUpstream) && !errors.Is(err, resilience.ErrCircuitOpen)
}

// NewOrderServiceClient creates a new OrderServiceClient. breaker may be nil.
func NewOrderServiceClient(config OrderClientConfig, breaker *resilience.CircuitBreaker, logger *logging.Logger) *OrderServiceClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OrderServiceClient{
		baseURL:    config.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		retry:      config.Retry,
		logger:     logger,
	}
}

// fetchResult lets a 404 pass through the breaker as a success
type fetchResult struct {
	order    *OrderDTO
	notFound bool
}

// GetOrder fetches a single order by ID from order-service
func (c *OrderServiceClient) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var (
		res *fetchResult
		err error
	)
	if c.retry != nil {
		res, err = resilience.RetryWithResult(ctx, c.retry, func() (*fetchResult, error) {
			return c.guardedFetch(ctx, orderID)
		})
	} else {
		res, err = c.guardedFetch(ctx, orderID)
	}
	if err != nil {
		c.logger.Warn("Order service call failed", "orderId", orderID, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrOrderServiceDown, err)
	}
	if res == nil || res.notFound {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return res.order.toDomain(), nil
}

func (c *OrderServiceClient) guardedFetch(ctx context.Context, orderID string) (*fetchResult, error) {
	if c.breaker == nil {
		return c.fetch(ctx, orderID)
	}
	out, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.fetch(ctx, orderID)
	})
	if err != nil {
		return nil, err
	}
	res, _ := out.(*fetchResult)
	return res, nil
}

func (c *OrderServiceClient) fetch(ctx context.Context, orderID string) (*fetchResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/orders/%s", c.baseURL, url.PathEscape(orderID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &fetchResult{notFound: true}, nil
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", errUpstream, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order service returned status %d", resp.StatusCode)
	}

	var order OrderDTO
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}
	return &fetchResult{order: &order}, nil
}

func (o *OrderDTO) toDomain() *domain.Order {
	order := &domain.Order{
		ID:          o.OrderID,
		OrderNumber: o.OrderNumber,
		Status:      domain.OrderStatus(o.Status),
		CreatedAt:   o.CreatedAt,
		Lines:       make([]domain.OrderLine, 0, len(o.Items)),
	}
	for _, item := range o.Items {
		order.Lines = append(order.Lines, domain.OrderLine{
			LineID:    item.LineID,
			ProductID: item.ProductID,
			Barcode:   item.Barcode,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return order
}
