package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the order service's status for an order
type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "PENDING"
	OrderStatusConfirmed   OrderStatus = "CONFIRMED"
	OrderStatusReadyToPick OrderStatus = "READY_TO_PICK"
	OrderStatusPicking     OrderStatus = "PICKING"
	OrderStatusPacked      OrderStatus = "PACKED"
	OrderStatusShipped     OrderStatus = "SHIPPED"
	OrderStatusCancelled   OrderStatus = "CANCELLED"
)

// IsPickable reports whether orders in this status may join a route
func (s OrderStatus) IsPickable() bool {
	return s == OrderStatusConfirmed || s == OrderStatusReadyToPick
}

// Order is the read model of an order owned by the order service
type Order struct {
	ID          string      `json:"id"`
	OrderNumber string      `json:"orderNumber"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	Lines       []OrderLine `json:"lines"`
}

// OrderLine is one product line of an order
type OrderLine struct {
	LineID    string          `json:"lineId"`
	ProductID string          `json:"productId"`
	Barcode   string          `json:"barcode"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// CheckPickable returns an OrderNotPickableError when the order cannot be
// picked
func (o *Order) CheckPickable() error {
	if !o.Status.IsPickable() {
		return &OrderNotPickableError{OrderID: o.ID, Reason: fmt.Sprintf("status %s", o.Status)}
	}
	if len(o.Lines) == 0 {
		return &OrderNotPickableError{OrderID: o.ID, Reason: "order has no lines"}
	}
	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			return &OrderNotPickableError{OrderID: o.ID, Reason: fmt.Sprintf("line %s has quantity %d", line.LineID, line.Quantity)}
		}
		if line.ProductID == "" || line.Barcode == "" {
			return &OrderNotPickableError{OrderID: o.ID, Reason: fmt.Sprintf("line %s has no product", line.LineID)}
		}
	}
	return nil
}
