package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// Event types published by the fulfillment service
const (
	EventStockMovementRecorded = "wms.fulfillment.stock-movement-recorded"
	EventRouteCreated          = "wms.fulfillment.route-created"
	EventRouteReady            = "wms.fulfillment.route-ready"
	EventRouteCancelled        = "wms.fulfillment.route-cancelled"
	EventRouteCompleted        = "wms.fulfillment.route-completed"
	EventPickedQuantityUpdated = "wms.fulfillment.picked-quantity-updated"
	EventOrderReadyForPacking  = "wms.fulfillment.order-ready-for-packing"
	EventTransferRequired      = "wms.fulfillment.transfer-required"
	EventReturnItemRegistered  = "wms.fulfillment.return-item-registered"
	EventReturnItemResolved    = "wms.fulfillment.return-item-resolved"
	EventReturnItemRestocked   = "wms.fulfillment.return-item-restocked"
)

// StockMovementRecordedEvent is published for every ledger entry
type StockMovementRecordedEvent struct {
	MovementID    string       `json:"movementId"`
	ProductID     string       `json:"productId"`
	Type          MovementType `json:"type"`
	Direction     Direction    `json:"direction"`
	Quantity      int          `json:"quantity"`
	ShelfID       string       `json:"shelfId"`
	SourceShelfID string       `json:"sourceShelfId,omitempty"`
	TargetShelfID string       `json:"targetShelfId,omitempty"`
	Reference     Reference    `json:"reference"`
	LocationQty   int          `json:"locationQuantity"`
	OnHand        int          `json:"onHand"`
	Sellable      int          `json:"sellable"`
	Actor         string       `json:"actor,omitempty"`
	RecordedAt    time.Time    `json:"recordedAt"`
}

func (e *StockMovementRecordedEvent) EventType() string    { return EventStockMovementRecorded }
func (e *StockMovementRecordedEvent) OccurredAt() time.Time { return e.RecordedAt }

// RouteCreatedEvent is published when orders are grouped into a route
type RouteCreatedEvent struct {
	RouteID       string    `json:"routeId"`
	Name          string    `json:"name"`
	OrderIDs      []string  `json:"orderIds"`
	ItemCount     int       `json:"itemCount"`
	TotalQuantity int       `json:"totalQuantity"`
	Value         string    `json:"value"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (e *RouteCreatedEvent) EventType() string    { return EventRouteCreated }
func (e *RouteCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// RouteReadyEvent is published when the last item of a route is picked
type RouteReadyEvent struct {
	RouteID        string    `json:"routeId"`
	OrderIDs       []string  `json:"orderIds"`
	PickedQuantity int       `json:"pickedQuantity"`
	ReadyAt        time.Time `json:"readyAt"`
}

func (e *RouteReadyEvent) EventType() string    { return EventRouteReady }
func (e *RouteReadyEvent) OccurredAt() time.Time { return e.ReadyAt }

// RouteCancelledEvent is published when a route is cancelled
type RouteCancelledEvent struct {
	RouteID          string    `json:"routeId"`
	OrderIDs         []string  `json:"orderIds"`
	ReleasedQuantity int       `json:"releasedQuantity"`
	Reason           string    `json:"reason,omitempty"`
	CancelledAt      time.Time `json:"cancelledAt"`
}

func (e *RouteCancelledEvent) EventType() string    { return EventRouteCancelled }
func (e *RouteCancelledEvent) OccurredAt() time.Time { return e.CancelledAt }

// RouteCompletedEvent is published when packing of a route finishes
type RouteCompletedEvent struct {
	RouteID         string    `json:"routeId"`
	OrderIDs        []string  `json:"orderIds"`
	ShippedQuantity int       `json:"shippedQuantity"`
	CompletedAt     time.Time `json:"completedAt"`
}

func (e *RouteCompletedEvent) EventType() string    { return EventRouteCompleted }
func (e *RouteCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// PickedQuantityUpdatedEvent tells the order service how much of a line was
// picked by one scan
type PickedQuantityUpdatedEvent struct {
	RouteID          string    `json:"routeId"`
	OrderID          string    `json:"orderId"`
	OrderNumber      string    `json:"orderNumber"`
	LineID           string    `json:"lineId"`
	ProductID        string    `json:"productId"`
	Barcode          string    `json:"barcode"`
	ShelfID          string    `json:"shelfId"`
	Quantity         int       `json:"quantity"`
	PickedQuantity   int       `json:"pickedQuantity"`
	RequiredQuantity int       `json:"requiredQuantity"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (e *PickedQuantityUpdatedEvent) EventType() string    { return EventPickedQuantityUpdated }
func (e *PickedQuantityUpdatedEvent) OccurredAt() time.Time { return e.UpdatedAt }
func (e *PickedQuantityUpdatedEvent) EventOrderID() string  { return e.OrderID }

// OrderReadyForPackingEvent is published when every line of an order is picked
type OrderReadyForPackingEvent struct {
	RouteID     string    `json:"routeId"`
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	ReadyAt     time.Time `json:"readyAt"`
}

func (e *OrderReadyForPackingEvent) EventType() string    { return EventOrderReadyForPacking }
func (e *OrderReadyForPackingEvent) OccurredAt() time.Time { return e.ReadyAt }
func (e *OrderReadyForPackingEvent) EventOrderID() string  { return e.OrderID }

// TransferRequiredEvent is published when a route cannot be picked from
// sellable stock
type TransferRequiredEvent struct {
	RouteID    string      `json:"routeId"`
	Shortfalls []Shortfall `json:"shortfalls"`
	DetectedAt time.Time   `json:"detectedAt"`
}

func (e *TransferRequiredEvent) EventType() string    { return EventTransferRequired }
func (e *TransferRequiredEvent) OccurredAt() time.Time { return e.DetectedAt }

// ReturnItemRegisteredEvent is published when a returned unit is booked in
type ReturnItemRegisteredEvent struct {
	ReturnItemID string          `json:"returnItemId"`
	Barcode      string          `json:"barcode"`
	OrderID      string          `json:"orderId,omitempty"`
	Quantity     int             `json:"quantity"`
	Condition    ReturnCondition `json:"condition"`
	RegisteredAt time.Time       `json:"registeredAt"`
}

func (e *ReturnItemRegisteredEvent) EventType() string    { return EventReturnItemRegistered }
func (e *ReturnItemRegisteredEvent) OccurredAt() time.Time { return e.RegisteredAt }

// ReturnItemResolvedEvent is published when a return is linked to a product
type ReturnItemResolvedEvent struct {
	ReturnItemID string    `json:"returnItemId"`
	Barcode      string    `json:"barcode"`
	ProductID    string    `json:"productId"`
	ResolvedAt   time.Time `json:"resolvedAt"`
}

func (e *ReturnItemResolvedEvent) EventType() string    { return EventReturnItemResolved }
func (e *ReturnItemResolvedEvent) OccurredAt() time.Time { return e.ResolvedAt }

// ReturnItemRestockedEvent is published when a return is put back on a shelf
type ReturnItemRestockedEvent struct {
	ReturnItemID string    `json:"returnItemId"`
	ProductID    string    `json:"productId"`
	ShelfID      string    `json:"shelfId"`
	MovementID   string    `json:"movementId"`
	Quantity     int       `json:"quantity"`
	RestockedAt  time.Time `json:"restockedAt"`
}

func (e *ReturnItemRestockedEvent) EventType() string    { return EventReturnItemRestocked }
func (e *ReturnItemRestockedEvent) OccurredAt() time.Time { return e.RestockedAt }
