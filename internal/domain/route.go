package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RouteStatus is the lifecycle state of a route
type RouteStatus string

const (
	RouteStatusCollecting RouteStatus = "COLLECTING"
	RouteStatusReady      RouteStatus = "READY"
	RouteStatusCompleted  RouteStatus = "COMPLETED"
	RouteStatusCancelled  RouteStatus = "CANCELLED"
)

var routeTransitions = map[RouteStatus][]RouteStatus{
	RouteStatusCollecting: {RouteStatusReady, RouteStatusCancelled},
	RouteStatusReady:      {RouteStatusCompleted},
}

// CanTransitionTo reports whether next is a legal successor of s
func (s RouteStatus) CanTransitionTo(next RouteStatus) bool {
	for _, allowed := range routeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsActive reports whether the route still holds its orders
func (s RouteStatus) IsActive() bool {
	return s == RouteStatusCollecting || s == RouteStatusReady
}

// IsValid reports whether s is a known status
func (s RouteStatus) IsValid() bool {
	switch s {
	case RouteStatusCollecting, RouteStatusReady, RouteStatusCompleted, RouteStatusCancelled:
		return true
	}
	return false
}

// RouteLine is a snapshot of an order line with its picked counter
type RouteLine struct {
	LineID    string          `bson:"lineId" json:"lineId"`
	ProductID string          `bson:"productId" json:"productId"`
	Barcode   string          `bson:"barcode" json:"barcode"`
	Quantity  int             `bson:"quantity" json:"quantity"`
	Picked    int             `bson:"picked" json:"picked"`
	UnitPrice decimal.Decimal `bson:"unitPrice" json:"unitPrice"`
}

// Remaining is the quantity still to pick
func (l *RouteLine) Remaining() int {
	return l.Quantity - l.Picked
}

// RouteOrder is a member order. The slice order on Route is the
// apportionment precedence.
type RouteOrder struct {
	OrderID     string      `bson:"orderId" json:"orderId"`
	OrderNumber string      `bson:"orderNumber" json:"orderNumber"`
	Lines       []RouteLine `bson:"lines" json:"lines"`
}

// IsFullyPicked reports whether every line is picked
func (o *RouteOrder) IsFullyPicked() bool {
	for i := range o.Lines {
		if o.Lines[i].Remaining() > 0 {
			return false
		}
	}
	return true
}

// RouteItem is one pick-list entry, one per barcode
type RouteItem struct {
	Barcode    string `bson:"barcode" json:"barcode"`
	ProductID  string `bson:"productId" json:"productId"`
	ShelfID    string `bson:"shelfId" json:"shelfId"`
	ShelfLabel string `bson:"shelfLabel" json:"shelfLabel"`
}

// ShelfValidation is the operator's shelf scan state
type ShelfValidation struct {
	ShelfID     string     `bson:"shelfId,omitempty" json:"shelfId,omitempty"`
	Validated   bool       `bson:"validated" json:"validated"`
	ValidatedAt *time.Time `bson:"validatedAt,omitempty" json:"validatedAt,omitempty"`
}

// Route is the aggregate root for a batch of orders picked in one walk
type Route struct {
	ID          string          `bson:"_id" json:"id"`
	Name        string          `bson:"name" json:"name"`
	Description string          `bson:"description,omitempty" json:"description,omitempty"`
	Status      RouteStatus     `bson:"status" json:"status"`
	Orders      []RouteOrder    `bson:"orders" json:"orders"`
	OrderIDs    []string        `bson:"orderIds" json:"orderIds"`
	Items       []RouteItem     `bson:"items" json:"items"`
	Shelf       ShelfValidation `bson:"shelf" json:"shelf"`
	CreatedBy   string          `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	Version     int64           `bson:"version" json:"version"`
	CreatedAt   time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt" json:"updatedAt"`
	ReadyAt     *time.Time      `bson:"readyAt,omitempty" json:"readyAt,omitempty"`
	CompletedAt *time.Time      `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CancelledAt *time.Time      `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`

	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// NewRoute groups orders into a collecting route. Orders keep the given
// order as apportionment precedence; pick-list items appear in order of
// first occurrence.
func NewRoute(name, description string, orders []*Order, createdBy string, now time.Time) (*Route, error) {
	if len(orders) == 0 {
		return nil, ErrEmptyOrderSet
	}

	r := &Route{
		ID:          newID("RT"),
		Name:        name,
		Description: description,
		Status:      RouteStatusCollecting,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	seenOrders := make(map[string]bool, len(orders))
	productOf := make(map[string]string)
	for _, o := range orders {
		if seenOrders[o.ID] {
			continue
		}
		seenOrders[o.ID] = true
		if err := o.CheckPickable(); err != nil {
			return nil, err
		}

		ro := RouteOrder{OrderID: o.ID, OrderNumber: o.OrderNumber}
		for _, line := range o.Lines {
			if existing, ok := productOf[line.Barcode]; ok && existing != line.ProductID {
				return nil, fmt.Errorf("%w: barcode %s maps to products %s and %s", ErrInvalidProduct, line.Barcode, existing, line.ProductID)
			}
			if _, ok := productOf[line.Barcode]; !ok {
				productOf[line.Barcode] = line.ProductID
				r.Items = append(r.Items, RouteItem{Barcode: line.Barcode, ProductID: line.ProductID})
			}
			ro.Lines = append(ro.Lines, RouteLine{
				LineID:    line.LineID,
				ProductID: line.ProductID,
				Barcode:   line.Barcode,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
			})
		}
		r.Orders = append(r.Orders, ro)
		r.OrderIDs = append(r.OrderIDs, o.ID)
	}

	r.AddDomainEvent(&RouteCreatedEvent{
		RouteID:       r.ID,
		Name:          r.Name,
		OrderIDs:      append([]string(nil), r.OrderIDs...),
		ItemCount:     len(r.Items),
		TotalQuantity: r.TotalQuantity(),
		Value:         r.Value().StringFixed(2),
		CreatedAt:     now,
	})
	return r, nil
}

// Item returns the pick-list item for barcode
func (r *Route) Item(barcode string) (*RouteItem, bool) {
	for i := range r.Items {
		if r.Items[i].Barcode == barcode {
			return &r.Items[i], true
		}
	}
	return nil, false
}

// AssignShelf sets the shelf an item is picked from
func (r *Route) AssignShelf(barcode string, shelf *Shelf) error {
	item, ok := r.Item(barcode)
	if !ok {
		return ErrUnknownBarcodeForRoute
	}
	item.ShelfID = shelf.ID
	item.ShelfLabel = shelf.DisplayLocation()
	return nil
}

// Allocations returns the lines sharing barcode in precedence order
func (r *Route) Allocations(barcode string) []LineAllocation {
	var out []LineAllocation
	for _, o := range r.Orders {
		for _, line := range o.Lines {
			if line.Barcode != barcode {
				continue
			}
			out = append(out, LineAllocation{
				OrderID:     o.OrderID,
				OrderNumber: o.OrderNumber,
				LineID:      line.LineID,
				Quantity:    line.Quantity,
				Picked:      line.Picked,
			})
		}
	}
	return out
}

// ItemQuantities returns total and picked quantity for barcode
func (r *Route) ItemQuantities(barcode string) (total, picked int) {
	for _, a := range r.Allocations(barcode) {
		total += a.Quantity
		picked += a.Picked
	}
	return total, picked
}

// NextPendingItem is the first pick-list item not yet complete
func (r *Route) NextPendingItem() *RouteItem {
	for i := range r.Items {
		total, picked := r.ItemQuantities(r.Items[i].Barcode)
		if picked < total {
			return &r.Items[i]
		}
	}
	return nil
}

// IsComplete reports whether every item is fully picked
func (r *Route) IsComplete() bool {
	return r.NextPendingItem() == nil
}

// HasProgress reports whether anything has been picked
func (r *Route) HasProgress() bool {
	for _, o := range r.Orders {
		for _, line := range o.Lines {
			if line.Picked > 0 {
				return true
			}
		}
	}
	return false
}

// TotalQuantity is the quantity of all lines
func (r *Route) TotalQuantity() int {
	n := 0
	for _, o := range r.Orders {
		for _, line := range o.Lines {
			n += line.Quantity
		}
	}
	return n
}

// PickedQuantity is the quantity picked so far
func (r *Route) PickedQuantity() int {
	n := 0
	for _, o := range r.Orders {
		for _, line := range o.Lines {
			n += line.Picked
		}
	}
	return n
}

// QuantitiesByProduct sums line quantities per product. Only lines still
// open count when remainingOnly is set.
func (r *Route) QuantitiesByProduct(remainingOnly bool) map[string]int {
	out := make(map[string]int)
	for _, o := range r.Orders {
		for _, line := range o.Lines {
			if remainingOnly {
				if rem := line.Remaining(); rem > 0 {
					out[line.ProductID] += rem
				}
				continue
			}
			out[line.ProductID] += line.Quantity
		}
	}
	return out
}

// PickedByProduct sums picked quantities per product
func (r *Route) PickedByProduct() map[string]int {
	out := make(map[string]int)
	for _, o := range r.Orders {
		for _, line := range o.Lines {
			if line.Picked > 0 {
				out[line.ProductID] += line.Picked
			}
		}
	}
	return out
}

// Value is the sum of unit price times quantity over all lines
func (r *Route) Value() decimal.Decimal {
	total := decimal.Zero
	for _, o := range r.Orders {
		for _, line := range o.Lines {
			total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
	}
	return total
}

// PickedValue is the value of what has been picked
func (r *Route) PickedValue() decimal.Decimal {
	total := decimal.Zero
	for _, o := range r.Orders {
		for _, line := range o.Lines {
			total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Picked))))
		}
	}
	return total
}

// EnsureCollecting rejects scans on routes that are not collecting
func (r *Route) EnsureCollecting() error {
	if r.Status != RouteStatusCollecting {
		return fmt.Errorf("%w: route %s is %s", ErrRouteNotCollecting, r.ID, r.Status)
	}
	return nil
}

// ValidateShelf records a successful shelf scan
func (r *Route) ValidateShelf(shelfID string, now time.Time) {
	r.Shelf = ShelfValidation{ShelfID: shelfID, Validated: true, ValidatedAt: &now}
	r.UpdatedAt = now
}

// ResetShelfValidation forces a fresh shelf scan
func (r *Route) ResetShelfValidation() {
	r.Shelf = ShelfValidation{}
}

// IsShelfValidatedFor reports whether the validated shelf holds item
func (r *Route) IsShelfValidatedFor(item *RouteItem) bool {
	return r.Shelf.Validated && item.ShelfID != "" && r.Shelf.ShelfID == item.ShelfID
}

// ApplyPick books an apportionment plan for barcode. Per-order events are
// raised, the shelf validation follows the next pending item, and the
// route becomes READY when the last item completes.
func (r *Route) ApplyPick(barcode string, plan []Apportionment, now time.Time) error {
	if err := r.EnsureCollecting(); err != nil {
		return err
	}
	item, ok := r.Item(barcode)
	if !ok {
		return ErrUnknownBarcodeForRoute
	}

	for _, p := range plan {
		line, order := r.findLine(p.OrderID, p.LineID)
		if line == nil || line.Barcode != barcode {
			return fmt.Errorf("%w: line %s/%s not on route", ErrUnknownBarcodeForRoute, p.OrderID, p.LineID)
		}
		if p.Quantity <= 0 || p.Quantity > line.Remaining() {
			return &OverPickError{Barcode: barcode, Requested: p.Quantity, Remaining: line.Remaining()}
		}
		line.Picked += p.Quantity

		r.AddDomainEvent(&PickedQuantityUpdatedEvent{
			RouteID:          r.ID,
			OrderID:          order.OrderID,
			OrderNumber:      order.OrderNumber,
			LineID:           line.LineID,
			ProductID:        line.ProductID,
			Barcode:          barcode,
			ShelfID:          item.ShelfID,
			Quantity:         p.Quantity,
			PickedQuantity:   line.Picked,
			RequiredQuantity: line.Quantity,
			UpdatedAt:        now,
		})
		if order.IsFullyPicked() {
			r.AddDomainEvent(&OrderReadyForPackingEvent{
				RouteID:     r.ID,
				OrderID:     order.OrderID,
				OrderNumber: order.OrderNumber,
				ReadyAt:     now,
			})
		}
	}
	r.UpdatedAt = now

	if r.NextPendingItem() == nil {
		return r.markReady(now)
	}
	r.SyncShelfValidation()
	return nil
}

// SyncShelfValidation drops the shelf validation unless the validated shelf
// is where the next pending item is picked from
func (r *Route) SyncShelfValidation() {
	if !r.Shelf.Validated {
		return
	}
	next := r.NextPendingItem()
	if next == nil || !r.IsShelfValidatedFor(next) {
		r.ResetShelfValidation()
	}
}

func (r *Route) findLine(orderID, lineID string) (*RouteLine, *RouteOrder) {
	for i := range r.Orders {
		if r.Orders[i].OrderID != orderID {
			continue
		}
		for j := range r.Orders[i].Lines {
			if r.Orders[i].Lines[j].LineID == lineID {
				return &r.Orders[i].Lines[j], &r.Orders[i]
			}
		}
	}
	return nil, nil
}

func (r *Route) transition(next RouteStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidRouteTransition, r.Status, next)
	}
	r.Status = next
	return nil
}

func (r *Route) markReady(now time.Time) error {
	if err := r.transition(RouteStatusReady); err != nil {
		return err
	}
	r.ResetShelfValidation()
	r.ReadyAt = &now
	r.UpdatedAt = now
	r.AddDomainEvent(&RouteReadyEvent{
		RouteID:        r.ID,
		OrderIDs:       append([]string(nil), r.OrderIDs...),
		PickedQuantity: r.PickedQuantity(),
		ReadyAt:        now,
	})
	return nil
}

// Cancel cancels a collecting route with no progress
func (r *Route) Cancel(reason string, now time.Time) error {
	if r.Status.IsActive() && r.HasProgress() {
		return ErrRouteNotCancellable
	}
	if err := r.transition(RouteStatusCancelled); err != nil {
		return err
	}
	r.ResetShelfValidation()
	r.CancelledAt = &now
	r.UpdatedAt = now
	r.AddDomainEvent(&RouteCancelledEvent{
		RouteID:          r.ID,
		OrderIDs:         append([]string(nil), r.OrderIDs...),
		ReleasedQuantity: r.TotalQuantity(),
		Reason:           reason,
		CancelledAt:      now,
	})
	return nil
}

// Complete marks a ready route as packed
func (r *Route) Complete(now time.Time) error {
	if err := r.transition(RouteStatusCompleted); err != nil {
		return err
	}
	r.CompletedAt = &now
	r.UpdatedAt = now
	r.AddDomainEvent(&RouteCompletedEvent{
		RouteID:         r.ID,
		OrderIDs:        append([]string(nil), r.OrderIDs...),
		ShippedQuantity: r.PickedQuantity(),
		CompletedAt:     now,
	})
	return nil
}

// AddDomainEvent adds a domain event
func (r *Route) AddDomainEvent(event DomainEvent) {
	r.DomainEvents = append(r.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (r *Route) ClearDomainEvents() {
	r.DomainEvents = nil
}

// GetDomainEvents returns all domain events
func (r *Route) GetDomainEvents() []DomainEvent {
	return r.DomainEvents
}
