package domain

import (
	"fmt"
	"time"
)

// ReturnStatus tracks the two-phase resolution of a returned unit
type ReturnStatus string

const (
	ReturnStatusUnresolved ReturnStatus = "UNRESOLVED"
	ReturnStatusResolved   ReturnStatus = "RESOLVED"
	ReturnStatusRestocked  ReturnStatus = "RESTOCKED"
)

// ReturnCondition is the inspected state of a returned unit
type ReturnCondition string

const (
	ReturnConditionNormal  ReturnCondition = "NORMAL"
	ReturnConditionDamaged ReturnCondition = "DAMAGED"
)

// IsValid reports whether c is a known condition
func (c ReturnCondition) IsValid() bool {
	return c == ReturnConditionNormal || c == ReturnConditionDamaged
}

// Accepts reports whether a shelf of class may receive returns in this
// condition
func (c ReturnCondition) Accepts(class ShelfClass) bool {
	switch c {
	case ReturnConditionDamaged:
		return class == ShelfClassReturnDamaged
	case ReturnConditionNormal:
		return class == ShelfClassReturnNormal || class == ShelfClassSellable
	}
	return false
}

// ReturnItem is a returned unit. It is registered by barcode alone and
// linked to a product in a separate resolve step.
type ReturnItem struct {
	ID          string          `bson:"_id" json:"id"`
	Barcode     string          `bson:"barcode" json:"barcode"`
	OrderID     string          `bson:"orderId,omitempty" json:"orderId,omitempty"`
	Quantity    int             `bson:"quantity" json:"quantity"`
	Condition   ReturnCondition `bson:"condition" json:"condition"`
	Status      ReturnStatus    `bson:"status" json:"status"`
	ProductID   string          `bson:"productId,omitempty" json:"productId,omitempty"`
	ShelfID     string          `bson:"shelfId,omitempty" json:"shelfId,omitempty"`
	MovementID  string          `bson:"movementId,omitempty" json:"movementId,omitempty"`
	Version     int64           `bson:"version" json:"version"`
	CreatedAt   time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt" json:"updatedAt"`
	ResolvedAt  *time.Time      `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	RestockedAt *time.Time      `bson:"restockedAt,omitempty" json:"restockedAt,omitempty"`

	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// NewReturnItem registers an unresolved return
func NewReturnItem(barcode, orderID string, quantity int, condition ReturnCondition, now time.Time) (*ReturnItem, error) {
	if barcode == "" {
		return nil, fmt.Errorf("%w: barcode is required", ErrInvalidProduct)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	if !condition.IsValid() {
		return nil, fmt.Errorf("%w: unknown condition %q", ErrInvalidReturnState, condition)
	}

	item := &ReturnItem{
		ID:        newID("RI"),
		Barcode:   barcode,
		OrderID:   orderID,
		Quantity:  quantity,
		Condition: condition,
		Status:    ReturnStatusUnresolved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	item.AddDomainEvent(&ReturnItemRegisteredEvent{
		ReturnItemID: item.ID,
		Barcode:      barcode,
		OrderID:      orderID,
		Quantity:     quantity,
		Condition:    condition,
		RegisteredAt: now,
	})
	return item, nil
}

// Resolve links the return to the product found for its barcode
func (r *ReturnItem) Resolve(product *Product, now time.Time) error {
	if r.Status != ReturnStatusUnresolved {
		return fmt.Errorf("%w: cannot resolve a %s item", ErrInvalidReturnState, r.Status)
	}
	if product == nil || product.ID == "" {
		return ErrProductNotFound
	}
	r.ProductID = product.ID
	r.Status = ReturnStatusResolved
	r.ResolvedAt = &now
	r.UpdatedAt = now
	r.AddDomainEvent(&ReturnItemResolvedEvent{
		ReturnItemID: r.ID,
		Barcode:      r.Barcode,
		ProductID:    product.ID,
		ResolvedAt:   now,
	})
	return nil
}

// CheckRestock verifies the item may be put on shelf
func (r *ReturnItem) CheckRestock(shelf *Shelf) error {
	if r.Status != ReturnStatusResolved {
		return fmt.Errorf("%w: only resolved items can be restocked, item is %s", ErrInvalidReturnState, r.Status)
	}
	if !r.Condition.Accepts(shelf.Class) {
		return fmt.Errorf("%w: %s item cannot go to %s shelf %s", ErrReturnShelfMismatch, r.Condition, shelf.Class, shelf.ID)
	}
	return nil
}

// MarkRestocked records the ledger entry that put the item back
func (r *ReturnItem) MarkRestocked(shelf *Shelf, movementID string, now time.Time) error {
	if err := r.CheckRestock(shelf); err != nil {
		return err
	}
	r.ShelfID = shelf.ID
	r.MovementID = movementID
	r.Status = ReturnStatusRestocked
	r.RestockedAt = &now
	r.UpdatedAt = now
	r.AddDomainEvent(&ReturnItemRestockedEvent{
		ReturnItemID: r.ID,
		ProductID:    r.ProductID,
		ShelfID:      shelf.ID,
		MovementID:   movementID,
		Quantity:     r.Quantity,
		RestockedAt:  now,
	})
	return nil
}

// AddDomainEvent adds a domain event
func (r *ReturnItem) AddDomainEvent(event DomainEvent) {
	r.DomainEvents = append(r.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (r *ReturnItem) ClearDomainEvents() {
	r.DomainEvents = nil
}

// GetDomainEvents returns all domain events
func (r *ReturnItem) GetDomainEvents() []DomainEvent {
	return r.DomainEvents
}
