package domain

import (
	"fmt"
	"time"
)

// MovementType classifies a ledger entry
type MovementType string

const (
	MovementPicking    MovementType = "PICKING"
	MovementPackingIn  MovementType = "PACKING_IN"
	MovementPackingOut MovementType = "PACKING_OUT"
	MovementReceiving  MovementType = "RECEIVING"
	MovementTransfer   MovementType = "TRANSFER"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementReturn     MovementType = "RETURN"
	MovementCancel     MovementType = "CANCEL"
)

// IsValid reports whether t is a known movement type
func (t MovementType) IsValid() bool {
	switch t {
	case MovementPicking, MovementPackingIn, MovementPackingOut, MovementReceiving,
		MovementTransfer, MovementAdjustment, MovementReturn, MovementCancel:
		return true
	}
	return false
}

// IsReversible reports whether a compensating CANCEL entry may be recorded
// for movements of this type. Picks are undone through their route and
// transfers through a new transfer.
func (t MovementType) IsReversible() bool {
	switch t {
	case MovementReceiving, MovementAdjustment, MovementReturn, MovementPackingIn, MovementPackingOut:
		return true
	}
	return false
}

// Direction is the side of a location a movement affects
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// IsValid reports whether d is IN or OUT
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Sign is +1 for IN and -1 for OUT
func (d Direction) Sign() int {
	if d == DirectionOut {
		return -1
	}
	return 1
}

// Opposite returns the reverse direction
func (d Direction) Opposite() Direction {
	if d == DirectionOut {
		return DirectionIn
	}
	return DirectionOut
}

// ReferenceKind names what a movement was recorded for
type ReferenceKind string

const (
	ReferenceRoute    ReferenceKind = "ROUTE"
	ReferenceOrder    ReferenceKind = "ORDER"
	ReferenceTransfer ReferenceKind = "TRANSFER"
	ReferenceReturn   ReferenceKind = "RETURN"
	ReferenceMovement ReferenceKind = "MOVEMENT"
)

// Reference links a movement to the business object that caused it
type Reference struct {
	Kind ReferenceKind `bson:"kind" json:"kind"`
	ID   string        `bson:"id" json:"id"`
}

// MovementDraft is a requested ledger entry before validation
type MovementDraft struct {
	ProductID     string
	Quantity      int
	Type          MovementType
	Direction     Direction
	SourceShelfID string
	TargetShelfID string
	Reference     Reference
	Actor         string
	Note          string
}

// ShelfID returns the shelf whose quantity the draft changes
func (d MovementDraft) ShelfID() string {
	if d.Direction == DirectionOut {
		return d.SourceShelfID
	}
	return d.TargetShelfID
}

// SignedQuantity is the quantity applied to the affected location
func (d MovementDraft) SignedQuantity() int {
	return d.Direction.Sign() * d.Quantity
}

// Validate checks the draft's own fields. Shelf and product existence are
// checked by the ledger against the catalog.
func (d MovementDraft) Validate() error {
	if d.Quantity <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, d.Quantity)
	}
	if d.ProductID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidProduct)
	}
	if !d.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMovement, d.Type)
	}
	if !d.Direction.IsValid() {
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidMovement, d.Direction)
	}
	if d.ShelfID() == "" {
		if d.Direction == DirectionOut {
			return fmt.Errorf("%w: OUT movement requires a source shelf", ErrInvalidShelf)
		}
		return fmt.Errorf("%w: IN movement requires a target shelf", ErrInvalidShelf)
	}
	return nil
}

// StockMovement is an immutable ledger entry. Quantity is signed: negative
// for OUT, positive for IN.
type StockMovement struct {
	ID            string       `bson:"_id" json:"id"`
	ProductID     string       `bson:"productId" json:"productId"`
	Quantity      int          `bson:"quantity" json:"quantity"`
	Type          MovementType `bson:"type" json:"type"`
	Direction     Direction    `bson:"direction" json:"direction"`
	SourceShelfID string       `bson:"sourceShelfId,omitempty" json:"sourceShelfId,omitempty"`
	TargetShelfID string       `bson:"targetShelfId,omitempty" json:"targetShelfId,omitempty"`
	Reference     Reference    `bson:"reference" json:"reference"`
	Actor         string       `bson:"actor,omitempty" json:"actor,omitempty"`
	Note          string       `bson:"note,omitempty" json:"note,omitempty"`
	RecordedAt    time.Time    `bson:"recordedAt" json:"recordedAt"`
}

// NewStockMovement validates a draft and stamps it with an id and time
func NewStockMovement(d MovementDraft, now time.Time) (*StockMovement, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &StockMovement{
		ID:            newID("MV"),
		ProductID:     d.ProductID,
		Quantity:      d.SignedQuantity(),
		Type:          d.Type,
		Direction:     d.Direction,
		SourceShelfID: d.SourceShelfID,
		TargetShelfID: d.TargetShelfID,
		Reference:     d.Reference,
		Actor:         d.Actor,
		Note:          d.Note,
		RecordedAt:    now,
	}, nil
}

// ShelfID returns the shelf whose quantity this entry changed
func (m *StockMovement) ShelfID() string {
	if m.Direction == DirectionOut {
		return m.SourceShelfID
	}
	return m.TargetShelfID
}

// AbsQuantity is the unsigned quantity moved
func (m *StockMovement) AbsQuantity() int {
	if m.Quantity < 0 {
		return -m.Quantity
	}
	return m.Quantity
}

// ReversalDraft builds the CANCEL entry that compensates m
func (m *StockMovement) ReversalDraft(actor, note string) (MovementDraft, error) {
	if !m.Type.IsReversible() {
		return MovementDraft{}, fmt.Errorf("%w: %s", ErrNotReversible, m.Type)
	}
	d := MovementDraft{
		ProductID: m.ProductID,
		Quantity:  m.AbsQuantity(),
		Type:      MovementCancel,
		Direction: m.Direction.Opposite(),
		Reference: Reference{Kind: ReferenceMovement, ID: m.ID},
		Actor:     actor,
		Note:      note,
	}
	// the compensating entry touches the same shelf from the other side
	if m.Direction == DirectionOut {
		d.TargetShelfID = m.SourceShelfID
	} else {
		d.SourceShelfID = m.TargetShelfID
	}
	return d, nil
}

// MovementFilter selects ledger entries. Zero fields match everything.
type MovementFilter struct {
	ProductID     string
	ShelfID       string
	Type          MovementType
	ReferenceKind ReferenceKind
	ReferenceID   string
	From          *time.Time
	To            *time.Time
	Limit         int
}

// Matches reports whether m satisfies the filter
func (f MovementFilter) Matches(m *StockMovement) bool {
	if f.ProductID != "" && m.ProductID != f.ProductID {
		return false
	}
	if f.ShelfID != "" && m.ShelfID() != f.ShelfID {
		return false
	}
	if f.Type != "" && m.Type != f.Type {
		return false
	}
	if f.ReferenceKind != "" && m.Reference.Kind != f.ReferenceKind {
		return false
	}
	if f.ReferenceID != "" && m.Reference.ID != f.ReferenceID {
		return false
	}
	if f.From != nil && m.RecordedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !m.RecordedAt.Before(*f.To) {
		return false
	}
	return true
}
