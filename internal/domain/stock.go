package domain

import (
	"fmt"
	"sort"
	"time"
)

// LocationStock is the quantity of one product on one shelf
type LocationStock struct {
	ProductID string    `bson:"productId" json:"productId"`
	ShelfID   string    `bson:"shelfId" json:"shelfId"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// NewLocationStock returns an empty location
func NewLocationStock(productID, shelfID string) *LocationStock {
	return &LocationStock{ProductID: productID, ShelfID: shelfID}
}

// Key identifies the location
func (s *LocationStock) Key() string {
	return LocationKey(s.ProductID, s.ShelfID)
}

// LocationKey joins product and shelf ids
func LocationKey(productID, shelfID string) string {
	return productID + "|" + shelfID
}

// Apply adds a signed delta. A result below zero is rejected and leaves the
// location untouched.
func (s *LocationStock) Apply(delta int, now time.Time) error {
	if s.Quantity+delta < 0 {
		return &InsufficientStockError{
			ProductID: s.ProductID,
			ShelfID:   s.ShelfID,
			Available: s.Quantity,
			Requested: -delta,
		}
	}
	s.Quantity += delta
	s.UpdatedAt = now
	return nil
}

// IsEmpty reports whether nothing is left on the shelf
func (s *LocationStock) IsEmpty() bool {
	return s.Quantity == 0
}

// ProductAggregate rolls up a product's stock. OnHand and Sellable follow
// location stock; Reserved and Committed follow explicit reservation calls.
type ProductAggregate struct {
	ProductID string    `bson:"_id" json:"productId"`
	OnHand    int       `bson:"onHand" json:"onHand"`
	Sellable  int       `bson:"sellable" json:"sellable"`
	Reserved  int       `bson:"reserved" json:"reserved"`
	Committed int       `bson:"committed" json:"committed"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// NewProductAggregate returns an empty aggregate
func NewProductAggregate(productID string) *ProductAggregate {
	return &ProductAggregate{ProductID: productID}
}

// NonSellable is stock present on shelves that do not count as sellable
func (a *ProductAggregate) NonSellable() int {
	return a.OnHand - a.Sellable
}

// ApplyLocationDelta folds a location change into the aggregate
func (a *ProductAggregate) ApplyLocationDelta(delta int, class ShelfClass, now time.Time) {
	a.OnHand += delta
	if class.IsSellable() {
		a.Sellable += delta
	}
	a.UpdatedAt = now
}

// Reserve earmarks quantity for open orders. Reservation is soft: it never
// fails on low sellable stock, so reserved may exceed sellable. Route
// creation reports that shortfall as a TransferRequiredEvent and the
// transfer advisory blocks scanning until it is covered.
func (a *ProductAggregate) Reserve(qty int, now time.Time) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	a.Reserved += qty
	a.UpdatedAt = now
	return nil
}

// Release returns reserved quantity
func (a *ProductAggregate) Release(qty int, now time.Time) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > a.Reserved {
		return fmt.Errorf("%w: release %d exceeds reserved %d for %s", ErrStockMismatch, qty, a.Reserved, a.ProductID)
	}
	a.Reserved -= qty
	a.UpdatedAt = now
	return nil
}

// Commit converts reserved quantity into committed quantity after a pick
func (a *ProductAggregate) Commit(qty int, now time.Time) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > a.Reserved {
		return fmt.Errorf("%w: commit %d exceeds reserved %d for %s", ErrStockMismatch, qty, a.Reserved, a.ProductID)
	}
	a.Reserved -= qty
	a.Committed += qty
	a.UpdatedAt = now
	return nil
}

// Ship removes committed quantity once packed goods leave
func (a *ProductAggregate) Ship(qty int, now time.Time) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > a.Committed {
		return fmt.Errorf("%w: ship %d exceeds committed %d for %s", ErrStockMismatch, qty, a.Committed, a.ProductID)
	}
	a.Committed -= qty
	a.UpdatedAt = now
	return nil
}

// ComputeAggregate derives OnHand and Sellable from location stock. Reserved
// and Committed are copied from prev when given.
func ComputeAggregate(productID string, locations []*LocationStock, classOf ShelfClassLookup, prev *ProductAggregate) *ProductAggregate {
	agg := NewProductAggregate(productID)
	if prev != nil {
		agg.Reserved = prev.Reserved
		agg.Committed = prev.Committed
		agg.UpdatedAt = prev.UpdatedAt
	}
	for _, loc := range locations {
		if loc.ProductID != productID {
			continue
		}
		agg.OnHand += loc.Quantity
		if class, ok := classOf(loc.ShelfID); ok && class.IsSellable() {
			agg.Sellable += loc.Quantity
		}
	}
	return agg
}

// ReplayLocations sums signed ledger quantities per shelf
func ReplayLocations(productID string, movements []*StockMovement) map[string]int {
	out := make(map[string]int)
	for _, m := range movements {
		if m.ProductID != productID {
			continue
		}
		out[m.ShelfID()] += m.Quantity
	}
	return out
}

// Drift is one difference between the ledger and a stored read model
type Drift struct {
	ProductID string `json:"productId"`
	ShelfID   string `json:"shelfId,omitempty"`
	Field     string `json:"field"`
	Expected  int    `json:"expected"`
	Actual    int    `json:"actual"`
}

// ReconcileReport compares a ledger replay with the stores
type ReconcileReport struct {
	ProductID     string    `json:"productId"`
	MovementCount int       `json:"movementCount"`
	Drifts        []Drift   `json:"drifts"`
	CheckedAt     time.Time `json:"checkedAt"`
}

// Consistent reports whether no drift was found
func (r *ReconcileReport) Consistent() bool {
	return len(r.Drifts) == 0
}

// Reconcile replays movements and compares the result with stored location
// stock and the stored aggregate
func Reconcile(productID string, movements []*StockMovement, stored []*LocationStock, agg *ProductAggregate, classOf ShelfClassLookup, now time.Time) *ReconcileReport {
	report := &ReconcileReport{ProductID: productID, MovementCount: len(movements), CheckedAt: now}

	expected := ReplayLocations(productID, movements)
	actual := make(map[string]int, len(stored))
	for _, loc := range stored {
		actual[loc.ShelfID] = loc.Quantity
	}

	shelves := make([]string, 0, len(expected)+len(actual))
	seen := make(map[string]bool)
	for id := range expected {
		shelves = append(shelves, id)
		seen[id] = true
	}
	for id := range actual {
		if !seen[id] {
			shelves = append(shelves, id)
		}
	}
	sort.Strings(shelves)

	replayed := make([]*LocationStock, 0, len(shelves))
	for _, shelfID := range shelves {
		want, got := expected[shelfID], actual[shelfID]
		if want < 0 {
			report.Drifts = append(report.Drifts, Drift{ProductID: productID, ShelfID: shelfID, Field: "ledger", Expected: 0, Actual: want})
		}
		if want != got {
			report.Drifts = append(report.Drifts, Drift{ProductID: productID, ShelfID: shelfID, Field: "location", Expected: want, Actual: got})
		}
		replayed = append(replayed, &LocationStock{ProductID: productID, ShelfID: shelfID, Quantity: want})
	}

	if agg == nil {
		agg = NewProductAggregate(productID)
	}
	derived := ComputeAggregate(productID, replayed, classOf, agg)
	if derived.OnHand != agg.OnHand {
		report.Drifts = append(report.Drifts, Drift{ProductID: productID, Field: "onHand", Expected: derived.OnHand, Actual: agg.OnHand})
	}
	if derived.Sellable != agg.Sellable {
		report.Drifts = append(report.Drifts, Drift{ProductID: productID, Field: "sellable", Expected: derived.Sellable, Actual: agg.Sellable})
	}
	if agg.Reserved < 0 {
		report.Drifts = append(report.Drifts, Drift{ProductID: productID, Field: "reserved", Expected: 0, Actual: agg.Reserved})
	}
	if agg.Committed < 0 {
		report.Drifts = append(report.Drifts, Drift{ProductID: productID, Field: "committed", Expected: 0, Actual: agg.Committed})
	}
	return report
}
