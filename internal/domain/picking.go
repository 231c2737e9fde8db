package domain

import "fmt"

// LineAllocation is one order line's share of a pick-list item
type LineAllocation struct {
	OrderID     string
	OrderNumber string
	LineID      string
	Quantity    int
	Picked      int
}

// Remaining is the quantity the line still needs
func (a LineAllocation) Remaining() int {
	return a.Quantity - a.Picked
}

// Apportionment is the quantity one line receives from a scan
type Apportionment struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	LineID      string `json:"lineId"`
	Quantity    int    `json:"quantity"`
}

// Apportion splits qty across allocations in precedence order. Each line
// absorbs its full remaining need before the next line gets anything. The
// plan is computed completely before anything is applied.
func Apportion(barcode string, allocations []LineAllocation, qty int) ([]Apportionment, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, qty)
	}

	remaining := 0
	for _, a := range allocations {
		remaining += a.Remaining()
	}
	if qty > remaining {
		return nil, &OverPickError{Barcode: barcode, Requested: qty, Remaining: remaining}
	}

	plan := make([]Apportionment, 0, len(allocations))
	left := qty
	for _, a := range allocations {
		if left == 0 {
			break
		}
		take := min(a.Remaining(), left)
		if take <= 0 {
			continue
		}
		plan = append(plan, Apportionment{
			OrderID:     a.OrderID,
			OrderNumber: a.OrderNumber,
			LineID:      a.LineID,
			Quantity:    take,
		})
		left -= take
	}
	return plan, nil
}

// OrderAllocation is an order's share of a picking item
type OrderAllocation struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Quantity    int    `json:"quantity"`
	Picked      int    `json:"picked"`
}

// PickingItem is the projection of one pick-list entry
type PickingItem struct {
	Barcode        string            `json:"barcode"`
	ProductID      string            `json:"productId"`
	ShelfID        string            `json:"shelfId"`
	ShelfLocation  string            `json:"shelfLocation"`
	TotalQuantity  int               `json:"totalQuantity"`
	PickedQuantity int               `json:"pickedQuantity"`
	IsComplete     bool              `json:"isComplete"`
	Orders         []OrderAllocation `json:"orders"`
}

// PickingProgress is the projection of a route's pick list
type PickingProgress struct {
	RouteID        string        `json:"routeId"`
	Status         RouteStatus   `json:"status"`
	Items          []PickingItem `json:"items"`
	TotalQuantity  int           `json:"totalQuantity"`
	PickedQuantity int           `json:"pickedQuantity"`
	NextBarcode    string        `json:"nextBarcode,omitempty"`
	ExpectedShelf  string        `json:"expectedShelfId,omitempty"`
	ShelfValidated bool          `json:"shelfValidated"`
}

// BuildPickingProgress projects the route's lines into the pick list
func BuildPickingProgress(r *Route) *PickingProgress {
	p := &PickingProgress{
		RouteID:        r.ID,
		Status:         r.Status,
		Items:          make([]PickingItem, 0, len(r.Items)),
		ShelfValidated: r.Shelf.Validated,
	}

	for _, item := range r.Items {
		pi := PickingItem{
			Barcode:       item.Barcode,
			ProductID:     item.ProductID,
			ShelfID:       item.ShelfID,
			ShelfLocation: item.ShelfLabel,
		}

		index := make(map[string]int)
		for _, a := range r.Allocations(item.Barcode) {
			pi.TotalQuantity += a.Quantity
			pi.PickedQuantity += a.Picked
			if i, ok := index[a.OrderID]; ok {
				pi.Orders[i].Quantity += a.Quantity
				pi.Orders[i].Picked += a.Picked
				continue
			}
			index[a.OrderID] = len(pi.Orders)
			pi.Orders = append(pi.Orders, OrderAllocation{
				OrderID:     a.OrderID,
				OrderNumber: a.OrderNumber,
				Quantity:    a.Quantity,
				Picked:      a.Picked,
			})
		}
		pi.IsComplete = pi.PickedQuantity == pi.TotalQuantity

		p.TotalQuantity += pi.TotalQuantity
		p.PickedQuantity += pi.PickedQuantity
		if p.NextBarcode == "" && !pi.IsComplete {
			p.NextBarcode = pi.Barcode
			p.ExpectedShelf = pi.ShelfID
		}
		p.Items = append(p.Items, pi)
	}
	return p
}
