package domain

import "sort"

// Shortfall describes a product whose sellable stock cannot cover a route
type Shortfall struct {
	ProductID            string   `json:"productId"`
	Required             int      `json:"required"`
	AvailableSellable    int      `json:"availableSellable"`
	AvailableNonSellable int      `json:"availableNonSellable"`
	CandidateShelves     []string `json:"candidateShelves"`
}

// Missing is how many units must be moved onto sellable shelves
func (s Shortfall) Missing() int {
	return s.Required - s.AvailableSellable
}

// Availability is the transfer advisory verdict for a route
type Availability struct {
	RouteID    string      `json:"routeId"`
	OK         bool        `json:"ok"`
	Shortfalls []Shortfall `json:"shortfalls,omitempty"`
}

// StockSnapshot is the stock picture of one product
type StockSnapshot struct {
	Aggregate *ProductAggregate
	Locations []*LocationStock
}

// EvaluateAvailability compares what a route still needs per product with
// sellable stock. Candidate shelves are non-sellable shelves holding the
// product, largest quantity first.
func EvaluateAvailability(routeID string, required map[string]int, stock map[string]StockSnapshot, classOf ShelfClassLookup) *Availability {
	result := &Availability{RouteID: routeID, OK: true}

	products := make([]string, 0, len(required))
	for id := range required {
		products = append(products, id)
	}
	sort.Strings(products)

	for _, productID := range products {
		need := required[productID]
		if need <= 0 {
			continue
		}
		snap := stock[productID]
		agg := snap.Aggregate
		if agg == nil {
			agg = NewProductAggregate(productID)
		}
		if need <= agg.Sellable {
			continue
		}

		var candidates []*LocationStock
		for _, loc := range snap.Locations {
			if loc.Quantity <= 0 {
				continue
			}
			if class, ok := classOf(loc.ShelfID); ok && class.IsSellable() {
				continue
			}
			candidates = append(candidates, loc)
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Quantity != candidates[j].Quantity {
				return candidates[i].Quantity > candidates[j].Quantity
			}
			return candidates[i].ShelfID < candidates[j].ShelfID
		})
		shelves := make([]string, len(candidates))
		for i, c := range candidates {
			shelves[i] = c.ShelfID
		}

		result.OK = false
		result.Shortfalls = append(result.Shortfalls, Shortfall{
			ProductID:            productID,
			Required:             need,
			AvailableSellable:    agg.Sellable,
			AvailableNonSellable: agg.NonSellable(),
			CandidateShelves:     shelves,
		})
	}
	return result
}

// PickShelf chooses the sellable shelf to pick a product from. The current
// shelf is kept while it is sellable and still holds stock; otherwise the
// sellable shelf with the most stock wins, ties broken by shelf id. Returns
// "" when no sellable shelf holds the product.
func PickShelf(current string, locations []*LocationStock, classOf ShelfClassLookup) string {
	best := ""
	bestQty := 0
	for _, loc := range locations {
		if loc.Quantity <= 0 {
			continue
		}
		class, ok := classOf(loc.ShelfID)
		if !ok || !class.IsSellable() {
			continue
		}
		if loc.ShelfID == current {
			return current
		}
		if loc.Quantity > bestQty || (loc.Quantity == bestQty && loc.ShelfID < best) {
			best, bestQty = loc.ShelfID, loc.Quantity
		}
	}
	return best
}
