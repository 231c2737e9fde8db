package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func testOrder(id string, lines ...OrderLine) *Order {
	for i := range lines {
		if lines[i].LineID == "" {
			lines[i].LineID = id + "-L" + string(rune('1'+i))
		}
	}
	return &Order{
		ID:          id,
		OrderNumber: "NO-" + id,
		Status:      OrderStatusConfirmed,
		CreatedAt:   testNow,
		Lines:       lines,
	}
}

func line(productID, barcode string, qty int) OrderLine {
	return OrderLine{ProductID: productID, Barcode: barcode, Quantity: qty, UnitPrice: decimal.RequireFromString("2.50")}
}

func classes(m map[string]ShelfClass) ShelfClassLookup {
	return func(id string) (ShelfClass, bool) {
		c, ok := m[id]
		return c, ok
	}
}
