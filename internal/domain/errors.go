package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Operator errors. Rejected scans and route commands; nothing is changed.
var (
	ErrWrongShelf             = errors.New("wrong shelf")
	ErrOverPick               = errors.New("requested quantity exceeds remaining quantity")
	ErrUnknownBarcodeForRoute = errors.New("barcode is not on the route's remaining pick list")
	ErrTransferRequired       = errors.New("transfer required before picking")
	ErrShelfNotValidated      = errors.New("shelf has not been validated for this item")
	ErrRouteNotCancellable    = errors.New("route has picked items and cannot be cancelled")
	ErrInvalidRouteTransition = errors.New("invalid route status transition")
	ErrRouteNotCollecting     = errors.New("route is not collecting")
)

// Precondition errors
var (
	ErrEmptyOrderSet    = errors.New("route requires at least one order")
	ErrOrderNotPickable = errors.New("order is not in a pickable status")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrInvalidShelf     = errors.New("invalid shelf")
	ErrInvalidProduct   = errors.New("invalid product")
	ErrInvalidMovement  = errors.New("invalid movement")
)

// Data integrity errors
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockMismatch     = errors.New("stock mismatch")
)

// Lookup and lifecycle errors
var (
	ErrRouteNotFound       = errors.New("route not found")
	ErrMovementNotFound    = errors.New("stock movement not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderServiceDown    = errors.New("order service unavailable")
	ErrReturnItemNotFound  = errors.New("return item not found")
	ErrShelfNotFound       = errors.New("shelf not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrConcurrentUpdate    = errors.New("aggregate was modified concurrently")
	ErrNotReversible       = errors.New("movement type cannot be reversed")
	ErrAlreadyReversed     = errors.New("movement has already been reversed")
	ErrInvalidReturnState  = errors.New("invalid return item state")
	ErrReturnShelfMismatch = errors.New("shelf class does not accept this return condition")
)

// WrongShelfError carries the shelf the operator should have scanned
type WrongShelfError struct {
	Expected string
	Scanned  string
}

func (e *WrongShelfError) Error() string {
	return fmt.Sprintf("wrong shelf: expected %s, scanned %s", e.Expected, e.Scanned)
}

func (e *WrongShelfError) Unwrap() error { return ErrWrongShelf }

// OverPickError carries the quantity still open on the item. When ShelfID
// is set the limit is what that shelf holds, not what the route needs.
type OverPickError struct {
	Barcode   string
	ShelfID   string
	Requested int
	Remaining int
}

func (e *OverPickError) Error() string {
	if e.ShelfID != "" {
		return fmt.Sprintf("over pick on %s: requested %d, shelf %s holds %d", e.Barcode, e.Requested, e.ShelfID, e.Remaining)
	}
	return fmt.Sprintf("over pick on %s: requested %d, remaining %d", e.Barcode, e.Requested, e.Remaining)
}

func (e *OverPickError) Unwrap() error { return ErrOverPick }

// TransferRequiredError lists the products blocking a route
type TransferRequiredError struct {
	RouteID    string
	Shortfalls []Shortfall
}

func (e *TransferRequiredError) Error() string {
	ids := make([]string, len(e.Shortfalls))
	for i, s := range e.Shortfalls {
		ids[i] = s.ProductID
	}
	return fmt.Sprintf("transfer required for route %s: products %s", e.RouteID, strings.Join(ids, ","))
}

func (e *TransferRequiredError) Unwrap() error { return ErrTransferRequired }

// InsufficientStockError is returned when an OUT movement would drive a
// location below zero
type InsufficientStockError struct {
	ProductID string
	ShelfID   string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s on shelf %s: available %d, requested %d",
		e.ProductID, e.ShelfID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// OrderNotPickableError names the order that blocked route creation
type OrderNotPickableError struct {
	OrderID string
	Reason  string
}

func (e *OrderNotPickableError) Error() string {
	return fmt.Sprintf("order %s is not pickable: %s", e.OrderID, e.Reason)
}

func (e *OrderNotPickableError) Unwrap() error { return ErrOrderNotPickable }
