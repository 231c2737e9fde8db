package application

import (
	"time"

	"github.com/wms-platform/fulfillment-service/internal/domain"
)

// RecordMovementCommand appends one raw ledger entry
type RecordMovementCommand struct {
	ProductID     string
	Quantity      int
	Type          domain.MovementType
	Direction     domain.Direction
	SourceShelfID string
	TargetShelfID string
	ReferenceKind domain.ReferenceKind
	ReferenceID   string
	Actor         string
	Note          string
}

// ReceiveStockCommand books goods into a shelf
type ReceiveStockCommand struct {
	ProductID   string
	ShelfID     string
	Quantity    int
	ReferenceID string
	Actor       string
	Note        string
}

// AdjustStockCommand corrects a shelf count. Delta is signed.
type AdjustStockCommand struct {
	ProductID string
	ShelfID   string
	Delta     int
	Reason    string
	Actor     string
}

// TransferStockCommand moves stock between two shelves
type TransferStockCommand struct {
	ProductID   string
	FromShelfID string
	ToShelfID   string
	Quantity    int
	Actor       string
	Note        string
}

// ReturnStockCommand books a returned unit onto a return shelf
type ReturnStockCommand struct {
	ProductID string
	ShelfID   string
	Quantity  int
	Condition domain.ReturnCondition
	ReturnID  string
	Actor     string
}

// ReverseMovementCommand compensates an earlier ledger entry
type ReverseMovementCommand struct {
	MovementID string
	Reason     string
	Actor      string
}

// ListMovementsQuery filters the ledger
type ListMovementsQuery struct {
	ProductID     string
	ShelfID       string
	Type          domain.MovementType
	ReferenceKind domain.ReferenceKind
	ReferenceID   string
	From          *time.Time
	To            *time.Time
	Limit         int
}

// CreateRouteCommand groups orders into a route
type CreateRouteCommand struct {
	OrderIDs    []string
	Name        string
	Description string
	Actor       string
}

// CancelRouteCommand cancels a route that has no progress
type CancelRouteCommand struct {
	RouteID string
	Reason  string
	Actor   string
}

// CompleteRouteCommand marks a ready route as packed
type CompleteRouteCommand struct {
	RouteID string
	Actor   string
}

// ListRoutesQuery lists routes by status
type ListRoutesQuery struct {
	Status domain.RouteStatus
	Limit  int
}

// ScanShelfCommand is an operator's shelf scan
type ScanShelfCommand struct {
	RouteID      string
	ShelfBarcode string
	Actor        string
}

// ScanBarcodeCommand is an operator's product scan
type ScanBarcodeCommand struct {
	RouteID  string
	Barcode  string
	Quantity int
	Actor    string
}

// RegisterReturnCommand books a returned unit by barcode
type RegisterReturnCommand struct {
	Barcode   string
	OrderID   string
	Quantity  int
	Condition domain.ReturnCondition
	Actor     string
}

// RestockReturnCommand puts a resolved return onto a shelf
type RestockReturnCommand struct {
	ReturnItemID string
	ShelfID      string
	Actor        string
}
