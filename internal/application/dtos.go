package application

import "time"

// MovementDTO represents a ledger entry
type MovementDTO struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"productId"`
	Quantity      int       `json:"quantity"`
	Type          string    `json:"type"`
	Direction     string    `json:"direction"`
	SourceShelfID string    `json:"sourceShelfId,omitempty"`
	TargetShelfID string    `json:"targetShelfId,omitempty"`
	ReferenceKind string    `json:"referenceKind,omitempty"`
	ReferenceID   string    `json:"referenceId,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	Note          string    `json:"note,omitempty"`
	RecordedAt    time.Time `json:"recordedAt"`
}

// TransferDTO represents both legs of a transfer
type TransferDTO struct {
	TransferID string       `json:"transferId"`
	Out        *MovementDTO `json:"out"`
	In         *MovementDTO `json:"in"`
}

// LocationStockDTO represents stock of a product on one shelf
type LocationStockDTO struct {
	ProductID  string    `json:"productId"`
	ShelfID    string    `json:"shelfId"`
	ShelfClass string    `json:"shelfClass,omitempty"`
	Quantity   int       `json:"quantity"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

// ProductStockDTO represents a product aggregate with its locations
type ProductStockDTO struct {
	ProductID   string             `json:"productId"`
	OnHand      int                `json:"onHand"`
	Sellable    int                `json:"sellable"`
	NonSellable int                `json:"nonSellable"`
	Reserved    int                `json:"reserved"`
	Committed   int                `json:"committed"`
	Locations   []LocationStockDTO `json:"locations"`
	UpdatedAt   time.Time          `json:"updatedAt,omitempty"`
}

// DriftDTO is one ledger/store mismatch
type DriftDTO struct {
	ShelfID  string `json:"shelfId,omitempty"`
	Field    string `json:"field"`
	Expected int    `json:"expected"`
	Actual   int    `json:"actual"`
}

// ReconcileReportDTO is the result of replaying a product's ledger
type ReconcileReportDTO struct {
	ProductID     string     `json:"productId"`
	MovementCount int        `json:"movementCount"`
	Consistent    bool       `json:"consistent"`
	Drifts        []DriftDTO `json:"drifts"`
	CheckedAt     time.Time  `json:"checkedAt"`
}

// ShortfallDTO is one product blocking a route
type ShortfallDTO struct {
	ProductID            string   `json:"productId"`
	Required             int      `json:"required"`
	AvailableSellable    int      `json:"availableSellable"`
	AvailableNonSellable int      `json:"availableNonSellable"`
	Missing              int      `json:"missing"`
	CandidateShelves     []string `json:"candidateShelves"`
}

// AvailabilityDTO is the transfer advisory's answer for a route
type AvailabilityDTO struct {
	RouteID          string         `json:"routeId"`
	TransferRequired bool           `json:"transferRequired"`
	Shortfalls       []ShortfallDTO `json:"shortfalls"`
}

// RouteLineDTO represents one order line on a route
type RouteLineDTO struct {
	LineID    string `json:"lineId"`
	ProductID string `json:"productId"`
	Barcode   string `json:"barcode"`
	Quantity  int    `json:"quantity"`
	Picked    int    `json:"picked"`
	UnitPrice string `json:"unitPrice"`
}

// RouteOrderDTO represents an order on a route
type RouteOrderDTO struct {
	OrderID     string         `json:"orderId"`
	OrderNumber string         `json:"orderNumber"`
	FullyPicked bool           `json:"fullyPicked"`
	Lines       []RouteLineDTO `json:"lines"`
}

// RouteDTO represents a route
type RouteDTO struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	Status         string           `json:"status"`
	Orders         []RouteOrderDTO  `json:"orders"`
	TotalQuantity  int              `json:"totalQuantity"`
	PickedQuantity int              `json:"pickedQuantity"`
	Value          string           `json:"value"`
	PickedValue    string           `json:"pickedValue"`
	ShelfID        string           `json:"validatedShelfId,omitempty"`
	ShelfValidated bool             `json:"shelfValidated"`
	CreatedBy      string           `json:"createdBy,omitempty"`
	Version        int64            `json:"version"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	ReadyAt        *time.Time       `json:"readyAt,omitempty"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
	CancelledAt    *time.Time       `json:"cancelledAt,omitempty"`
	Availability   *AvailabilityDTO `json:"availability,omitempty"`
}

// OrderAllocationDTO is an order's share of a picking item
type OrderAllocationDTO struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Quantity    int    `json:"quantity"`
	Picked      int    `json:"picked"`
}

// PickingItemDTO is one pick-list entry
type PickingItemDTO struct {
	Barcode        string               `json:"barcode"`
	ProductID      string               `json:"productId"`
	ShelfID        string               `json:"shelfId"`
	ShelfLocation  string               `json:"shelfLocation"`
	TotalQuantity  int                  `json:"totalQuantity"`
	PickedQuantity int                  `json:"pickedQuantity"`
	IsComplete     bool                 `json:"isComplete"`
	Orders         []OrderAllocationDTO `json:"orders"`
}

// PickingProgressDTO is the pick list of a route
type PickingProgressDTO struct {
	RouteID         string           `json:"routeId"`
	Status          string           `json:"status"`
	Items           []PickingItemDTO `json:"items"`
	TotalQuantity   int              `json:"totalQuantity"`
	PickedQuantity  int              `json:"pickedQuantity"`
	NextBarcode     string           `json:"nextBarcode,omitempty"`
	ExpectedShelfID string           `json:"expectedShelfId,omitempty"`
	ShelfValidated  bool             `json:"shelfValidated"`
}

// ApportionmentDTO is one order's share of a scan
type ApportionmentDTO struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	LineID      string `json:"lineId"`
	Quantity    int    `json:"quantity"`
}

// ScanResultDTO is the answer to an accepted scan
type ScanResultDTO struct {
	RouteID       string              `json:"routeId"`
	Kind          string              `json:"kind"`
	Status        string              `json:"status"`
	ShelfID       string              `json:"shelfId,omitempty"`
	Barcode       string              `json:"barcode,omitempty"`
	Quantity      int                 `json:"quantity,omitempty"`
	MovementID    string              `json:"movementId,omitempty"`
	Apportionment []ApportionmentDTO  `json:"apportionment,omitempty"`
	RouteReady    bool                `json:"routeReady"`
	Progress      *PickingProgressDTO `json:"progress"`
}

// ReturnItemDTO represents a returned unit
type ReturnItemDTO struct {
	ID          string     `json:"id"`
	Barcode     string     `json:"barcode"`
	OrderID     string     `json:"orderId,omitempty"`
	Quantity    int        `json:"quantity"`
	Condition   string     `json:"condition"`
	Status      string     `json:"status"`
	ProductID   string     `json:"productId,omitempty"`
	ShelfID     string     `json:"shelfId,omitempty"`
	MovementID  string     `json:"movementId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
	RestockedAt *time.Time `json:"restockedAt,omitempty"`
}

// scan kinds reported in ScanResultDTO and metrics
const (
	scanKindShelf   = "shelf"
	scanKindBarcode = "barcode"
)
