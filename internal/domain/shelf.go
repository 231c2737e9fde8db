package domain

// ShelfClass determines whether stock on a shelf counts as sellable
type ShelfClass string

const (
	ShelfClassReceiving     ShelfClass = "RECEIVING"
	ShelfClassSellable      ShelfClass = "SELLABLE"
	ShelfClassReturnNormal  ShelfClass = "RETURN_NORMAL"
	ShelfClassReturnDamaged ShelfClass = "RETURN_DAMAGED"
	ShelfClassTransit       ShelfClass = "TRANSIT"
)

// IsValid reports whether c is a known class
func (c ShelfClass) IsValid() bool {
	switch c {
	case ShelfClassReceiving, ShelfClassSellable, ShelfClassReturnNormal, ShelfClassReturnDamaged, ShelfClassTransit:
		return true
	}
	return false
}

// IsSellable reports whether stock on shelves of this class is fit for sale
func (c ShelfClass) IsSellable() bool {
	return c == ShelfClassSellable
}

// Shelf is a storage location. Shelves are owned by warehouse configuration
// and are read-only here.
type Shelf struct {
	ID          string     `bson:"_id" json:"id" yaml:"id"`
	Barcode     string     `bson:"barcode" json:"barcode" yaml:"barcode"`
	Label       string     `bson:"label" json:"label" yaml:"label"`
	Class       ShelfClass `bson:"class" json:"class" yaml:"class"`
	WarehouseID string     `bson:"warehouseId" json:"warehouseId" yaml:"warehouseId"`
}

// DisplayLocation is the human readable location shown on pick lists
func (s *Shelf) DisplayLocation() string {
	if s.Label != "" {
		return s.Label
	}
	return s.ID
}

// Warehouse groups shelves
type Warehouse struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ShelfClassLookup resolves the class of a shelf id. Unknown shelves report
// false.
type ShelfClassLookup func(shelfID string) (ShelfClass, bool)
