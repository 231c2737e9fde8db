package cloudevents

import (
	"encoding/json"
	"fmt"
	"time"
)

// SpecVersion is the CloudEvents version emitted by this service
const SpecVersion = "1.0"

// Sources
const (
	SourceFulfillment = "/wms/fulfillment-service"
	SourceFacility    = "/wms/facility-service"
	SourceProduct     = "/wms/product-service"
)

// Facility and product events consumed to keep the shelf/product catalog current
const (
	ShelfConfigured = "wms.facility.shelf-configured"
	ShelfRemoved    = "wms.facility.shelf-removed"
	ProductUpserted = "wms.product.upserted"
)

// WMSCloudEvent is a CloudEvents v1.0 envelope with the platform's extensions
type WMSCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	CorrelationID string `json:"wmscorrelationid,omitempty"`
	WarehouseID   string `json:"wmswarehouseid,omitempty"`
	RouteID       string `json:"wmsrouteid,omitempty"`
	OrderID       string `json:"wmsorderid,omitempty"`

	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

// DecodeData decodes the event payload into v. Data arrives as a generic
// map after JSON decoding, so it is round-tripped through JSON.
func (e *WMSCloudEvent) DecodeData(v interface{}) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("re-encode data of %s: %w", e.Type, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode data of %s: %w", e.Type, err)
	}
	return nil
}

// Validate checks the required CloudEvents attributes
func (e *WMSCloudEvent) Validate() error {
	switch {
	case e.SpecVersion != SpecVersion:
		return fmt.Errorf("unsupported specversion %q", e.SpecVersion)
	case e.ID == "":
		return fmt.Errorf("event id is required")
	case e.Type == "":
		return fmt.Errorf("event type is required")
	case e.Source == "":
		return fmt.Errorf("event source is required")
	}
	return nil
}

// ShelfConfiguredData is the payload of ShelfConfigured
type ShelfConfiguredData struct {
	ShelfID     string `json:"shelfId"`
	Barcode     string `json:"barcode"`
	Label       string `json:"label"`
	Class       string `json:"class"`
	WarehouseID string `json:"warehouseId"`
}

// ShelfRemovedData is the payload of ShelfRemoved
type ShelfRemovedData struct {
	ShelfID string `json:"shelfId"`
}

// ProductUpsertedData is the payload of ProductUpserted
type ProductUpsertedData struct {
	ProductID string `json:"productId"`
	Barcode   string `json:"barcode"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
}
