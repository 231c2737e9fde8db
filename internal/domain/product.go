package domain

// Product is static product data maintained by the product service
type Product struct {
	ID      string `bson:"_id" json:"id" yaml:"id"`
	Barcode string `bson:"barcode" json:"barcode" yaml:"barcode"`
	SKU     string `bson:"sku" json:"sku" yaml:"sku"`
	Name    string `bson:"name" json:"name" yaml:"name"`
}
