package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/internal/domain"
)

const seed = `
warehouses:
  - id: WH1
    name: Main
shelves:
  - id: S-A1
    barcode: SHELF-A1
    label: A-01
    class: SELLABLE
    warehouseId: WH1
  - id: S-R1
    barcode: SHELF-R1
    class: RETURN_NORMAL
    warehouseId: WH1
products:
  - id: P1
    barcode: "4006381333931"
    sku: SKU-1
    name: Pen
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(seed))
	require.NoError(t, err)
	ctx := context.Background()

	shelf, err := c.FindShelfByBarcode(ctx, "SHELF-A1")
	require.NoError(t, err)
	assert.Equal(t, "S-A1", shelf.ID)
	assert.Equal(t, "A-01", shelf.DisplayLocation())

	class, ok := c.ClassOf("S-R1")
	assert.True(t, ok)
	assert.Equal(t, domain.ShelfClassReturnNormal, class)

	product, err := c.FindProductByBarcode(ctx, "4006381333931")
	require.NoError(t, err)
	assert.Equal(t, "P1", product.ID)

	shelves, err := c.ListShelves(ctx)
	require.NoError(t, err)
	require.Len(t, shelves, 2)
	assert.Equal(t, "S-A1", shelves[0].ID)
	assert.Len(t, c.Warehouses(), 1)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown class", "shelves:\n  - {id: S1, barcode: B1, class: FLOOR}\n"},
		{"duplicate shelf barcode", "shelves:\n  - {id: S1, barcode: B1, class: SELLABLE}\n  - {id: S2, barcode: B1, class: SELLABLE}\n"},
		{"product without barcode", "products:\n  - {id: P1}\n"},
		{"malformed", "shelves: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	_, err = c.FindShelf(context.Background(), "S-A1")
	assert.NoError(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestUpsertShelf_ReportsClassChange(t *testing.T) {
	c := New()
	_, changed, err := c.UpsertShelf(domain.Shelf{ID: "S1", Barcode: "B1", Class: domain.ShelfClassReceiving})
	require.NoError(t, err)
	assert.False(t, changed)

	prev, changed, err := c.UpsertShelf(domain.Shelf{ID: "S1", Barcode: "B2", Class: domain.ShelfClassSellable})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.ShelfClassReceiving, prev)

	_, err = c.FindShelfByBarcode(context.Background(), "B1")
	assert.ErrorIs(t, err, domain.ErrShelfNotFound)

	assert.True(t, c.RemoveShelf("S1"))
	assert.False(t, c.RemoveShelf("S1"))
	_, ok := c.ClassOf("S1")
	assert.False(t, ok)
}
