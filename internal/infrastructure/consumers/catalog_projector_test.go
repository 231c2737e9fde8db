package consumers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/catalog"
	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/kafka"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
)

type fakeRecomputer struct {
	calls []string
	err   error
}

func (f *fakeRecomputer) RecomputeShelf(ctx context.Context, shelfID string) (int, error) {
	f.calls = append(f.calls, shelfID)
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

type fakeShelfStock map[string][]*domain.LocationStock

func (f fakeShelfStock) ListLocationStockByShelf(ctx context.Context, shelfID string) ([]*domain.LocationStock, error) {
	return f[shelfID], nil
}

func event(eventType string, data any) *cloudevents.WMSCloudEvent {
	return &cloudevents.WMSCloudEvent{
		SpecVersion: cloudevents.SpecVersion,
		Type:        eventType,
		Source:      cloudevents.SourceFacility,
		ID:          "evt-" + eventType,
		Time:        time.Now().UTC(),
		Data:        data,
	}
}

func newProjector(t *testing.T) (*CatalogProjector, *catalog.Catalog, *fakeRecomputer, fakeShelfStock) {
	t.Helper()
	cat := catalog.New()
	_, _, err := cat.UpsertShelf(domain.Shelf{ID: "S1", Barcode: "SH-S1", Class: domain.ShelfClassReceiving})
	require.NoError(t, err)
	rec := &fakeRecomputer{}
	stock := fakeShelfStock{}
	return NewCatalogProjector(cat, rec, stock, logging.NewNop()), cat, rec, stock
}

func TestCatalogProjector_ShelfConfigured(t *testing.T) {
	p, cat, rec, _ := newProjector(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		data      any
		wantClass domain.ShelfClass
		recompute bool
	}{
		{
			name:      "new shelf",
			data:      ShelfConfiguredData{ShelfID: "S2", Barcode: "SH-S2", Label: "B-01", Class: "SELLABLE"},
			wantClass: domain.ShelfClassSellable,
		},
		{
			name:      "same class only relabels",
			data:      ShelfConfiguredData{ShelfID: "S1", Barcode: "SH-S1", Label: "R-01", Class: "RECEIVING"},
			wantClass: domain.ShelfClassReceiving,
		},
		{
			name:      "class change recomputes",
			data:      ShelfConfiguredData{ShelfID: "S1", Barcode: "SH-S1", Class: "SELLABLE"},
			wantClass: domain.ShelfClassSellable,
			recompute: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec.calls = nil
			require.NoError(t, p.OnShelfConfigured(ctx, event(cloudevents.ShelfConfigured, tt.data)))

			id := tt.data.(ShelfConfiguredData).ShelfID
			class, ok := cat.ClassOf(id)
			require.True(t, ok)
			assert.Equal(t, tt.wantClass, class)
			if tt.recompute {
				assert.Equal(t, []string{id}, rec.calls)
			} else {
				assert.Empty(t, rec.calls)
			}
		})
	}
}

func TestCatalogProjector_RecomputeRetriedOnRedelivery(t *testing.T) {
	p, _, rec, _ := newProjector(t)
	ctx := context.Background()
	evt := event(cloudevents.ShelfConfigured, ShelfConfiguredData{ShelfID: "S1", Barcode: "SH-S1", Class: "SELLABLE"})

	rec.err = errors.New("mongo down")
	assert.Error(t, p.OnShelfConfigured(ctx, evt))

	// the catalog already holds the new class; the redelivery must still recompute
	rec.err = nil
	require.NoError(t, p.OnShelfConfigured(ctx, evt))
	assert.Equal(t, []string{"S1", "S1"}, rec.calls)

	require.NoError(t, p.OnShelfConfigured(ctx, evt))
	assert.Len(t, rec.calls, 2)
}

func TestCatalogProjector_InvalidPayloadsAreDropped(t *testing.T) {
	p, cat, rec, _ := newProjector(t)
	ctx := context.Background()

	assert.NoError(t, p.OnShelfConfigured(ctx, event(cloudevents.ShelfConfigured, "not an object")))
	assert.NoError(t, p.OnShelfConfigured(ctx, event(cloudevents.ShelfConfigured, ShelfConfiguredData{ShelfID: "S9", Barcode: "SH-S9", Class: "ATTIC"})))
	assert.NoError(t, p.OnShelfConfigured(ctx, event(cloudevents.ShelfConfigured, ShelfConfiguredData{ShelfID: "S9", Barcode: "SH-S1", Class: "SELLABLE"})))
	assert.NoError(t, p.OnProductUpserted(ctx, event(cloudevents.ProductUpserted, ProductUpsertedData{ProductID: "P1"})))

	_, ok := cat.ClassOf("S9")
	assert.False(t, ok)
	_, err := cat.FindProduct(ctx, "P1")
	assert.Error(t, err)
	assert.Empty(t, rec.calls)
}

func TestCatalogProjector_ShelfRemoved(t *testing.T) {
	p, cat, _, stock := newProjector(t)
	ctx := context.Background()
	_, _, err := cat.UpsertShelf(domain.Shelf{ID: "S2", Barcode: "SH-S2", Class: domain.ShelfClassSellable})
	require.NoError(t, err)
	stock["S1"] = []*domain.LocationStock{{ProductID: "P1", ShelfID: "S1", Quantity: 3}}

	require.NoError(t, p.OnShelfRemoved(ctx, event(cloudevents.ShelfRemoved, ShelfRemovedData{ShelfID: "S1"})))
	_, ok := cat.ClassOf("S1")
	assert.True(t, ok, "shelf with stock must stay")

	require.NoError(t, p.OnShelfRemoved(ctx, event(cloudevents.ShelfRemoved, ShelfRemovedData{ShelfID: "S2"})))
	_, ok = cat.ClassOf("S2")
	assert.False(t, ok)
}

func TestCatalogProjector_DispatchThroughConsumer(t *testing.T) {
	p, cat, _, _ := newProjector(t)
	consumer := kafka.NewConsumer(kafka.DefaultConfig(), logging.NewNop(), nil)
	p.Register(consumer)
	ctx := context.Background()

	err := consumer.Dispatch(ctx, kafka.Topics.ProductEvents, event(cloudevents.ProductUpserted, ProductUpsertedData{
		ProductID: "P1", Barcode: "4006381333931", SKU: "SKU-1", Name: "Pen",
	}))
	require.NoError(t, err)

	product, err := cat.FindProductByBarcode(ctx, "4006381333931")
	require.NoError(t, err)
	assert.Equal(t, "P1", product.ID)

	err = consumer.Dispatch(ctx, kafka.Topics.FacilityEvents, event(cloudevents.ShelfConfigured, ShelfConfiguredData{
		ShelfID: "S3", Barcode: "SH-S3", Class: "TRANSIT",
	}))
	require.NoError(t, err)
	class, ok := cat.ClassOf("S3")
	require.True(t, ok)
	assert.Equal(t, domain.ShelfClassTransit, class)
}
