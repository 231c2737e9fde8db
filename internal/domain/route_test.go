package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTwoOrderRoute(t *testing.T) *Route {
	t.Helper()
	r, err := NewRoute("R", "", []*Order{
		testOrder("A", line("P-X", "X", 3)),
		testOrder("B", line("P-X", "X", 2)),
	}, "lead-1", testNow)
	require.NoError(t, err)
	require.NoError(t, r.AssignShelf("X", &Shelf{ID: "S1", Label: "A-01", Class: ShelfClassSellable}))
	return r
}

func TestNewRoute(t *testing.T) {
	tests := []struct {
		name    string
		orders  []*Order
		wantErr error
	}{
		{"empty order set", nil, ErrEmptyOrderSet},
		{"order not pickable", []*Order{{ID: "A", Status: OrderStatusShipped, Lines: []OrderLine{line("P", "B", 1)}}}, ErrOrderNotPickable},
		{"order without lines", []*Order{{ID: "A", Status: OrderStatusConfirmed}}, ErrOrderNotPickable},
		{"barcode used for two products", []*Order{
			testOrder("A", line("P1", "X", 1)),
			testOrder("B", line("P2", "X", 1)),
		}, ErrInvalidProduct},
		{"valid", []*Order{testOrder("A", line("P1", "X", 1))}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRoute("route", "desc", tt.orders, "", testNow)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, RouteStatusCollecting, r.Status)
			require.Len(t, r.DomainEvents, 1)
			assert.Equal(t, EventRouteCreated, r.DomainEvents[0].EventType())
		})
	}
}

func TestNewRoute_PickListOrder(t *testing.T) {
	r, err := NewRoute("R", "", []*Order{
		testOrder("A", line("P-Y", "Y", 1), line("P-X", "X", 2)),
		testOrder("B", line("P-X", "X", 1), line("P-Z", "Z", 4)),
		testOrder("A", line("P-Q", "Q", 9)),
	}, "", testNow)
	require.NoError(t, err)

	var barcodes []string
	for _, item := range r.Items {
		barcodes = append(barcodes, item.Barcode)
	}
	assert.Equal(t, []string{"Y", "X", "Z"}, barcodes)
	assert.Equal(t, []string{"A", "B"}, r.OrderIDs, "duplicate order ids are ignored")
	assert.Equal(t, 8, r.TotalQuantity())
	assert.Equal(t, "20.00", r.Value().StringFixed(2))
	assert.Equal(t, map[string]int{"P-Y": 1, "P-X": 3, "P-Z": 4}, r.QuantitiesByProduct(false))
}

func TestRoute_TwoOrdersSharingBarcode(t *testing.T) {
	r := newTwoOrderRoute(t)
	r.ClearDomainEvents()
	r.ValidateShelf("S1", testNow)

	plan, err := Apportion("X", r.Allocations("X"), 4)
	require.NoError(t, err)
	require.NoError(t, r.ApplyPick("X", plan, testNow))

	progress := BuildPickingProgress(r)
	require.Len(t, progress.Items, 1)
	item := progress.Items[0]
	assert.Equal(t, 5, item.TotalQuantity)
	assert.Equal(t, 4, item.PickedQuantity)
	assert.False(t, item.IsComplete)
	assert.Equal(t, []OrderAllocation{
		{OrderID: "A", OrderNumber: "NO-A", Quantity: 3, Picked: 3},
		{OrderID: "B", OrderNumber: "NO-B", Quantity: 2, Picked: 1},
	}, item.Orders)
	assert.Equal(t, RouteStatusCollecting, r.Status)
	assert.True(t, r.Shelf.Validated, "same item still pending on the same shelf")

	var types []string
	for _, e := range r.DomainEvents {
		types = append(types, e.EventType())
	}
	assert.Equal(t, []string{EventPickedQuantityUpdated, EventOrderReadyForPacking, EventPickedQuantityUpdated}, types)

	plan, err = Apportion("X", r.Allocations("X"), 1)
	require.NoError(t, err)
	require.NoError(t, r.ApplyPick("X", plan, testNow))

	assert.Equal(t, RouteStatusReady, r.Status)
	assert.True(t, r.IsComplete())
	assert.False(t, r.Shelf.Validated)
	require.NotNil(t, r.ReadyAt)
	last := r.DomainEvents[len(r.DomainEvents)-1]
	assert.Equal(t, EventRouteReady, last.EventType())

	_, err = Apportion("X", r.Allocations("X"), 1)
	var overPick *OverPickError
	require.ErrorAs(t, err, &overPick)
	assert.Equal(t, 0, overPick.Remaining)
	assert.ErrorIs(t, r.ApplyPick("X", nil, testNow), ErrRouteNotCollecting)
}

func TestRoute_ShelfValidationResetsAcrossShelves(t *testing.T) {
	r, err := NewRoute("R", "", []*Order{
		testOrder("A", line("P-X", "X", 1), line("P-Y", "Y", 1), line("P-Z", "Z", 1)),
	}, "", testNow)
	require.NoError(t, err)
	require.NoError(t, r.AssignShelf("X", &Shelf{ID: "S1"}))
	require.NoError(t, r.AssignShelf("Y", &Shelf{ID: "S1"}))
	require.NoError(t, r.AssignShelf("Z", &Shelf{ID: "S2"}))

	r.ValidateShelf("S1", testNow)
	pick := func(barcode string) {
		plan, err := Apportion(barcode, r.Allocations(barcode), 1)
		require.NoError(t, err)
		require.NoError(t, r.ApplyPick(barcode, plan, testNow))
	}

	pick("X")
	assert.True(t, r.Shelf.Validated, "next item Y is on the validated shelf")
	item, _ := r.Item("Y")
	assert.True(t, r.IsShelfValidatedFor(item))

	pick("Y")
	assert.False(t, r.Shelf.Validated, "next item Z is on another shelf")
	assert.Equal(t, "Z", r.NextPendingItem().Barcode)
}

func TestRoute_SyncShelfValidationAfterReassign(t *testing.T) {
	r := newTwoOrderRoute(t)
	r.ValidateShelf("S1", testNow)

	r.SyncShelfValidation()
	assert.True(t, r.Shelf.Validated)

	require.NoError(t, r.AssignShelf("X", &Shelf{ID: "S2", Label: "A-02"}))
	r.SyncShelfValidation()
	assert.False(t, r.Shelf.Validated)
	assert.Empty(t, r.Shelf.ShelfID)
}

func TestRoute_Cancel(t *testing.T) {
	t.Run("without progress", func(t *testing.T) {
		r := newTwoOrderRoute(t)
		require.NoError(t, r.Cancel("customer request", testNow))
		assert.Equal(t, RouteStatusCancelled, r.Status)
		assert.ErrorIs(t, r.Cancel("", testNow), ErrInvalidRouteTransition)
	})

	t.Run("with progress", func(t *testing.T) {
		r := newTwoOrderRoute(t)
		require.NoError(t, r.ApplyPick("X", []Apportionment{{OrderID: "A", LineID: "A-L1", Quantity: 1}}, testNow))
		assert.ErrorIs(t, r.Cancel("", testNow), ErrRouteNotCancellable)
		assert.Equal(t, RouteStatusCollecting, r.Status)
	})

	t.Run("ready route", func(t *testing.T) {
		r := newTwoOrderRoute(t)
		plan, _ := Apportion("X", r.Allocations("X"), 5)
		require.NoError(t, r.ApplyPick("X", plan, testNow))
		require.Equal(t, RouteStatusReady, r.Status)
		assert.ErrorIs(t, r.Cancel("", testNow), ErrRouteNotCancellable)
	})
}

func TestRoute_Complete(t *testing.T) {
	r := newTwoOrderRoute(t)
	assert.True(t, errors.Is(r.Complete(testNow), ErrInvalidRouteTransition))

	plan, _ := Apportion("X", r.Allocations("X"), 5)
	require.NoError(t, r.ApplyPick("X", plan, testNow))
	require.NoError(t, r.Complete(testNow))
	assert.Equal(t, RouteStatusCompleted, r.Status)
	assert.ErrorIs(t, r.Complete(testNow), ErrInvalidRouteTransition)
}

func TestRouteStatus_Transitions(t *testing.T) {
	all := []RouteStatus{RouteStatusCollecting, RouteStatusReady, RouteStatusCompleted, RouteStatusCancelled}
	legal := map[[2]RouteStatus]bool{
		{RouteStatusCollecting, RouteStatusReady}:     true,
		{RouteStatusCollecting, RouteStatusCancelled}: true,
		{RouteStatusReady, RouteStatusCompleted}:      true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]RouteStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestRoute_ApplyPickRejectsInvalidPlans(t *testing.T) {
	r := newTwoOrderRoute(t)

	err := r.ApplyPick("X", []Apportionment{{OrderID: "A", LineID: "A-L1", Quantity: 4}}, testNow)
	assert.ErrorIs(t, err, ErrOverPick)

	err = r.ApplyPick("X", []Apportionment{{OrderID: "C", LineID: "C-L1", Quantity: 1}}, testNow)
	assert.ErrorIs(t, err, ErrUnknownBarcodeForRoute)

	assert.ErrorIs(t, r.ApplyPick("NOPE", nil, testNow), ErrUnknownBarcodeForRoute)
}
