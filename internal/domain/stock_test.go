package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationStock_Apply(t *testing.T) {
	s := NewLocationStock("P", "S1")
	require.NoError(t, s.Apply(5, testNow))
	require.NoError(t, s.Apply(-3, testNow))
	assert.Equal(t, 2, s.Quantity)

	err := s.Apply(-3, testNow)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2, insufficient.Available)
	assert.Equal(t, 3, insufficient.Requested)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, s.Quantity, "rejected delta leaves the location untouched")

	require.NoError(t, s.Apply(-2, testNow))
	assert.True(t, s.IsEmpty())
}

func TestProductAggregate_ReservationLifecycle(t *testing.T) {
	a := NewProductAggregate("P")
	a.ApplyLocationDelta(10, ShelfClassSellable, testNow)
	a.ApplyLocationDelta(4, ShelfClassReturnDamaged, testNow)
	assert.Equal(t, 14, a.OnHand)
	assert.Equal(t, 10, a.Sellable)
	assert.Equal(t, 4, a.NonSellable())

	require.NoError(t, a.Reserve(12, testNow), "reservation is soft")
	require.NoError(t, a.Commit(5, testNow))
	assert.Equal(t, 7, a.Reserved)
	assert.Equal(t, 5, a.Committed)

	assert.ErrorIs(t, a.Commit(8, testNow), ErrStockMismatch)
	require.NoError(t, a.Release(7, testNow))
	assert.ErrorIs(t, a.Release(1, testNow), ErrStockMismatch)

	require.NoError(t, a.Ship(5, testNow))
	assert.Equal(t, 0, a.Committed)
	assert.ErrorIs(t, a.Ship(1, testNow), ErrStockMismatch)
	assert.ErrorIs(t, a.Reserve(0, testNow), ErrInvalidQuantity)
}

func TestComputeAggregate(t *testing.T) {
	lookup := classes(map[string]ShelfClass{
		"S1": ShelfClassSellable,
		"S2": ShelfClassSellable,
		"D1": ShelfClassReturnDamaged,
	})
	prev := &ProductAggregate{ProductID: "P", Reserved: 3, Committed: 1}

	agg := ComputeAggregate("P", []*LocationStock{
		{ProductID: "P", ShelfID: "S1", Quantity: 4},
		{ProductID: "P", ShelfID: "S2", Quantity: 1},
		{ProductID: "P", ShelfID: "D1", Quantity: 7},
		{ProductID: "P", ShelfID: "GONE", Quantity: 2},
		{ProductID: "OTHER", ShelfID: "S1", Quantity: 100},
	}, lookup, prev)

	assert.Equal(t, 14, agg.OnHand)
	assert.Equal(t, 5, agg.Sellable)
	assert.Equal(t, 3, agg.Reserved)
	assert.Equal(t, 1, agg.Committed)
}

func TestReconcile(t *testing.T) {
	lookup := classes(map[string]ShelfClass{"S1": ShelfClassSellable, "D1": ShelfClassReturnDamaged})
	mv := func(shelf string, dir Direction, qty int) *StockMovement {
		d := MovementDraft{ProductID: "P", Quantity: qty, Type: MovementAdjustment, Direction: dir}
		if dir == DirectionOut {
			d.SourceShelfID = shelf
		} else {
			d.TargetShelfID = shelf
		}
		m, err := NewStockMovement(d, testNow)
		require.NoError(t, err)
		return m
	}
	movements := []*StockMovement{
		mv("S1", DirectionIn, 10),
		mv("S1", DirectionOut, 4),
		mv("D1", DirectionIn, 3),
	}

	t.Run("consistent", func(t *testing.T) {
		report := Reconcile("P", movements,
			[]*LocationStock{{ProductID: "P", ShelfID: "S1", Quantity: 6}, {ProductID: "P", ShelfID: "D1", Quantity: 3}},
			&ProductAggregate{ProductID: "P", OnHand: 9, Sellable: 6},
			lookup, testNow)
		assert.True(t, report.Consistent(), "%+v", report.Drifts)
		assert.Equal(t, 3, report.MovementCount)
	})

	t.Run("drifted", func(t *testing.T) {
		report := Reconcile("P", movements,
			[]*LocationStock{{ProductID: "P", ShelfID: "S1", Quantity: 5}, {ProductID: "P", ShelfID: "X9", Quantity: 1}},
			&ProductAggregate{ProductID: "P", OnHand: 9, Sellable: 5},
			lookup, testNow)
		require.False(t, report.Consistent())

		fields := map[string]Drift{}
		for _, d := range report.Drifts {
			fields[d.Field+":"+d.ShelfID] = d
		}
		assert.Equal(t, 6, fields["location:S1"].Expected)
		assert.Equal(t, 5, fields["location:S1"].Actual)
		assert.Equal(t, 3, fields["location:D1"].Expected)
		assert.Equal(t, 1, fields["location:X9"].Actual)
		assert.Equal(t, 6, fields["sellable:"].Expected)
	})
}
