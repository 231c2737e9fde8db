package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovementDraft_Validate(t *testing.T) {
	valid := MovementDraft{ProductID: "P", Quantity: 1, Type: MovementReceiving, Direction: DirectionIn, TargetShelfID: "S1"}

	tests := []struct {
		name    string
		mutate  func(d *MovementDraft)
		wantErr error
	}{
		{"valid", func(d *MovementDraft) {}, nil},
		{"zero quantity", func(d *MovementDraft) { d.Quantity = 0 }, ErrInvalidQuantity},
		{"missing product", func(d *MovementDraft) { d.ProductID = "" }, ErrInvalidProduct},
		{"unknown type", func(d *MovementDraft) { d.Type = "TELEPORT" }, ErrInvalidMovement},
		{"unknown direction", func(d *MovementDraft) { d.Direction = "UP" }, ErrInvalidMovement},
		{"IN without target", func(d *MovementDraft) { d.TargetShelfID = ""; d.SourceShelfID = "S1" }, ErrInvalidShelf},
		{"OUT without source", func(d *MovementDraft) { d.Direction = DirectionOut }, ErrInvalidShelf},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewStockMovement_SignsQuantity(t *testing.T) {
	out, err := NewStockMovement(MovementDraft{
		ProductID: "P", Quantity: 4, Type: MovementPicking, Direction: DirectionOut,
		SourceShelfID: "S1", Reference: Reference{Kind: ReferenceRoute, ID: "R1"},
	}, testNow)
	require.NoError(t, err)

	assert.Equal(t, -4, out.Quantity)
	assert.Equal(t, 4, out.AbsQuantity())
	assert.Equal(t, "S1", out.ShelfID())
	assert.Regexp(t, `^MV-\d{14}-[0-9a-f]{8}$`, out.ID)
	assert.Equal(t, testNow, out.RecordedAt)
}

func TestStockMovement_ReversalDraft(t *testing.T) {
	received, err := NewStockMovement(MovementDraft{
		ProductID: "P", Quantity: 6, Type: MovementReceiving, Direction: DirectionIn, TargetShelfID: "S1",
	}, testNow)
	require.NoError(t, err)

	d, err := received.ReversalDraft("auditor", "duplicate receipt")
	require.NoError(t, err)
	assert.Equal(t, MovementCancel, d.Type)
	assert.Equal(t, DirectionOut, d.Direction)
	assert.Equal(t, "S1", d.ShelfID())
	assert.Equal(t, 6, d.Quantity)
	assert.Equal(t, Reference{Kind: ReferenceMovement, ID: received.ID}, d.Reference)

	picked := &StockMovement{Type: MovementPicking, Direction: DirectionOut}
	_, err = picked.ReversalDraft("", "")
	assert.ErrorIs(t, err, ErrNotReversible)
}

func TestMovementFilter_Matches(t *testing.T) {
	m := &StockMovement{
		ProductID: "P", Type: MovementTransfer, Direction: DirectionIn,
		SourceShelfID: "S1", TargetShelfID: "S2",
		Reference:  Reference{Kind: ReferenceTransfer, ID: "TR-1"},
		RecordedAt: testNow,
	}
	later := testNow.Add(1)

	assert.True(t, MovementFilter{}.Matches(m))
	assert.True(t, MovementFilter{ShelfID: "S2", ReferenceID: "TR-1"}.Matches(m))
	assert.False(t, MovementFilter{ShelfID: "S1"}.Matches(m), "IN leg belongs to the target shelf")
	assert.True(t, MovementFilter{From: &testNow, To: &later}.Matches(m))
	assert.False(t, MovementFilter{To: &testNow}.Matches(m))
	assert.False(t, MovementFilter{Type: MovementPicking}.Matches(m))
}
