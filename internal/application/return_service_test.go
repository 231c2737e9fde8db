package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
)

func TestReturnService_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	item, err := env.returnSv.Register(ctx, RegisterReturnCommand{Barcode: barcodeY, OrderID: "A", Quantity: 2, Condition: domain.ReturnConditionNormal})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReturnStatusUnresolved), item.Status)
	assert.Empty(t, item.ProductID)

	// restock needs a resolved item
	_, err = env.returnSv.Restock(ctx, RestockReturnCommand{ReturnItemID: item.ID, ShelfID: shelfRN})
	requireCode(t, err, errors.CodeConflict)

	resolved, err := env.returnSv.Resolve(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReturnStatusResolved), resolved.Status)
	assert.Equal(t, productY, resolved.ProductID)
	assert.NotNil(t, resolved.ResolvedAt)

	_, err = env.returnSv.Resolve(ctx, item.ID)
	requireCode(t, err, errors.CodeConflict)

	_, err = env.returnSv.Restock(ctx, RestockReturnCommand{ReturnItemID: item.ID, ShelfID: shelfRD})
	requireCode(t, err, errors.CodeInvalidShelf)

	restocked, err := env.returnSv.Restock(ctx, RestockReturnCommand{ReturnItemID: item.ID, ShelfID: shelfRN})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReturnStatusRestocked), restocked.Status)
	assert.Equal(t, shelfRN, restocked.ShelfID)
	assert.NotEmpty(t, restocked.MovementID)

	assert.Equal(t, 2, env.location(t, productY, shelfRN))
	stock := env.product(t, productY)
	assert.Equal(t, 2, stock.OnHand)
	assert.Equal(t, 0, stock.Sellable)

	movements, err := env.queries.ListMovements(ctx, ListMovementsQuery{ReferenceKind: domain.ReferenceReturn, ReferenceID: item.ID})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, restocked.MovementID, movements[0].ID)

	_, err = env.returnSv.Restock(ctx, RestockReturnCommand{ReturnItemID: item.ID, ShelfID: shelfRN})
	requireCode(t, err, errors.CodeConflict)

	assert.Equal(t, []string{
		domain.EventReturnItemRegistered,
		domain.EventReturnItemResolved,
		domain.EventReturnItemRestocked,
	}, env.eventTypes(item.ID))
	assert.Equal(t, []string{domain.EventStockMovementRecorded}, env.eventTypes(productY))
	env.requireConsistent(t)
}

func TestReturnService_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  RegisterReturnCommand
		code string
	}{
		{"no barcode", RegisterReturnCommand{Quantity: 1, Condition: domain.ReturnConditionNormal}, errors.CodeInvalidProduct},
		{"zero quantity", RegisterReturnCommand{Barcode: barcodeX, Condition: domain.ReturnConditionNormal}, errors.CodeInvalidQuantity},
		{"unknown condition", RegisterReturnCommand{Barcode: barcodeX, Quantity: 1, Condition: "LOST"}, errors.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.returnSv.Register(ctx, tt.cmd)
			requireCode(t, err, tt.code)
		})
	}

	unknown, err := env.returnSv.Register(ctx, RegisterReturnCommand{Barcode: "NO-SUCH-BARCODE", Quantity: 1, Condition: domain.ReturnConditionDamaged})
	require.NoError(t, err)
	_, err = env.returnSv.Resolve(ctx, unknown.ID)
	requireCode(t, err, errors.CodeNotFound)

	_, err = env.returnSv.Resolve(ctx, "RI-404")
	requireCode(t, err, errors.CodeNotFound)

	pending, err := env.returnSv.ListReturnItems(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, unknown.ID, pending[0].ID)

	got, err := env.returnSv.GetReturnItem(ctx, unknown.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReturnConditionDamaged), got.Condition)
}
