package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	pkgmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
)

// TxManager runs units of work as MongoDB transactions. Repositories join
// the transaction through the session carried by ctx.
type TxManager struct {
	client *pkgmongo.Client
}

// NewTxManager creates a transaction manager on client
func NewTxManager(client *pkgmongo.Client) *TxManager {
	return &TxManager{client: client}
}

// WithTransaction runs fn in a transaction, or inside the caller's one when
// ctx already carries a session. fn may run more than once on transient
// errors.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	return m.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
}
