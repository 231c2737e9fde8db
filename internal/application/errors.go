package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/resilience"
)

// toAppError translates domain failures into API errors. Errors that are
// already AppErrors pass through; anything unrecognised becomes internal.
func toAppError(err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}

	var (
		wrongShelf   *domain.WrongShelfError
		overPick     *domain.OverPickError
		transfer     *domain.TransferRequiredError
		insufficient *domain.InsufficientStockError
		notPickable  *domain.OrderNotPickableError
	)

	switch {
	case stderrors.As(err, &wrongShelf):
		return errors.ErrOperator(errors.CodeWrongShelf, "scanned shelf does not match the next item").
			WithDetail("expectedShelfId", wrongShelf.Expected).
			WithDetail("scannedShelf", wrongShelf.Scanned).
			Wrap(err)
	case stderrors.As(err, &overPick):
		if overPick.ShelfID != "" {
			return errors.ErrOperator(errors.CodeOverPick, "requested quantity exceeds what the validated shelf holds; pick what is there and scan the next shelf").
				WithDetail("barcode", overPick.Barcode).
				WithDetail("shelfId", overPick.ShelfID).
				WithDetail("requested", strconv.Itoa(overPick.Requested)).
				WithDetail("remaining", strconv.Itoa(overPick.Remaining)).
				Wrap(err)
		}
		return errors.ErrOperator(errors.CodeOverPick, "requested quantity exceeds what the route still needs").
			WithDetail("barcode", overPick.Barcode).
			WithDetail("requested", strconv.Itoa(overPick.Requested)).
			WithDetail("remaining", strconv.Itoa(overPick.Remaining)).
			Wrap(err)
	case stderrors.As(err, &transfer):
		appErr := errors.ErrOperator(errors.CodeTransferRequired, "sellable stock cannot cover the route; transfer stock first").
			WithDetail("routeId", transfer.RouteID)
		ids := make([]string, 0, len(transfer.Shortfalls))
		for _, s := range transfer.Shortfalls {
			ids = append(ids, s.ProductID)
			appErr.WithDetail("product."+s.ProductID, fmt.Sprintf("required=%d sellable=%d nonSellable=%d candidates=%s",
				s.Required, s.AvailableSellable, s.AvailableNonSellable, strings.Join(s.CandidateShelves, ",")))
		}
		return appErr.WithDetail("blockingProducts", strings.Join(ids, ",")).Wrap(err)
	case stderrors.As(err, &insufficient):
		return errors.ErrInsufficientStock(err.Error()).
			WithDetail("productId", insufficient.ProductID).
			WithDetail("shelfId", insufficient.ShelfID).
			WithDetail("available", strconv.Itoa(insufficient.Available)).
			WithDetail("requested", strconv.Itoa(insufficient.Requested)).
			Wrap(err)
	case stderrors.As(err, &notPickable):
		return errors.ErrPrecondition(errors.CodeOrderNotPickable, err.Error()).
			WithDetail("orderId", notPickable.OrderID).
			Wrap(err)
	}

	switch {
	case stderrors.Is(err, domain.ErrStockMismatch):
		return errors.ErrStockMismatch("stock on the validated shelf does not match the ledger").Wrap(err)
	case stderrors.Is(err, domain.ErrUnknownBarcodeForRoute):
		return errors.ErrOperator(errors.CodeUnknownBarcodeForRoute, err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrShelfNotValidated):
		return errors.ErrOperator(errors.CodeShelfNotValidated, err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrRouteNotCancellable):
		return errors.ErrOperator(errors.CodeRouteNotCancellable, err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrInvalidRouteTransition):
		return errors.ErrOperator(errors.CodeInvalidRouteTransition, err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrRouteNotCollecting):
		return errors.ErrOperator(errors.CodeRouteNotCollecting, err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrEmptyOrderSet):
		return errors.ErrPrecondition(errors.CodeEmptyOrderSet, err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrInvalidQuantity):
		return errors.ErrPrecondition(errors.CodeInvalidQuantity, err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrInvalidShelf), stderrors.Is(err, domain.ErrReturnShelfMismatch):
		return errors.ErrPrecondition(errors.CodeInvalidShelf, err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrInvalidProduct):
		return errors.ErrPrecondition(errors.CodeInvalidProduct, err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrInvalidMovement), stderrors.Is(err, domain.ErrNotReversible):
		return errors.ErrValidation(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrAlreadyReversed),
		stderrors.Is(err, domain.ErrInvalidReturnState),
		stderrors.Is(err, domain.ErrConcurrentUpdate):
		return errors.ErrConflict(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrRouteNotFound):
		return errors.ErrNotFound("route").Wrap(err)
	case stderrors.Is(err, domain.ErrMovementNotFound):
		return errors.ErrNotFound("stock movement").Wrap(err)
	case stderrors.Is(err, domain.ErrOrderNotFound):
		return errors.ErrNotFound("order").Wrap(err)
	case stderrors.Is(err, domain.ErrReturnItemNotFound):
		return errors.ErrNotFound("return item").Wrap(err)
	case stderrors.Is(err, domain.ErrShelfNotFound):
		return errors.ErrNotFound("shelf").Wrap(err)
	case stderrors.Is(err, domain.ErrProductNotFound):
		return errors.ErrNotFound("product").Wrap(err)
	case stderrors.Is(err, domain.ErrOrderServiceDown), stderrors.Is(err, resilience.ErrCircuitOpen):
		return errors.ErrServiceUnavailable("order service").Wrap(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.ErrTimeout("request").Wrap(err)
	}
	return errors.ErrInternal("").Wrap(err)
}

// errorCode is the stable code of err for logs and metrics
func errorCode(err error) string {
	if appErr, ok := errors.AsAppError(toAppError(err)); ok {
		return appErr.Code
	}
	return errors.CodeInternalError
}
