package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/middleware"
)

// queryLimit parses the optional limit parameter
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, false
	}
	return limit, true
}

// queryTime parses an optional RFC3339 query parameter
func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// --- Routes ---

func createRouteHandler(service *application.RouteService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			OrderIDs    []string `json:"orderIds" binding:"max=200"`
			Name        string   `json:"name" binding:"max=120"`
			Description string   `json:"description" binding:"max=500"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondBindError(err)
			return
		}

		route, err := service.CreateRoute(c.Request.Context(), application.CreateRouteCommand{
			OrderIDs:    req.OrderIDs,
			Name:        req.Name,
			Description: req.Description,
			Actor:       middleware.GetActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, route)
	}
}

func listRoutesHandler(service *application.RouteService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		limit, ok := queryLimit(c)
		if !ok {
			responder.RespondBadRequest("limit must be a non-negative integer")
			return
		}

		routes, err := service.ListRoutes(c.Request.Context(), application.ListRoutesQuery{
			Status: domain.RouteStatus(c.Query("status")),
			Limit:  limit,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"routes": routes, "count": len(routes)})
	}
}

func getRouteHandler(service *application.RouteService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		route, err := service.GetRoute(c.Request.Context(), c.Param("routeId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, route)
	}
}

func cancelRouteHandler(service *application.RouteService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Reason string `json:"reason" binding:"max=500"`
		}
		// the body is optional
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				responder.RespondBindError(err)
				return
			}
		}

		route, err := service.CancelRoute(c.Request.Context(), application.CancelRouteCommand{
			RouteID: c.Param("routeId"),
			Reason:  req.Reason,
			Actor:   middleware.GetActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, route)
	}
}

func completeRouteHandler(service *application.RouteService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		route, err := service.CompleteRoute(c.Request.Context(), application.CompleteRouteCommand{
			RouteID: c.Param("routeId"),
			Actor:   middleware.GetActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, route)
	}
}

func pickingProgressHandler(service *application.RouteService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		progress, err := service.GetPickingProgress(c.Request.Context(), c.Param("routeId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, progress)
	}
}

func transferCheckHandler(advisory *application.TransferAdvisory, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		availability, err := advisory.CheckAvailability(c.Request.Context(), c.Param("routeId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, availability)
	}
}

// --- Scanning ---

func scanShelfHandler(service *application.ScanService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ShelfBarcode string `json:"shelfBarcode" binding:"required,barcode"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondBindError(err)
			return
		}

		result, err := service.ScanShelf(c.Request.Context(), application.ScanShelfCommand{
			RouteID:      c.Param("routeId"),
			ShelfBarcode: req.ShelfBarcode,
			Actor:        middleware.GetActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func scanBarcodeHandler(service *application.ScanService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Barcode  string `json:"barcode" binding:"required,barcode"`
			Quantity *int   `json:"quantity"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondBindError(err)
			return
		}
		qty := 1
		if req.Quantity != nil {
			qty = *req.Quantity
		}

		result, err := service.ScanBarcode(c.Request.Context(), application.ScanBarcodeCommand{
			RouteID:  c.Param("routeId"),
			Barcode:  req.Barcode,
			Quantity: qty,
			Actor:    middleware.GetActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// --- Stock ---

func productStockHandler(service *application.StockQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		stock, err := service.GetProductStock(c.Request.Context(), c.Param("productId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, stock)
	}
}

func locationStockHandler(service *application.StockQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		stock, err := service.GetLocationStock(c.Request.Context(), c.Param("productId"), c.Param("shelfId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, stock)
	}
}

func reconcileHandler(service *application.StockQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		report, err := service.Reconcile(c.Request.Context(), c.Param("productId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, report)
	}
}

func receiveStockHandler(ledger *application.StockLedger, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ShelfID     string `json:"shelfId" binding:"required,identifier"`
			Quantity    int    `json:"quantity" binding:"required"`
			ReferenceID string `json:"referenceId" binding:"omitempty,identifier"`
			Note        string `json:"note" binding:"max=500"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondBindError(err)
			return
		}

		movement, err := ledger.Receive(c.Request.Context(), application.ReceiveStockCommand{
			ProductID:   c.Param("productId"),
			ShelfID:     req.ShelfID,
			Quantity:    req.Quantity,
			ReferenceID: req.ReferenceID,
			Actor:       middleware.GetActor(c),
			Note:        req.Note,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, movement)
	}
}

func adjustStockHandler(ledger *application.StockLedger, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ShelfID string `json:"shelfId" binding:"required,identifier"`
			Delta   int    `json:"delta" binding:"required"`
			Reason  string `json:"reason" binding:"required,max=500"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondBindError(err)
			return
		}

		movement, err := ledger.Adjust(c.Request.Context(), application.AdjustStockCommand{
			ProductID: c.Param("productId"),
			ShelfID:   req.ShelfID,
			Delta:     req.Delta,
			Reason:    req.Reason,
			Actor:     middleware.GetActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, movement)
	}
}

// --- Ledger ---

func recordMovementHandler(ledger *application.StockLedger, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ProductID     string `json:"productId" binding:"required,identifier"`
			Quantity      int    `json:"quantity"`
			Type          string `json:"type" binding:"required"`
			Direction     string `json:"direction" binding:"required,oneof=IN OUT"`
			SourceShelfID string `json:"sourceShelfId" binding:"omitempty,identifier"`
			TargetShelfID string `json:"targetShelfId" binding:"omitempty,identifier"`
			ReferenceKind string `json:"referenceKind"`
			ReferenceID   string `json:"referenceId" binding:"omitempty,identifier"`
			Note          string `json:"note" binding:"max=500"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondBindError(err)
			return
		}

		movement, err := ledger.Record(c.Request.Context(), application.RecordMovementCommand{
			ProductID:     req.ProductID,
			Quantity:      req.Quantity,
			Type:          domain.MovementType(req.Type),
			Direction:     domain.Direction(req.Direction),
			SourceShelfID: req.SourceShelfID,
			TargetShelfID: req.TargetShelfID,
			ReferenceKind: domain.ReferenceKind(req.ReferenceKind),
			ReferenceID:   req.ReferenceID,
			Actor:         middleware.GetActor(c),
			Note:          req.Note,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, movement)
	}
}

func listMovementsHandler(service *application.StockQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		limit, ok := queryLimit(c)
		if !ok {
			responder.RespondBadRequest("limit must be a non-negative integer")
			return
		}
		from, ok := queryTime(c, "from")
		if !ok {
			responder.RespondBadRequest("from must be an RFC3339 timestamp")
			return
		}
		to, ok := queryTime(c, "to")
		if !ok {
			responder.RespondBadRequest("to must be an RFC3339 timestamp")
			return
		}

		movements, err := service.ListMovements(c.Request.Context(), application.ListMovementsQuery{
			ProductID:     c.Query("productId"),
			ShelfID:       c.Query("shelfId"),
			Type:          domain.MovementType(c.Query("type")),
			ReferenceKind: domain.ReferenceKind(c.Query("referenceKind")),
			ReferenceID:   c.Query("referenceId"),
			From:          from,
			To:            to,
			Limit:         limit,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"movements": movements, "count": len(movements)})
	}
}

func reverseMovementHandler(ledger *application.StockLedger, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Reason string `json:"reason" binding:"required,max=500"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondBindError(err)
			return
		}

		movement, err := ledger.Reverse(c.Request.Context(), application.ReverseMovementCommand{
			MovementID: c.Param("movementId"),
			Reason:     req.Reason,
			Actor:      middleware.GetActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, movement)
	}
}

func transferStockHandler(ledger *application.StockLedger, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ProductID   string `json:"productId" binding:"required,identifier"`
			FromShelfID string `json:"fromShelfId" binding:"required,identifier"`
			ToShelfID   string `json:"toShelfId" binding:"required,identifier"`
			Quantity    int    `json:"quantity" binding:"required"`
			Note        string `json:"note" binding:"max=500"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondBindError(err)
			return
		}

		transfer, err := ledger.Transfer(c.Request.Context(), application.TransferStockCommand{
			ProductID:   req.ProductID,
			FromShelfID: req.FromShelfID,
			ToShelfID:   req.ToShelfID,
			Quantity:    req.Quantity,
			Actor:       middleware.GetActor(c),
			Note:        req.Note,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, transfer)
	}
}

// --- Returns ---

func registerReturnHandler(service *application.ReturnService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Barcode   string `json:"barcode" binding:"required,barcode"`
			OrderID   string `json:"orderId" binding:"omitempty,identifier"`
			Quantity  int    `json:"quantity" binding:"required"`
			Condition string `json:"condition" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondBindError(err)
			return
		}

		item, err := service.Register(c.Request.Context(), application.RegisterReturnCommand{
			Barcode:   req.Barcode,
			OrderID:   req.OrderID,
			Quantity:  req.Quantity,
			Condition: domain.ReturnCondition(req.Condition),
			Actor:     middleware.GetActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, item)
	}
}

func listReturnsHandler(service *application.ReturnService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		limit, ok := queryLimit(c)
		if !ok {
			responder.RespondBadRequest("limit must be a non-negative integer")
			return
		}

		items, err := service.ListReturnItems(c.Request.Context(), domain.ReturnStatus(c.Query("status")), limit)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"returns": items, "count": len(items)})
	}
}

func getReturnHandler(service *application.ReturnService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		item, err := service.GetReturnItem(c.Request.Context(), c.Param("returnId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, item)
	}
}

func resolveReturnHandler(service *application.ReturnService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		item, err := service.Resolve(c.Request.Context(), c.Param("returnId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, item)
	}
}

func restockReturnHandler(service *application.ReturnService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ShelfID string `json:"shelfId" binding:"required,identifier"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondBindError(err)
			return
		}

		item, err := service.Restock(c.Request.Context(), application.RestockReturnCommand{
			ReturnItemID: c.Param("returnId"),
			ShelfID:      req.ShelfID,
			Actor:        middleware.GetActor(c),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, item)
	}
}
