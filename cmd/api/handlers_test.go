package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/catalog"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/clients"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/locking"
	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/idempotency"
	"github.com/wms-platform/fulfillment-service/pkg/kafka"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/middleware"
	"github.com/wms-platform/fulfillment-service/pkg/outbox"
)

// orderServer serves orders the way the order service does
type orderServer struct {
	mu     sync.Mutex
	orders map[string]clients.OrderDTO
	down   bool
}

func (s *orderServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/orders/")
	order, ok := s.orders[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(order)
}

func (s *orderServer) add(id, productID, barcode string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[id] = clients.OrderDTO{
		OrderID:     id,
		OrderNumber: "NO-" + id,
		Status:      string(domain.OrderStatusConfirmed),
		Items: []clients.OrderItemDTO{{
			LineID:    id + "-L1",
			ProductID: productID,
			Barcode:   barcode,
			Quantity:  qty,
		}},
	}
}

type apiEnv struct {
	router  *gin.Engine
	orders  *orderServer
	metrics *metrics.Metrics
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat := catalog.New()
	for _, s := range []domain.Shelf{
		{ID: "S1", Barcode: "SH-S1", Label: "A-01", Class: domain.ShelfClassSellable},
		{ID: "S2", Barcode: "SH-S2", Label: "A-02", Class: domain.ShelfClassSellable},
		{ID: "RN", Barcode: "SH-RN", Class: domain.ShelfClassReturnNormal},
	} {
		_, _, err := cat.UpsertShelf(s)
		require.NoError(t, err)
	}
	require.NoError(t, cat.UpsertProduct(domain.Product{ID: "PX", Barcode: "BX", SKU: "SKU-X"}))
	require.NoError(t, cat.UpsertProduct(domain.Product{ID: "PY", Barcode: "BY", SKU: "SKU-Y"}))

	orders := &orderServer{orders: make(map[string]clients.OrderDTO)}
	srv := httptest.NewServer(orders)
	t.Cleanup(srv.Close)

	logger := logging.NewNop()
	m := metrics.New(metrics.DefaultConfig("fulfillment-api-test"))
	store := newMemoryStorage()
	recorder := outbox.NewRecorder(store.outbox, cloudevents.NewEventFactory("/fulfillment-test"), kafka.Topics.FulfillmentEvents)
	orderClient := clients.NewOrderServiceClient(clients.OrderClientConfig{BaseURL: srv.URL}, nil, logger)

	svc := newServices(store, cat, orderClient, recorder, locking.NewKeyedMutex(), m, logger)
	router := newRouter(svc, routerConfig{
		keys:    store.keys,
		ready:   store.health,
		metrics: m,
	}, logger)

	return &apiEnv{router: router, orders: orders, metrics: m}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func requireAPIError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) map[string]any {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, code, body["code"])
	assert.NotEmpty(t, body["message"])
	assert.NotEmpty(t, body["timestamp"])
	assert.NotEmpty(t, body["path"])
	return body
}

func (e *apiEnv) receive(t *testing.T, productID, shelfID string, qty int) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/stock/"+productID+"/receive", gin.H{"shelfId": shelfID, "quantity": qty})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (e *apiEnv) createRoute(t *testing.T, orderIDs ...string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/routes", gin.H{"orderIds": orderIDs, "name": "wave"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func TestRouteLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	env.receive(t, "PX", "S1", 10)
	env.orders.add("A", "PX", "BX", 2)

	routeID := env.createRoute(t, "A")

	w := env.do(t, http.MethodGet, "/api/v1/routes/"+routeID+"/transfer-check", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["transferRequired"])

	w = env.do(t, http.MethodPost, "/api/v1/routes/"+routeID+"/scan/shelf", gin.H{"shelfBarcode": "SH-S1"}, middleware.HeaderActor, "picker-7")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "S1", decode(t, w)["shelfId"])

	w = env.do(t, http.MethodPost, "/api/v1/routes/"+routeID+"/scan/barcode", gin.H{"barcode": "BX", "quantity": 2}, middleware.HeaderActor, "picker-7")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	scan := decode(t, w)
	assert.Equal(t, true, scan["routeReady"])
	assert.Equal(t, string(domain.RouteStatusReady), scan["status"])
	require.Len(t, scan["apportionment"], 1)

	w = env.do(t, http.MethodGet, "/api/v1/movements?referenceKind=ROUTE&referenceId="+routeID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	movements := decode(t, w)["movements"].([]any)
	require.Len(t, movements, 1)
	assert.Equal(t, "picker-7", movements[0].(map[string]any)["actor"])

	w = env.do(t, http.MethodPost, "/api/v1/routes/"+routeID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(domain.RouteStatusCompleted), decode(t, w)["status"])

	w = env.do(t, http.MethodGet, "/api/v1/stock/PX", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stock := decode(t, w)
	assert.EqualValues(t, 8, stock["onHand"])
	assert.EqualValues(t, 0, stock["reserved"])

	w = env.do(t, http.MethodGet, "/api/v1/stock/PX/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["consistent"])

	w = env.do(t, http.MethodGet, "/api/v1/routes?status=COMPLETED", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])
}

func TestScanBarcode_IdempotentRetry(t *testing.T) {
	env := newAPIEnv(t)
	env.receive(t, "PX", "S1", 10)
	env.orders.add("A", "PX", "BX", 3)
	routeID := env.createRoute(t, "A")

	w := env.do(t, http.MethodPost, "/api/v1/routes/"+routeID+"/scan/shelf", gin.H{"shelfBarcode": "SH-S1"})
	require.Equal(t, http.StatusOK, w.Code)

	path := "/api/v1/routes/" + routeID + "/scan/barcode"
	first := env.do(t, http.MethodPost, path, gin.H{"barcode": "BX"}, idempotency.HeaderIdempotencyKey, "scan-0001")
	second := env.do(t, http.MethodPost, path, gin.H{"barcode": "BX"}, idempotency.HeaderIdempotencyKey, "scan-0001")

	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(idempotency.HeaderReplayed))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/routes/"+routeID+"/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["pickedQuantity"])

	// same key, different body
	w = env.do(t, http.MethodPost, path, gin.H{"barcode": "BX", "quantity": 2}, idempotency.HeaderIdempotencyKey, "scan-0001")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wms_idempotent_replays_total")
	assert.Contains(t, w.Body.String(), "wms_scans_total")
}

func TestScanErrors(t *testing.T) {
	env := newAPIEnv(t)
	env.receive(t, "PX", "S1", 10)
	env.orders.add("A", "PX", "BX", 1)
	routeID := env.createRoute(t, "A")
	base := "/api/v1/routes/" + routeID

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"missing shelf barcode", base + "/scan/shelf", gin.H{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed shelf barcode", base + "/scan/shelf", gin.H{"shelfBarcode": "!!"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"barcode before shelf", base + "/scan/barcode", gin.H{"barcode": "BX"}, http.StatusUnprocessableEntity, "SHELF_NOT_VALIDATED"},
		{"wrong shelf", base + "/scan/shelf", gin.H{"shelfBarcode": "SH-S2"}, http.StatusUnprocessableEntity, "WRONG_SHELF"},
		{"unknown route", "/api/v1/routes/RT-404/scan/shelf", gin.H{"shelfBarcode": "SH-S1"}, http.StatusNotFound, "RESOURCE_NOT_FOUND"},
		{"zero quantity", base + "/scan/barcode", gin.H{"barcode": "BX", "quantity": 0}, http.StatusBadRequest, "INVALID_QUANTITY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, tt.body)
			requireAPIError(t, w, tt.status, tt.code)
		})
	}

	w := env.do(t, http.MethodPost, base+"/scan/shelf", gin.H{})
	body := requireAPIError(t, w, http.StatusBadRequest, "VALIDATION_ERROR")
	details := body["details"].(map[string]any)
	assert.Equal(t, "is required", details["shelfBarcode"])
}

func TestCreateRouteErrors(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/routes", gin.H{"orderIds": []string{}})
	requireAPIError(t, w, http.StatusBadRequest, "EMPTY_ORDER_SET")

	w = env.do(t, http.MethodPost, "/api/v1/routes", gin.H{"orderIds": []string{"NOPE"}})
	requireAPIError(t, w, http.StatusNotFound, "RESOURCE_NOT_FOUND")

	env.orders.mu.Lock()
	env.orders.down = true
	env.orders.mu.Unlock()
	w = env.do(t, http.MethodPost, "/api/v1/routes", gin.H{"orderIds": []string{"A"}})
	requireAPIError(t, w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE")

	w = env.do(t, http.MethodPost, "/api/v1/routes", nil)
	requireAPIError(t, w, http.StatusBadRequest, "BAD_REQUEST")
}

func TestCancelRoute(t *testing.T) {
	env := newAPIEnv(t)
	env.receive(t, "PX", "S1", 5)
	env.orders.add("A", "PX", "BX", 2)
	routeID := env.createRoute(t, "A")

	w := env.do(t, http.MethodPost, "/api/v1/routes/"+routeID+"/cancel", gin.H{"reason": "customer called"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(domain.RouteStatusCancelled), decode(t, w)["status"])

	// no body
	w = env.do(t, http.MethodPost, "/api/v1/routes/"+routeID+"/cancel", nil)
	requireAPIError(t, w, http.StatusUnprocessableEntity, "INVALID_ROUTE_TRANSITION")

	w = env.do(t, http.MethodGet, "/api/v1/stock/PX", nil)
	assert.EqualValues(t, 0, decode(t, w)["reserved"])
}

func TestLedgerEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	env.receive(t, "PX", "S1", 10)

	w := env.do(t, http.MethodPost, "/api/v1/transfers", gin.H{"productId": "PX", "fromShelfId": "S1", "toShelfId": "S2", "quantity": 4})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	transfer := decode(t, w)
	assert.NotEmpty(t, transfer["transferId"])
	assert.Equal(t, "OUT", transfer["out"].(map[string]any)["direction"])
	assert.Equal(t, "IN", transfer["in"].(map[string]any)["direction"])

	w = env.do(t, http.MethodGet, "/api/v1/stock/PX/shelves/S2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 4, decode(t, w)["quantity"])

	w = env.do(t, http.MethodPost, "/api/v1/transfers", gin.H{"productId": "PX", "fromShelfId": "S1", "toShelfId": "S2", "quantity": 100})
	requireAPIError(t, w, http.StatusConflict, "INSUFFICIENT_STOCK")

	w = env.do(t, http.MethodPost, "/api/v1/movements", gin.H{
		"productId":     "PX",
		"quantity":      2,
		"type":          "RECEIVING",
		"direction":     "IN",
		"targetShelfId": "S2",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	receiptID := decode(t, w)["id"].(string)

	w = env.do(t, http.MethodPost, "/api/v1/movements/"+receiptID+"/reverse", gin.H{"reason": "double booked"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, string(domain.MovementCancel), decode(t, w)["type"])

	w = env.do(t, http.MethodPost, "/api/v1/movements/"+receiptID+"/reverse", gin.H{"reason": "again"})
	requireAPIError(t, w, http.StatusConflict, "CONFLICT")

	w = env.do(t, http.MethodGet, "/api/v1/movements?productId=PX&shelfId=S2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decode(t, w)["count"])

	w = env.do(t, http.MethodGet, "/api/v1/movements?productId=PX&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = env.do(t, http.MethodGet, "/api/v1/movements?from=yesterday", nil)
	requireAPIError(t, w, http.StatusBadRequest, "BAD_REQUEST")

	w = env.do(t, http.MethodGet, "/api/v1/movements?limit=-3", nil)
	requireAPIError(t, w, http.StatusBadRequest, "BAD_REQUEST")

	w = env.do(t, http.MethodPost, "/api/v1/movements", gin.H{"productId": "PX", "quantity": 1, "type": "RECEIVING", "direction": "SIDEWAYS"})
	requireAPIError(t, w, http.StatusBadRequest, "VALIDATION_ERROR")

	w = env.do(t, http.MethodPost, "/api/v1/stock/PX/adjust", gin.H{"shelfId": "S1", "delta": -1, "reason": "cycle count"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/stock/PX", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 9, decode(t, w)["onHand"])
}

func TestReturnEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/returns", gin.H{"barcode": "BY", "orderId": "A", "quantity": 1, "condition": "NORMAL"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode(t, w)
	assert.Equal(t, string(domain.ReturnStatusUnresolved), item["status"])
	id := item["id"].(string)

	w = env.do(t, http.MethodGet, "/api/v1/returns", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = env.do(t, http.MethodPost, "/api/v1/returns/"+id+"/resolve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "PY", decode(t, w)["productId"])

	w = env.do(t, http.MethodPost, "/api/v1/returns/"+id+"/restock", gin.H{"shelfId": "RN"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(domain.ReturnStatusRestocked), decode(t, w)["status"])

	w = env.do(t, http.MethodGet, "/api/v1/stock/PY/shelves/RN", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["quantity"])

	w = env.do(t, http.MethodGet, "/api/v1/returns/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "RN", decode(t, w)["shelfId"])

	w = env.do(t, http.MethodGet, "/api/v1/returns/RI-404", nil)
	requireAPIError(t, w, http.StatusNotFound, "RESOURCE_NOT_FOUND")

	w = env.do(t, http.MethodPost, "/api/v1/returns", gin.H{"barcode": "BY", "quantity": 1})
	requireAPIError(t, w, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestOperationalEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", decode(t, w)["status"])

	w = env.do(t, http.MethodGet, "/api/v1/nowhere", nil)
	requireAPIError(t, w, http.StatusNotFound, "ROUTE_NOT_FOUND")

	w = env.do(t, http.MethodDelete, "/api/v1/routes", nil)
	requireAPIError(t, w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")

	w = env.do(t, http.MethodGet, "/api/v1/routes/RT-404", nil, middleware.HeaderRequestID, "req-42")
	body := requireAPIError(t, w, http.StatusNotFound, "RESOURCE_NOT_FOUND")
	assert.Equal(t, "req-42", body["requestId"])
	assert.Equal(t, "/api/v1/routes/RT-404", body["path"])
}
