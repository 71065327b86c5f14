package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"storefront/internal/broker"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	gin.DefaultWriter = io.Discard
	_ = util.InitLogger("test")
	os.Exit(m.Run())
}

type testServer struct {
	router *gin.Engine
	repo   *store.MemoryStore
}

func newTestServer(t *testing.T, loginsPerMinute int) *testServer {
	t.Helper()
	repo := store.NewMemoryStore()

	trust := service.NewTrustService(repo)
	events := broker.NewEventHandler()
	events.OnOrderPlaced(trust.HandleOrderPlaced)
	events.OnItemEvent(trust.HandleItemEvent)
	publisher := broker.NewEventPublisher(broker.NewLoopback(events.HandleMessage))

	h := NewHandler(
		service.NewOrderService(repo, repo, service.NewLocalLocker(), publisher),
		service.NewCatalogService(repo, repo),
		service.NewAuthService(repo, "api-test-secret", time.Hour),
		loginsPerMinute,
	)
	h.CheckReadiness("store", repo)

	router := gin.New()
	h.SetupRoutes(router)
	return &testServer{router: router, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) login(t *testing.T, path, email string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, path, "", gin.H{"email": email})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

func (s *testServer) addProduct(t *testing.T, sellerToken, name string, price float64) int64 {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/products/add-product", sellerToken, gin.H{
		"name": name, "description": name + " description", "price": price, "category": "home",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return int64(decode(t, w)["product_id"].(float64))
}

func (s *testServer) addOrder(t *testing.T, buyerToken string, productID int64, qty int) int64 {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/orders/add-order", buyerToken, gin.H{
		"items": []gin.H{{"product_id": productID, "quantity": qty}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return int64(decode(t, w)["order_id"].(float64))
}

func item(order, product int64) gin.H {
	return gin.H{"order_id": order, "product_id": product}
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", decode(t, w)["status"])
}

func TestItemLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, 0)
	seller := s.login(t, "/api/seller/login", "acme@example.com")
	buyer := s.login(t, "/api/auth/login", "alice@example.com")
	lamp := s.addProduct(t, seller, "Lamp", 19.99)

	orderID := s.addOrder(t, buyer, lamp, 2)

	w := s.do(t, http.MethodGet, "/api/orders/my-orders", buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	orders := decode(t, w)["orders"].([]any)
	require.Len(t, orders, 1)
	first := orders[0].(map[string]any)
	assert.Equal(t, 39.98, first["total_amount"])
	items := first["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "pending", items[0].(map[string]any)["status"])

	w = s.do(t, http.MethodPost, "/api/orders/seller/orders/deliver-product", seller, gin.H{
		"order_id": orderID, "product_id": lamp, "delivered_on_time": false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	delivered := decode(t, w)["item"].(map[string]any)
	assert.Equal(t, "delivered", delivered["status"])
	assert.Equal(t, false, delivered["delivered_on_time"])

	w = s.do(t, http.MethodPost, "/api/orders/cancel-order", buyer, item(orderID, lamp))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decode(t, w)["error"], "invalid status transition")

	w = s.do(t, http.MethodPost, "/api/orders/return-product", buyer, gin.H{
		"order_id": orderID, "product_id": lamp, "reason": "  ",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/orders/return-product", buyer, gin.H{
		"order_id": orderID, "product_id": lamp, "reason": "not as described", "reason_category": "not_as_described",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "returned", decode(t, w)["item"].(map[string]any)["status"])

	w = s.do(t, http.MethodPost, "/api/orders/seller/orders/refund-process", seller, item(orderID, lamp))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "refunded", decode(t, w)["item"].(map[string]any)["status"])

	w = s.do(t, http.MethodPost, "/api/orders/seller/orders/refund-reject", seller, item(orderID, lamp))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d", orderID), buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 39.98, decode(t, w)["total_amount"])
}

func TestBuyerCannotDeliver(t *testing.T) {
	s := newTestServer(t, 0)
	seller := s.login(t, "/api/seller/login", "acme@example.com")
	buyer := s.login(t, "/api/auth/login", "alice@example.com")
	lamp := s.addProduct(t, seller, "Lamp", 10)
	orderID := s.addOrder(t, buyer, lamp, 1)

	w := s.do(t, http.MethodPost, "/api/orders/seller/orders/deliver-product", buyer, item(orderID, lamp))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/orders/my-orders", seller, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/orders/my-orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authorization token is missing", decode(t, w)["error"])
}

func TestOtherSellerSeesNotFound(t *testing.T) {
	s := newTestServer(t, 0)
	acme := s.login(t, "/api/seller/login", "acme@example.com")
	globex := s.login(t, "/api/seller/login", "globex@example.com")
	buyer := s.login(t, "/api/auth/login", "alice@example.com")
	lamp := s.addProduct(t, acme, "Lamp", 10)
	orderID := s.addOrder(t, buyer, lamp, 1)

	w := s.do(t, http.MethodPost, "/api/orders/seller/orders/cancel-product", globex, item(orderID, lamp))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/orders/seller/orders", globex, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["orders"])

	w = s.do(t, http.MethodGet, "/api/orders/seller/orders", acme, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["orders"], 1)

	w = s.do(t, http.MethodPut, fmt.Sprintf("/api/products/%d/update", lamp), globex, gin.H{"name": "Mine"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddOrderIdempotencyHeader(t *testing.T) {
	s := newTestServer(t, 0)
	seller := s.login(t, "/api/seller/login", "acme@example.com")
	buyer := s.login(t, "/api/auth/login", "alice@example.com")
	lamp := s.addProduct(t, seller, "Lamp", 10)

	send := func() *httptest.ResponseRecorder {
		raw, _ := json.Marshal(gin.H{"items": []gin.H{{"product_id": lamp, "quantity": 1}}})
		req := httptest.NewRequest(http.MethodPost, "/api/orders/add-order", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+buyer)
		req.Header.Set("Idempotency-Key", "checkout-42")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	first := send()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := send()
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	assert.Equal(t, decode(t, first)["order_id"], decode(t, second)["order_id"])

	w := s.do(t, http.MethodGet, "/api/orders/my-orders", buyer, nil)
	assert.Len(t, decode(t, w)["orders"], 1)
}

func TestAddOrderValidation(t *testing.T) {
	s := newTestServer(t, 0)
	buyer := s.login(t, "/api/auth/login", "alice@example.com")

	w := s.do(t, http.MethodPost, "/api/orders/add-order", buyer, gin.H{"items": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/orders/add-order", buyer, gin.H{
		"items": []gin.H{{"product_id": 999, "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductEndpoints(t *testing.T) {
	s := newTestServer(t, 0)
	seller := s.login(t, "/api/seller/login", "acme@example.com")
	buyer := s.login(t, "/api/auth/login", "alice@example.com")
	lamp := s.addProduct(t, seller, "Desk Lamp", 19.99)
	mug := s.addProduct(t, seller, "Mug", 5)

	w := s.do(t, http.MethodGet, "/api/products/all", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["products"], 2)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/products/%d/add-review", lamp), buyer, gin.H{"rating": 4, "title": "nice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/products/%d/add-review", lamp), buyer, gin.H{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", lamp), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode(t, w)
	assert.Equal(t, "desk-lamp", detail["slug"])
	assert.Len(t, detail["reviews"], 1)
	assert.Equal(t, "acme", detail["seller"].(map[string]any)["name"])

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d/reviews", lamp), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["reviews"], 1)

	w = s.do(t, http.MethodPut, fmt.Sprintf("/api/products/%d/update", mug), seller, gin.H{"price": 6.5})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/products/%d/delete", mug), seller, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", mug), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/products/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/products/add-product", seller, gin.H{"name": "No price"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessions(t *testing.T) {
	s := newTestServer(t, 0)
	buyer := s.login(t, "/api/auth/login", "alice@example.com")
	seller := s.login(t, "/api/seller/login", "acme@example.com")

	w := s.do(t, http.MethodGet, "/api/auth/session", buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "alice", body["user_data"].(map[string]any)["username"])
	assert.Len(t, body["sessions"], 1)

	w = s.do(t, http.MethodGet, "/api/seller/session", seller, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sess := decode(t, w)
	assert.Equal(t, "acme", sess["name"])
	assert.Equal(t, 1.0, sess["scs_score"])
	assert.Contains(t, sess, "seller_id")

	w = s.do(t, http.MethodGet, "/api/seller/session", buyer, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": "nobody"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com"})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := s.do(t, http.MethodPost, "/api/seller/login", "", gin.H{"email": "acme@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLoginLimiterRefills(t *testing.T) {
	l := newLoginLimiter(60)
	now := time.Now()
	for i := 0; i < 60; i++ {
		require.True(t, l.allow("10.0.0.1", now))
	}
	assert.False(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.2", now))
	assert.True(t, l.allow("10.0.0.1", now.Add(time.Second)))

	assert.True(t, newLoginLimiter(0).allow("any", now))
}

func TestLoginLimiterSweepsIdleVisitorsPeriodically(t *testing.T) {
	l := newLoginLimiter(5)
	start := time.Now()

	require.True(t, l.allow("10.0.0.1", start))
	require.True(t, l.allow("10.0.0.2", start.Add(visitorIdle/2)))

	// within the sweep interval the map is left alone
	l.allow("10.0.0.2", start.Add(visitorIdle/2+sweepEvery/2))
	assert.Len(t, l.visitors, 2)

	later := start.Add(visitorIdle + sweepEvery)
	l.allow("10.0.0.2", later)
	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "10.0.0.2")
	assert.Equal(t, later, l.lastSweep)
}
