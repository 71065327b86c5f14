package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"storefront/internal/api"
	"storefront/internal/cart"
	"storefront/internal/lifecycle"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	gin.DefaultWriter = nopWriter{}
	_ = util.InitLogger("test")
	os.Exit(m.Run())
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// hitCounter counts requests per path so tests can assert nothing was sent
type hitCounter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (h *hitCounter) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

func newServer(t *testing.T) (*httptest.Server, *hitCounter) {
	t.Helper()
	repo := store.NewMemoryStore()
	h := api.NewHandler(
		service.NewOrderService(repo, repo, service.NewLocalLocker(), nopPublisher{}),
		service.NewCatalogService(repo, repo),
		service.NewAuthService(repo, "client-test-secret", time.Hour),
		0,
	)
	router := gin.New()
	h.SetupRoutes(router)

	counter := &hitCounter{hits: make(map[string]int)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter.mu.Lock()
		counter.hits[r.URL.Path]++
		counter.mu.Unlock()
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, counter
}

type nopPublisher struct{}

func (nopPublisher) PublishOrderPlaced(context.Context, *models.OrderPlacedEvent) error { return nil }
func (nopPublisher) PublishItemEvent(context.Context, *models.ItemEvent) error          { return nil }

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func str(s string) *string { return &s }

// shop signs in a seller with two products and a buyer
type shop struct {
	buyer  *Client
	seller *Client
	lamp   int64
	mug    int64
}

func newShop(t *testing.T, baseURL string) shop {
	t.Helper()
	ctx := context.Background()

	seller := New(baseURL, nil)
	_, err := seller.LoginSeller(ctx, "acme@example.com", "acme")
	require.NoError(t, err)
	lamp, _, err := seller.AddProduct(ctx, ProductInput{Name: str("Lamp"), Description: str("desk lamp"), Price: price("100")})
	require.NoError(t, err)
	mug, products, err := seller.AddProduct(ctx, ProductInput{Name: str("Mug"), Description: str("mug"), Price: price("50")})
	require.NoError(t, err)
	require.Len(t, products, 2)

	buyer := New(baseURL, nil)
	_, err = buyer.LoginBuyer(ctx, "alice@example.com", "")
	require.NoError(t, err)
	return shop{buyer: buyer, seller: seller, lamp: lamp, mug: mug}
}

func (s shop) checkout(t *testing.T, lines ...cart.Item) int64 {
	t.Helper()
	crt := cart.New()
	for _, l := range lines {
		require.NoError(t, crt.Add(l.Product, l.Quantity))
	}
	id, err := s.buyer.Checkout(context.Background(), crt)
	require.NoError(t, err)
	assert.Equal(t, 0, crt.Len())
	return id
}

func line(id int64, p string, qty int) cart.Item {
	return cart.Item{Product: cart.Product{ID: id, Price: decimal.RequireFromString(p)}, Quantity: qty}
}

func findItem(orders []models.Order, orderID, productID int64) []models.OrderItem {
	var out []models.OrderItem
	for _, o := range orders {
		if o.ID != orderID {
			continue
		}
		for _, it := range o.Items {
			if it.ProductID == productID {
				out = append(out, it)
			}
		}
	}
	return out
}

func TestGuestCheckoutRedirectsToLogin(t *testing.T) {
	srv, hits := newServer(t)
	ctx := context.Background()
	c := New(srv.URL, srv.Client())

	crt := cart.New()
	require.NoError(t, crt.Add(cart.Product{ID: 1, Price: decimal.NewFromInt(5)}, 1))

	_, err := c.Checkout(ctx, crt)
	var loginErr *ErrLoginRequired
	require.ErrorAs(t, err, &loginErr)
	assert.Equal(t, CheckoutPath, loginErr.ReturnPath)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 0, hits.count("/api/orders/add-order"))
	assert.Equal(t, 1, crt.Len())

	next, err := c.LoginBuyer(ctx, "guest-no-more@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, CheckoutPath, next)
	assert.False(t, c.Buyer().IsGuest())
}

func TestCheckoutAndDeliverRefetch(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	s := newShop(t, srv.URL)

	orderID := s.checkout(t, line(s.lamp, "100", 2), line(s.mug, "50", 1))

	orders, err := s.buyer.MyOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "250", orders[0].TotalAmount.String())

	sellerView, err := s.seller.Deliver(ctx, orderID, s.lamp, true)
	require.NoError(t, err)
	items := findItem(sellerView, orderID, s.lamp)
	require.Len(t, items, 1)
	assert.Equal(t, lifecycle.StatusDelivered, items[0].Status)

	orders, err = s.buyer.CancelItem(ctx, orderID, s.mug)
	require.NoError(t, err)
	lamp := findItem(orders, orderID, s.lamp)
	require.Len(t, lamp, 1)
	assert.Equal(t, lifecycle.StatusDelivered, lamp[0].Status)
	assert.Equal(t, lifecycle.StatusCancelled, findItem(orders, orderID, s.mug)[0].Status)

	// the total is fixed at creation
	assert.Equal(t, "250", orders[0].TotalAmount.String())
}

func TestServerRejectionIsInvalidTransition(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	s := newShop(t, srv.URL)
	orderID := s.checkout(t, line(s.lamp, "100", 1))

	_, err := s.buyer.ReturnItem(ctx, orderID, s.lamp, "broken on arrival")
	require.ErrorIs(t, err, ErrInvalidTransition)
	var aerr *ActionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, http.StatusConflict, aerr.Status)
	assert.Contains(t, aerr.Message, "invalid status transition")

	orders, err := s.buyer.MyOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPending, orders[0].Items[0].Status)
}

func TestEmptyReasonSendsNothing(t *testing.T) {
	srv, hits := newServer(t)
	s := newShop(t, srv.URL)
	orderID := s.checkout(t, line(s.lamp, "100", 1))

	_, err := s.buyer.ReturnItem(context.Background(), orderID, s.lamp, "   ")
	assert.ErrorIs(t, err, ErrEmptyReason)
	assert.Equal(t, 0, hits.count("/api/orders/return-product"))
}

func TestReturnAndRefund(t *testing.T) {
	srv, hits := newServer(t)
	ctx := context.Background()
	s := newShop(t, srv.URL)
	orderID := s.checkout(t, line(s.lamp, "100", 1))

	_, err := s.seller.Deliver(ctx, orderID, s.lamp, false)
	require.NoError(t, err)

	orders, err := s.buyer.ReturnItem(ctx, orderID, s.lamp, "It is a FAKE")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusReturned, findItem(orders, orderID, s.lamp)[0].Status)

	sellerView, err := s.seller.AcceptRefund(ctx, orderID, s.lamp)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusRefunded, findItem(sellerView, orderID, s.lamp)[0].Status)

	// refunded is terminal; the seller client knows it without asking
	before := hits.count("/api/orders/seller/orders/refund-reject")
	_, err = s.seller.RejectRefund(ctx, orderID, s.lamp)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, before, hits.count("/api/orders/seller/orders/refund-reject"))
}

func TestActionInFlight(t *testing.T) {
	srv, hits := newServer(t)
	s := newShop(t, srv.URL)
	orderID := s.checkout(t, line(s.lamp, "100", 1))

	release, err := s.buyer.Guard().Acquire(orderID, s.lamp)
	require.NoError(t, err)
	assert.True(t, s.buyer.Guard().Busy(orderID, s.lamp))

	_, err = s.buyer.CancelItem(context.Background(), orderID, s.lamp)
	assert.ErrorIs(t, err, ErrActionInFlight)
	assert.Equal(t, 0, hits.count("/api/orders/cancel-order"))

	release()
	release()
	assert.False(t, s.buyer.Guard().Busy(orderID, s.lamp))

	_, err = s.buyer.CancelItem(context.Background(), orderID, s.lamp)
	assert.NoError(t, err)
}

func TestUnauthenticated(t *testing.T) {
	srv, hits := newServer(t)
	ctx := context.Background()
	c := New(srv.URL, nil)

	_, err := c.MyOrders(ctx)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 0, hits.count("/api/orders/my-orders"))

	_, err = c.LoginBuyer(ctx, "alice@example.com", "")
	require.NoError(t, err)

	// a buyer login never authorizes seller calls
	_, err = c.SellerOrders(ctx)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// a token the server does not accept logs the session out
	forged, err := session.Sign(session.NewClaims(session.Buyer, 1, "alice", time.Hour, time.Now()), []byte("wrong"))
	require.NoError(t, err)
	sess := session.New(session.Buyer)
	require.NoError(t, sess.Begin())
	require.NoError(t, sess.Complete(forged, session.Identity{}))
	c.WithSessions(sess, nil)

	_, err = c.MyOrders(ctx)
	var aerr *ActionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, http.StatusUnauthorized, aerr.Status)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, session.Anonymous, sess.State())
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, nil).Products(context.Background())
	var nerr *NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "GET /api/products/all", nerr.Op)
}

func TestSessionsAndSellerProducts(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	s := newShop(t, srv.URL)

	rival := New(srv.URL, nil)
	_, err := rival.LoginSeller(ctx, "globex@example.com", "globex")
	require.NoError(t, err)
	_, mine, err := rival.AddProduct(ctx, ProductInput{Name: str("Tee"), Description: str("tee"), Price: price("12")})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	products, err := s.seller.SellerProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	products, err = s.seller.DeleteProduct(ctx, s.mug)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, s.lamp, products[0].ID)

	products, err = s.seller.UpdateProduct(ctx, s.lamp, ProductInput{Price: price("80")})
	require.NoError(t, err)
	assert.Equal(t, "80", products[0].Price.String())

	_, err = rival.UpdateProduct(ctx, s.lamp, ProductInput{Name: str("mine")})
	var aerr *ActionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, http.StatusNotFound, aerr.Status)

	info, err := s.buyer.BuyerSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", info.User.Username)
	require.NotNil(t, s.buyer.Buyer().Identity().Score)

	seller, err := s.seller.SellerSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acme", seller.Name)
	assert.Equal(t, 1.0, *s.seller.Seller().Identity().Score)
}

func TestReviews(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	s := newShop(t, srv.URL)

	reviews, err := s.buyer.AddReview(ctx, s.lamp, ReviewInput{Rating: 5, Title: "bright"})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.False(t, reviews[0].IsVerifiedPurchase)

	detail, err := s.buyer.Product(ctx, s.lamp)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", detail.Name)
	assert.Len(t, detail.Reviews, 1)

	_, err = s.buyer.AddReview(ctx, s.lamp, ReviewInput{Rating: 0})
	var aerr *ActionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, http.StatusBadRequest, aerr.Status)
}

func TestSortOrders(t *testing.T) {
	now := time.Now()
	orders := []models.Order{
		{ID: 1, CreatedAt: now.Add(-time.Hour)},
		{ID: 2, CreatedAt: now},
		{ID: 3, CreatedAt: now},
	}
	SortOrders(orders)
	assert.Equal(t, []int64{3, 2, 1}, []int64{orders[0].ID, orders[1].ID, orders[2].ID})
}
