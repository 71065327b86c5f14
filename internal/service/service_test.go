package service

import (
	"context"
	"strconv"
	"testing"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) PublishItemEvent(ctx context.Context, event *models.ItemEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// quietPublisher accepts every event
func quietPublisher() *mockPublisher {
	p := &mockPublisher{}
	p.On("PublishOrderPlaced", mock.Anything, mock.Anything).Return(nil)
	p.On("PublishItemEvent", mock.Anything, mock.Anything).Return(nil)
	return p
}

type env struct {
	repo     *store.MemoryStore
	locker   *LocalLocker
	orders   *OrderService
	catalog  *CatalogService
	auth     *AuthService
	buyer    *models.User
	other    *models.User
	seller   *models.Seller
	rival    *models.Seller
	lamp     *models.Product
	mug      *models.Product
	rivalTee *models.Product
}

func newEnv(t *testing.T, pub EventPublisher) *env {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemoryStore()
	e := &env{
		repo:    repo,
		locker:  NewLocalLocker(),
		catalog: NewCatalogService(repo, repo),
		auth:    NewAuthService(repo, "test-secret", 0),
	}
	e.orders = NewOrderService(repo, repo, e.locker, pub)

	e.buyer = &models.User{Username: "alice", Email: "alice@example.com"}
	e.other = &models.User{Username: "bob", Email: "bob@example.com"}
	e.seller = &models.Seller{Name: "acme"}
	e.rival = &models.Seller{Name: "globex"}
	require.NoError(t, repo.CreateUser(ctx, e.buyer))
	require.NoError(t, repo.CreateUser(ctx, e.other))
	require.NoError(t, repo.CreateSeller(ctx, e.seller))
	require.NoError(t, repo.CreateSeller(ctx, e.rival))

	e.lamp = addProduct(t, e.catalog, e.seller.ID, "Desk Lamp", "19.99")
	e.mug = addProduct(t, e.catalog, e.seller.ID, "Mug", "5.00")
	e.rivalTee = addProduct(t, e.catalog, e.rival.ID, "Tee", "12.00")
	return e
}

func addProduct(t *testing.T, c *CatalogService, sellerID int64, name, price string) *models.Product {
	t.Helper()
	desc := name + " description"
	category := "home"
	p := decimal.RequireFromString(price)
	out, err := c.AddProduct(context.Background(), sellerID, &ProductInput{
		Name: &name, Description: &desc, Price: &p, Category: &category,
	})
	require.NoError(t, err)
	return out
}

func (e *env) placeOrder(t *testing.T, items ...OrderItemRequest) *models.Order {
	t.Helper()
	order, created, err := e.orders.CreateOrder(context.Background(), e.buyer.ID, &CreateOrderRequest{Items: items})
	require.NoError(t, err)
	require.True(t, created)
	return order
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
