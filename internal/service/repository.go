package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"
	"storefront/internal/trust"

	"github.com/google/uuid"
)

// CatalogRepository is implemented by store.Store and store.MemoryStore
type CatalogRepository interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	GetReviewsByProductID(ctx context.Context, productID int64) ([]models.Review, error)
	CreateReview(ctx context.Context, r *models.Review) error
}

// AccountRepository stores buyer and seller accounts
type AccountRepository interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	GetSellerByID(ctx context.Context, id int64) (*models.Seller, error)
	GetSellerByName(ctx context.Context, name string) (*models.Seller, error)
	CreateSeller(ctx context.Context, s *models.Seller) error
	CreateSessionLog(ctx context.Context, l *models.UserSessionLog) error
	GetSessionLogs(ctx context.Context, userID int64) ([]models.UserSessionLog, error)
}

// OrderRepository stores orders and applies conditional item transitions
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	GetOrdersBySellerID(ctx context.Context, sellerID int64) ([]models.Order, error)
	UpdateItemStatus(ctx context.Context, u models.ItemStatusUpdate) (*models.OrderItem, error)
	HasDeliveredItem(ctx context.Context, userID, productID int64) (bool, error)
}

// TrustRepository provides score inputs and stores recomputed scores
type TrustRepository interface {
	GetSellerStats(ctx context.Context, sellerID int64) (trust.SellerStats, error)
	GetUserStats(ctx context.Context, userID int64, now time.Time) (trust.UserStats, error)
	GetProductStats(ctx context.Context, productID int64) (trust.ProductStats, error)
	UpdateSellerScore(ctx context.Context, sellerID int64, score float64, at time.Time) error
	UpdateUserScore(ctx context.Context, userID int64, score float64, at time.Time) error
	UpdateProductScore(ctx context.Context, productID int64, score float64, at time.Time) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Repository is the full persistence surface
type Repository interface {
	CatalogRepository
	AccountRepository
	OrderRepository
	TrustRepository
	Ping(ctx context.Context) error
}

var (
	_ Repository = (*store.Store)(nil)
	_ Repository = (*store.MemoryStore)(nil)
)

// EventPublisher is implemented by broker.EventPublisher
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishItemEvent(ctx context.Context, event *models.ItemEvent) error
}

// Locker serializes work on one key across server instances
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// IdempotencyCache remembers which order an idempotency key produced
type IdempotencyCache interface {
	SetIdempotencyKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error
	GetIdempotencyKey(ctx context.Context, key string) (int64, bool, error)
}

var (
	_ Locker           = (*redisclient.Client)(nil)
	_ IdempotencyCache = (*redisclient.Client)(nil)
)

// Business errors (mapped to HTTP statuses by the api package)
var (
	ErrNotFound     = store.ErrNotFound
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrItemBusy     = errors.New("another action on this item is in progress")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// LocalLocker is an in-process Locker for single-instance deployments
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localLock
	clock func() time.Time
}

type localLock struct {
	token   string
	expires time.Time
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localLock), clock: time.Now}
}

// AcquireLock mirrors redisclient.Client.AcquireLock
func (l *LocalLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return "", redisclient.ErrLockHeld
	}
	token := uuid.NewString()
	l.held[key] = localLock{token: token, expires: now.Add(ttl)}
	return token, nil
}

// ReleaseLock mirrors redisclient.Client.ReleaseLock
func (l *LocalLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.held[key]
	if !ok || cur.token != token {
		return redisclient.ErrLockLost
	}
	delete(l.held, key)
	return nil
}
