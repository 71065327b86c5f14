package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/lifecycle"
	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultLockTTL = 10 * time.Second
	idempotencyTTL = 24 * time.Hour
)

// OrderService handles order creation and item transitions. It is the single
// authority over item status.
type OrderService struct {
	orders    OrderRepository
	catalog   CatalogRepository
	locker    Locker
	idem      IdempotencyCache
	publisher EventPublisher
	lockTTL   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	orders OrderRepository,
	catalog CatalogRepository,
	locker Locker,
	publisher EventPublisher,
) *OrderService {
	return &OrderService{
		orders:    orders,
		catalog:   catalog,
		locker:    locker,
		publisher: publisher,
		lockTTL:   defaultLockTTL,
		logger:    util.Named("orders"),
		now:       time.Now,
	}
}

// WithIdempotencyCache adds a fast lookup for repeated add-order requests
func (s *OrderService) WithIdempotencyCache(c IdempotencyCache) *OrderService {
	s.idem = c
	return s
}

// WithLockTTL overrides how long a per-item lock may be held
func (s *OrderService) WithLockTTL(ttl time.Duration) *OrderService {
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	Items          []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// CreateOrder converts cart lines into an order in one step. Duplicate
// product lines are merged, prices are snapshotted and the total is fixed.
// A repeated idempotency key returns the order created the first time with
// created=false.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, req *CreateOrderRequest) (order *models.Order, created bool, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	lines, err := mergeLines(req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, false, err
	}

	if key := req.IdempotencyKey; key != "" {
		if existing, err := s.findByIdempotencyKey(ctx, userID, key); err != nil || existing != nil {
			return existing, false, err
		}

		lockKey := "order-key:" + key
		token, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
		if err != nil {
			if errors.Is(err, redisclient.ErrLockHeld) {
				return nil, false, ErrItemBusy
			}
			return nil, false, fmt.Errorf("failed to lock idempotency key: %w", err)
		}
		defer s.release(lockKey, token)

		// re-check now that concurrent requests with the same key are excluded
		if existing, err := s.findByIdempotencyKey(ctx, userID, key); err != nil || existing != nil {
			return existing, false, err
		}
	}

	products, err := s.loadProducts(ctx, lines)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, false, err
	}

	order = &models.Order{
		UserID:         userID,
		IdempotencyKey: req.IdempotencyKey,
		Items:          make([]models.OrderItem, 0, len(lines)),
	}
	total := decimal.Zero
	eventItems := make([]models.OrderItemData, 0, len(lines))
	for _, line := range lines {
		p := products[line.ProductID]
		item := models.OrderItem{
			ProductID:       p.ID,
			SellerID:        p.Seller.ID,
			ProductName:     p.Name,
			ProductSlug:     p.Slug,
			ProductImg:      p.PrimaryImage(),
			Quantity:        line.Quantity,
			PriceAtPurchase: p.Price,
			Status:          lifecycle.StatusPending,
		}
		total = total.Add(item.Subtotal())
		order.Items = append(order.Items, item)
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: p.ID,
			SellerID:  p.Seller.ID,
			Quantity:  line.Quantity,
			UnitPrice: p.Price,
		})
	}
	order.TotalAmount = total

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, store.ErrDuplicate) && req.IdempotencyKey != "" {
			existing, ferr := s.orders.GetOrderByIdempotencyKey(ctx, userID, req.IdempotencyKey)
			if ferr == nil {
				return existing, false, nil
			}
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, false, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)

	if s.idem != nil && req.IdempotencyKey != "" {
		if err := s.idem.SetIdempotencyKey(ctx, s.idemKey(userID, req.IdempotencyKey), order.ID, idempotencyTTL); err != nil {
			s.logger.Warn("failed to cache idempotency key", zap.Error(err))
		}
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: s.now(),
		},
		OrderID:     order.ID,
		UserID:      userID,
		TotalAmount: order.TotalAmount,
		Items:       eventItems,
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("failed to publish OrderPlaced event", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	return order, true, nil
}

func (s *OrderService) idemKey(userID int64, key string) string {
	return fmt.Sprintf("%d:%s", userID, key)
}

func (s *OrderService) findByIdempotencyKey(ctx context.Context, userID int64, key string) (*models.Order, error) {
	if s.idem != nil {
		id, ok, err := s.idem.GetIdempotencyKey(ctx, s.idemKey(userID, key))
		if err != nil {
			s.logger.Warn("idempotency cache lookup failed", zap.Error(err))
		} else if ok {
			order, err := s.orders.GetOrderByID(ctx, id)
			if err == nil && order.UserID == userID {
				s.logger.Info("duplicate order request detected",
					zap.String("idempotency_key", key),
					zap.Int64("order_id", order.ID))
				return order, nil
			}
		}
	}

	order, err := s.orders.GetOrderByIdempotencyKey(ctx, userID, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	s.logger.Info("duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.Int64("order_id", order.ID))
	return order, nil
}

// mergeLines validates quantities and folds repeated products into one line,
// keeping first-seen order
func mergeLines(items []OrderItemRequest) ([]OrderItemRequest, error) {
	if len(items) == 0 {
		return nil, invalid("order must contain at least one item")
	}
	index := make(map[int64]int, len(items))
	merged := make([]OrderItemRequest, 0, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return nil, invalid("invalid product id %d", it.ProductID)
		}
		if it.Quantity < 1 {
			return nil, invalid("quantity for product %d must be at least 1", it.ProductID)
		}
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}

// loadProducts fetches every product of lines or fails naming the first missing one
func (s *OrderService) loadProducts(ctx context.Context, lines []OrderItemRequest) (map[int64]*models.Product, error) {
	productIDs := make([]int64, len(lines))
	for i, line := range lines {
		productIDs[i] = line.ProductID
	}

	products, err := s.catalog.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	productMap := make(map[int64]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}
	for _, id := range productIDs {
		if _, ok := productMap[id]; !ok {
			return nil, fmt.Errorf("product with ID %d not found: %w", id, ErrNotFound)
		}
	}
	return productMap, nil
}

// GetOrder retrieves one of the buyer's orders
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	return order, nil
}

// ListForBuyer returns the buyer's orders, newest first
func (s *OrderService) ListForBuyer(ctx context.Context, userID int64) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListForBuyer")
	defer span.End()

	return s.orders.GetOrdersByUserID(ctx, userID)
}

// ListForSeller returns orders containing the seller's items, newest first,
// each carrying only that seller's items
func (s *OrderService) ListForSeller(ctx context.Context, sellerID int64) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListForSeller")
	defer span.End()

	return s.orders.GetOrdersBySellerID(ctx, sellerID)
}

// CancelByBuyer cancels a pending item of the buyer's order
func (s *OrderService) CancelByBuyer(ctx context.Context, userID, orderID, productID int64) (*models.OrderItem, error) {
	return s.transition(ctx, itemAction{
		orderID: orderID, productID: productID,
		actor: lifecycle.ActorBuyer, actorID: userID,
		action: lifecycle.ActionCancel,
	})
}

// ReturnByBuyer requests a return of a delivered item. The reason is
// required; its category is derived here and the client's hint is advisory.
func (s *OrderService) ReturnByBuyer(ctx context.Context, userID, orderID, productID int64, reason string, hint lifecycle.ReasonCategory) (*models.OrderItem, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("a return reason is required")
	}

	category := lifecycle.ClassifyReason(reason)
	if hint != "" && hint != category && hint != category.StoredCategory() {
		s.logger.Debug("client reason category differs",
			zap.String("hint", string(hint)),
			zap.String("classified", string(category)))
	}
	stored := category.StoredCategory()

	return s.transition(ctx, itemAction{
		orderID: orderID, productID: productID,
		actor: lifecycle.ActorBuyer, actorID: userID,
		action: lifecycle.ActionReturn,
		ret: &models.Return{
			UserID:         userID,
			ReasonText:     reason,
			ReasonCategory: stored,
		},
	})
}

// Deliver marks a pending item delivered and records punctuality
func (s *OrderService) Deliver(ctx context.Context, sellerID, orderID, productID int64, onTime bool) (*models.OrderItem, error) {
	return s.transition(ctx, itemAction{
		orderID: orderID, productID: productID,
		actor: lifecycle.ActorSeller, actorID: sellerID,
		action:          lifecycle.ActionDeliver,
		deliveredOnTime: &onTime,
	})
}

// CancelBySeller cancels a pending item on the seller's side
func (s *OrderService) CancelBySeller(ctx context.Context, sellerID, orderID, productID int64) (*models.OrderItem, error) {
	return s.transition(ctx, itemAction{
		orderID: orderID, productID: productID,
		actor: lifecycle.ActorSeller, actorID: sellerID,
		action:            lifecycle.ActionCancel,
		cancelledBySeller: true,
	})
}

// ProcessRefund refunds a cancelled or returned item
func (s *OrderService) ProcessRefund(ctx context.Context, sellerID, orderID, productID int64) (*models.OrderItem, error) {
	return s.transition(ctx, itemAction{
		orderID: orderID, productID: productID,
		actor: lifecycle.ActorSeller, actorID: sellerID,
		action: lifecycle.ActionRefund,
	})
}

// RejectRefund refuses the refund of a cancelled or returned item
func (s *OrderService) RejectRefund(ctx context.Context, sellerID, orderID, productID int64) (*models.OrderItem, error) {
	return s.transition(ctx, itemAction{
		orderID: orderID, productID: productID,
		actor: lifecycle.ActorSeller, actorID: sellerID,
		action: lifecycle.ActionRejectRefund,
	})
}

type itemAction struct {
	orderID           int64
	productID         int64
	actor             lifecycle.Actor
	actorID           int64
	action            lifecycle.Action
	deliveredOnTime   *bool
	cancelledBySeller bool
	ret               *models.Return
}

// transition validates and applies one item action. The store update is
// conditional on the status read here, so a concurrent change surfaces as
// an invalid transition rather than being overwritten.
func (s *OrderService) transition(ctx context.Context, a itemAction) (updated *models.OrderItem, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.transition."+string(a.action),
		util.ItemAttrs(a.orderID, a.productID)...)
	defer span.End()

	start := time.Now()
	defer func() {
		util.ItemTransitionLatency.Observe(time.Since(start).Seconds())
		util.FailSpan(span, err)
	}()

	item, order, err := s.ownedItem(ctx, a)
	if err != nil {
		util.ItemTransitionsTotal.WithLabelValues(string(a.action), "not_found").Inc()
		return nil, err
	}

	to, err := lifecycle.Next(item.Status, a.action, a.actor)
	if err != nil {
		util.ItemTransitionsTotal.WithLabelValues(string(a.action), "rejected").Inc()
		return nil, err
	}

	lockKey := fmt.Sprintf("item:%d", item.ID)
	token, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		util.ItemTransitionsTotal.WithLabelValues(string(a.action), "busy").Inc()
		if errors.Is(err, redisclient.ErrLockHeld) {
			return nil, ErrItemBusy
		}
		return nil, fmt.Errorf("failed to lock item %d: %w", item.ID, err)
	}
	defer s.release(lockKey, token)

	updated, err = s.orders.UpdateItemStatus(ctx, models.ItemStatusUpdate{
		ItemID:            item.ID,
		From:              item.Status,
		To:                to,
		CancelledBySeller: a.cancelledBySeller,
		DeliveredOnTime:   a.deliveredOnTime,
		Return:            a.ret,
	})
	if err != nil {
		if errors.Is(err, store.ErrStatusChanged) {
			util.ItemTransitionsTotal.WithLabelValues(string(a.action), "rejected").Inc()
			return nil, &lifecycle.TransitionError{
				From: item.Status, Action: a.action, Actor: a.actor, Err: lifecycle.ErrInvalidTransition,
			}
		}
		util.ItemTransitionsTotal.WithLabelValues(string(a.action), "error").Inc()
		return nil, fmt.Errorf("failed to update item %d: %w", item.ID, err)
	}

	util.ItemTransitionsTotal.WithLabelValues(string(a.action), "ok").Inc()
	if a.ret != nil {
		util.ReturnsByCategoryTotal.WithLabelValues(string(a.ret.ReasonCategory)).Inc()
	}
	s.logger.Info("item status changed",
		zap.Int64("order_id", a.orderID),
		zap.Int64("product_id", a.productID),
		zap.String("actor", string(a.actor)),
		zap.String("from", string(item.Status)),
		zap.String("to", string(to)),
	)

	event := &models.ItemEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.ItemEventType(to),
			Timestamp: s.now(),
		},
		OrderID:           a.orderID,
		ProductID:         a.productID,
		SellerID:          item.SellerID,
		UserID:            order.UserID,
		From:              item.Status,
		To:                to,
		CancelledBySeller: updated.CancelledBySeller,
		DeliveredOnTime:   updated.DeliveredOnTime,
	}
	if a.ret != nil {
		event.ReasonCategory = a.ret.ReasonCategory
	}
	if err := s.publisher.PublishItemEvent(ctx, event); err != nil {
		s.logger.Error("failed to publish item event",
			zap.String("type", event.EventType),
			zap.Int64("order_id", a.orderID),
			zap.Error(err))
	}

	return updated, nil
}

// ownedItem loads the item and checks that the actor may touch it. Items of
// other buyers or sellers are reported as not found.
func (s *OrderService) ownedItem(ctx context.Context, a itemAction) (*models.OrderItem, *models.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, a.orderID)
	if err != nil {
		return nil, nil, err
	}
	item, ok := order.Item(a.productID)
	if !ok {
		return nil, nil, fmt.Errorf("product %d in order %d: %w", a.productID, a.orderID, ErrNotFound)
	}

	switch a.actor {
	case lifecycle.ActorBuyer:
		if order.UserID != a.actorID {
			return nil, nil, fmt.Errorf("order %d: %w", a.orderID, ErrNotFound)
		}
	case lifecycle.ActorSeller:
		if item.SellerID != a.actorID {
			return nil, nil, fmt.Errorf("product %d in order %d: %w", a.productID, a.orderID, ErrNotFound)
		}
	}
	return item, order, nil
}

func (s *OrderService) release(key, token string) {
	// the request context may already be cancelled; the lock must still go
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.locker.ReleaseLock(ctx, key, token); err != nil {
		s.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
	}
}
