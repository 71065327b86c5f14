package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderColumns = `
	o.id, o.user_id, u.username, o.total_amount,
	COALESCE(o.idempotency_key, '') AS idempotency_key, o.created_at`

const itemColumns = `
	id, order_id, product_id, seller_id, product_name, product_slug, product_img,
	quantity, price_at_purchase, status, cancelled_by_seller, delivered_on_time, updated_at`

// CreateOrder inserts the order and its items in one transaction. IDs,
// timestamps and item statuses are filled in on success.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowxContext(ctx, `
		INSERT INTO orders (user_id, total_amount, idempotency_key)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id, created_at`,
		order.UserID, order.TotalAmount, order.IdempotencyKey)
	if err := row.Scan(&order.ID, &order.CreatedAt); err != nil {
		return translate(err, "create order")
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		row := tx.QueryRowxContext(ctx, `
			INSERT INTO order_items (order_id, product_id, seller_id, product_name, product_slug,
			                         product_img, quantity, price_at_purchase, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, updated_at`,
			item.OrderID, item.ProductID, item.SellerID, item.ProductName, item.ProductSlug,
			item.ProductImg, item.Quantity, item.PriceAtPurchase, item.Status)
		if err := row.Scan(&item.ID, &item.UpdatedAt); err != nil {
			return translate(err, "create item for product %d", item.ProductID)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order with all its items
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT"+orderColumns+`
		FROM orders o JOIN users u ON u.id = o.user_id
		WHERE o.id = $1`, id)
	if err != nil {
		return nil, translate(err, "order %d", id)
	}

	orders := []models.Order{order}
	if err := s.attachItems(ctx, orders, 0); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// GetOrderByIdempotencyKey retrieves a buyer's order by idempotency key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT"+orderColumns+`
		FROM orders o JOIN users u ON u.id = o.user_id
		WHERE o.user_id = $1 AND o.idempotency_key = $2`, userID, key)
	if err != nil {
		return nil, translate(err, "order with key %q", key)
	}

	orders := []models.Order{order}
	if err := s.attachItems(ctx, orders, 0); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, "SELECT"+orderColumns+`
		FROM orders o JOIN users u ON u.id = o.user_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.id DESC`, userID)
	if err != nil {
		return nil, translate(err, "orders of user %d", userID)
	}
	return orders, s.attachItems(ctx, orders, 0)
}

// GetOrdersBySellerID retrieves orders containing the seller's products,
// newest first. Only the seller's own items are attached.
func (s *Store) GetOrdersBySellerID(ctx context.Context, sellerID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, "SELECT"+orderColumns+`
		FROM orders o JOIN users u ON u.id = o.user_id
		WHERE EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.seller_id = $1)
		ORDER BY o.created_at DESC, o.id DESC`, sellerID)
	if err != nil {
		return nil, translate(err, "orders of seller %d", sellerID)
	}
	return orders, s.attachItems(ctx, orders, sellerID)
}

// attachItems loads the items of orders; sellerID > 0 restricts them to one seller
func (s *Store) attachItems(ctx context.Context, orders []models.Order, sellerID int64) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []models.OrderItem{}
	}

	q := "SELECT" + itemColumns + " FROM order_items WHERE order_id IN (?)"
	args := []any{ids}
	if sellerID > 0 {
		q += " AND seller_id = ?"
		args = append(args, sellerID)
	}
	q += " ORDER BY id"

	query, qargs, err := sqlx.In(q, args...)
	if err != nil {
		return err
	}

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), qargs...); err != nil {
		return translate(err, "order items")
	}
	for _, it := range items {
		o := &orders[index[it.OrderID]]
		o.Items = append(o.Items, it)
	}
	return nil
}

// GetOrderItem retrieves the line of productID within orderID
func (s *Store) GetOrderItem(ctx context.Context, orderID, productID int64) (*models.OrderItem, error) {
	var item models.OrderItem
	err := s.db.GetContext(ctx, &item, "SELECT"+itemColumns+`
		FROM order_items WHERE order_id = $1 AND product_id = $2`, orderID, productID)
	if err != nil {
		return nil, translate(err, "item of product %d in order %d", productID, orderID)
	}
	return &item, nil
}

// UpdateItemStatus applies u only if the item is still in u.From. A return
// record, when present, is written in the same transaction.
func (s *Store) UpdateItemStatus(ctx context.Context, u models.ItemStatusUpdate) (*models.OrderItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var item models.OrderItem
	err = tx.GetContext(ctx, &item, `
		UPDATE order_items
		SET status = $1,
		    cancelled_by_seller = cancelled_by_seller OR $2,
		    delivered_on_time = COALESCE($3, delivered_on_time),
		    updated_at = NOW()
		WHERE id = $4 AND status = $5
		RETURNING`+itemColumns,
		u.To, u.CancelledBySeller, u.DeliveredOnTime, u.ItemID, u.From)
	if err != nil {
		err = translate(err, "update item %d", u.ItemID)
		if isNotFound(err) {
			return nil, fmt.Errorf("item %d not in %s: %w", u.ItemID, u.From, ErrStatusChanged)
		}
		return nil, err
	}

	if r := u.Return; r != nil {
		r.OrderItemID = item.ID
		row := tx.QueryRowxContext(ctx, `
			INSERT INTO returns (order_item_id, user_id, reason_text, reason_category)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`,
			r.OrderItemID, r.UserID, r.ReasonText, r.ReasonCategory)
		if err := row.Scan(&r.ID, &r.CreatedAt); err != nil {
			return nil, translate(err, "create return for item %d", item.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &item, nil
}

// HasDeliveredItem reports whether the user received productID in any order.
// Refund statuses count only when the item was delivered before, which
// delivered_on_time records.
func (s *Store) HasDeliveredItem(ctx context.Context, userID, productID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM order_items i JOIN orders o ON o.id = i.order_id
			WHERE o.user_id = $1 AND i.product_id = $2
			  AND (i.status IN ('delivered', 'returned')
			       OR (i.status IN ('refunded', 'refund_rejected') AND i.delivered_on_time IS NOT NULL)))`,
		userID, productID)
	return exists, translate(err, "delivered check")
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
