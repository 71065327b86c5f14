package client

import (
	"context"
	"net/http"
	"strings"

	"storefront/internal/cart"
	"storefront/internal/lifecycle"
	"storefront/internal/models"
	"storefront/internal/session"

	"github.com/google/uuid"
)

// CheckoutPath is where a guest is sent back to after logging in
const CheckoutPath = "/checkout"

type ordersResponse struct {
	Orders []models.Order `json:"orders"`
}

type itemBody struct {
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
}

type returnBody struct {
	itemBody
	Reason         string                   `json:"reason"`
	ReasonCategory lifecycle.ReasonCategory `json:"reason_category,omitempty"`
}

// MyOrders fetches the buyer's orders, newest first
func (c *Client) MyOrders(ctx context.Context) ([]models.Order, error) {
	return c.orders(ctx, "/api/orders/my-orders", c.buyer)
}

func (c *Client) orders(ctx context.Context, path string, sess *session.Session) ([]models.Order, error) {
	var resp ordersResponse
	if err := c.send(ctx, call{method: http.MethodGet, path: path, sess: sess}, &resp); err != nil {
		return nil, err
	}
	SortOrders(resp.Orders)
	c.statuses.remember(resp.Orders)
	return resp.Orders, nil
}

// Checkout converts the whole cart into one order. A guest is not allowed to
// check out: the checkout path is remembered and ErrLoginRequired returned
// without any request. The cart is cleared only when the order is created.
func (c *Client) Checkout(ctx context.Context, crt *cart.Cart) (int64, error) {
	if c.buyer.IsGuest() {
		c.buyer.RememberReturnPath(CheckoutPath)
		return 0, &ErrLoginRequired{ReturnPath: CheckoutPath}
	}
	lines := crt.OrderLines()
	if len(lines) == 0 {
		return 0, ErrEmptyCart
	}

	var resp struct {
		Message string `json:"message"`
		OrderID int64  `json:"order_id"`
	}
	err := c.send(ctx, call{
		method: http.MethodPost,
		path:   "/api/orders/add-order",
		sess:   c.buyer,
		body:   map[string]any{"items": lines},
		header: map[string]string{"Idempotency-Key": uuid.NewString()},
	}, &resp)
	if err != nil {
		return 0, err
	}

	crt.Clear()
	return resp.OrderID, nil
}

// CancelItem cancels a pending item and returns the refreshed orders
func (c *Client) CancelItem(ctx context.Context, orderID, productID int64) ([]models.Order, error) {
	return c.itemAction(ctx, orderID, productID, lifecycle.ActionCancel, lifecycle.ActorBuyer, call{
		method: http.MethodPost,
		path:   "/api/orders/cancel-order",
		sess:   c.buyer,
		body:   itemBody{orderID, productID},
	}, c.MyOrders)
}

// ReturnItem requests a return of a delivered item. A blank reason fails
// before any request. The classified category travels as a hint only.
func (c *Client) ReturnItem(ctx context.Context, orderID, productID int64, reason string) ([]models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}
	return c.itemAction(ctx, orderID, productID, lifecycle.ActionReturn, lifecycle.ActorBuyer, call{
		method: http.MethodPost,
		path:   "/api/orders/return-product",
		sess:   c.buyer,
		body: returnBody{
			itemBody:       itemBody{orderID, productID},
			Reason:         reason,
			ReasonCategory: lifecycle.ClassifyReason(reason),
		},
	}, c.MyOrders)
}
