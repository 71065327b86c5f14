package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"storefront/internal/lifecycle"
	"storefront/internal/models"
)

type deliverBody struct {
	itemBody
	DeliveredOnTime bool `json:"delivered_on_time"`
}

// SellerOrders fetches orders containing the seller's items, newest first
func (c *Client) SellerOrders(ctx context.Context) ([]models.Order, error) {
	return c.orders(ctx, "/api/orders/seller/orders", c.seller)
}

// Deliver marks a pending item delivered and returns the refreshed orders
func (c *Client) Deliver(ctx context.Context, orderID, productID int64, onTime bool) ([]models.Order, error) {
	return c.sellerAction(ctx, orderID, productID, lifecycle.ActionDeliver,
		"/api/orders/seller/orders/deliver-product",
		deliverBody{itemBody{orderID, productID}, onTime})
}

// SellerCancel cancels a pending item on the seller's side
func (c *Client) SellerCancel(ctx context.Context, orderID, productID int64) ([]models.Order, error) {
	return c.sellerAction(ctx, orderID, productID, lifecycle.ActionCancel,
		"/api/orders/seller/orders/cancel-product", itemBody{orderID, productID})
}

// AcceptRefund refunds a cancelled or returned item
func (c *Client) AcceptRefund(ctx context.Context, orderID, productID int64) ([]models.Order, error) {
	return c.sellerAction(ctx, orderID, productID, lifecycle.ActionRefund,
		"/api/orders/seller/orders/refund-process", itemBody{orderID, productID})
}

// RejectRefund refuses the refund of a cancelled or returned item
func (c *Client) RejectRefund(ctx context.Context, orderID, productID int64) ([]models.Order, error) {
	return c.sellerAction(ctx, orderID, productID, lifecycle.ActionRejectRefund,
		"/api/orders/seller/orders/refund-reject", itemBody{orderID, productID})
}

func (c *Client) sellerAction(ctx context.Context, orderID, productID int64, action lifecycle.Action, path string, body any) ([]models.Order, error) {
	return c.itemAction(ctx, orderID, productID, action, lifecycle.ActorSeller, call{
		method: http.MethodPost,
		path:   path,
		sess:   c.seller,
		body:   body,
	}, c.SellerOrders)
}

// SellerProducts lists the signed-in seller's products. The catalog is
// fetched whole and filtered by seller id.
func (c *Client) SellerProducts(ctx context.Context) ([]models.Product, error) {
	if c.seller.IsGuest() {
		return nil, ErrUnauthenticated
	}
	sellerID, err := strconv.ParseInt(c.seller.Identity().ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: seller identity %q", ErrUnauthenticated, c.seller.Identity().ID)
	}

	all, err := c.Products(ctx)
	if err != nil {
		return nil, err
	}
	mine := make([]models.Product, 0, len(all))
	for _, p := range all {
		if p.Seller.ID == sellerID {
			mine = append(mine, p)
		}
	}
	return mine, nil
}

// AddProduct lists a product and returns its id with the refreshed list
func (c *Client) AddProduct(ctx context.Context, in ProductInput) (int64, []models.Product, error) {
	var resp struct {
		ProductID int64 `json:"product_id"`
	}
	err := c.send(ctx, call{
		method: http.MethodPost,
		path:   "/api/products/add-product",
		sess:   c.seller,
		body:   in,
	}, &resp)
	if err != nil {
		return 0, nil, err
	}
	products, err := c.SellerProducts(ctx)
	return resp.ProductID, products, err
}

// UpdateProduct edits a product and returns the refreshed list
func (c *Client) UpdateProduct(ctx context.Context, productID int64, in ProductInput) ([]models.Product, error) {
	err := c.send(ctx, call{
		method: http.MethodPut,
		path:   fmt.Sprintf("/api/products/%d/update", productID),
		sess:   c.seller,
		body:   in,
	}, nil)
	if err != nil {
		return nil, err
	}
	return c.SellerProducts(ctx)
}

// DeleteProduct unlists a product and returns the refreshed list
func (c *Client) DeleteProduct(ctx context.Context, productID int64) ([]models.Product, error) {
	err := c.send(ctx, call{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/api/products/%d/delete", productID),
		sess:   c.seller,
	}, nil)
	if err != nil {
		return nil, err
	}
	return c.SellerProducts(ctx)
}
