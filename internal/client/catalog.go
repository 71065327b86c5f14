package client

import (
	"context"
	"fmt"
	"net/http"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// ProductDetail is a product with its reviews
type ProductDetail struct {
	models.Product
	Reviews []models.Review `json:"reviews"`
}

// ReviewInput is a buyer's review
type ReviewInput struct {
	Rating     int    `json:"rating"`
	Title      string `json:"title"`
	ReviewText string `json:"review_text"`
}

// ProductInput carries seller-editable fields; nil fields are not sent
type ProductInput struct {
	Name        *string          `json:"name,omitempty"`
	Slug        *string          `json:"slug,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    *string          `json:"category,omitempty"`
	ImageURLs   []string         `json:"image_urls,omitempty"`
}

// Products lists the catalog
func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var resp struct {
		Products []models.Product `json:"products"`
	}
	if err := c.send(ctx, call{method: http.MethodGet, path: "/api/products/all"}, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// Product fetches one product with its reviews
func (c *Client) Product(ctx context.Context, id int64) (*ProductDetail, error) {
	var detail ProductDetail
	if err := c.send(ctx, call{method: http.MethodGet, path: fmt.Sprintf("/api/products/%d", id)}, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Reviews lists a product's reviews
func (c *Client) Reviews(ctx context.Context, productID int64) ([]models.Review, error) {
	var resp struct {
		Reviews []models.Review `json:"reviews"`
	}
	path := fmt.Sprintf("/api/products/%d/reviews", productID)
	if err := c.send(ctx, call{method: http.MethodGet, path: path}, &resp); err != nil {
		return nil, err
	}
	return resp.Reviews, nil
}

// AddReview posts a review as the buyer and returns the refreshed reviews
func (c *Client) AddReview(ctx context.Context, productID int64, in ReviewInput) ([]models.Review, error) {
	err := c.send(ctx, call{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/products/%d/add-review", productID),
		sess:   c.buyer,
		body:   in,
	}, nil)
	if err != nil {
		return nil, err
	}
	return c.Reviews(ctx, productID)
}
