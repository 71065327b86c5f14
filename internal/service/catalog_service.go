package service

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService handles products and reviews
type CatalogService struct {
	catalog CatalogRepository
	orders  OrderRepository
	logger  *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(catalog CatalogRepository, orders OrderRepository) *CatalogService {
	return &CatalogService{
		catalog: catalog,
		orders:  orders,
		logger:  util.Named("catalog"),
	}
}

// ProductInput carries the seller-editable product fields. Nil fields are
// left unchanged on update.
type ProductInput struct {
	Name        *string          `json:"name"`
	Slug        *string          `json:"slug"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	ImageURLs   []string         `json:"image_urls"`
}

// ListProducts returns the whole catalog
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	return s.catalog.GetProducts(ctx)
}

// GetProduct returns one product
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	return s.catalog.GetProductByID(ctx, id)
}

// AddProduct lists a new product for sellerID. Name, description and a
// non-negative price are required.
func (s *CatalogService) AddProduct(ctx context.Context, sellerID int64, in *ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.AddProduct")
	defer span.End()

	if in.Name == nil || strings.TrimSpace(*in.Name) == "" ||
		in.Description == nil || strings.TrimSpace(*in.Description) == "" ||
		in.Price == nil {
		return nil, invalid("name, description, and price are required")
	}

	p := &models.Product{}
	p.Seller.ID = sellerID
	if err := applyProductInput(p, in); err != nil {
		return nil, err
	}
	if p.Slug == "" {
		p.Slug = slugify(p.Name)
	}

	if err := s.catalog.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to add product: %w", err)
	}
	s.logger.Info("product added", zap.Int64("product_id", p.ID), zap.Int64("seller_id", sellerID))
	return p, nil
}

// UpdateProduct edits a product owned by sellerID
func (s *CatalogService) UpdateProduct(ctx context.Context, sellerID, productID int64, in *ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	p, err := s.owned(ctx, sellerID, productID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, invalid("name cannot be empty")
	}
	if err := applyProductInput(p, in); err != nil {
		return nil, err
	}
	if err := s.catalog.UpdateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return p, nil
}

// DeleteProduct unlists a product owned by sellerID
func (s *CatalogService) DeleteProduct(ctx context.Context, sellerID, productID int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct")
	defer span.End()

	if _, err := s.owned(ctx, sellerID, productID); err != nil {
		return err
	}
	if err := s.catalog.DeleteProduct(ctx, productID); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	s.logger.Info("product deleted", zap.Int64("product_id", productID), zap.Int64("seller_id", sellerID))
	return nil
}

// owned loads a product and hides products of other sellers
func (s *CatalogService) owned(ctx context.Context, sellerID, productID int64) (*models.Product, error) {
	p, err := s.catalog.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Seller.ID != sellerID {
		return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return p, nil
}

func applyProductInput(p *models.Product, in *ProductInput) error {
	if in.Price != nil {
		if in.Price.IsNegative() {
			return invalid("price cannot be negative")
		}
		p.Price = in.Price.Round(2)
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Slug != nil {
		p.Slug = *in.Slug
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.ImageURLs != nil {
		p.ImageURLs = pq.StringArray(in.ImageURLs)
	}
	if p.ImageURLs == nil {
		p.ImageURLs = pq.StringArray{}
	}
	return nil
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ReviewInput is a buyer's review submission
type ReviewInput struct {
	Rating     int    `json:"rating"`
	Title      string `json:"title"`
	ReviewText string `json:"review_text"`
}

// ListReviews returns the reviews of an existing product
func (s *CatalogService) ListReviews(ctx context.Context, productID int64) ([]models.Review, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListReviews")
	defer span.End()

	if _, err := s.catalog.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.catalog.GetReviewsByProductID(ctx, productID)
}

// AddReview stores a review. Verified purchase is derived from the buyer's
// delivered items, never taken from the request.
func (s *CatalogService) AddReview(ctx context.Context, userID, productID int64, in *ReviewInput) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.AddReview")
	defer span.End()

	if in.Rating < 1 || in.Rating > 5 {
		return nil, invalid("rating must be between 1 and 5")
	}
	if _, err := s.catalog.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}

	verified, err := s.orders.HasDeliveredItem(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to check purchase: %w", err)
	}

	r := &models.Review{
		ProductID:          productID,
		UserID:             userID,
		Rating:             in.Rating,
		Title:              in.Title,
		ReviewText:         in.ReviewText,
		IsVerifiedPurchase: verified,
	}
	if err := s.catalog.CreateReview(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to add review: %w", err)
	}
	return r, nil
}
