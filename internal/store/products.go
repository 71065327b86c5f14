package store

import (
	"context"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

const productColumns = `
	p.id, p.slug, p.name, p.description, p.price, p.category, p.image_urls,
	p.listed_at, p.pis_score, p.last_pis_update,
	s.id AS "seller.id", s.name AS "seller.name",
	s.scs_score AS "seller.scs_score", s.last_scs_update AS "seller.last_scs_update"`

const productFrom = `
	FROM products p
	JOIN sellers s ON s.id = p.seller_id
	WHERE p.deleted_at IS NULL`

// GetProducts retrieves all listed products with their seller
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT"+productColumns+productFrom+" ORDER BY p.id")
	return products, translate(err, "list products")
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT"+productColumns+productFrom+" AND p.id = $1", id)
	if err != nil {
		return nil, translate(err, "product %d", id)
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT"+productColumns+productFrom+" AND p.id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, translate(err, "products by ids")
}

// CreateProduct lists a product for p.Seller.ID
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (seller_id, slug, name, description, price, category, image_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, listed_at, pis_score`

	row := s.db.QueryRowxContext(ctx, query,
		p.Seller.ID, p.Slug, p.Name, p.Description, p.Price, p.Category, p.ImageURLs)
	if err := row.Scan(&p.ID, &p.ListedAt, &p.PISScore); err != nil {
		return translate(err, "create product")
	}
	return nil
}

// UpdateProduct overwrites the editable fields of a product
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET slug = $1, name = $2, description = $3, price = $4, category = $5, image_urls = $6
		WHERE id = $7 AND deleted_at IS NULL`,
		p.Slug, p.Name, p.Description, p.Price, p.Category, p.ImageURLs, p.ID)
	if err != nil {
		return translate(err, "update product %d", p.ID)
	}
	return expectOne(res, "product %d", p.ID)
}

// DeleteProduct unlists a product. Rows stay for order item references.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return translate(err, "delete product %d", id)
	}
	return expectOne(res, "product %d", id)
}

// GetReviewsByProductID lists reviews of a product, newest first
func (s *Store) GetReviewsByProductID(ctx context.Context, productID int64) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.db.SelectContext(ctx, &reviews, `
		SELECT r.id, r.product_id, r.user_id, u.username, r.rating, r.title, r.review_text,
		       r.is_verified_purchase, r.linguistic_authenticity_score, r.created_at
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.created_at DESC`, productID)
	return reviews, translate(err, "reviews of product %d", productID)
}

// CreateReview stores a review
func (s *Store) CreateReview(ctx context.Context, r *models.Review) error {
	query := `
		INSERT INTO reviews (product_id, user_id, rating, title, review_text, is_verified_purchase)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	row := s.db.QueryRowxContext(ctx, query,
		r.ProductID, r.UserID, r.Rating, r.Title, r.ReviewText, r.IsVerifiedPurchase)
	return translate(row.Scan(&r.ID, &r.CreatedAt), "create review")
}
