package store

import (
	"context"
	"database/sql"
	"time"

	"storefront/internal/lifecycle"
	"storefront/internal/trust"

	"github.com/lib/pq"
)

func integrityCategories() pq.StringArray {
	out := make(pq.StringArray, len(lifecycle.IntegrityCategories))
	for i, c := range lifecycle.IntegrityCategories {
		out[i] = string(c)
	}
	return out
}

// GetSellerStats aggregates the inputs of a seller's credibility score
func (s *Store) GetSellerStats(ctx context.Context, sellerID int64) (trust.SellerStats, error) {
	var row struct {
		CreatedAt       time.Time       `db:"created_at"`
		TotalItems      int             `db:"total_items"`
		OnTimeItems     int             `db:"on_time_items"`
		CancelledItems  int             `db:"cancelled_items"`
		Reviews         int             `db:"reviews"`
		PositiveReviews int             `db:"positive_reviews"`
		AveragePIS      sql.NullFloat64 `db:"average_pis"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT s.created_at,
		       (SELECT COUNT(*) FROM order_items WHERE seller_id = s.id) AS total_items,
		       (SELECT COUNT(*) FROM order_items WHERE seller_id = s.id AND delivered_on_time) AS on_time_items,
		       (SELECT COUNT(*) FROM order_items WHERE seller_id = s.id AND cancelled_by_seller) AS cancelled_items,
		       (SELECT COUNT(*) FROM reviews r JOIN products p ON p.id = r.product_id
		         WHERE p.seller_id = s.id) AS reviews,
		       (SELECT COUNT(*) FROM reviews r JOIN products p ON p.id = r.product_id
		         WHERE p.seller_id = s.id AND r.rating >= 4) AS positive_reviews,
		       (SELECT AVG(pis_score) FROM products
		         WHERE seller_id = s.id AND last_pis_update IS NOT NULL) AS average_pis
		FROM sellers s WHERE s.id = $1`, sellerID)
	if err != nil {
		return trust.SellerStats{}, translate(err, "seller stats %d", sellerID)
	}

	stats := trust.SellerStats{
		CreatedAt:       row.CreatedAt,
		TotalItems:      row.TotalItems,
		OnTimeItems:     row.OnTimeItems,
		CancelledItems:  row.CancelledItems,
		Reviews:         row.Reviews,
		PositiveReviews: row.PositiveReviews,
	}
	if row.AveragePIS.Valid {
		avg := row.AveragePIS.Float64
		stats.AveragePIS = &avg
	}
	return stats, nil
}

// GetUserStats aggregates the inputs of a buyer's behavior score
func (s *Store) GetUserStats(ctx context.Context, userID int64, now time.Time) (trust.UserStats, error) {
	var row struct {
		CreatedAt           time.Time `db:"created_at"`
		ProfileCompleteness float64   `db:"profile_completeness_score"`
		UniqueIPs           int       `db:"unique_ips"`
		RecentReviews       int       `db:"recent_reviews"`
		Reviews             int       `db:"reviews"`
		Orders              int       `db:"orders"`
		Returns             int       `db:"returns"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT u.created_at, u.profile_completeness_score,
		       (SELECT COUNT(DISTINCT ip_address) FROM user_session_logs
		         WHERE user_id = u.id AND timestamp >= $2) AS unique_ips,
		       (SELECT COUNT(*) FROM reviews WHERE user_id = u.id AND created_at >= $3) AS recent_reviews,
		       (SELECT COUNT(*) FROM reviews WHERE user_id = u.id) AS reviews,
		       (SELECT COUNT(*) FROM orders WHERE user_id = u.id) AS orders,
		       (SELECT COUNT(*) FROM returns WHERE user_id = u.id) AS returns
		FROM users u WHERE u.id = $1`,
		userID, now.AddDate(0, 0, -30), now.AddDate(0, 0, -7))
	if err != nil {
		return trust.UserStats{}, translate(err, "user stats %d", userID)
	}

	var scores []float64
	err = s.db.SelectContext(ctx, &scores, `
		SELECT linguistic_authenticity_score FROM reviews
		WHERE user_id = $1 AND linguistic_authenticity_score IS NOT NULL`, userID)
	if err != nil {
		return trust.UserStats{}, translate(err, "linguistic scores of user %d", userID)
	}

	return trust.UserStats{
		CreatedAt:           row.CreatedAt,
		ProfileCompleteness: row.ProfileCompleteness,
		UniqueIPsLast30Days: row.UniqueIPs,
		ReviewsLast7Days:    row.RecentReviews,
		HasReviews:          row.Reviews > 0,
		LinguisticScores:    scores,
		Orders:              row.Orders,
		Returns:             row.Returns,
	}, nil
}

// GetProductStats aggregates the inputs of a product's integrity score
func (s *Store) GetProductStats(ctx context.Context, productID int64) (trust.ProductStats, error) {
	var row struct {
		Price            float64         `db:"price"`
		AvgCategoryPrice sql.NullFloat64 `db:"avg_category_price"`
		Reviews          int             `db:"reviews"`
		PositiveReviews  int             `db:"positive_reviews"`
		ItemsSold        int             `db:"items_sold"`
		IntegrityReturns int             `db:"integrity_returns"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT p.price::float8 AS price,
		       (SELECT AVG(price)::float8 FROM products
		         WHERE category = p.category AND deleted_at IS NULL) AS avg_category_price,
		       (SELECT COUNT(*) FROM reviews WHERE product_id = p.id) AS reviews,
		       (SELECT COUNT(*) FROM reviews WHERE product_id = p.id AND rating >= 4) AS positive_reviews,
		       (SELECT COUNT(*) FROM order_items WHERE product_id = p.id) AS items_sold,
		       (SELECT COUNT(*) FROM returns r JOIN order_items i ON i.id = r.order_item_id
		         WHERE i.product_id = p.id AND r.reason_category = ANY($2)) AS integrity_returns
		FROM products p WHERE p.id = $1`, productID, integrityCategories())
	if err != nil {
		return trust.ProductStats{}, translate(err, "product stats %d", productID)
	}

	return trust.ProductStats{
		Price:            row.Price,
		AvgCategoryPrice: row.AvgCategoryPrice.Float64,
		Reviews:          row.Reviews,
		PositiveReviews:  row.PositiveReviews,
		ItemsSold:        row.ItemsSold,
		IntegrityReturns: row.IntegrityReturns,
	}, nil
}

// UpdateSellerScore stores a recomputed SCS
func (s *Store) UpdateSellerScore(ctx context.Context, sellerID int64, score float64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sellers SET scs_score = $1, last_scs_update = $2 WHERE id = $3", score, at, sellerID)
	if err != nil {
		return translate(err, "update scs of seller %d", sellerID)
	}
	return expectOne(res, "seller %d", sellerID)
}

// UpdateUserScore stores a recomputed UBA
func (s *Store) UpdateUserScore(ctx context.Context, userID int64, score float64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET uba_score = $1, last_uba_update = $2 WHERE id = $3", score, at, userID)
	if err != nil {
		return translate(err, "update uba of user %d", userID)
	}
	return expectOne(res, "user %d", userID)
}

// UpdateProductScore stores a recomputed PIS
func (s *Store) UpdateProductScore(ctx context.Context, productID int64, score float64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET pis_score = $1, last_pis_update = $2 WHERE id = $3", score, at, productID)
	if err != nil {
		return translate(err, "update pis of product %d", productID)
	}
	return expectOne(res, "product %d", productID)
}
