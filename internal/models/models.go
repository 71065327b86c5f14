package models

import (
	"time"

	"storefront/internal/lifecycle"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

func init() {
	// prices travel as JSON numbers, matching what browser clients send
	decimal.MarshalJSONWithoutQuotes = true
}

// SellerSummary is the seller snapshot embedded in product payloads
type SellerSummary struct {
	ID            int64      `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	SCSScore      float64    `db:"scs_score" json:"scs_score"`
	LastSCSUpdate *time.Time `db:"last_scs_update" json:"last_scs_update"`
}

// Product represents a catalog listing
type Product struct {
	ID            int64           `db:"id" json:"id"`
	Slug          string          `db:"slug" json:"slug"`
	Name          string          `db:"name" json:"name"`
	Description   string          `db:"description" json:"description"`
	Price         decimal.Decimal `db:"price" json:"price"`
	Category      string          `db:"category" json:"category"`
	ImageURLs     pq.StringArray  `db:"image_urls" json:"image_urls"`
	ListedAt      time.Time       `db:"listed_at" json:"listed_at"`
	PISScore      float64         `db:"pis_score" json:"pis_score"`
	LastPISUpdate *time.Time      `db:"last_pis_update" json:"last_pis_update"`
	Seller        SellerSummary   `db:"seller" json:"seller"`
}

// PrimaryImage returns the first image url or an empty string
func (p *Product) PrimaryImage() string {
	if len(p.ImageURLs) == 0 {
		return ""
	}
	return p.ImageURLs[0]
}

// Seller represents a merchant account
type Seller struct {
	ID            int64      `db:"id" json:"seller_id"`
	Name          string     `db:"name" json:"name"`
	Email         string     `db:"email" json:"email"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	SCSScore      float64    `db:"scs_score" json:"scs_score"`
	LastSCSUpdate *time.Time `db:"last_scs_update" json:"last_scs_update"`
}

// User represents a buyer account
type User struct {
	ID                       int64      `db:"id" json:"id"`
	Username                 string     `db:"username" json:"username"`
	Email                    string     `db:"email" json:"email"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
	UBAScore                 float64    `db:"uba_score" json:"uba_score"`
	ProfileCompletenessScore float64    `db:"profile_completeness_score" json:"profile_completeness_score"`
	LastUBAUpdate            *time.Time `db:"last_uba_update" json:"last_uba_update"`
}

// UserSessionLog records one buyer login
type UserSessionLog struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"-"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	DeviceInfo string    `db:"device_info" json:"device_info"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
}

// Review is a buyer's rating of a product
type Review struct {
	ID                          int64     `db:"id" json:"id"`
	ProductID                   int64     `db:"product_id" json:"product_id"`
	UserID                      int64     `db:"user_id" json:"user_id"`
	Username                    string    `db:"username" json:"username"`
	Rating                      int       `db:"rating" json:"rating"`
	Title                       string    `db:"title" json:"title"`
	ReviewText                  string    `db:"review_text" json:"review_text"`
	IsVerifiedPurchase          bool      `db:"is_verified_purchase" json:"is_verified_purchase"`
	LinguisticAuthenticityScore *float64  `db:"linguistic_authenticity_score" json:"linguistic_authenticity_score"`
	CreatedAt                   time.Time `db:"created_at" json:"created_at"`
}

// Positive reports whether the review counts as positive sentiment
func (r *Review) Positive() bool {
	return r.Rating >= 4
}

// Order is an immutable purchase record grouping order items
type Order struct {
	ID             int64           `db:"id" json:"id"`
	UserID         int64           `db:"user_id" json:"-"`
	Username       string          `db:"username" json:"username"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	IdempotencyKey string          `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	Items          []OrderItem     `db:"-" json:"items"`
}

// RefundedAmount sums refunded items. It is tracked separately from
// TotalAmount, which is fixed at creation.
func (o *Order) RefundedAmount() decimal.Decimal {
	sum := decimal.Zero
	for i := range o.Items {
		if o.Items[i].Status == lifecycle.StatusRefunded {
			sum = sum.Add(o.Items[i].Subtotal())
		}
	}
	return sum
}

// Item returns the line for productID
func (o *Order) Item(productID int64) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// OrderItem is one product line within an order with its own lifecycle
type OrderItem struct {
	ID                int64            `db:"id" json:"id"`
	OrderID           int64            `db:"order_id" json:"order_id"`
	ProductID         int64            `db:"product_id" json:"product_id"`
	SellerID          int64            `db:"seller_id" json:"seller_id"`
	ProductName       string           `db:"product_name" json:"product_name"`
	ProductSlug       string           `db:"product_slug" json:"product_slug"`
	ProductImg        string           `db:"product_img" json:"product_img"`
	Quantity          int              `db:"quantity" json:"quantity"`
	PriceAtPurchase   decimal.Decimal  `db:"price_at_purchase" json:"price_at_purchase"`
	Status            lifecycle.Status `db:"status" json:"status"`
	CancelledBySeller bool             `db:"cancelled_by_seller" json:"cancelled_by_seller"`
	DeliveredOnTime   *bool            `db:"delivered_on_time" json:"delivered_on_time"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// Subtotal is price_at_purchase * quantity
func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// StatusLabel is the display text for the item status
func (i *OrderItem) StatusLabel() string {
	return i.Status.Label(i.CancelledBySeller)
}

// Return records a buyer's return request for an order item
type Return struct {
	ID             int64                    `db:"id" json:"id"`
	OrderItemID    int64                    `db:"order_item_id" json:"order_item_id"`
	UserID         int64                    `db:"user_id" json:"user_id"`
	ReasonText     string                   `db:"reason_text" json:"reason_text"`
	ReasonCategory lifecycle.ReasonCategory `db:"reason_category" json:"reason_category"`
	CreatedAt      time.Time                `db:"created_at" json:"created_at"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// ItemStatusUpdate is a conditional status change of one order item. It only
// applies while the item is still in From.
type ItemStatusUpdate struct {
	ItemID            int64
	From              lifecycle.Status
	To                lifecycle.Status
	CancelledBySeller bool
	DeliveredOnTime   *bool
	Return            *Return
}
