package models

import (
	"time"

	"storefront/internal/lifecycle"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced     = "ORDER_PLACED"
	EventTypeItemDelivered   = "ITEM_DELIVERED"
	EventTypeItemCancelled   = "ITEM_CANCELLED"
	EventTypeItemReturned    = "ITEM_RETURNED"
	EventTypeRefundProcessed = "REFUND_PROCESSED"
	EventTypeRefundRejected  = "REFUND_REJECTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when checkout creates an order
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	SellerID  int64           `json:"seller_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ItemEvent published after every item status transition
type ItemEvent struct {
	BaseEvent
	OrderID           int64                    `json:"order_id"`
	ProductID         int64                    `json:"product_id"`
	SellerID          int64                    `json:"seller_id"`
	UserID            int64                    `json:"user_id"`
	From              lifecycle.Status         `json:"from"`
	To                lifecycle.Status         `json:"to"`
	CancelledBySeller bool                     `json:"cancelled_by_seller,omitempty"`
	DeliveredOnTime   *bool                    `json:"delivered_on_time,omitempty"`
	ReasonCategory    lifecycle.ReasonCategory `json:"reason_category,omitempty"`
}

// ItemEventType maps the status an item moved to onto its event type
func ItemEventType(to lifecycle.Status) string {
	switch to {
	case lifecycle.StatusDelivered:
		return EventTypeItemDelivered
	case lifecycle.StatusCancelled:
		return EventTypeItemCancelled
	case lifecycle.StatusReturned:
		return EventTypeItemReturned
	case lifecycle.StatusRefunded:
		return EventTypeRefundProcessed
	case lifecycle.StatusRefundRejected:
		return EventTypeRefundRejected
	default:
		return ""
	}
}
