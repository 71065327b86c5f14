package api

import (
	"net/http"

	"storefront/internal/lifecycle"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// itemRequest addresses one item of an order
type itemRequest struct {
	OrderID   int64 `json:"order_id" binding:"required,min=1"`
	ProductID int64 `json:"product_id" binding:"required,min=1"`
}

type returnRequest struct {
	itemRequest
	Reason         string                   `json:"reason"`
	ReasonCategory lifecycle.ReasonCategory `json:"reason_category"`
}

type deliverRequest struct {
	itemRequest
	// DeliveredOnTime defaults to true when omitted
	DeliveredOnTime *bool `json:"delivered_on_time"`
}

func (h *Handler) myOrders(c *gin.Context) {
	orders, err := h.orders.ListForBuyer(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// addOrder creates an order. The idempotency key may come from the body or
// the Idempotency-Key header.
func (h *Handler) addOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, created, err := h.orders.CreateOrder(c.Request.Context(), currentUser(c).ID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	message := "Order created successfully"
	if !created {
		status = http.StatusOK
		message = "Order already exists"
	}
	c.JSON(status, gin.H{
		"message":  message,
		"order_id": order.ID,
	})
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.orders.CancelByBuyer(c.Request.Context(), currentUser(c).ID, req.OrderID, req.ProductID)
	h.itemResult(c, item, err, "Order item cancelled successfully")
}

func (h *Handler) returnProduct(c *gin.Context) {
	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.orders.ReturnByBuyer(c.Request.Context(), currentUser(c).ID,
		req.OrderID, req.ProductID, req.Reason, req.ReasonCategory)
	h.itemResult(c, item, err, "Return requested successfully")
}

func (h *Handler) sellerOrders(c *gin.Context) {
	orders, err := h.orders.ListForSeller(c.Request.Context(), currentSeller(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) deliverProduct(c *gin.Context) {
	var req deliverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	onTime := req.DeliveredOnTime == nil || *req.DeliveredOnTime

	item, err := h.orders.Deliver(c.Request.Context(), currentSeller(c).ID, req.OrderID, req.ProductID, onTime)
	h.itemResult(c, item, err, "Order item delivered successfully")
}

func (h *Handler) sellerCancelProduct(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.orders.CancelBySeller(c.Request.Context(), currentSeller(c).ID, req.OrderID, req.ProductID)
	h.itemResult(c, item, err, "Order item cancelled successfully")
}

func (h *Handler) refundProcess(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.orders.ProcessRefund(c.Request.Context(), currentSeller(c).ID, req.OrderID, req.ProductID)
	h.itemResult(c, item, err, "Refund processed successfully")
}

func (h *Handler) refundReject(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.orders.RejectRefund(c.Request.Context(), currentSeller(c).ID, req.OrderID, req.ProductID)
	h.itemResult(c, item, err, "Refund rejected successfully")
}

func (h *Handler) itemResult(c *gin.Context, item *models.OrderItem, err error, message string) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"item":    item,
	})
}
