package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/lifecycle"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders  *service.OrderService
	catalog *service.CatalogService
	auth    *service.AuthService
	deps    map[string]Pinger
	limiter *loginLimiter
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler. loginsPerMinute caps login attempts
// per client IP; zero disables the cap.
func NewHandler(
	orders *service.OrderService,
	catalog *service.CatalogService,
	auth *service.AuthService,
	loginsPerMinute int,
) *Handler {
	return &Handler{
		orders:  orders,
		catalog: catalog,
		auth:    auth,
		deps:    make(map[string]Pinger),
		limiter: newLoginLimiter(loginsPerMinute),
		logger:  util.Named("api"),
	}
}

// CheckReadiness adds a dependency to the /ready probe
func (h *Handler) CheckReadiness(name string, p Pinger) {
	h.deps[name] = p
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	buyer := h.buyerAuth()
	seller := h.sellerAuth()

	api := router.Group("/api")

	products := api.Group("/products")
	{
		products.GET("/all", h.listProducts)
		products.POST("/add-product", seller, h.addProduct)
		products.GET("/:id", h.getProduct)
		products.PUT("/:id/update", seller, h.updateProduct)
		products.DELETE("/:id/delete", seller, h.deleteProduct)
		products.GET("/:id/reviews", h.listReviews)
		products.POST("/:id/add-review", buyer, h.addReview)
	}

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.limiter.middleware(), h.loginBuyer)
		auth.GET("/session", buyer, h.buyerSession)
	}

	sellers := api.Group("/seller")
	{
		sellers.POST("/login", h.limiter.middleware(), h.loginSeller)
		sellers.GET("/session", seller, h.sellerSession)
	}

	orders := api.Group("/orders")
	{
		orders.GET("/my-orders", buyer, h.myOrders)
		orders.POST("/add-order", buyer, h.addOrder)
		orders.POST("/cancel-order", buyer, h.cancelOrder)
		orders.POST("/return-product", buyer, h.returnProduct)
		orders.GET("/:id", buyer, h.getOrder)

		so := orders.Group("/seller/orders", seller)
		so.GET("", h.sellerOrders)
		so.POST("/deliver-product", h.deliverProduct)
		so.POST("/cancel-product", h.sellerCancelProduct)
		so.POST("/refund-process", h.refundProcess)
		so.POST("/refund-reject", h.refundReject)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"errors": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// respondError maps service errors onto HTTP statuses. Unexpected errors are
// logged and hidden behind a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, lifecycle.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrItemBusy):
		status = http.StatusLocked
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request data",
		"details": err.Error(),
	})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}
