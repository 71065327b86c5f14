package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected order creations",
	}, []string{"reason"})

	ItemTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "item_transitions_total",
		Help: "Order item status transitions by action and result",
	}, []string{"action", "result"})

	ItemTransitionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "item_transition_latency_seconds",
		Help:    "Latency of order item status transitions",
		Buckets: prometheus.DefBuckets,
	})

	ReturnsByCategoryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "returns_by_category_total",
		Help: "Return requests by classified reason category",
	}, []string{"category"})

	TrustRecalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trust_recalculations_total",
		Help: "Trust score recalculations by score type",
	}, []string{"score"})

	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logins_total",
		Help: "Successful logins by namespace",
	}, []string{"kind"})

	LoginRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "login_rate_limited_total",
		Help: "Login attempts rejected by the rate limiter",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
