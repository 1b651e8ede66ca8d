package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_orders_placed_total",
			Help: "Orders committed, by buyer kind",
		},
		[]string{"buyer"},
	)

	StockRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_stock_rejections_total",
			Help: "Order lines rejected for insufficient stock",
		},
		[]string{"stage"},
	)

	StockMovements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_stock_movements_total",
			Help: "Ledger movements appended",
		},
		[]string{"type", "source"},
	)

	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_order_transitions_total",
			Help: "Order lifecycle transitions",
		},
		[]string{"from", "to"},
	)

	PostCommitFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_post_commit_failures_total",
			Help: "Failed post-commit side effects, by stage",
		},
		[]string{"stage"},
	)

	OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_outbox_published_total",
			Help: "Outbox relay publish attempts",
		},
		[]string{"type", "result"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shop_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PlaceOrderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shop_place_order_duration_seconds",
			Help:    "Time spent in the order commit transaction",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersPlaced,
		StockRejections,
		StockMovements,
		OrderTransitions,
		PostCommitFailures,
		OutboxPublished,
		HTTPRequests,
		HTTPLatency,
		PlaceOrderDuration,
	)
}
