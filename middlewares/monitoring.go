package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"food-order-service/models"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "food_order_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "food_order_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "food_order_operations_total",
			Help: "Total number of order operations",
		},
		[]string{"operation", "status"},
	)

	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "food_order_status_transitions_total",
			Help: "Order status changes by previous and new status",
		},
		[]string{"from", "to"},
	)

	amountMismatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "food_order_amount_mismatches_total",
			Help: "Checkout amounts that disagreed with server prices, by field",
		},
		[]string{"field"},
	)

	distanceProviderFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "food_order_distance_provider_failures_total",
			Help: "Routing provider calls that failed or timed out",
		},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "food_order_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	deadLetters = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "food_order_dead_letters_total",
			Help: "Messages received on the dead letter queue",
		},
		[]string{"type"},
	)
)

// PrometheusMiddleware collects request count and latency per route.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
	}
}

func RecordOrderOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	orderOperations.WithLabelValues(operation, status).Inc()
}

func RecordStatusTransition(from, to models.OrderStatus) {
	statusTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func RecordAmountMismatch(field string) {
	amountMismatches.WithLabelValues(field).Inc()
}

func RecordDistanceProviderFailure() {
	distanceProviderFailures.Inc()
}

func RecordDeadLetter(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	deadLetters.WithLabelValues(eventType).Inc()
}
