package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations by operation",
	}, []string{"op"})

	WishlistMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wishlist_mutations_total",
		Help: "Total number of wishlist mutations by operation",
	}, []string{"op"})

	PersistenceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "client_state_persistence_failures_total",
		Help: "Total number of swallowed client state read/write failures",
	}, []string{"direction", "key"})

	CheckoutAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Total number of checkout attempts started",
	}, []string{"provider"})

	CheckoutOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Total number of checkout attempts by terminal state",
	}, []string{"provider", "state"})

	CheckoutStaleResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_stale_responses_total",
		Help: "Provider responses discarded because their attempt was no longer current",
	}, []string{"provider", "step"})

	ProviderCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_provider_call_latency_seconds",
		Help:    "Latency of payment provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "call"})

	CatalogFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_fallbacks_total",
		Help: "Total number of catalog responses served from a fallback source",
	}, []string{"source"})

	RestockNotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restock_notifications_total",
		Help: "Total number of back-in-stock notifications handed to the notifier",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_active_sessions",
		Help: "Number of sessions currently held in memory",
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
