package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/catalog"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/session"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OrderReader serves the order-confirmation view
type OrderReader interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersBySession(ctx context.Context, sessionID string) ([]models.Order, error)
}

// Catalog lists products and never fails
type Catalog interface {
	List(ctx context.Context, q catalog.Query) catalog.Result
}

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the HTTP layer
type Deps struct {
	Sessions        *session.Registry
	Tokens          *session.Tokens
	Catalog         Catalog
	Orders          OrderReader
	Providers       payment.Registry
	DefaultCurrency payment.Currency
	ReadyChecks     map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	deps   Deps
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Deps) *Handler {
	if deps.DefaultCurrency == "" {
		deps.DefaultCurrency = payment.USD
	}
	return &Handler{
		deps:   deps,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.GET("/products", h.listProducts)

	// provider backends called by the payment widgets
	v1.POST("/stripe/payment-intents", h.createStripeIntent)
	v1.POST("/paypal/orders", h.createPayPalOrder)
	v1.POST("/paypal/orders/:id/capture", h.capturePayPalOrder)

	visitor := v1.Group("", h.sessionMiddleware())
	{
		visitor.GET("/cart", h.getCart)
		visitor.DELETE("/cart", h.clearCart)
		visitor.POST("/cart/items", h.addToCart)
		visitor.GET("/cart/items/:id", h.isInCart)
		visitor.PUT("/cart/items/:id", h.updateQuantity)
		visitor.DELETE("/cart/items/:id", h.removeFromCart)

		visitor.GET("/wishlist", h.getWishlist)
		visitor.DELETE("/wishlist", h.clearWishlist)
		visitor.POST("/wishlist/items", h.addToWishlist)
		visitor.GET("/wishlist/items/:id", h.isInWishlist)
		visitor.DELETE("/wishlist/items/:id", h.removeFromWishlist)
		visitor.POST("/wishlist/items/:id/notification", h.subscribeNotification)
		visitor.DELETE("/wishlist/items/:id/notification", h.removeNotification)

		visitor.GET("/checkout", h.currentCheckout)
		visitor.POST("/checkout", h.beginCheckout)
		visitor.DELETE("/checkout", h.resetCheckout)
		visitor.POST("/checkout/:attemptId/approve", h.approveCheckout)
		visitor.POST("/checkout/:attemptId/capture", h.captureCheckout)
		visitor.POST("/checkout/:attemptId/cancel", h.cancelCheckout)

		visitor.GET("/orders", h.listOrders)
		visitor.GET("/orders/:id", h.getOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every backing service
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.deps.ReadyChecks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listProducts serves the catalog, falling back to the built-in set
func (h *Handler) listProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	res := h.deps.Catalog.List(c.Request.Context(), catalog.Query{
		Tag:          c.Query("tag"),
		Limit:        limit,
		WithDefaults: true,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    res.Products,
		"source":  res.Source,
	})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
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

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
