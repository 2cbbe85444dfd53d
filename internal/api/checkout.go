package api

import (
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/checkout"
	"storefront/internal/payment"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BeginCheckoutRequest starts an attempt for the current cart total
type BeginCheckoutRequest struct {
	Provider string `json:"provider" binding:"required"`
	Currency string `json:"currency"`
}

// checkoutStatus maps orchestrator errors onto HTTP statuses
func checkoutStatus(err error) int {
	switch {
	case errors.Is(err, payment.ErrUnknownProvider), errors.Is(err, payment.ErrUnsupportedCurrency):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrIntentCreation):
		return http.StatusBadGateway
	case errors.Is(err, checkout.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, checkout.ErrStaleAttempt),
		errors.Is(err, checkout.ErrInvalidTransition),
		errors.Is(err, checkout.ErrCaptureInFlight):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondCheckout(c *gin.Context, attempt checkout.Attempt, err error) {
	if err == nil {
		c.JSON(http.StatusOK, attempt)
		return
	}

	body := gin.H{"error": err.Error(), "checkout": attempt}
	if cerr, ok := checkout.AsError(err); ok {
		body["error"] = cerr.Code()
		body["message"] = cerr.Message
	}
	c.JSON(checkoutStatus(err), body)
}

func (h *Handler) currentCheckout(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).Checkout.Current())
}

func (h *Handler) beginCheckout(c *gin.Context) {
	var req BeginCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	currency := h.deps.DefaultCurrency
	if req.Currency != "" {
		parsed, err := payment.ParseCurrency(req.Currency)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		currency = parsed
	}

	s := currentSession(c)
	if s.Cart.Count() == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
		return
	}

	attempt, err := s.Checkout.Begin(c.Request.Context(), checkout.BeginRequest{
		Provider: req.Provider,
		Amount:   s.Cart.Total(),
		Currency: currency,
		Items:    s.Cart.Items(),
		Locale:   locale(c),
	})
	h.respondCheckout(c, attempt, err)
}

func (h *Handler) approveCheckout(c *gin.Context) {
	attempt, err := currentSession(c).Checkout.Approve(c.Param("attemptId"))
	h.respondCheckout(c, attempt, err)
}

func (h *Handler) captureCheckout(c *gin.Context) {
	attempt, err := currentSession(c).Checkout.Capture(c.Request.Context(), c.Param("attemptId"), locale(c))
	h.respondCheckout(c, attempt, err)
}

func (h *Handler) cancelCheckout(c *gin.Context) {
	attempt, err := currentSession(c).Checkout.Cancel(c.Request.Context(), c.Param("attemptId"), locale(c))
	h.respondCheckout(c, attempt, err)
}

func (h *Handler) resetCheckout(c *gin.Context) {
	currentSession(c).Checkout.Reset()
	c.Status(http.StatusNoContent)
}

// listOrders returns the visitor's completed orders
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.deps.Orders.GetOrdersBySession(c.Request.Context(), currentSession(c).ID)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder backs the order-confirmation view. Other sessions' orders are reported as missing.
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return
	}

	order, err := h.deps.Orders.GetOrderByID(c.Request.Context(), orderID)
	if err != nil && !errors.Is(err, store.ErrOrderNotFound) {
		h.logger.Error("Failed to load order", zap.Int64("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load order"})
		return
	}
	if order == nil || order.SessionID != currentSession(c).ID {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
	})
}
