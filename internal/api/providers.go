package api

import (
	"errors"
	"net/http"

	"storefront/internal/payment"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StripeIntentRequest carries the amount in minor units, as Stripe.js sends it
type StripeIntentRequest struct {
	Amount   int64  `json:"amount" binding:"required"`
	Currency string `json:"currency"`
}

// PayPalOrderRequest carries the amount in major units
type PayPalOrderRequest struct {
	Amount    decimal.Decimal   `json:"amount"`
	Currency  string            `json:"currency"`
	OrderData map[string]string `json:"orderData"`
}

// providerStatus maps provider backend errors: 400 for bad input or a
// provider 4xx, 500 for everything else
func providerStatus(err error) int {
	if errors.Is(err, payment.ErrInvalidAmount) || errors.Is(err, payment.ErrUnsupportedCurrency) {
		return http.StatusBadRequest
	}
	var perr *payment.ProviderError
	if errors.As(err, &perr) && perr.ClientFault() {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) providerError(c *gin.Context, provider string, err error) {
	status := providerStatus(err)
	if status >= 500 {
		h.logger.Error("Payment provider call failed", zap.String("provider", provider), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) currencyOrDefault(code string) (payment.Currency, error) {
	if code == "" {
		return h.deps.DefaultCurrency, nil
	}
	return payment.ParseCurrency(code)
}

func (h *Handler) createStripeIntent(c *gin.Context) {
	var req StripeIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	currency, err := h.currencyOrDefault(req.Currency)
	if err != nil {
		h.providerError(c, payment.ProviderStripe, err)
		return
	}

	provider, err := h.deps.Providers.Get(payment.ProviderStripe)
	if err != nil {
		h.providerError(c, payment.ProviderStripe, err)
		return
	}

	intent, err := provider.CreateIntent(c.Request.Context(), payment.FromMinorUnits(req.Amount), currency, nil)
	if err != nil {
		h.providerError(c, payment.ProviderStripe, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"client_secret": intent.ClientSecret,
		"id":            intent.ProviderID,
	})
}

func (h *Handler) createPayPalOrder(c *gin.Context) {
	var req PayPalOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	currency, err := h.currencyOrDefault(req.Currency)
	if err != nil {
		h.providerError(c, payment.ProviderPayPal, err)
		return
	}

	provider, err := h.deps.Providers.Get(payment.ProviderPayPal)
	if err != nil {
		h.providerError(c, payment.ProviderPayPal, err)
		return
	}

	intent, err := provider.CreateIntent(c.Request.Context(), req.Amount, currency, req.OrderData)
	if err != nil {
		h.providerError(c, payment.ProviderPayPal, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": intent.ProviderID})
}

func (h *Handler) capturePayPalOrder(c *gin.Context) {
	provider, err := h.deps.Providers.Get(payment.ProviderPayPal)
	if err != nil {
		h.providerError(c, payment.ProviderPayPal, err)
		return
	}

	result, err := provider.Capture(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.providerError(c, payment.ProviderPayPal, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": result.Status})
}
