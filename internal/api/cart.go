package api

import (
	"net/http"

	"storefront/internal/cart"
	"storefront/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ProductRequest is the product snapshot the storefront sends when saving an item
type ProductRequest struct {
	ID       int64           `json:"id" binding:"required,gt=0"`
	Name     string          `json:"name" binding:"required"`
	Image    string          `json:"image"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

// UpdateQuantityRequest sets a cart line's quantity. Zero or less removes it.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func cartView(m *cart.Manager) gin.H {
	return gin.H{
		"items": m.Items(),
		"count": m.Count(),
		"total": m.Total().StringFixed(2),
	}
}

func bindProduct(c *gin.Context) (ProductRequest, bool) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return req, false
	}
	if req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price must not be negative"})
		return req, false
	}
	return req, true
}

func (h *Handler) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, cartView(currentSession(c).Cart))
}

func (h *Handler) clearCart(c *gin.Context) {
	m := currentSession(c).Cart
	m.ClearCart()
	c.JSON(http.StatusOK, cartView(m))
}

func (h *Handler) addToCart(c *gin.Context) {
	req, ok := bindProduct(c)
	if !ok {
		return
	}

	m := currentSession(c).Cart
	m.AddToCart(models.CartItem{
		ID:       req.ID,
		Name:     req.Name,
		Image:    req.Image,
		Price:    req.Price,
		Category: req.Category,
	})
	c.JSON(http.StatusOK, cartView(m))
}

func (h *Handler) isInCart(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "inCart": currentSession(c).Cart.IsInCart(id)})
}

func (h *Handler) updateQuantity(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	m := currentSession(c).Cart
	m.UpdateQuantity(id, *req.Quantity)
	c.JSON(http.StatusOK, cartView(m))
}

func (h *Handler) removeFromCart(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	m := currentSession(c).Cart
	m.RemoveFromCart(id)
	c.JSON(http.StatusOK, cartView(m))
}
