package api

import (
	"net/http"

	"storefront/internal/models"
	"storefront/internal/wishlist"

	"github.com/gin-gonic/gin"
)

// SubscribeRequest names the channels to notify on restock. At least one is required.
type SubscribeRequest struct {
	Email string `json:"email" binding:"omitempty,email"`
	Line  string `json:"line"`
}

func wishlistView(m *wishlist.Manager) gin.H {
	return gin.H{
		"items":         m.Items(),
		"subscriptions": m.Subscriptions(),
	}
}

func (h *Handler) getWishlist(c *gin.Context) {
	c.JSON(http.StatusOK, wishlistView(currentSession(c).Wishlist))
}

func (h *Handler) clearWishlist(c *gin.Context) {
	m := currentSession(c).Wishlist
	m.ClearWishlist(c.Request.Context())
	c.JSON(http.StatusOK, wishlistView(m))
}

func (h *Handler) addToWishlist(c *gin.Context) {
	req, ok := bindProduct(c)
	if !ok {
		return
	}

	m := currentSession(c).Wishlist
	m.AddToWishlist(models.WishlistItem{
		ID:       req.ID,
		Name:     req.Name,
		Image:    req.Image,
		Price:    req.Price,
		Category: req.Category,
	})
	c.JSON(http.StatusOK, wishlistView(m))
}

func (h *Handler) isInWishlist(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "inWishlist": currentSession(c).Wishlist.IsInWishlist(id)})
}

func (h *Handler) removeFromWishlist(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	m := currentSession(c).Wishlist
	m.RemoveFromWishlist(c.Request.Context(), id)
	c.JSON(http.StatusOK, wishlistView(m))
}

func (h *Handler) subscribeNotification(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Email == "" && req.Line == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email or LINE id is required"})
		return
	}

	sub := currentSession(c).Wishlist.SubscribeNotification(c.Request.Context(), id, req.Email, req.Line)
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) removeNotification(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	m := currentSession(c).Wishlist
	m.RemoveNotification(c.Request.Context(), id)
	c.JSON(http.StatusOK, wishlistView(m))
}
