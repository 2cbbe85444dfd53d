package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is one product line in a visitor's cart
type CartItem struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Image    string          `json:"image"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Quantity int             `json:"quantity"`
}

// Key identifies the item inside its collection.
func (c CartItem) Key() int64 { return c.ID }

// Subtotal is price times quantity.
func (c CartItem) Subtotal() decimal.Decimal {
	return c.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// WishlistItem is a product saved for later
type WishlistItem struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Image    string          `json:"image"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	InStock  bool            `json:"inStock"`
}

func (w WishlistItem) Key() int64 { return w.ID }

// NotificationSubscription asks to be told when a wishlisted product is back in stock.
// Email and Line are optional contact channels.
type NotificationSubscription struct {
	ProductID int64  `json:"productId"`
	Email     string `json:"email,omitempty"`
	Line      string `json:"line,omitempty"`
	Notified  bool   `json:"notified"`
}

func (n NotificationSubscription) Key() int64 { return n.ProductID }

// LocalizedText carries the catalog's English and Chinese strings
type LocalizedText struct {
	EN string `json:"en"`
	ZH string `json:"zh"`
}

// Pick returns the text for lang, falling back to English.
func (t LocalizedText) Pick(lang string) string {
	if lang == "zh" && t.ZH != "" {
		return t.ZH
	}
	return t.EN
}

// Product represents a product in the content catalog
type Product struct {
	ID       int64           `json:"id"`
	Name     LocalizedText   `json:"name"`
	Image    string          `json:"image"`
	Price    decimal.Decimal `json:"price"`
	Category LocalizedText   `json:"category"`
	Tag      string          `json:"tag,omitempty"`
}

// Product tags
const (
	TagHot     = "hot"
	TagNew     = "new"
	TagLimited = "limited"
)

// Order is the durable record of a completed checkout
type Order struct {
	ID          int64           `db:"id" json:"id"`
	SessionID   string          `db:"session_id" json:"sessionId"`
	AttemptID   string          `db:"attempt_id" json:"attemptId"`
	Provider    string          `db:"provider" json:"provider"`
	ProviderRef string          `db:"provider_ref" json:"providerRef"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Currency    string          `db:"currency" json:"currency"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	Items       []OrderItem     `db:"-" json:"items"`
}

// OrderItem is a snapshot of a cart line at purchase time
type OrderItem struct {
	ID        int64           `db:"id" json:"-"`
	OrderID   int64           `db:"order_id" json:"-"`
	ProductID int64           `db:"product_id" json:"productId"`
	Name      string          `db:"name" json:"name"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unitPrice"`
}

// Order statuses
const (
	OrderStatusCompleted = "COMPLETED"
)
