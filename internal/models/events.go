package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeCheckoutCompleted = "CHECKOUT_COMPLETED"
	EventTypeCheckoutFailed    = "CHECKOUT_FAILED"
	EventTypeCheckoutCancelled = "CHECKOUT_CANCELLED"
	EventTypeProductRestocked  = "PRODUCT_RESTOCKED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutEvent is published when a checkout attempt reaches a terminal state
type CheckoutEvent struct {
	BaseEvent
	SessionID   string          `json:"session_id"`
	AttemptID   string          `json:"attempt_id"`
	Provider    string          `json:"provider"`
	ProviderRef string          `json:"provider_ref,omitempty"`
	OrderID     int64           `json:"order_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Reason      string          `json:"reason,omitempty"`
}

// ProductRestockedEvent is consumed from the inventory topic
type ProductRestockedEvent struct {
	BaseEvent
	ProductID int64 `json:"product_id"`
	Available int   `json:"available"`
}
