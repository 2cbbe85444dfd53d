// Package payment defines the capability shared by every payment backend the
// checkout can negotiate with.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Provider names
const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

// CaptureStatusCompleted is the only capture status that finalizes an order.
const CaptureStatusCompleted = "COMPLETED"

var (
	ErrInvalidAmount       = errors.New("payment: amount must be greater than zero")
	ErrUnsupportedCurrency = errors.New("payment: unsupported currency")
	ErrUnknownProvider     = errors.New("payment: unknown provider")
)

// Currency is an ISO 4217 code.
type Currency string

const (
	USD Currency = "USD"
	CNY Currency = "CNY"
	HKD Currency = "HKD"
	EUR Currency = "EUR"
)

// ParseCurrency normalizes code and checks it is supported.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	switch c {
	case USD, CNY, HKD, EUR:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
}

// Lower is the lowercase code some provider APIs expect.
func (c Currency) Lower() string { return strings.ToLower(string(c)) }

// MinorUnits converts a major-unit amount to an integer count of the
// currency's smallest unit, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts an integer minor-unit amount back to major units.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// MajorUnits renders amount with exactly two decimals.
func MajorUnits(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// ValidateAmount rejects non-positive amounts and amounts that round to zero minor units.
func ValidateAmount(amount decimal.Decimal) error {
	if MinorUnits(amount) <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IntentStatus is the provider-agnostic lifecycle of a payment intent.
type IntentStatus string

const (
	IntentCreated        IntentStatus = "created"
	IntentPendingCapture IntentStatus = "pending_capture"
	IntentCompleted      IntentStatus = "completed"
	IntentFailed         IntentStatus = "failed"
	IntentCancelled      IntentStatus = "cancelled"
)

// Intent is the provider's record of an in-progress charge.
type Intent struct {
	ProviderID   string          `json:"providerId"`
	ClientSecret string          `json:"clientSecret,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     Currency        `json:"currency"`
	Status       IntentStatus    `json:"status"`
}

// CaptureResult is what the provider reported when asked to finalize an intent.
type CaptureResult struct {
	ProviderID string `json:"providerId"`
	Status     string `json:"status"`
}

// Completed reports whether the capture moved the money.
func (r *CaptureResult) Completed() bool {
	return r != nil && r.Status == CaptureStatusCompleted
}

// Provider negotiates and finalizes payment intents with one payment backend.
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency Currency, metadata map[string]string) (*Intent, error)
	Capture(ctx context.Context, providerID string) (*CaptureResult, error)
}

// ProviderError is a non-2xx answer from a payment backend.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Message)
}

// ClientFault reports whether the provider rejected the request itself.
func (e *ProviderError) ClientFault() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Registry looks providers up by name.
type Registry map[string]Provider

// NewRegistry indexes providers by their Name.
func NewRegistry(providers ...Provider) Registry {
	r := make(Registry, len(providers))
	for _, p := range providers {
		if p != nil {
			r[p.Name()] = p
		}
	}
	return r
}

// Get returns the provider called name.
func (r Registry) Get(name string) (Provider, error) {
	p, ok := r[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}
