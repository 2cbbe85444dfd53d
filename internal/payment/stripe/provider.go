package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/payment"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// IntentAPI is the slice of the Stripe PaymentIntents API the provider uses.
// *paymentintent.Client satisfies it.
type IntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
}

// Provider creates Stripe PaymentIntents in minor currency units.
type Provider struct {
	api    IntentAPI
	logger *zap.Logger
}

// NewProvider builds a provider talking to the live Stripe API with secretKey.
func NewProvider(secretKey string) *Provider {
	return NewProviderWithAPI(&paymentintent.Client{
		B:   stripe.GetBackend(stripe.APIBackend),
		Key: secretKey,
	})
}

// NewProviderWithAPI builds a provider on top of api.
func NewProviderWithAPI(api IntentAPI) *Provider {
	return &Provider{
		api:    api,
		logger: util.GetLogger(),
	}
}

func (p *Provider) Name() string { return payment.ProviderStripe }

// CreateIntent creates a PaymentIntent for amount and returns its client secret.
func (p *Provider) CreateIntent(ctx context.Context, amount decimal.Decimal, currency payment.Currency, metadata map[string]string) (*payment.Intent, error) {
	if err := payment.ValidateAmount(amount); err != nil {
		return nil, err
	}

	ctx, span := util.StartSpan(ctx, "StripeProvider.CreateIntent",
		attribute.String("currency", string(currency)))
	defer span.End()

	minor := payment.MinorUnits(amount)
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minor),
		Currency: stripe.String(currency.Lower()),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	start := time.Now()
	pi, err := p.api.New(params)
	util.ProviderCallLatency.WithLabelValues(payment.ProviderStripe, "create").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, translateError(err)
	}

	p.logger.Info("Stripe payment intent created",
		zap.String("intent_id", pi.ID),
		zap.Int64("amount_minor", minor))

	return &payment.Intent{
		ProviderID:   pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       payment.FromMinorUnits(pi.Amount),
		Currency:     currency,
		Status:       intentStatus(pi.Status),
	}, nil
}

// Capture finalizes the intent. An intent the client already confirmed is
// reported as completed; one held for manual capture is captured first.
func (p *Provider) Capture(ctx context.Context, providerID string) (*payment.CaptureResult, error) {
	ctx, span := util.StartSpan(ctx, "StripeProvider.Capture",
		attribute.String("intent_id", providerID))
	defer span.End()

	start := time.Now()
	defer func() {
		util.ProviderCallLatency.WithLabelValues(payment.ProviderStripe, "capture").Observe(time.Since(start).Seconds())
	}()

	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = ctx
	pi, err := p.api.Get(providerID, getParams)
	if err != nil {
		return nil, translateError(err)
	}

	if pi.Status == stripe.PaymentIntentStatusRequiresCapture {
		captureParams := &stripe.PaymentIntentCaptureParams{}
		captureParams.Context = ctx
		pi, err = p.api.Capture(providerID, captureParams)
		if err != nil {
			return nil, translateError(err)
		}
	}

	result := &payment.CaptureResult{
		ProviderID: pi.ID,
		Status:     captureStatus(pi.Status),
	}

	p.logger.Info("Stripe payment intent checked",
		zap.String("intent_id", pi.ID),
		zap.String("stripe_status", string(pi.Status)))

	return result, nil
}

func captureStatus(s stripe.PaymentIntentStatus) string {
	if s == stripe.PaymentIntentStatusSucceeded {
		return payment.CaptureStatusCompleted
	}
	return strings.ToUpper(string(s))
}

func intentStatus(s stripe.PaymentIntentStatus) payment.IntentStatus {
	switch s {
	case stripe.PaymentIntentStatusRequiresCapture:
		return payment.IntentPendingCapture
	case stripe.PaymentIntentStatusSucceeded:
		return payment.IntentCompleted
	case stripe.PaymentIntentStatusCanceled:
		return payment.IntentCancelled
	default:
		return payment.IntentCreated
	}
}

func translateError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		status := stripeErr.HTTPStatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		return &payment.ProviderError{
			Provider:   payment.ProviderStripe,
			StatusCode: status,
			Message:    stripeErr.Msg,
		}
	}
	return fmt.Errorf("stripe request failed: %w", err)
}
