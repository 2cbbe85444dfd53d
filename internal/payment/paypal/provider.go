package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/payment"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const maxErrorBody = 4 << 10

// Config holds the REST credentials for one PayPal environment.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// Provider creates and captures PayPal Checkout orders in major currency units.
type Provider struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewProvider builds a provider whose HTTP client fetches and refreshes an
// OAuth2 client-credentials token on its own.
func NewProvider(ctx context.Context, cfg Config) *Provider {
	base := strings.TrimRight(cfg.BaseURL, "/")
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	client := cc.Client(ctx)
	client.Timeout = 30 * time.Second

	return &Provider{
		baseURL: base,
		client:  client,
		logger:  util.GetLogger(),
	}
}

func (p *Provider) Name() string { return payment.ProviderPayPal }

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      amount `json:"amount"`
}

type createOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Desc    string `json:"error_description"`
}

// CreateIntent creates a CAPTURE-intent order for amount.
// metadata keys reference_id, custom_id and description map onto the purchase unit.
func (p *Provider) CreateIntent(ctx context.Context, amt decimal.Decimal, currency payment.Currency, metadata map[string]string) (*payment.Intent, error) {
	if err := payment.ValidateAmount(amt); err != nil {
		return nil, err
	}

	ctx, span := util.StartSpan(ctx, "PayPalProvider.CreateIntent",
		attribute.String("currency", string(currency)))
	defer span.End()

	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: metadata["reference_id"],
			CustomID:    metadata["custom_id"],
			Description: metadata["description"],
			Amount: amount{
				CurrencyCode: string(currency),
				Value:        payment.MajorUnits(amt),
			},
		}},
	}

	var order orderResponse
	start := time.Now()
	err := p.do(ctx, "/v2/checkout/orders", body, &order)
	util.ProviderCallLatency.WithLabelValues(payment.ProviderPayPal, "create").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, &payment.ProviderError{
			Provider:   payment.ProviderPayPal,
			StatusCode: http.StatusBadGateway,
			Message:    "order response carried no id",
		}
	}

	p.logger.Info("PayPal order created",
		zap.String("order_id", order.ID),
		zap.String("amount", body.PurchaseUnits[0].Amount.Value))

	return &payment.Intent{
		ProviderID: order.ID,
		Amount:     amt.Round(2),
		Currency:   currency,
		Status:     payment.IntentCreated,
	}, nil
}

// Capture captures an approved order and reports PayPal's order status.
func (p *Provider) Capture(ctx context.Context, providerID string) (*payment.CaptureResult, error) {
	ctx, span := util.StartSpan(ctx, "PayPalProvider.Capture",
		attribute.String("order_id", providerID))
	defer span.End()

	var order orderResponse
	start := time.Now()
	err := p.do(ctx, "/v2/checkout/orders/"+url.PathEscape(providerID)+"/capture", struct{}{}, &order)
	util.ProviderCallLatency.WithLabelValues(payment.ProviderPayPal, "capture").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	p.logger.Info("PayPal order captured",
		zap.String("order_id", providerID),
		zap.String("status", order.Status))

	id := order.ID
	if id == "" {
		id = providerID
	}
	return &payment.CaptureResult{ProviderID: id, Status: order.Status}, nil
}

func (p *Provider) do(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode paypal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build paypal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := p.client.Do(req)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			status := http.StatusBadGateway
			if rerr.Response != nil {
				status = rerr.Response.StatusCode
			}
			return &payment.ProviderError{
				Provider:   payment.ProviderPayPal,
				StatusCode: status,
				Message:    "oauth token request rejected",
			}
		}
		return fmt.Errorf("paypal request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode paypal response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := http.StatusText(resp.StatusCode)
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil {
		switch {
		case er.Message != "":
			msg = er.Message
		case er.Desc != "":
			msg = er.Desc
		case er.Name != "":
			msg = er.Name
		case er.Error != "":
			msg = er.Error
		}
	}

	return &payment.ProviderError{
		Provider:   payment.ProviderPayPal,
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
}
