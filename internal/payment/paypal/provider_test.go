package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"storefront/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayPal struct {
	*httptest.Server
	tokenCalls   atomic.Int32
	captureCalls atomic.Int32
	lastOrder    createOrderRequest
	captureCode  int
	captureBody  string
	rejectToken  bool
}

func newFakePayPal(t *testing.T) *fakePayPal {
	f := &fakePayPal{
		captureCode: http.StatusCreated,
		captureBody: `{"id":"ORDER-1","status":"COMPLETED"}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if f.rejectToken || !ok || user != "client" || pass != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&f.lastOrder); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if f.lastOrder.PurchaseUnits[0].Amount.Value == "13.13" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","message":"The requested action could not be performed."}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ORDER-1","status":"CREATED"}`))
	})
	mux.HandleFunc("/v2/checkout/orders/ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
		f.captureCalls.Add(1)
		w.WriteHeader(f.captureCode)
		_, _ = w.Write([]byte(f.captureBody))
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakePayPal) provider() *Provider {
	return NewProvider(context.Background(), Config{
		ClientID:     "client",
		ClientSecret: "secret",
		BaseURL:      f.URL + "/",
	})
}

func TestCreateIntentUsesMajorUnits(t *testing.T) {
	f := newFakePayPal(t)
	p := f.provider()

	intent, err := p.CreateIntent(context.Background(), decimal.RequireFromString("19.9"), payment.CNY,
		map[string]string{"reference_id": "attempt-1"})
	require.NoError(t, err)

	assert.Equal(t, "ORDER-1", intent.ProviderID)
	assert.Empty(t, intent.ClientSecret)
	assert.Equal(t, "CAPTURE", f.lastOrder.Intent)
	assert.Equal(t, "19.90", f.lastOrder.PurchaseUnits[0].Amount.Value)
	assert.Equal(t, "CNY", f.lastOrder.PurchaseUnits[0].Amount.CurrencyCode)
	assert.Equal(t, "attempt-1", f.lastOrder.PurchaseUnits[0].ReferenceID)
}

func TestTokenIsReused(t *testing.T) {
	f := newFakePayPal(t)
	p := f.provider()

	_, err := p.CreateIntent(context.Background(), decimal.NewFromInt(1), payment.USD, nil)
	require.NoError(t, err)
	_, err = p.Capture(context.Background(), "ORDER-1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestCreateIntentRejectsNonPositiveAmount(t *testing.T) {
	f := newFakePayPal(t)

	_, err := f.provider().CreateIntent(context.Background(), decimal.NewFromInt(-1), payment.USD, nil)

	assert.ErrorIs(t, err, payment.ErrInvalidAmount)
	assert.Equal(t, int32(0), f.tokenCalls.Load())
}

func TestCreateIntentProviderRejection(t *testing.T) {
	f := newFakePayPal(t)

	_, err := f.provider().CreateIntent(context.Background(), decimal.RequireFromString("13.13"), payment.USD, nil)

	var perr *payment.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusUnprocessableEntity, perr.StatusCode)
	assert.Equal(t, "The requested action could not be performed.", perr.Message)
}

func TestCreateIntentBadCredentials(t *testing.T) {
	f := newFakePayPal(t)
	f.rejectToken = true

	_, err := f.provider().CreateIntent(context.Background(), decimal.NewFromInt(10), payment.USD, nil)

	var perr *payment.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
}

func TestCaptureCompleted(t *testing.T) {
	f := newFakePayPal(t)

	result, err := f.provider().Capture(context.Background(), "ORDER-1")
	require.NoError(t, err)

	assert.True(t, result.Completed())
	assert.Equal(t, "ORDER-1", result.ProviderID)
}

func TestCapturePendingIsNotCompleted(t *testing.T) {
	f := newFakePayPal(t)
	f.captureBody = `{"id":"ORDER-1","status":"PAYER_ACTION_REQUIRED"}`

	result, err := f.provider().Capture(context.Background(), "ORDER-1")
	require.NoError(t, err)

	assert.False(t, result.Completed())
	assert.Equal(t, "PAYER_ACTION_REQUIRED", result.Status)
}

func TestCaptureNon2xx(t *testing.T) {
	f := newFakePayPal(t)
	f.captureCode = http.StatusInternalServerError
	f.captureBody = `oops`

	_, err := f.provider().Capture(context.Background(), "ORDER-1")

	var perr *payment.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusInternalServerError, perr.StatusCode)
	assert.Equal(t, "Internal Server Error", perr.Message)
	assert.Equal(t, int32(1), f.captureCalls.Load())
}
