package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"storefront/internal/catalog"
	"storefront/internal/clientstate"
	"storefront/internal/i18n"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/session"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name          string
	createErr     error
	captureErr    error
	captureStatus string
	lastAmount    decimal.Decimal
	lastCurrency  payment.Currency
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) CreateIntent(_ context.Context, amount decimal.Decimal, currency payment.Currency, _ map[string]string) (*payment.Intent, error) {
	p.lastAmount = amount
	p.lastCurrency = currency
	if p.createErr != nil {
		return nil, p.createErr
	}
	if err := payment.ValidateAmount(amount); err != nil {
		return nil, err
	}
	intent := &payment.Intent{ProviderID: p.name + "-1", Amount: amount, Currency: currency, Status: payment.IntentCreated}
	if p.name == payment.ProviderStripe {
		intent.ClientSecret = "pi_secret"
	}
	return intent, nil
}

func (p *stubProvider) Capture(_ context.Context, id string) (*payment.CaptureResult, error) {
	if p.captureErr != nil {
		return nil, p.captureErr
	}
	status := p.captureStatus
	if status == "" {
		status = payment.CaptureStatusCompleted
	}
	return &payment.CaptureResult{ProviderID: id, Status: status}, nil
}

type memoryOrders struct {
	mu     sync.Mutex
	orders map[int64]*models.Order
}

func (m *memoryOrders) CreateOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.ID = int64(len(m.orders) + 1)
	order.CreatedAt = time.Now()
	m.orders[order.ID] = order
	return nil
}

func (m *memoryOrders) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	return o, nil
}

func (m *memoryOrders) GetOrdersBySession(_ context.Context, sessionID string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if o.SessionID == sessionID {
			out = append(out, *o)
		}
	}
	return out, nil
}

type stubCatalog struct{ lastQuery catalog.Query }

func (s *stubCatalog) List(_ context.Context, q catalog.Query) catalog.Result {
	s.lastQuery = q
	return catalog.Result{Products: catalog.Defaults(q.Tag, q.Limit), Source: catalog.SourceDefaults}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testEnv struct {
	router  *gin.Engine
	stripe  *stubProvider
	paypal  *stubProvider
	orders  *memoryOrders
	catalog *stubCatalog
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		stripe:  &stubProvider{name: payment.ProviderStripe},
		paypal:  &stubProvider{name: payment.ProviderPayPal},
		orders:  &memoryOrders{orders: map[int64]*models.Order{}},
		catalog: &stubCatalog{},
	}
	providers := payment.NewRegistry(env.stripe, env.paypal)

	sessions := session.NewRegistry(session.Deps{
		Backend:   clientstate.NewMemoryBackend(),
		Providers: providers,
		Orders:    env.orders,
	})

	handler := NewHandler(Deps{
		Sessions:  sessions,
		Tokens:    session.NewTokens("test-secret", "test", time.Hour),
		Catalog:   env.catalog,
		Orders:    env.orders,
		Providers: providers,
	})

	env.router = gin.New()
	handler.SetupRoutes(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(SessionHeader, token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// newVisitor opens a session and returns its token
func (e *testEnv) newVisitor(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodGet, "/api/v1/cart", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	token := w.Header().Get(SessionHeader)
	require.NotEmpty(t, token)
	return token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func labubu() gin.H {
	return gin.H{"id": 1, "name": "Labubu", "image": "/l.jpg", "price": "19.99", "category": "figures"}
}

func TestHealthCheck(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessReportsFailedDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(Deps{ReadyChecks: map[string]Pinger{"redis": failingPinger{}}})
	router := gin.New()
	h.SetupRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis")
}

func TestSessionTokenIsIssuedAndReused(t *testing.T) {
	env := setupRouter(t)
	token := env.newVisitor(t)

	w := env.do(t, http.MethodPost, "/api/v1/cart/items", token, labubu())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(SessionHeader))

	w = env.do(t, http.MethodGet, "/api/v1/cart", token, nil)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	// a tampered token starts over with an empty cart
	w = env.do(t, http.MethodGet, "/api/v1/cart", token+"x", nil)
	assert.NotEmpty(t, w.Header().Get(SessionHeader))
	assert.Equal(t, float64(0), decode(t, w)["count"])
}

func TestCartFlow(t *testing.T) {
	env := setupRouter(t)
	token := env.newVisitor(t)

	env.do(t, http.MethodPost, "/api/v1/cart/items", token, labubu())
	w := env.do(t, http.MethodPost, "/api/v1/cart/items", token, labubu())
	body := decode(t, w)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, "39.98", body["total"])

	w = env.do(t, http.MethodGet, "/api/v1/cart/items/1", token, nil)
	assert.Equal(t, true, decode(t, w)["inCart"])

	w = env.do(t, http.MethodPut, "/api/v1/cart/items/1", token, gin.H{"quantity": 5})
	assert.Equal(t, float64(5), decode(t, w)["count"])

	w = env.do(t, http.MethodPut, "/api/v1/cart/items/1", token, gin.H{"quantity": 0})
	assert.Equal(t, float64(0), decode(t, w)["count"])

	w = env.do(t, http.MethodGet, "/api/v1/cart/items/1", token, nil)
	assert.Equal(t, false, decode(t, w)["inCart"])
}

func TestCartValidation(t *testing.T) {
	env := setupRouter(t)
	token := env.newVisitor(t)

	w := env.do(t, http.MethodPost, "/api/v1/cart/items", token, gin.H{"name": "no id"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/cart/items", token, gin.H{"id": 1, "name": "x", "price": "-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/cart/items/abc", token, gin.H{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/cart/items/1", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWishlistFlow(t *testing.T) {
	env := setupRouter(t)
	token := env.newVisitor(t)

	env.do(t, http.MethodPost, "/api/v1/wishlist/items", token, labubu())

	w := env.do(t, http.MethodPost, "/api/v1/wishlist/items/1/notification", token, gin.H{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/wishlist/items/1/notification", token, gin.H{"line": "line123"})
	sub := decode(t, w)
	assert.Equal(t, "a@x.com", sub["email"])
	assert.Equal(t, "line123", sub["line"])
	assert.Equal(t, false, sub["notified"])

	w = env.do(t, http.MethodDelete, "/api/v1/wishlist/items/1", token, nil)
	body := decode(t, w)
	assert.Empty(t, body["items"])
	assert.Empty(t, body["subscriptions"])
}

func TestSubscribeValidation(t *testing.T) {
	env := setupRouter(t)
	token := env.newVisitor(t)

	w := env.do(t, http.MethodPost, "/api/v1/wishlist/items/1/notification", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/wishlist/items/1/notification", token, gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutCompletes(t *testing.T) {
	env := setupRouter(t)
	token := env.newVisitor(t)
	env.do(t, http.MethodPost, "/api/v1/cart/items", token, labubu())

	w := env.do(t, http.MethodPost, "/api/v1/checkout", token, gin.H{"provider": "paypal"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	attempt := decode(t, w)
	assert.Equal(t, "intent_created", attempt["state"])
	assert.Equal(t, "19.99", attempt["amount"])
	id := attempt["attemptId"].(string)

	w = env.do(t, http.MethodPost, "/api/v1/checkout/"+id+"/approve", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/checkout/"+id+"/capture", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decode(t, w)
	assert.Equal(t, "completed", done["state"])
	assert.Equal(t, "/order-confirmation/1", done["redirect"])
	assert.Equal(t, float64(1500), done["redirectAfterMs"])

	w = env.do(t, http.MethodGet, "/api/v1/cart", token, nil)
	assert.Equal(t, float64(0), decode(t, w)["count"])

	w = env.do(t, http.MethodGet, "/api/v1/orders/1", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/orders", token, nil)
	assert.Len(t, decode(t, w)["orders"], 1)

	other := env.newVisitor(t)
	w = env.do(t, http.MethodGet, "/api/v1/orders/1", other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckoutCaptureFailureIsLocalized(t *testing.T) {
	env := setupRouter(t)
	env.stripe.captureStatus = "REQUIRES_PAYMENT_METHOD"
	token := env.newVisitor(t)
	env.do(t, http.MethodPost, "/api/v1/cart/items", token, labubu())

	w := env.do(t, http.MethodPost, "/api/v1/checkout", token, gin.H{"provider": "stripe"})
	attempt := decode(t, w)
	assert.Equal(t, "pi_secret", attempt["clientSecret"])
	id := attempt["attemptId"].(string)

	env.do(t, http.MethodPost, "/api/v1/checkout/"+id+"/approve", token, nil)
	w = env.do(t, http.MethodPost, "/api/v1/checkout/"+id+"/capture?lang=zh", token, nil)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	body := decode(t, w)
	assert.Equal(t, "payment_failed", body["error"])
	assert.Equal(t, i18n.Message("zh", i18n.KeyFailed), body["message"])

	w = env.do(t, http.MethodGet, "/api/v1/cart", token, nil)
	assert.Equal(t, float64(1), decode(t, w)["count"])
}

func TestCheckoutCancelAndStaleAttempt(t *testing.T) {
	env := setupRouter(t)
	token := env.newVisitor(t)
	env.do(t, http.MethodPost, "/api/v1/cart/items", token, labubu())

	w := env.do(t, http.MethodPost, "/api/v1/checkout", token, gin.H{"provider": "paypal"})
	id := decode(t, w)["attemptId"].(string)

	w = env.do(t, http.MethodPost, "/api/v1/checkout/"+id+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", decode(t, w)["state"])

	w = env.do(t, http.MethodPost, "/api/v1/checkout/"+id+"/approve", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/checkout/unknown/capture", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/checkout", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/checkout", token, nil)
	assert.Equal(t, "idle", decode(t, w)["state"])
}

func TestCheckoutRejections(t *testing.T) {
	env := setupRouter(t)
	token := env.newVisitor(t)

	w := env.do(t, http.MethodPost, "/api/v1/checkout", token, gin.H{"provider": "paypal"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.do(t, http.MethodPost, "/api/v1/cart/items", token, labubu())

	w = env.do(t, http.MethodPost, "/api/v1/checkout", token, gin.H{"provider": "alipay"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/checkout", token, gin.H{"provider": "paypal", "currency": "JPY"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.paypal.createErr = &payment.ProviderError{Provider: "paypal", StatusCode: 500, Message: "down"}
	w = env.do(t, http.MethodPost, "/api/v1/checkout", token, gin.H{"provider": "paypal"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "intent_creation_failed", decode(t, w)["error"])
}

func TestStripeBackend(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodPost, "/api/v1/stripe/payment-intents", "", gin.H{"amount": 1999, "currency": "usd"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "pi_secret", body["client_secret"])
	assert.Equal(t, "stripe-1", body["id"])
	assert.Equal(t, "19.99", env.stripe.lastAmount.String())
	assert.Equal(t, payment.USD, env.stripe.lastCurrency)

	w = env.do(t, http.MethodPost, "/api/v1/stripe/payment-intents", "", gin.H{"amount": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/stripe/payment-intents", "", gin.H{"amount": 100, "currency": "XYZ"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayPalBackend(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodPost, "/api/v1/paypal/orders", "", gin.H{"amount": "25.5", "currency": "HKD"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paypal-1", decode(t, w)["id"])
	assert.Equal(t, payment.HKD, env.paypal.lastCurrency)

	w = env.do(t, http.MethodPost, "/api/v1/paypal/orders/paypal-1/capture", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "COMPLETED", decode(t, w)["status"])

	env.paypal.captureErr = &payment.ProviderError{Provider: "paypal", StatusCode: 422, Message: "ORDER_NOT_APPROVED"}
	w = env.do(t, http.MethodPost, "/api/v1/paypal/orders/paypal-1/capture", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.paypal.captureErr = errors.New("connection reset")
	w = env.do(t, http.MethodPost, "/api/v1/paypal/orders/paypal-1/capture", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w)["error"], "connection reset")
}

func TestListProducts(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodGet, "/api/v1/products?tag=hot&limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["data"], 1)
	assert.True(t, env.catalog.lastQuery.WithDefaults)
	assert.Equal(t, "hot", env.catalog.lastQuery.Tag)
}
