// Package checkout drives one visitor's payment attempt from intent creation
// to a Completed, Failed or Cancelled outcome.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/internal/i18n"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// State of a checkout attempt.
type State string

const (
	StateIdle            State = "idle"
	StateIntentRequested State = "intent_requested"
	StateIntentCreated   State = "intent_created"
	StateApproved        State = "approved"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
	StateCancelled       State = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// DefaultConfirmationDelay leaves the success toast on screen before the
// order-confirmation redirect.
const DefaultConfirmationDelay = 1500 * time.Millisecond

// captureTimeout bounds a capture and the order recording that follows it.
const captureTimeout = 30 * time.Second

// Attempt is a snapshot of one checkout attempt.
type Attempt struct {
	ID              string            `json:"attemptId,omitempty"`
	State           State             `json:"state"`
	Provider        string            `json:"provider,omitempty"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        payment.Currency  `json:"currency,omitempty"`
	ProviderID      string            `json:"providerId,omitempty"`
	ClientSecret    string            `json:"clientSecret,omitempty"`
	OrderID         int64             `json:"orderId,omitempty"`
	Message         string            `json:"message,omitempty"`
	Error           string            `json:"error,omitempty"`
	Redirect        string            `json:"redirect,omitempty"`
	RedirectAfterMs int64             `json:"redirectAfterMs,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	Items           []models.CartItem `json:"-"`

	capturing bool
}

func (a *Attempt) snapshot() Attempt {
	s := *a
	s.Items = append([]models.CartItem(nil), a.Items...)
	s.capturing = false
	return s
}

// BeginRequest describes the charge a new attempt negotiates.
type BeginRequest struct {
	Provider string
	Amount   decimal.Decimal
	Currency payment.Currency
	Items    []models.CartItem
	Locale   string
}

// OrderRecorder persists the order of a completed attempt and assigns its id.
type OrderRecorder interface {
	CreateOrder(ctx context.Context, order *models.Order) error
}

// EventPublisher announces terminal checkout outcomes.
type EventPublisher interface {
	PublishCheckoutEvent(ctx context.Context, event *models.CheckoutEvent) error
}

// Orchestrator owns the single current checkout attempt of one session.
// Provider calls run without holding the lock; every response is checked
// against the attempt id that issued it before it touches state.
type Orchestrator struct {
	mu           sync.Mutex
	current      *Attempt
	sessionID    string
	providers    payment.Registry
	orders       OrderRecorder
	events       EventPublisher
	confirmDelay time.Duration
	onCompleted  []func(Attempt)
	logger       *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithOrderRecorder(r OrderRecorder) Option {
	return func(o *Orchestrator) { o.orders = r }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

func WithConfirmationDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.confirmDelay = d }
}

// OnCompleted registers fn to run after the current attempt completes.
// It is not called for captures whose attempt was reset meanwhile.
func OnCompleted(fn func(Attempt)) Option {
	return func(o *Orchestrator) { o.onCompleted = append(o.onCompleted, fn) }
}

// NewOrchestrator creates an idle orchestrator for sessionID.
func NewOrchestrator(sessionID string, providers payment.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessionID:    sessionID,
		providers:    providers,
		confirmDelay: DefaultConfirmationDelay,
		logger:       util.GetLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Current returns the current attempt, or an Idle snapshot when there is none.
func (o *Orchestrator) Current() Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return Attempt{State: StateIdle}
	}
	return o.current.snapshot()
}

// Begin supersedes any previous attempt and asks the provider for an intent.
func (o *Orchestrator) Begin(ctx context.Context, req BeginRequest) (Attempt, error) {
	provider, err := o.providers.Get(req.Provider)
	if err != nil {
		return Attempt{State: StateIdle}, err
	}

	ctx, span := util.StartSpan(ctx, "Orchestrator.Begin",
		attribute.String("session_id", o.sessionID),
		attribute.String("provider", provider.Name()))
	defer span.End()

	o.mu.Lock()
	if o.current != nil && o.current.capturing {
		o.mu.Unlock()
		return o.Current(), ErrCaptureInFlight
	}
	attempt := &Attempt{
		ID:        uuid.New().String(),
		State:     StateIntentRequested,
		Provider:  provider.Name(),
		Amount:    req.Amount,
		Currency:  req.Currency,
		CreatedAt: time.Now(),
		Items:     append([]models.CartItem(nil), req.Items...),
	}
	o.current = attempt
	attemptID := attempt.ID
	o.mu.Unlock()

	util.CheckoutAttemptsTotal.WithLabelValues(provider.Name()).Inc()
	o.logger.Info("Checkout attempt started",
		zap.String("session_id", o.sessionID),
		zap.String("attempt_id", attemptID),
		zap.String("provider", provider.Name()),
		zap.String("amount", req.Amount.String()))

	intent, err := provider.CreateIntent(ctx, req.Amount, req.Currency, map[string]string{
		"reference_id": attemptID,
		"custom_id":    o.sessionID,
		"attempt_id":   attemptID,
		"session_id":   o.sessionID,
	})

	o.mu.Lock()
	if o.current == nil || o.current.ID != attemptID || o.current.State != StateIntentRequested {
		o.mu.Unlock()
		util.CheckoutStaleResponsesTotal.WithLabelValues(provider.Name(), "create").Inc()
		o.logger.Info("Discarding intent response for stale attempt",
			zap.String("session_id", o.sessionID),
			zap.String("attempt_id", attemptID))
		return o.Current(), ErrStaleAttempt
	}

	if err != nil {
		o.current = nil
		o.mu.Unlock()

		cerr := &Error{Kind: ErrIntentCreation, Message: i18n.Message(req.Locale, i18n.KeyIntentFailed), Err: err}
		o.logger.Error("Failed to create payment intent",
			zap.String("session_id", o.sessionID),
			zap.String("attempt_id", attemptID),
			zap.Error(err))
		util.CheckoutOutcomesTotal.WithLabelValues(provider.Name(), string(StateFailed)).Inc()
		o.publish(ctx, models.EventTypeCheckoutFailed, attempt.snapshot(), err.Error())

		return Attempt{State: StateIdle, Message: cerr.Message, Error: cerr.Code()}, cerr
	}

	attempt.State = StateIntentCreated
	attempt.ProviderID = intent.ProviderID
	attempt.ClientSecret = intent.ClientSecret
	if !intent.Amount.IsZero() {
		attempt.Amount = intent.Amount
	}
	snap := attempt.snapshot()
	o.mu.Unlock()

	o.logger.Info("Payment intent created",
		zap.String("attempt_id", attemptID),
		zap.String("provider_id", intent.ProviderID))

	return snap, nil
}

// Approve records the provider widget's approval of the payer.
func (o *Orchestrator) Approve(attemptID string) (Attempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	a, err := o.lookup(attemptID)
	if err != nil {
		return o.idleOr(), err
	}
	if a.State != StateIntentCreated {
		return a.snapshot(), fmt.Errorf("%w: approve from %s", ErrInvalidTransition, a.State)
	}
	a.State = StateApproved
	return a.snapshot(), nil
}

// Capture finalizes an approved attempt. Only a COMPLETED capture status
// completes it; anything else fails it and leaves the cart alone.
func (o *Orchestrator) Capture(ctx context.Context, attemptID, locale string) (Attempt, error) {
	o.mu.Lock()
	a, err := o.lookup(attemptID)
	if err != nil {
		o.mu.Unlock()
		return o.Current(), err
	}
	if a.capturing {
		o.mu.Unlock()
		return o.Current(), ErrCaptureInFlight
	}
	if a.State != StateApproved {
		snap := a.snapshot()
		o.mu.Unlock()
		return snap, fmt.Errorf("%w: capture from %s", ErrInvalidTransition, snap.State)
	}
	a.capturing = true
	pending := a.snapshot()
	o.mu.Unlock()

	provider, err := o.providers.Get(pending.Provider)
	if err != nil {
		o.mu.Lock()
		a.capturing = false
		o.mu.Unlock()
		return pending, err
	}

	ctx, span := util.StartSpan(ctx, "Orchestrator.Capture",
		attribute.String("attempt_id", attemptID),
		attribute.String("provider", pending.Provider))
	defer span.End()

	// Detached from the request: a capture the provider completed must be
	// recorded even after the visitor has left.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), captureTimeout)
	defer cancel()

	result, captureErr := provider.Capture(ctx, pending.ProviderID)
	completed := captureErr == nil && result.Completed()

	var orderID int64
	if completed {
		orderID = o.recordOrder(ctx, pending)
	}

	o.mu.Lock()
	a.capturing = false
	if o.current != a {
		o.mu.Unlock()
		util.CheckoutStaleResponsesTotal.WithLabelValues(pending.Provider, "capture").Inc()
		o.logger.Warn("Capture response arrived for a dropped attempt",
			zap.String("attempt_id", attemptID),
			zap.Bool("completed", completed))
		if completed {
			o.publish(ctx, models.EventTypeCheckoutCompleted, withOrder(pending, orderID), "")
		}
		return o.Current(), ErrStaleAttempt
	}

	if !completed {
		reason := "capture status not completed"
		if captureErr != nil {
			reason = captureErr.Error()
		} else if result != nil {
			reason = fmt.Sprintf("capture status %s", result.Status)
		}
		cerr := &Error{Kind: ErrPaymentFailed, Message: i18n.Message(locale, i18n.KeyFailed), Err: captureErr}
		a.State = StateFailed
		a.Message = cerr.Message
		a.Error = cerr.Code()
		snap := a.snapshot()
		o.mu.Unlock()

		o.logger.Warn("Payment capture failed",
			zap.String("session_id", o.sessionID),
			zap.String("attempt_id", attemptID),
			zap.String("reason", reason))
		util.CheckoutOutcomesTotal.WithLabelValues(snap.Provider, string(StateFailed)).Inc()
		o.publish(ctx, models.EventTypeCheckoutFailed, snap, reason)

		return snap, cerr
	}

	a.State = StateCompleted
	a.OrderID = orderID
	a.Message = i18n.Message(locale, i18n.KeySuccess)
	if orderID != 0 {
		a.Redirect = fmt.Sprintf("/order-confirmation/%d", orderID)
		a.RedirectAfterMs = o.confirmDelay.Milliseconds()
	}
	snap := a.snapshot()
	o.mu.Unlock()

	o.logger.Info("Payment captured",
		zap.String("session_id", o.sessionID),
		zap.String("attempt_id", attemptID),
		zap.Int64("order_id", orderID))
	util.CheckoutOutcomesTotal.WithLabelValues(snap.Provider, string(StateCompleted)).Inc()
	o.publish(ctx, models.EventTypeCheckoutCompleted, snap, "")

	for _, fn := range o.onCompleted {
		fn(snap)
	}

	return snap, nil
}

// Cancel abandons the attempt before capture. No capture can follow.
func (o *Orchestrator) Cancel(ctx context.Context, attemptID, locale string) (Attempt, error) {
	o.mu.Lock()
	a, err := o.lookup(attemptID)
	if err != nil {
		o.mu.Unlock()
		return o.Current(), err
	}
	if a.capturing {
		snap := a.snapshot()
		o.mu.Unlock()
		return snap, ErrCaptureInFlight
	}
	if a.State.Terminal() {
		snap := a.snapshot()
		o.mu.Unlock()
		return snap, fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, snap.State)
	}

	a.State = StateCancelled
	a.Message = i18n.Message(locale, i18n.KeyCancelled)
	a.Error = (&Error{Kind: ErrPaymentCancelled}).Code()
	snap := a.snapshot()
	o.mu.Unlock()

	o.logger.Info("Checkout cancelled",
		zap.String("session_id", o.sessionID),
		zap.String("attempt_id", attemptID))
	util.CheckoutOutcomesTotal.WithLabelValues(snap.Provider, string(StateCancelled)).Inc()
	o.publish(ctx, models.EventTypeCheckoutCancelled, snap, "cancelled by user")

	return snap, nil
}

// Reset drops the current attempt. Responses still in flight for it are
// discarded when they arrive.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = nil
}

func (o *Orchestrator) lookup(attemptID string) (*Attempt, error) {
	if o.current == nil || o.current.ID != attemptID {
		return nil, ErrStaleAttempt
	}
	return o.current, nil
}

// idleOr must be called with the lock held.
func (o *Orchestrator) idleOr() Attempt {
	if o.current == nil {
		return Attempt{State: StateIdle}
	}
	return o.current.snapshot()
}

func (o *Orchestrator) recordOrder(ctx context.Context, a Attempt) int64 {
	if o.orders == nil {
		return 0
	}

	order := &models.Order{
		SessionID:   o.sessionID,
		AttemptID:   a.ID,
		Provider:    a.Provider,
		ProviderRef: a.ProviderID,
		Amount:      a.Amount,
		Currency:    string(a.Currency),
		Status:      models.OrderStatusCompleted,
		Items:       make([]models.OrderItem, 0, len(a.Items)),
	}
	for _, item := range a.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}

	if err := o.orders.CreateOrder(ctx, order); err != nil {
		o.logger.Error("Failed to record order for captured payment",
			zap.String("attempt_id", a.ID),
			zap.String("provider_ref", a.ProviderID),
			zap.Error(err))
		return 0
	}
	return order.ID
}

func (o *Orchestrator) publish(ctx context.Context, eventType string, a Attempt, reason string) {
	if o.events == nil {
		return
	}

	event := &models.CheckoutEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		SessionID:   o.sessionID,
		AttemptID:   a.ID,
		Provider:    a.Provider,
		ProviderRef: a.ProviderID,
		OrderID:     a.OrderID,
		Amount:      a.Amount,
		Currency:    string(a.Currency),
		Reason:      reason,
	}
	if err := o.events.PublishCheckoutEvent(ctx, event); err != nil {
		o.logger.Error("Failed to publish checkout event",
			zap.String("event_type", eventType),
			zap.String("attempt_id", a.ID),
			zap.Error(err))
	}
}

func withOrder(a Attempt, orderID int64) Attempt {
	a.OrderID = orderID
	return a
}

// AsError extracts the visitor-facing error from err, if there is one.
func AsError(err error) (*Error, bool) {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr, true
	}
	return nil, false
}
