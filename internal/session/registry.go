// Package session wires together the per-visitor cart, wishlist and checkout
// containers and identifies visitors by signed tokens.
package session

import (
	"context"
	"sync"
	"time"

	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/clientstate"
	"storefront/internal/payment"
	"storefront/internal/util"
	"storefront/internal/wishlist"

	"go.uber.org/zap"
)

// Session holds one visitor's live state.
type Session struct {
	ID       string
	Cart     *cart.Manager
	Wishlist *wishlist.Manager
	Checkout *checkout.Orchestrator

	lastSeen time.Time
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Backend           clientstate.Backend
	Index             wishlist.SubscriberIndex
	Providers         payment.Registry
	Orders            checkout.OrderRecorder
	Events            checkout.EventPublisher
	ConfirmationDelay time.Duration
}

// Registry lazily builds sessions and keeps them in memory until they go idle.
// Persisted cart and wishlist state outlives eviction in the backend.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	deps     Deps
	now      func() time.Time
	logger   *zap.Logger
}

func NewRegistry(deps Deps) *Registry {
	if deps.ConfirmationDelay <= 0 {
		deps.ConfirmationDelay = checkout.DefaultConfirmationDelay
	}
	return &Registry{
		sessions: make(map[string]*Session),
		deps:     deps,
		now:      time.Now,
		logger:   util.GetLogger(),
	}
}

// Get returns the session for id, loading it from the backend on first use.
func (r *Registry) Get(ctx context.Context, id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.lastSeen = r.now()
		return s
	}

	s := r.build(ctx, id)
	s.lastSeen = r.now()
	r.sessions[id] = s
	util.ActiveSessions.Set(float64(len(r.sessions)))

	r.logger.Debug("Session loaded", zap.String("session_id", id))
	return s
}

func (r *Registry) build(ctx context.Context, id string) *Session {
	backend := clientstate.Namespace(r.deps.Backend, "session:"+id)

	var wishlistOpts []wishlist.Option
	if r.deps.Index != nil {
		wishlistOpts = append(wishlistOpts, wishlist.WithSubscriberIndex(r.deps.Index, id))
	}

	s := &Session{
		ID:       id,
		Cart:     cart.NewManager(ctx, backend),
		Wishlist: wishlist.NewManager(ctx, backend, wishlistOpts...),
	}

	opts := []checkout.Option{
		checkout.WithConfirmationDelay(r.deps.ConfirmationDelay),
		checkout.OnCompleted(func(checkout.Attempt) { s.Cart.ClearCart() }),
	}
	if r.deps.Orders != nil {
		opts = append(opts, checkout.WithOrderRecorder(r.deps.Orders))
	}
	if r.deps.Events != nil {
		opts = append(opts, checkout.WithEventPublisher(r.deps.Events))
	}
	s.Checkout = checkout.NewOrchestrator(id, r.deps.Providers, opts...)

	return s
}

// Evict drops sessions not seen for longer than idle. Sessions with a
// checkout attempt still in progress are kept.
func (r *Registry) Evict(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	evicted := 0
	for id, s := range r.sessions {
		if s.lastSeen.After(cutoff) {
			continue
		}
		if state := s.Checkout.Current().State; state != checkout.StateIdle && !state.Terminal() {
			continue
		}
		delete(r.sessions, id)
		evicted++
	}

	util.ActiveSessions.Set(float64(len(r.sessions)))
	if evicted > 0 {
		r.logger.Info("Evicted idle sessions", zap.Int("count", evicted), zap.Int("remaining", len(r.sessions)))
	}
	return evicted
}

// Len is the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
