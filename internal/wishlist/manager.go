// Package wishlist keeps a visitor's saved-for-later items together with
// their back-in-stock notification subscriptions.
package wishlist

import (
	"context"

	"storefront/internal/clientstate"
	"storefront/internal/collection"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// SubscriberIndex maps products to the sessions waiting on them, so a restock
// can be fanned out without scanning every session.
type SubscriberIndex interface {
	AddSubscriber(ctx context.Context, productID int64, sessionID string) error
	RemoveSubscriber(ctx context.Context, productID int64, sessionID string) error
}

// Manager owns one visitor's wishlist and notification subscriptions.
type Manager struct {
	items         *collection.Collection[models.WishlistItem]
	subscriptions *collection.Collection[models.NotificationSubscription]
	index         SubscriberIndex
	sessionID     string
	logger        *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithSubscriberIndex keeps index in sync for sessionID.
func WithSubscriberIndex(index SubscriberIndex, sessionID string) Option {
	return func(m *Manager) {
		m.index = index
		m.sessionID = sessionID
	}
}

// mergeChannels folds newly supplied contact channels into the existing
// subscription and re-arms it.
func mergeChannels(existing, incoming models.NotificationSubscription) models.NotificationSubscription {
	if incoming.Email != "" {
		existing.Email = incoming.Email
	}
	if incoming.Line != "" {
		existing.Line = incoming.Line
	}
	existing.Notified = false
	return existing
}

// NewManager loads both collections from store and persists them after every change.
func NewManager(ctx context.Context, store clientstate.Backend, opts ...Option) *Manager {
	itemSlot := clientstate.NewSlot[models.WishlistItem](store, clientstate.KeyWishlist)
	subSlot := clientstate.NewSlot[models.NotificationSubscription](store, clientstate.KeyWishlistNotifications)

	m := &Manager{
		items:         collection.New(collection.Ignore[models.WishlistItem](), itemSlot.Load(ctx)),
		subscriptions: collection.New[models.NotificationSubscription](mergeChannels, subSlot.Load(ctx)),
		logger:        util.GetLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.items.Observe(func(snapshot []models.WishlistItem) {
		itemSlot.Save(context.Background(), snapshot)
	})
	m.subscriptions.Observe(func(snapshot []models.NotificationSubscription) {
		subSlot.Save(context.Background(), snapshot)
	})

	return m
}

// AddToWishlist inserts item. An id already present is left as it is.
func (m *Manager) AddToWishlist(item models.WishlistItem) {
	m.items.Upsert(item)
	util.WishlistMutationsTotal.WithLabelValues("add").Inc()
}

// RemoveFromWishlist deletes the item and its notification subscription.
func (m *Manager) RemoveFromWishlist(ctx context.Context, id int64) {
	m.items.Remove(id)
	m.RemoveNotification(ctx, id)
	util.WishlistMutationsTotal.WithLabelValues("remove").Inc()
}

// IsInWishlist reports whether id is saved.
func (m *Manager) IsInWishlist(id int64) bool {
	return m.items.Contains(id)
}

// SubscribeNotification upserts the subscription for productID. Empty channels
// never overwrite ones given earlier, and notified is always reset.
func (m *Manager) SubscribeNotification(ctx context.Context, productID int64, email, line string) models.NotificationSubscription {
	m.subscriptions.Upsert(models.NotificationSubscription{ProductID: productID, Email: email, Line: line})

	if m.index != nil {
		if err := m.index.AddSubscriber(ctx, productID, m.sessionID); err != nil {
			m.logger.Warn("Failed to index notification subscription",
				zap.Int64("product_id", productID),
				zap.String("session_id", m.sessionID),
				zap.Error(err))
		}
	}

	util.WishlistMutationsTotal.WithLabelValues("subscribe").Inc()
	sub, _ := m.subscriptions.Get(productID)
	return sub
}

// RemoveNotification drops the subscription for productID, if any.
func (m *Manager) RemoveNotification(ctx context.Context, productID int64) {
	m.subscriptions.Remove(productID)
	m.unindex(ctx, productID)
	util.WishlistMutationsTotal.WithLabelValues("unsubscribe").Inc()
}

// ClearWishlist empties both the items and the subscriptions.
func (m *Manager) ClearWishlist(ctx context.Context) {
	subs := m.subscriptions.Items()

	m.items.Clear()
	m.subscriptions.Clear()

	for _, sub := range subs {
		m.unindex(ctx, sub.ProductID)
	}
	util.WishlistMutationsTotal.WithLabelValues("clear").Inc()
}

// MarkNotified flags the subscription for productID as delivered and the
// wishlist item, if any, as back in stock. It returns the subscription as it
// was before the call and whether a notification is still owed for it.
func (m *Manager) MarkNotified(productID int64) (models.NotificationSubscription, bool) {
	var before models.NotificationSubscription
	pending := false

	m.subscriptions.Update(productID, func(sub *models.NotificationSubscription) bool {
		before = *sub
		pending = !sub.Notified
		sub.Notified = true
		return true
	})
	m.items.Update(productID, func(item *models.WishlistItem) bool {
		item.InStock = true
		return true
	})

	return before, pending
}

// Items returns the saved items in insertion order.
func (m *Manager) Items() []models.WishlistItem {
	return m.items.Items()
}

// Subscriptions returns all notification subscriptions.
func (m *Manager) Subscriptions() []models.NotificationSubscription {
	return m.subscriptions.Items()
}

// Subscription returns the subscription for productID.
func (m *Manager) Subscription(productID int64) (models.NotificationSubscription, bool) {
	return m.subscriptions.Get(productID)
}

func (m *Manager) unindex(ctx context.Context, productID int64) {
	if m.index == nil {
		return
	}
	if err := m.index.RemoveSubscriber(ctx, productID, m.sessionID); err != nil {
		m.logger.Warn("Failed to unindex notification subscription",
			zap.Int64("product_id", productID),
			zap.String("session_id", m.sessionID),
			zap.Error(err))
	}
}
