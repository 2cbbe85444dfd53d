package wishlist

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/clientstate"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	members map[int64]map[string]bool
	err     error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{members: map[int64]map[string]bool{}}
}

func (f *fakeIndex) AddSubscriber(_ context.Context, productID int64, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	if f.members[productID] == nil {
		f.members[productID] = map[string]bool{}
	}
	f.members[productID][sessionID] = true
	return nil
}

func (f *fakeIndex) RemoveSubscriber(_ context.Context, productID int64, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.members[productID], sessionID)
	return nil
}

func item(id int64) models.WishlistItem {
	return models.WishlistItem{ID: id, Name: "Plush", Price: decimal.NewFromInt(25), Category: "plush"}
}

func TestAddToWishlistIsIdempotent(t *testing.T) {
	m := NewManager(context.Background(), clientstate.NewMemoryBackend())

	m.AddToWishlist(item(1))
	changed := item(1)
	changed.Name = "Renamed"
	m.AddToWishlist(changed)

	items := m.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Plush", items[0].Name)
	assert.True(t, m.IsInWishlist(1))
	assert.False(t, m.IsInWishlist(2))
}

func TestRemoveFromWishlistCascades(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex()
	m := NewManager(ctx, clientstate.NewMemoryBackend(), WithSubscriberIndex(index, "s1"))

	m.AddToWishlist(item(1))
	m.AddToWishlist(item(2))
	m.SubscribeNotification(ctx, 1, "a@x.com", "")
	m.SubscribeNotification(ctx, 2, "", "line-2")

	m.RemoveFromWishlist(ctx, 1)

	assert.False(t, m.IsInWishlist(1))
	_, ok := m.Subscription(1)
	assert.False(t, ok)
	_, ok = m.Subscription(2)
	assert.True(t, ok)
	assert.False(t, index.members[1]["s1"])
	assert.True(t, index.members[2]["s1"])
}

func TestSubscribeNotificationMerges(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, clientstate.NewMemoryBackend())

	m.SubscribeNotification(ctx, 5, "a@x.com", "")
	m.MarkNotified(5)
	sub := m.SubscribeNotification(ctx, 5, "", "line123")

	subs := m.Subscriptions()
	require.Len(t, subs, 1)
	assert.Equal(t, models.NotificationSubscription{
		ProductID: 5,
		Email:     "a@x.com",
		Line:      "line123",
		Notified:  false,
	}, subs[0])
	assert.Equal(t, subs[0], sub)
}

func TestSubscribeWithoutWishlistItem(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, clientstate.NewMemoryBackend())

	m.SubscribeNotification(ctx, 77, "b@x.com", "")

	_, ok := m.Subscription(77)
	assert.True(t, ok)
}

func TestRemoveNotification(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, clientstate.NewMemoryBackend())
	m.AddToWishlist(item(3))
	m.SubscribeNotification(ctx, 3, "c@x.com", "")

	m.RemoveNotification(ctx, 3)
	m.RemoveNotification(ctx, 99)

	assert.Empty(t, m.Subscriptions())
	assert.True(t, m.IsInWishlist(3))
}

func TestClearWishlistClearsSubscriptions(t *testing.T) {
	ctx := context.Background()
	backend := clientstate.NewMemoryBackend()
	index := newFakeIndex()
	m := NewManager(ctx, backend, WithSubscriberIndex(index, "s1"))

	m.AddToWishlist(item(1))
	m.SubscribeNotification(ctx, 1, "a@x.com", "")
	m.SubscribeNotification(ctx, 2, "a@x.com", "")

	m.ClearWishlist(ctx)

	assert.Empty(t, m.Items())
	assert.Empty(t, m.Subscriptions())
	assert.Empty(t, index.members[1])
	assert.Empty(t, index.members[2])

	reloaded := NewManager(ctx, backend)
	assert.Empty(t, reloaded.Items())
	assert.Empty(t, reloaded.Subscriptions())
}

func TestPersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	backend := clientstate.NewMemoryBackend()

	m := NewManager(ctx, backend)
	m.AddToWishlist(item(1))
	m.SubscribeNotification(ctx, 1, "a@x.com", "line-a")

	reloaded := NewManager(ctx, backend)
	assert.True(t, reloaded.IsInWishlist(1))
	sub, ok := reloaded.Subscription(1)
	require.True(t, ok)
	assert.Equal(t, "line-a", sub.Line)

	raw, err := backend.Get(ctx, clientstate.KeyWishlistNotifications)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"productId":1,"email":"a@x.com","line":"line-a","notified":false}]`, string(raw))
}

func TestMarkNotified(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, clientstate.NewMemoryBackend())
	m.AddToWishlist(item(4))
	m.SubscribeNotification(ctx, 4, "d@x.com", "")

	sub, pending := m.MarkNotified(4)
	assert.True(t, pending)
	assert.Equal(t, "d@x.com", sub.Email)

	_, pending = m.MarkNotified(4)
	assert.False(t, pending)

	got, _ := m.Subscription(4)
	assert.True(t, got.Notified)
	assert.True(t, m.Items()[0].InStock)

	_, pending = m.MarkNotified(404)
	assert.False(t, pending)
}

func TestIndexFailuresAreNotFatal(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex()
	index.err = errors.New("redis down")
	m := NewManager(ctx, clientstate.NewMemoryBackend(), WithSubscriberIndex(index, "s1"))

	m.SubscribeNotification(ctx, 1, "a@x.com", "")
	m.RemoveFromWishlist(ctx, 1)

	assert.Empty(t, m.Subscriptions())
}

func TestGarbageWishlistLoadsEmpty(t *testing.T) {
	backend := clientstate.NewMemoryBackend()
	backend.Raw(clientstate.KeyWishlist, []byte(`{"legacy":true}`))
	backend.Raw(clientstate.KeyWishlistNotifications, []byte(`nope`))

	m := NewManager(context.Background(), backend)

	assert.Empty(t, m.Items())
	assert.Empty(t, m.Subscriptions())
}
