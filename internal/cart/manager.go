package cart

import (
	"context"

	"storefront/internal/clientstate"
	"storefront/internal/collection"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Manager owns one visitor's cart. Every mutation is written through to the
// client state store before the call returns.
type Manager struct {
	items  *collection.Collection[models.CartItem]
	logger *zap.Logger
}

// increment bumps the stored quantity by one on a repeated add.
func increment(existing, _ models.CartItem) models.CartItem {
	existing.Quantity++
	return existing
}

// sumQuantities folds stored lines sharing an id into one line.
func sumQuantities(existing, incoming models.CartItem) models.CartItem {
	existing.Quantity += incoming.Quantity
	return existing
}

// NewManager loads the cart from store and persists it after every change.
func NewManager(ctx context.Context, store clientstate.Backend) *Manager {
	slot := clientstate.NewSlot[models.CartItem](store, clientstate.KeyCart)

	loaded := slot.Load(ctx)
	valid := loaded[:0]
	for _, item := range loaded {
		if item.Quantity >= 1 {
			valid = append(valid, item)
		}
	}

	items := collection.New[models.CartItem](increment, collection.New[models.CartItem](sumQuantities, valid).Items())
	items.Observe(func(snapshot []models.CartItem) {
		slot.Save(context.Background(), snapshot)
	})

	return &Manager{
		items:  items,
		logger: util.GetLogger(),
	}
}

// AddToCart inserts item with quantity 1, or increments the existing line.
func (m *Manager) AddToCart(item models.CartItem) {
	item.Quantity = 1
	if existed := m.items.Upsert(item); existed {
		m.logger.Debug("Cart line incremented", zap.Int64("product_id", item.ID))
	}
	util.CartMutationsTotal.WithLabelValues("add").Inc()
}

// RemoveFromCart deletes the line for id. Absent ids are ignored.
func (m *Manager) RemoveFromCart(id int64) {
	m.items.Remove(id)
	util.CartMutationsTotal.WithLabelValues("remove").Inc()
}

// UpdateQuantity sets the quantity for id exactly; qty <= 0 removes the line.
func (m *Manager) UpdateQuantity(id int64, qty int) {
	if qty <= 0 {
		m.RemoveFromCart(id)
		return
	}
	m.items.Update(id, func(item *models.CartItem) bool {
		item.Quantity = qty
		return true
	})
	util.CartMutationsTotal.WithLabelValues("update_quantity").Inc()
}

// IsInCart reports whether id has a line in the cart.
func (m *Manager) IsInCart(id int64) bool {
	return m.items.Contains(id)
}

// ClearCart empties the cart.
func (m *Manager) ClearCart() {
	m.items.Clear()
	util.CartMutationsTotal.WithLabelValues("clear").Inc()
}

// Items returns the cart lines in insertion order.
func (m *Manager) Items() []models.CartItem {
	return m.items.Items()
}

// Count is the total number of units in the cart.
func (m *Manager) Count() int {
	n := 0
	for _, item := range m.items.Items() {
		n += item.Quantity
	}
	return n
}

// Total is the sum of price times quantity over all lines.
func (m *Manager) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range m.items.Items() {
		total = total.Add(item.Subtotal())
	}
	return total
}
