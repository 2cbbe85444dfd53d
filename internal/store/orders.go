package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
)

// ErrOrderNotFound is returned when no order matches the lookup
var ErrOrderNotFound = errors.New("order not found")

// CreateOrder inserts the order and its items in one transaction and fills in
// the generated ids and timestamps
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	ctx, span := util.StartSpan(ctx, "Store.CreateOrder",
		attribute.String("attempt_id", order.AttemptID))
	defer span.End()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (session_id, attempt_id, provider, provider_ref, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	row := tx.QueryRowxContext(ctx, query,
		order.SessionID, order.AttemptID, order.Provider, order.ProviderRef,
		order.Amount, order.Currency, order.Status)
	if err := row.Scan(&order.ID, &order.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, product_id, name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			item.OrderID, item.ProductID, item.Name, item.Quantity, item.UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		`SELECT id, session_id, attempt_id, provider, provider_ref, amount, currency, status, created_at
		 FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	items, err := s.getItems(ctx, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}
	return &order, nil
}

// GetOrdersBySession retrieves a session's orders, newest first
func (s *Store) GetOrdersBySession(ctx context.Context, sessionID string) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		`SELECT id, session_id, attempt_id, provider, provider_ref, amount, currency, status, created_at
		 FROM orders WHERE session_id = $1 ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := s.getItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
	}
	return orders, nil
}

func (s *Store) getItems(ctx context.Context, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	query, args, err := sqlx.In(
		"SELECT id, order_id, product_id, name, quantity, unit_price FROM order_items WHERE order_id IN (?) ORDER BY id",
		orderIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var rows []models.OrderItem
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	byOrder := make(map[int64][]models.OrderItem, len(orderIDs))
	for _, item := range rows {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	return byOrder, nil
}
