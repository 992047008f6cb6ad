package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/almightymoon/trendhive/internal/core/domain"
)

var ErrOrderNotFound = errors.New("order not found")

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// CreateOrderIfAbsent inserts the order and its line items in one
// transaction. The insert races on the unique (provider, external_ref) key:
// INSERT IGNORE reports zero affected rows when another caller already won,
// in which case the winner's order is returned unchanged.
func (m *MySQLAdapter) CreateOrderIfAbsent(ctx context.Context, order domain.Order) (*domain.Order, bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	userID := sql.NullString{String: order.UserID, Valid: order.UserID != ""}

	result, err := tx.ExecContext(ctx, `
		INSERT IGNORE INTO orders
			(id, provider, external_ref, status, amount, currency,
			 purchaser_name, purchaser_email, purchaser_address, user_id,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Provider, order.ExternalRef, order.Status,
		order.Amount.String(), order.Currency,
		order.Purchaser.Name, order.Purchaser.Email, order.Purchaser.Address,
		userID, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert order: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		existing, err := m.GetOrderByExternalRef(ctx, order.Provider, order.ExternalRef)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("order %s/%s vanished after duplicate insert", order.Provider, order.ExternalRef)
		}
		return existing, false, nil
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, title, unit_price, quantity)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, item.ProductID, item.Title, item.UnitPrice.String(), item.Quantity,
		)
		if err != nil {
			return nil, false, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit order: %w", err)
	}

	return &order, true, nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return m.queryOrder(ctx, `WHERE id = ?`, id)
}

func (m *MySQLAdapter) GetOrderByExternalRef(ctx context.Context, provider domain.Provider, externalRef string) (*domain.Order, error) {
	return m.queryOrder(ctx, `WHERE provider = ? AND external_ref = ?`, provider, externalRef)
}

func (m *MySQLAdapter) queryOrder(ctx context.Context, where string, args ...any) (*domain.Order, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, provider, external_ref, status, amount, currency,
		       purchaser_name, purchaser_email, purchaser_address, user_id,
		       created_at, updated_at
		FROM orders `+where, args...)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	if err := m.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (m *MySQLAdapter) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return m.queryOrders(ctx, `WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (m *MySQLAdapter) ListRecentOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	return m.queryOrders(ctx, `ORDER BY created_at DESC LIMIT ?`, limit)
}

func (m *MySQLAdapter) queryOrders(ctx context.Context, tail string, args ...any) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, provider, external_ref, status, amount, currency,
		       purchaser_name, purchaser_email, purchaser_address, user_id,
		       created_at, updated_at
		FROM orders `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	for i := range orders {
		if err := m.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	// An unchanged status also reports zero affected rows, so distinguish
	// that from a missing order.
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var one int
		err := m.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("check order exists: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) loadItems(ctx context.Context, order *domain.Order) error {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, title, unit_price, quantity
		FROM order_items WHERE order_id = ? ORDER BY id`, order.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.LineItem
		var price string
		if err := rows.Scan(&item.ProductID, &item.Title, &price, &item.Quantity); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		item.UnitPrice, err = decimal.NewFromString(price)
		if err != nil {
			return fmt.Errorf("parse item price: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

// UpsertPendingReview replaces any existing prompt for the same
// (user, product) pair via the composite primary key.
func (m *MySQLAdapter) UpsertPendingReview(ctx context.Context, review domain.PendingReview) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO pending_reviews (user_id, product_id, product_title, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE product_title = VALUES(product_title),
			status = VALUES(status), created_at = VALUES(created_at)`,
		review.UserID, review.ProductID, review.ProductTitle, review.Status, review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert pending review: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) DeletePendingReview(ctx context.Context, userID, productID string) error {
	_, err := m.db.ExecContext(ctx, `
		DELETE FROM pending_reviews WHERE user_id = ? AND product_id = ?`,
		userID, productID,
	)
	if err != nil {
		return fmt.Errorf("delete pending review: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListPendingReviews(ctx context.Context, userID string) ([]domain.PendingReview, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT user_id, product_id, product_title, status, created_at
		FROM pending_reviews WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query pending reviews: %w", err)
	}
	defer rows.Close()

	var reviews []domain.PendingReview
	for rows.Next() {
		var r domain.PendingReview
		if err := rows.Scan(&r.UserID, &r.ProductID, &r.ProductTitle, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var amount string
	var userID sql.NullString

	err := row.Scan(&order.ID, &order.Provider, &order.ExternalRef, &order.Status,
		&amount, &order.Currency,
		&order.Purchaser.Name, &order.Purchaser.Email, &order.Purchaser.Address,
		&userID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	order.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse order amount: %w", err)
	}
	order.UserID = userID.String
	return &order, nil
}
