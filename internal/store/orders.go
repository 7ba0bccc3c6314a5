package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alextreichler/qrmenu/internal/models"
)

const orderColumns = `id, order_code, customer_name, customer_email, table_number, items, total, notes, status, created_at, updated_at`

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode line items: %w", err)
	}
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.DB.ExecContext(ctx, query,
		order.ID, order.OrderCode, order.CustomerName, order.CustomerEmail, order.TableNumber,
		string(items), order.Total, order.Notes, string(order.Status),
		toUnix(order.CreatedAt), toUnix(order.UpdatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
	o, err := scanOrder(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	return s.queryOrders(ctx, query)
}

func (s *Store) ListOrdersByEmail(ctx context.Context, email string) ([]models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE LOWER(customer_email) = LOWER(?)
		ORDER BY created_at DESC
	`
	return s.queryOrders(ctx, query, email)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, order *models.Order, from models.OrderStatus) error {
	query := `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := s.DB.ExecContext(ctx, query, string(order.Status), toUnix(order.UpdatedAt), order.ID, string(from))
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o                models.Order
		items, status    string
		created, updated int64
	)
	err := row.Scan(&o.ID, &o.OrderCode, &o.CustomerName, &o.CustomerEmail, &o.TableNumber,
		&items, &o.Total, &o.Notes, &status, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return nil, fmt.Errorf("decode line items of order %s: %w", o.ID, err)
	}
	o.Status = models.OrderStatus(status)
	o.CreatedAt = fromUnix(created)
	o.UpdatedAt = fromUnix(updated)
	return &o, nil
}
