package pgstore

import (
	"context"

	"github.com/alextreichler/qrmenu/internal/models"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, order_code, customer_name, customer_email, table_number, items, total, notes, status, created_at, updated_at`

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		order.ID, order.OrderCode, order.CustomerName, order.CustomerEmail, order.TableNumber,
		order.Items, order.Total, order.Notes, string(order.Status), order.CreatedAt, order.UpdatedAt)
	return translate(err)
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	return o, translate(err)
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (s *Store) ListOrdersByEmail(ctx context.Context, email string) ([]models.Order, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE LOWER(customer_email) = LOWER($1)
		ORDER BY created_at DESC`, email)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, order *models.Order, from models.OrderStatus) error {
	return expectOneRow(s.Pool.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(order.Status), order.UpdatedAt, order.ID, string(from)))
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
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

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o      models.Order
		status string
	)
	err := row.Scan(&o.ID, &o.OrderCode, &o.CustomerName, &o.CustomerEmail, &o.TableNumber,
		&o.Items, &o.Total, &o.Notes, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}
