package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alextreichler/qrmenu/internal/models"
)

const menuColumns = `id, name, description, price, category, image_url, is_available, created_at, updated_at`

func (s *Store) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	query := `
		INSERT INTO menu_items (` + menuColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.DB.ExecContext(ctx, query,
		item.ID, item.Name, item.Description, item.Price, item.Category, item.ImageURL,
		item.IsAvailable, toUnix(item.CreatedAt), toUnix(item.UpdatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Store) ListMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	query := `SELECT ` + menuColumns + ` FROM menu_items ORDER BY category, name`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.MenuItem{}
	for rows.Next() {
		i, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *i)
	}
	return items, rows.Err()
}

func (s *Store) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	query := `SELECT ` + menuColumns + ` FROM menu_items WHERE id = ?`
	i, err := scanMenuItem(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return i, err
}

func (s *Store) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	query := `
		UPDATE menu_items
		SET name = ?, description = ?, price = ?, category = ?, image_url = ?, is_available = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.DB.ExecContext(ctx, query,
		item.Name, item.Description, item.Price, item.Category, item.ImageURL, item.IsAvailable,
		toUnix(item.UpdatedAt), item.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (s *Store) DeleteMenuItem(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM menu_items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMenuItem(row rowScanner) (*models.MenuItem, error) {
	var (
		i                models.MenuItem
		created, updated int64
	)
	if err := row.Scan(&i.ID, &i.Name, &i.Description, &i.Price, &i.Category, &i.ImageURL, &i.IsAvailable, &created, &updated); err != nil {
		return nil, err
	}
	i.CreatedAt = fromUnix(created)
	i.UpdatedAt = fromUnix(updated)
	return &i, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
