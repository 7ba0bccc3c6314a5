package pgstore

import (
	"context"

	"github.com/alextreichler/qrmenu/internal/models"
	"github.com/jackc/pgx/v5"
)

const menuColumns = `id, name, description, price, category, image_url, is_available, created_at, updated_at`

func (s *Store) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO menu_items (`+menuColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.Name, item.Description, item.Price, item.Category, item.ImageURL,
		item.IsAvailable, item.CreatedAt, item.UpdatedAt)
	return translate(err)
}

func (s *Store) ListMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+menuColumns+` FROM menu_items ORDER BY category, name`)
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
	row := s.Pool.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id)
	i, err := scanMenuItem(row)
	return i, translate(err)
}

func (s *Store) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	return expectOneRow(s.Pool.Exec(ctx, `
		UPDATE menu_items
		SET name = $1, description = $2, price = $3, category = $4, image_url = $5, is_available = $6, updated_at = $7
		WHERE id = $8`,
		item.Name, item.Description, item.Price, item.Category, item.ImageURL, item.IsAvailable,
		item.UpdatedAt, item.ID))
}

func (s *Store) DeleteMenuItem(ctx context.Context, id string) error {
	return expectOneRow(s.Pool.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id))
}

func scanMenuItem(row pgx.Row) (*models.MenuItem, error) {
	var i models.MenuItem
	if err := row.Scan(&i.ID, &i.Name, &i.Description, &i.Price, &i.Category, &i.ImageURL, &i.IsAvailable, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	i.CreatedAt = i.CreatedAt.UTC()
	i.UpdatedAt = i.UpdatedAt.UTC()
	return &i, nil
}
