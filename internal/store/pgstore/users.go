package pgstore

import (
	"context"

	"github.com/alextreichler/qrmenu/internal/models"
	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO users (id, name, email, password, role, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.CreatedAt)
	return translate(err)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, name, email, password, role, created_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, name, email, password, role, created_at FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		return nil, translate(err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}
