package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alextreichler/qrmenu/internal/models"
)

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, name, email, password, role, created_at FROM users WHERE email = ? COLLATE NOCASE`
	return scanUser(s.DB.QueryRowContext(ctx, query, email))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, name, email, password, role, created_at FROM users WHERE id = ?`
	return scanUser(s.DB.QueryRowContext(ctx, query, id))
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, name, email, password, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.DB.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.PasswordHash, user.Role, toUnix(user.CreatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user    models.User
		created int64
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = fromUnix(created)
	return &user, nil
}
