package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alextreichler/qrmenu/internal/models"
	"github.com/alextreichler/qrmenu/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	// MaxPasswordLength is bcrypt's input limit, in bytes.
	MaxPasswordLength = 72
)

// ErrInvalidCredentials is returned for an unknown email or a wrong
// password; callers cannot tell the two apart.
var ErrInvalidCredentials = errors.New("invalid email or password")

type Service struct {
	Users store.UserRepository
	Cost  int
	Now   func() time.Time
}

func NewService(users store.UserRepository) *Service {
	return &Service{
		Users: users,
		Cost:  bcrypt.DefaultCost,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a customer account.
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	return s.CreateUser(ctx, name, email, password, models.RoleCustomer)
}

// CreateUser creates an account with the given role. A taken email yields
// store.ErrDuplicate.
func (s *Service) CreateUser(ctx context.Context, name, email, password, role string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, models.Invalid("Please provide name, email and password")
	}
	if !strings.Contains(email, "@") {
		return nil, models.Invalid("Invalid email address")
	}
	if len(password) < MinPasswordLength {
		return nil, models.Invalid("Password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return nil, models.Invalid("Password must be at most %d bytes", MaxPasswordLength)
	}
	if role != models.RoleAdmin && role != models.RoleCustomer {
		return nil, models.Invalid("Unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.Cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.Now(),
	}
	if err := s.Users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user %s: %w", email, err)
	}
	slog.Info("User created", "user_id", user.ID, "role", role)
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.Users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) User(ctx context.Context, id string) (*models.User, error) {
	return s.Users.GetUserByID(ctx, id)
}
