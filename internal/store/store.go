package store

import (
	"context"
	"errors"

	"github.com/alextreichler/qrmenu/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the requested id or key.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key (order code, user email) is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

type MenuRepository interface {
	ListMenuItems(ctx context.Context) ([]models.MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error)
	CreateMenuItem(ctx context.Context, item *models.MenuItem) error
	UpdateMenuItem(ctx context.Context, item *models.MenuItem) error
	DeleteMenuItem(ctx context.Context, id string) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// ListOrders returns every order, newest first.
	ListOrders(ctx context.Context) ([]models.Order, error)
	// ListOrdersByEmail matches the customer email case-insensitively, newest first.
	ListOrdersByEmail(ctx context.Context, email string) ([]models.Order, error)
	// UpdateOrderStatus writes order.Status only while the stored status is
	// still from. It returns ErrNotFound when no order matches both.
	UpdateOrderStatus(ctx context.Context, order *models.Order, from models.OrderStatus) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Repository is implemented by every storage backend.
type Repository interface {
	MenuRepository
	OrderRepository
	UserRepository
	Ping(ctx context.Context) error
	Close() error
}
