package models

import (
	"time"
)

type MenuItem struct {
	ID          string    `json:"_id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	Price       float64   `json:"price" bson:"price"`
	Category    string    `json:"category" bson:"category"`
	ImageURL    string    `json:"imageUrl" bson:"imageUrl"` // "" when no image was stored
	IsAvailable bool      `json:"isAvailable" bson:"isAvailable"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// LineItem is a copy of a menu item taken when the order was placed.
// It is never refreshed from the menu.
type LineItem struct {
	ID       string  `json:"_id" bson:"_id"` // menu item id at order time
	Name     string  `json:"name" bson:"name"`
	Price    float64 `json:"price" bson:"price"`
	Quantity int     `json:"quantity" bson:"quantity"`
}

type Order struct {
	ID            string      `json:"_id" bson:"_id"`
	OrderCode     string      `json:"orderCode" bson:"orderCode"` // Public "ORD-7KX2QA" reference
	CustomerName  string      `json:"customerName" bson:"customerName"`
	CustomerEmail string      `json:"customerEmail" bson:"customerEmail"`
	TableNumber   string      `json:"tableNumber,omitempty" bson:"tableNumber,omitempty"`
	Items         []LineItem  `json:"items" bson:"items"`
	Total         float64     `json:"total" bson:"total"`
	Notes         string      `json:"notes,omitempty" bson:"notes,omitempty"`
	Status        OrderStatus `json:"status" bson:"status"`
	CreatedAt     time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt" bson:"updatedAt"`
}

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

type User struct {
	ID           string    `json:"_id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	Role         string    `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
