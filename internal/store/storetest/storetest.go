// Package storetest holds behaviour checks shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alextreichler/qrmenu/internal/models"
	"github.com/alextreichler/qrmenu/internal/store"
	"github.com/google/uuid"
)

// Run exercises repo against the contract every backend must satisfy.
// repo must be empty.
func Run(t *testing.T, repo store.Repository) {
	t.Helper()
	t.Run("MenuItems", func(t *testing.T) { testMenuItems(t, repo) })
	t.Run("Orders", func(t *testing.T) { testOrders(t, repo) })
	t.Run("Users", func(t *testing.T) { testUsers(t, repo) })
}

func testMenuItems(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	burger := &models.MenuItem{
		ID: uuid.NewString(), Name: "Burger", Description: "Beef patty", Price: 12.99,
		Category: "Main Course", ImageURL: "/uploads/a.jpg", IsAvailable: true,
		CreatedAt: now, UpdatedAt: now,
	}
	soup := &models.MenuItem{
		ID: uuid.NewString(), Name: "Soup", Description: "Tomato", Price: 0,
		Category: "Appetizers", IsAvailable: false, CreatedAt: now, UpdatedAt: now,
	}
	for _, it := range []*models.MenuItem{burger, soup} {
		if err := repo.CreateMenuItem(ctx, it); err != nil {
			t.Fatalf("CreateMenuItem(%s): %v", it.Name, err)
		}
	}

	items, err := repo.ListMenuItems(ctx)
	if err != nil {
		t.Fatalf("ListMenuItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Category != "Appetizers" {
		t.Errorf("expected items ordered by category, first is %q", items[0].Category)
	}

	got, err := repo.GetMenuItem(ctx, soup.ID)
	if err != nil {
		t.Fatalf("GetMenuItem: %v", err)
	}
	if got.Price != 0 || got.IsAvailable {
		t.Errorf("zero values not preserved: %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}

	burger.Price = 14.5
	burger.ImageURL = ""
	burger.UpdatedAt = now.Add(time.Minute)
	if err := repo.UpdateMenuItem(ctx, burger); err != nil {
		t.Fatalf("UpdateMenuItem: %v", err)
	}
	got, err = repo.GetMenuItem(ctx, burger.ID)
	if err != nil {
		t.Fatalf("GetMenuItem after update: %v", err)
	}
	if got.Price != 14.5 || got.ImageURL != "" {
		t.Errorf("update not applied: %+v", got)
	}

	missing := &models.MenuItem{ID: uuid.NewString(), Name: "x", UpdatedAt: now}
	if err := repo.UpdateMenuItem(ctx, missing); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateMenuItem(missing) = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetMenuItem(ctx, missing.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetMenuItem(missing) = %v, want ErrNotFound", err)
	}

	if err := repo.DeleteMenuItem(ctx, burger.ID); err != nil {
		t.Fatalf("DeleteMenuItem: %v", err)
	}
	if err := repo.DeleteMenuItem(ctx, burger.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second DeleteMenuItem = %v, want ErrNotFound", err)
	}
	items, _ = repo.ListMenuItems(ctx)
	if len(items) != 1 || items[0].ID != soup.ID {
		t.Errorf("deleted item still listed: %+v", items)
	}
}

func testOrders(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	newOrder := func(code, email string, at time.Time) *models.Order {
		return &models.Order{
			ID: uuid.NewString(), OrderCode: code, CustomerName: "John Doe", CustomerEmail: email,
			TableNumber: "A12",
			Items: []models.LineItem{
				{ID: "i1", Name: "Burger", Price: 12.99, Quantity: 2},
				{ID: "i2", Name: "Cola", Price: 2.5, Quantity: 1},
			},
			Total: 28.48, Notes: "Extra sauce", Status: models.StatusPending,
			CreatedAt: at, UpdatedAt: at,
		}
	}

	first := newOrder("ORD-AAAAAA", "john@example.com", base)
	second := newOrder("ORD-BBBBBB", "JOHN@example.com", base.Add(time.Second))
	other := newOrder("ORD-CCCCCC", "jane@example.com", base.Add(2*time.Second))
	for _, o := range []*models.Order{first, second, other} {
		if err := repo.CreateOrder(ctx, o); err != nil {
			t.Fatalf("CreateOrder(%s): %v", o.OrderCode, err)
		}
	}

	dup := newOrder("ORD-AAAAAA", "x@example.com", base)
	if err := repo.CreateOrder(ctx, dup); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("CreateOrder(duplicate code) = %v, want ErrDuplicate", err)
	}

	got, err := repo.GetOrder(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(got.Items) != 2 || got.Items[0].Name != "Burger" || got.Items[0].Price != 12.99 || got.Items[0].Quantity != 2 {
		t.Errorf("line items not round-tripped: %+v", got.Items)
	}
	if got.OrderCode != "ORD-AAAAAA" || got.TableNumber != "A12" || got.Notes != "Extra sauce" {
		t.Errorf("order fields not round-tripped: %+v", got)
	}

	all, err := repo.ListOrders(ctx)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(all) != 3 || all[0].ID != other.ID || all[2].ID != first.ID {
		t.Errorf("ListOrders not newest first: %v", codes(all))
	}

	mine, err := repo.ListOrdersByEmail(ctx, "John@Example.com")
	if err != nil {
		t.Fatalf("ListOrdersByEmail: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != second.ID {
		t.Errorf("ListOrdersByEmail = %v, want [ORD-BBBBBB ORD-AAAAAA]", codes(mine))
	}

	first.Status = models.StatusPreparing
	first.UpdatedAt = base.Add(time.Hour)
	if err := repo.UpdateOrderStatus(ctx, first, models.StatusPending); err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	got, _ = repo.GetOrder(ctx, first.ID)
	if got.Status != models.StatusPreparing {
		t.Errorf("status = %q, want preparing", got.Status)
	}
	if got.Total != 28.48 || len(got.Items) != 2 {
		t.Errorf("status update touched other fields: %+v", got)
	}

	// A stale expected status leaves the stored one alone.
	stale := *first
	stale.Status = models.StatusCancelled
	if err := repo.UpdateOrderStatus(ctx, &stale, models.StatusPending); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateOrderStatus(stale) = %v, want ErrNotFound", err)
	}
	if got, _ = repo.GetOrder(ctx, first.ID); got.Status != models.StatusPreparing {
		t.Errorf("stale update changed status to %q", got.Status)
	}

	ghost := &models.Order{ID: uuid.NewString(), Status: models.StatusReady, UpdatedAt: base}
	if err := repo.UpdateOrderStatus(ctx, ghost, models.StatusPending); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateOrderStatus(missing) = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetOrder(ctx, ghost.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetOrder(missing) = %v, want ErrNotFound", err)
	}
}

func testUsers(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	u := &models.User{
		ID: uuid.NewString(), Name: "Admin", Email: "admin@example.com",
		PasswordHash: "hash", Role: models.RoleAdmin, CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	clash := *u
	clash.ID = uuid.NewString()
	clash.Email = "ADMIN@example.com"
	if err := repo.CreateUser(ctx, &clash); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("CreateUser(duplicate email) = %v, want ErrDuplicate", err)
	}

	got, err := repo.GetUserByEmail(ctx, "Admin@Example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != u.ID || got.PasswordHash != "hash" || got.Role != models.RoleAdmin {
		t.Errorf("user not round-tripped: %+v", got)
	}
	if _, err := repo.GetUserByID(ctx, u.ID); err != nil {
		t.Errorf("GetUserByID: %v", err)
	}
	if _, err := repo.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetUserByEmail(missing) = %v, want ErrNotFound", err)
	}
}

func codes(orders []models.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.OrderCode
	}
	return out
}
