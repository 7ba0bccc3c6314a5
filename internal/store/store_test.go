package store_test

import (
	"testing"

	"github.com/alextreichler/qrmenu/internal/store"
	"github.com/alextreichler/qrmenu/internal/store/storetest"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestSQLiteRepository(t *testing.T) {
	storetest.Run(t, newTestStore(t))
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	var applied int
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 1 {
		t.Errorf("expected 1 recorded migration, got %d", applied)
	}
}

func TestStatusCheckConstraint(t *testing.T) {
	s := newTestStore(t)
	_, err := s.DB.Exec(`INSERT INTO orders (id, order_code, customer_name, customer_email, items, total, status, created_at, updated_at)
		VALUES ('x', 'ORD-XXXXXX', 'a', 'a@b.co', '[]', 1, 'in-progress', 0, 0)`)
	if err == nil {
		t.Fatalf("expected CHECK constraint to reject unknown status")
	}
}
