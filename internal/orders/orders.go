package orders

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/alextreichler/qrmenu/internal/models"
	"github.com/alextreichler/qrmenu/internal/realtime"
	"github.com/alextreichler/qrmenu/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	codePrefix   = "ORD-"
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeAttempts = 5

	maxStatusAttempts = 3
)

var (
	emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	// Client totals within a cent of the computed total are accepted as-is.
	totalTolerance = decimal.New(1, -2)
)

type LineItemInput struct {
	ID       string   `json:"_id"`
	Name     string   `json:"name"`
	Price    *float64 `json:"price"`
	Quantity int      `json:"quantity"`
}

type CreateInput struct {
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	TableNumber   string          `json:"tableNumber"`
	Items         []LineItemInput `json:"items"`
	Total         *float64        `json:"total"`
	Notes         string          `json:"notes"`
}

type Service struct {
	Repo      store.OrderRepository
	Publisher realtime.Publisher

	Now   func() time.Time
	NewID func() string
	// NewCode returns a candidate order code. Collisions are retried.
	NewCode func() (string, error)
}

func NewService(repo store.OrderRepository, pub realtime.Publisher) *Service {
	return &Service{
		Repo:      repo,
		Publisher: pub,
		Now:       func() time.Time { return time.Now().UTC() },
		NewID:     uuid.NewString,
		NewCode:   GenerateCode,
	}
}

// GenerateCode returns "ORD-" followed by six random uppercase
// alphanumerics.
func GenerateCode() (string, error) {
	b := make([]byte, codeLength)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return codePrefix + string(b), nil
}

// Create validates in, stores a pending order and announces it. The stored
// total is always computed from the line items.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Order, error) {
	name := strings.TrimSpace(in.CustomerName)
	email := strings.TrimSpace(in.CustomerEmail)
	if name == "" || email == "" || in.Items == nil || in.Total == nil {
		return nil, models.Invalid("Please provide all required fields")
	}
	if len(in.Items) == 0 {
		return nil, models.Invalid("Order must contain at least one item")
	}
	if !emailRegex.MatchString(strings.ToLower(email)) {
		return nil, models.Invalid("Invalid email address")
	}
	if *in.Total < 0 {
		return nil, models.Invalid("Total cannot be negative")
	}

	items := make([]models.LineItem, len(in.Items))
	total := decimal.Zero
	for i, it := range in.Items {
		switch {
		case strings.TrimSpace(it.ID) == "" || strings.TrimSpace(it.Name) == "":
			return nil, models.Invalid("Item %d is missing an id or name", i+1)
		case it.Price == nil || *it.Price < 0:
			return nil, models.Invalid("Item %d must have a non-negative price", i+1)
		case it.Quantity < 1:
			return nil, models.Invalid("Item %d must have a quantity of at least 1", i+1)
		}
		items[i] = models.LineItem{ID: it.ID, Name: strings.TrimSpace(it.Name), Price: *it.Price, Quantity: it.Quantity}
		total = total.Add(decimal.NewFromFloat(*it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	total = total.Round(2)

	if client := decimal.NewFromFloat(*in.Total); client.Sub(total).Abs().GreaterThan(totalTolerance) {
		slog.Warn("Client total does not match line items, overriding",
			"client_total", client.StringFixed(2), "computed_total", total.StringFixed(2), "email", email)
	}

	now := s.Now()
	order := &models.Order{
		ID:            s.NewID(),
		CustomerName:  name,
		CustomerEmail: email,
		TableNumber:   strings.TrimSpace(in.TableNumber),
		Items:         items,
		Total:         total.InexactFloat64(),
		Notes:         strings.TrimSpace(in.Notes),
		Status:        models.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.insert(ctx, order); err != nil {
		return nil, err
	}
	slog.Info("Order created", "id", order.ID, "code", order.OrderCode, "total", order.Total)

	if ev, err := realtime.NewOrderEvent(order); err != nil {
		slog.Error("Failed to build newOrder event", "id", order.ID, "error", err)
	} else {
		s.publish(ctx, ev)
	}
	return order, nil
}

// insert stores order under a fresh order code, retrying on collisions.
func (s *Service) insert(ctx context.Context, order *models.Order) error {
	for attempt := 1; attempt <= codeAttempts; attempt++ {
		code, err := s.NewCode()
		if err != nil {
			return fmt.Errorf("generate order code: %w", err)
		}
		order.OrderCode = code
		err = s.Repo.CreateOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("create order: %w", err)
		}
		slog.Warn("Order code collision, retrying", "code", code, "attempt", attempt)
	}
	return fmt.Errorf("create order: no unique code after %d attempts", codeAttempts)
}

func (s *Service) List(ctx context.Context) ([]models.Order, error) {
	orders, err := s.Repo.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Order, error) {
	return s.Repo.GetOrder(ctx, id)
}

func (s *Service) ListByEmail(ctx context.Context, email string) ([]models.Order, error) {
	orders, err := s.Repo.ListOrdersByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("list orders for %s: %w", email, err)
	}
	return orders, nil
}

// UpdateStatus moves order id to raw status and announces the change.
// Re-applying the current status succeeds and is announced again.
func (s *Service) UpdateStatus(ctx context.Context, id, raw string) (*models.Order, error) {
	next, ok := models.ParseStatus(strings.TrimSpace(raw))
	if !ok {
		return nil, models.Invalid("Invalid status. Must be one of: %s", models.StatusList())
	}

	var order *models.Order
	var prev models.OrderStatus
	for attempt := 1; ; attempt++ {
		var err error
		order, err = s.Repo.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if !order.Status.CanTransition(next) {
			return nil, &models.TransitionError{From: order.Status, To: next}
		}

		prev = order.Status
		order.Status = next
		order.UpdatedAt = s.Now()
		err = s.Repo.UpdateOrderStatus(ctx, order, prev)
		if err == nil {
			break
		}
		// Not found here means the status moved since the read. Re-check the
		// transition against the fresh status.
		if !errors.Is(err, store.ErrNotFound) || attempt == maxStatusAttempts {
			return nil, fmt.Errorf("update order %s status: %w", id, err)
		}
		slog.Warn("Order status changed concurrently, retrying", "id", id, "from", prev, "to", next)
	}
	slog.Info("Order status updated", "id", id, "code", order.OrderCode, "from", prev, "to", next)

	if ev, err := realtime.StatusUpdateEvent(order.ID, order.Status); err != nil {
		slog.Error("Failed to build status event", "id", id, "error", err)
	} else {
		s.publish(ctx, ev)
	}
	return order, nil
}

// publish never fails the caller; delivery is best effort.
func (s *Service) publish(ctx context.Context, ev realtime.Event) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, ev); err != nil {
		slog.Error("Failed to publish event", "event", ev.Kind, "error", err)
	}
}
