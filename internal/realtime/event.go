package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alextreichler/qrmenu/internal/models"
)

const (
	KindNewOrder          = "newOrder"
	KindOrderStatusUpdate = "orderStatusUpdate"
)

// Event is the frame sent to every subscriber: {"event": ..., "data": ...}.
type Event struct {
	Kind string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

type StatusUpdate struct {
	OrderID string             `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
}

// Publisher delivers an event to every connected subscriber. Delivery is
// best effort; callers must not wait on subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

func NewOrderEvent(o *models.Order) (Event, error) {
	return newEvent(KindNewOrder, o)
}

func StatusUpdateEvent(orderID string, status models.OrderStatus) (Event, error) {
	return newEvent(KindOrderStatusUpdate, StatusUpdate{OrderID: orderID, Status: status})
}

func newEvent(kind string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event: %w", kind, err)
	}
	return Event{Kind: kind, Data: data}, nil
}
