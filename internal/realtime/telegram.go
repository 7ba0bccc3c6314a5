package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/alextreichler/qrmenu/internal/models"
)

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier forwards order events to a staff chat.
type TelegramNotifier struct {
	bot    messageSender
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	slog.Info("Telegram notifier ready", "bot", bot.Self.UserName, "chat_id", chatID)
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// Run subscribes to hub and sends one message per event until ctx is done.
func (n *TelegramNotifier) Run(ctx context.Context, hub *Hub) error {
	sub := hub.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			text, err := FormatEvent(ev)
			if err != nil {
				slog.Warn("Cannot format event for Telegram", "event", ev.Kind, "error", err)
				continue
			}
			if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
				slog.Error("Telegram send failed", "event", ev.Kind, "error", err)
			}
		}
	}
}

// FormatEvent renders ev as a short plain-text staff notification.
func FormatEvent(ev Event) (string, error) {
	switch ev.Kind {
	case KindNewOrder:
		var o models.Order
		if err := json.Unmarshal(ev.Data, &o); err != nil {
			return "", err
		}
		var b strings.Builder
		fmt.Fprintf(&b, "New order %s from %s", o.OrderCode, o.CustomerName)
		if o.TableNumber != "" {
			fmt.Fprintf(&b, " (table %s)", o.TableNumber)
		}
		b.WriteString("\n")
		for _, it := range o.Items {
			fmt.Fprintf(&b, "%d x %s\n", it.Quantity, it.Name)
		}
		fmt.Fprintf(&b, "Total: %.2f", o.Total)
		if o.Notes != "" {
			fmt.Fprintf(&b, "\nNotes: %s", o.Notes)
		}
		return b.String(), nil

	case KindOrderStatusUpdate:
		var u StatusUpdate
		if err := json.Unmarshal(ev.Data, &u); err != nil {
			return "", err
		}
		return fmt.Sprintf("Order %s is now %s", u.OrderID, u.Status), nil
	}
	return "", fmt.Errorf("unknown event kind %q", ev.Kind)
}
