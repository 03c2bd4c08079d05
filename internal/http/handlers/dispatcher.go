// README: Post-commit event dispatcher feeding the broadcaster and notifier.
package handlers

import (
	"context"
	"log/slog"

	"kota/internal/modules/order"
	"kota/internal/notify"
	"kota/internal/realtime"
)

// Dispatcher delivers the events a committed transition produced. The state
// machine itself never touches sockets or mailers; everything here is
// best-effort and happens after the store commit.
type Dispatcher struct {
	broadcaster *realtime.Broadcaster
	notifier    notify.Sender
}

func NewDispatcher(b *realtime.Broadcaster, n notify.Sender) *Dispatcher {
	return &Dispatcher{broadcaster: b, notifier: n}
}

func (d *Dispatcher) Dispatch(ctx context.Context, o *order.Order, events []order.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case order.EventOrderAvailable:
			d.broadcaster.BroadcastToAvailableDrivers(string(ev.Kind), ev.Payload)
		default:
			d.broadcaster.Publish(ev.OrderID, string(ev.Kind), ev.Payload)
		}

		switch ev.Kind {
		case order.EventStatusChanged:
			d.notify(ctx, o, "order_status_changed", ev.Payload)
		case order.EventOrderPlaced:
			d.notify(ctx, o, "order_placed", ev.Payload)
		case order.EventOrderDelivered:
			d.notify(ctx, o, "order_delivered", ev.Payload)
		}
	}
}

func (d *Dispatcher) notify(ctx context.Context, o *order.Order, template string, data map[string]any) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, o.CustomerID, template, data); err != nil {
		slog.Warn("notification failed", "order_id", o.ID, "template", template, "err", err)
	}
}
