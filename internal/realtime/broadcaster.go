// README: Broadcast service: fan-out of order events and rider-pool announcements.
package realtime

import (
	"encoding/json"
	"log/slog"

	"kota/internal/types"
)

type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Publish delivers to every connection watching the order. Fire-and-forget: a
// disconnected or slow subscriber simply misses the event.
func (b *Broadcaster) Publish(orderID types.ID, kind string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal broadcast payload", "kind", kind, "err", err)
		return
	}
	msg := Message{Kind: kind, OrderID: orderID, Payload: raw}
	for _, c := range b.registry.Subscribers(orderID) {
		c.Send(msg)
	}
}

// BroadcastToAvailableDrivers announces to every rider currently flagged
// available, regardless of order subscriptions.
func (b *Broadcaster) BroadcastToAvailableDrivers(kind string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal broadcast payload", "kind", kind, "err", err)
		return
	}
	msg := Message{Kind: kind, Payload: raw}
	for _, c := range b.registry.AvailableConns() {
		c.Send(msg)
	}
}
