// README: Post-commit domain events handed to the broadcast/notify dispatcher.
package order

import "kota/internal/types"

type EventKind string

const (
	// EventStatusChanged goes to the order's subscriber group.
	EventStatusChanged EventKind = "status-changed"
	// EventOrderPlaced fires once payment is confirmed.
	EventOrderPlaced EventKind = "order-placed"
	// EventOrderAvailable fans out to the available-rider pool.
	EventOrderAvailable EventKind = "order-available"
	// EventOrderDelivered marks the terminal success transition.
	EventOrderDelivered EventKind = "order-delivered"
)

// Event is produced by a committed transition. The state machine never talks
// to sockets or mailers itself; the HTTP layer dispatches these afterwards.
type Event struct {
	Kind    EventKind
	OrderID types.ID
	Payload map[string]any
}

func statusEvent(o *Order, to Status) Event {
	return Event{
		Kind:    EventStatusChanged,
		OrderID: o.ID,
		Payload: map[string]any{
			"order_id": string(o.ID),
			"status":   string(to),
		},
	}
}
