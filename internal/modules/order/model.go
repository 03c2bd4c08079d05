// README: Order aggregate, status definitions and the transition/permission tables.
package order

import (
	"time"

	"kota/internal/modules/payments"
	"kota/internal/types"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusPlaced         Status = "placed"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusAssigned       Status = "assigned"
	StatusPickedUp       Status = "picked_up"
	StatusOnTheWay       Status = "on_the_way"
	StatusDelivered      Status = "delivered"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
	StatusRefunded       Status = "refunded"
)

// LineItem is frozen at order creation from the catalog; the core never
// re-reads prices after this snapshot.
type LineItem struct {
	ProductID    types.ID
	Name         string
	Quantity     int
	UnitPrice    float64
	ModifierUnit float64
	MarkupPct    float64
}

type HistoryEntry struct {
	Status Status
	Actor  types.Actor
	Note   string
	At     time.Time
}

type Order struct {
	ID            types.ID
	CustomerID    types.ID
	StoreID       types.ID
	RiderID       *types.ID
	Items         []LineItem
	Subtotal      float64
	DeliveryFee   float64
	Tip           float64
	Discount      float64
	Total         float64
	Currency      string
	Status        Status
	StatusVersion int
	History       []HistoryEntry
	PaymentStatus payments.Status
	PaymentRef    string
	Split         *payments.Split
	LedgerPosted  bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SplitInput projects the frozen order economics for the split engine.
func (o *Order) SplitInput() payments.SplitInput {
	items := make([]payments.LineItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = payments.LineItem{
			UnitPrice:    it.UnitPrice,
			ModifierUnit: it.ModifierUnit,
			Quantity:     it.Quantity,
			MarkupPct:    it.MarkupPct,
		}
	}
	return payments.SplitInput{
		Items:       items,
		DeliveryFee: o.DeliveryFee,
		Tip:         o.Tip,
		Discount:    o.Discount,
		Total:       o.Total,
	}
}

// AllowedTransitions represents the fulfillment state flow as code.
// Cancellation drops out of the table once the rider has picked up: a delivery
// in progress can only end in delivered, with refunds handled separately.
var AllowedTransitions = map[Status][]Status{
	StatusPending:        {StatusPlaced, StatusCancelled},
	StatusPlaced:         {StatusConfirmed, StatusRejected, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusRejected, StatusCancelled},
	StatusPreparing:      {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup: {StatusAssigned, StatusCancelled},
	StatusAssigned:       {StatusPickedUp, StatusCancelled},
	StatusPickedUp:       {StatusOnTheWay},
	StatusOnTheWay:       {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// transitionRoles gates which actor may drive an order into each status.
// pending -> placed is reserved for the payment-confirmation path.
var transitionRoles = map[Status][]types.Role{
	StatusPlaced:         {types.RoleSystem},
	StatusConfirmed:      {types.RoleStore, types.RoleAdmin},
	StatusPreparing:      {types.RoleStore, types.RoleAdmin},
	StatusReadyForPickup: {types.RoleStore, types.RoleAdmin},
	StatusAssigned:       {types.RoleRider, types.RoleAdmin},
	StatusPickedUp:       {types.RoleRider, types.RoleAdmin},
	StatusOnTheWay:       {types.RoleRider, types.RoleAdmin},
	StatusDelivered:      {types.RoleRider, types.RoleAdmin},
	StatusRejected:       {types.RoleStore, types.RoleAdmin},
	StatusCancelled:      {types.RoleCustomer, types.RoleStore, types.RoleAdmin},
}

func roleMayTransition(to Status, role types.Role) bool {
	allowed, ok := transitionRoles[to]
	if !ok {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// IsFrozen reports whether no further transition command may touch the order.
func IsFrozen(s Status) bool {
	switch s {
	case StatusDelivered, StatusRejected, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}
