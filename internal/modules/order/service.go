// README: Order service implements the actor-gated state machine and payment hooks.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kota/internal/modules/ledger"
	"kota/internal/modules/payments"
	"kota/internal/types"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyAssigned   = errors.New("order already has a rider assigned")
	ErrForbidden         = errors.New("actor may not perform this transition")
	ErrNotFound          = errors.New("order not found")
	ErrConflict          = errors.New("order state conflict")
	ErrBadRequest        = errors.New("bad request")
	ErrPaymentMismatch   = errors.New("payment verification did not match order amount")
)

// PriceSource is the read-only catalog consulted once, at order creation.
type PriceSource interface {
	Lookup(ctx context.Context, productID types.ID) (Price, error)
}

type Price struct {
	Name      string
	Wholesale float64
	MarkupPct float64
}

// RefundOpener lets a rejected-but-paid order open a refund without the order
// package depending on the refund module.
type RefundOpener interface {
	OpenForOrder(ctx context.Context, o *Order, amount float64, reason string) error
}

type Service struct {
	store    Store
	prices   PriceSource
	provider payments.Provider
	refunds  RefundOpener
}

func NewService(store Store, prices PriceSource, provider payments.Provider) *Service {
	return &Service{store: store, prices: prices, provider: provider}
}

// SetRefundOpener wires the refund module after construction; order and refund
// reference each other only through small interfaces.
func (s *Service) SetRefundOpener(r RefundOpener) {
	s.refunds = r
}

type CreateItem struct {
	ProductID    types.ID
	Quantity     int
	ModifierUnit float64
}

type CreateCommand struct {
	CustomerID  types.ID
	StoreID     types.ID
	Items       []CreateItem
	DeliveryFee float64
	Tip         float64
	Discount    float64
	Currency    string
}

type TransitionCommand struct {
	OrderID types.ID
	Target  Status
	Actor   types.Actor
	// RiderID names the rider for an admin-driven assignment; riders claiming
	// for themselves leave it empty.
	RiderID types.ID
	Note    string
}

// Create snapshots catalog prices into line items and opens the order in
// pending, unpaid. total = subtotal + deliveryFee + tip - discount.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.CustomerID == "" || cmd.StoreID == "" || len(cmd.Items) == 0 {
		return nil, ErrBadRequest
	}
	if cmd.DeliveryFee < 0 || cmd.Tip < 0 || cmd.Discount < 0 {
		return nil, ErrBadRequest
	}
	currency := cmd.Currency
	if currency == "" {
		currency = "ZAR"
	}

	now := time.Now().UTC()
	items := make([]LineItem, 0, len(cmd.Items))
	subtotal := 0.0
	for _, it := range cmd.Items {
		if it.Quantity <= 0 {
			return nil, ErrBadRequest
		}
		p, err := s.prices.Lookup(ctx, it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("price lookup for %s: %w", it.ProductID, err)
		}
		unit := payments.Round2(p.Wholesale * (1 + p.MarkupPct/100))
		items = append(items, LineItem{
			ProductID:    it.ProductID,
			Name:         p.Name,
			Quantity:     it.Quantity,
			UnitPrice:    unit,
			ModifierUnit: payments.Round2(it.ModifierUnit),
			MarkupPct:    p.MarkupPct,
		})
		subtotal = payments.Round2(subtotal + payments.Round2((unit+it.ModifierUnit)*float64(it.Quantity)))
	}

	o := &Order{
		ID:            types.NewID(),
		CustomerID:    cmd.CustomerID,
		StoreID:       cmd.StoreID,
		Items:         items,
		Subtotal:      subtotal,
		DeliveryFee:   payments.Round2(cmd.DeliveryFee),
		Tip:           payments.Round2(cmd.Tip),
		Discount:      payments.Round2(cmd.Discount),
		Currency:      currency,
		Status:        StatusPending,
		StatusVersion: 0,
		PaymentStatus: payments.StatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
		History: []HistoryEntry{{
			Status: StatusPending,
			Actor:  types.Actor{Role: types.RoleCustomer, ID: cmd.CustomerID},
			At:     now,
		}},
	}
	o.Total = payments.Round2(o.Subtotal + o.DeliveryFee + o.Tip - o.Discount)

	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Transition applies one actor-gated status change. A target equal to the
// current status is an idempotent no-op: no history entry, no side effects.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*Order, bool, []Event, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, false, nil, err
	}

	if o.Status == cmd.Target {
		// Idempotent retry of the same transition. A different rider trying
		// to claim an already-assigned order is not a retry.
		if cmd.Target == StatusAssigned && cmd.Actor.Role == types.RoleRider &&
			o.RiderID != nil && *o.RiderID != cmd.Actor.ID {
			return nil, false, nil, ErrAlreadyAssigned
		}
		return o, false, nil, nil
	}
	if IsFrozen(o.Status) {
		return nil, false, nil, ErrInvalidTransition
	}
	if !CanTransition(o.Status, cmd.Target) {
		return nil, false, nil, ErrInvalidTransition
	}
	if !roleMayTransition(cmd.Target, cmd.Actor.Role) {
		return nil, false, nil, ErrForbidden
	}

	var riderID *types.ID
	switch cmd.Target {
	case StatusAssigned:
		if o.RiderID != nil {
			return nil, false, nil, ErrAlreadyAssigned
		}
		rid := cmd.Actor.ID
		if cmd.Actor.Role == types.RoleAdmin {
			rid = cmd.RiderID
		}
		if rid == "" {
			return nil, false, nil, ErrBadRequest
		}
		riderID = &rid
	case StatusRejected:
		if cmd.Note == "" {
			return nil, false, nil, ErrBadRequest
		}
	}

	entry := HistoryEntry{
		Status: cmd.Target,
		Actor:  cmd.Actor,
		Note:   cmd.Note,
		At:     time.Now().UTC(),
	}

	if cmd.Target == StatusDelivered {
		return s.completeDelivery(ctx, o, entry)
	}

	ok, err := s.store.ApplyTransition(ctx, ApplyTransition{
		OrderID: o.ID,
		From:    o.Status,
		Version: o.StatusVersion,
		To:      cmd.Target,
		RiderID: riderID,
		Entry:   entry,
	})
	if err != nil {
		return nil, false, nil, err
	}
	if !ok {
		return nil, false, nil, ErrConflict
	}

	updated, err := s.store.Get(ctx, o.ID)
	if err != nil {
		return nil, false, nil, err
	}

	events := []Event{statusEvent(updated, cmd.Target)}
	if cmd.Target == StatusReadyForPickup {
		events = append(events, Event{
			Kind:    EventOrderAvailable,
			OrderID: updated.ID,
			Payload: map[string]any{
				"order_id":     string(updated.ID),
				"store_id":     string(updated.StoreID),
				"delivery_fee": updated.DeliveryFee,
				"tip":          updated.Tip,
			},
		})
	}

	if cmd.Target == StatusRejected && updated.PaymentStatus == payments.StatusCompleted {
		if s.refunds != nil {
			if err := s.refunds.OpenForOrder(ctx, updated, updated.Total, "order rejected: "+cmd.Note); err != nil {
				slog.Error("open refund for rejected order", "order_id", updated.ID, "err", err)
			}
		}
	}

	return updated, true, events, nil
}

// completeDelivery computes the split and commits status change, split
// snapshot and the three ledger postings in a single store transaction.
// The ledger_posted flag guards against double posting under retries.
func (s *Service) completeDelivery(ctx context.Context, o *Order, entry HistoryEntry) (*Order, bool, []Event, error) {
	if o.LedgerPosted {
		// A retry raced a completed delivery; the duplicate-status no-op
		// above normally catches this first.
		return o, false, nil, nil
	}
	if o.RiderID == nil {
		return nil, false, nil, ErrInvalidTransition
	}

	split, err := payments.ComputeSplit(o.SplitInput())
	if err != nil {
		return nil, false, nil, err
	}

	now := time.Now().UTC()
	postings := []ledger.Posting{
		{ID: types.NewID(), OrderID: o.ID, Party: ledger.PartyStore, PartyID: o.StoreID, Kind: ledger.KindStoreRevenue, Amount: split.Store, Currency: o.Currency, CreatedAt: now},
		{ID: types.NewID(), OrderID: o.ID, Party: ledger.PartyDriver, PartyID: *o.RiderID, Kind: ledger.KindDriverEarning, Amount: split.Driver, Currency: o.Currency, CreatedAt: now},
		{ID: types.NewID(), OrderID: o.ID, Party: ledger.PartyPlatform, PartyID: types.ID("platform"), Kind: ledger.KindPlatformCommission, Amount: split.Platform, Currency: o.Currency, CreatedAt: now},
	}

	ok, err := s.store.CompleteDelivery(ctx, CompleteDelivery{
		OrderID:  o.ID,
		From:     o.Status,
		Version:  o.StatusVersion,
		Entry:    entry,
		Split:    split,
		Postings: postings,
	})
	if err != nil {
		return nil, false, nil, err
	}
	if !ok {
		return nil, false, nil, ErrConflict
	}

	updated, err := s.store.Get(ctx, o.ID)
	if err != nil {
		return nil, false, nil, err
	}
	events := []Event{
		statusEvent(updated, StatusDelivered),
		{Kind: EventOrderDelivered, OrderID: updated.ID, Payload: map[string]any{
			"order_id": string(updated.ID),
			"total":    updated.Total,
		}},
	}
	return updated, true, events, nil
}

// InitiatePayment asks the provider for a checkout reference/redirect.
func (s *Service) InitiatePayment(ctx context.Context, orderID types.ID) (payments.InitResult, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return payments.InitResult{}, err
	}
	if o.Status != StatusPending || o.PaymentStatus == payments.StatusCompleted {
		return payments.InitResult{}, ErrInvalidTransition
	}
	ref := o.PaymentRef
	if ref == "" {
		ref = string(types.NewID())
	}
	res, err := s.provider.Initialize(ctx, o.Total, o.Currency, ref)
	if err != nil {
		return payments.InitResult{}, err
	}
	if err := s.store.SetPayment(ctx, o.ID, payments.StatusUnpaid, res.Reference); err != nil {
		return payments.InitResult{}, err
	}
	return res, nil
}

// ConfirmPayment verifies the reference with the provider and, on success for
// the exact order amount, moves pending -> placed as the system actor. This is
// the only way an order becomes placed.
func (s *Service) ConfirmPayment(ctx context.Context, orderID types.ID, reference string) (*Order, []Event, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o.Status != StatusPending {
		if o.PaymentStatus == payments.StatusCompleted {
			return o, nil, nil
		}
		return nil, nil, ErrInvalidTransition
	}

	res, err := s.provider.Verify(ctx, reference)
	if err != nil {
		return nil, nil, fmt.Errorf("verify payment: %w", err)
	}
	if res.Status != payments.StatusCompleted || payments.Round2(res.Amount) != o.Total {
		return nil, nil, ErrPaymentMismatch
	}

	if err := s.store.SetPayment(ctx, o.ID, payments.StatusCompleted, reference); err != nil {
		return nil, nil, err
	}

	updated, appended, events, err := s.Transition(ctx, TransitionCommand{
		OrderID: o.ID,
		Target:  StatusPlaced,
		Actor:   types.Actor{Role: types.RoleSystem},
		Note:    "payment confirmed",
	})
	if err != nil {
		return nil, nil, err
	}
	if appended {
		events = append(events, Event{Kind: EventOrderPlaced, OrderID: updated.ID, Payload: map[string]any{
			"order_id": string(updated.ID),
			"total":    updated.Total,
		}})
	}
	return updated, events, nil
}

// MarkRefunded is reserved for the refund module: a fully refunded delivered
// order moves to the refunded terminal state with a history entry.
func (s *Service) MarkRefunded(ctx context.Context, orderID types.ID, note string) error {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status == StatusRefunded {
		return nil
	}
	if o.Status != StatusDelivered {
		return ErrInvalidTransition
	}
	ok, err := s.store.MarkRefunded(ctx, o.ID, o.StatusVersion, HistoryEntry{
		Status: StatusRefunded,
		Actor:  types.Actor{Role: types.RoleSystem},
		Note:   note,
		At:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}
