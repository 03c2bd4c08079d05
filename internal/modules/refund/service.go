// README: Refund service: review flow, distribution validation, ledger debits.
package refund

import (
	"context"
	"errors"
	"time"

	"kota/internal/modules/ledger"
	"kota/internal/modules/order"
	"kota/internal/modules/payments"
	"kota/internal/types"
)

var (
	ErrNotFound             = errors.New("refund not found")
	ErrInvalidStatus        = errors.New("refund not in a reviewable status")
	ErrDistributionMismatch = errors.New("distribution does not sum to approved amount")
	ErrConflict             = errors.New("refund state conflict")
	ErrBadRequest           = errors.New("bad request")
)

// OrderMarker moves a fully refunded delivered order to its terminal state.
type OrderMarker interface {
	MarkRefunded(ctx context.Context, orderID types.ID, note string) error
}

type Service struct {
	store  Store
	orders OrderMarker
}

func NewService(store Store, orders OrderMarker) *Service {
	return &Service{store: store, orders: orders}
}

// Open files a refund against an order, snapshotting its totals and split.
func (s *Service) Open(ctx context.Context, o *order.Order, amount float64, reason string) (*Refund, error) {
	amount = payments.Round2(amount)
	if amount <= 0 || amount > o.Total {
		return nil, ErrBadRequest
	}
	now := time.Now().UTC()
	r := &Refund{
		ID:              types.NewID(),
		OrderID:         o.ID,
		StoreID:         o.StoreID,
		RiderID:         o.RiderID,
		RequestedAmount: amount,
		Reason:          reason,
		Status:          StatusPendingReview,
		Snapshot: OrderSnapshot{
			Subtotal:    o.Subtotal,
			DeliveryFee: o.DeliveryFee,
			Tip:         o.Tip,
			Discount:    o.Discount,
			Total:       o.Total,
			Currency:    o.Currency,
			Split:       o.Split,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// OpenForOrder satisfies order.RefundOpener for the rejected-order path.
func (s *Service) OpenForOrder(ctx context.Context, o *order.Order, amount float64, reason string) error {
	_, err := s.Open(ctx, o, amount, reason)
	return err
}

func (s *Service) StartReview(ctx context.Context, id types.ID) (*Refund, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPendingReview {
		return nil, ErrInvalidStatus
	}
	ok, err := s.store.UpdateStatus(ctx, id, StatusPendingReview, StatusUnderReview, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return s.store.Get(ctx, id)
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type DecideCommand struct {
	RefundID       types.ID
	Decision       Decision
	ApprovedAmount float64
	Distribution   *Distribution
	Note           string
}

// Decide resolves a review. An approval whose distribution does not sum to the
// approved amount is rejected with ErrDistributionMismatch and the refund keeps
// its prior status. On approval the debits are posted in one transaction; a
// posting failure parks the refund in failed with a reason, never retried
// silently.
func (s *Service) Decide(ctx context.Context, cmd DecideCommand) (*Refund, error) {
	r, err := s.store.Get(ctx, cmd.RefundID)
	if err != nil {
		return nil, err
	}
	if !reviewable(r.Status) {
		return nil, ErrInvalidStatus
	}

	if cmd.Decision == DecisionReject {
		ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusRejected, cmd.Note)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrConflict
		}
		return s.store.Get(ctx, r.ID)
	}
	if cmd.Decision != DecisionApprove {
		return nil, ErrBadRequest
	}

	amount := payments.Round2(cmd.ApprovedAmount)
	if amount <= 0 || amount > r.Snapshot.Total {
		return nil, ErrBadRequest
	}
	d := cmd.Distribution
	if d == nil {
		return nil, ErrDistributionMismatch
	}
	if !payments.SumsTo(d.FromStore, d.FromDriver, d.FromPlatform, amount) {
		return nil, ErrDistributionMismatch
	}
	if r.RiderID == nil && d.FromDriver != 0 {
		return nil, ErrBadRequest
	}

	ok, err := s.store.Approve(ctx, r.ID, r.Status, amount, *d, cmd.Note)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	postings := s.buildPostings(r, amount, *d)
	ok, err = s.store.CompleteWithPostings(ctx, r.ID, postings)
	if err != nil {
		if ferr := s.store.MarkFailed(ctx, r.ID, err.Error()); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return s.store.Get(ctx, r.ID)
	}
	if !ok {
		return nil, ErrConflict
	}

	// A full refund retires a delivered order; partial refunds and refunds on
	// rejected orders leave the order status alone.
	if amount == r.Snapshot.Total && s.orders != nil {
		if err := s.orders.MarkRefunded(ctx, r.OrderID, "refund "+string(r.ID)+" completed"); err != nil &&
			!errors.Is(err, order.ErrInvalidTransition) {
			return nil, err
		}
	}
	return s.store.Get(ctx, r.ID)
}

func (s *Service) buildPostings(r *Refund, amount float64, d Distribution) []ledger.Posting {
	now := time.Now().UTC()
	var out []ledger.Posting
	add := func(party ledger.Party, partyID types.ID, amt float64) {
		if amt == 0 {
			return
		}
		out = append(out, ledger.Posting{
			ID:        types.NewID(),
			OrderID:   r.OrderID,
			Party:     party,
			PartyID:   partyID,
			Kind:      ledger.KindRefundDebit,
			Amount:    -amt,
			Currency:  r.Snapshot.Currency,
			CreatedAt: now,
		})
	}
	add(ledger.PartyStore, r.StoreID, d.FromStore)
	if r.RiderID != nil {
		add(ledger.PartyDriver, *r.RiderID, d.FromDriver)
	}
	add(ledger.PartyPlatform, types.ID("platform"), d.FromPlatform)
	return out
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Refund, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByOrder(ctx context.Context, orderID types.ID) ([]*Refund, error) {
	return s.store.ListByOrder(ctx, orderID)
}
