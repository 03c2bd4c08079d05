// README: Refund review-flow and cost-distribution tests.
package refund

import (
	"context"
	"errors"
	"testing"

	"kota/internal/modules/order"
	"kota/internal/types"
)

type markerCall struct {
	orderID types.ID
	note    string
}

type fakeMarker struct {
	calls []markerCall
	err   error
}

func (m *fakeMarker) MarkRefunded(_ context.Context, orderID types.ID, note string) error {
	m.calls = append(m.calls, markerCall{orderID: orderID, note: note})
	return m.err
}

func deliveredOrder() *order.Order {
	rid := types.ID("r1")
	return &order.Order{
		ID:          "ord-1",
		CustomerID:  "c1",
		StoreID:     "s1",
		RiderID:     &rid,
		Subtotal:    100,
		DeliveryFee: 30,
		Tip:         10,
		Discount:    20,
		Total:       120,
		Currency:    "ZAR",
		Status:      order.StatusDelivered,
	}
}

func openTestRefund(t *testing.T, svc *Service, amount float64) *Refund {
	t.Helper()
	r, err := svc.Open(context.Background(), deliveredOrder(), amount, "cold food")
	if err != nil {
		t.Fatalf("open refund: %v", err)
	}
	return r
}

func TestOpenValidation(t *testing.T) {
	svc := NewService(NewMemoryStore(), &fakeMarker{})
	o := deliveredOrder()

	if _, err := svc.Open(context.Background(), o, 0, "x"); err != ErrBadRequest {
		t.Fatalf("zero amount: expected ErrBadRequest, got %v", err)
	}
	if _, err := svc.Open(context.Background(), o, -5, "x"); err != ErrBadRequest {
		t.Fatalf("negative amount: expected ErrBadRequest, got %v", err)
	}
	if _, err := svc.Open(context.Background(), o, 120.01, "x"); err != ErrBadRequest {
		t.Fatalf("amount over total: expected ErrBadRequest, got %v", err)
	}

	r, err := svc.Open(context.Background(), o, 120, "cold food")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if r.Status != StatusPendingReview {
		t.Fatalf("expected pending_review, got %s", r.Status)
	}
	if r.Snapshot.Total != 120 || r.Snapshot.Currency != "ZAR" {
		t.Fatalf("snapshot not frozen: %+v", r.Snapshot)
	}
}

func TestStartReview(t *testing.T) {
	svc := NewService(NewMemoryStore(), &fakeMarker{})
	r := openTestRefund(t, svc, 120)

	got, err := svc.StartReview(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("start review: %v", err)
	}
	if got.Status != StatusUnderReview {
		t.Fatalf("expected under_review, got %s", got.Status)
	}

	if _, err := svc.StartReview(context.Background(), r.ID); err != ErrInvalidStatus {
		t.Fatalf("second start review: expected ErrInvalidStatus, got %v", err)
	}
}

func TestDecideDistributionMismatch(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, &fakeMarker{})
	r := openTestRefund(t, svc, 120)

	_, err := svc.Decide(context.Background(), DecideCommand{
		RefundID:       r.ID,
		Decision:       DecisionApprove,
		ApprovedAmount: 120,
		Distribution:   &Distribution{FromStore: 80, FromDriver: 30, FromPlatform: 5},
	})
	if err != ErrDistributionMismatch {
		t.Fatalf("expected ErrDistributionMismatch, got %v", err)
	}

	got, _ := svc.Get(context.Background(), r.ID)
	if got.Status != StatusPendingReview {
		t.Fatalf("status must keep its prior value, got %s", got.Status)
	}
	if len(store.Postings(r.OrderID)) != 0 {
		t.Fatal("no postings may exist after a mismatched decision")
	}
}

func TestDecideApproveFullRefund(t *testing.T) {
	store := NewMemoryStore()
	marker := &fakeMarker{}
	svc := NewService(store, marker)
	r := openTestRefund(t, svc, 120)

	got, err := svc.Decide(context.Background(), DecideCommand{
		RefundID:       r.ID,
		Decision:       DecisionApprove,
		ApprovedAmount: 120,
		Distribution:   &Distribution{FromStore: 70, FromDriver: 40, FromPlatform: 10},
		Note:           "full refund",
	})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.ApprovedAmount != 120 {
		t.Fatalf("approved amount = %v, want 120", got.ApprovedAmount)
	}

	postings := store.Postings(r.OrderID)
	if len(postings) != 3 {
		t.Fatalf("expected 3 debits, got %d", len(postings))
	}
	sum := 0.0
	for _, p := range postings {
		if p.Amount >= 0 {
			t.Errorf("refund debit must be negative, got %v for %s", p.Amount, p.Party)
		}
		sum += p.Amount
	}
	if sum != -120 {
		t.Fatalf("debits sum %v, want -120", sum)
	}

	if len(marker.calls) != 1 || marker.calls[0].orderID != r.OrderID {
		t.Fatalf("expected order marked refunded once, got %+v", marker.calls)
	}
}

func TestDecideApprovePartialRefund(t *testing.T) {
	store := NewMemoryStore()
	marker := &fakeMarker{}
	svc := NewService(store, marker)
	r := openTestRefund(t, svc, 50)

	got, err := svc.Decide(context.Background(), DecideCommand{
		RefundID:       r.ID,
		Decision:       DecisionApprove,
		ApprovedAmount: 50,
		Distribution:   &Distribution{FromStore: 40, FromDriver: 0, FromPlatform: 10},
	})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if len(marker.calls) != 0 {
		t.Fatal("partial refund must not retire the order")
	}
	// Zero-amount parties get no posting.
	if len(store.Postings(r.OrderID)) != 2 {
		t.Fatalf("expected 2 debits (driver skipped), got %d", len(store.Postings(r.OrderID)))
	}
}

func TestDecidePostingFailureParksFailed(t *testing.T) {
	store := NewMemoryStore()
	store.FailPostings = errors.New("ledger unavailable")
	marker := &fakeMarker{}
	svc := NewService(store, marker)
	r := openTestRefund(t, svc, 120)

	got, err := svc.Decide(context.Background(), DecideCommand{
		RefundID:       r.ID,
		Decision:       DecisionApprove,
		ApprovedAmount: 120,
		Distribution:   &Distribution{FromStore: 70, FromDriver: 40, FromPlatform: 10},
	})
	if err != nil {
		t.Fatalf("decide with failing postings: %v", err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.FailureReason != "ledger unavailable" {
		t.Fatalf("failure reason = %q", got.FailureReason)
	}
	if len(marker.calls) != 0 {
		t.Fatal("failed refund must not retire the order")
	}
}

func TestDecideReject(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, &fakeMarker{})
	r := openTestRefund(t, svc, 120)

	got, err := svc.Decide(context.Background(), DecideCommand{
		RefundID: r.ID,
		Decision: DecisionReject,
		Note:     "no evidence",
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s", got.Status)
	}
	if got.ReviewNote != "no evidence" {
		t.Fatalf("review note = %q", got.ReviewNote)
	}
	if len(store.Postings(r.OrderID)) != 0 {
		t.Fatal("rejected refund must not post debits")
	}

	// Terminal: no second decision.
	if _, err := svc.Decide(context.Background(), DecideCommand{RefundID: r.ID, Decision: DecisionApprove, ApprovedAmount: 120}); err != ErrInvalidStatus {
		t.Fatalf("decide on rejected: expected ErrInvalidStatus, got %v", err)
	}
}

func TestDecideNoRiderForbidsDriverShare(t *testing.T) {
	svc := NewService(NewMemoryStore(), &fakeMarker{})
	o := deliveredOrder()
	o.RiderID = nil
	r, err := svc.Open(context.Background(), o, 120, "rejected order")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	_, err = svc.Decide(context.Background(), DecideCommand{
		RefundID:       r.ID,
		Decision:       DecisionApprove,
		ApprovedAmount: 120,
		Distribution:   &Distribution{FromStore: 80, FromDriver: 20, FromPlatform: 20},
	})
	if err != ErrBadRequest {
		t.Fatalf("driver share without rider: expected ErrBadRequest, got %v", err)
	}
}

func TestDecideApproveBounds(t *testing.T) {
	svc := NewService(NewMemoryStore(), &fakeMarker{})
	r := openTestRefund(t, svc, 120)

	_, err := svc.Decide(context.Background(), DecideCommand{
		RefundID:       r.ID,
		Decision:       DecisionApprove,
		ApprovedAmount: 130,
		Distribution:   &Distribution{FromStore: 130},
	})
	if err != ErrBadRequest {
		t.Fatalf("amount over snapshot total: expected ErrBadRequest, got %v", err)
	}
}

func TestFullRefundToleratesNonDeliveredOrder(t *testing.T) {
	// A rejected (never delivered) order cannot move to refunded; the refund
	// still completes.
	store := NewMemoryStore()
	marker := &fakeMarker{err: order.ErrInvalidTransition}
	svc := NewService(store, marker)
	r := openTestRefund(t, svc, 120)

	got, err := svc.Decide(context.Background(), DecideCommand{
		RefundID:       r.ID,
		Decision:       DecisionApprove,
		ApprovedAmount: 120,
		Distribution:   &Distribution{FromStore: 70, FromDriver: 40, FromPlatform: 10},
	})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}
