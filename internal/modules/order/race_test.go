// README: Concurrency tests for rider claims and delivery posting.
package order

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"kota/internal/types"
)

// TestConcurrentRiderClaims races many riders for one order; exactly one may win.
func TestConcurrentRiderClaims(t *testing.T) {
	svc, _ := newTestService(t, 120)
	o := mustCreateOrder(t, svc)
	driveToStatus(t, svc, o.ID, StatusReadyForPickup)

	const riders = 16
	var wg sync.WaitGroup
	results := make([]error, riders)

	for i := 0; i < riders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, _, err := svc.Transition(context.Background(), TransitionCommand{
				OrderID: o.ID,
				Target:  StatusAssigned,
				Actor:   types.Actor{Role: types.RoleRider, ID: types.ID(fmt.Sprintf("rider-%d", i))},
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range results {
		switch err {
		case nil:
			wins++
		case ErrAlreadyAssigned, ErrConflict:
			// losers
		default:
			t.Errorf("rider %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winning claim, got %d", wins)
	}

	got, err := svc.Get(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusAssigned || got.RiderID == nil {
		t.Fatalf("expected assigned with rider, got %s rider=%v", got.Status, got.RiderID)
	}
}

// TestConcurrentDelivered races repeated delivery signals; the ledger must end
// with exactly one posting set.
func TestConcurrentDelivered(t *testing.T) {
	svc, store := newTestService(t, 120)
	o := mustCreateOrder(t, svc)
	driveToStatus(t, svc, o.ID, StatusOnTheWay)

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, _, err := svc.Transition(context.Background(), TransitionCommand{
				OrderID: o.ID,
				Target:  StatusDelivered,
				Actor:   types.Actor{Role: types.RoleRider, ID: "r1"},
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range results {
		if err != nil && err != ErrConflict {
			t.Errorf("attempt %d: unexpected error %v", i, err)
		}
	}
	if got := len(store.Postings(o.ID)); got != 3 {
		t.Fatalf("expected exactly 3 postings after racing deliveries, got %d", got)
	}
	final, _ := svc.Get(context.Background(), o.ID)
	if final.Status != StatusDelivered || !final.LedgerPosted {
		t.Fatalf("expected delivered with ledger posted, got %s posted=%v", final.Status, final.LedgerPosted)
	}
}
