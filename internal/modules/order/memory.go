// README: In-memory order store with the same CAS semantics as the Postgres one.
package order

import (
	"context"
	"sync"

	"kota/internal/modules/ledger"
	"kota/internal/modules/payments"
	"kota/internal/types"
)

// MemoryStore keeps orders in a map guarded by a mutex. It exists for tests
// and local development; the CAS rules mirror PGStore exactly so race tests
// exercise the same serialization the database enforces.
type MemoryStore struct {
	mu       sync.Mutex
	orders   map[types.ID]*Order
	postings map[types.ID][]ledger.Posting
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[types.ID]*Order),
		postings: make(map[types.ID][]ledger.Posting),
	}
}

func (s *MemoryStore) Create(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) ApplyTransition(ctx context.Context, t ApplyTransition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[t.OrderID]
	if !ok {
		return false, ErrNotFound
	}
	if o.Status != t.From || o.StatusVersion != t.Version {
		return false, nil
	}
	o.Status = t.To
	o.StatusVersion++
	if t.RiderID != nil {
		rid := *t.RiderID
		o.RiderID = &rid
	}
	o.History = append(o.History, t.Entry)
	o.UpdatedAt = t.Entry.At
	return true, nil
}

func (s *MemoryStore) CompleteDelivery(ctx context.Context, c CompleteDelivery) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[c.OrderID]
	if !ok {
		return false, ErrNotFound
	}
	if o.Status != c.From || o.StatusVersion != c.Version || o.LedgerPosted {
		return false, nil
	}
	o.Status = StatusDelivered
	o.StatusVersion++
	sp := c.Split
	o.Split = &sp
	o.LedgerPosted = true
	o.History = append(o.History, c.Entry)
	o.UpdatedAt = c.Entry.At
	s.postings[c.OrderID] = append(s.postings[c.OrderID], c.Postings...)
	return true, nil
}

func (s *MemoryStore) SetPayment(ctx context.Context, id types.ID, status payments.Status, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.PaymentStatus = status
	o.PaymentRef = reference
	return nil
}

func (s *MemoryStore) MarkRefunded(ctx context.Context, id types.ID, version int, entry HistoryEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	if o.Status != StatusDelivered || o.StatusVersion != version {
		return false, nil
	}
	o.Status = StatusRefunded
	o.StatusVersion++
	o.History = append(o.History, entry)
	o.UpdatedAt = entry.At
	return true, nil
}

// Postings returns the ledger rows recorded for an order.
func (s *MemoryStore) Postings(orderID types.ID) []ledger.Posting {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Posting, len(s.postings[orderID]))
	copy(out, s.postings[orderID])
	return out
}

func cloneOrder(o *Order) *Order {
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	c.History = append([]HistoryEntry(nil), o.History...)
	if o.RiderID != nil {
		rid := *o.RiderID
		c.RiderID = &rid
	}
	if o.Split != nil {
		sp := *o.Split
		c.Split = &sp
	}
	return &c
}
