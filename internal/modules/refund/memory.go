// README: In-memory refund store mirroring the Postgres CAS semantics.
package refund

import (
	"context"
	"errors"
	"sync"

	"kota/internal/modules/ledger"
	"kota/internal/types"
)

type MemoryStore struct {
	mu       sync.Mutex
	refunds  map[types.ID]*Refund
	postings map[types.ID][]ledger.Posting

	// FailPostings, when set, makes CompleteWithPostings fail so tests can
	// drive the failed path without a database.
	FailPostings error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		refunds:  make(map[types.ID]*Refund),
		postings: make(map[types.ID][]ledger.Posting),
	}
}

func (s *MemoryStore) Create(ctx context.Context, r *Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refunds[r.ID] = cloneRefund(r)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id types.ID) (*Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refunds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRefund(r), nil
}

func (s *MemoryStore) ListByOrder(ctx context.Context, orderID types.ID) ([]*Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Refund
	for _, r := range s.refunds {
		if r.OrderID == orderID {
			out = append(out, cloneRefund(r))
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, note string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refunds[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != from {
		return false, nil
	}
	r.Status = to
	if note != "" {
		r.ReviewNote = note
	}
	return true, nil
}

func (s *MemoryStore) Approve(ctx context.Context, id types.ID, from Status, amount float64, d Distribution, note string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refunds[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != from {
		return false, nil
	}
	r.Status = StatusProcessing
	r.ApprovedAmount = amount
	dd := d
	r.Distribution = &dd
	r.ReviewNote = note
	return true, nil
}

func (s *MemoryStore) CompleteWithPostings(ctx context.Context, id types.ID, postings []ledger.Posting) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPostings != nil {
		return false, s.FailPostings
	}
	r, ok := s.refunds[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != StatusProcessing {
		return false, nil
	}
	r.Status = StatusCompleted
	s.postings[r.OrderID] = append(s.postings[r.OrderID], postings...)
	return true, nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id types.ID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refunds[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != StatusProcessing {
		return errors.New("refund not in processing")
	}
	r.Status = StatusFailed
	r.FailureReason = reason
	return nil
}

// Postings returns the refund debits recorded against an order.
func (s *MemoryStore) Postings(orderID types.ID) []ledger.Posting {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Posting, len(s.postings[orderID]))
	copy(out, s.postings[orderID])
	return out
}

func cloneRefund(r *Refund) *Refund {
	c := *r
	if r.RiderID != nil {
		rid := *r.RiderID
		c.RiderID = &rid
	}
	if r.Distribution != nil {
		d := *r.Distribution
		c.Distribution = &d
	}
	if r.Snapshot.Split != nil {
		sp := *r.Snapshot.Split
		c.Snapshot.Split = &sp
	}
	return &c
}
