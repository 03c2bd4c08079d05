// README: Refund store: interface plus PostgreSQL implementation.
package refund

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kota/internal/modules/ledger"
	"kota/internal/types"
)

type Store interface {
	Create(ctx context.Context, r *Refund) error
	Get(ctx context.Context, id types.ID) (*Refund, error)
	ListByOrder(ctx context.Context, orderID types.ID) ([]*Refund, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, note string) (bool, error)
	// Approve records the decision and moves the refund to processing; the
	// debits are posted immediately afterwards so approved never rests.
	Approve(ctx context.Context, id types.ID, from Status, amount float64, d Distribution, note string) (bool, error)
	// CompleteWithPostings commits completed status and the ledger debits in
	// one transaction.
	CompleteWithPostings(ctx context.Context, id types.ID, postings []ledger.Posting) (bool, error)
	MarkFailed(ctx context.Context, id types.ID, reason string) error
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, r *Refund) error {
	snapshot, err := json.Marshal(r.Snapshot)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO refunds (
			id, order_id, store_id, rider_id,
			requested_amount, approved_amount, reason, review_note, failure_reason,
			status, distribution, snapshot, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, 0, $6, '', '',
			$7, NULL, $8, $9, $10
		)`,
		string(r.ID),
		string(r.OrderID),
		string(r.StoreID),
		riderPtr(r.RiderID),
		r.RequestedAmount,
		r.Reason,
		string(r.Status),
		snapshot,
		r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Refund, error) {
	row := s.db.QueryRow(ctx, selectRefund+` WHERE id = $1`, string(id))
	r, err := scanRefund(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *PGStore) ListByOrder(ctx context.Context, orderID types.ID) ([]*Refund, error) {
	rows, err := s.db.Query(ctx, selectRefund+` WHERE order_id = $1 ORDER BY created_at`, string(orderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Refund
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, note string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE refunds
		SET status = $1, review_note = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		string(to), note, string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) Approve(ctx context.Context, id types.ID, from Status, amount float64, d Distribution, note string) (bool, error) {
	dist, err := json.Marshal(d)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE refunds
		SET status = $1, approved_amount = $2, distribution = $3, review_note = $4, updated_at = NOW()
		WHERE id = $5 AND status = $6`,
		string(StatusProcessing), amount, dist, note, string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) CompleteWithPostings(ctx context.Context, id types.ID, postings []ledger.Posting) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE refunds
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(StatusCompleted), string(id), string(StatusProcessing),
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	for _, p := range postings {
		if err := ledger.InsertTx(ctx, tx, p); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

func (s *PGStore) MarkFailed(ctx context.Context, id types.ID, reason string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE refunds
		SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		string(StatusFailed), reason, string(id), string(StatusProcessing),
	)
	return err
}

const selectRefund = `
	SELECT id, order_id, store_id, rider_id,
	       requested_amount, approved_amount, reason, review_note, failure_reason,
	       status, distribution, snapshot, created_at, updated_at
	FROM refunds`

func scanRefund(row pgx.Row) (*Refund, error) {
	var r Refund
	var riderID *string
	var dist []byte
	var snapshot []byte
	err := row.Scan(
		&r.ID, &r.OrderID, &r.StoreID, &riderID,
		&r.RequestedAmount, &r.ApprovedAmount, &r.Reason, &r.ReviewNote, &r.FailureReason,
		&r.Status, &dist, &snapshot, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if riderID != nil {
		rid := types.ID(*riderID)
		r.RiderID = &rid
	}
	if len(dist) > 0 {
		var d Distribution
		if err := json.Unmarshal(dist, &d); err != nil {
			return nil, fmt.Errorf("decode distribution: %w", err)
		}
		r.Distribution = &d
	}
	if err := json.Unmarshal(snapshot, &r.Snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &r, nil
}

func riderPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
