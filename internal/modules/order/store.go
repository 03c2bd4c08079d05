// README: Order store: interface plus the PostgreSQL implementation (pgx, CAS on status_version).
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kota/internal/modules/ledger"
	"kota/internal/modules/payments"
	"kota/internal/types"
)

// ApplyTransition is a compare-and-swap status change plus one history entry,
// committed atomically.
type ApplyTransition struct {
	OrderID types.ID
	From    Status
	Version int
	To      Status
	RiderID *types.ID
	Entry   HistoryEntry
}

// CompleteDelivery commits the delivered status, the split snapshot, the
// ledger_posted flag and the three postings in one transaction.
type CompleteDelivery struct {
	OrderID  types.ID
	From     Status
	Version  int
	Entry    HistoryEntry
	Split    payments.Split
	Postings []ledger.Posting
}

type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	ApplyTransition(ctx context.Context, t ApplyTransition) (bool, error)
	CompleteDelivery(ctx context.Context, c CompleteDelivery) (bool, error)
	SetPayment(ctx context.Context, id types.ID, status payments.Status, reference string) error
	MarkRefunded(ctx context.Context, id types.ID, version int, entry HistoryEntry) (bool, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, o *Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, customer_id, store_id, rider_id, items,
			subtotal, delivery_fee, tip, discount, total, currency,
			status, status_version, payment_status, payment_ref,
			split, ledger_posted, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15,
			NULL, FALSE, $16, $17
		)`,
		string(o.ID),
		string(o.CustomerID),
		string(o.StoreID),
		toStringPtr(o.RiderID),
		items,
		o.Subtotal, o.DeliveryFee, o.Tip, o.Discount, o.Total, o.Currency,
		string(o.Status),
		o.StatusVersion,
		string(o.PaymentStatus),
		o.PaymentRef,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	for _, e := range o.History {
		if err := insertHistory(ctx, tx, o.ID, e); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, customer_id, store_id, rider_id, items,
		       subtotal, delivery_fee, tip, discount, total, currency,
		       status, status_version, payment_status, payment_ref,
		       split, ledger_posted, created_at, updated_at
		FROM orders
		WHERE id = $1`, string(id),
	)

	var o Order
	var riderID *string
	var items []byte
	var split []byte
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.StoreID, &riderID, &items,
		&o.Subtotal, &o.DeliveryFee, &o.Tip, &o.Discount, &o.Total, &o.Currency,
		&o.Status, &o.StatusVersion, &o.PaymentStatus, &o.PaymentRef,
		&split, &o.LedgerPosted, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if riderID != nil {
		rid := types.ID(*riderID)
		o.RiderID = &rid
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if len(split) > 0 {
		var sp payments.Split
		if err := json.Unmarshal(split, &sp); err != nil {
			return nil, fmt.Errorf("decode split: %w", err)
		}
		o.Split = &sp
	}

	history, err := s.loadHistory(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.History = history
	return &o, nil
}

func (s *PGStore) ApplyTransition(ctx context.Context, t ApplyTransition) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    rider_id = COALESCE($2, rider_id),
		    updated_at = NOW()
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(t.To),
		toStringPtr(t.RiderID),
		string(t.OrderID),
		string(t.From),
		t.Version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if err := insertHistory(ctx, tx, t.OrderID, t.Entry); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *PGStore) CompleteDelivery(ctx context.Context, c CompleteDelivery) (bool, error) {
	split, err := json.Marshal(c.Split)
	if err != nil {
		return false, err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	// ledger_posted = FALSE in the predicate makes the posting idempotent even
	// if a stale reader raced past the service-level checks.
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    split = $2,
		    ledger_posted = TRUE,
		    updated_at = NOW()
		WHERE id = $3 AND status = $4 AND status_version = $5 AND ledger_posted = FALSE`,
		string(StatusDelivered),
		split,
		string(c.OrderID),
		string(c.From),
		c.Version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if err := insertHistory(ctx, tx, c.OrderID, c.Entry); err != nil {
		return false, err
	}
	for _, p := range c.Postings {
		if err := ledger.InsertTx(ctx, tx, p); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

func (s *PGStore) SetPayment(ctx context.Context, id types.ID, status payments.Status, reference string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE orders
		SET payment_status = $1, payment_ref = $2, updated_at = NOW()
		WHERE id = $3`,
		string(status), reference, string(id),
	)
	return err
}

func (s *PGStore) MarkRefunded(ctx context.Context, id types.ID, version int, entry HistoryEntry) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, status_version = status_version + 1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(StatusRefunded),
		string(id),
		string(StatusDelivered),
		version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if err := insertHistory(ctx, tx, id, entry); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *PGStore) loadHistory(ctx context.Context, orderID types.ID) ([]HistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT status, actor_role, actor_id, note, created_at
		FROM order_history
		WHERE order_id = $1
		ORDER BY created_at, id`, string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var actorID string
		if err := rows.Scan(&e.Status, &e.Actor.Role, &actorID, &e.Note, &e.At); err != nil {
			return nil, err
		}
		e.Actor.ID = types.ID(actorID)
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertHistory(ctx context.Context, tx pgx.Tx, orderID types.ID, e HistoryEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_history (order_id, status, actor_role, actor_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(orderID),
		string(e.Status),
		string(e.Actor.Role),
		string(e.Actor.ID),
		e.Note,
		e.At,
	)
	return err
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
