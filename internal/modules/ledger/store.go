// README: Ledger store backed by PostgreSQL; InsertTx joins callers' transactions.
package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kota/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// InsertTx writes a posting inside a transaction owned by the caller. The order
// store uses this so status change and postings commit or roll back together.
func InsertTx(ctx context.Context, tx pgx.Tx, p Posting) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_postings (
			id, order_id, party, party_id, kind, amount, currency, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(p.ID),
		string(p.OrderID),
		string(p.Party),
		string(p.PartyID),
		string(p.Kind),
		p.Amount,
		p.Currency,
		p.CreatedAt,
	)
	return err
}

func (s *Store) ListByOrder(ctx context.Context, orderID types.ID) ([]Posting, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, party, party_id, kind, amount, currency, created_at
		FROM ledger_postings
		WHERE order_id = $1
		ORDER BY created_at, id`, string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Posting
	for rows.Next() {
		var p Posting
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Party, &p.PartyID, &p.Kind, &p.Amount, &p.Currency, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// BalanceFor returns the running balance of a party across all orders.
func (s *Store) BalanceFor(ctx context.Context, party Party, partyID types.ID) (float64, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_postings
		WHERE party = $1 AND party_id = $2`,
		string(party), string(partyID),
	)
	var balance float64
	if err := row.Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}
