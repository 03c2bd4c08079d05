// README: Read-only catalog lookup used to snapshot prices at order creation.
package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kota/internal/modules/order"
	"kota/internal/types"
)

var ErrProductNotFound = errors.New("product not found")

// Store implements order.PriceSource against the products table. The core
// snapshots these values once per order and never reads them again.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Lookup(ctx context.Context, productID types.ID) (order.Price, error) {
	row := s.db.QueryRow(ctx, `
		SELECT name, wholesale_price, markup_pct
		FROM products
		WHERE id = $1`, string(productID),
	)
	var p order.Price
	err := row.Scan(&p.Name, &p.Wholesale, &p.MarkupPct)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.Price{}, ErrProductNotFound
	}
	if err != nil {
		return order.Price{}, err
	}
	return p, nil
}

// StaticSource is a fixed price table for tests and local development.
type StaticSource map[types.ID]order.Price

func (s StaticSource) Lookup(_ context.Context, productID types.ID) (order.Price, error) {
	p, ok := s[productID]
	if !ok {
		return order.Price{}, ErrProductNotFound
	}
	return p, nil
}
