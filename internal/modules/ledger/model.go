// README: Immutable ledger postings recording each party's share of an order.
package ledger

import (
	"time"

	"kota/internal/types"
)

type Party string

const (
	PartyStore    Party = "store"
	PartyDriver   Party = "driver"
	PartyPlatform Party = "platform"
)

type Kind string

const (
	KindStoreRevenue       Kind = "store_revenue"
	KindDriverEarning      Kind = "driver_earning"
	KindPlatformCommission Kind = "platform_commission"
	KindRefundDebit        Kind = "refund_debit"
)

// Posting is append-only: once written it is never updated or deleted.
// Refund debits carry negative amounts against the original postings.
type Posting struct {
	ID        types.ID
	OrderID   types.ID
	Party     Party
	PartyID   types.ID
	Kind      Kind
	Amount    float64
	Currency  string
	CreatedAt time.Time
}
