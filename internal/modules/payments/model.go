// README: Payment split snapshot and provider result types.
package payments

import "time"

// LineItem is the slice of an order the split engine needs: the retail unit
// price shown to the customer, any variant/customization modifier, the quantity
// and the markup percentage snapshotted at order time.
type LineItem struct {
	UnitPrice    float64
	ModifierUnit float64
	Quantity     int
	MarkupPct    float64
}

// Breakdown records how the platform share was formed, for audit.
type Breakdown struct {
	Markup   float64 `json:"markup"`
	Discount float64 `json:"discount"`
	Net      float64 `json:"net"`
}

// Split is the three-way decomposition of an order total. Store is the sum of
// wholesale costs, Driver is delivery fee plus tip, Platform is total markup
// minus the absorbed discount (and may be negative).
type Split struct {
	Store      float64   `json:"store"`
	Driver     float64   `json:"driver"`
	Platform   float64   `json:"platform"`
	Breakdown  Breakdown `json:"breakdown"`
	ComputedAt time.Time `json:"computed_at"`
}

type Status string

const (
	StatusUnpaid    Status = "unpaid"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type InitResult struct {
	Reference   string
	RedirectURL string
}

type VerifyResult struct {
	Status Status
	Amount float64
	PaidAt time.Time
}
