// README: Refund record, review statuses and the cost-distribution type.
package refund

import (
	"time"

	"kota/internal/modules/payments"
	"kota/internal/types"
)

type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusUnderReview   Status = "under_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusProcessing    Status = "processing"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

// Distribution is supplied by the reviewer and says who absorbs the loss.
type Distribution struct {
	FromStore    float64 `json:"from_store"`
	FromDriver   float64 `json:"from_driver"`
	FromPlatform float64 `json:"from_platform"`
}

// OrderSnapshot freezes the order's totals and split at request time; the live
// order may keep moving after the refund is filed.
type OrderSnapshot struct {
	Subtotal    float64         `json:"subtotal"`
	DeliveryFee float64         `json:"delivery_fee"`
	Tip         float64         `json:"tip"`
	Discount    float64         `json:"discount"`
	Total       float64         `json:"total"`
	Currency    string          `json:"currency"`
	Split       *payments.Split `json:"split,omitempty"`
}

type Refund struct {
	ID              types.ID
	OrderID         types.ID
	StoreID         types.ID
	RiderID         *types.ID
	RequestedAmount float64
	ApprovedAmount  float64
	Reason          string
	ReviewNote      string
	FailureReason   string
	Status          Status
	Distribution    *Distribution
	Snapshot        OrderSnapshot
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// reviewable reports whether a decision may still be taken.
func reviewable(s Status) bool {
	return s == StatusPendingReview || s == StatusUnderReview
}
