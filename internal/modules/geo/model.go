// README: Ephemeral rider location entry; each write overwrites the previous one.
package geo

import (
	"time"

	"kota/internal/types"
)

type RiderLocation struct {
	RiderID    types.ID    `json:"rider_id"`
	Position   types.Point `json:"position"`
	RecordedAt time.Time   `json:"recorded_at"`
}
