// README: Geo service validates pings before they hit the cache.
package geo

import (
	"context"
	"errors"
	"time"

	"kota/internal/types"
)

var ErrBadRiderID = errors.New("rider id missing or placeholder")

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) Put(ctx context.Context, riderID types.ID, lat, lng float64) error {
	if riderID == "" || riderID == "null" || riderID == "undefined" {
		return ErrBadRiderID
	}
	return s.store.Put(ctx, RiderLocation{
		RiderID:    riderID,
		Position:   types.Point{Lat: lat, Lng: lng},
		RecordedAt: time.Now().UTC(),
	})
}

func (s *Service) Get(ctx context.Context, riderID types.ID) (RiderLocation, bool, error) {
	return s.store.Get(ctx, riderID)
}

func (s *Service) GetMany(ctx context.Context, riderIDs []types.ID) (map[types.ID]RiderLocation, error) {
	return s.store.GetMany(ctx, riderIDs)
}
