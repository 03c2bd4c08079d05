// README: Geo cache backed by Redis SET/EX keys with a short TTL.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kota/internal/types"
)

const keyPrefix = "geo:rider:%s"

type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{redis: rdb, ttl: ttl}
}

// Put overwrites the rider's entry and resets the expiry.
func (s *Store) Put(ctx context.Context, loc RiderLocation) error {
	val, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, riderKey(loc.RiderID), val, s.ttl).Err()
}

// Get returns the rider's last known location; an expired or missing entry
// means the rider is offline for tracking purposes, not an error.
func (s *Store) Get(ctx context.Context, riderID types.ID) (RiderLocation, bool, error) {
	val, err := s.redis.Get(ctx, riderKey(riderID)).Result()
	if err == redis.Nil {
		return RiderLocation{}, false, nil
	}
	if err != nil {
		return RiderLocation{}, false, err
	}
	var loc RiderLocation
	if err := json.Unmarshal([]byte(val), &loc); err != nil {
		return RiderLocation{}, false, err
	}
	return loc, true, nil
}

// GetMany returns the non-expired entries among riderIDs, keyed by rider.
func (s *Store) GetMany(ctx context.Context, riderIDs []types.ID) (map[types.ID]RiderLocation, error) {
	if len(riderIDs) == 0 {
		return map[types.ID]RiderLocation{}, nil
	}
	keys := make([]string, len(riderIDs))
	for i, id := range riderIDs {
		keys[i] = riderKey(id)
	}
	vals, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[types.ID]RiderLocation, len(riderIDs))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var loc RiderLocation
		if err := json.Unmarshal([]byte(str), &loc); err != nil {
			continue
		}
		out[riderIDs[i]] = loc
	}
	return out, nil
}

func riderKey(riderID types.ID) string {
	return fmt.Sprintf(keyPrefix, string(riderID))
}
