// README: Geo cache tests; need a reachable Redis, skipped otherwise.
package geo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"kota/internal/types"
)

func testStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	addr := os.Getenv("KOTA_REDIS_ADDR")
	if addr == "" {
		t.Skip("KOTA_REDIS_ADDR not set; skipping redis-backed geo tests")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	return NewStore(rdb, ttl)
}

func TestPutOverwritesAndGet(t *testing.T) {
	store := testStore(t, 120*time.Second)
	svc := NewService(store)
	ctx := context.Background()
	rider := types.ID("geo-test-rider-1")

	if err := svc.Put(ctx, rider, -33.92, 18.42); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := svc.Put(ctx, rider, -33.93, 18.43); err != nil {
		t.Fatalf("second put: %v", err)
	}

	loc, ok, err := svc.Get(ctx, rider)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected a cached location")
	}
	if loc.Position.Lat != -33.93 || loc.Position.Lng != 18.43 {
		t.Fatalf("expected latest ping, got %+v", loc.Position)
	}
}

func TestExpiredEntryIsOfflineNotError(t *testing.T) {
	store := testStore(t, 1*time.Second)
	svc := NewService(store)
	ctx := context.Background()
	rider := types.ID("geo-test-rider-2")

	if err := svc.Put(ctx, rider, -26.20, 28.04); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(1500 * time.Millisecond)

	_, ok, err := svc.Get(ctx, rider)
	if err != nil {
		t.Fatalf("get after expiry must not error: %v", err)
	}
	if ok {
		t.Fatal("expired location still present")
	}
}

func TestGetManySkipsMissing(t *testing.T) {
	store := testStore(t, 120*time.Second)
	svc := NewService(store)
	ctx := context.Background()

	if err := svc.Put(ctx, "geo-test-rider-3", -29.85, 31.02); err != nil {
		t.Fatalf("put: %v", err)
	}

	locs, err := svc.GetMany(ctx, []types.ID{"geo-test-rider-3", "geo-test-rider-never-pinged"})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if len(locs) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(locs))
	}
	if _, ok := locs["geo-test-rider-3"]; !ok {
		t.Fatal("expected hit for the pinged rider")
	}
}

func TestPutRejectsPlaceholderIDs(t *testing.T) {
	// Validation happens before the cache is touched, so no redis needed.
	svc := NewService(NewStore(nil, time.Second))
	for _, id := range []types.ID{"", "null", "undefined"} {
		if err := svc.Put(context.Background(), id, 0, 0); err != ErrBadRiderID {
			t.Errorf("Put(%q): expected ErrBadRiderID, got %v", id, err)
		}
	}
}
