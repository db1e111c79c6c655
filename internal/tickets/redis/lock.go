package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis guards the check-then-write window of ticket allocation. Every seat
// and standing sector touched by a batch is locked before capacity and
// uniqueness are checked, and released after the batch commits or fails.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getLockTTL returns the lock duration from the environment or the default.
// The TTL is a leak guard only; the normal path unlocks explicitly.
func (r *Redis) getLockTTL() time.Duration {
	defaultTTL := 30 * time.Second

	ttlStr := os.Getenv("BOOKING_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid BOOKING_LOCK_TTL_SECONDS value '" + ttlStr + "', using default 30 seconds")
		return defaultTTL
	}
	return time.Duration(ttlSec) * time.Second
}

// LockResource locks a single seat or sector id for the given batch token.
func (r *Redis) LockResource(resourceID, token string) (bool, error) {
	key := "booking_lock:" + resourceID
	ok, err := r.Client.SetNX(context.Background(), key, token, r.getLockTTL()).Result()
	return ok, err
}

// UnlockResource releases a lock if it is still held by the given token.
func (r *Redis) UnlockResource(resourceID, token string) error {
	ctx := context.Background()
	key := fmt.Sprintf("booking_lock:%s", resourceID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// LockResources locks every id or none. Ids are locked in ascending order so
// two competing batches never deadlock on each other.
func (r *Redis) LockResources(resourceIDs []string, token string) (bool, error) {
	sorted := make([]string, len(resourceIDs))
	copy(sorted, resourceIDs)
	sort.Strings(sorted)

	locked := []string{}
	for _, id := range sorted {
		ok, err := r.LockResource(id, token)
		if err != nil {
			for _, l := range locked {
				_ = r.UnlockResource(l, token)
			}
			return false, err
		}
		if !ok {
			for _, l := range locked {
				_ = r.UnlockResource(l, token)
			}
			return false, nil
		}
		locked = append(locked, id)
	}
	return true, nil
}

// UnlockResources releases all ids, reporting the first error only.
func (r *Redis) UnlockResources(resourceIDs []string, token string) error {
	var firstErr error
	for _, id := range resourceIDs {
		err := r.UnlockResource(id, token)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
