package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/handover/docbatch/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const defaultLockTTL = 3 * time.Minute

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// UnitLocker serializes document work on the same unit across workers.
type UnitLocker struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewUnitLocker(client *goredis.Client, ttl time.Duration) (*UnitLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &UnitLocker{client: client, ttl: ttl}, nil
}

// Lock takes the unit lock or returns domain.ErrUnitBusy when another holder has it.
// The returned release func only removes the lock while it is still owned by this caller.
func (l *UnitLocker) Lock(ctx context.Context, unitID string) (func(context.Context) error, error) {
	if strings.TrimSpace(unitID) == "" {
		return nil, fmt.Errorf("unit id is required")
	}

	key := unitLockKey(unitID)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire unit lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrUnitBusy
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release unit lock: %w", err)
		}
		return nil
	}
	return release, nil
}

func unitLockKey(unitID string) string {
	return "docbatch:lock:unit:" + unitID
}
