// Package cache keeps display-balance snapshots in Redis. Snapshots are read
// by the balance endpoint only; nothing authorizes money movement from them.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const keyPrefix = "ledger:balance:"

// setIfNewer keeps the snapshot with the latest as_of, so late notifications
// from concurrent commits cannot roll the cached value backwards.
var setIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'as_of')
if current and tonumber(current) > tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'balance', ARGV[1], 'as_of', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

type Snapshot struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	AsOf      time.Time       `json:"as_of"`
}

type BalanceCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewBalanceCache(client redis.UniversalClient, ttl time.Duration) *BalanceCache {
	return &BalanceCache{client: client, ttl: ttl}
}

// Connect opens a client and checks it answers PING.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// BalanceChanged stores a committed balance. It satisfies ledger.BalanceObserver.
func (c *BalanceCache) BalanceChanged(ctx context.Context, accountID string, balance decimal.Decimal, at time.Time) error {
	err := setIfNewer.Run(ctx, c.client,
		[]string{keyPrefix + accountID},
		balance.String(),
		at.UnixMicro(),
		c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("cache balance for %s: %w", accountID, err)
	}
	return nil
}

// Get returns the cached snapshot; ok is false on a miss.
func (c *BalanceCache) Get(ctx context.Context, accountID string) (snap Snapshot, ok bool, err error) {
	fields, err := c.client.HGetAll(ctx, keyPrefix+accountID).Result()
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read cached balance for %s: %w", accountID, err)
	}
	if len(fields) == 0 {
		return Snapshot{}, false, nil
	}

	balance, err := decimal.NewFromString(fields["balance"])
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("corrupt cached balance for %s: %w", accountID, err)
	}
	micros, err := strconv.ParseInt(fields["as_of"], 10, 64)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("corrupt cached timestamp for %s: %w", accountID, err)
	}

	return Snapshot{
		AccountID: accountID,
		Balance:   balance,
		AsOf:      time.UnixMicro(micros).UTC(),
	}, true, nil
}

func (c *BalanceCache) Invalidate(ctx context.Context, accountID string) error {
	return c.client.Del(ctx, keyPrefix+accountID).Err()
}
