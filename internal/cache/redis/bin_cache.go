package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

// BinCache implements domain.BinCache using Redis hashes. Each pool's latest
// active bin is stored as a hash at key "bin:{poolID}" with fields "bin",
// "price", and "ts" (Unix nanosecond timestamp).
type BinCache struct {
	rdb *redis.Client
}

// NewBinCache creates a BinCache backed by the given Client.
func NewBinCache(c *Client) *BinCache {
	return &BinCache{rdb: c.rdb}
}

func binKey(poolID string) string {
	return "bin:" + poolID
}

// SetActiveBin stores the latest active bin, reference price, and timestamp
// for a pool.
func (bc *BinCache) SetActiveBin(ctx context.Context, poolID string, bin int32, price float64, ts time.Time) error {
	key := binKey(poolID)
	fields := map[string]interface{}{
		"bin":   strconv.FormatInt(int64(bin), 10),
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := bc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set active bin %s: %w", poolID, err)
	}
	return nil
}

// GetActiveBin retrieves the latest active bin, price, and timestamp for a
// pool. It returns domain.ErrNotFound when the key does not exist.
func (bc *BinCache) GetActiveBin(ctx context.Context, poolID string) (int32, float64, time.Time, error) {
	key := binKey(poolID)
	vals, err := bc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("redis: get active bin %s: %w", poolID, err)
	}
	if len(vals) == 0 {
		return 0, 0, time.Time{}, domain.ErrNotFound
	}

	binStr, ok := vals["bin"]
	if !ok {
		return 0, 0, time.Time{}, domain.ErrNotFound
	}
	bin, err := strconv.ParseInt(binStr, 10, 32)
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("redis: parse bin %s: %w", poolID, err)
	}

	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", poolID, err)
	}

	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", poolID, err)
	}

	return int32(bin), price, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.BinCache = (*BinCache)(nil)
