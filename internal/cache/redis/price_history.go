package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sniperlabs/snipercore/internal/domain"
)

// defaultHistoryCap bounds the rolling window kept per symbol.
const defaultHistoryCap = 1000

// PriceHistory implements domain.PriceHistory with a sorted set per symbol
// at "price_history:{symbol}". The score is the Unix nanosecond timestamp
// and each member encodes "tsNano:price" so duplicate prices stay distinct.
type PriceHistory struct {
	rdb *redis.Client
	cap int
}

// NewPriceHistory creates a PriceHistory keeping up to cap points per symbol.
func NewPriceHistory(c *Client, cap int) *PriceHistory {
	if cap <= 0 {
		cap = defaultHistoryCap
	}
	return &PriceHistory{rdb: c.Underlying(), cap: cap}
}

func historyKey(symbol string) string {
	return "price_history:" + symbol
}

// Append records a price observation and trims the window.
func (ph *PriceHistory) Append(ctx context.Context, symbol string, price float64, ts time.Time) error {
	key := historyKey(symbol)
	nano := ts.UnixNano()
	member := strconv.FormatInt(nano, 10) + ":" + strconv.FormatFloat(price, 'f', -1, 64)

	pipe := ph.rdb.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(nano), Member: member})
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-ph.cap-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: append history %s: %w", symbol, err)
	}
	return nil
}

// Recent returns up to limit points for the symbol, oldest first.
func (ph *PriceHistory) Recent(ctx context.Context, symbol string, limit int) ([]domain.PricePoint, error) {
	if limit <= 0 {
		limit = ph.cap
	}

	members, err := ph.rdb.ZRevRange(ctx, historyKey(symbol), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: recent history %s: %w", symbol, err)
	}

	// ZRevRange returns newest first; build the slice back to front.
	points := make([]domain.PricePoint, len(members))
	for i, member := range members {
		nanoStr, priceStr, ok := strings.Cut(member, ":")
		if !ok {
			return nil, fmt.Errorf("redis: malformed history member %q for %s", member, symbol)
		}
		nano, err := strconv.ParseInt(nanoStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis: parse history ts for %s: %w", symbol, err)
		}
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			return nil, fmt.Errorf("redis: parse history price for %s: %w", symbol, err)
		}
		points[len(points)-1-i] = domain.PricePoint{
			Price:     price,
			Timestamp: time.Unix(0, nano),
		}
	}
	return points, nil
}

// Compile-time interface check.
var _ domain.PriceHistory = (*PriceHistory)(nil)
