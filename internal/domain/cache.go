package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest mark price per symbol.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// PricePoint is one historical price observation.
type PricePoint struct {
	Price     float64
	Timestamp time.Time
}

// PriceHistory stores a rolling window of price observations per symbol.
// The correlation check reads from it.
type PriceHistory interface {
	Append(ctx context.Context, symbol string, price float64, ts time.Time) error
	// Recent returns up to limit points, oldest first.
	Recent(ctx context.Context, symbol string, limit int) ([]PricePoint, error)
}

// EventStream appends audit payloads to a durable, bounded stream.
type EventStream interface {
	Append(ctx context.Context, stream string, payload []byte) error
}
