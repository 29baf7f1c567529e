// Package settle provides the settlement backends behind the executor:
// a paper simulator for risk-free operation and an on-chain client for
// live trading.
package settle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sniperlabs/snipercore/internal/domain"
)

// PaperSettler fills every order instantly at the latest cached mark price
// without touching the chain. It is the default backend.
type PaperSettler struct {
	prices  domain.PriceCache // optional; LimitPrice is the fallback
	latency time.Duration     // simulated settlement delay, 0 for instant
	logger  *slog.Logger
}

// NewPaperSettler creates a paper backend. prices may be nil, in which case
// fills happen at each order's limit price.
func NewPaperSettler(prices domain.PriceCache, latency time.Duration, logger *slog.Logger) *PaperSettler {
	return &PaperSettler{
		prices:  prices,
		latency: latency,
		logger:  logger.With(slog.String("component", "paper_settler")),
	}
}

// Settle simulates a fill. The synthetic signature is prefixed "paper-" so
// downstream consumers can never mistake it for a chain transaction.
func (p *PaperSettler) Settle(ctx context.Context, order domain.ExecutionOrder) (domain.Settlement, error) {
	if p.latency > 0 {
		select {
		case <-ctx.Done():
			return domain.Settlement{}, ctx.Err()
		case <-time.After(p.latency):
		}
	}

	price := order.LimitPrice
	if p.prices != nil {
		if cached, _, err := p.prices.GetPrice(ctx, order.Symbol); err == nil && cached > 0 {
			price = cached
		} else if err != nil {
			p.logger.DebugContext(ctx, "no cached price, falling back to limit price",
				slog.String("symbol", order.Symbol),
			)
		}
	}
	if price <= 0 {
		return domain.Settlement{}, fmt.Errorf("settle: no fill price available for %s", order.Symbol)
	}

	return domain.Settlement{
		TxSignature: "paper-" + uuid.New().String(),
		FilledPrice: price,
		Simulated:   true,
	}, nil
}
