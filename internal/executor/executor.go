// Package executor settles risk-approved orders and accounts for the
// latency of every attempt. Retry policy lives in the orchestrator; a
// failed settlement is reported once and never retried here.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/sniperlabs/snipercore/internal/domain"
)

// Settler is the settlement backend: the live chain client or the paper
// simulator.
type Settler interface {
	Settle(ctx context.Context, order domain.ExecutionOrder) (domain.Settlement, error)
}

// Executor executes orders through a Settler and owns the ExecutionStats.
type Executor struct {
	settler Settler
	stats   *ExecutionStats
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Executor. timeout bounds each settlement attempt; expiry
// counts as an execution failure.
func New(settler Settler, timeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{
		settler: settler,
		stats:   NewExecutionStats(),
		timeout: timeout,
		logger:  logger.With(slog.String("component", "executor")),
	}
}

// Execute settles the order and records the attempt. Non-market order kinds
// are accepted but settle with market semantics; the receipt carries the
// Approximated flag so callers know the limit/stop terms were not enforced.
func (e *Executor) Execute(ctx context.Context, order domain.ExecutionOrder) (domain.ExecutionReceipt, error) {
	approximated := order.Kind != "" && order.Kind != domain.OrderKindMarket
	if approximated {
		e.logger.WarnContext(ctx, "order kind degraded to market semantics",
			slog.String("order_id", order.ID),
			slog.String("kind", string(order.Kind)),
		)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	settlement, err := e.settler.Settle(ctx, order)
	latency := time.Since(start)

	if err != nil {
		e.stats.RecordFailure(latency)
		e.logger.ErrorContext(ctx, "settlement failed",
			slog.String("order_id", order.ID),
			slog.String("symbol", order.Symbol),
			slog.Duration("latency", latency),
			slog.String("error", err.Error()),
		)
		return domain.ExecutionReceipt{}, &domain.ExecutionError{
			OrderID: order.ID,
			Latency: latency,
			Cause:   err,
		}
	}

	e.stats.RecordSuccess(latency)
	receipt := domain.ExecutionReceipt{
		OrderID:      order.ID,
		TxSignature:  settlement.TxSignature,
		FilledPrice:  settlement.FilledPrice,
		LatencyMs:    latency.Milliseconds(),
		Simulated:    settlement.Simulated,
		Approximated: approximated,
		SettledAt:    time.Now().UTC(),
	}

	e.logger.InfoContext(ctx, "order settled",
		slog.String("order_id", order.ID),
		slog.String("symbol", order.Symbol),
		slog.Float64("quantity", order.Quantity),
		slog.Float64("filled_price", receipt.FilledPrice),
		slog.Int64("latency_ms", receipt.LatencyMs),
		slog.Bool("simulated", receipt.Simulated),
	)
	return receipt, nil
}

// Stats returns a snapshot of the execution counters.
func (e *Executor) Stats() StatsSnapshot {
	return e.stats.Snapshot()
}
