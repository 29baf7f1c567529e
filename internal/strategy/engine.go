// Package strategy turns market ticks into trade signals. Signal generation
// is pluggable; the engine applies the confidence gate common to all
// strategies.
package strategy

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sniperlabs/snipercore/internal/domain"
)

// Evaluator produces at most one signal per tick. The second return value
// reports whether a signal was generated.
type Evaluator interface {
	Evaluate(tick domain.MarketTick) (domain.TradeSignal, bool)
}

// Engine wraps an Evaluator and drops signals below the confidence floor.
type Engine struct {
	evaluator     Evaluator
	minConfidence float64
	logger        *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(evaluator Evaluator, minConfidence float64, logger *slog.Logger) *Engine {
	return &Engine{
		evaluator:     evaluator,
		minConfidence: minConfidence,
		logger:        logger.With(slog.String("component", "strategy_engine")),
	}
}

// OnTick evaluates a tick. Signals below the confidence floor are discarded
// here and never reach risk evaluation.
func (e *Engine) OnTick(ctx context.Context, tick domain.MarketTick) (domain.TradeSignal, bool) {
	sig, ok := e.evaluator.Evaluate(tick)
	if !ok {
		return domain.TradeSignal{}, false
	}
	if sig.Confidence < e.minConfidence {
		e.logger.DebugContext(ctx, "signal below confidence floor, dropped",
			slog.String("symbol", sig.Symbol),
			slog.Float64("confidence", sig.Confidence),
			slog.Float64("min_confidence", e.minConfidence),
		)
		return domain.TradeSignal{}, false
	}
	return sig, true
}

// ThresholdEvaluator is the default momentum strategy: it signals in the
// direction of any single-tick move whose magnitude exceeds the threshold.
type ThresholdEvaluator struct {
	moveThreshold float64 // fractional move that triggers a signal
	orderSize     float64

	mu        sync.Mutex
	lastPrice map[string]float64
}

// NewThresholdEvaluator creates the default evaluator. moveThreshold is a
// fraction (0.01 means 1%); orderSize is the fixed signal size.
func NewThresholdEvaluator(moveThreshold, orderSize float64) *ThresholdEvaluator {
	return &ThresholdEvaluator{
		moveThreshold: moveThreshold,
		orderSize:     orderSize,
		lastPrice:     make(map[string]float64),
	}
}

// Evaluate compares the tick against the previous price for the symbol. The
// first tick for a symbol only seeds the reference price. Confidence grows
// with the size of the move relative to the threshold, capped at 1.
func (t *ThresholdEvaluator) Evaluate(tick domain.MarketTick) (domain.TradeSignal, bool) {
	t.mu.Lock()
	last, seen := t.lastPrice[tick.Symbol]
	t.lastPrice[tick.Symbol] = tick.Price
	t.mu.Unlock()

	if !seen || last <= 0 {
		return domain.TradeSignal{}, false
	}

	move := (tick.Price - last) / last
	if math.Abs(move) < t.moveThreshold {
		return domain.TradeSignal{}, false
	}

	side := domain.OrderSideBuy
	if move < 0 {
		side = domain.OrderSideSell
	}

	confidence := 0.5 + math.Abs(move)/(t.moveThreshold*4)
	if confidence > 1 {
		confidence = 1
	}

	return domain.TradeSignal{
		ID:         uuid.New().String(),
		Symbol:     tick.Symbol,
		Side:       side,
		Size:       t.orderSize,
		Price:      tick.Price,
		Confidence: confidence,
		Source:     "threshold_momentum",
		CreatedAt:  time.Now().UTC(),
	}, true
}

// Compile-time interface check.
var _ Evaluator = (*ThresholdEvaluator)(nil)
