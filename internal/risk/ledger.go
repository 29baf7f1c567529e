// Package risk implements the position and risk ledger: pre-trade checks,
// position tracking, the daily-loss kill switch, and the emergency-stop
// state machine.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sniperlabs/snipercore/internal/domain"
)

// Correlator computes pairwise correlation between two symbols. The exact
// scoring function is an extension point; see HistoryCorrelator for the
// default.
type Correlator interface {
	Correlation(ctx context.Context, symbolA, symbolB string) (float64, error)
}

// Scorer derives a position risk score from size and price. The default
// scores a position by the fraction of trading capital it commits.
type Scorer func(symbol string, size, price float64) float64

// CapitalFractionScorer returns the default Scorer for the given capital.
func CapitalFractionScorer(capital float64) Scorer {
	return func(_ string, size, price float64) float64 {
		if capital <= 0 {
			return 0
		}
		return math.Abs(size) * price / capital
	}
}

// Ledger owns all position state. Evaluate and ApplyFill serialize per
// symbol, so two signals on one symbol can never both pass a stale
// position-limit check; different symbols proceed concurrently.
type Ledger struct {
	limits domain.PositionLimits
	corr   Correlator
	score  Scorer
	logger *slog.Logger

	mu           sync.RWMutex
	positions    map[string]domain.Position
	realizedLoss float64 // cumulative realized loss since day start; positive = losing
	dayStart     time.Time
	stopped      bool

	symMu sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger creates a Ledger in the Normal state.
func NewLedger(limits domain.PositionLimits, corr Correlator, score Scorer, logger *slog.Logger) *Ledger {
	return &Ledger{
		limits:    limits,
		corr:      corr,
		score:     score,
		logger:    logger.With(slog.String("component", "risk_ledger")),
		positions: make(map[string]domain.Position),
		dayStart:  dayOf(time.Now().UTC()),
		locks:     make(map[string]*sync.Mutex),
	}
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// symbolLock returns the mutex serializing evaluate/fill for one symbol.
func (l *Ledger) symbolLock(symbol string) *sync.Mutex {
	l.symMu.Lock()
	defer l.symMu.Unlock()
	mu, ok := l.locks[symbol]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[symbol] = mu
	}
	return mu
}

// Evaluate runs the three risk checks in order — position limit, portfolio
// risk, correlation — and returns nil on approval or a *domain.RiskRejection
// naming the first failed check. While the emergency stop is engaged every
// signal is rejected with RiskReasonEmergencyStop.
func (l *Ledger) Evaluate(ctx context.Context, sig domain.TradeSignal) error {
	mu := l.symbolLock(sig.Symbol)
	mu.Lock()
	defer mu.Unlock()

	l.mu.RLock()
	stopped := l.stopped
	current := l.positions[sig.Symbol]
	l.mu.RUnlock()

	if stopped {
		return &domain.RiskRejection{Reason: domain.RiskReasonEmergencyStop}
	}

	// Check 1: position limit.
	resulting := current.Size + sig.SizeDelta()
	if math.Abs(resulting) > l.limits.MaxPositionSize {
		return &domain.RiskRejection{
			Reason: domain.RiskReasonPositionLimit,
			Detail: fmt.Sprintf("resulting size %.2f exceeds max %.2f", resulting, l.limits.MaxPositionSize),
		}
	}

	// Check 2: portfolio risk.
	if total := l.portfolioRiskWith(sig); total > l.limits.MaxPortfolioRisk {
		return &domain.RiskRejection{
			Reason: domain.RiskReasonPortfolioRisk,
			Detail: fmt.Sprintf("portfolio risk %.4f exceeds max %.4f", total, l.limits.MaxPortfolioRisk),
		}
	}

	// Check 3: pairwise correlation against every held symbol.
	if err := l.checkCorrelation(ctx, sig.Symbol); err != nil {
		return err
	}

	return nil
}

// portfolioRiskWith sums the risk scores of held positions with the
// candidate signal applied. The candidate symbol is scored on the resulting
// position, not the signal delta, so adding to a held symbol counts the
// whole post-fill exposure.
func (l *Ledger) portfolioRiskWith(sig domain.TradeSignal) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	current := l.positions[sig.Symbol]
	size := current.Size + sig.SizeDelta()
	total := l.score(sig.Symbol, size, resultingEntry(current, sig.SizeDelta(), sig.Price))
	for sym, pos := range l.positions {
		if sym == sig.Symbol {
			continue
		}
		total += pos.RiskScore
	}
	return total
}

// resultingEntry projects the entry price ApplyFill would produce: a
// volume-weighted blend on adds, the unchanged entry on reductions, the
// fill price on flips and fresh positions.
func resultingEntry(pos domain.Position, sizeDelta, price float64) float64 {
	if pos.Size == 0 {
		return price
	}
	if (pos.Size > 0) == (sizeDelta > 0) {
		total := math.Abs(pos.Size) + math.Abs(sizeDelta)
		return (pos.EntryPrice*math.Abs(pos.Size) + price*math.Abs(sizeDelta)) / total
	}
	if math.Abs(sizeDelta) > math.Abs(pos.Size) {
		return price
	}
	return pos.EntryPrice
}

func (l *Ledger) checkCorrelation(ctx context.Context, symbol string) error {
	l.mu.RLock()
	held := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		if sym != symbol {
			held = append(held, sym)
		}
	}
	l.mu.RUnlock()

	for _, other := range held {
		c, err := l.corr.Correlation(ctx, symbol, other)
		if err != nil {
			// Without history we cannot estimate correlation; do not block
			// the trade on a data gap, just note it.
			l.logger.WarnContext(ctx, "correlation unavailable, treating as zero",
				slog.String("symbol", symbol),
				slog.String("other", other),
				slog.String("error", err.Error()),
			)
			continue
		}
		if math.Abs(c) > l.limits.MaxCorrelation {
			return &domain.RiskRejection{
				Reason: domain.RiskReasonCorrelation,
				Detail: fmt.Sprintf("%s vs %s correlation %.2f exceeds max %.2f", symbol, other, c, l.limits.MaxCorrelation),
			}
		}
	}
	return nil
}

// ApplyFill applies a settled fill to the symbol's position: creates it on
// first fill, updates size and volume-weighted entry price on adds, books
// realized PnL on reductions, and removes the position on full close.
func (l *Ledger) ApplyFill(symbol string, sizeDelta, price float64) {
	mu := l.symbolLock(symbol)
	mu.Lock()
	defer mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollDayLocked(time.Now().UTC())

	pos, ok := l.positions[symbol]
	if !ok {
		pos = domain.Position{Symbol: symbol, EntryPrice: price}
	}

	sameDirection := pos.Size == 0 || (pos.Size > 0) == (sizeDelta > 0)
	if sameDirection {
		// Weighted-average entry across adds.
		total := math.Abs(pos.Size) + math.Abs(sizeDelta)
		if total > 0 {
			pos.EntryPrice = (pos.EntryPrice*math.Abs(pos.Size) + price*math.Abs(sizeDelta)) / total
		}
	} else {
		// Reduction or flip: realize PnL on the closed portion.
		closed := math.Min(math.Abs(sizeDelta), math.Abs(pos.Size))
		direction := 1.0
		if pos.Size < 0 {
			direction = -1.0
		}
		realized := (price - pos.EntryPrice) * closed * direction
		if realized < 0 {
			l.realizedLoss += -realized
		} else {
			l.realizedLoss -= realized
		}
		if math.Abs(sizeDelta) > math.Abs(pos.Size) {
			pos.EntryPrice = price // flipped; remainder opens at fill price
		}
	}

	pos.Size += sizeDelta
	if pos.Size == 0 {
		delete(l.positions, symbol)
		return
	}
	pos.CurrentPnL = (price - pos.EntryPrice) * pos.Size
	pos.RiskScore = l.score(symbol, pos.Size, pos.EntryPrice)
	l.positions[symbol] = pos
}

// MarkPrice updates a position's mark-to-market PnL from a price tick.
// Unknown symbols are ignored.
func (l *Ledger) MarkPrice(symbol string, price float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return
	}
	pos.CurrentPnL = (price - pos.EntryPrice) * pos.Size
	l.positions[symbol] = pos
}

// DailyLossTriggered reports whether cumulative realized plus unrealized
// loss since day start exceeds the configured maximum. A true result
// engages the emergency stop.
func (l *Ledger) DailyLossTriggered() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollDayLocked(time.Now().UTC())

	loss := l.realizedLoss
	for _, pos := range l.positions {
		if pos.CurrentPnL < 0 {
			loss += -pos.CurrentPnL
		}
	}
	if loss > l.limits.MaxDailyLoss && !l.stopped {
		l.stopped = true
		l.logger.Error("daily loss limit breached, emergency stop engaged",
			slog.Float64("loss", loss),
			slog.Float64("max_daily_loss", l.limits.MaxDailyLoss),
		)
	}
	return loss > l.limits.MaxDailyLoss
}

// rollDayLocked resets the daily realized-loss counter at UTC midnight.
// An engaged emergency stop survives the rollover; only Reset clears it.
func (l *Ledger) rollDayLocked(now time.Time) {
	if day := dayOf(now); day.After(l.dayStart) {
		l.dayStart = day
		l.realizedLoss = 0
	}
}

// EmergencyStop force-closes all tracked positions and latches the stop
// state. Every subsequent Evaluate rejects until Reset is called.
func (l *Ledger) EmergencyStop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.positions)
	l.positions = make(map[string]domain.Position)
	l.stopped = true
	l.logger.Error("emergency stop: all positions force-closed",
		slog.Int("positions_cleared", n),
	)
}

// Reset clears the emergency-stop state and the daily loss counter. This is
// the administrative transition back to Normal.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = false
	l.realizedLoss = 0
	l.logger.Warn("risk ledger reset to normal state")
}

// Stopped reports whether the emergency stop is engaged.
func (l *Ledger) Stopped() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stopped
}

// Position returns the tracked position for a symbol.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[symbol]
	return pos, ok
}

// Positions returns a copy of all open positions.
func (l *Ledger) Positions() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, pos)
	}
	return out
}

// TotalPnL sums unrealized PnL across open positions minus realized loss.
func (l *Ledger) TotalPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := -l.realizedLoss
	for _, pos := range l.positions {
		total += pos.CurrentPnL
	}
	return total
}
