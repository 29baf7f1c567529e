package risk

import (
	"context"
	"fmt"
	"math"

	"github.com/sniperlabs/snipercore/internal/domain"
)

// minCorrelationSamples is the smallest number of aligned return samples
// the historical correlator will accept before reporting an estimate.
const minCorrelationSamples = 8

// HistoryCorrelator computes Pearson correlation of log returns over the
// shared tail of two symbols' price histories. It is the default Correlator.
type HistoryCorrelator struct {
	history domain.PriceHistory
	window  int
}

// NewHistoryCorrelator creates a correlator that looks back up to window
// price points per symbol.
func NewHistoryCorrelator(history domain.PriceHistory, window int) *HistoryCorrelator {
	if window <= 0 {
		window = 100
	}
	return &HistoryCorrelator{history: history, window: window}
}

// Correlation returns the log-return correlation in [-1, 1]. It errors when
// either symbol lacks enough history for a meaningful estimate; the ledger
// treats that as zero correlation.
func (h *HistoryCorrelator) Correlation(ctx context.Context, symbolA, symbolB string) (float64, error) {
	pa, err := h.history.Recent(ctx, symbolA, h.window)
	if err != nil {
		return 0, fmt.Errorf("risk: history for %s: %w", symbolA, err)
	}
	pb, err := h.history.Recent(ctx, symbolB, h.window)
	if err != nil {
		return 0, fmt.Errorf("risk: history for %s: %w", symbolB, err)
	}

	ra := logReturns(pa)
	rb := logReturns(pb)

	// Align on the shared tail: the most recent overlapping samples.
	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}
	if n < minCorrelationSamples {
		return 0, fmt.Errorf("risk: insufficient history for %s/%s (%d samples)", symbolA, symbolB, n)
	}
	ra = ra[len(ra)-n:]
	rb = rb[len(rb)-n:]

	return pearson(ra, rb), nil
}

func logReturns(points []domain.PricePoint) []float64 {
	var out []float64
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1].Price, points[i].Price
		if prev <= 0 || cur <= 0 {
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

func pearson(a, b []float64) float64 {
	n := float64(len(a))
	if n == 0 {
		return 0
	}
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n

	var cov, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

// FixedCorrelator serves correlations from a static table, for tests and
// for operators who maintain the matrix externally. Missing pairs read as
// zero.
type FixedCorrelator map[string]map[string]float64

// Correlation looks the pair up in either direction.
func (f FixedCorrelator) Correlation(_ context.Context, symbolA, symbolB string) (float64, error) {
	if m, ok := f[symbolA]; ok {
		if c, ok := m[symbolB]; ok {
			return c, nil
		}
	}
	if m, ok := f[symbolB]; ok {
		if c, ok := m[symbolA]; ok {
			return c, nil
		}
	}
	return 0, nil
}

// Compile-time interface checks.
var (
	_ Correlator = (*HistoryCorrelator)(nil)
	_ Correlator = (FixedCorrelator)(nil)
)
