package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sniperlabs/snipercore/internal/domain"
)

type memoryHistory map[string][]domain.PricePoint

func (m memoryHistory) Append(_ context.Context, symbol string, price float64, ts time.Time) error {
	m[symbol] = append(m[symbol], domain.PricePoint{Price: price, Timestamp: ts})
	return nil
}

func (m memoryHistory) Recent(_ context.Context, symbol string, limit int) ([]domain.PricePoint, error) {
	points := m[symbol]
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	return points, nil
}

func seedHistory(t *testing.T, hist memoryHistory, symbol string, prices []float64) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	for i, p := range prices {
		require.NoError(t, hist.Append(context.Background(), symbol, p, base.Add(time.Duration(i)*time.Second)))
	}
}

func TestFixedCorrelatorLooksUpBothDirections(t *testing.T) {
	corr := FixedCorrelator{"a": {"b": 0.8}}

	c, err := corr.Correlation(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 0.8, c)

	c, err = corr.Correlation(context.Background(), "b", "a")
	require.NoError(t, err)
	assert.Equal(t, 0.8, c)

	c, err = corr.Correlation(context.Background(), "a", "c")
	require.NoError(t, err)
	assert.Zero(t, c)
}

func TestHistoryCorrelatorPerfectlyCorrelated(t *testing.T) {
	hist := memoryHistory{}
	prices := []float64{100, 101, 99, 102, 104, 103, 105, 107, 106, 108}
	scaled := make([]float64, len(prices))
	for i, p := range prices {
		scaled[i] = p * 2
	}
	seedHistory(t, hist, "a", prices)
	seedHistory(t, hist, "b", scaled)

	corr := NewHistoryCorrelator(hist, 100)
	c, err := corr.Correlation(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c, 1e-9)
}

func TestHistoryCorrelatorInverselyCorrelated(t *testing.T) {
	hist := memoryHistory{}
	up := []float64{100, 101, 99, 102, 104, 103, 105, 107, 106, 108}
	down := make([]float64, len(up))
	for i, p := range up {
		// Inverse log returns: the product of the two series is constant.
		down[i] = 10000 / p
	}
	seedHistory(t, hist, "a", up)
	seedHistory(t, hist, "b", down)

	corr := NewHistoryCorrelator(hist, 100)
	c, err := corr.Correlation(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.InDelta(t, -1.0, c, 1e-9)
}

func TestHistoryCorrelatorInsufficientSamples(t *testing.T) {
	hist := memoryHistory{}
	seedHistory(t, hist, "a", []float64{100, 101, 102})
	seedHistory(t, hist, "b", []float64{50, 51, 52})

	corr := NewHistoryCorrelator(hist, 100)
	_, err := corr.Correlation(context.Background(), "a", "b")
	assert.Error(t, err)
}
