package settle

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sniperlabs/snipercore/internal/domain"
)

type stubPrices map[string]float64

func (s stubPrices) SetPrice(context.Context, string, float64, time.Time) error { return nil }

func (s stubPrices) GetPrice(_ context.Context, symbol string) (float64, time.Time, error) {
	p, ok := s[symbol]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, time.Now().UTC(), nil
}

func (s stubPrices) GetPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	return s, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPaperSettleUsesCachedPrice(t *testing.T) {
	p := NewPaperSettler(stubPrices{"SOL/USDC": 101.25}, 0, testLogger())

	got, err := p.Settle(context.Background(), domain.ExecutionOrder{
		ID:         "order-1",
		Symbol:     "SOL/USDC",
		Quantity:   10,
		LimitPrice: 99,
	})
	require.NoError(t, err)

	assert.Equal(t, 101.25, got.FilledPrice)
	assert.True(t, got.Simulated)
	assert.True(t, strings.HasPrefix(got.TxSignature, "paper-"))
}

func TestPaperSettleFallsBackToLimitPrice(t *testing.T) {
	p := NewPaperSettler(stubPrices{}, 0, testLogger())

	got, err := p.Settle(context.Background(), domain.ExecutionOrder{
		ID:         "order-1",
		Symbol:     "SOL/USDC",
		LimitPrice: 99,
	})
	require.NoError(t, err)
	assert.Equal(t, 99.0, got.FilledPrice)
}

func TestPaperSettleNilCache(t *testing.T) {
	p := NewPaperSettler(nil, 0, testLogger())

	got, err := p.Settle(context.Background(), domain.ExecutionOrder{Symbol: "SOL/USDC", LimitPrice: 50})
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.FilledPrice)
}

func TestPaperSettleNoPriceAvailable(t *testing.T) {
	p := NewPaperSettler(stubPrices{}, 0, testLogger())

	_, err := p.Settle(context.Background(), domain.ExecutionOrder{Symbol: "SOL/USDC"})
	assert.Error(t, err)
}

func TestPaperSettleRespectsContext(t *testing.T) {
	p := NewPaperSettler(nil, time.Second, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Settle(ctx, domain.ExecutionOrder{Symbol: "SOL/USDC", LimitPrice: 50})
	assert.ErrorIs(t, err, context.Canceled)
}
