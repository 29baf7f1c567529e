package executor

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sniperlabs/snipercore/internal/domain"
)

type stubSettler struct {
	settlement domain.Settlement
	err        error
	lastOrder  domain.ExecutionOrder
}

func (s *stubSettler) Settle(_ context.Context, order domain.ExecutionOrder) (domain.Settlement, error) {
	s.lastOrder = order
	if s.err != nil {
		return domain.Settlement{}, s.err
	}
	return s.settlement, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestExecuteSuccess(t *testing.T) {
	settler := &stubSettler{settlement: domain.Settlement{
		TxSignature: "paper-abc",
		FilledPrice: 101.5,
		Simulated:   true,
	}}
	e := New(settler, time.Second, testLogger())

	order := domain.ExecutionOrder{ID: "order-1", Symbol: "SOL/USDC", Quantity: 10, Kind: domain.OrderKindMarket}
	receipt, err := e.Execute(context.Background(), order)
	require.NoError(t, err)

	assert.Equal(t, "order-1", receipt.OrderID)
	assert.Equal(t, "paper-abc", receipt.TxSignature)
	assert.Equal(t, 101.5, receipt.FilledPrice)
	assert.True(t, receipt.Simulated)
	assert.False(t, receipt.Approximated)
	assert.False(t, receipt.SettledAt.IsZero())

	snap := e.Stats()
	assert.Equal(t, uint64(1), snap.SuccessfulExecutions)
	assert.Zero(t, snap.FailedExecutions)
}

func TestExecuteFailure(t *testing.T) {
	cause := errors.New("rpc unreachable")
	e := New(&stubSettler{err: cause}, time.Second, testLogger())

	_, err := e.Execute(context.Background(), domain.ExecutionOrder{ID: "order-1", Symbol: "SOL/USDC"})
	require.Error(t, err)

	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "order-1", execErr.OrderID)
	assert.ErrorIs(t, err, cause)

	snap := e.Stats()
	assert.Equal(t, uint64(1), snap.FailedExecutions)
	assert.Zero(t, snap.SuccessfulExecutions)
}

func TestExecuteApproximatesNonMarketKinds(t *testing.T) {
	settler := &stubSettler{settlement: domain.Settlement{TxSignature: "tx", FilledPrice: 100}}
	e := New(settler, time.Second, testLogger())

	receipt, err := e.Execute(context.Background(), domain.ExecutionOrder{
		ID:         "order-1",
		Symbol:     "SOL/USDC",
		Quantity:   5,
		Kind:       domain.OrderKindStopLimit,
		LimitPrice: 99,
	})
	require.NoError(t, err)
	assert.True(t, receipt.Approximated)
	assert.Equal(t, domain.OrderKindStopLimit, settler.lastOrder.Kind)
}
