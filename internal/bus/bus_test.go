package bus

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sniperlabs/snipercore/internal/domain"
	"github.com/sniperlabs/snipercore/internal/registry"
)

type allowAll struct{}

func (allowAll) KnownAgent(string) bool { return true }

type allowSet map[string]bool

func (s allowSet) KnownAgent(id string) bool { return s[id] }

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func msg(id, to string, priority domain.Priority) domain.A2AMessage {
	return domain.A2AMessage{
		ID:        id,
		FromAgent: "sender",
		ToAgent:   to,
		Kind:      domain.MessageKindSystemStatus,
		Priority:  priority,
	}
}

func TestDrainPriorityThenArrivalOrder(t *testing.T) {
	b := New(allowAll{}, 0, testLogger())

	require.NoError(t, b.Send(msg("low-1", "a", domain.PriorityLow)))
	require.NoError(t, b.Send(msg("normal-1", "a", domain.PriorityNormal)))
	require.NoError(t, b.Send(msg("critical-1", "a", domain.PriorityCritical)))
	require.NoError(t, b.Send(msg("high-1", "a", domain.PriorityHigh)))
	require.NoError(t, b.Send(msg("normal-2", "a", domain.PriorityNormal)))
	require.NoError(t, b.Send(msg("critical-2", "a", domain.PriorityCritical)))

	got := b.Drain("a")
	ids := make([]string, len(got))
	for i, m := range got {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"critical-1", "critical-2", "high-1", "normal-1", "normal-2", "low-1"}, ids)
}

func TestDrainIsAtMostOnce(t *testing.T) {
	b := New(allowAll{}, 0, testLogger())

	require.NoError(t, b.Send(msg("m1", "a", domain.PriorityNormal)))
	require.Len(t, b.Drain("a"), 1)
	assert.Nil(t, b.Drain("a"))
	assert.Equal(t, 0, b.Depth("a"))
}

func TestSendUnknownRecipient(t *testing.T) {
	b := New(allowSet{"known": true}, 0, testLogger())

	err := b.Send(msg("m1", "ghost", domain.PriorityNormal))
	require.ErrorIs(t, err, domain.ErrUnknownRecipient)

	// A failed send must not leave a mailbox behind.
	assert.Equal(t, 0, b.Depth("ghost"))
	assert.Equal(t, uint64(0), b.Snapshot().Sent)
}

func TestSendUnknownCorrelation(t *testing.T) {
	b := New(allowAll{}, 0, testLogger())

	bad := msg("m1", "a", domain.PriorityNormal)
	bad.CorrelationID = "never-carried"
	require.ErrorIs(t, b.Send(bad), domain.ErrUnknownCorrelation)

	require.NoError(t, b.Send(msg("m2", "a", domain.PriorityNormal)))

	reply := msg("m3", "a", domain.PriorityNormal)
	reply.CorrelationID = "m2"
	assert.NoError(t, b.Send(reply))
}

func TestCorrelationMemoryIsBounded(t *testing.T) {
	b := New(allowAll{}, 0, testLogger())

	for i := 0; i <= seenIDCap; i++ {
		require.NoError(t, b.Send(msg(fmt.Sprintf("m-%d", i), "a", domain.PriorityLow)))
	}
	assert.Len(t, b.seenIDs, seenIDCap)

	// The oldest id has been evicted and no longer validates a reply.
	stale := msg("reply-stale", "a", domain.PriorityNormal)
	stale.CorrelationID = "m-0"
	require.ErrorIs(t, b.Send(stale), domain.ErrUnknownCorrelation)

	fresh := msg("reply-fresh", "a", domain.PriorityNormal)
	fresh.CorrelationID = fmt.Sprintf("m-%d", seenIDCap)
	assert.NoError(t, b.Send(fresh))
}

func TestOverflowDropsNewestLowestPriority(t *testing.T) {
	b := New(allowAll{}, 2, testLogger())

	require.NoError(t, b.Send(msg("high-1", "a", domain.PriorityHigh)))
	require.NoError(t, b.Send(msg("low-1", "a", domain.PriorityLow)))
	require.NoError(t, b.Send(msg("low-2", "a", domain.PriorityLow)))

	got := b.Drain("a")
	require.Len(t, got, 2)
	assert.Equal(t, "high-1", got[0].ID)
	assert.Equal(t, "low-1", got[1].ID)

	stats := b.Snapshot()
	assert.Equal(t, uint64(1), stats.Dropped)
}

func TestOverflowNeverDropsCritical(t *testing.T) {
	b := New(allowAll{}, 2, testLogger())

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Send(msg(fmt.Sprintf("crit-%d", i), "a", domain.PriorityCritical)))
	}

	got := b.Drain("a")
	assert.Len(t, got, 5)
	assert.Equal(t, uint64(0), b.Snapshot().Dropped)
}

func TestRequeuePreservesFrontOrder(t *testing.T) {
	b := New(allowAll{}, 0, testLogger())

	require.NoError(t, b.Send(msg("m1", "a", domain.PriorityNormal)))
	require.NoError(t, b.Send(msg("m2", "a", domain.PriorityNormal)))

	drained := b.Drain("a")
	require.Len(t, drained, 2)

	// New traffic arrives while the drained batch is being filtered.
	require.NoError(t, b.Send(msg("m3", "a", domain.PriorityNormal)))

	b.Requeue("a", drained)

	got := b.Drain("a")
	require.Len(t, got, 3)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m2", got[1].ID)
	assert.Equal(t, "m3", got[2].ID)
}

func TestSignalHandoffBetweenAgents(t *testing.T) {
	reg := registry.New(testLogger())
	strategyID, err := reg.Register(domain.AgentInfo{Name: "strategy", Role: domain.AgentRoleStrategyEngine})
	require.NoError(t, err)
	riskID, err := reg.Register(domain.AgentInfo{Name: "risk", Role: domain.AgentRoleRiskManager})
	require.NoError(t, err)

	b := New(reg, 0, testLogger())

	signal, err := domain.NewMessage(strategyID, riskID, domain.MessageKindTradingSignal,
		domain.TradeSignal{Symbol: "SOL/USDC", Side: domain.OrderSideBuy, Size: 10}, domain.PriorityNormal)
	require.NoError(t, err)
	require.NoError(t, b.Send(signal))

	got := b.Drain(riskID)
	require.Len(t, got, 1)
	assert.Equal(t, strategyID, got[0].FromAgent)
	assert.Equal(t, domain.MessageKindTradingSignal, got[0].Kind)

	assert.Empty(t, b.Drain(riskID))
}

func TestSnapshotCounters(t *testing.T) {
	b := New(allowAll{}, 0, testLogger())

	require.NoError(t, b.Send(msg("m1", "a", domain.PriorityNormal)))
	require.NoError(t, b.Send(msg("m2", "b", domain.PriorityNormal)))
	b.Drain("a")

	stats := b.Snapshot()
	assert.Equal(t, uint64(2), stats.Sent)
	assert.Equal(t, uint64(1), stats.Delivered)
	assert.Equal(t, 1, stats.Queued)
}
