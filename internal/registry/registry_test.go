package registry

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sniperlabs/snipercore/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRegisterAssignsID(t *testing.T) {
	reg := New(testLogger())

	id, err := reg.Register(domain.AgentInfo{Name: "feed", Role: domain.AgentRoleDataProvider})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	info, ok := reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, "feed", info.Name)
	assert.Equal(t, domain.AgentStatusOnline, info.Status)
	assert.False(t, info.RegisteredAt.IsZero())
	assert.False(t, info.LastHeartbeat.IsZero())
}

func TestRegisterRejectsInvalidRole(t *testing.T) {
	reg := New(testLogger())

	_, err := reg.Register(domain.AgentInfo{Name: "bad", Role: "astrologer"})
	require.Error(t, err)
	assert.Equal(t, 0, reg.Count())
}

func TestRegisterRejectsNameMismatch(t *testing.T) {
	reg := New(testLogger())

	id, err := reg.Register(domain.AgentInfo{ID: "agent-1", Name: "alpha", Role: domain.AgentRoleExternal})
	require.NoError(t, err)
	require.Equal(t, "agent-1", id)

	_, err = reg.Register(domain.AgentInfo{ID: "agent-1", Name: "impostor", Role: domain.AgentRoleExternal})
	require.Error(t, err)

	info, ok := reg.Get("agent-1")
	require.True(t, ok)
	assert.Equal(t, "alpha", info.Name)
}

func TestReRegisterRefreshesEntry(t *testing.T) {
	reg := New(testLogger())

	id, err := reg.Register(domain.AgentInfo{ID: "agent-1", Name: "alpha", Role: domain.AgentRoleExternal})
	require.NoError(t, err)

	require.NoError(t, reg.SetStatus(id, domain.AgentStatusOffline))

	_, err = reg.Register(domain.AgentInfo{ID: "agent-1", Name: "alpha", Role: domain.AgentRoleExternal})
	require.NoError(t, err)

	info, _ := reg.Get(id)
	assert.Equal(t, domain.AgentStatusOnline, info.Status)
	assert.Equal(t, 1, reg.Count())
}

func TestUnregister(t *testing.T) {
	reg := New(testLogger())

	id, err := reg.Register(domain.AgentInfo{Name: "feed", Role: domain.AgentRoleDataProvider})
	require.NoError(t, err)

	assert.True(t, reg.Unregister(id))
	assert.False(t, reg.Unregister(id))
	assert.Equal(t, 0, reg.Count())

	// Formerly registered ids remain addressable.
	assert.True(t, reg.KnownAgent(id))
	assert.False(t, reg.KnownAgent("never-seen"))
}

func TestFindByRole(t *testing.T) {
	reg := New(testLogger())

	for i := 0; i < 3; i++ {
		_, err := reg.Register(domain.AgentInfo{
			Name: fmt.Sprintf("monitor-%d", i),
			Role: domain.AgentRoleMonitor,
		})
		require.NoError(t, err)
	}
	_, err := reg.Register(domain.AgentInfo{Name: "exec", Role: domain.AgentRoleExecutor})
	require.NoError(t, err)

	assert.Len(t, reg.FindByRole(domain.AgentRoleMonitor), 3)
	assert.Len(t, reg.FindByRole(domain.AgentRoleExecutor), 1)
	assert.Empty(t, reg.FindByRole(domain.AgentRoleRiskManager))
}

func TestHeartbeatUnknownAgent(t *testing.T) {
	reg := New(testLogger())

	err := reg.Heartbeat("ghost", time.Now())
	assert.ErrorIs(t, err, domain.ErrUnknownAgent)
}

func TestHeartbeatBringsOfflineAgentBack(t *testing.T) {
	reg := New(testLogger())

	id, err := reg.Register(domain.AgentInfo{Name: "feed", Role: domain.AgentRoleDataProvider})
	require.NoError(t, err)
	require.NoError(t, reg.SetStatus(id, domain.AgentStatusOffline))
	assert.Equal(t, 1, reg.OfflineCount())

	require.NoError(t, reg.Heartbeat(id, time.Now().UTC()))

	info, _ := reg.Get(id)
	assert.Equal(t, domain.AgentStatusOnline, info.Status)
	assert.Equal(t, 0, reg.OfflineCount())
}

func TestMarkExpired(t *testing.T) {
	reg := New(testLogger())

	stale, err := reg.Register(domain.AgentInfo{Name: "stale", Role: domain.AgentRoleExternal})
	require.NoError(t, err)
	fresh, err := reg.Register(domain.AgentInfo{Name: "fresh", Role: domain.AgentRoleExternal})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, reg.Heartbeat(stale, now.Add(-time.Minute)))
	require.NoError(t, reg.Heartbeat(fresh, now))

	expired := reg.MarkExpired(now, 30*time.Second)
	require.Equal(t, []string{stale}, expired)

	info, _ := reg.Get(stale)
	assert.Equal(t, domain.AgentStatusOffline, info.Status)

	// Expired agents are marked, never removed.
	assert.Equal(t, 2, reg.Count())
	assert.Equal(t, 1, reg.OfflineCount())

	// A second sweep does not report the same agent again.
	assert.Empty(t, reg.MarkExpired(now, 30*time.Second))
}
