// Package domain defines the shared types and interfaces of the trading
// coordinator: agents, A2A messages, signals, orders, positions, and the
// contracts the core needs from its cache, store, and blob collaborators.
package domain

import "time"

// AgentRole classifies a participant in the pipeline.
type AgentRole string

const (
	AgentRoleDataProvider   AgentRole = "data_provider"
	AgentRoleStrategyEngine AgentRole = "strategy_engine"
	AgentRoleRiskManager    AgentRole = "risk_manager"
	AgentRoleExecutor       AgentRole = "executor"
	AgentRoleMonitor        AgentRole = "monitor"
	AgentRoleExternal       AgentRole = "external"
)

// Valid reports whether the role is one of the known values.
func (r AgentRole) Valid() bool {
	switch r {
	case AgentRoleDataProvider, AgentRoleStrategyEngine, AgentRoleRiskManager,
		AgentRoleExecutor, AgentRoleMonitor, AgentRoleExternal:
		return true
	}
	return false
}

// AgentStatus is the lifecycle state of a registered agent.
type AgentStatus string

const (
	AgentStatusOnline  AgentStatus = "online"
	AgentStatusOffline AgentStatus = "offline"
	AgentStatusBusy    AgentStatus = "busy"
	AgentStatusError   AgentStatus = "error"
)

// AgentInfo describes a registered pipeline participant. The ID is assigned
// by the registry on first registration and never changes afterwards.
type AgentInfo struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Role          AgentRole   `json:"agent_type"`
	Capabilities  []string    `json:"capabilities"`
	Endpoint      string      `json:"endpoint"`
	Status        AgentStatus `json:"status"`
	RegisteredAt  time.Time   `json:"registered_at"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
}
