// Package registry implements the agent registry: a single-owner table of
// pipeline participants with heartbeat-driven liveness. Callers only ever
// receive copies; the table itself is never exposed.
package registry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sniperlabs/snipercore/internal/domain"
)

// Registry tracks known agents by id. All methods are safe for concurrent
// use. Unregistered ids stay in the seen set so the message bus can keep
// accepting messages addressed to formerly-registered agents.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]domain.AgentInfo
	seen   map[string]struct{}
	logger *slog.Logger
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		agents: make(map[string]domain.AgentInfo),
		seen:   make(map[string]struct{}),
		logger: logger.With(slog.String("component", "registry")),
	}
}

// Register stores the agent and returns its id. A missing id is assigned.
// Registering an existing id with the same name is a re-registration: the
// entry is refreshed and set online. A name mismatch on an existing id is
// rejected so one agent cannot take over another's identity.
func (r *Registry) Register(info domain.AgentInfo) (string, error) {
	if !info.Role.Valid() {
		return "", fmt.Errorf("registry: invalid agent role %q", info.Role)
	}
	if info.ID == "" {
		info.ID = uuid.New().String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.agents[info.ID]; ok && existing.Name != info.Name {
		return "", fmt.Errorf("registry: id %s already registered as %q", info.ID, existing.Name)
	}

	now := time.Now().UTC()
	info.Status = domain.AgentStatusOnline
	info.RegisteredAt = now
	info.LastHeartbeat = now

	r.agents[info.ID] = info
	r.seen[info.ID] = struct{}{}

	r.logger.Info("agent registered",
		slog.String("agent_id", info.ID),
		slog.String("name", info.Name),
		slog.String("role", string(info.Role)),
	)
	return info.ID, nil
}

// Unregister removes the agent and reports whether it existed. The id stays
// in the seen set.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[id]; !ok {
		return false
	}
	delete(r.agents, id)
	r.logger.Info("agent unregistered", slog.String("agent_id", id))
	return true
}

// Get returns a copy of the agent entry.
func (r *Registry) Get(id string) (domain.AgentInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.agents[id]
	return info, ok
}

// List returns all registered agents. Order is not guaranteed.
func (r *Registry) List() []domain.AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AgentInfo, 0, len(r.agents))
	for _, info := range r.agents {
		out = append(out, info)
	}
	return out
}

// FindByRole returns agents whose role matches exactly.
func (r *Registry) FindByRole(role domain.AgentRole) []domain.AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.AgentInfo
	for _, info := range r.agents {
		if info.Role == role {
			out = append(out, info)
		}
	}
	return out
}

// Heartbeat records a liveness signal. An offline agent that heartbeats
// again comes back online.
func (r *Registry) Heartbeat(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[id]
	if !ok {
		return domain.ErrUnknownAgent
	}
	info.LastHeartbeat = at
	if info.Status == domain.AgentStatusOffline {
		info.Status = domain.AgentStatusOnline
	}
	r.agents[id] = info
	return nil
}

// SetStatus overrides the agent status.
func (r *Registry) SetStatus(id string, status domain.AgentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[id]
	if !ok {
		return domain.ErrUnknownAgent
	}
	info.Status = status
	r.agents[id] = info
	return nil
}

// KnownAgent reports whether the id was ever registered. The bus uses this
// for recipient validation.
func (r *Registry) KnownAgent(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.seen[id]
	return ok
}

// Count returns the number of currently registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// OfflineCount returns how many registered agents are currently offline.
func (r *Registry) OfflineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, info := range r.agents {
		if info.Status == domain.AgentStatusOffline {
			n++
		}
	}
	return n
}

// MarkExpired sets every agent whose last heartbeat is older than ttl to
// offline and returns the affected ids. Entries are never removed here;
// removal is explicit via Unregister.
func (r *Registry) MarkExpired(now time.Time, ttl time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string
	for id, info := range r.agents {
		if info.Status == domain.AgentStatusOffline {
			continue
		}
		if now.Sub(info.LastHeartbeat) > ttl {
			info.Status = domain.AgentStatusOffline
			r.agents[id] = info
			expired = append(expired, id)
		}
	}
	return expired
}
