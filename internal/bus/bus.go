// Package bus implements the in-process A2A message bus: one mailbox per
// recipient, priority-then-arrival drain order, and at-most-once delivery.
// Durability beyond process lifetime belongs to an external queue, not here.
package bus

import (
	"log/slog"
	"sync"

	"github.com/sniperlabs/snipercore/internal/domain"
)

// Recipients answers whether an agent id was ever registered. The registry
// satisfies it.
type Recipients interface {
	KnownAgent(id string) bool
}

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	Sent      uint64 `json:"sent"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Queued    int    `json:"queued"`
}

// seenIDCap bounds how many carried message ids the bus remembers for
// correlation validation. Replies referencing an id older than the most
// recent seenIDCap sends fail with ErrUnknownCorrelation.
const seenIDCap = 8192

// Bus routes messages between agents. All methods are safe for concurrent
// use; send, drain, and requeue are atomic with respect to each other.
type Bus struct {
	mu        sync.Mutex
	mailboxes map[string]*mailbox
	seenIDs   map[string]struct{}
	seenRing  []string
	seenNext  int
	seq       int64

	recipients Recipients
	maxDepth   int // per mailbox; 0 disables the bound

	sent      uint64
	delivered uint64
	dropped   uint64

	logger *slog.Logger
}

// New creates a Bus. maxDepth bounds each mailbox; when an enqueue would
// exceed it, the newest lowest-priority message is dropped. Critical
// messages are never dropped, even if the mailbox overflows.
func New(recipients Recipients, maxDepth int, logger *slog.Logger) *Bus {
	return &Bus{
		mailboxes:  make(map[string]*mailbox),
		seenIDs:    make(map[string]struct{}),
		recipients: recipients,
		maxDepth:   maxDepth,
		logger:     logger.With(slog.String("component", "bus")),
	}
}

// Send enqueues the message onto the recipient's mailbox. It fails with
// domain.ErrUnknownRecipient when the recipient was never registered (and
// creates no mailbox), and with domain.ErrUnknownCorrelation when the
// correlation id does not reference one of the seenIDCap most recently
// carried messages.
func (b *Bus) Send(msg domain.A2AMessage) error {
	if !b.recipients.KnownAgent(msg.ToAgent) {
		return domain.ErrUnknownRecipient
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.CorrelationID != "" {
		if _, ok := b.seenIDs[msg.CorrelationID]; !ok {
			return domain.ErrUnknownCorrelation
		}
	}
	b.rememberID(msg.ID)

	mb, ok := b.mailboxes[msg.ToAgent]
	if !ok {
		mb = &mailbox{}
		b.mailboxes[msg.ToAgent] = mb
	}

	b.seq++
	mb.push(queued{msg: msg, seq: b.seq})
	b.sent++

	if b.maxDepth > 0 && mb.len() > b.maxDepth {
		if victim, ok := mb.evictLowest(); ok {
			b.dropped++
			b.logger.Warn("mailbox over depth, dropped message",
				slog.String("agent_id", msg.ToAgent),
				slog.String("message_id", victim.msg.ID),
				slog.String("priority", string(victim.msg.Priority)),
			)
		}
	}
	return nil
}

// rememberID records a carried message id, evicting the oldest remembered
// id once seenIDCap is reached so the set stays bounded.
func (b *Bus) rememberID(id string) {
	if _, ok := b.seenIDs[id]; ok {
		return
	}
	b.seenIDs[id] = struct{}{}
	if len(b.seenRing) < seenIDCap {
		b.seenRing = append(b.seenRing, id)
		return
	}
	delete(b.seenIDs, b.seenRing[b.seenNext])
	b.seenRing[b.seenNext] = id
	b.seenNext = (b.seenNext + 1) % seenIDCap
}

// Drain atomically removes and returns all queued messages for the agent,
// highest priority first, arrival order within equal priority. A crash
// after Drain loses the returned messages; that is the delivery contract.
func (b *Bus) Drain(agentID string) []domain.A2AMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	mb, ok := b.mailboxes[agentID]
	if !ok || mb.len() == 0 {
		return nil
	}
	msgs := mb.takeAll()
	delete(b.mailboxes, agentID)
	b.delivered += uint64(len(msgs))
	return msgs
}

// Requeue puts previously drained messages back at the front of the agent's
// mailbox, preserving their given order ahead of anything sent since. Used
// by the HTTP drain filter to return non-matching messages.
func (b *Bus) Requeue(agentID string, msgs []domain.A2AMessage) {
	if len(msgs) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	mb, ok := b.mailboxes[agentID]
	if !ok {
		mb = &mailbox{}
		b.mailboxes[agentID] = mb
	}
	mb.pushFront(msgs)
	if b.delivered >= uint64(len(msgs)) {
		b.delivered -= uint64(len(msgs))
	}
}

// Depth returns the current queue length for the agent.
func (b *Bus) Depth(agentID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if mb, ok := b.mailboxes[agentID]; ok {
		return mb.len()
	}
	return 0
}

// Snapshot returns the current counters.
func (b *Bus) Snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	queued := 0
	for _, mb := range b.mailboxes {
		queued += mb.len()
	}
	return Stats{Sent: b.sent, Delivered: b.delivered, Dropped: b.dropped, Queued: queued}
}
