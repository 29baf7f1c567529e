package bus

import (
	"sort"

	"github.com/sniperlabs/snipercore/internal/domain"
)

// queued pairs a message with its bus-wide arrival sequence number, which
// breaks priority ties so arrival order is preserved.
type queued struct {
	msg domain.A2AMessage
	seq int64
}

// mailbox is one recipient's queue. It is not goroutine-safe; the Bus lock
// guards it.
type mailbox struct {
	entries []queued
}

func (m *mailbox) len() int { return len(m.entries) }

func (m *mailbox) push(q queued) {
	m.entries = append(m.entries, q)
}

// pushFront inserts messages ahead of everything queued, preserving the
// order given. Sequence numbers are assigned below the current minimum so
// the drain sort keeps them first among equal priorities.
func (m *mailbox) pushFront(msgs []domain.A2AMessage) {
	start := int64(0)
	for _, e := range m.entries {
		if e.seq < start {
			start = e.seq
		}
	}
	start -= int64(len(msgs))

	requeued := make([]queued, 0, len(msgs)+len(m.entries))
	for i, msg := range msgs {
		requeued = append(requeued, queued{msg: msg, seq: start + int64(i)})
	}
	m.entries = append(requeued, m.entries...)
}

// takeAll empties the mailbox and returns its messages sorted by priority
// rank descending, sequence ascending within equal rank.
func (m *mailbox) takeAll() []domain.A2AMessage {
	entries := m.entries
	m.entries = nil

	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := entries[i].msg.Priority.Rank(), entries[j].msg.Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]domain.A2AMessage, len(entries))
	for i, e := range entries {
		out[i] = e.msg
	}
	return out
}

// evictLowest removes and returns the newest message of the lowest priority
// present, never a critical one. It reports false when everything queued is
// critical, in which case the mailbox is allowed to overflow.
func (m *mailbox) evictLowest() (queued, bool) {
	victim := -1
	for i, e := range m.entries {
		if e.msg.Priority == domain.PriorityCritical {
			continue
		}
		if victim == -1 {
			victim = i
			continue
		}
		v := m.entries[victim]
		if e.msg.Priority.Rank() < v.msg.Priority.Rank() ||
			(e.msg.Priority.Rank() == v.msg.Priority.Rank() && e.seq > v.seq) {
			victim = i
		}
	}
	if victim == -1 {
		return queued{}, false
	}
	out := m.entries[victim]
	m.entries = append(m.entries[:victim], m.entries[victim+1:]...)
	return out, true
}
