package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageKind identifies the payload type of an A2A message. Custom kinds
// use the "custom:<tag>" form so unknown integrations can still route.
type MessageKind string

const (
	MessageKindMarketData     MessageKind = "market_data"
	MessageKindTradingSignal  MessageKind = "trading_signal"
	MessageKindExecutionOrder MessageKind = "execution_order"
	MessageKindRiskAlert      MessageKind = "risk_alert"
	MessageKindSystemStatus   MessageKind = "system_status"
	MessageKindHeartbeat      MessageKind = "heartbeat"

	customKindPrefix = "custom:"
)

// CustomKind builds a custom message kind from a free-form tag.
func CustomKind(tag string) MessageKind {
	return MessageKind(customKindPrefix + tag)
}

// IsCustom reports whether the kind carries a custom tag.
func (k MessageKind) IsCustom() bool {
	return strings.HasPrefix(string(k), customKindPrefix)
}

// Priority is the advisory delivery priority of a message. It re-orders
// drains within a mailbox; it never pre-empts messages across mailboxes.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Rank maps priority to a sortable weight; higher drains first. Unknown
// values rank as normal.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityLow:
		return 0
	default:
		return 1
	}
}

// A2AMessage is the unit of agent-to-agent communication. Messages are
// immutable after creation; the bus removes them on drain.
type A2AMessage struct {
	ID               string          `json:"id"`
	FromAgent        string          `json:"from_agent"`
	ToAgent          string          `json:"to_agent"`
	Kind             MessageKind     `json:"message_type"`
	Payload          json.RawMessage `json:"payload"`
	Timestamp        time.Time       `json:"timestamp"`
	Priority         Priority        `json:"priority"`
	RequiresResponse bool            `json:"requires_response"`
	CorrelationID    string          `json:"correlation_id,omitempty"`
}

// NewMessage assembles a message with a fresh id and timestamp. The payload
// is marshaled here so stages pass plain structs.
func NewMessage(from, to string, kind MessageKind, payload any, priority Priority) (A2AMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return A2AMessage{}, err
	}
	return A2AMessage{
		ID:        uuid.New().String(),
		FromAgent: from,
		ToAgent:   to,
		Kind:      kind,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
		Priority:  priority,
	}, nil
}
