package domain

import (
	"context"
	"time"
)

// ListOpts carries pagination parameters for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// Fill is a settled execution applied to the position ledger.
type Fill struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"` // signed
	Price      float64   `json:"price"`
	LatencyMs  int64     `json:"latency_ms"`
	Simulated  bool      `json:"simulated"`
	ExecutedAt time.Time `json:"executed_at"`
}

// FillStore persists settled fills.
type FillStore interface {
	Create(ctx context.Context, fill Fill) error
	List(ctx context.Context, opts ListOpts) ([]Fill, error)
	// ListBefore returns fills executed before the cutoff, oldest first.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]Fill, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RiskEventKind classifies entries in the risk audit trail.
type RiskEventKind string

const (
	RiskEventRejected      RiskEventKind = "rejected"
	RiskEventEmergencyStop RiskEventKind = "emergency_stop"
	RiskEventReset         RiskEventKind = "reset"
	RiskEventExecutionFail RiskEventKind = "execution_failed"
)

// RiskEvent records a rejection, failure, or ledger state transition.
type RiskEvent struct {
	ID        string        `json:"id"`
	Kind      RiskEventKind `json:"kind"`
	Symbol    string        `json:"symbol,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// RiskEventStore persists the risk audit trail.
type RiskEventStore interface {
	Create(ctx context.Context, evt RiskEvent) error
	List(ctx context.Context, opts ListOpts) ([]RiskEvent, error)
}
