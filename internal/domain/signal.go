package domain

import "time"

// OrderSide is the direction of a signal or order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// MarketTick is a single market-data observation published by the ingest
// stage and consumed by the strategy stage.
type MarketTick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TradeSignal is a proposed trade emitted by a strategy. It has not passed
// risk controls yet.
type TradeSignal struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Size       float64   `json:"size"`
	Price      float64   `json:"price"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

// SizeDelta returns the signed position-size change the signal requests.
func (s TradeSignal) SizeDelta() float64 {
	if s.Side == OrderSideSell {
		return -s.Size
	}
	return s.Size
}

// OrderKind selects execution semantics. Only market orders settle natively;
// the executor degrades the other kinds to market semantics and flags the
// receipt as approximated.
type OrderKind string

const (
	OrderKindMarket     OrderKind = "market"
	OrderKindLimit      OrderKind = "limit"
	OrderKindStopMarket OrderKind = "stop_market"
	OrderKindStopLimit  OrderKind = "stop_limit"
)

// ExecutionOrder is a risk-approved signal ready for settlement.
type ExecutionOrder struct {
	ID         string    `json:"id"`
	SignalID   string    `json:"signal_id"`
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"` // signed
	Kind       OrderKind `json:"kind"`
	LimitPrice float64   `json:"limit_price,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Settlement is the outcome a settlement backend reports for an order.
type Settlement struct {
	TxSignature string
	FilledPrice float64
	Simulated   bool
}

// ExecutionReceipt is the executor's record of a settled order.
type ExecutionReceipt struct {
	OrderID      string    `json:"order_id"`
	TxSignature  string    `json:"tx_signature"`
	FilledPrice  float64   `json:"filled_price"`
	LatencyMs    int64     `json:"latency_ms"`
	Simulated    bool      `json:"simulated"`
	Approximated bool      `json:"approximated"` // non-market kind degraded to market
	SettledAt    time.Time `json:"settled_at"`
}
