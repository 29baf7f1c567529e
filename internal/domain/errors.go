package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnknownAgent       = errors.New("unknown agent")
	ErrUnknownRecipient   = errors.New("unknown recipient")
	ErrUnknownCorrelation = errors.New("unknown correlation id")
	ErrEmergencyStop      = errors.New("emergency stop engaged")
)

// RiskReason identifies which check rejected a signal.
type RiskReason string

const (
	RiskReasonPositionLimit RiskReason = "position_limit"
	RiskReasonPortfolioRisk RiskReason = "portfolio_risk"
	RiskReasonCorrelation   RiskReason = "correlation"
	RiskReasonEmergencyStop RiskReason = "emergency_stop"
)

// RiskRejection is the expected outcome of a failed risk check. It is an
// error for propagation convenience, but a rejected signal is normal
// operation, not a fault.
type RiskRejection struct {
	Reason RiskReason
	Detail string
}

func (e *RiskRejection) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("risk rejected: %s", e.Reason)
	}
	return fmt.Sprintf("risk rejected: %s: %s", e.Reason, e.Detail)
}

// Unwrap exposes ErrEmergencyStop behind emergency-stop rejections so
// callers can match the halt with errors.Is without inspecting the reason.
func (e *RiskRejection) Unwrap() error {
	if e.Reason == RiskReasonEmergencyStop {
		return ErrEmergencyStop
	}
	return nil
}

// AsRiskRejection unwraps err into a RiskRejection if it is one.
func AsRiskRejection(err error) (*RiskRejection, bool) {
	var rej *RiskRejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// ExecutionError reports a failed settlement attempt together with the
// measured latency of the attempt.
type ExecutionError struct {
	OrderID string
	Latency time.Duration
	Cause   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed for order %s after %s: %v", e.OrderID, e.Latency, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }
