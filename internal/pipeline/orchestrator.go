// Package pipeline runs the trading loop: market data in, signals through
// risk, approved orders out to the executor. Every stage is an agent on the
// registry and all hand-offs travel over the A2A bus, so the HTTP surface
// and external agents observe the same traffic the pipeline itself uses.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sniperlabs/snipercore/internal/bus"
	"github.com/sniperlabs/snipercore/internal/domain"
	"github.com/sniperlabs/snipercore/internal/executor"
	"github.com/sniperlabs/snipercore/internal/notify"
	"github.com/sniperlabs/snipercore/internal/registry"
	"github.com/sniperlabs/snipercore/internal/risk"
	"github.com/sniperlabs/snipercore/internal/strategy"
)

const (
	defaultPollInterval      = 25 * time.Millisecond
	defaultHeartbeatInterval = 10 * time.Second
	defaultEventStream       = "risk_events"
)

// Config tunes orchestrator timing.
type Config struct {
	// PollInterval is how often stage loops drain their mailboxes.
	PollInterval time.Duration

	// HeartbeatInterval is how often stage agents heartbeat the registry.
	HeartbeatInterval time.Duration

	// EventStreamName is the audit stream risk events are appended to.
	EventStreamName string
}

// Deps carries the orchestrator's collaborators. Fills, RiskEvents, Events,
// and Notifier are optional; a nil value disables that sink.
type Deps struct {
	Registry *registry.Registry
	Bus      *bus.Bus
	Ledger   *risk.Ledger
	Executor *executor.Executor
	Engine   *strategy.Engine

	Prices  domain.PriceCache
	History domain.PriceHistory

	Events     domain.EventStream
	Fills      domain.FillStore
	RiskEvents domain.RiskEventStore
	Notifier   *notify.Notifier

	Logger *slog.Logger
}

// stageIDs holds the registry ids of the four built-in stage agents.
type stageIDs struct {
	data     string
	strategy string
	risk     string
	executor string
}

// Orchestrator owns the stage loops. Create with New, then call Run.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	ids    stageIDs
	logger *slog.Logger
}

// New registers the built-in stage agents and returns an orchestrator ready
// to run.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.EventStreamName == "" {
		cfg.EventStreamName = defaultEventStream
	}

	o := &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: deps.Logger.With(slog.String("component", "pipeline")),
	}

	stages := []struct {
		name string
		role domain.AgentRole
		dst  *string
	}{
		{"market-data-provider", domain.AgentRoleDataProvider, &o.ids.data},
		{"strategy-engine", domain.AgentRoleStrategyEngine, &o.ids.strategy},
		{"risk-manager", domain.AgentRoleRiskManager, &o.ids.risk},
		{"order-executor", domain.AgentRoleExecutor, &o.ids.executor},
	}
	for _, st := range stages {
		id, err := deps.Registry.Register(domain.AgentInfo{
			Name:         st.name,
			Role:         st.role,
			Capabilities: []string{string(st.role)},
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline: register %s: %w", st.name, err)
		}
		*st.dst = id
	}
	return o, nil
}

// StageAgentIDs returns the registry ids of the built-in stage agents in
// pipeline order: data provider, strategy, risk, executor.
func (o *Orchestrator) StageAgentIDs() [4]string {
	return [4]string{o.ids.data, o.ids.strategy, o.ids.risk, o.ids.executor}
}

// Run drives the stage loops until the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.pollLoop(ctx, o.ids.strategy, o.handleStrategyMessage) })
	g.Go(func() error { return o.pollLoop(ctx, o.ids.risk, o.handleRiskMessage) })
	g.Go(func() error { return o.pollLoop(ctx, o.ids.executor, o.handleExecutorMessage) })
	g.Go(func() error { return o.heartbeatLoop(ctx) })

	o.logger.Info("pipeline started")
	defer o.logger.Info("pipeline stopped")
	return g.Wait()
}

// HandleTick is the feed entry point: it caches the price, marks open
// positions, and publishes the tick to the strategy stage and monitors.
func (o *Orchestrator) HandleTick(ctx context.Context, tick domain.MarketTick) {
	if o.deps.Prices != nil {
		if err := o.deps.Prices.SetPrice(ctx, tick.Symbol, tick.Price, tick.Timestamp); err != nil {
			o.logger.WarnContext(ctx, "price cache update failed",
				slog.String("symbol", tick.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}
	if o.deps.History != nil {
		if err := o.deps.History.Append(ctx, tick.Symbol, tick.Price, tick.Timestamp); err != nil {
			o.logger.WarnContext(ctx, "price history append failed",
				slog.String("symbol", tick.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}
	o.deps.Ledger.MarkPrice(tick.Symbol, tick.Price)
	o.checkDailyLoss(ctx)

	o.send(ctx, o.ids.data, o.ids.strategy, domain.MessageKindMarketData, tick, domain.PriorityNormal)
	o.fanOutMonitors(ctx, o.ids.data, domain.MessageKindMarketData, tick, domain.PriorityLow)
}

// pollLoop drains one stage mailbox on a fixed interval. Messages the
// handler cannot decode are logged and skipped; delivery is at most once.
func (o *Orchestrator) pollLoop(ctx context.Context, agentID string, handle func(context.Context, domain.A2AMessage)) error {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, msg := range o.deps.Bus.Drain(agentID) {
				handle(ctx, msg)
			}
		}
	}
}

func (o *Orchestrator) handleStrategyMessage(ctx context.Context, msg domain.A2AMessage) {
	if msg.Kind != domain.MessageKindMarketData {
		return
	}
	var tick domain.MarketTick
	if err := json.Unmarshal(msg.Payload, &tick); err != nil {
		o.logger.WarnContext(ctx, "malformed market data payload",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	sig, ok := o.deps.Engine.OnTick(ctx, tick)
	if !ok {
		return
	}
	o.logger.InfoContext(ctx, "signal generated",
		slog.String("signal_id", sig.ID),
		slog.String("symbol", sig.Symbol),
		slog.String("side", string(sig.Side)),
		slog.Float64("confidence", sig.Confidence),
	)
	o.send(ctx, o.ids.strategy, o.ids.risk, domain.MessageKindTradingSignal, sig, domain.PriorityNormal)
	o.fanOutMonitors(ctx, o.ids.strategy, domain.MessageKindTradingSignal, sig, domain.PriorityLow)
}

func (o *Orchestrator) handleRiskMessage(ctx context.Context, msg domain.A2AMessage) {
	if msg.Kind != domain.MessageKindTradingSignal {
		return
	}
	var sig domain.TradeSignal
	if err := json.Unmarshal(msg.Payload, &sig); err != nil {
		o.logger.WarnContext(ctx, "malformed trading signal payload",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := o.deps.Ledger.Evaluate(ctx, sig); err != nil {
		o.recordRejection(ctx, sig, err)
		return
	}

	order := domain.ExecutionOrder{
		ID:         uuid.New().String(),
		SignalID:   sig.ID,
		Symbol:     sig.Symbol,
		Quantity:   sig.SizeDelta(),
		Kind:       domain.OrderKindMarket,
		LimitPrice: sig.Price,
		CreatedAt:  time.Now().UTC(),
	}
	o.send(ctx, o.ids.risk, o.ids.executor, domain.MessageKindExecutionOrder, order, domain.PriorityHigh)
}

func (o *Orchestrator) handleExecutorMessage(ctx context.Context, msg domain.A2AMessage) {
	if msg.Kind != domain.MessageKindExecutionOrder {
		return
	}
	var order domain.ExecutionOrder
	if err := json.Unmarshal(msg.Payload, &order); err != nil {
		o.logger.WarnContext(ctx, "malformed execution order payload",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	receipt, err := o.deps.Executor.Execute(ctx, order)
	if err != nil {
		o.recordExecutionFailure(ctx, order, err)
		return
	}

	o.deps.Ledger.ApplyFill(order.Symbol, order.Quantity, receipt.FilledPrice)
	o.persistFill(ctx, order, receipt)
	o.fanOutMonitors(ctx, o.ids.executor, domain.MessageKindSystemStatus, receipt, domain.PriorityLow)

	o.checkDailyLoss(ctx)
}

// checkDailyLoss consults the ledger after any PnL movement, on fills and
// on price ticks alike. The Stopped guard makes the breach record fire once
// per engagement; DailyLossTriggered keeps reporting true until Reset.
func (o *Orchestrator) checkDailyLoss(ctx context.Context) {
	if o.deps.Ledger.Stopped() {
		return
	}
	if o.deps.Ledger.DailyLossTriggered() {
		o.recordDailyLoss(ctx)
	}
}

// recordRejection books the audit trail for a rejected signal. Rejections
// are normal operation; only infrastructure errors are logged as errors.
func (o *Orchestrator) recordRejection(ctx context.Context, sig domain.TradeSignal, err error) {
	rej, ok := domain.AsRiskRejection(err)
	if !ok {
		o.logger.ErrorContext(ctx, "risk evaluation error",
			slog.String("signal_id", sig.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	o.logger.InfoContext(ctx, "signal rejected",
		slog.String("signal_id", sig.ID),
		slog.String("symbol", sig.Symbol),
		slog.String("reason", string(rej.Reason)),
	)

	evt := domain.RiskEvent{
		ID:        uuid.New().String(),
		Kind:      domain.RiskEventRejected,
		Symbol:    sig.Symbol,
		Reason:    string(rej.Reason),
		Detail:    rej.Detail,
		CreatedAt: time.Now().UTC(),
	}
	o.persistRiskEvent(ctx, evt)
	o.fanOutMonitors(ctx, o.ids.risk, domain.MessageKindRiskAlert, evt, domain.PriorityHigh)

	if o.deps.Notifier != nil && rej.Reason == domain.RiskReasonEmergencyStop {
		_ = o.deps.Notifier.Notify(ctx, notify.EventEmergencyStop,
			"Signal rejected: emergency stop",
			fmt.Sprintf("Signal %s on %s rejected while trading is halted.", sig.ID, sig.Symbol))
	}
}

func (o *Orchestrator) recordExecutionFailure(ctx context.Context, order domain.ExecutionOrder, err error) {
	o.logger.ErrorContext(ctx, "execution failed",
		slog.String("order_id", order.ID),
		slog.String("error", err.Error()),
	)

	detail := err.Error()
	var execErr *domain.ExecutionError
	if errors.As(err, &execErr) && execErr.Cause != nil {
		detail = execErr.Cause.Error()
	}

	evt := domain.RiskEvent{
		ID:        uuid.New().String(),
		Kind:      domain.RiskEventExecutionFail,
		Symbol:    order.Symbol,
		Reason:    "settlement_error",
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	o.persistRiskEvent(ctx, evt)
	o.fanOutMonitors(ctx, o.ids.executor, domain.MessageKindRiskAlert, evt, domain.PriorityHigh)

	if o.deps.Notifier != nil {
		_ = o.deps.Notifier.Notify(ctx, notify.EventExecutionFailed,
			"Execution failed",
			fmt.Sprintf("Order %s on %s failed: %s", order.ID, order.Symbol, detail))
	}
}

func (o *Orchestrator) recordDailyLoss(ctx context.Context) {
	evt := domain.RiskEvent{
		ID:        uuid.New().String(),
		Kind:      domain.RiskEventEmergencyStop,
		Reason:    "daily_loss",
		Detail:    "daily loss limit breached, trading halted",
		CreatedAt: time.Now().UTC(),
	}
	o.persistRiskEvent(ctx, evt)
	o.fanOutMonitors(ctx, o.ids.risk, domain.MessageKindRiskAlert, evt, domain.PriorityCritical)

	if o.deps.Notifier != nil {
		_ = o.deps.Notifier.Notify(ctx, notify.EventDailyLoss,
			"Daily loss limit breached",
			"Emergency stop engaged. Manual reset required to resume trading.")
	}
}

func (o *Orchestrator) persistFill(ctx context.Context, order domain.ExecutionOrder, receipt domain.ExecutionReceipt) {
	if o.deps.Fills == nil {
		return
	}
	fill := domain.Fill{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		Symbol:     order.Symbol,
		Quantity:   order.Quantity,
		Price:      receipt.FilledPrice,
		LatencyMs:  receipt.LatencyMs,
		Simulated:  receipt.Simulated,
		ExecutedAt: receipt.SettledAt,
	}
	if err := o.deps.Fills.Create(ctx, fill); err != nil {
		o.logger.WarnContext(ctx, "fill persist failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) persistRiskEvent(ctx context.Context, evt domain.RiskEvent) {
	if o.deps.RiskEvents != nil {
		if err := o.deps.RiskEvents.Create(ctx, evt); err != nil {
			o.logger.WarnContext(ctx, "risk event persist failed",
				slog.String("event_id", evt.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if o.deps.Events != nil {
		payload, err := json.Marshal(evt)
		if err == nil {
			err = o.deps.Events.Append(ctx, o.cfg.EventStreamName, payload)
		}
		if err != nil {
			o.logger.WarnContext(ctx, "risk event stream append failed",
				slog.String("event_id", evt.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// send wraps payload into an A2A message and enqueues it.
func (o *Orchestrator) send(ctx context.Context, from, to string, kind domain.MessageKind, payload any, priority domain.Priority) {
	msg, err := domain.NewMessage(from, to, kind, payload, priority)
	if err != nil {
		o.logger.ErrorContext(ctx, "message encode failed",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := o.deps.Bus.Send(msg); err != nil {
		o.logger.WarnContext(ctx, "message send failed",
			slog.String("kind", string(kind)),
			slog.String("to", to),
			slog.String("error", err.Error()),
		)
	}
}

// fanOutMonitors copies the payload to every registered monitor agent.
func (o *Orchestrator) fanOutMonitors(ctx context.Context, from string, kind domain.MessageKind, payload any, priority domain.Priority) {
	monitors := o.deps.Registry.FindByRole(domain.AgentRoleMonitor)
	for _, mon := range monitors {
		o.send(ctx, from, mon.ID, kind, payload, priority)
	}
}

// heartbeatLoop keeps the built-in stage agents alive on the registry.
func (o *Orchestrator) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.HeartbeatInterval)
	defer ticker.Stop()

	ids := []string{o.ids.data, o.ids.strategy, o.ids.risk, o.ids.executor}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			for _, id := range ids {
				if err := o.deps.Registry.Heartbeat(id, now.UTC()); err != nil {
					o.logger.WarnContext(ctx, "stage heartbeat failed",
						slog.String("agent_id", id),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}
}
