// Package ingest connects to the market-data WebSocket feed and turns raw
// tick messages into domain.MarketTick values for the pipeline.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sniperlabs/snipercore/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base backoff; doubles up to maxReconnectDelay.
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// TickHandler receives each decoded market tick.
type TickHandler func(ctx context.Context, tick domain.MarketTick)

// subscribeCmd is the wire format for feed subscriptions.
type subscribeCmd struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// tickMessage is the wire format of an incoming tick.
type tickMessage struct {
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"ts"` // Unix milliseconds
}

// Feed subscribes to a set of symbols over WebSocket and invokes the handler
// for every tick. It reconnects with exponential backoff until the context
// is cancelled.
type Feed struct {
	wsURL   string
	symbols []string
	onTick  TickHandler
	logger  *slog.Logger
}

// NewFeed creates a feed for the given symbols.
func NewFeed(wsURL string, symbols []string, onTick TickHandler, logger *slog.Logger) *Feed {
	return &Feed{
		wsURL:   wsURL,
		symbols: symbols,
		onTick:  onTick,
		logger:  logger.With(slog.String("component", "market_feed")),
	}
}

// Run connects and consumes ticks until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	if len(f.symbols) == 0 {
		f.logger.Info("no symbols to subscribe, feed idle")
		<-ctx.Done()
		return ctx.Err()
	}

	delay := reconnectDelay
	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConnection holds one WebSocket session: dial, subscribe, read until the
// connection drops or the context is cancelled.
func (f *Feed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("ingest: connect %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(subscribeCmd{Type: "subscribe", Symbols: f.symbols}); err != nil {
		return fmt.Errorf("ingest: subscribe: %w", err)
	}
	f.logger.Info("feed subscribed", slog.Int("symbols", len(f.symbols)))

	// Close the connection when the context ends so ReadMessage unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			conn.Close()
		case <-stop:
		}
	}()

	go f.pingLoop(conn, stop)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ingest: read: %w", err)
		}
		f.handleMessage(ctx, raw)
	}
}

func (f *Feed) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes a raw frame and dispatches tick messages. Frames
// that do not parse or carry another type are dropped silently.
func (f *Feed) handleMessage(ctx context.Context, raw []byte) {
	var msg tickMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Type != "" && msg.Type != "tick" {
		return
	}
	if msg.Symbol == "" || msg.Price <= 0 {
		return
	}

	ts := time.Now().UTC()
	if msg.Timestamp > 0 {
		ts = time.UnixMilli(msg.Timestamp).UTC()
	}

	f.onTick(ctx, domain.MarketTick{
		Symbol:    msg.Symbol,
		Price:     msg.Price,
		Volume:    msg.Volume,
		Timestamp: ts,
	})
}
