package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
)

var (
	// ErrNoToken means Connect was called without a usable credential. This
	// is fatal: the client never dials unauthenticated.
	ErrNoToken = errors.New("realtime: no bearer token available")

	// ErrDialFailed wraps the transport error of a failed initial connect.
	ErrDialFailed = errors.New("realtime: dial failed")
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeWait               = 10 * time.Second
	pongWait                = 90 * time.Second
	maxFrameBytes           = 1 << 20
)

// TokenSource supplies the bearer token for the websocket handshake. Looked
// up on every dial so a rotated token is picked up by reconnects.
type TokenSource interface {
	Token() string
}

// Config carries the transport endpoint and the reconnect policy.
type Config struct {
	URL                  string // ws:// or wss:// endpoint of the /events namespace
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	ReconnectDelayCap    time.Duration
	HandshakeTimeout     time.Duration
}

// Client is the realtime transport: a single authenticated websocket
// connection with bounded automatic reconnection and a per-event listener
// registry. All methods are safe for concurrent use.
type Client struct {
	cfg      Config
	log      *logger.Logger
	tokens   TokenSource
	producer string

	registry *registry

	mu       sync.Mutex
	machine  Machine
	conn     *websocket.Conn
	driverID string
	gen      uint64 // connection generation; stale pumps are ignored
	timer    *time.Timer

	writeMu sync.Mutex
}

// NewClient builds a disconnected client. producer tags outgoing envelopes.
func NewClient(cfg Config, log *logger.Logger, tokens TokenSource, producer string) *Client {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Client{
		cfg:      cfg,
		log:      log,
		tokens:   tokens,
		producer: producer,
		registry: newRegistry(),
		machine: NewMachine(Policy{
			MaxAttempts:  cfg.MaxReconnectAttempts,
			InitialDelay: cfg.ReconnectDelay,
			DelayCap:     cfg.ReconnectDelayCap,
		}),
	}
}

// On registers a handler for event and returns its unsubscribe func.
// Registration works in any connection state; handlers survive reconnects
// but are cleared by Disconnect and by reconnect exhaustion.
func (c *Client) On(event string, h Handler) func() {
	return c.registry.add(event, h)
}

// IsConnected reports whether the transport is currently established.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.State == StateConnected && c.conn != nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.State
}

// Connect dials the realtime endpoint and announces the driver subscription.
// It fails fast when no token is available and returns the dial error when
// the initial handshake fails; automatic reconnection only covers drops of
// an established connection. Calling Connect while already connected or
// connecting is a no-op.
func (c *Client) Connect(ctx context.Context, driverID string) error {
	token := c.tokens.Token()
	if token == "" {
		return ErrNoToken
	}

	c.mu.Lock()
	next, _ := c.machine.Step(EventConnect)
	if next.State != StateConnecting {
		// already connected, already dialing, or a retry is scheduled
		state := c.machine.State
		c.mu.Unlock()
		c.log.Debug(ctx, "realtime_connect_noop", "connect ignored in state "+state.String(), nil)
		return nil
	}
	c.machine = next
	c.driverID = driverID
	c.mu.Unlock()

	conn, err := c.dial(ctx, token)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine.State != StateConnecting {
		// Disconnect raced the dial
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		c.machine = NewMachine(c.machine.Policy)
		return fmt.Errorf("%w: %v", ErrDialFailed, err)
	}

	c.machine, _ = c.machine.Step(EventDialOK)
	c.adoptLocked(ctx, conn)
	return nil
}

// Disconnect tears the connection down, cancels any pending retry, and
// clears every listener. Safe to call repeatedly and in any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.machine, _ = c.machine.Step(EventClose)
	c.teardownLocked()
	c.mu.Unlock()

	c.log.Info(context.Background(), "realtime_disconnected", "realtime channel closed", nil)
}

// Emit sends one frame, best-effort. While not connected it logs a warning
// and drops the payload: frames are never queued for later delivery. A write
// failure is treated as a lost connection.
func (c *Client) Emit(ctx context.Context, event string, payload any) {
	c.mu.Lock()
	conn := c.conn
	connected := c.machine.State == StateConnected
	gen := c.gen
	c.mu.Unlock()

	if !connected || conn == nil {
		c.log.Warn(ctx, "realtime_emit_skipped", "not connected, dropping "+event, nil)
		return
	}

	frame, err := contracts.NewFrame(event, payload)
	if err != nil {
		c.log.Error(ctx, "realtime_emit_encode", "cannot encode "+event, err, nil)
		return
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteJSON(frame)
	c.writeMu.Unlock()

	if err != nil {
		c.log.Warn(ctx, "realtime_emit_failed", "write failed for "+event, map[string]string{"error": err.Error()})
		c.handleConnLost(gen, err)
	}
}

// ----- internals -----

func (c *Client) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	header := http.Header{"Authorization": []string{"Bearer " + token}}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%s (status %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	return conn, nil
}

// adoptLocked installs an established connection: announces the driver
// subscription and starts the read pump. Caller holds c.mu.
func (c *Client) adoptLocked(ctx context.Context, conn *websocket.Conn) {
	c.conn = conn
	c.gen++
	gen := c.gen

	conn.SetReadLimit(maxFrameBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	c.announce(conn)
	go c.readPump(conn, gen)

	c.log.Info(ctx, "realtime_connected", "realtime channel established", map[string]string{
		"driver_id": c.driverID,
		"url":       c.cfg.URL,
	})
}

// announce re-asserts the driver subscription. Server-side room membership
// does not survive a dropped connection, so this runs on every connect.
func (c *Client) announce(conn *websocket.Conn) {
	frame, err := contracts.NewFrame(contracts.MsgSubscribeDriver, contracts.SubscribeDriver{
		DriverID: c.driverID,
		Envelope: contracts.SentNow(c.producer, ""),
	})
	if err != nil {
		return
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteJSON(frame)
	c.writeMu.Unlock()
}

func (c *Client) readPump(conn *websocket.Conn, gen uint64) {
	for {
		var frame contracts.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			c.handleConnLost(gen, err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		c.dispatch(frame)
	}
}

// dispatch fans one frame out to a snapshot of the listeners. A panicking
// handler is logged and skipped; the remaining handlers still run.
func (c *Client) dispatch(frame contracts.Frame) {
	for _, h := range c.registry.snapshot(frame.Event) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error(context.Background(), "realtime_handler_panic",
						"listener for "+frame.Event+" panicked",
						fmt.Errorf("panic: %v", r), nil)
				}
			}()
			h(frame.Data)
		}()
	}
}

// handleConnLost reacts to a broken established connection. Stale
// generations (pumps outliving a Disconnect or redial) are ignored.
func (c *Client) handleConnLost(gen uint64, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}
	c.gen++ // the pump and a failed write may both report the same loss
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	var act Action
	c.machine, act = c.machine.Step(EventConnLost)
	c.applyRecoveryLocked(act, cause)
}

// applyRecoveryLocked schedules a retry or performs the final teardown after
// the machine processed a failure. Caller holds c.mu.
func (c *Client) applyRecoveryLocked(act Action, cause error) {
	ctx := context.Background()

	switch act.Kind {
	case ActionRetry:
		c.log.Warn(ctx, "realtime_reconnecting", "connection lost, retrying", map[string]any{
			"attempt":  c.machine.Attempts,
			"max":      c.machine.Policy.MaxAttempts,
			"delay_ms": act.Delay.Milliseconds(),
			"error":    errString(cause),
		})
		c.timer = time.AfterFunc(act.Delay, c.redial)

	case ActionTeardown:
		c.log.Error(ctx, "realtime_gave_up", "reconnect ceiling hit, disconnecting", cause, map[string]int{
			"attempts": c.machine.Policy.MaxAttempts,
		})
		c.teardownLocked()
	}
}

func (c *Client) redial() {
	c.mu.Lock()
	if c.machine.State != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.machine, _ = c.machine.Step(EventConnect) // timer fired, dial now
	token := c.tokens.Token()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
	defer cancel()

	var conn *websocket.Conn
	err := ErrNoToken
	if token != "" {
		conn, err = c.dial(ctx, token)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine.State != StateReconnecting {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		var act Action
		c.machine, act = c.machine.Step(EventDialFailed)
		c.applyRecoveryLocked(act, err)
		return
	}

	c.machine, _ = c.machine.Step(EventDialOK)
	c.adoptLocked(ctx, conn)
}

// teardownLocked closes the socket, stops pending retries, and clears the
// registry. Caller holds c.mu.
func (c *Client) teardownLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.gen++ // invalidate any pump still draining the old socket
	c.registry.clear()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
