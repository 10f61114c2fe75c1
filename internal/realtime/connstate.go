package realtime

import "time"

// State is the logical connection state of the transport client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed // reconnect ceiling hit; requires a fresh Connect
)

// String returns a readable state name for logs.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Event is a transport-level occurrence fed into the machine.
type Event int

const (
	EventConnect    Event = iota // explicit Connect call or retry timer firing
	EventDialOK                  // transport opened successfully
	EventDialFailed              // dial attempt failed
	EventConnLost                // established connection dropped
	EventClose                   // explicit Disconnect call
)

// ActionKind is what the caller must do after a transition.
type ActionKind int

const (
	ActionNone     ActionKind = iota
	ActionDial                // open the transport now
	ActionAnnounce            // connection is up: re-assert the driver subscription
	ActionRetry               // schedule a dial after Action.Delay
	ActionTeardown            // drop the connection and clear all listeners
)

// Action pairs an ActionKind with its retry delay (ActionRetry only).
type Action struct {
	Kind  ActionKind
	Delay time.Duration
}

// Policy bounds the automatic reconnection behavior.
type Policy struct {
	MaxAttempts  int           // reconnect ceiling; exceeding it forces a full disconnect
	InitialDelay time.Duration // delay before the first retry
	DelayCap     time.Duration // retry delay never grows past this
}

// Backoff returns the delay before retry attempt n (1-based). Growth is
// linear from InitialDelay up to DelayCap.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.InitialDelay * time.Duration(attempt)
	if d > p.DelayCap {
		d = p.DelayCap
	}
	return d
}

// Machine is the pure reconnect state machine. Step is a value-receiver
// transition function: (machine, event) -> (machine, action), independent of
// timers, sockets, or goroutines, so the whole policy is testable as data.
type Machine struct {
	Policy   Policy
	State    State
	Attempts int // consecutive failed attempts since the last successful connect
}

// NewMachine returns a machine in DISCONNECTED with zero attempts.
func NewMachine(p Policy) Machine {
	return Machine{Policy: p, State: StateDisconnected}
}

// Step applies one event and returns the next machine plus the action the
// caller must perform.
func (m Machine) Step(ev Event) (Machine, Action) {
	switch ev {
	case EventClose:
		// Disconnect is idempotent from every state.
		m.State = StateDisconnected
		m.Attempts = 0
		return m, Action{Kind: ActionTeardown}

	case EventConnect:
		switch m.State {
		case StateDisconnected, StateFailed:
			m.State = StateConnecting
			m.Attempts = 0
			return m, Action{Kind: ActionDial}
		case StateReconnecting:
			// retry timer fired
			return m, Action{Kind: ActionDial}
		default:
			// already connected or connecting: no-op
			return m, Action{}
		}

	case EventDialOK:
		if m.State != StateConnecting && m.State != StateReconnecting {
			return m, Action{}
		}
		m.State = StateConnected
		m.Attempts = 0 // counter resets on every successful connect
		return m, Action{Kind: ActionAnnounce}

	case EventDialFailed, EventConnLost:
		if m.State == StateDisconnected || m.State == StateFailed {
			return m, Action{}
		}
		m.Attempts++
		if m.Attempts > m.Policy.MaxAttempts {
			// ceiling hit: stop retrying, clear everything
			m.State = StateFailed
			return m, Action{Kind: ActionTeardown}
		}
		m.State = StateReconnecting
		return m, Action{Kind: ActionRetry, Delay: m.Policy.Backoff(m.Attempts)}

	default:
		return m, Action{}
	}
}
