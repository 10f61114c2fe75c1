package realtime

import (
	"testing"
	"time"
)

func testPolicy() Policy {
	return Policy{MaxAttempts: 5, InitialDelay: time.Second, DelayCap: 5 * time.Second}
}

func TestBackoffGrowsToCap(t *testing.T) {
	p := testPolicy()
	want := []time.Duration{
		time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second,
		5 * time.Second, 5 * time.Second, // capped
	}
	for i, w := range want {
		if got := p.Backoff(i + 1); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}
}

func TestHappyPathConnect(t *testing.T) {
	m := NewMachine(testPolicy())

	m, act := m.Step(EventConnect)
	if m.State != StateConnecting || act.Kind != ActionDial {
		t.Fatalf("expected CONNECTING/dial, got %s/%v", m.State, act.Kind)
	}

	m, act = m.Step(EventDialOK)
	if m.State != StateConnected || act.Kind != ActionAnnounce {
		t.Fatalf("expected CONNECTED/announce, got %s/%v", m.State, act.Kind)
	}
	if m.Attempts != 0 {
		t.Errorf("attempts should be 0 after successful connect, got %d", m.Attempts)
	}
}

func TestConnectIsNoOpWhenConnected(t *testing.T) {
	m := Machine{Policy: testPolicy(), State: StateConnected}
	m, act := m.Step(EventConnect)
	if m.State != StateConnected || act.Kind != ActionNone {
		t.Errorf("expected no-op, got %s/%v", m.State, act.Kind)
	}
}

func TestReconnectCeiling(t *testing.T) {
	m := Machine{Policy: testPolicy(), State: StateConnected}

	// lose the connection, then fail every redial
	var act Action
	m, act = m.Step(EventConnLost)
	if m.State != StateReconnecting || act.Kind != ActionRetry {
		t.Fatalf("expected RECONNECTING/retry, got %s/%v", m.State, act.Kind)
	}
	if act.Delay != time.Second {
		t.Errorf("first retry delay: expected 1s, got %v", act.Delay)
	}

	retries := 1
	for m.State == StateReconnecting {
		m, _ = m.Step(EventConnect) // timer fires, dial
		m, act = m.Step(EventDialFailed)
		if act.Kind == ActionRetry {
			retries++
		}
	}

	// at most MaxAttempts dials before giving up
	if retries != testPolicy().MaxAttempts {
		t.Errorf("expected %d retries before ceiling, got %d", testPolicy().MaxAttempts, retries)
	}
	if m.State != StateFailed || act.Kind != ActionTeardown {
		t.Errorf("expected FAILED/teardown, got %s/%v", m.State, act.Kind)
	}

	// failed state stays put until a fresh Connect
	m2, act := m.Step(EventConnLost)
	if m2.State != StateFailed || act.Kind != ActionNone {
		t.Errorf("FAILED should ignore conn events, got %s/%v", m2.State, act.Kind)
	}
	m2, act = m.Step(EventConnect)
	if m2.State != StateConnecting || act.Kind != ActionDial {
		t.Errorf("fresh Connect from FAILED should dial, got %s/%v", m2.State, act.Kind)
	}
}

func TestCounterResetsOnSuccess(t *testing.T) {
	m := Machine{Policy: testPolicy(), State: StateConnected}
	m, _ = m.Step(EventConnLost)
	m, _ = m.Step(EventConnect)
	m, _ = m.Step(EventDialFailed)
	if m.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", m.Attempts)
	}

	m, _ = m.Step(EventConnect)
	m, _ = m.Step(EventDialOK)
	if m.Attempts != 0 {
		t.Errorf("attempts should reset on success, got %d", m.Attempts)
	}

	// a later drop starts the backoff from the beginning
	_, act := m.Step(EventConnLost)
	if act.Delay != time.Second {
		t.Errorf("expected backoff restart at 1s, got %v", act.Delay)
	}
}

func TestCloseFromAnyState(t *testing.T) {
	for _, s := range []State{StateDisconnected, StateConnecting, StateConnected, StateReconnecting, StateFailed} {
		m := Machine{Policy: testPolicy(), State: s, Attempts: 3}
		m, act := m.Step(EventClose)
		if m.State != StateDisconnected || m.Attempts != 0 || act.Kind != ActionTeardown {
			t.Errorf("close from %s: got %s attempts=%d action=%v", s, m.State, m.Attempts, act.Kind)
		}
	}
}
