package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/dispatchd/store"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/jwt"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
)

func newTestHub() *Hub {
	return New(logger.New("hub-test"), jwt.NewManager("test-secret", time.Hour), store.NewMemory())
}

func newTestSession(subject string) *session {
	return &session{
		send:    make(chan contracts.Frame, sendBuffer),
		done:    make(chan struct{}),
		subject: subject,
		role:    jwt.RoleDriver,
		rooms:   make(map[string]struct{}),
	}
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

// A frame arriving for a session that just disconnected must be discarded,
// never panic: emitters snapshot their targets before sending, so an
// enqueue can always land after the session was dropped.
func TestEnqueueAfterDropIsDiscarded(t *testing.T) {
	h := newTestHub()
	s := newTestSession("driver-1")
	h.register(s)
	h.join(s, "driver:driver-1")

	h.drop(s)

	frame, err := contracts.NewFrame(contracts.EventOrderAvailable, nil)
	if err != nil {
		t.Fatalf("new frame: %v", err)
	}
	s.enqueue(frame) // must be a silent no-op

	select {
	case got := <-s.send:
		t.Fatalf("frame %q buffered into a dropped session", got.Event)
	default:
	}

	select {
	case <-s.done:
	default:
		t.Fatal("done not signalled after drop")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.sessions) != 0 || len(h.rooms) != 0 {
		t.Fatalf("session not fully removed: %d sessions, %d rooms", len(h.sessions), len(h.rooms))
	}
}

func TestDropIsIdempotent(t *testing.T) {
	h := newTestHub()
	s := newTestSession("driver-1")
	h.register(s)

	h.drop(s)
	h.drop(s) // second drop must not close done twice
}

// Broadcasts racing client disconnects must never bring the hub down.
func TestBroadcastRacingDropIsSafe(t *testing.T) {
	h := newTestHub()

	for i := 0; i < 200; i++ {
		s := newTestSession("driver-1")
		h.register(s)
		h.join(s, "driver:driver-1")

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			h.Broadcast(contracts.EventOrderAvailable, nil)
		}()
		go func() {
			defer wg.Done()
			h.EmitToDriver("driver-1", contracts.EventOrderAssigned, nil)
		}()
		go func() {
			defer wg.Done()
			h.drop(s)
		}()
		wg.Wait()
	}
}
