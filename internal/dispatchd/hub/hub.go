package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/dispatchd/store"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/geo"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/jwt"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 75 * time.Second
	pingPeriod    = 30 * time.Second
	maxFrameBytes = 1 << 20
	sendBuffer    = 32
)

// Hub owns the /events websocket endpoint: authenticated sessions grouped
// into rooms. Drivers join their own driver room via subscribeToDriver and
// any order room via subscribeToOrder; room membership dies with the
// connection, which is why clients re-subscribe after every reconnect.
type Hub struct {
	log   *logger.Logger
	auth  *jwt.Manager
	store store.Store

	upgrader websocket.Upgrader

	mu       sync.Mutex
	rooms    map[string]map[*session]struct{}
	sessions map[*session]struct{}
}

type session struct {
	conn    *websocket.Conn
	send    chan contracts.Frame
	done    chan struct{} // closed by drop; tells writePump to finish
	subject string
	role    jwt.Role

	mu     sync.Mutex
	closed bool
	rooms  map[string]struct{}
}

// New builds an empty hub.
func New(log *logger.Logger, auth *jwt.Manager, st store.Store) *Hub {
	return &Hub{
		log:   log,
		auth:  auth,
		store: st,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		rooms:    make(map[string]map[*session]struct{}),
		sessions: make(map[*session]struct{}),
	}
}

// HandleEvents upgrades an authenticated request into an event session.
// Tokens arrive as a bearer header or a token query parameter (browser
// websocket clients cannot set headers).
func (h *Hub) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := jwt.FromAuthorization(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	claims, err := h.auth.ParseAndValidate(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err := jwt.RoleAllowed(claims, jwt.RoleDriver, jwt.RoleDispatcher); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error(ctx, "ws_upgrade_failed", "websocket upgrade failed", err, nil)
		return
	}

	s := &session{
		conn:    conn,
		send:    make(chan contracts.Frame, sendBuffer),
		done:    make(chan struct{}),
		subject: claims.Subject,
		role:    claims.Role,
		rooms:   make(map[string]struct{}),
	}

	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()

	h.log.Info(ctx, "ws_session_opened", "event session established", map[string]string{
		"subject": s.subject,
		"role":    string(s.role),
	})

	go h.writePump(s)
	go h.readPump(s)
}

// EmitToDriver delivers an event to every session in the driver's room.
func (h *Hub) EmitToDriver(driverID, event string, payload any) {
	h.emit("driver:"+driverID, event, payload)
}

// EmitToOrder delivers an event to every session subscribed to the order.
func (h *Hub) EmitToOrder(orderID, event string, payload any) {
	h.emit("order:"+orderID, event, payload)
}

// Broadcast delivers an event to every open session.
func (h *Hub) Broadcast(event string, payload any) {
	frame, err := contracts.NewFrame(event, payload)
	if err != nil {
		return
	}
	h.mu.Lock()
	targets := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.enqueue(frame)
	}
}

// ----- internals -----

func (h *Hub) emit(room, event string, payload any) {
	frame, err := contracts.NewFrame(event, payload)
	if err != nil {
		return
	}
	h.mu.Lock()
	targets := make([]*session, 0, len(h.rooms[room]))
	for s := range h.rooms[room] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.enqueue(frame)
	}
}

// enqueue is non-blocking: a dropped session discards the frame, and a live
// one that cannot keep up loses frames rather than stalling the emitter.
// s.send is never closed, so a send racing a disconnect cannot panic; the
// closed flag just stops frames piling into a dead session's buffer.
func (s *session) enqueue(frame contracts.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- frame:
	default:
	}
}

func (h *Hub) join(s *session, room string) {
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*session]struct{})
	}
	h.rooms[room][s] = struct{}{}
	h.mu.Unlock()

	s.mu.Lock()
	s.rooms[room] = struct{}{}
	s.mu.Unlock()
}

func (h *Hub) drop(s *session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	rooms := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		rooms = append(rooms, room)
	}
	s.mu.Unlock()

	h.mu.Lock()
	for _, room := range rooms {
		if set, ok := h.rooms[room]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.sessions, s)
	h.mu.Unlock()

	close(s.done)
}

func (h *Hub) readPump(s *session) {
	defer func() {
		h.drop(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxFrameBytes)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame contracts.Frame
		if err := s.conn.ReadJSON(&frame); err != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleFrame(s, frame)
	}
}

func (h *Hub) writePump(s *session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-s.done:
			s.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) handleFrame(s *session, frame contracts.Frame) {
	ctx := context.Background()

	switch frame.Event {
	case contracts.MsgSubscribeDriver:
		var sub contracts.SubscribeDriver
		if err := json.Unmarshal(frame.Data, &sub); err != nil {
			return
		}
		id := strings.TrimSpace(sub.DriverID)
		if id == "" {
			return
		}
		// drivers only subscribe to themselves; dispatchers may watch anyone
		if s.role == jwt.RoleDriver && id != s.subject {
			h.log.Warn(ctx, "ws_subscribe_denied", "driver tried to subscribe to another driver",
				map[string]string{"subject": s.subject, "requested": id})
			return
		}
		h.join(s, "driver:"+id)

	case contracts.MsgSubscribeOrder:
		var sub contracts.SubscribeOrder
		if err := json.Unmarshal(frame.Data, &sub); err != nil {
			return
		}
		if id := strings.TrimSpace(sub.OrderID); id != "" {
			h.join(s, "order:"+id)
		}

	case contracts.MsgDriverLocationUpdate:
		var loc contracts.DriverLocation
		if err := json.Unmarshal(frame.Data, &loc); err != nil {
			return
		}
		if s.role == jwt.RoleDriver {
			loc.DriverID = s.subject // the token decides whose location this is
		}

		pt := geo.Point{Latitude: loc.Latitude, Longitude: loc.Longitude}
		if err := pt.Validate(); err != nil {
			return
		}
		if err := h.store.SaveLocation(ctx, loc.DriverID, pt); err != nil {
			h.log.Warn(ctx, "ws_location_save_failed", "could not store realtime sample",
				map[string]string{"error": err.Error()})
		}

		ack := contracts.LocationAck{
			DriverID:   loc.DriverID,
			ReceivedAt: time.Now().UTC(),
			Envelope:   contracts.SentNow("dispatchd", loc.CorrelationID),
		}
		if frame, err := contracts.NewFrame(contracts.EventDriverLocation, ack); err == nil {
			s.enqueue(frame)
		}

		// live map consumers follow the order room
		if loc.OrderID != "" {
			h.EmitToOrder(loc.OrderID, contracts.EventDriverLocation, loc)
		}
	}
}
