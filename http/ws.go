package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"droughtdash/dashboard"
	"droughtdash/store"
)

// MessageType tags websocket frames.
type MessageType string

const (
	MessagePanel    MessageType = "panel"
	MessageSnapshot MessageType = "snapshot"
	MessagePong     MessageType = "pong"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

// ClientMessage is what the browser sends: a command or a ping.
type ClientMessage struct {
	Type    string             `json:"type"`
	ID      string             `json:"id,omitempty"`
	Command *dashboard.Command `json:"command,omitempty"`
}

// Message is what the server sends.
type Message struct {
	Type      MessageType `json:"type"`
	ID        string      `json:"id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// SnapshotNotice announces a dataset reload to open sessions.
type SnapshotNotice struct {
	Generation uint64    `json:"generation"`
	Rows       int       `json:"rows"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// session is one connected dashboard tab.
type session struct {
	hub  *Hub
	id   string
	conn *websocket.Conn
	send chan Message

	mu     sync.Mutex
	closed bool
}

// Hub owns the dashboard websocket sessions. Each session issues commands
// to the dispatcher and receives panels plus reload notices.
type Hub struct {
	dispatcher *dashboard.Dispatcher
	logger     *zap.Logger
	upgrader   websocket.Upgrader

	// opened and closed, when set, are told about session lifetimes.
	opened func()
	closed func()

	mu       sync.Mutex
	sessions map[*session]struct{}
	shutdown bool
	wg       sync.WaitGroup
}

// NewHub creates a hub. An empty allowedOrigins or one containing "*"
// accepts any origin; otherwise the Origin header must be listed or match
// the request host.
func NewHub(d *dashboard.Dispatcher, logger *zap.Logger, allowedOrigins []string) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		dispatcher: d,
		logger:     logger,
		sessions:   make(map[*session]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r, allowedOrigins)
		},
	}
	return h
}

// ObserveSessions registers session lifetime callbacks. Call before serving.
func (h *Hub) ObserveSessions(opened, closed func()) {
	h.opened = opened
	h.closed = closed
}

// Len reports the number of open sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// ServeHTTP upgrades the connection and runs the session pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	s := &session{
		hub:  h,
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Message, sendBuffer),
	}

	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.sessions[s] = struct{}{}
	if h.opened != nil {
		h.opened()
	}
	h.wg.Add(2)
	h.mu.Unlock()

	h.logger.Info("websocket session opened",
		zap.String("session", s.id),
		zap.String("request_id", GetRequestID(r.Context())))

	go s.writePump()
	go s.readPump()
}

// Broadcast queues msg on every session. Sessions whose buffer is full are
// dropped.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		if !s.enqueue(msg) {
			h.logger.Warn("websocket session too slow, dropping", zap.String("session", s.id))
			s.close()
		}
	}
}

// NotifyReload broadcasts a snapshot notice after a successful reload. It
// matches the store's reload callback.
func (h *Hub) NotifyReload(snap *store.Snapshot, err error) {
	if err != nil || snap == nil {
		return
	}
	h.Broadcast(Message{
		Type:      MessageSnapshot,
		Timestamp: time.Now(),
		Data: SnapshotNotice{
			Generation: snap.Generation,
			Rows:       snap.Table.Len(),
			LoadedAt:   snap.LoadedAt,
		},
	})
}

// Close ends every session and waits for their pumps to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.shutdown = true
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
		s.conn.Close()
	}
	h.wg.Wait()
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	delete(h.sessions, s)
	if ok && h.closed != nil {
		h.closed()
	}
	h.mu.Unlock()
	if ok {
		h.logger.Info("websocket session closed", zap.String("session", s.id))
	}
}

func (s *session) enqueue(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

func (s *session) readPump() {
	defer func() {
		s.hub.remove(s)
		s.close()
		s.conn.Close()
		s.hub.wg.Done()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if _, ok := err.(*json.SyntaxError); ok {
				s.hub.logger.Debug("malformed websocket message", zap.String("session", s.id), zap.Error(err))
				continue
			}
			if _, ok := err.(*json.UnmarshalTypeError); ok {
				// The decoder keeps the fields it could read, so the reply
				// still carries the frame id.
				s.hub.logger.Debug("malformed websocket command", zap.String("session", s.id), zap.Error(err))
				if !s.rejectMalformed(msg, err) {
					return
				}
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Warn("websocket read failed", zap.String("session", s.id), zap.Error(err))
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		if !s.handle(msg) {
			return
		}
	}
}

// handle answers one client message. It returns false when the session
// should end.
func (s *session) handle(msg ClientMessage) bool {
	var reply Message
	switch msg.Type {
	case "ping":
		reply = Message{Type: MessagePong, ID: msg.ID, Timestamp: time.Now()}
	case "command":
		cmd := dashboard.Command{}
		if msg.Command != nil {
			cmd = *msg.Command
		}
		reply = Message{Type: MessagePanel, ID: msg.ID, Timestamp: time.Now(), Data: s.dispatch(cmd)}
	default:
		s.hub.logger.Debug("unknown websocket message type", zap.String("session", s.id), zap.String("type", msg.Type))
		return true
	}
	if !s.enqueue(reply) {
		s.hub.logger.Warn("websocket session too slow, dropping", zap.String("session", s.id))
		return false
	}
	return true
}

// dispatch runs cmd. A panic is logged and answered with an error panel;
// the session keeps reading.
func (s *session) dispatch(cmd dashboard.Command) (panel dashboard.Panel) {
	defer func() {
		if rec := recover(); rec != nil {
			s.hub.logger.Error("panic recovered",
				zap.String("session", s.id),
				zap.String("page", string(cmd.Page)),
				zap.String("action", string(cmd.Action)),
				zap.Any("panic", rec),
				zap.Stack("stack"))
			panel = s.hub.dispatcher.Failed(cmd, fmt.Errorf("panic: %v", rec))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	return s.hub.dispatcher.Dispatch(ctx, cmd)
}

// rejectMalformed answers a command frame whose fields did not decode.
func (s *session) rejectMalformed(msg ClientMessage, err error) bool {
	cmd := dashboard.Command{}
	if msg.Command != nil {
		cmd = *msg.Command
	}
	panel := s.hub.dispatcher.Failed(cmd, fmt.Errorf("%w: %v", dashboard.ErrMalformedCommand, err))
	if !s.enqueue(Message{Type: MessagePanel, ID: msg.ID, Timestamp: time.Now(), Data: panel}) {
		s.hub.logger.Warn("websocket session too slow, dropping", zap.String("session", s.id))
		return false
	}
	return true
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		s.hub.wg.Done()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				s.hub.logger.Debug("websocket write failed", zap.String("session", s.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func checkOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(allowed) == 0 || containsOrigin(allowed, "*") {
		return true
	}
	if containsOrigin(allowed, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}
