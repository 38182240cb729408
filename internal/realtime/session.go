package realtime

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/ws"
)

type SessionState string

const (
	StateDisconnected SessionState = "disconnected"
	StateConnecting   SessionState = "connecting"
	StateConnected    SessionState = "connected"
)

const (
	reconnectBase = 1 * time.Second
	reconnectCap  = 30 * time.Second
	// After this many consecutive failures the session gives up and
	// stays disconnected until Connect is called again.
	reconnectMax = 8
	// A connection that survives this long resets the failure counter,
	// so a later drop starts the backoff schedule from scratch.
	stableAfter = 60 * time.Second

	sessionWriteWait = 10 * time.Second
	maxFrameSize     = 64 * 1024
)

// Session owns the single WebSocket connection behind all live
// updates. It dials lazily, redials on drops with capped exponential
// backoff, and fans received events out to registered handlers in
// receipt order. Reconnect failures are logged, never surfaced.
type Session struct {
	wsURL  string
	userID string
	token  string

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	state     SessionState
	closed    bool
	attempts  int
	handlers  map[int]handlerEntry
	nextID    int
	connected []func()
	stateSubs []func(SessionState)
}

type handlerEntry struct {
	event ws.EventType
	fn    func(json.RawMessage)
}

// NewSession prepares a session against the portal base URL. No
// network traffic happens until Connect.
func NewSession(baseURL, userID, token string) *Session {
	return &Session{
		wsURL:    wsEndpoint(baseURL),
		userID:   userID,
		token:    token,
		state:    StateDisconnected,
		handlers: make(map[int]handlerEntry),
	}
}

func wsEndpoint(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// State reports the current connection state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// On registers a handler for one event type and returns a function
// that removes it. Handlers run on the read loop goroutine, so events
// are delivered in the order the server sent them.
func (s *Session) On(event ws.EventType, fn func(json.RawMessage)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handlerEntry{event: event, fn: fn}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

// OnConnected registers a hook that runs after every successful dial,
// including redials. Room membership is restored from here.
func (s *Session) OnConnected(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = append(s.connected, fn)
}

// OnStateChange registers a hook observing connection state moves.
func (s *Session) OnStateChange(fn func(SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateSubs = append(s.stateSubs, fn)
}

// Connect dials the server. It refuses to dial without both a user id
// and a token; a session with partial credentials must stay offline.
// A dial failure here starts the background retry schedule and is not
// returned to the caller.
func (s *Session) Connect() error {
	if s.userID == "" || s.token == "" {
		return ErrMissingCredentials
	}
	s.mu.Lock()
	if s.state != StateDisconnected || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = false
	s.attempts = 0
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	if err := s.dial(); err != nil {
		logger.Errorf("session: initial dial: %v", err)
		go s.reconnect()
	}
	return nil
}

// Close tears the connection down for good. No redial follows.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.setStateLocked(StateDisconnected)
	s.mu.Unlock()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(sessionWriteWait))
		_ = conn.Close()
	}
}

func (s *Session) dial() error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)
	// Token also travels in the query string because browsers cannot
	// set headers on WebSocket upgrades; the server accepts both.
	u := s.wsURL + "?token=" + url.QueryEscape(s.token)

	conn, resp, err := websocket.DefaultDialer.Dial(u, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("session.dial: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.conn = conn
	s.setStateLocked(StateConnected)
	hooks := append([]func(){}, s.connected...)
	s.mu.Unlock()

	// Personal notifications flow for the whole session lifetime, so
	// the subscription is part of connecting, not something callers
	// opt into.
	s.Emit(ws.IncomingMessage{Type: ws.EventJoinNotifications, UserID: s.userID})
	for _, h := range hooks {
		h()
	}

	go s.readLoop(conn)
	return nil
}

func (s *Session) readLoop(conn *websocket.Conn) {
	start := time.Now()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			stillCurrent := s.conn == conn
			if stillCurrent {
				s.conn = nil
				s.setStateLocked(StateDisconnected)
			}
			closed := s.closed
			if stillCurrent && time.Since(start) >= stableAfter {
				s.attempts = 0
			}
			s.mu.Unlock()
			conn.Close()
			if stillCurrent && !closed {
				logger.Errorf("session: read: %v", err)
				go s.reconnect()
			}
			return
		}
		s.dispatch(raw)
	}
}

func (s *Session) dispatch(raw []byte) {
	var env struct {
		Type    ws.EventType    `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Errorf("session: bad frame: %v", err)
		return
	}
	s.mu.Lock()
	var fns []func(json.RawMessage)
	for _, h := range s.handlers {
		if h.event == env.Type {
			fns = append(fns, h.fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(env.Payload)
	}
}

func (s *Session) reconnect() {
	for {
		s.mu.Lock()
		if s.closed || s.state == StateConnected {
			s.mu.Unlock()
			return
		}
		if s.attempts >= reconnectMax {
			s.setStateLocked(StateDisconnected)
			s.mu.Unlock()
			logger.Errorf("session: giving up after %d attempts", reconnectMax)
			return
		}
		s.attempts++
		attempt := s.attempts
		s.setStateLocked(StateConnecting)
		s.mu.Unlock()

		delay := backoff(attempt)
		logger.Infof("session: reconnect attempt %d in %s", attempt, delay)
		time.Sleep(delay)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		if err := s.dial(); err != nil {
			logger.Errorf("session: reconnect attempt %d: %v", attempt, err)
			continue
		}
		return
	}
}

// backoff doubles from the base per attempt, capped, with a little
// jitter so a fleet of clients does not redial in lockstep.
func backoff(attempt int) time.Duration {
	d := reconnectBase << (attempt - 1)
	if d > reconnectCap || d <= 0 {
		d = reconnectCap
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 4))
	return d - jitter
}

// Emit sends one client event. When the socket is down the event is
// dropped silently; membership state is replayed by the connected
// hooks once the session is back.
func (s *Session) Emit(msg ws.IncomingMessage) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		logger.Errorf("session: emit %s: %v", msg.Type, err)
	}
}

func (s *Session) setStateLocked(st SessionState) {
	if s.state == st {
		return
	}
	s.state = st
	subs := append([]func(SessionState){}, s.stateSubs...)
	go func() {
		for _, fn := range subs {
			fn(st)
		}
	}()
}
