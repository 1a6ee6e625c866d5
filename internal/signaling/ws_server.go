package signaling

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxmeet/signal-relay/internal/origin"
)

const (
	// Time allowed to write a message or control frame to the peer.
	wsWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	wsPongWait = 60 * time.Second

	// Ping period; must be less than wsPongWait.
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WebSocketConfig wires a WebSocketServer.
type WebSocketConfig struct {
	Logger *slog.Logger
	Relay  *Relay
	Hub    *Hub

	// AllowedOrigins is the normalized cross-origin allowlist enforced on the
	// upgrade handshake. Requests without an Origin header are permitted.
	AllowedOrigins []string

	// MaxMessageBytes caps a single inbound frame.
	MaxMessageBytes int64

	// MaxMessagesPerSecond caps the per-connection inbound event rate.
	MaxMessagesPerSecond int
}

// WebSocketServer upgrades client connections and runs one read loop per
// connection, feeding events to the relay in arrival order. Each connection
// gets a dedicated write pump draining its hub queue.
type WebSocketServer struct {
	log      *slog.Logger
	relay    *Relay
	hub      *Hub
	cfg      WebSocketConfig
	upgrader websocket.Upgrader
}

func NewWebSocketServer(cfg WebSocketConfig) *WebSocketServer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 64 * 1024
	}
	if cfg.MaxMessagesPerSecond <= 0 {
		cfg.MaxMessagesPerSecond = 50
	}
	return &WebSocketServer{
		log:   cfg.Logger,
		relay: cfg.Relay,
		hub:   cfg.Hub,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return origin.Allowed(r.Header.Get("Origin"), cfg.AllowedOrigins)
			},
		},
	}
}

func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	connID := uuid.NewString()
	s.log.Debug("connected", "conn_id", connID, "remote_addr", conn.RemoteAddr().String())

	out := s.hub.Register(connID)
	go writePump(conn, out)

	sess := &session{}
	defer func() {
		s.hub.Remove(connID)
		s.relay.handleDisconnect(connID)
	}()

	conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	limiter := newRateLimiter(s.cfg.MaxMessagesPerSecond)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Debug("read error", "conn_id", connID, "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			writeClose(conn, websocket.CloseUnsupportedData, "expected text message")
			return
		}
		if !limiter.Allow(time.Now()) {
			writeClose(conn, websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		s.relay.dispatch(r.Context(), sess, connID, data)
	}
}

// writePump serializes all writes to one connection: hub messages and
// keepalive pings. It exits when the hub closes the connection's queue.
func writePump(conn *websocket.Conn, out <-chan any) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}

// rateLimiter is a simple token bucket sized to the per-connection message
// rate: capacity and refill are both messagesPerSecond.
type rateLimiter struct {
	rate     float64
	capacity float64
	tokens   float64
	last     time.Time
}

func newRateLimiter(messagesPerSecond int) *rateLimiter {
	rate := float64(messagesPerSecond)
	return &rateLimiter{
		rate:     rate,
		capacity: rate,
		tokens:   rate,
		last:     time.Now(),
	}
}

func (rl *rateLimiter) Allow(now time.Time) bool {
	elapsed := now.Sub(rl.last).Seconds()
	rl.tokens += elapsed * rl.rate
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.last = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
