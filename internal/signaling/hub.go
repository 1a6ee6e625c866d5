package signaling

import (
	"log/slog"
	"sync"
)

// outboundQueueSize bounds the per-connection send queue. A client that
// cannot drain its queue loses messages rather than stalling the relay.
const outboundQueueSize = 64

// Transport is the delivery surface the relay emits through: one addressable
// queue per live connection plus room-scoped multicast. The production
// implementation is Hub; tests substitute a recording fake.
type Transport interface {
	// SendTo enqueues msg for a single connection. Unknown connection ids
	// and full queues drop the message.
	SendTo(connID string, msg any)
	// Broadcast enqueues msg for every connection subscribed to the room.
	Broadcast(roomID string, msg any)
	// BroadcastExcept is Broadcast minus one connection (typically the event's
	// originator).
	BroadcastExcept(roomID, exceptConnID string, msg any)
	// Subscribe adds the connection to the room's broadcast group.
	Subscribe(roomID, connID string)
	// Unsubscribe removes the connection from the room's broadcast group.
	Unsubscribe(roomID, connID string)
}

// Hub tracks live connections and their room subscriptions. Each registered
// connection owns a buffered outbound queue drained by its write pump.
type Hub struct {
	log *slog.Logger

	mu    sync.Mutex
	conns map[string]chan any
	rooms map[string]map[string]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:   log,
		conns: make(map[string]chan any),
		rooms: make(map[string]map[string]struct{}),
	}
}

// Register creates the outbound queue for a new connection. The returned
// channel is closed by Remove.
func (h *Hub) Register(connID string) <-chan any {
	ch := make(chan any, outboundQueueSize)

	h.mu.Lock()
	h.conns[connID] = ch
	h.mu.Unlock()
	return ch
}

// Remove drops the connection from the hub and every room it was subscribed
// to, then closes its outbound queue so the write pump exits.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.conns[connID]
	if !ok {
		return
	}
	delete(h.conns, connID)
	for roomID, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	close(ch)
}

func (h *Hub) Subscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[roomID] = members
	}
	members[connID] = struct{}{}
}

func (h *Hub) Unsubscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) SendTo(connID string, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendLocked(connID, msg)
}

func (h *Hub) Broadcast(roomID string, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID := range h.rooms[roomID] {
		h.sendLocked(connID, msg)
	}
}

func (h *Hub) BroadcastExcept(roomID, exceptConnID string, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID := range h.rooms[roomID] {
		if connID == exceptConnID {
			continue
		}
		h.sendLocked(connID, msg)
	}
}

func (h *Hub) sendLocked(connID string, msg any) {
	ch, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		h.log.Warn("dropping message for slow connection", "conn_id", connID)
	}
}
