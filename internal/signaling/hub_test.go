package signaling

import (
	"log/slog"
	"testing"
)

func TestHub_BroadcastReachesSubscribersOnly(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	chA := h.Register("a")
	chB := h.Register("b")
	chC := h.Register("c")
	h.Subscribe("r1", "a")
	h.Subscribe("r1", "b")
	h.Subscribe("r2", "c")

	h.Broadcast("r1", "hello")

	if got := <-chA; got != "hello" {
		t.Fatalf("a got %v", got)
	}
	if got := <-chB; got != "hello" {
		t.Fatalf("b got %v", got)
	}
	select {
	case got := <-chC:
		t.Fatalf("c got %v, want nothing", got)
	default:
	}
}

func TestHub_BroadcastExceptSkipsOriginator(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	chA := h.Register("a")
	chB := h.Register("b")
	h.Subscribe("r1", "a")
	h.Subscribe("r1", "b")

	h.BroadcastExcept("r1", "a", "hi")

	select {
	case got := <-chA:
		t.Fatalf("a got %v, want nothing", got)
	default:
	}
	if got := <-chB; got != "hi" {
		t.Fatalf("b got %v", got)
	}
}

func TestHub_RemoveClosesQueueAndDropsSubscriptions(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	ch := h.Register("a")
	h.Subscribe("r1", "a")
	h.Remove("a")

	if _, ok := <-ch; ok {
		t.Fatalf("queue not closed after Remove")
	}

	// Sends to a removed connection are silent no-ops.
	h.SendTo("a", "late")
	h.Broadcast("r1", "late")
}

func TestHub_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	ch := h.Register("a")
	for i := 0; i < outboundQueueSize; i++ {
		h.SendTo("a", i)
	}
	// One more than the queue holds; must return, not block.
	h.SendTo("a", "overflow")

	if len(ch) != outboundQueueSize {
		t.Fatalf("queue len=%d, want %d", len(ch), outboundQueueSize)
	}
}

func TestHub_SubscribeUnknownConnIsNoOp(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	h.Subscribe("r1", "ghost")
	h.Broadcast("r1", "msg")
	h.Unsubscribe("r1", "ghost")
}
