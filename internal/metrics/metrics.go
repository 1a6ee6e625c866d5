package metrics

import "sync"

// Event counter names. Drop reasons mirror the relay's failure taxonomy:
// malformed events are dropped silently, unreachable negotiation targets are
// dropped with a warning, self-addressed negotiation is suppressed.
const (
	EventJoin              = "join"
	EventRejoin            = "rejoin"
	EventLeave             = "leave"
	EventDisconnectCleanup = "disconnect_cleanup"
	EventSignalRelayed     = "signal_relayed"
	EventUtterance         = "utterance"
	EventTranslation       = "translation"
	EventTranslationError  = "translation_error"

	DropValidationFailed = "drop_validation_failed"
	DropTargetNotFound   = "drop_target_not_found"
	DropSelfLoop         = "drop_self_loop"
)

// Metrics counts signaling events under a single mutex. PrometheusHandler
// renders the counters in Prometheus' text format; nothing else in the
// process reads them, so there is no need for per-counter atomics.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{m: make(map[string]uint64)}
}

func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		snap[k] = v
	}
	return snap
}
