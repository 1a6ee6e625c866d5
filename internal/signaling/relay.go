package signaling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxmeet/signal-relay/internal/metrics"
	"github.com/voxmeet/signal-relay/internal/registry"
	"github.com/voxmeet/signal-relay/internal/translate"
)

// DefaultTargetLanguage is used for a recipient with no stored language when
// the utterance carries no target hint either.
const DefaultTargetLanguage = "en"

// session is the per-connection state: the (room, user) identity this
// connection currently claims. It lives and dies with the connection and is
// never stored in the registry.
type session struct {
	roomID string
	userID string
}

// Config wires a Relay. Zero fields get safe defaults.
type Config struct {
	Logger     *slog.Logger
	Registry   *registry.Registry
	Transport  Transport
	Translator translate.Translator
	Metrics    *metrics.Metrics

	// DefaultTargetLanguage overrides DefaultTargetLanguage for utterance
	// fan-out.
	DefaultTargetLanguage string
}

// Relay processes inbound signaling events: it mutates the registry on
// membership changes and forwards negotiation and utterance payloads to
// their exact targets through the transport.
//
// Handlers never return errors to the caller; every failure is resolved
// locally (logged, counted, dropped) so one event can never poison the
// registry or another connection's processing.
type Relay struct {
	log           *slog.Logger
	reg           *registry.Registry
	transport     Transport
	translator    translate.Translator
	metrics       *metrics.Metrics
	defaultTarget string

	now func() time.Time
}

func NewRelay(cfg Config) *Relay {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = registry.New()
	}
	if cfg.Translator == nil {
		cfg.Translator = translate.Noop{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.DefaultTargetLanguage == "" {
		cfg.DefaultTargetLanguage = DefaultTargetLanguage
	}
	return &Relay{
		log:           cfg.Logger,
		reg:           cfg.Registry,
		transport:     cfg.Transport,
		translator:    cfg.Translator,
		metrics:       cfg.Metrics,
		defaultTarget: cfg.DefaultTargetLanguage,
		now:           time.Now,
	}
}

// Registry exposes the relay's registry for read-only probes (health
// tooling, tests).
func (r *Relay) Registry() *registry.Registry { return r.reg }

// Metrics exposes the relay's counters for the /metrics endpoint.
func (r *Relay) Metrics() *metrics.Metrics { return r.metrics }

// dispatch parses one inbound frame and routes it. Malformed frames are
// dropped: the protocol treats them as never sent.
func (r *Relay) dispatch(ctx context.Context, sess *session, connID string, data []byte) {
	msg, err := parseClientMessage(data)
	if err != nil {
		r.metrics.Inc(metrics.DropValidationFailed)
		r.log.Debug("dropping malformed message", "conn_id", connID, "err", err)
		return
	}

	switch msg.Type {
	case messageTypeJoin:
		r.handleJoin(sess, connID, msg)
	case messageTypeLeave:
		r.handleLeave(sess, connID, msg)
	case messageTypeOffer, messageTypeAnswer, messageTypeICE:
		r.handleSignal(sess, connID, msg)
	case messageTypeUtterance:
		r.handleUtterance(ctx, connID, msg)
	case messageTypeChangeLanguage:
		r.handleChangeLanguage(connID, msg)
	case messageTypeCheckRoom:
		r.handleCheckRoom(connID, msg)
	}
}

func (r *Relay) handleJoin(sess *session, connID string, msg clientMessage) {
	res := r.reg.Join(msg.RoomID, msg.UserID, connID, msg.DisplayName, msg.Language, msg.RoomType)

	sess.roomID = msg.RoomID
	sess.userID = msg.UserID
	r.transport.Subscribe(msg.RoomID, connID)

	others := r.reg.Others(msg.RoomID, msg.UserID)
	outOthers := make([]otherParticipant, 0, len(others))
	for _, p := range others {
		outOthers = append(outOthers, otherParticipant{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Language:    p.Language,
		})
	}
	r.transport.SendTo(connID, joinedMessage{
		Type:     messageTypeJoined,
		Others:   outOthers,
		RoomType: res.RoomType,
	})

	if res.PrevConnID == "" {
		// First join: announce the arrival. A rejoin replacing a stale
		// connection stays quiet to avoid duplicate user-joined noise.
		r.transport.BroadcastExcept(msg.RoomID, connID, userJoinedMessage{
			Type:        messageTypeUserJoined,
			UserID:      msg.UserID,
			DisplayName: msg.DisplayName,
		})
		r.metrics.Inc(metrics.EventJoin)
		r.log.Info("join", "room", msg.RoomID, "user", msg.UserID, "conn_id", connID, "others", len(others))
	} else {
		r.metrics.Inc(metrics.EventRejoin)
		r.log.Info("rejoin", "room", msg.RoomID, "user", msg.UserID, "conn_id", connID)
	}

	r.broadcastRoster(msg.RoomID)
}

func (r *Relay) handleLeave(sess *session, connID string, msg clientMessage) {
	roomID := msg.RoomID
	if roomID == "" {
		roomID = sess.roomID
	}
	if roomID == "" || sess.userID == "" {
		r.metrics.Inc(metrics.DropValidationFailed)
		return
	}

	userID := sess.userID
	r.reg.Leave(roomID, userID)
	r.transport.Unsubscribe(roomID, connID)
	r.transport.Broadcast(roomID, userLeftMessage{Type: messageTypeUserLeft, UserID: userID})
	r.broadcastRoster(roomID)

	r.metrics.Inc(metrics.EventLeave)
	r.log.Info("leave", "room", roomID, "user", userID)

	sess.roomID = ""
	sess.userID = ""
}

func (r *Relay) handleSignal(sess *session, connID string, msg clientMessage) {
	target, ok := r.reg.ConnID(msg.RoomID, msg.To)
	if !ok {
		r.metrics.Inc(metrics.DropTargetNotFound)
		r.log.Warn("negotiation target not found", "kind", string(msg.Type), "room", msg.RoomID, "to", msg.To)
		return
	}
	if target == connID {
		// A payload addressed to the sender's own connection is a client bug;
		// forwarding it would negotiate a peer with itself.
		r.metrics.Inc(metrics.DropSelfLoop)
		return
	}

	r.transport.SendTo(target, forwardedSignal{
		Type:      msg.Type,
		From:      sess.userID,
		SDP:       msg.SDP,
		Candidate: msg.Candidate,
	})
	r.metrics.Inc(metrics.EventSignalRelayed)
}

func (r *Relay) handleUtterance(ctx context.Context, connID string, msg clientMessage) {
	r.metrics.Inc(metrics.EventUtterance)

	src := translate.SourceAuto
	if p, ok := r.reg.User(msg.RoomID, msg.UserID); ok && p.Language != "" && p.Language != registry.LanguageAuto {
		src = p.Language
	} else if msg.From != "" {
		src = msg.From
	}

	if msg.Text != "" {
		others := r.reg.Others(msg.RoomID, msg.UserID)

		// Each recipient is processed independently: a failed translation for
		// one must not block or cancel delivery to the rest.
		var wg sync.WaitGroup
		for _, p := range others {
			wg.Add(1)
			go func(p registry.Participant) {
				defer wg.Done()
				r.deliverUtterance(ctx, msg, p, src)
			}(p)
		}
		wg.Wait()
	}

	// The ack means "delivery was attempted for everyone", not "translation
	// succeeded for everyone".
	r.ack(connID, msg.AckID)
}

func (r *Relay) deliverUtterance(ctx context.Context, msg clientMessage, p registry.Participant, src string) {
	target := p.Language
	if target == "" || target == registry.LanguageAuto {
		target = msg.Target
	}
	if target == "" {
		target = r.defaultTarget
	}

	text := msg.Text
	outSrc := src
	if target != src {
		res, err := r.translator.Translate(ctx, msg.Text, target, src)
		if err != nil {
			// Deliver the original text rather than dropping the recipient;
			// matching from/target tags tell the client it is untranslated.
			r.metrics.Inc(metrics.EventTranslationError)
			r.log.Warn("translation failed, delivering original text",
				"room", msg.RoomID, "from", msg.UserID, "to", p.UserID,
				"target", target, "err", err)
		} else {
			text = res.Text
			if res.DetectedSource != "" {
				outSrc = res.DetectedSource
			}
			r.metrics.Inc(metrics.EventTranslation)
		}
	}

	r.transport.SendTo(p.ConnID, translatedUtteranceMessage{
		Type:       messageTypeTranslatedUtterance,
		Text:       text,
		From:       outSrc,
		Target:     target,
		FromUserID: msg.UserID,
		ToUserID:   p.UserID,
	})
}

func (r *Relay) handleChangeLanguage(connID string, msg clientMessage) {
	if !r.reg.UpdateLanguage(msg.RoomID, msg.UserID, msg.Language) {
		r.log.Debug("change-language for unknown participant", "room", msg.RoomID, "user", msg.UserID)
	}
	r.ack(connID, msg.AckID)
}

func (r *Relay) handleCheckRoom(connID string, msg clientMessage) {
	exists, count := r.reg.Check(msg.RoomID)
	r.transport.SendTo(connID, ackMessage{
		Type:         messageTypeAck,
		AckID:        msg.AckID,
		OK:           true,
		Exists:       &exists,
		Participants: &count,
	})
}

// handleDisconnect is the cleanup path for a transport-originated
// disconnect: the caller does not know which room/user the dead connection
// belonged to, so the registry resolves it by connection id.
func (r *Relay) handleDisconnect(connID string) {
	roomID, userID, ok := r.reg.RemoveByConn(connID)
	if !ok {
		r.log.Debug("disconnect", "conn_id", connID)
		return
	}

	r.metrics.Inc(metrics.EventDisconnectCleanup)
	r.log.Info("disconnect cleanup", "conn_id", connID, "room", roomID, "user", userID)

	r.transport.Broadcast(roomID, userLeftMessage{Type: messageTypeUserLeft, UserID: userID})
	r.broadcastRoster(roomID)
}

// broadcastRoster rebroadcasts the full participant list so every client can
// reconcile its local view; it tolerates any single dropped incremental
// join/leave event. Nothing is sent for rooms that no longer exist.
func (r *Relay) broadcastRoster(roomID string) {
	ids, ok := r.reg.Roster(roomID)
	if !ok {
		return
	}
	r.transport.Broadcast(roomID, rosterMessage{Type: messageTypeRoster, Participants: ids})
}

func (r *Relay) ack(connID, ackID string) {
	if ackID == "" {
		return
	}
	r.transport.SendTo(connID, ackMessage{
		Type:       messageTypeAck,
		AckID:      ackID,
		OK:         true,
		ReceivedAt: r.now().UTC().Format(time.RFC3339),
	})
}
