package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

type messageType string

// Client -> server events.
const (
	messageTypeJoin           messageType = "join"
	messageTypeLeave          messageType = "leave"
	messageTypeOffer          messageType = "offer"
	messageTypeAnswer         messageType = "answer"
	messageTypeICE            messageType = "ice"
	messageTypeUtterance      messageType = "utterance"
	messageTypeChangeLanguage messageType = "change-language"
	messageTypeCheckRoom      messageType = "check-room"
)

// Server -> client events.
const (
	messageTypeJoined              messageType = "joined"
	messageTypeUserJoined          messageType = "user-joined"
	messageTypeUserLeft            messageType = "user-left"
	messageTypeRoster              messageType = "roster"
	messageTypeTranslatedUtterance messageType = "translated-utterance"
	messageTypeAck                 messageType = "ack"
)

// clientMessage is the envelope for every client -> server event. Fields are
// a union across event types; validate() enforces per-type requirements.
//
// Negotiation payloads decode straight into the WebRTC session types, so an
// sdp with an unrecognized type tag already fails at the JSON layer and a
// forwarded candidate carries exactly the canonical candidate fields.
type clientMessage struct {
	Type messageType `json:"type"`

	RoomID string `json:"roomId,omitempty"`
	UserID string `json:"userId,omitempty"`

	// join fields.
	DisplayName string `json:"displayName,omitempty"`
	Language    string `json:"language,omitempty"`
	RoomType    string `json:"roomType,omitempty"`

	// Negotiation fields.
	To        string                     `json:"to,omitempty"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`

	// Utterance fields.
	Text   string `json:"text,omitempty"`
	From   string `json:"from,omitempty"`
	Target string `json:"target,omitempty"`

	// AckID, when present, requests an ack reply on the same connection.
	AckID string `json:"ackId,omitempty"`
}

// parseClientMessage decodes and validates one inbound frame. Clients may
// send fields this server does not know about; unknown fields are ignored
// rather than rejected, since a malformed or unsupported event is simply
// treated as not-sent.
func parseClientMessage(data []byte) (clientMessage, error) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return clientMessage{}, err
	}
	if err := msg.validate(); err != nil {
		return clientMessage{}, err
	}
	return msg, nil
}

func (m clientMessage) validate() error {
	switch m.Type {
	case messageTypeJoin:
		if m.RoomID == "" || m.UserID == "" {
			return fmt.Errorf("join message missing roomId/userId")
		}
	case messageTypeLeave:
		// roomId is optional; the session's room is the default.
	case messageTypeOffer, messageTypeAnswer:
		if m.RoomID == "" || m.To == "" {
			return fmt.Errorf("%s message missing roomId/to", m.Type)
		}
		if m.SDP == nil {
			return fmt.Errorf("%s message missing sdp", m.Type)
		}
		want := webrtc.SDPTypeOffer
		if m.Type == messageTypeAnswer {
			want = webrtc.SDPTypeAnswer
		}
		if m.SDP.Type != want {
			return fmt.Errorf("%s message has sdp.type=%q", m.Type, m.SDP.Type)
		}
		if m.SDP.SDP == "" {
			return fmt.Errorf("%s message has empty sdp", m.Type)
		}
	case messageTypeICE:
		if m.RoomID == "" || m.To == "" {
			return fmt.Errorf("ice message missing roomId/to")
		}
		if m.Candidate == nil || m.Candidate.Candidate == "" {
			return fmt.Errorf("ice message missing candidate")
		}
	case messageTypeUtterance:
		if m.RoomID == "" || m.UserID == "" {
			return fmt.Errorf("utterance message missing roomId/userId")
		}
	case messageTypeChangeLanguage:
		if m.RoomID == "" || m.UserID == "" || m.Language == "" {
			return fmt.Errorf("change-language message missing roomId/userId/language")
		}
	case messageTypeCheckRoom:
		if m.RoomID == "" || m.AckID == "" {
			return fmt.Errorf("check-room message missing roomId/ackId")
		}
	default:
		return fmt.Errorf("unsupported message type %q", m.Type)
	}
	return nil
}

type otherParticipant struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	Language    string `json:"language,omitempty"`
}

type joinedMessage struct {
	Type     messageType        `json:"type"`
	Others   []otherParticipant `json:"others"`
	RoomType string             `json:"roomType,omitempty"`
}

type userJoinedMessage struct {
	Type        messageType `json:"type"`
	UserID      string      `json:"userId"`
	DisplayName string      `json:"displayName,omitempty"`
}

type userLeftMessage struct {
	Type   messageType `json:"type"`
	UserID string      `json:"userId"`
}

type rosterMessage struct {
	Type         messageType `json:"type"`
	Participants []string    `json:"participants"`
}

// forwardedSignal is a negotiation payload relayed to its exact target,
// tagged with the sender's identity. The session description marshals
// through its own codec, so the outbound type tag is the canonical form
// regardless of how the sender spelled it.
type forwardedSignal struct {
	Type      messageType                `json:"type"`
	From      string                     `json:"from"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

type translatedUtteranceMessage struct {
	Type messageType `json:"type"`
	Text string      `json:"text"`
	// From and Target are the resolved source and target language tags; when
	// they are equal the text was passed through untranslated.
	From       string `json:"from"`
	Target     string `json:"target"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
}

type ackMessage struct {
	Type       messageType `json:"type"`
	AckID      string      `json:"ackId"`
	OK         bool        `json:"ok"`
	ReceivedAt string      `json:"receivedAt,omitempty"`

	// check-room results.
	Exists       *bool `json:"exists,omitempty"`
	Participants *int  `json:"participants,omitempty"`
}
