package signaling

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestParseClientMessage_Validation(t *testing.T) {
	tests := []struct {
		name string
		data string
		ok   bool
	}{
		{"join", `{"type":"join","roomId":"r1","userId":"u1","displayName":"D","language":"en"}`, true},
		{"join missing room", `{"type":"join","userId":"u1"}`, false},
		{"join missing user", `{"type":"join","roomId":"r1"}`, false},
		{"leave bare", `{"type":"leave"}`, true},
		{"leave with room", `{"type":"leave","roomId":"r1"}`, true},
		{"offer", `{"type":"offer","roomId":"r1","to":"u2","sdp":{"type":"offer","sdp":"v=0"}}`, true},
		{"offer missing to", `{"type":"offer","roomId":"r1","sdp":{"type":"offer","sdp":"v=0"}}`, false},
		{"offer missing sdp", `{"type":"offer","roomId":"r1","to":"u2"}`, false},
		{"offer empty sdp body", `{"type":"offer","roomId":"r1","to":"u2","sdp":{"type":"offer","sdp":""}}`, false},
		{"offer with answer sdp", `{"type":"offer","roomId":"r1","to":"u2","sdp":{"type":"answer","sdp":"v=0"}}`, false},
		{"offer with unknown sdp type", `{"type":"offer","roomId":"r1","to":"u2","sdp":{"type":"teleport","sdp":"v=0"}}`, false},
		{"answer", `{"type":"answer","roomId":"r1","to":"u2","sdp":{"type":"answer","sdp":"v=0"}}`, true},
		{"answer with rollback sdp", `{"type":"answer","roomId":"r1","to":"u2","sdp":{"type":"rollback","sdp":"v=0"}}`, false},
		{"ice", `{"type":"ice","roomId":"r1","to":"u2","candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMid":"0"}}`, true},
		{"ice missing candidate", `{"type":"ice","roomId":"r1","to":"u2"}`, false},
		{"ice empty candidate", `{"type":"ice","roomId":"r1","to":"u2","candidate":{"candidate":""}}`, false},
		{"utterance", `{"type":"utterance","roomId":"r1","userId":"u1","text":"hi"}`, true},
		{"utterance empty text ok", `{"type":"utterance","roomId":"r1","userId":"u1","text":""}`, true},
		{"utterance missing user", `{"type":"utterance","roomId":"r1","text":"hi"}`, false},
		{"change-language", `{"type":"change-language","roomId":"r1","userId":"u1","language":"th"}`, true},
		{"change-language missing language", `{"type":"change-language","roomId":"r1","userId":"u1"}`, false},
		{"check-room", `{"type":"check-room","roomId":"r1","ackId":"a1"}`, true},
		{"check-room missing ackId", `{"type":"check-room","roomId":"r1"}`, false},
		{"unknown type", `{"type":"teleport","roomId":"r1"}`, false},
		{"missing type", `{"roomId":"r1"}`, false},
		{"not json", `not json`, false},
		{"unknown fields ignored", `{"type":"join","roomId":"r1","userId":"u1","clientVersion":"2.1"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseClientMessage([]byte(tt.data))
			if (err == nil) != tt.ok {
				t.Fatalf("parseClientMessage(%s) err=%v, want ok=%v", tt.data, err, tt.ok)
			}
		})
	}
}

func TestParseClientMessage_DecodesNegotiationPayloads(t *testing.T) {
	offer, err := parseClientMessage([]byte(
		`{"type":"offer","roomId":"r1","to":"u2","sdp":{"type":"offer","sdp":"v=0"}}`))
	if err != nil {
		t.Fatalf("parse offer: %v", err)
	}
	if offer.SDP.Type != webrtc.SDPTypeOffer || offer.SDP.SDP != "v=0" {
		t.Fatalf("sdp=%+v, want offer/v=0", offer.SDP)
	}

	ice, err := parseClientMessage([]byte(
		`{"type":"ice","roomId":"r1","to":"u2","candidate":` +
			`{"candidate":"candidate:1 1 udp 2122260223 10.0.0.1 5000 typ host",` +
			`"sdpMid":"0","sdpMLineIndex":1,"usernameFragment":"abcd"}}`))
	if err != nil {
		t.Fatalf("parse ice: %v", err)
	}
	c := ice.Candidate
	if c.Candidate != "candidate:1 1 udp 2122260223 10.0.0.1 5000 typ host" {
		t.Fatalf("candidate=%q", c.Candidate)
	}
	if c.SDPMid == nil || *c.SDPMid != "0" {
		t.Fatalf("sdpMid=%v, want 0", c.SDPMid)
	}
	if c.SDPMLineIndex == nil || *c.SDPMLineIndex != 1 {
		t.Fatalf("sdpMLineIndex=%v, want 1", c.SDPMLineIndex)
	}
	if c.UsernameFragment == nil || *c.UsernameFragment != "abcd" {
		t.Fatalf("usernameFragment=%v, want abcd", c.UsernameFragment)
	}
}

// The session description marshals through its own type, so the forwarded
// frame carries the canonical type tag and sdp body.
func TestForwardedSignal_MarshalsCanonicalSDP(t *testing.T) {
	out, err := json.Marshal(forwardedSignal{
		Type: messageTypeAnswer,
		From: "u1",
		SDP:  &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Type string `json:"type"`
		From string `json:"from"`
		SDP  struct {
			Type string `json:"type"`
			SDP  string `json:"sdp"`
		} `json:"sdp"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "answer" || decoded.From != "u1" {
		t.Fatalf("envelope=%+v", decoded)
	}
	if decoded.SDP.Type != "answer" || decoded.SDP.SDP != "v=0" {
		t.Fatalf("sdp=%+v, want answer/v=0", decoded.SDP)
	}
}
