// Package signaling implements the websocket signaling surface for
// peer-to-peer meeting sessions: room membership events, point-to-point
// negotiation relay, and the per-recipient speech-translation fan-out.
//
// The wire protocol is intentionally small; media never passes through this
// package, only negotiation metadata and transcribed text.
package signaling
