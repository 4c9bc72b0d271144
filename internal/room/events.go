package room

import (
	"encoding/json"
	"time"

	"pokerroom/holdem"
)

// EventType enumerates the operations a Room actor accepts from the
// session multiplexer, per spec.md §4.4.
type EventType int

const (
	EventSpectate EventType = iota
	EventJoin
	EventLeave
	EventStartGame
	EventAction
	EventSitOut
	EventChat
	EventRunTwiceChoice
	EventSignal
	EventConnLost
	EventTick
	EventClose
)

// Event is a single inbound request to the room actor. Response, when
// non-nil, receives exactly one error (nil on success) before the
// caller's SubmitEvent returns.
type Event struct {
	Type EventType

	ConnID uint64
	Name   string

	Seat   uint16
	Amount int64

	Action holdem.ActionType

	Text string

	RunTwice bool

	// Target, SignalKind, and SignalData carry a pass-through WebRTC
	// signaling envelope (spec.md §6: "forwards to the named target's
	// live connection without inspection"). SignalData is the sender's
	// original `data` payload, relayed unparsed.
	Target     string
	SignalKind string
	SignalData json.RawMessage

	Timestamp time.Time

	Response chan error
}
