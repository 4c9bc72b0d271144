package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"pokerroom/holdem"
	"pokerroom/internal/room"
)

// inboundEnvelope mirrors room.Envelope for decoding: Data is kept raw
// until the Type is known, since each type has its own payload shape.
type inboundEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// signalTarget is the one field dispatch reads out of a WebRTC signaling
// payload; the rest is forwarded to the target without inspection.
type signalTarget struct {
	Target string `json:"target"`
}

// decodeFunc turns one connection's raw `data` object into a room.Event.
// It reports false (after sending its own error envelope) on a malformed
// payload, so dispatch can stop without double-reporting.
type decodeFunc func(g *Gateway, c *Connection, typ string, data json.RawMessage) (room.Event, bool)

// dispatchTable is the tagged-variant-over-envelope-types dispatch table
// spec.md §9 "Dynamic dispatch on message type" asks for, keyed by the
// envelope's `type` string — one entry per spec.md §6 client->server
// message.
var dispatchTable = map[string]decodeFunc{
	"spectate":         dispatchSpectate,
	"join":             dispatchJoin,
	"leave":            dispatchLeave,
	"start_game":       dispatchStartGame,
	"action":           dispatchAction,
	"sit_out":          dispatchSitOut,
	"chat":             dispatchChat,
	"run_twice_choice": dispatchRunTwiceChoice,
	"webrtc_offer":     dispatchSignal,
	"webrtc_answer":    dispatchSignal,
	"webrtc_ice":       dispatchSignal,
}

// dispatch decodes one inbound JSON message and turns it into a room.Event,
// submitting it to the room actor. Malformed envelopes and room-rejected
// events are reported back to the sender as an `error` envelope rather than
// dropping the connection.
func (g *Gateway) dispatch(c *Connection, rm *room.Room, raw []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		g.sendError(c, "malformed envelope")
		return
	}

	fn, ok := dispatchTable[env.Type]
	if !ok {
		g.sendError(c, fmt.Sprintf("unknown message type %q", env.Type))
		return
	}

	ev, ok := fn(g, c, env.Type, env.Data)
	if !ok {
		return
	}

	if err := rm.SubmitEvent(ev); err != nil {
		g.sendError(c, err.Error())
	}
}

func dispatchSpectate(g *Gateway, c *Connection, typ string, data json.RawMessage) (room.Event, bool) {
	var d room.SpectateData
	if !g.decode(c, typ, data, &d) {
		return room.Event{}, false
	}
	c.Name = strings.TrimSpace(d.Name)
	return room.Event{Type: room.EventSpectate, ConnID: c.ID, Name: d.Name}, true
}

func dispatchJoin(g *Gateway, c *Connection, typ string, data json.RawMessage) (room.Event, bool) {
	var d room.JoinData
	if !g.decode(c, typ, data, &d) {
		return room.Event{}, false
	}
	c.Name = strings.TrimSpace(d.Name)
	return room.Event{Type: room.EventJoin, ConnID: c.ID, Name: d.Name, Seat: d.Seat, Amount: d.BuyIn}, true
}

func dispatchLeave(g *Gateway, c *Connection, typ string, data json.RawMessage) (room.Event, bool) {
	return room.Event{Type: room.EventLeave, ConnID: c.ID}, true
}

func dispatchStartGame(g *Gateway, c *Connection, typ string, data json.RawMessage) (room.Event, bool) {
	return room.Event{Type: room.EventStartGame, ConnID: c.ID}, true
}

func dispatchAction(g *Gateway, c *Connection, typ string, data json.RawMessage) (room.Event, bool) {
	var d room.ActionData
	if !g.decode(c, typ, data, &d) {
		return room.Event{}, false
	}
	action, err := actionFromWire(d.Action)
	if err != nil {
		g.sendError(c, err.Error())
		return room.Event{}, false
	}
	return room.Event{Type: room.EventAction, ConnID: c.ID, Action: action, Amount: d.Amount}, true
}

func dispatchSitOut(g *Gateway, c *Connection, typ string, data json.RawMessage) (room.Event, bool) {
	return room.Event{Type: room.EventSitOut, ConnID: c.ID}, true
}

func dispatchChat(g *Gateway, c *Connection, typ string, data json.RawMessage) (room.Event, bool) {
	var d room.ChatData
	if !g.decode(c, typ, data, &d) {
		return room.Event{}, false
	}
	return room.Event{Type: room.EventChat, ConnID: c.ID, Text: d.Text}, true
}

func dispatchRunTwiceChoice(g *Gateway, c *Connection, typ string, data json.RawMessage) (room.Event, bool) {
	var d room.RunTwiceChoiceData
	if !g.decode(c, typ, data, &d) {
		return room.Event{}, false
	}
	return room.Event{Type: room.EventRunTwiceChoice, ConnID: c.ID, RunTwice: d.RunTwice}, true
}

func dispatchSignal(g *Gateway, c *Connection, typ string, data json.RawMessage) (room.Event, bool) {
	var d signalTarget
	if !g.decode(c, typ, data, &d) {
		return room.Event{}, false
	}
	if strings.TrimSpace(d.Target) == "" {
		g.sendError(c, "signaling payload requires a target")
		return room.Event{}, false
	}
	return room.Event{
		Type:       room.EventSignal,
		ConnID:     c.ID,
		Name:       c.Name,
		Target:     d.Target,
		SignalKind: typ,
		SignalData: data,
	}, true
}

func (g *Gateway) decode(c *Connection, typ string, data json.RawMessage, v any) bool {
	if len(data) == 0 {
		g.sendError(c, fmt.Sprintf("%s: missing data", typ))
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		g.sendError(c, fmt.Sprintf("%s: malformed data", typ))
		return false
	}
	return true
}

// actionFromWire is the inverse of the room package's (unexported)
// actionWire, translating a client's `action` string back to the
// holdem.ActionType the room engine expects.
func actionFromWire(s string) (holdem.ActionType, error) {
	switch s {
	case "check":
		return holdem.ActionCheck, nil
	case "bet":
		return holdem.ActionBet, nil
	case "call":
		return holdem.ActionCall, nil
	case "raise":
		return holdem.ActionRaise, nil
	case "fold":
		return holdem.ActionFold, nil
	case "all_in":
		return holdem.ActionAllIn, nil
	default:
		return 0, fmt.Errorf("unknown action %q", s)
	}
}
