package room

import (
	"encoding/json"
	"testing"
	"time"

	"pokerroom/holdem"
)

type fakeBus struct {
	mu   chan struct{}
	msgs map[uint64][]Envelope
}

func newFakeBus() *fakeBus {
	return &fakeBus{msgs: make(map[uint64][]Envelope)}
}

func (b *fakeBus) send(connID uint64, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return
	}
	b.msgs[connID] = append(b.msgs[connID], env)
}

func (b *fakeBus) last(connID uint64, typ string) *Envelope {
	msgs := b.msgs[connID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == typ {
			return &msgs[i]
		}
	}
	return nil
}

func testConfig() Config {
	return Config{
		MaxPlayers: 6,
		SmallBlind: 50,
		BigBlind:   100,
		MinBuyIn:   1000,
		MaxBuyIn:   10000,
	}
}

func TestJoin_AssignsSeatAndBroadcastsGameState(t *testing.T) {
	bus := newFakeBus()
	rm, err := New("room-1", testConfig(), bus.send)
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	defer rm.Stop()

	if err := rm.SubmitEvent(Event{Type: EventJoin, ConnID: 1, Name: "alice", Seat: 0, Amount: 1000}); err != nil {
		t.Fatalf("join err: %v", err)
	}
	if err := rm.SubmitEvent(Event{Type: EventJoin, ConnID: 2, Name: "bob", Seat: 1, Amount: 1000}); err != nil {
		t.Fatalf("join err: %v", err)
	}

	joined := bus.last(1, "joined")
	if joined == nil {
		t.Fatalf("expected a joined envelope for conn 1")
	}

	gs := bus.last(1, "game_state")
	if gs == nil {
		t.Fatalf("expected a game_state envelope for conn 1")
	}
}

func TestJoin_RejectsDuplicateNameAndOccupiedSeat(t *testing.T) {
	bus := newFakeBus()
	rm, err := New("room-2", testConfig(), bus.send)
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	defer rm.Stop()

	if err := rm.SubmitEvent(Event{Type: EventJoin, ConnID: 1, Name: "alice", Seat: 0, Amount: 1000}); err != nil {
		t.Fatalf("join err: %v", err)
	}
	if err := rm.SubmitEvent(Event{Type: EventJoin, ConnID: 2, Name: "alice", Seat: 1, Amount: 1000}); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}
	if err := rm.SubmitEvent(Event{Type: EventJoin, ConnID: 3, Name: "carol", Seat: 0, Amount: 1000}); err == nil {
		t.Fatalf("expected occupied seat to be rejected")
	}
}

func TestJoin_RejectsBuyInOutOfRange(t *testing.T) {
	bus := newFakeBus()
	rm, err := New("room-3", testConfig(), bus.send)
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	defer rm.Stop()

	if err := rm.SubmitEvent(Event{Type: EventJoin, ConnID: 1, Name: "alice", Seat: 0, Amount: 1}); err == nil {
		t.Fatalf("expected out-of-range buy-in to be rejected")
	}
}

func TestStartGame_DealsHandAfterTwoJoins(t *testing.T) {
	bus := newFakeBus()
	rm, err := New("room-4", testConfig(), bus.send)
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	defer rm.Stop()

	if err := rm.SubmitEvent(Event{Type: EventJoin, ConnID: 1, Name: "alice", Seat: 0, Amount: 1000}); err != nil {
		t.Fatalf("join err: %v", err)
	}
	if err := rm.SubmitEvent(Event{Type: EventJoin, ConnID: 2, Name: "bob", Seat: 1, Amount: 1000}); err != nil {
		t.Fatalf("join err: %v", err)
	}

	snap := rm.Snapshot()
	if snap.Round == 0 {
		t.Fatalf("expected auto-start after second join, round still 0")
	}
	if bus.last(1, "hand_started") == nil {
		t.Fatalf("expected hand_started broadcast")
	}
}

func TestAction_RejectsOutOfTurn(t *testing.T) {
	bus := newFakeBus()
	rm, err := New("room-5", testConfig(), bus.send)
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	defer rm.Stop()

	if err := rm.SubmitEvent(Event{Type: EventJoin, ConnID: 1, Name: "alice", Seat: 0, Amount: 1000}); err != nil {
		t.Fatalf("join err: %v", err)
	}
	if err := rm.SubmitEvent(Event{Type: EventJoin, ConnID: 2, Name: "bob", Seat: 1, Amount: 1000}); err != nil {
		t.Fatalf("join err: %v", err)
	}

	snap := rm.Snapshot()
	offTurnConn := uint64(1)
	if snap.ActionSeat == 0 {
		offTurnConn = 2
	}
	if err := rm.SubmitEvent(Event{Type: EventAction, ConnID: offTurnConn, Action: holdem.ActionCheck}); err == nil {
		t.Fatalf("expected out-of-turn action to be rejected")
	}
}

func TestLeave_MidHandIsAccepted(t *testing.T) {
	bus := newFakeBus()
	rm, err := New("room-6", testConfig(), bus.send)
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	defer rm.Stop()

	if err := rm.SubmitEvent(Event{Type: EventJoin, ConnID: 1, Name: "alice", Seat: 0, Amount: 1000}); err != nil {
		t.Fatalf("join err: %v", err)
	}
	if err := rm.SubmitEvent(Event{Type: EventJoin, ConnID: 2, Name: "bob", Seat: 1, Amount: 1000}); err != nil {
		t.Fatalf("join err: %v", err)
	}

	if err := rm.SubmitEvent(Event{Type: EventLeave, ConnID: 2}); err != nil {
		t.Fatalf("leave err: %v", err)
	}

	// Give the actor's cascading auto-fold a moment to settle.
	time.Sleep(20 * time.Millisecond)

	snap := rm.Snapshot()
	foundBob := false
	for _, s := range snap.Seats {
		if s.Seat == 1 {
			foundBob = true
		}
	}
	_ = foundBob // seat may already be cleaned up if the hand ended on the fold
}
