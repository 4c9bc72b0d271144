package holdem

import (
	"errors"
	"testing"
)

func TestStandUp_BetweenHands(t *testing.T) {
	tb, err := NewTable(Config{
		MaxPlayers: 6,
		MinPlayers: 2,
		SmallBlind: 50,
		BigBlind:   100,
	})
	if err != nil {
		t.Fatalf("NewTable err: %v", err)
	}
	if err := tb.SitDown(0, 10001, 1000); err != nil {
		t.Fatal(err)
	}
	if err := tb.SitDown(1, 10002, 1000); err != nil {
		t.Fatal(err)
	}
	if err := tb.StandUp(1); err != nil {
		t.Fatalf("StandUp err: %v", err)
	}

	snap := tb.Snapshot()
	if len(snap.Seats) != 1 {
		t.Fatalf("expected 1 seated player, got %d", len(snap.Seats))
	}
}

func TestStandUp_DuringHandRejected(t *testing.T) {
	tb, err := NewTable(Config{
		MaxPlayers: 6,
		MinPlayers: 2,
		SmallBlind: 50,
		BigBlind:   100,
	})
	if err != nil {
		t.Fatalf("NewTable err: %v", err)
	}
	if err := tb.SitDown(0, 10001, 1000); err != nil {
		t.Fatal(err)
	}
	if err := tb.SitDown(1, 10002, 1000); err != nil {
		t.Fatal(err)
	}
	if err := tb.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}
	if err := tb.StandUp(1); !errors.Is(err, ErrHandInProgress) {
		t.Fatalf("expected ErrHandInProgress, got %v", err)
	}
}

func TestStandUp_AfterHandEndAllowed(t *testing.T) {
	tb, err := NewTable(Config{
		MaxPlayers: 6,
		MinPlayers: 2,
		SmallBlind: 50,
		BigBlind:   100,
	})
	if err != nil {
		t.Fatalf("NewTable err: %v", err)
	}
	if err := tb.SitDown(0, 10001, 1000); err != nil {
		t.Fatal(err)
	}
	if err := tb.SitDown(1, 10002, 1000); err != nil {
		t.Fatal(err)
	}
	if err := tb.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	snap := tb.Snapshot()
	if _, err := tb.Act(snap.ActionSeat, ActionFold, 0); err != nil {
		t.Fatalf("Act fold err: %v", err)
	}

	if err := tb.StandUp(snap.ActionSeat); err != nil {
		t.Fatalf("StandUp after hand end err: %v", err)
	}
}
