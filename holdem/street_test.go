package holdem

import "testing"

// This case covers a subtle street-progression rule: in a 3-handed hand,
// even after someone folds and activeCount drops to 2, the flop's first
// action still starts from the small blind clockwise (per the original
// "len(seatNodes)==2" heads-up check, not the live activeCount).
func TestStreetProgression_FlopFirstActionAfterBBFolds(t *testing.T) {
	tb, err := NewTable(Config{
		MaxPlayers: 3,
		MinPlayers: 3,
		SmallBlind: 50,
		BigBlind:   100,
		Ante:       0,
		Seed:       1,
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
	if err := tb.SitDown(2, 10003, 1000); err != nil {
		t.Fatal(err)
	}

	if err := tb.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}
	snap := tb.Snapshot()
	if snap.Phase != PhasePreflop {
		t.Fatalf("expected preflop, got %v", snap.Phase)
	}

	// Preflop: Dealer calls, SB calls, BB folds.
	for i := 0; i < 3; i++ {
		snap = tb.Snapshot()
		switch snap.ActionSeat {
		case snap.DealerSeat:
			if _, err := tb.Act(snap.ActionSeat, ActionCall, snap.CurBet); err != nil {
				t.Fatalf("dealer call err: %v", err)
			}
		case snap.SmallBlindSeat:
			if _, err := tb.Act(snap.ActionSeat, ActionCall, snap.CurBet); err != nil {
				t.Fatalf("sb call err: %v", err)
			}
		case snap.BigBlindSeat:
			if _, err := tb.Act(snap.ActionSeat, ActionFold, 0); err != nil {
				t.Fatalf("bb fold err: %v", err)
			}
		default:
			t.Fatalf("unexpected action seat: %d", snap.ActionSeat)
		}
	}

	// Flop's first action should be the small blind (it didn't fold).
	snap = tb.Snapshot()
	if snap.Phase != PhaseFlop {
		t.Fatalf("expected flop, got %v", snap.Phase)
	}
	if len(snap.CommunityCards) != 3 {
		t.Fatalf("expected 3 community cards on flop, got %d", len(snap.CommunityCards))
	}
	if snap.ActionSeat != snap.SmallBlindSeat {
		t.Fatalf("expected flop action seat=SB(%d), got %d (dealer=%d bb=%d)",
			snap.SmallBlindSeat, snap.ActionSeat, snap.DealerSeat, snap.BigBlindSeat)
	}
}
