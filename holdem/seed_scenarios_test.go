package holdem

import (
	"testing"

	"pokerroom/card"
)

// TestHeadsUpBlindsAndBBOption covers spec scenario 1: heads-up, dealer
// posts SB and acts first pre-flop; a call-then-check takes the hand to
// the flop with the BB acting first post-flop.
func TestHeadsUpBlindsAndBBOption(t *testing.T) {
	tb, err := NewTable(Config{
		MaxPlayers: 2,
		MinPlayers: 2,
		SmallBlind: 1,
		BigBlind:   2,
	})
	if err != nil {
		t.Fatalf("NewTable err: %v", err)
	}
	if err := tb.SitDown(0, 1, 100); err != nil {
		t.Fatal(err)
	}
	if err := tb.SitDown(1, 2, 100); err != nil {
		t.Fatal(err)
	}
	if err := tb.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	snap := tb.Snapshot()
	dealer := snap.DealerSeat
	bb := snap.BigBlindSeat
	if snap.ActionSeat != dealer {
		t.Fatalf("expected dealer to act first heads-up, got seat %d (dealer=%d)", snap.ActionSeat, dealer)
	}

	if _, err := tb.Act(dealer, ActionCall, snap.CurBet); err != nil {
		t.Fatalf("dealer call err: %v", err)
	}

	snap = tb.Snapshot()
	if snap.ActionSeat != bb {
		t.Fatalf("expected BB option seat %d to act, got %d", bb, snap.ActionSeat)
	}
	acts, _, err := tb.LegalActions(bb)
	if err != nil {
		t.Fatalf("LegalActions err: %v", err)
	}
	if !containsAction(acts, ActionCheck) || !containsAction(acts, ActionRaise) {
		t.Fatalf("expected BB option to include check and raise, got %v", acts)
	}

	if _, err := tb.Act(bb, ActionCheck, snap.CurBet); err != nil {
		t.Fatalf("bb check err: %v", err)
	}

	snap = tb.Snapshot()
	if snap.Phase != PhaseFlop {
		t.Fatalf("expected flop, got %v", snap.Phase)
	}
	if snap.ActionSeat != bb {
		t.Fatalf("expected BB to act first post-flop heads-up, got %d", snap.ActionSeat)
	}
	total := int64(0)
	for _, p := range snap.Pots {
		total += p.Amount
	}
	if total != 4 {
		t.Fatalf("expected pot=4, got %d", total)
	}
}

// TestMinRaiseTracking covers spec scenario 2: a raise-to-30 sets the min
// raise to 20; a subsequent raise-to-45 is below that and rejected, while
// raise-to-55 is legal and updates the min raise to 25.
func TestMinRaiseTracking(t *testing.T) {
	tb, err := NewTable(Config{
		MaxPlayers: 3,
		MinPlayers: 3,
		SmallBlind: 5,
		BigBlind:   10,
	})
	if err != nil {
		t.Fatalf("NewTable err: %v", err)
	}
	if err := tb.SitDown(0, 1, 1000); err != nil {
		t.Fatal(err)
	}
	if err := tb.SitDown(1, 2, 1000); err != nil {
		t.Fatal(err)
	}
	if err := tb.SitDown(2, 3, 1000); err != nil {
		t.Fatal(err)
	}
	if err := tb.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	snap := tb.Snapshot()
	dealer := snap.DealerSeat
	if snap.ActionSeat != dealer {
		t.Fatalf("expected dealer to act first 3-handed, got %d (dealer=%d)", snap.ActionSeat, dealer)
	}

	if _, err := tb.Act(dealer, ActionRaise, 30); err != nil {
		t.Fatalf("raise to 30 err: %v", err)
	}
	snap = tb.Snapshot()
	if snap.MinRaiseDelta != 20 {
		t.Fatalf("expected min-raise=20 after raise to 30, got %d", snap.MinRaiseDelta)
	}

	nextSeat := snap.ActionSeat
	if _, err := tb.Act(nextSeat, ActionRaise, 45); err == nil {
		t.Fatalf("expected raise to 45 to be rejected (below min-raise 50)")
	}

	if _, err := tb.Act(nextSeat, ActionRaise, 55); err != nil {
		t.Fatalf("raise to 55 err: %v", err)
	}
	snap = tb.Snapshot()
	if snap.MinRaiseDelta != 25 {
		t.Fatalf("expected min-raise=25 after raise to 55, got %d", snap.MinRaiseDelta)
	}
}

// TestShortAllInDoesNotReopenAction covers spec scenario 3: a short all-in
// raise doesn't reopen action for the player who already raised full-size.
// The dealer is pinned to seat 0 so the 40-chip stack at seat 2 is the big
// blind and acts third, making the short all-in.
func TestShortAllInDoesNotReopenAction(t *testing.T) {
	dealerSeat := uint16(0)
	tb, err := NewTable(Config{
		MaxPlayers:       3,
		MinPlayers:       3,
		SmallBlind:       5,
		BigBlind:         10,
		ForcedDealerSeat: &dealerSeat,
	})
	if err != nil {
		t.Fatalf("NewTable err: %v", err)
	}
	if err := tb.SitDown(0, 1, 100); err != nil {
		t.Fatal(err)
	}
	if err := tb.SitDown(1, 2, 100); err != nil {
		t.Fatal(err)
	}
	if err := tb.SitDown(2, 3, 40); err != nil {
		t.Fatal(err)
	}
	if err := tb.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	snap := tb.Snapshot()
	dealer := snap.DealerSeat
	if _, err := tb.Act(dealer, ActionRaise, 30); err != nil {
		t.Fatalf("dealer raise to 30 err: %v", err)
	}

	snap = tb.Snapshot()
	if _, err := tb.Act(snap.ActionSeat, ActionCall, 30); err != nil {
		t.Fatalf("second seat call err: %v", err)
	}

	snap = tb.Snapshot()
	shortStackSeat := snap.ActionSeat
	if _, err := tb.Act(shortStackSeat, ActionAllIn, 40); err != nil {
		t.Fatalf("short all-in err: %v", err)
	}

	snap = tb.Snapshot()
	if snap.ActionSeat != dealer {
		t.Fatalf("expected action to return to dealer, got %d", snap.ActionSeat)
	}

	acts, _, err := tb.LegalActions(dealer)
	if err != nil {
		t.Fatalf("LegalActions err: %v", err)
	}
	if containsAction(acts, ActionRaise) {
		t.Fatalf("expected raise NOT to be offered after a short all-in, got %v", acts)
	}
	if !containsAction(acts, ActionFold) || !containsAction(acts, ActionCall) {
		t.Fatalf("expected {fold, call} to be offered, got %v", acts)
	}

	if _, err := tb.Act(dealer, ActionRaise, 100); err == nil {
		t.Fatalf("expected raise to be rejected after a short all-in")
	}

	// Dealer calls the short all-in; action passes to the seat that already
	// called the full 30-raise before the short all-in happened. That seat
	// must not be handed a fresh right to raise either.
	if _, err := tb.Act(dealer, ActionCall, 40); err != nil {
		t.Fatalf("dealer call of short all-in err: %v", err)
	}

	snap = tb.Snapshot()
	alreadyActed := snap.ActionSeat
	if alreadyActed == dealer {
		t.Fatalf("expected action to move past the dealer after the call")
	}

	acts, _, err = tb.LegalActions(alreadyActed)
	if err != nil {
		t.Fatalf("LegalActions err: %v", err)
	}
	if containsAction(acts, ActionRaise) {
		t.Fatalf("expected raise NOT to be offered to a seat that already acted this round, got %v", acts)
	}
	if !containsAction(acts, ActionFold) || !containsAction(acts, ActionCall) {
		t.Fatalf("expected {fold, call} to be offered, got %v", acts)
	}
}

// TestSidePotConstruction covers spec scenario 4: three players all-in for
// 50/100/200 produce a main pot of 150 (all eligible), a side pot of 100
// (the two bigger stacks), and a 100-chip uncalled refund to the biggest
// stack since nobody covered it.
func TestSidePotConstruction(t *testing.T) {
	seats := []*Seat{
		{SeatNum: 0, stack: 0, bet: 50},
		{SeatNum: 1, stack: 0, bet: 100},
		{SeatNum: 2, stack: 0, bet: 200},
	}

	var pm potManager
	pm.resetPots()
	pm.calcPotsByPlayerBets(seats)

	if len(pm.pots) != 2 {
		t.Fatalf("expected 2 pots, got %d: %+v", len(pm.pots), pm.pots)
	}
	if pm.pots[0].amount != 150 || len(pm.pots[0].eligibleSeats) != 3 {
		t.Fatalf("expected main pot amount=150 eligible=3, got amount=%d eligible=%d",
			pm.pots[0].amount, len(pm.pots[0].eligibleSeats))
	}
	if pm.pots[1].amount != 100 || len(pm.pots[1].eligibleSeats) != 2 {
		t.Fatalf("expected side pot amount=100 eligible=2, got amount=%d eligible=%d",
			pm.pots[1].amount, len(pm.pots[1].eligibleSeats))
	}
	if !pm.pots[1].eligibleSeats[1] || !pm.pots[1].eligibleSeats[2] {
		t.Fatalf("expected side pot eligible={1,2}, got %+v", pm.pots[1].eligibleSeats)
	}
	if pm.excessSeat != 2 || pm.excessAmount != 100 {
		t.Fatalf("expected 100-chip refund to seat 2, got seat=%d amount=%d", pm.excessSeat, pm.excessAmount)
	}
}

// TestSettleByEvalTieSplitsOddPotToSeatLeftOfDealer covers spec scenario 6:
// two tied winners split an odd pot of 101, with the leftover chip going to
// the winner seated closer to the left of the dealer.
func TestSettleByEvalTieSplitsOddPotToSeatLeftOfDealer(t *testing.T) {
	tb, err := NewTable(Config{MaxPlayers: 3, MinPlayers: 2, SmallBlind: 1, BigBlind: 2})
	if err != nil {
		t.Fatalf("NewTable err: %v", err)
	}

	board := card.CardList{
		card.CardSpadeA, card.CardSpadeK, card.CardSpadeQ, card.CardSpadeJ, card.CardSpadeT,
	}

	tb.dealerSeat = 0
	tb.phase = PhaseShowdown
	tb.communityCards = board
	tb.seatsBySeat = map[uint16]*Seat{
		0: {SeatNum: 0, stack: 0, folded: true},
		1: {SeatNum: 1, stack: 0, handCards: card.CardList{card.CardClub2, card.CardClub3}},
		2: {SeatNum: 2, stack: 0, handCards: card.CardList{card.CardClub4, card.CardClub5}},
	}
	tb.potManager.pots = []pot{
		{amount: 101, eligibleSeats: map[uint16]bool{1: true, 2: true}},
	}

	result, err := tb.SettleShowdown()
	if err != nil {
		t.Fatalf("SettleShowdown err: %v", err)
	}
	if len(result.PotResults) != 1 {
		t.Fatalf("expected 1 pot result, got %d", len(result.PotResults))
	}
	pr := result.PotResults[0]
	if len(pr.Winners) != 2 {
		t.Fatalf("expected 2 tied winners, got %d: %+v", len(pr.Winners), pr.Winners)
	}
	if pr.Winners[0] != 1 || pr.Winners[1] != 2 {
		t.Fatalf("expected winner order [1,2] (closest to left of dealer first), got %v", pr.Winners)
	}
	if pr.WinAmounts[0] != 51 || pr.WinAmounts[1] != 50 {
		t.Fatalf("expected split [51,50], got %v", pr.WinAmounts)
	}
	if tb.seatsBySeat[1].stack != 51 || tb.seatsBySeat[2].stack != 50 {
		t.Fatalf("expected stacks seat1=51 seat2=50, got seat1=%d seat2=%d",
			tb.seatsBySeat[1].stack, tb.seatsBySeat[2].stack)
	}
}

func containsAction(acts []ActionType, want ActionType) bool {
	for _, a := range acts {
		if a == want {
			return true
		}
	}
	return false
}
