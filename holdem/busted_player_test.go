package holdem

import (
	"testing"

	"pokerroom/card"
)

func TestStartHand_ClearsBustedSeatCards_AndShowdownExcludesSeat(t *testing.T) {
	tb, err := NewTable(Config{
		MaxPlayers: 6,
		MinPlayers: 2,
		SmallBlind: 50,
		BigBlind:   100,
		Seed:       1,
	})
	if err != nil {
		t.Fatalf("NewTable err: %v", err)
	}

	if err := tb.SitDown(0, 10001, 2000); err != nil {
		t.Fatal(err)
	}
	if err := tb.SitDown(1, 10002, 2000); err != nil {
		t.Fatal(err)
	}
	if err := tb.SitDown(2, 10003, 0); err != nil {
		t.Fatal(err)
	}

	// Simulate stale cards left from a previous hand on a busted seat.
	busted := tb.seatsBySeat[2]
	busted.SetHandCard([]card.Card{HoldemCards[0], HoldemCards[1]})

	if err := tb.StartHand(); err != nil {
		t.Fatalf("StartHand err: %v", err)
	}

	if got := len(tb.seatsBySeat[2].HandCards()); got != 0 {
		t.Fatalf("expected busted seat hand cards cleared on new hand, got %d", got)
	}

	// Force a showdown evaluation context and ensure the busted seat is excluded.
	board, ok := tb.stockCards.PopCards(5)
	if !ok || len(board) != 5 {
		t.Fatalf("failed to draw board cards from stock")
	}
	tb.communityCards = append([]card.Card{}, board...)
	tb.noShowDown = false

	settlement, err := tb.SettleShowdown()
	if err != nil {
		t.Fatalf("SettleShowdown err: %v", err)
	}

	for _, sr := range settlement.SeatResults {
		if sr.Seat == 2 {
			t.Fatalf("busted seat should not appear in showdown results")
		}
	}
}
