package holdem

import (
	"testing"

	"pokerroom/card"
)

func TestEval5_RoyalFlushBeatsLowerStraightFlush(t *testing.T) {
	royalCat, royalRanks := eval5(
		card.CardSpadeA, card.CardSpadeK, card.CardSpadeQ, card.CardSpadeJ, card.CardSpadeT,
	)
	if royalCat != HandStraightFlush || royalRanks[0] != 14 {
		t.Fatalf("expected ace-high straight flush (royal), got category=%d high=%d", royalCat, royalRanks[0])
	}
	royalScore := packScore(royalCat, royalRanks)

	sfCat, sfRanks := eval5(
		card.CardHeartK, card.CardHeartQ, card.CardHeartJ, card.CardHeartT, card.CardHeart9,
	)
	if sfCat != HandStraightFlush {
		t.Fatalf("expected straight flush, got %d", sfCat)
	}
	sfScore := packScore(sfCat, sfRanks)

	if royalScore <= sfScore {
		t.Fatalf("expected royal flush to beat lower straight flush: %d <= %d", royalScore, sfScore)
	}
}

func TestEval5_WheelStraightIsLowestStraight(t *testing.T) {
	wheelCat, wheelRanks := eval5(
		card.CardSpadeA, card.CardHeart2, card.CardClub3, card.CardDiamond4, card.CardSpade5,
	)
	if wheelCat != HandStraight || wheelRanks[0] != 5 {
		t.Fatalf("expected 5-high straight for the wheel, got category=%d high=%d", wheelCat, wheelRanks[0])
	}
	wheelScore := packScore(wheelCat, wheelRanks)

	sixHighCat, sixHighRanks := eval5(
		card.CardSpade2, card.CardHeart3, card.CardClub4, card.CardDiamond5, card.CardSpade6,
	)
	if sixHighCat != HandStraight {
		t.Fatalf("expected straight for 6-high, got %d", sixHighCat)
	}
	sixHighScore := packScore(sixHighCat, sixHighRanks)

	if sixHighScore <= wheelScore {
		t.Fatalf("expected 6-high straight to beat the wheel: %d <= %d", sixHighScore, wheelScore)
	}
}

func TestEvalBestOf7_PicksBestFive(t *testing.T) {
	res := EvalBestOf7(card.CardList{
		card.CardSpadeA, card.CardHeartA, // pair of aces
		card.CardClubK, card.CardDiamondK, // pair of kings
		card.CardSpade2, card.CardHeart3, card.CardClub4, // kickers
	})
	if res == nil {
		t.Fatalf("expected non-nil result")
	}
	if res.Category != HandTwoPair {
		t.Fatalf("expected two pair, got %d", res.Category)
	}
}

func TestEval5_AllCombosProduceAValidCategory(t *testing.T) {
	if testing.Short() {
		t.Skip("skip exhaustive 5-card coverage in short mode")
	}
	cards := HoldemCards
	for a := 0; a < len(cards)-4; a++ {
		for b := a + 1; b < len(cards)-3; b++ {
			for c := b + 1; c < len(cards)-2; c++ {
				for d := c + 1; d < len(cards)-1; d++ {
					for e := d + 1; e < len(cards); e++ {
						cat, ranks := eval5(cards[a], cards[b], cards[c], cards[d], cards[e])
						if cat > HandStraightFlush {
							t.Fatalf("invalid category for combo: %v %v %v %v %v", cards[a], cards[b], cards[c], cards[d], cards[e])
						}
						if ranks[0] == 0 {
							t.Fatalf("missing tiebreaker rank for combo: %v %v %v %v %v", cards[a], cards[b], cards[c], cards[d], cards[e])
						}
					}
				}
			}
		}
	}
}
