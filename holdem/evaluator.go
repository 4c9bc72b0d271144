package holdem

import (
	"fmt"

	"pokerroom/card"
)

// handResult is the outcome of evaluating the best 5 of 7 cards: a
// monotonic Score (larger is stronger, ties compare equal), the hand's
// Category, and which 5 of the 7 input cards make up that hand.
type handResult struct {
	Score     uint32
	Category  HandCategory
	BestIndex [5]int
	ranks     [5]int // tiebreaker ranks, most significant first, value 2-14
}

// EvalBestOf7 evaluates the best 5-card hand out of 7 cards by enumerating
// all 21 five-card subsets and keeping the highest-scoring one.
func EvalBestOf7(cards card.CardList) *handResult {
	if len(cards) != 7 {
		return nil
	}

	var best *handResult
	idx := [5]int{}

	for a := 0; a < 3; a++ {
		for b := a + 1; b < 4; b++ {
			for c := b + 1; c < 5; c++ {
				for d := c + 1; d < 6; d++ {
					for e := d + 1; e < 7; e++ {
						idx[0], idx[1], idx[2], idx[3], idx[4] = a, b, c, d, e
						cat, ranks := eval5(cards[a], cards[b], cards[c], cards[d], cards[e])
						score := packScore(cat, ranks)
						if best == nil || score > best.Score {
							best = &handResult{
								Score:     score,
								Category:  cat,
								BestIndex: idx,
								ranks:     ranks,
							}
						}
					}
				}
			}
		}
	}
	return best
}

// eval5 classifies a single 5-card hand into a category plus a tiebreaker
// rank vector (most significant rank first, using 2-14 Ace-high values;
// unused trailing slots are 0).
func eval5(a, b, c, d, e card.Card) (HandCategory, [5]int) {
	cards := [5]card.Card{a, b, c, d, e}

	counts := map[int]int{}
	suit0 := cards[0].Suit()
	flush := true
	var values []int
	for _, cc := range cards {
		v := cc.HandRealVal()
		counts[v]++
		values = append(values, v)
		if cc.Suit() != suit0 {
			flush = false
		}
	}

	straightHigh, isStraight := straightHighCard(values)

	// Group ranks by count (desc), then by rank value (desc) within a count.
	type rc struct{ rank, count int }
	var groups []rc
	for r, n := range counts {
		groups = append(groups, rc{r, n})
	}
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			if groups[j].count > groups[i].count ||
				(groups[j].count == groups[i].count && groups[j].rank > groups[i].rank) {
				groups[i], groups[j] = groups[j], groups[i]
			}
		}
	}

	switch {
	case isStraight && flush:
		return HandStraightFlush, [5]int{straightHigh}
	case groups[0].count == 4:
		return HandFourOfKind, [5]int{groups[0].rank, groups[1].rank}
	case groups[0].count == 3 && len(groups) > 1 && groups[1].count >= 2:
		return HandFullHouse, [5]int{groups[0].rank, groups[1].rank}
	case flush:
		return HandFlush, sortedDesc(values)
	case isStraight:
		return HandStraight, [5]int{straightHigh}
	case groups[0].count == 3:
		return HandThreeOfKind, [5]int{groups[0].rank, groups[1].rank, groups[2].rank}
	case groups[0].count == 2 && groups[1].count == 2:
		return HandTwoPair, [5]int{groups[0].rank, groups[1].rank, groups[2].rank}
	case groups[0].count == 2:
		return HandOnePair, [5]int{groups[0].rank, groups[1].rank, groups[2].rank, groups[3].rank}
	default:
		return HandHighCard, sortedDesc(values)
	}
}

// straightHighCard reports whether the 5 values form a straight and, if so,
// its high card. The wheel (A-2-3-4-5) reports a high card of 5.
func straightHighCard(values []int) (int, bool) {
	seen := map[int]bool{}
	for _, v := range values {
		if seen[v] {
			return 0, false // a pair can't be a 5-distinct-rank straight
		}
		seen[v] = true
	}
	if len(seen) != 5 {
		return 0, false
	}

	sorted := sortedDesc(values)
	if sorted[0]-sorted[4] == 4 {
		return sorted[0], true
	}
	// Wheel: A,5,4,3,2 (Ace counted as 14 in values).
	if sorted[0] == 14 && sorted[1] == 5 && sorted[2] == 4 && sorted[3] == 3 && sorted[4] == 2 {
		return 5, true
	}
	return 0, false
}

func sortedDesc(values []int) [5]int {
	cp := append([]int(nil), values...)
	for i := 0; i < len(cp); i++ {
		for j := i + 1; j < len(cp); j++ {
			if cp[j] > cp[i] {
				cp[i], cp[j] = cp[j], cp[i]
			}
		}
	}
	var out [5]int
	copy(out[:], cp)
	return out
}

// packScore folds a category and its tiebreaker ranks into one comparable
// value: higher category always outranks lower, and within a category
// higher ranks (compared left to right) win.
func packScore(cat HandCategory, ranks [5]int) uint32 {
	score := uint32(cat) << 20
	for i, r := range ranks {
		score |= uint32(r&0xF) << uint(16-4*i)
	}
	return score
}

// Describe renders a human-readable hand description, e.g. "Flush, Ace high"
// or "Two Pair, Kings and Fives".
func (h *handResult) Describe() string {
	if h == nil {
		return ""
	}
	high := func(v int) string { return rankValueName(v) }

	switch h.Category {
	case HandStraightFlush:
		if h.ranks[0] == 14 {
			return "Royal Flush"
		}
		return fmt.Sprintf("Straight Flush, %s high", high(h.ranks[0]))
	case HandFourOfKind:
		return fmt.Sprintf("Four of a Kind, %ss", high(h.ranks[0]))
	case HandFullHouse:
		return fmt.Sprintf("Full House, %ss over %ss", high(h.ranks[0]), high(h.ranks[1]))
	case HandFlush:
		return fmt.Sprintf("Flush, %s high", high(h.ranks[0]))
	case HandStraight:
		return fmt.Sprintf("Straight, %s high", high(h.ranks[0]))
	case HandThreeOfKind:
		return fmt.Sprintf("Three of a Kind, %ss", high(h.ranks[0]))
	case HandTwoPair:
		return fmt.Sprintf("Two Pair, %ss and %ss", high(h.ranks[0]), high(h.ranks[1]))
	case HandOnePair:
		return fmt.Sprintf("Pair of %ss", high(h.ranks[0]))
	default:
		return fmt.Sprintf("High Card, %s", high(h.ranks[0]))
	}
}

func rankValueName(v int) string {
	switch v {
	case 14:
		return "Ace"
	case 13:
		return "King"
	case 12:
		return "Queen"
	case 11:
		return "Jack"
	case 10:
		return "Ten"
	case 9:
		return "Nine"
	case 8:
		return "Eight"
	case 7:
		return "Seven"
	case 6:
		return "Six"
	case 5:
		return "Five"
	case 4:
		return "Four"
	case 3:
		return "Three"
	case 2:
		return "Two"
	default:
		return "?"
	}
}
