package holdem

import (
	"sort"

	"pokerroom/card"
)

type ShowdownSeatResult struct {
	Seat              uint16
	Category          HandCategory
	Description       string // e.g. "Flush, Ace high"; empty for no-showdown wins
	HandScore         uint32
	HandCards         []card.Card // the seat's 2 hole cards
	BestFiveCards     []card.Card // best 5 of the 7 available
	AllCards          []card.Card // hole + community, 7 cards
	IsWinner          bool
	WinAmount         int64
	BestFiveCardIndex [5]int
}

type PotResult struct {
	Amount     int64
	Winners    []uint16
	WinAmounts []int64
}

type SettlementResult struct {
	SeatResults  []ShowdownSeatResult
	PotResults   []PotResult
	ExcessSeat   uint16
	ExcessAmount int64
}

// SettleShowdown must be called once the community cards have been dealt
// out to 5.
func (t *Table) SettleShowdown() (*SettlementResult, error) {
	if t.noShowDown {
		return t.settleNoShowdown()
	}
	return t.settleByEval()
}

func (t *Table) settleByEval() (*SettlementResult, error) {
	results := make(map[uint16]*ShowdownSeatResult, 8)
	for seatNum, s := range t.seatsBySeat {
		// Only seats actually dealt into this hand can show down.
		if s == nil || s.folded || len(s.HandCards()) != 2 {
			continue
		}
		all := make(card.CardList, 0, 7)
		all = append(all, s.HandCards()...)
		all = append(all, t.communityCards...)
		if len(all) != 7 {
			return nil, ErrInvalidState("need 7 cards to evaluate")
		}
		eval := EvalBestOf7(all)
		if eval == nil {
			return nil, ErrInvalidState("eval failed")
		}
		bestFive := make([]card.Card, 0, 5)
		for _, i := range eval.BestIndex {
			bestFive = append(bestFive, all[i])
		}
		results[seatNum] = &ShowdownSeatResult{
			Seat:              seatNum,
			Category:          eval.Category,
			Description:       eval.Describe(),
			HandScore:         eval.Score,
			HandCards:         append([]card.Card{}, s.HandCards()...),
			BestFiveCards:     bestFive,
			AllCards:          append([]card.Card{}, all...),
			BestFiveCardIndex: eval.BestIndex,
		}
	}

	// Determine winners per pot. Candidates are walked starting from the
	// first seat left of the dealer so that, among seats tied for best
	// hand, the one closer to the dealer's left receives any odd chip.
	potWinners := make([][]uint16, 0, len(t.potManager.pots))
	for _, pot := range t.potManager.pots {
		group := make([]uint16, 0, len(pot.eligibleSeats))
		for seatNum := range pot.eligibleSeats {
			group = append(group, seatNum)
		}
		if len(group) == 0 {
			potWinners = append(potWinners, nil)
			continue
		}
		group = orderFromLeftOfDealer(group, t.dealerSeat, t.cfg.MaxPlayers)

		winners := []uint16{group[0]}
		for gi := 1; gi < len(group); gi++ {
			seatNum := group[gi]
			cur := results[seatNum]
			if cur == nil {
				continue
			}
			beatsAll := true
			drawWithAll := true
			for _, w := range winners {
				wr := results[w]
				if wr == nil {
					continue
				}
				if cur.HandScore > wr.HandScore {
					drawWithAll = false
				} else if cur.HandScore == wr.HandScore {
					beatsAll = false
				} else {
					beatsAll = false
					drawWithAll = false
				}
			}
			if beatsAll {
				winners = []uint16{seatNum}
			} else if drawWithAll {
				winners = append(winners, seatNum)
			}
		}
		potWinners = append(potWinners, winners)
	}

	out := &SettlementResult{
		PotResults:   make([]PotResult, 0, len(t.potManager.pots)),
		ExcessSeat:   t.potManager.excessSeat,
		ExcessAmount: t.potManager.excessAmount,
	}

	for potIdx, pot := range t.potManager.pots {
		winners := potWinners[potIdx]
		if len(winners) == 0 || pot.amount <= 0 {
			out.PotResults = append(out.PotResults, PotResult{Amount: pot.amount})
			continue
		}

		winAmount := pot.amount / int64(len(winners))
		remainder := pot.amount % int64(len(winners))

		pr := PotResult{
			Amount:  pot.amount,
			Winners: append([]uint16{}, winners...),
		}

		for i, w := range winners {
			amt := winAmount
			// winners[0] is the seat closest to the left of the dealer
			// among the tied winners; it takes the odd chip.
			if i == 0 {
				amt += remainder
			}
			pr.WinAmounts = append(pr.WinAmounts, amt)

			if s := t.seatsBySeat[w]; s != nil {
				s.addStack(amt)
			}
			if r := results[w]; r != nil {
				r.IsWinner = true
				r.WinAmount += amt
			}
		}
		out.PotResults = append(out.PotResults, pr)
	}

	for _, r := range results {
		out.SeatResults = append(out.SeatResults, *r)
	}
	sort.Slice(out.SeatResults, func(i, j int) bool { return out.SeatResults[i].Seat < out.SeatResults[j].Seat })
	return out, nil
}

func (t *Table) settleNoShowdown() (*SettlementResult, error) {
	var winner *Seat
	for _, s := range t.seatsBySeat {
		if s == nil {
			continue
		}
		if !s.folded {
			winner = s
			break
		}
	}
	if winner == nil {
		return nil, ErrInvalidState("no winner in no-showdown state")
	}

	var maxBet, secondMax int64
	for _, s := range t.seatsBySeat {
		if s == nil {
			continue
		}
		b := s.Bet()
		if b > maxBet {
			secondMax = maxBet
			maxBet = b
		} else if b > secondMax || b == maxBet {
			secondMax = b
		}
	}

	excess := int64(0)
	if winner.Bet() == maxBet && maxBet > secondMax {
		excess = maxBet - secondMax
		winner.addStack(excess)
		winner.addBet(-excess)
	}

	total := int64(0)
	for _, s := range t.seatsBySeat {
		if s == nil {
			continue
		}
		total += s.Bet()
	}
	for _, pot := range t.potManager.pots {
		total += pot.amount
	}

	winner.addStack(total)
	for _, s := range t.seatsBySeat {
		if s != nil {
			s.resetBet()
		}
	}

	out := &SettlementResult{
		SeatResults: []ShowdownSeatResult{
			{
				Seat:      winner.SeatID(),
				IsWinner:  true,
				WinAmount: total,
			},
		},
		PotResults: []PotResult{
			{
				Amount:     total,
				Winners:    []uint16{winner.SeatID()},
				WinAmounts: []int64{total},
			},
		},
		ExcessSeat:   winner.SeatID(),
		ExcessAmount: excess,
	}
	return out, nil
}

// orderFromLeftOfDealer sorts seat numbers by their clockwise distance from
// the dealer seat (1 = immediately left of the dealer), wrapping around
// maxPlayers. Used so the leftover chip from an uneven pot split goes to the
// winner closest to the left of the dealer, not simply the lowest seat
// number.
func orderFromLeftOfDealer(seatIDs []uint16, dealerSeat uint16, maxPlayers int) []uint16 {
	if maxPlayers <= 0 {
		sort.Slice(seatIDs, func(i, j int) bool { return seatIDs[i] < seatIDs[j] })
		return seatIDs
	}
	distance := func(s uint16) int {
		d := int(s) - int(dealerSeat)
		if d <= 0 {
			d += maxPlayers
		}
		return d
	}
	sort.Slice(seatIDs, func(i, j int) bool { return distance(seatIDs[i]) < distance(seatIDs[j]) })
	return seatIDs
}
