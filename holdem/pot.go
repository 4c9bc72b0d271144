package holdem

import "sort"

// pot is one side-pot tier: an amount and the set of seats still eligible
// to win it (folded seats contributed chips but are not eligible).
type pot struct {
	amount        int64
	eligibleSeats map[uint16]bool
}

type potManager struct {
	pots []pot

	// excessSeat/excessAmount record the most recent uncalled-bet refund,
	// for snapshot/audit purposes.
	excessSeat   uint16
	excessAmount int64
}

func (pm *potManager) resetPots() {
	pm.pots = make([]pot, 0)
	pm.excessSeat = 0
	pm.excessAmount = 0
}

func (pm *potManager) addPot(p ...pot) {
	pm.pots = append(pm.pots, p...)
}

// refundUncalledBet returns the biggest bettor's uncalled excess over the
// next-biggest bet to that seat's stack before pots are tiered, so the
// excess never enters a pot nobody could have called.
func (pm *potManager) refundUncalledBet(seatsWithBets []*Seat) {
	pm.excessSeat = 0
	pm.excessAmount = 0
	if len(seatsWithBets) == 0 {
		return
	}

	lastSeat := seatsWithBets[len(seatsWithBets)-1]
	maxBet := lastSeat.Bet()

	var secondMaxBet int64
	if len(seatsWithBets) > 1 {
		secondMaxBet = seatsWithBets[len(seatsWithBets)-2].Bet()
	}

	excess := maxBet - secondMaxBet
	if excess <= 0 {
		return
	}

	lastSeat.addStack(excess)
	lastSeat.addBet(-excess)

	pm.excessSeat = lastSeat.SeatID()
	pm.excessAmount = excess
}

// calcPotsByPlayerBets rebuilds the pot tiers from each seat's total bet
// this hand. Seats are layered by contribution level; a tier whose eligible
// set matches the previous tier's is merged into it rather than split out
// as its own side pot. A tier with no eligible seats left (everyone who
// contributed at that level folded) isn't awardable on its own — its
// chips carry forward into the next tier that does have an eligible seat,
// so no contribution is ever lost.
func (pm *potManager) calcPotsByPlayerBets(seatsWithBets []*Seat) {
	sort.Slice(seatsWithBets, func(i, j int) bool {
		return seatsWithBets[i].Bet() < seatsWithBets[j].Bet()
	})

	pm.refundUncalledBet(seatsWithBets)

	totalContributed := int64(0)
	var carry int64
	for i, seat := range seatsWithBets {
		bet := seat.Bet()

		contribution := bet - totalContributed
		if contribution <= 0 {
			continue
		}

		newPot := pot{
			amount:        0,
			eligibleSeats: make(map[uint16]bool),
		}

		for j := i; j < len(seatsWithBets); j++ {
			seatJ := seatsWithBets[j]
			actualContribution := contribution
			if actualContribution > seatJ.Bet()-totalContributed {
				actualContribution = seatJ.Bet() - totalContributed
			}

			newPot.amount += actualContribution
			if !seatJ.Folded() {
				newPot.eligibleSeats[seatJ.SeatID()] = true
			}
		}

		totalContributed += contribution

		if len(newPot.eligibleSeats) == 0 {
			carry += newPot.amount
			continue
		}

		newPot.amount += carry
		carry = 0

		merged := false
		if len(pm.pots) > 0 {
			lastPot := &pm.pots[len(pm.pots)-1]
			if len(lastPot.eligibleSeats) == len(newPot.eligibleSeats) {
				samePlayers := true
				for seatID := range newPot.eligibleSeats {
					if !lastPot.eligibleSeats[seatID] {
						samePlayers = false
						break
					}
				}
				if samePlayers {
					lastPot.amount += newPot.amount
					merged = true
				}
			}
		}

		if !merged {
			pm.addPot(newPot)
		}
	}

	if carry > 0 && len(pm.pots) > 0 {
		pm.pots[len(pm.pots)-1].amount += carry
	}
}
