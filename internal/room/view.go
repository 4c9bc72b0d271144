package room

import (
	"encoding/json"

	"pokerroom/card"
	"pokerroom/holdem"
)

func cardView(c card.Card) CardView {
	return CardView{Rank: c.RankWire(), Suit: c.Suit().Name()}
}

func cardViews(cards []card.Card) []CardView {
	out := make([]CardView, 0, len(cards))
	for _, c := range cards {
		out = append(out, cardView(c))
	}
	return out
}

func phaseWire(p holdem.Phase) string {
	switch p {
	case holdem.PhaseWaiting:
		return "waiting"
	case holdem.PhasePreflop:
		return "pre-flop"
	case holdem.PhaseFlop:
		return "flop"
	case holdem.PhaseTurn:
		return "turn"
	case holdem.PhaseRiver:
		return "river"
	case holdem.PhaseShowdown:
		return "showdown"
	case holdem.PhaseHandOver:
		return "hand-over"
	default:
		return "unknown"
	}
}

func actionWire(a holdem.ActionType) string {
	switch a {
	case holdem.ActionCheck:
		return "check"
	case holdem.ActionBet:
		return "bet"
	case holdem.ActionCall:
		return "call"
	case holdem.ActionRaise:
		return "raise"
	case holdem.ActionFold:
		return "fold"
	case holdem.ActionAllIn:
		return "all_in"
	default:
		return "none"
	}
}

// positionLabels assigns BTN/SB/BB/UTG/MP/HJ/CO labels to occupied, not
// sitting-out seats, ordered clockwise from the dealer, per spec.md §4.4.
func positionLabels(snap holdem.Snapshot, maxPlayers int) map[uint16]string {
	labels := make(map[uint16]string)
	if snap.DealerSeat == holdem.InvalidSeat {
		return labels
	}

	occupied := make(map[uint16]bool, len(snap.Seats))
	for _, s := range snap.Seats {
		if !s.SittingOut {
			occupied[s.Seat] = true
		}
	}
	if !occupied[snap.DealerSeat] {
		return labels
	}

	ordered := make([]uint16, 0, len(occupied))
	for i := 0; i < maxPlayers; i++ {
		seat := (snap.DealerSeat + uint16(i)) % uint16(maxPlayers)
		if occupied[seat] {
			ordered = append(ordered, seat)
		}
	}

	names := namesForSeatCount(len(ordered))
	for i, seat := range ordered {
		if i < len(names) {
			labels[seat] = names[i]
		}
	}
	return labels
}

func namesForSeatCount(n int) []string {
	switch {
	case n <= 1:
		return []string{"BTN"}
	case n == 2:
		return []string{"BTN", "BB"}
	case n == 3:
		return []string{"BTN", "SB", "BB"}
	default:
		full := []string{"BTN", "SB", "BB", "UTG", "UTG+1", "MP", "MP+1", "HJ", "CO"}
		if n >= len(full) {
			return full
		}
		// Fewer than 9: keep BTN/SB/BB/UTG fixed and fill the middle
		// positions closest to the dealer, dropping from MP/HJ/CO first.
		labels := make([]string, n)
		copy(labels, full[:4])
		remaining := full[4 : len(full)-1] // MP.. (CO always kept last below)
		fillCount := n - 5
		if fillCount < 0 {
			fillCount = 0
		}
		if fillCount > len(remaining) {
			fillCount = len(remaining)
		}
		idx := 4
		for i := 0; i < fillCount; i++ {
			labels[idx] = remaining[i]
			idx++
		}
		labels[n-1] = "CO"
		return labels
	}
}

// gameStateFor renders the `game_state` envelope data for one recipient
// connection. recipientSeat is holdem.InvalidSeat for spectators.
func (r *Room) gameStateFor(recipientSeat uint16) GameStateView {
	snap := r.table.Snapshot()
	labels := positionLabels(snap, r.cfg.MaxPlayers)

	var pot int64
	for _, p := range snap.Pots {
		pot += p.Amount
	}
	for _, s := range snap.Seats {
		pot += s.Bet
	}

	view := GameStateView{
		RoomID:         r.ID,
		SmallBlind:     r.cfg.SmallBlind,
		BigBlind:       r.cfg.BigBlind,
		Phase:          phaseWire(snap.Phase),
		CommunityCards: cardViews(snap.CommunityCards),
		Pot:            pot,
		CurrentBet:     snap.CurBet,
		HandNumber:     snap.Round,
		MinRaise:       snap.MinRaiseDelta,
	}
	if snap.DealerSeat == holdem.InvalidSeat {
		view.DealerSeat = -1
	} else {
		view.DealerSeat = int32(snap.DealerSeat)
	}
	if snap.ActionSeat == holdem.InvalidSeat {
		view.CurrentPlayerSeat = -1
	} else {
		view.CurrentPlayerSeat = int32(snap.ActionSeat)
	}

	showdown := snap.Phase == holdem.PhaseShowdown || snap.Phase == holdem.PhaseHandOver

	for _, s := range snap.Seats {
		name := r.seatName[s.Seat]
		pv := PlayerView{
			Name:       name,
			Seat:       s.Seat,
			Stack:      s.Stack,
			Bet:        s.Bet,
			Folded:     s.Folded,
			AllIn:      s.AllIn,
			SittingOut: s.SittingOut,
			Position:   labels[s.Seat],
			HasCards:   len(s.HandCards) > 0,
		}
		if s.Seat == recipientSeat {
			view.YourCards = cardViews(s.HandCards)
			pv.Cards = view.YourCards
		} else if showdown && !s.Folded {
			pv.Cards = cardViews(s.HandCards)
		}
		view.Players = append(view.Players, pv)
	}

	if recipientSeat != holdem.InvalidSeat && snap.ActionSeat == recipientSeat {
		view.CallAmount = snap.CurBet
		acts, minRaiseTo, err := r.table.LegalActions(recipientSeat)
		if err == nil {
			view.ValidActions = validActionViews(acts, snap, minRaiseTo, recipientSeat)
		}
	}

	return view
}

func validActionViews(acts []holdem.ActionType, snap holdem.Snapshot, minRaiseTo int64, seat uint16) []ValidActionView {
	var seatSnap *holdem.SeatSnapshot
	for i := range snap.Seats {
		if snap.Seats[i].Seat == seat {
			seatSnap = &snap.Seats[i]
			break
		}
	}
	var stack, bet int64
	if seatSnap != nil {
		stack = seatSnap.Stack
		bet = seatSnap.Bet
	}

	out := make([]ValidActionView, 0, len(acts))
	for _, a := range acts {
		switch a {
		case holdem.ActionFold, holdem.ActionCheck:
			out = append(out, ValidActionView{Action: actionWire(a)})
		case holdem.ActionCall:
			out = append(out, ValidActionView{Action: actionWire(a), Amount: snap.CurBet - bet})
		case holdem.ActionBet, holdem.ActionRaise:
			out = append(out, ValidActionView{Action: actionWire(a), Min: minRaiseTo, Max: bet + stack})
		case holdem.ActionAllIn:
			out = append(out, ValidActionView{Action: actionWire(a), Amount: bet + stack})
		}
	}
	return out
}

// marshalEnvelope returns the JSON-encoded `{type, data}` envelope. Marshal
// errors are a logic bug (the data shapes are always JSON-safe), so the
// caller logs and drops rather than propagating.
func marshalEnvelope(typ string, data any) ([]byte, error) {
	return json.Marshal(Envelope{Type: typ, Data: data})
}

// sendTo marshals and delivers one envelope to a single connection.
func (r *Room) sendTo(connID uint64, typ string, data any) {
	b, err := marshalEnvelope(typ, data)
	if err != nil {
		r.log.WithError(err).Error("marshal envelope")
		return
	}
	r.broadcast(connID, b)
}

// broadcastAll delivers one envelope to every connection in the room.
func (r *Room) broadcastAll(typ string, data any) {
	b, err := marshalEnvelope(typ, data)
	if err != nil {
		r.log.WithError(err).Error("marshal envelope")
		return
	}
	for id := range r.conns {
		r.broadcast(id, b)
	}
}

// broadcastGameState sends each connection its own per-recipient
// `game_state` projection.
func (r *Room) broadcastGameStateLocked() {
	for id, c := range r.conns {
		view := r.gameStateFor(c.Seat)
		b, err := marshalEnvelope("game_state", view)
		if err != nil {
			r.log.WithError(err).Error("marshal game_state")
			continue
		}
		r.broadcast(id, b)
	}
}
