package holdem

import "pokerroom/card"

// CurrentSnapshotSchemaVersion is bumped whenever Snapshot's shape changes
// in a way that breaks an older persisted blob.
const CurrentSnapshotSchemaVersion = 1

type SeatSnapshot struct {
	ID         uint64
	Seat       uint16
	Stack      int64
	Bet        int64
	Folded     bool
	AllIn      bool
	SittingOut bool
	LastAction ActionType
	HandCards  []card.Card
}

type PotSnapshot struct {
	Amount        int64
	EligibleSeats []uint16
}

// Snapshot is a self-describing, versioned point-in-time view of a table,
// suitable for persistence and recovery on restart.
type Snapshot struct {
	SchemaVersion int

	Round uint16
	Phase Phase
	Ended bool

	DealerSeat     uint16
	SmallBlindSeat uint16
	BigBlindSeat   uint16
	ActionSeat     uint16

	CurBet          int64
	MinRaiseDelta   int64
	NeedActionCount int
	CurrentRaiser   uint16

	CommunityCards []card.Card
	Pots           []PotSnapshot
	Seats          []SeatSnapshot

	ExcessSeat   uint16
	ExcessAmount int64
}

func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		SchemaVersion:   CurrentSnapshotSchemaVersion,
		Round:           t.round,
		Phase:           t.phase,
		Ended:           t.ended,
		DealerSeat:      InvalidSeat,
		SmallBlindSeat:  InvalidSeat,
		BigBlindSeat:    InvalidSeat,
		ActionSeat:      InvalidSeat,
		CurBet:          t.curBet,
		MinRaiseDelta:   t.MinRaise,
		NeedActionCount: t.NeedActionCount,
		CurrentRaiser:   t.CurrentRaiser,
		CommunityCards:  append([]card.Card{}, t.communityCards...),
		ExcessSeat:      t.potManager.excessSeat,
		ExcessAmount:    t.potManager.excessAmount,
	}
	if t.dealerNode != nil {
		s.DealerSeat = t.dealerNode.SeatNum
	}
	if t.smallBlindNode != nil {
		s.SmallBlindSeat = t.smallBlindNode.SeatNum
	}
	if t.bigBlindNode != nil {
		s.BigBlindSeat = t.bigBlindNode.SeatNum
	}
	if t.curNode != nil {
		s.ActionSeat = t.curNode.SeatNum
	}

	for seatNum := uint16(0); seatNum < uint16(t.cfg.MaxPlayers); seatNum++ {
		seat := t.seatsBySeat[seatNum]
		if seat == nil {
			continue
		}
		s.Seats = append(s.Seats, SeatSnapshot{
			ID:         seat.ID,
			Seat:       seat.SeatNum,
			Stack:      seat.stack,
			Bet:        seat.bet,
			Folded:     seat.folded,
			AllIn:      seat.allIn,
			SittingOut: seat.sittingOut,
			LastAction: seat.lastAction,
			HandCards:  append([]card.Card{}, seat.handCards...),
		})
	}

	for _, pot := range t.potManager.pots {
		ps := PotSnapshot{
			Amount: pot.amount,
		}
		for seatNum := range pot.eligibleSeats {
			ps.EligibleSeats = append(ps.EligibleSeats, seatNum)
		}
		s.Pots = append(s.Pots, ps)
	}

	return s
}
