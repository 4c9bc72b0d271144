package holdem

import "pokerroom/card"

// Seat is a seated player: identity, chip stack, and current-hand state.
// It stays in the table even while folded or all-in, per the data model's
// "seat retained until the hand awards" rule.
type Seat struct {
	ID      uint64
	SeatNum uint16

	stack int64
	bet   int64

	allIn      bool
	folded     bool
	sittingOut bool
	lastAction ActionType
	hasActed   bool

	handCards card.CardList
	evalRes   *handResult
}

func (s *Seat) SeatID() uint16 { return s.SeatNum }

func (s *Seat) Stack() int64         { return s.stack }
func (s *Seat) Bet() int64           { return s.bet }
func (s *Seat) AllIn() bool          { return s.allIn }
func (s *Seat) Folded() bool         { return s.folded }
func (s *Seat) SittingOut() bool     { return s.sittingOut }
func (s *Seat) SetSittingOut(v bool) { s.sittingOut = v }
func (s *Seat) Hand() []card.Card {
	return s.handCards
}

func (s *Seat) ResetForNewHand() {
	s.bet = 0
	s.allIn = false
	s.folded = false
	s.lastAction = ActionNone
	s.hasActed = false
	s.handCards = make([]card.Card, 0, 2)
	s.evalRes = nil
}

func (s *Seat) AddHandCard(cards ...card.Card) {
	s.handCards = append(s.handCards, cards...)
}

func (s *Seat) SetHandCard(cards card.CardList) {
	s.handCards = cards
}

func (s *Seat) HandCards() card.CardList { return s.handCards }

func (s *Seat) setLastAction(a ActionType) { s.lastAction = a }
func (s *Seat) getLastAction() ActionType  { return s.lastAction }

// HasActed reports whether the seat has acted since the last full-sized
// raise reopened the betting round for it.
func (s *Seat) HasActed() bool     { return s.hasActed }
func (s *Seat) setHasActed(v bool) { s.hasActed = v }

// placeBet moves amount from stack to bet, capping at the seat's stack and
// marking the seat all-in on a short call/raise.
func (s *Seat) placeBet(amount int64) {
	if amount <= 0 {
		return
	}
	if s.stack <= amount {
		s.allIn = true
		amount = s.stack
	}
	s.stack -= amount
	s.bet += amount
}

func (s *Seat) addBet(amount int64) {
	s.bet += amount
}

func (s *Seat) resetBet() {
	s.bet = 0
}

func (s *Seat) addStack(amount int64) {
	s.stack += amount
}

func (s *Seat) setFolded(v bool) { s.folded = v }

func (s *Seat) setEvalResult(r *handResult) { s.evalRes = r }
func (s *Seat) getEvalResult() *handResult  { return s.evalRes }

// seatNode is a node in the acting-order ring: every occupied seat links to
// the next occupied seat, wrapping around the table.
type seatNode struct {
	Seat    *Seat
	SeatNum uint16
	Next    *seatNode
}

func (n *seatNode) getSeat() *Seat {
	if n == nil {
		return nil
	}
	return n.Seat
}

func (n *seatNode) getSeatNum() uint16 {
	if n == nil {
		return 0
	}
	return n.SeatNum
}

// WalkOnce walks the ring once starting at n, stopping early when fn
// returns true. It returns the node fn stopped on, or nil if fn never did.
func (n *seatNode) WalkOnce(fn func(*seatNode) bool) *seatNode {
	if n == nil {
		return nil
	}
	cur := n
	for {
		if fn(cur) {
			return cur
		}
		cur = cur.Next
		if cur == nil || cur == n {
			break
		}
	}
	return nil
}

// WalkAll walks the ring once without early exit.
func (n *seatNode) WalkAll(fn func(cur *seatNode)) {
	n.WalkOnce(func(cur *seatNode) bool {
		fn(cur)
		return false
	})
}
