package holdem

import (
	"fmt"
	"sort"
	"sync"

	"pokerroom/card"
)

// Table is the No-Limit Hold'em table state machine: seats, the deck,
// blinds/antes, and betting-round progression for a single table. All
// mutating methods except SettleShowdown take t.mu, matching the Room
// Engine's "serialize every mutation through one lock" rule; SettleShowdown
// does not lock and is reached from endHandLocked with t.mu already held.
type Table struct {
	cfg Config

	mu sync.Mutex

	seatsBySeat map[uint16]*Seat
	seatNodes   map[uint16]*seatNode

	round          uint16
	phase          Phase
	communityCards card.CardList
	stockCards     card.CardList

	dealerNode     *seatNode
	smallBlindNode *seatNode
	bigBlindNode   *seatNode
	curNode        *seatNode
	dealerSeat     uint16

	activeCount int
	allinCount  int

	NeedActionCount int
	MinRaise        int64
	CurrentRaiser   uint16

	curBet           int64
	lastPlayerAction ActionType
	validActions     []ActionType

	noShowDown bool
	ended      bool

	potManager potManager

	lastSettlement *SettlementResult
}

func NewTable(cfg Config) (*Table, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	t := &Table{
		cfg:           cfg,
		seatsBySeat:   make(map[uint16]*Seat, cfg.MaxPlayers),
		seatNodes:     make(map[uint16]*seatNode, cfg.MaxPlayers),
		phase:         PhaseWaiting,
		CurrentRaiser: InvalidSeat,
	}
	t.potManager.resetPots()
	return t, nil
}

// SitDown seats a player with an initial stack.
func (t *Table) SitDown(seatNum uint16, playerID uint64, stack int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seatNum >= uint16(t.cfg.MaxPlayers) {
		return fmt.Errorf("invalid seat %d", seatNum)
	}
	if stack < 0 {
		return fmt.Errorf("stack must be >= 0")
	}
	if t.seatsBySeat[seatNum] != nil {
		return fmt.Errorf("seat %d already occupied", seatNum)
	}
	t.seatsBySeat[seatNum] = &Seat{
		ID:      playerID,
		SeatNum: seatNum,
		stack:   stack,
	}
	return nil
}

// StandUp removes a seated player between hands. A seat committed to the
// current hand cannot stand up until the hand ends and is awarded.
func (t *Table) StandUp(seatNum uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seatNum >= uint16(t.cfg.MaxPlayers) {
		return fmt.Errorf("invalid seat %d", seatNum)
	}
	if t.seatsBySeat[seatNum] == nil {
		return fmt.Errorf("seat %d is empty", seatNum)
	}
	if t.round > 0 && !t.ended {
		return ErrHandInProgress
	}

	delete(t.seatsBySeat, seatNum)
	delete(t.seatNodes, seatNum)

	if t.dealerNode != nil && t.dealerNode.SeatNum == seatNum {
		t.dealerNode = nil
	}
	if t.smallBlindNode != nil && t.smallBlindNode.SeatNum == seatNum {
		t.smallBlindNode = nil
	}
	if t.bigBlindNode != nil && t.bigBlindNode.SeatNum == seatNum {
		t.bigBlindNode = nil
	}
	if t.curNode != nil && t.curNode.SeatNum == seatNum {
		t.curNode = nil
	}

	return nil
}

func (t *Table) Seat(seatNum uint16) *Seat {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seatsBySeat[seatNum]
}

// StartHand starts a new hand at this table.
func (t *Table) StartHand() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ended = false
	t.lastSettlement = nil
	t.noShowDown = false
	t.communityCards = nil

	active := make([]*Seat, 0, t.cfg.MaxPlayers)
	for seatNum := uint16(0); seatNum < uint16(t.cfg.MaxPlayers); seatNum++ {
		s := t.seatsBySeat[seatNum]
		if s == nil {
			continue
		}
		if s.stack <= 0 || s.sittingOut {
			// Not dealt into this hand: drop cards left from an earlier one.
			s.SetHandCard(nil)
			continue
		}
		s.ResetForNewHand()
		active = append(active, s)
	}
	if len(active) < t.cfg.MinPlayers {
		return fmt.Errorf("not enough players: %d < %d", len(active), t.cfg.MinPlayers)
	}

	t.round++

	t.potManager.resetPots()
	t.activeCount = len(active)
	t.allinCount = 0
	t.curBet = 0
	t.MinRaise = 0
	t.NeedActionCount = 0
	t.CurrentRaiser = InvalidSeat
	t.lastPlayerAction = ActionNone

	t.seatNodes = make(map[uint16]*seatNode, len(active))
	var first, last *seatNode
	for seatNum := uint16(0); seatNum < uint16(t.cfg.MaxPlayers); seatNum++ {
		s := t.seatsBySeat[seatNum]
		if s == nil || s.stack <= 0 || s.sittingOut {
			continue
		}
		node := &seatNode{SeatNum: seatNum, Seat: s}
		t.seatNodes[seatNum] = node
		if first == nil {
			first = node
		}
		if last != nil {
			last.Next = node
		}
		last = node
	}
	if first != nil && last != nil {
		last.Next = first
	}

	if t.cfg.ForcedDealerSeat != nil {
		if _, ok := t.seatNodes[*t.cfg.ForcedDealerSeat]; !ok {
			return fmt.Errorf("forced dealer seat not active: %d", *t.cfg.ForcedDealerSeat)
		}
	}

	t.shuffle()
	t.selectDealer()
	t.selectBlindsByDealer(t.dealerNode)
	t.dealHoleCards()

	t.phase = PhaseWaiting
	if t.autoBetAntes() {
		if err := t.advanceToShowdownLocked(); err != nil {
			return err
		}
		_, err := t.endHandLocked()
		return err
	}

	if t.autoBetBlinds() {
		if err := t.advanceToShowdownLocked(); err != nil {
			return err
		}
		_, err := t.endHandLocked()
		return err
	}

	t.curNode = t.curNode.WalkOnce(func(cur *seatNode) bool {
		return cur.Seat.stack > 0 && !cur.Seat.folded
	})

	t.phase = PhasePreflop
	t.onPhaseStartLocked()
	return nil
}

// LegalActions is a pure projection of the current state for one seat.
func (t *Table) LegalActions(seatNum uint16) ([]ActionType, int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ended {
		return nil, 0, ErrHandEnded
	}
	s := t.seatsBySeat[seatNum]
	if s == nil {
		return nil, 0, fmt.Errorf("seat not found")
	}
	acts := t.calcNextValidActions(s)
	minTotalRaiseTo := t.curBet + t.MinRaise
	if t.lastPlayerAction == ActionNone || t.lastPlayerAction == ActionCheck {
		minTotalRaiseTo = t.cfg.BigBlind
	}
	return acts, minTotalRaiseTo, nil
}

// Act applies an action for the current seat. amount is that seat's total
// bet for the round so far (not a delta). A non-nil handEnd means the hand
// just ended and carries its settlement.
func (t *Table) Act(seatNum uint16, action ActionType, amount int64) (handEnd *SettlementResult, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ended {
		return nil, ErrHandEnded
	}

	before := t.totalChipsLocked()
	defer func() {
		if err != nil {
			return
		}
		if after := t.totalChipsLocked(); after != before {
			err = ErrInvalidState(fmt.Sprintf("chip conservation violated: before=%d after=%d", before, after))
		}
	}()

	if t.curNode == nil || t.curNode.Seat == nil {
		return nil, ErrInvalidState("no current seat")
	}
	if seatNum != t.curNode.SeatNum {
		return nil, ErrOutOfTurn
	}

	seat := t.curNode.Seat

	legal := t.calcNextValidActions(seat)
	valid := false
	for _, a := range legal {
		if a == action {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("invalid action %s", action)
	}

	if amount < seat.bet && action != ActionFold {
		if action != ActionCheck {
			return nil, fmt.Errorf("invalid amount %d < current bet %d", amount, seat.bet)
		}
		amount = seat.bet
	}

	if amount-seat.bet > seat.stack {
		amount = seat.stack + seat.bet
		action = ActionAllIn
	}

	if amount > t.curBet {
		validRaise := true
		switch action {
		case ActionAllIn:
			// A short all-in that doesn't meet the min-raise doesn't reopen
			// the action for players who already acted this round.
			if amount-t.curBet < t.MinRaise {
				validRaise = false
			}
		case ActionBet:
			if amount-t.curBet < t.cfg.BigBlind {
				return nil, fmt.Errorf("invalid bet amount")
			}
		case ActionRaise:
			if amount-t.curBet < t.MinRaise {
				return nil, fmt.Errorf("invalid raise amount")
			}
		}

		if validRaise {
			t.MinRaise = amount - t.curBet
			t.CurrentRaiser = seatNum
			t.resetHasActedLocked(seatNum)
		}
		t.curBet = amount
		t.setNeedActionCountLocked()
	}

	seat.setLastAction(action)
	seat.setHasActed(true)
	switch action {
	case ActionBet, ActionRaise:
		seat.placeBet(amount - seat.bet)
	case ActionCall:
		if amount != t.curBet {
			available := seat.stack + seat.bet
			if available > t.curBet {
				amount = t.curBet
			} else {
				return nil, fmt.Errorf("invalid call amount")
			}
		}
		seat.placeBet(amount - seat.bet)
	case ActionCheck:
		// no-op
	case ActionFold:
		seat.setFolded(true)
		t.activeCount--
		for i := range t.potManager.pots {
			delete(t.potManager.pots[i].eligibleSeats, seatNum)
		}
		if t.activeCount <= 1 {
			t.noShowDown = true
			return t.endHandLocked()
		}
	case ActionAllIn:
		seat.placeBet(seat.stack)
		t.allinCount++
	}

	if action != ActionFold {
		t.lastPlayerAction = action
	}

	t.NeedActionCount--
	nextNode, bettingEnd := t.calcNextActionPosAndBettingEndLocked()
	t.curNode = nextNode

	if bettingEnd {
		t.validActions = nil
		t.collectBetsLocked()

		if t.checkDirectShowdownLocked() || t.phase == PhaseRiver {
			if err := t.advanceToShowdownLocked(); err != nil {
				return nil, err
			}
			return t.endHandLocked()
		}

		t.phase++
		t.dealCommunityCardsLocked()
		t.onPhaseStartLocked()
		return nil, nil
	}

	if t.curNode == nil || t.curNode.Seat == nil {
		return nil, ErrInvalidState("next seat not found")
	}
	t.validActions = t.calcNextValidActions(t.curNode.Seat)
	return nil, nil
}

func (t *Table) onPhaseStartLocked() {
	t.setNeedActionCountLocked()
	t.CurrentRaiser = InvalidSeat
	for _, s := range t.seatsBySeat {
		if s != nil {
			s.setLastAction(ActionNone)
			s.setHasActed(false)
		}
	}

	switch t.phase {
	case PhasePreflop:
		// Blinds are treated as a bet; MinRaise is already set by the BB.
		t.lastPlayerAction = ActionBet
	default:
		t.lastPlayerAction = ActionNone
		t.MinRaise = t.cfg.BigBlind
	}

	if t.curNode != nil && t.curNode.Seat != nil {
		t.validActions = t.calcNextValidActions(t.curNode.Seat)
	}
}

func (t *Table) shuffle() {
	cards := make([]card.Card, len(HoldemCards))
	copy(cards, HoldemCards)
	deck := card.CardList(cards)
	if len(t.cfg.DeckOverride) == len(HoldemCards) {
		deck = card.CardList(append([]card.Card(nil), t.cfg.DeckOverride...))
	} else {
		deck.Shuffle()
	}
	t.stockCards.Init(deck)
}

func (t *Table) selectDealer() {
	nodes := make([]*seatNode, 0, len(t.seatNodes))
	for _, n := range t.seatNodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].SeatNum < nodes[j].SeatNum })
	if len(nodes) == 0 {
		t.dealerNode = nil
		return
	}

	if t.cfg.ForcedDealerSeat != nil {
		if n, ok := t.seatNodes[*t.cfg.ForcedDealerSeat]; ok {
			t.dealerNode = n
			t.dealerSeat = n.SeatNum
			return
		}
	}

	if t.round == 1 || t.dealerNode == nil {
		t.dealerNode = nodes[cryptoChoice(len(nodes))]
		t.dealerSeat = t.dealerNode.SeatNum
		return
	}

	prevSeat := t.dealerNode.SeatNum
	if prevNode, ok := t.seatNodes[prevSeat]; ok && prevNode.Next != nil {
		t.dealerNode = prevNode.Next
		t.dealerSeat = t.dealerNode.SeatNum
		return
	}

	t.dealerNode = nodes[cryptoChoice(len(nodes))]
	t.dealerSeat = t.dealerNode.SeatNum
}

func (t *Table) selectBlindsByDealer(dealer *seatNode) {
	if dealer == nil {
		return
	}
	if t.activeCount == 2 {
		t.dealerNode = dealer
		t.smallBlindNode = dealer
		t.bigBlindNode = dealer.Next
		t.curNode = dealer
	} else {
		t.dealerNode = dealer
		t.smallBlindNode = dealer.Next
		t.bigBlindNode = t.smallBlindNode.Next
		t.curNode = t.bigBlindNode.Next
	}
}

func (t *Table) dealHoleCards() {
	if t.smallBlindNode == nil {
		return
	}
	for i := 0; i < 2; i++ {
		t.smallBlindNode.WalkAll(func(cur *seatNode) {
			cards, ok := t.stockCards.PopCards(1)
			if !ok {
				panic("deck underflow")
			}
			cur.Seat.AddHandCard(cards...)
		})
	}
}

func (t *Table) dealCommunityCardsLocked() {
	shouldDeal := 0
	switch t.phase {
	case PhaseFlop:
		shouldDeal = 3
	case PhaseTurn, PhaseRiver:
		shouldDeal = 1
	case PhaseShowdown:
		shouldDeal = 5 - len(t.communityCards)
	}
	if shouldDeal <= 0 {
		return
	}
	if cards, ok := t.stockCards.PopCards(shouldDeal); ok {
		t.communityCards = append(t.communityCards, cards...)
	}
}

func (t *Table) autoBetAntes() bool {
	if t.cfg.Ante == 0 {
		return false
	}
	notAllIn := 0
	for _, s := range t.seatsBySeat {
		if s == nil || s.stack <= 0 {
			continue
		}
		s.placeBet(t.cfg.Ante)
		if s.stack > 0 {
			notAllIn++
		}
	}
	t.allinCount = t.activeCount - notAllIn
	t.collectBetsLocked()
	return notAllIn <= 1
}

func (t *Table) autoBetBlinds() bool {
	if t.smallBlindNode != nil && t.smallBlindNode.Seat.stack > 0 && t.cfg.SmallBlind > 0 {
		t.smallBlindNode.Seat.placeBet(t.cfg.SmallBlind)
		if t.smallBlindNode.Seat.stack <= 0 {
			t.allinCount++
		}
	}
	if t.bigBlindNode != nil && t.bigBlindNode.Seat.stack > 0 {
		t.bigBlindNode.Seat.placeBet(t.cfg.BigBlind)
		if t.bigBlindNode.Seat.stack <= 0 {
			t.allinCount++
		}
	}

	if t.activeCount == t.allinCount {
		return true
	}

	t.lastPlayerAction = ActionBet
	t.MinRaise = t.cfg.BigBlind
	t.curBet = t.cfg.BigBlind
	return false
}

func (t *Table) collectBetsLocked() {
	seatsWithBets := make([]*Seat, 0, t.activeCount)
	for seatNum := uint16(0); seatNum < uint16(t.cfg.MaxPlayers); seatNum++ {
		s := t.seatsBySeat[seatNum]
		if s == nil {
			continue
		}
		if s.bet > 0 {
			seatsWithBets = append(seatsWithBets, s)
		}
	}
	t.potManager.calcPotsByPlayerBets(seatsWithBets)
	for _, s := range seatsWithBets {
		s.resetBet()
	}
	t.curBet = 0
}

func (t *Table) setNeedActionCountLocked() {
	t.NeedActionCount = t.activeCount - t.allinCount
}

// resetHasActedLocked clears has-acted for every in-hand, not-all-in seat
// except the one that just made a full-sized raise, giving every other
// live seat a fresh right to act on this raise.
func (t *Table) resetHasActedLocked(raiserSeat uint16) {
	for seatNum, s := range t.seatsBySeat {
		if s == nil || seatNum == raiserSeat || s.folded || s.allIn {
			continue
		}
		s.setHasActed(false)
	}
}

// totalChipsLocked sums every chip currently on the table: each seat's
// stack, each seat's current-round bet, and every pot's amount. This must
// stay invariant across any single Act() mutation.
func (t *Table) totalChipsLocked() int64 {
	var total int64
	for _, s := range t.seatsBySeat {
		if s == nil {
			continue
		}
		total += s.stack + s.bet
	}
	for _, p := range t.potManager.pots {
		total += p.amount
	}
	return total
}

// calcNextValidActions must be a pure projection of the current state.
func (t *Table) calcNextValidActions(nextSeat *Seat) []ActionType {
	nextValid := []ActionType{ActionAllIn, ActionFold}

	canCall := false

	switch t.lastPlayerAction {
	case ActionCheck, ActionNone:
		nextValid = append(nextValid, ActionCheck)
		if nextSeat.stack > t.cfg.BigBlind {
			nextValid = append(nextValid, ActionBet)
		}

	case ActionBet, ActionRaise, ActionAllIn, ActionCall:
		available := nextSeat.stack + nextSeat.bet

		if nextSeat.bet == t.curBet {
			nextValid = append(nextValid, ActionCheck)
		} else if available > t.curBet {
			nextValid = append(nextValid, ActionCall)
			canCall = true
		}

		canRaise := available > t.curBet+t.MinRaise
		isReopen := !nextSeat.HasActed()
		if canRaise && isReopen && t.activeCount-t.allinCount > 1 {
			nextValid = append(nextValid, ActionRaise)
		}

		// An all-in that can't reopen action isn't offered once action is locked.
		if (canCall && t.activeCount-t.allinCount <= 1) || (canRaise && !isReopen) {
			if len(nextValid) > 0 {
				nextValid = nextValid[1:]
			}
		}
	}
	return nextValid
}

// calcNextActionPosAndBettingEndLocked finds the next acting seat and
// reports whether the betting round is over.
func (t *Table) calcNextActionPosAndBettingEndLocked() (*seatNode, bool) {
	if t.NeedActionCount == 0 {
		if t.phase == PhaseRiver {
			return nil, true
		}
		var first *seatNode
		// Heads-up first-to-act depends on the hand's starting seat count,
		// not the live activeCount (which shrinks as players fold).
		if len(t.seatNodes) == 2 {
			first = t.bigBlindNode
		} else {
			first = t.smallBlindNode
		}
		node := first.WalkOnce(func(n *seatNode) bool {
			return n.Seat != nil && !n.Seat.folded && n.Seat.stack > 0
		})
		return node, true
	}

	nextNode := t.curNode.Next.WalkOnce(func(n *seatNode) bool {
		return n.Seat != nil && !n.Seat.folded && n.Seat.stack > 0
	})
	if nextNode != nil {
		if nextNode.Seat.bet >= t.curBet && t.NeedActionCount == 1 && t.activeCount-t.allinCount == 1 {
			return nextNode, true
		}
		return nextNode, false
	}
	return nil, true
}

func (t *Table) checkDirectShowdownLocked() bool {
	return t.allinCount >= t.activeCount-1
}

func (t *Table) advanceToShowdownLocked() error {
	t.phase = PhaseShowdown
	t.dealCommunityCardsLocked()
	return nil
}

func (t *Table) endHandLocked() (*SettlementResult, error) {
	t.phase = PhaseHandOver
	settle, err := t.SettleShowdown()
	if err != nil {
		return nil, err
	}
	t.lastSettlement = settle
	t.potManager.resetPots()
	t.ended = true
	return settle, nil
}
