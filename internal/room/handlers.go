package room

import (
	"errors"
	"fmt"
	"time"

	"pokerroom/holdem"
	"pokerroom/internal/metrics"
)

func (r *Room) handleSpectate(e Event) error {
	name := normalizeName(e.Name)
	now := time.Now()

	if seat, seated := r.nameSeat[name]; name != "" && seated {
		return r.rebindSeatLocked(seat, e.ConnID)
	}

	c, ok := r.conns[e.ConnID]
	if !ok {
		c = &conn{ID: e.ConnID, Seat: holdem.InvalidSeat}
		r.conns[e.ConnID] = c
	}
	c.Name = name
	c.Online = true
	c.LastSeen = now
	r.updateEmptySinceLocked(now)

	r.sendTo(e.ConnID, "spectating", SpectatingData{
		RoomID:    r.ID,
		GameState: r.gameStateFor(c.Seat),
	})
	return nil
}

// rebindSeatLocked reattaches a live connection to a seat already held by
// name — the reconnect path spec.md's Non-goals leaves in scope ("reconnect
// with in-hand action pickup" is out, re-subscribing to live state isn't).
// A dropped socket gets a brand-new connID from the gateway on its next
// WebSocket upgrade, so a reconnect is identified by seat/name, not by
// connID continuity; this replaces the old connID's stale conn entry with
// the new one.
func (r *Room) rebindSeatLocked(seat uint16, connID uint64) error {
	ownerID := r.seatOwner[seat]
	if owner, ok := r.conns[ownerID]; ok && owner.Online && ownerID != connID {
		return fmt.Errorf("seat %d already has a live connection", seat)
	}
	if ownerID != 0 && ownerID != connID {
		delete(r.conns, ownerID)
	}

	now := time.Now()
	r.conns[connID] = &conn{ID: connID, Name: r.seatName[seat], Seat: seat, Online: true, LastSeen: now}
	r.seatOwner[seat] = connID
	r.updateEmptySinceLocked(now)

	r.sendTo(connID, "joined", JoinedData{Seat: seat})
	r.broadcastGameStateLocked()
	return nil
}

func (r *Room) handleJoin(e Event) error {
	name := normalizeName(e.Name)
	if name == "" {
		return fmt.Errorf("name required")
	}
	if e.Seat >= uint16(r.cfg.MaxPlayers) {
		return fmt.Errorf("invalid seat %d", e.Seat)
	}
	if existingSeat, dup := r.nameSeat[name]; dup {
		if existingSeat != e.Seat {
			return fmt.Errorf("name %q is already seated at seat %d", name, existingSeat)
		}
		return r.rebindSeatLocked(existingSeat, e.ConnID)
	}
	if _, taken := r.seatName[e.Seat]; taken {
		return fmt.Errorf("seat %d is occupied", e.Seat)
	}
	if e.Amount < r.cfg.MinBuyIn || e.Amount > r.cfg.MaxBuyIn {
		return fmt.Errorf("invalid buy-in %d (range %d-%d)", e.Amount, r.cfg.MinBuyIn, r.cfg.MaxBuyIn)
	}

	playerID := r.nextPlayerID()
	if err := r.table.SitDown(e.Seat, playerID, e.Amount); err != nil {
		return err
	}

	now := time.Now()
	r.conns[e.ConnID] = &conn{ID: e.ConnID, Name: name, Seat: e.Seat, Online: true, LastSeen: now}
	r.seatOwner[e.Seat] = e.ConnID
	r.seatName[e.Seat] = name
	r.nameSeat[name] = e.Seat
	r.updateEmptySinceLocked(now)

	r.log.WithFields(map[string]any{"name": name, "seat": e.Seat, "buy_in": e.Amount}).Info("player joined")

	r.broadcastAll("player_joined", PlayerJoinedData{Name: name, Seat: e.Seat, Stack: e.Amount})
	r.sendTo(e.ConnID, "joined", JoinedData{Seat: e.Seat})
	r.broadcastGameStateLocked()

	r.tryStartHandLocked(now)
	return nil
}

func (r *Room) handleLeave(e Event) error {
	c, ok := r.conns[e.ConnID]
	if !ok {
		return nil
	}
	seat := c.Seat
	delete(r.conns, e.ConnID)

	if seat == holdem.InvalidSeat {
		r.updateEmptySinceLocked(time.Now())
		return nil
	}

	name := r.seatName[seat]
	if err := r.table.StandUp(seat); err != nil {
		if errors.Is(err, holdem.ErrHandInProgress) {
			// Fold immediately if it's this seat's turn; otherwise mark it
			// for removal the moment action reaches it (see
			// foldPendingLeavesLocked), per spec.md §4.4 leave() semantics:
			// "folded immediately ... removed from seating after hand award".
			snap := r.table.Snapshot()
			r.pendingLeaveSeat(seat)
			if snap.ActionSeat == seat {
				r.foldSeatLocked(seat)
			}
			r.updateEmptySinceLocked(time.Now())
			r.broadcastAll("player_disconnected", PlayerDisconnectedData{Name: name, Seat: seat})
			return nil
		}
		return err
	}

	delete(r.seatOwner, seat)
	delete(r.seatName, seat)
	delete(r.nameSeat, name)
	if r.pendingLeave != nil {
		delete(r.pendingLeave, seat)
	}
	r.updateEmptySinceLocked(time.Now())
	if len(r.seatName) < 2 {
		r.nextHandAt = time.Time{}
	}

	r.broadcastAll("player_left", PlayerLeftData{Name: name, Seat: seat})
	r.broadcastGameStateLocked()
	return nil
}

func (r *Room) handleStartGame(e Event) error {
	snap := r.table.Snapshot()
	if snap.Phase != holdem.PhaseWaiting && !snap.Ended && snap.Round > 0 {
		return fmt.Errorf("hand already in progress")
	}
	return r.startHandLocked()
}

func (r *Room) startHandLocked() error {
	if len(r.seatName) < 2 {
		return fmt.Errorf("not enough players to start a hand")
	}
	r.nextHandAt = time.Time{}
	r.clearActionTimeoutLocked()

	preSnap := r.table.Snapshot()
	r.handStartStacks = make(map[uint16]int64, len(preSnap.Seats))
	for _, s := range preSnap.Seats {
		r.handStartStacks[s.Seat] = s.Stack
	}

	if err := r.table.StartHand(); err != nil {
		return err
	}
	r.handNumber++
	r.actionLog = nil
	metrics.HandsStarted.Inc()

	snap := r.table.Snapshot()
	r.broadcastAll("hand_started", HandStartedData{HandNumber: snap.Round})
	r.broadcastGameStateLocked()
	if snap.ActionSeat != holdem.InvalidSeat {
		r.setActionTimeoutLocked(snap.ActionSeat, time.Now())
	}
	r.foldPendingLeavesLocked()
	return nil
}

func (r *Room) handleAction(e Event) error {
	start := time.Now()
	defer func() {
		metrics.ActionLatency.WithLabelValues(actionWire(e.Action)).Observe(time.Since(start).Seconds())
	}()

	c, ok := r.conns[e.ConnID]
	if !ok || c.Seat == holdem.InvalidSeat {
		return fmt.Errorf("not seated")
	}
	snap := r.table.Snapshot()
	if snap.ActionSeat != c.Seat {
		return fmt.Errorf("not your turn")
	}

	amount := e.Amount
	if e.Action == holdem.ActionCall {
		amount = snap.CurBet
	}

	result, err := r.table.Act(c.Seat, e.Action, amount)
	if err != nil {
		return err
	}
	if r.actionTimeoutSeat == c.Seat {
		r.clearActionTimeoutLocked()
	}

	r.broadcastAll("player_action", PlayerActionData{Name: c.Name, Kind: actionWire(e.Action), Amount: amount})
	r.actionLog = append(r.actionLog, ActionLogEntry{
		PlayerName: c.Name,
		Action:     actionWire(e.Action),
		Amount:     amount,
		Phase:      phaseWire(snap.Phase),
		Sequence:   len(r.actionLog),
	})

	if result != nil {
		r.handleHandEndLocked(result)
		r.broadcastGameStateLocked()
		return nil
	}

	r.broadcastGameStateLocked()
	after := r.table.Snapshot()
	if after.ActionSeat != holdem.InvalidSeat {
		r.setActionTimeoutLocked(after.ActionSeat, time.Now())
	}
	r.foldPendingLeavesLocked()
	return nil
}

func (r *Room) handleSitOut(e Event) error {
	c, ok := r.conns[e.ConnID]
	if !ok || c.Seat == holdem.InvalidSeat {
		return fmt.Errorf("not seated")
	}
	s := r.table.Seat(c.Seat)
	if s == nil {
		return fmt.Errorf("seat %d is empty", c.Seat)
	}
	s.SetSittingOut(!s.SittingOut())
	r.broadcastGameStateLocked()
	return nil
}

func (r *Room) handleChat(e Event) error {
	c, ok := r.conns[e.ConnID]
	if !ok {
		return fmt.Errorf("not connected")
	}
	name := c.Name
	if name == "" {
		name = "spectator"
	}
	r.broadcastAll("chat", ChatBroadcastData{Name: name, Text: e.Text})
	return nil
}

// handleRunTwiceChoice records a seat's run-it-twice vote. The prompt
// itself is never emitted (see DESIGN.md: the table engine resolves
// all-in runouts synchronously, before the room can pause for consent),
// so this is accepted for wire-compatibility but has no resolution path.
func (r *Room) handleRunTwiceChoice(e Event) error {
	c, ok := r.conns[e.ConnID]
	if !ok || c.Seat == holdem.InvalidSeat {
		return fmt.Errorf("not seated")
	}
	if r.runTwiceVotes == nil {
		r.runTwiceVotes = make(map[uint16]bool)
	}
	r.runTwiceVotes[c.Seat] = e.RunTwice
	return nil
}

// handleSignal forwards a WebRTC signaling envelope to the named target's
// live connection, unparsed, per spec.md §6. The room only resolves
// routing (which connID currently owns that display name); it never reads
// SignalData's contents.
func (r *Room) handleSignal(e Event) error {
	target := normalizeName(e.Target)
	if target == "" {
		return fmt.Errorf("signal target required")
	}
	for connID, c := range r.conns {
		if c.Online && c.Name == target {
			r.sendTo(connID, e.SignalKind, SignalForwardData{From: e.Name, Payload: e.SignalData})
			return nil
		}
	}
	return fmt.Errorf("target %q is not connected", target)
}

func (r *Room) handleConnLost(e Event) error {
	c, ok := r.conns[e.ConnID]
	if !ok {
		return nil
	}
	c.Online = false
	c.LastSeen = e.Timestamp
	if c.LastSeen.IsZero() {
		c.LastSeen = time.Now()
	}
	return nil
}

func (r *Room) handleHandEndLocked(result *holdem.SettlementResult) {
	snap := r.table.Snapshot()
	names := make(map[uint16]string, len(r.seatName))
	for seat, name := range r.seatName {
		names[seat] = name
	}

	var winners []string
	var potTotal int64
	for _, pr := range result.PotResults {
		potTotal += pr.Amount
		for _, w := range pr.Winners {
			winners = append(winners, names[w])
		}
	}
	var handResults []HandResultView
	for _, sr := range result.SeatResults {
		nm := names[sr.Seat]
		if nm == "" || sr.Description == "" {
			continue
		}
		handResults = append(handResults, HandResultView{PlayerName: nm, Description: sr.Description})
	}
	playerStacks := make(map[string]int64, len(snap.Seats))
	for _, s := range snap.Seats {
		if nm := names[s.Seat]; nm != "" {
			playerStacks[nm] = s.Stack
		}
	}

	r.broadcastAll("hand_ended", HandEndedData{
		Winners:      winners,
		Pot:          potTotal,
		HandResults:  handResults,
		PlayerStacks: playerStacks,
	})

	r.clearActionTimeoutLocked()
	r.dispatchHandEndHooksLocked(result, names)
	r.removeBustedSeatsLocked()
	r.cleanupPendingLeavesLocked()

	if len(r.seatName) >= 2 {
		delay := foldHandDelay
		if hasShowdownSeats(result) {
			delay = showdownHandDelay
		}
		r.nextHandAt = time.Now().Add(delay)
	} else {
		r.nextHandAt = time.Time{}
	}
}

func hasShowdownSeats(result *holdem.SettlementResult) bool {
	return len(result.SeatResults) > 1
}

func copyStackMap(m map[uint16]int64) map[uint16]int64 {
	out := make(map[uint16]int64, len(m))
	for seat, stack := range m {
		out[seat] = stack
	}
	return out
}

func (r *Room) dispatchHandEndHooksLocked(result *holdem.SettlementResult, names map[uint16]string) {
	if len(r.handEndHooks) == 0 {
		return
	}
	info := HandEndInfo{
		RoomID:      r.ID,
		HandNum:     r.handNumber,
		Snapshot:    r.table.Snapshot(),
		Result:      result,
		Names:       names,
		Actions:     append([]ActionLogEntry(nil), r.actionLog...),
		StartStacks: copyStackMap(r.handStartStacks),
	}
	hooks := append([]HandEndHook(nil), r.handEndHooks...)
	for _, h := range hooks {
		hook := h
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Errorf("hand end hook panic: %v", rec)
				}
			}()
			hook(info)
		}()
	}
}

// removeBustedSeatsLocked drops zero-stack, not-pending seats from the
// room's seating maps so they become spectators, per spec.md §4.3 "Next
// hand: remove busted players from seating."
func (r *Room) removeBustedSeatsLocked() {
	snap := r.table.Snapshot()
	for _, s := range snap.Seats {
		if s.Stack > 0 {
			continue
		}
		name := r.seatName[s.Seat]
		if name == "" {
			continue
		}
		_ = r.table.StandUp(s.Seat)
		delete(r.seatOwner, s.Seat)
		delete(r.seatName, s.Seat)
		delete(r.nameSeat, name)
		if c, ok := r.conns[r.connIDBySeat(s.Seat)]; ok {
			c.Seat = holdem.InvalidSeat
		}
		r.broadcastAll("player_left", PlayerLeftData{Name: name, Seat: s.Seat})
	}
}

func (r *Room) connIDBySeat(seat uint16) uint64 {
	for id, c := range r.conns {
		if c.Seat == seat {
			return id
		}
	}
	return 0
}

func (r *Room) handleTimeoutLocked(now time.Time) {
	if r.actionTimeoutSeat == holdem.InvalidSeat || r.actionDeadline.IsZero() {
		return
	}
	if now.Before(r.actionDeadline) {
		return
	}
	seat := r.actionTimeoutSeat
	r.clearActionTimeoutLocked()

	snap := r.table.Snapshot()
	if snap.ActionSeat != seat {
		return
	}
	action, amount, err := r.pickTimeoutActionLocked(seat, snap)
	if err != nil {
		return
	}
	name := r.seatName[seat]
	r.log.WithFields(map[string]any{"seat": seat, "name": name, "action": actionWire(action)}).Info("action timeout")

	result, err := r.table.Act(seat, action, amount)
	if err != nil {
		return
	}
	r.broadcastAll("player_action", PlayerActionData{Name: name, Kind: actionWire(action), Amount: amount})
	if result != nil {
		r.handleHandEndLocked(result)
		r.broadcastGameStateLocked()
		return
	}
	r.broadcastGameStateLocked()
	after := r.table.Snapshot()
	if after.ActionSeat != holdem.InvalidSeat {
		r.setActionTimeoutLocked(after.ActionSeat, now)
	}
	r.foldPendingLeavesLocked()
}

// pickTimeoutActionLocked prefers check, then fold, then call, mirroring
// the teacher's auto-play preference order.
func (r *Room) pickTimeoutActionLocked(seat uint16, snap holdem.Snapshot) (holdem.ActionType, int64, error) {
	acts, _, err := r.table.LegalActions(seat)
	if err != nil {
		return 0, 0, err
	}
	if hasAction(acts, holdem.ActionCheck) {
		return holdem.ActionCheck, 0, nil
	}
	if hasAction(acts, holdem.ActionFold) {
		return holdem.ActionFold, 0, nil
	}
	if hasAction(acts, holdem.ActionCall) {
		return holdem.ActionCall, snap.CurBet, nil
	}
	if hasAction(acts, holdem.ActionAllIn) {
		return holdem.ActionAllIn, snap.CurBet, nil
	}
	if len(acts) == 0 {
		return 0, 0, fmt.Errorf("no legal actions")
	}
	return acts[0], snap.CurBet, nil
}

func (r *Room) releaseOfflineSeatsLocked(now time.Time) {
	for connID, c := range r.conns {
		if c.Online || c.Seat == holdem.InvalidSeat {
			continue
		}
		if now.Sub(c.LastSeen) < offlineSeatTTL {
			continue
		}
		if err := r.table.StandUp(c.Seat); err != nil {
			c.LastSeen = now
			continue
		}
		name := r.seatName[c.Seat]
		delete(r.seatOwner, c.Seat)
		delete(r.seatName, c.Seat)
		delete(r.nameSeat, name)
		delete(r.conns, connID)
		if len(r.seatName) < 2 {
			r.nextHandAt = time.Time{}
		}
		r.broadcastAll("player_left", PlayerLeftData{Name: name, Seat: c.Seat})
	}
}

func (r *Room) pendingLeaveSeat(seat uint16) {
	if r.pendingLeave == nil {
		r.pendingLeave = make(map[uint16]bool)
	}
	r.pendingLeave[seat] = true
}

// foldSeatLocked applies an immediate fold for a seat that just called
// leave() while it was already the acting seat.
func (r *Room) foldSeatLocked(seat uint16) {
	result, err := r.table.Act(seat, holdem.ActionFold, 0)
	if err != nil {
		return
	}
	name := r.seatName[seat]
	r.broadcastAll("player_action", PlayerActionData{Name: name, Kind: "fold", Amount: 0})
	if result != nil {
		r.handleHandEndLocked(result)
	}
	r.broadcastGameStateLocked()
	after := r.table.Snapshot()
	if result == nil && after.ActionSeat != holdem.InvalidSeat {
		r.setActionTimeoutLocked(after.ActionSeat, time.Now())
	}
}

// foldPendingLeavesLocked auto-folds the acting seat, and any seat that
// becomes the acting seat as a consequence, for as long as it belongs to
// someone who already called leave() mid-hand.
func (r *Room) foldPendingLeavesLocked() {
	if len(r.pendingLeave) == 0 {
		return
	}
	for i := 0; i < len(r.seatName)+1; i++ {
		snap := r.table.Snapshot()
		if snap.Ended || snap.ActionSeat == holdem.InvalidSeat {
			return
		}
		if !r.pendingLeave[snap.ActionSeat] {
			return
		}
		r.clearActionTimeoutLocked()
		r.foldSeatLocked(snap.ActionSeat)
	}
}

// cleanupPendingLeavesLocked drops seats marked pendingLeave once the hand
// that committed them has been awarded.
func (r *Room) cleanupPendingLeavesLocked() {
	if len(r.pendingLeave) == 0 {
		return
	}
	for seat := range r.pendingLeave {
		name := r.seatName[seat]
		if err := r.table.StandUp(seat); err != nil {
			continue
		}
		delete(r.seatOwner, seat)
		delete(r.seatName, seat)
		delete(r.nameSeat, name)
		delete(r.pendingLeave, seat)
		if c := r.connIDBySeat(seat); c != 0 {
			if cn, ok := r.conns[c]; ok {
				cn.Seat = holdem.InvalidSeat
			}
		}
		r.broadcastAll("player_left", PlayerLeftData{Name: name, Seat: seat})
	}
}

func (r *Room) tryStartHandLocked(now time.Time) {
	if r.closed || len(r.seatName) < 2 {
		return
	}
	if !r.nextHandAt.IsZero() && now.Before(r.nextHandAt) {
		return
	}
	snap := r.table.Snapshot()
	if snap.Round == 0 || snap.Ended || snap.Phase == holdem.PhaseHandOver || snap.Phase == holdem.PhaseWaiting {
		_ = r.startHandLocked()
	}
}
