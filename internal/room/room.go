// Package room implements the Room Engine (spec.md §4.4): one cooperative
// actor goroutine per room, owning exactly one holdem.Table, serializing
// every externally-originated event through a bounded channel and fanning
// out per-recipient JSON envelopes.
package room

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pokerroom/holdem"
)

const (
	actionTimeLimit    = 30 * time.Second
	showdownHandDelay  = 8 * time.Second
	foldHandDelay      = 3 * time.Second
	offlineSeatTTL     = 30 * time.Second
	eventQueueCapacity = 256
)

// Config is a room's table-shape settings, supplied at creation time by
// the Room Registry (POST /api/rooms).
type Config struct {
	MaxPlayers int
	SmallBlind int64
	BigBlind   int64
	Ante       int64
	MinBuyIn   int64
	MaxBuyIn   int64
}

// HandEndInfo is delivered to hand-end hooks (the persistence tap).
type HandEndInfo struct {
	RoomID   string
	HandNum  uint16
	Snapshot holdem.Snapshot
	Result   *holdem.SettlementResult
	Names    map[uint16]string
	Actions  []ActionLogEntry

	// StartStacks is each seat's stack just before this hand's blinds were
	// posted, keyed by seat — subtract from the post-settlement stack in
	// Snapshot.Seats to get a player's net profit for the hand.
	StartStacks map[uint16]int64
}

// ActionLogEntry is one recorded action within a single hand, in the order
// it was taken — the in-memory source for the `action_history` table
// (spec.md §6).
type ActionLogEntry struct {
	PlayerName string
	Action     string
	Amount     int64
	Phase      string
	Sequence   int
}

// HandEndHook is a post-settlement callback, e.g. the Room Registry's
// recordHandEnd, which writes per-hand/per-player stats to internal/store.
type HandEndHook func(info HandEndInfo)

// DirtyHook is invoked after every state-mutating event, letting the Room
// Registry's persistence tap know a fresh snapshot should eventually be
// written (spec.md §4.5).
type DirtyHook func(roomID string)

var ErrRoomClosed = fmt.Errorf("room closed")

// conn tracks one live or recently-live connection bound to a display
// name. Spectators have Seat == holdem.InvalidSeat.
type conn struct {
	ID       uint64
	Name     string
	Seat     uint16
	Online   bool
	LastSeen time.Time
}

// Room is the Room Engine actor: a single goroutine owning a holdem.Table.
type Room struct {
	ID  string
	cfg Config

	log *logrus.Entry

	mu    sync.Mutex
	table *holdem.Table

	conns     map[uint64]*conn  // connID -> conn
	seatOwner map[uint16]uint64 // seat -> owning connID, kept while the owner is offline
	seatName  map[uint16]string // seat -> display name, retained across disconnects
	nameSeat  map[string]uint16 // name -> seat, for duplicate-name rejection
	nextID    uint64            // per-room player identity counter for holdem.Seat.ID

	actionTimeoutSeat uint16
	actionDeadline    time.Time
	nextHandAt        time.Time
	emptySince        time.Time

	handNumber uint16

	// pendingLeave marks seats whose occupant called leave() mid-hand: per
	// spec.md §4.4 they fold as soon as action reaches them and are dropped
	// from seating once the hand is awarded.
	pendingLeave map[uint16]bool

	runTwiceVotes map[uint16]bool

	// actionLog accumulates this hand's actions in order, reset at the
	// start of each hand and handed to hand-end hooks for persistence.
	actionLog []ActionLogEntry

	// handStartStacks captures each seat's stack just before StartHand
	// posts blinds/antes, so hand-end hooks can compute each player's net
	// profit for the hand (including the cost of posting) by comparing
	// against the post-settlement stack.
	handStartStacks map[uint16]int64

	events   chan Event
	done     chan struct{}
	stopOnce sync.Once
	closed   bool

	broadcast func(connID uint64, data []byte)

	handEndHooks []HandEndHook
	onDirty      DirtyHook
}

// New creates a room and starts its actor goroutine.
func New(id string, cfg Config, broadcast func(connID uint64, data []byte)) (*Room, error) {
	tbl, err := holdem.NewTable(holdem.Config{
		MaxPlayers: cfg.MaxPlayers,
		MinPlayers: 2,
		SmallBlind: cfg.SmallBlind,
		BigBlind:   cfg.BigBlind,
		Ante:       cfg.Ante,
	})
	if err != nil {
		return nil, fmt.Errorf("room %s: create table: %w", id, err)
	}

	r := &Room{
		ID:         id,
		cfg:        cfg,
		log:        logrus.WithField("room", id),
		table:      tbl,
		conns:      make(map[uint64]*conn),
		seatOwner:  make(map[uint16]uint64),
		seatName:   make(map[uint16]string, cfg.MaxPlayers),
		nameSeat:   make(map[string]uint16, cfg.MaxPlayers),
		events:     make(chan Event, eventQueueCapacity),
		done:       make(chan struct{}),
		broadcast:  broadcast,
		emptySince: time.Now(),
	}
	go r.run()
	r.log.Info("room created")
	return r, nil
}

// Restore re-seats a freshly-created room from a persisted snapshot, for
// Room Registry startup recovery (spec.md §4.5). Only seating (stack,
// sitting-out flag, display name) is restored; a hand in progress at the
// moment of the last snapshot is not resumed mid-street — the table comes
// back in the waiting phase and a new hand starts normally once enough
// seats are occupied. Reconstructing holdem.Table's full mid-hand state
// (dealt cards, betting round position, pot contents) from a snapshot
// would need a dedicated restore path on Table that the engine doesn't
// have; re-seating with fresh stacks is the teacher's own posture too —
// it never persists tables across restarts at all, so there is nothing to
// generalize from beyond spec.md's own text.
func (r *Room) Restore(names map[uint16]string, snap holdem.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handNumber = snap.Round
	for _, seatSnap := range snap.Seats {
		if seatSnap.Stack <= 0 {
			continue
		}
		name := strings.TrimSpace(names[seatSnap.Seat])
		if name == "" {
			continue
		}
		playerID := r.nextPlayerID()
		if err := r.table.SitDown(seatSnap.Seat, playerID, seatSnap.Stack); err != nil {
			r.log.WithError(err).WithField("seat", seatSnap.Seat).Warn("restore: seat skipped")
			continue
		}
		if seatSnap.SittingOut {
			if s := r.table.Seat(seatSnap.Seat); s != nil {
				s.SetSittingOut(true)
			}
		}
		r.seatName[seatSnap.Seat] = name
		r.nameSeat[name] = seatSnap.Seat
	}
}

func (r *Room) run() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case e := <-r.events:
			err := r.handle(e)
			if e.Response != nil {
				e.Response <- err
			}
		case <-ticker.C:
			r.tick()
		case <-r.done:
			r.log.Info("room actor stopped")
			return
		}
	}
}

// SubmitEvent enqueues an event and waits for its response.
func (r *Room) SubmitEvent(e Event) error {
	e.Timestamp = time.Now()
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrRoomClosed
	}

	select {
	case r.events <- e:
	case <-r.done:
		return ErrRoomClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-r.done:
		return ErrRoomClosed
	}
}

// Stop marks the room closed and stops the actor goroutine; events still
// queued are not processed.
func (r *Room) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Room) stopLocked() {
	r.closed = true
	r.stopOnce.Do(func() { close(r.done) })
}

// IsIdleFor reports whether the room has had zero connections for at
// least ttl, per spec.md §4.5 idle purge.
func (r *Room) IsIdleFor(ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return true
	}
	if len(r.conns) > 0 {
		return false
	}
	if r.emptySince.IsZero() {
		return false
	}
	return time.Since(r.emptySince) >= ttl
}

func (r *Room) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Snapshot returns the underlying table's persistable snapshot.
func (r *Room) Snapshot() holdem.Snapshot {
	return r.table.Snapshot()
}

// Config returns the room's table-shape settings.
func (r *Room) Config() Config {
	return r.cfg
}

// SeatNames returns a copy of the seat -> display name map, for the
// Room Registry's persisted snapshot (a holdem.Snapshot alone has no
// names, only numeric seat ids).
func (r *Room) SeatNames() map[uint16]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint16]string, len(r.seatName))
	for seat, name := range r.seatName {
		out[seat] = name
	}
	return out
}

// AddHandEndHook registers a post-settlement callback.
func (r *Room) AddHandEndHook(h HandEndHook) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.handEndHooks = append(r.handEndHooks, h)
	r.mu.Unlock()
}

// SetDirtyHook registers the callback invoked after every mutating event.
func (r *Room) SetDirtyHook(h DirtyHook) {
	r.mu.Lock()
	r.onDirty = h
	r.mu.Unlock()
}

func (r *Room) handle(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed && e.Type != EventClose {
		return ErrRoomClosed
	}

	mutating := true
	var err error
	switch e.Type {
	case EventSpectate:
		mutating = false
		err = r.handleSpectate(e)
	case EventJoin:
		err = r.handleJoin(e)
	case EventLeave:
		err = r.handleLeave(e)
	case EventStartGame:
		err = r.handleStartGame(e)
	case EventAction:
		err = r.handleAction(e)
	case EventSitOut:
		err = r.handleSitOut(e)
	case EventChat:
		mutating = false
		err = r.handleChat(e)
	case EventRunTwiceChoice:
		err = r.handleRunTwiceChoice(e)
	case EventSignal:
		mutating = false
		err = r.handleSignal(e)
	case EventConnLost:
		err = r.handleConnLost(e)
	case EventTick:
		mutating = false
		r.tickLocked(e.Timestamp)
	case EventClose:
		mutating = false
		r.stopLocked()
	default:
		mutating = false
		err = fmt.Errorf("unknown event type: %d", e.Type)
	}

	if mutating && err == nil && r.onDirty != nil {
		r.onDirty(r.ID)
	}
	r.abortOnFatalLocked(err)
	return err
}

// abortOnFatalLocked implements spec.md §7's Fatal error kind: "invariant
// violation detected post-mutation" aborts the room rather than just
// rejecting the one request. holdem.InvalidStateError is the engine's own
// marker for that class (chip conservation, acting-seat consistency).
func (r *Room) abortOnFatalLocked(err error) {
	var invalid holdem.InvalidStateError
	if !errors.As(err, &invalid) || r.closed {
		return
	}
	r.log.WithError(err).Error("fatal invariant violation, aborting room")
	r.broadcastAll("error", ErrorData{Message: "room aborted: internal invariant violation"})
	r.stopLocked()
}

func (r *Room) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickLocked(time.Now())
}

func (r *Room) tickLocked(now time.Time) {
	if r.closed {
		return
	}
	r.handleTimeoutLocked(now)
	r.releaseOfflineSeatsLocked(now)
	if !r.nextHandAt.IsZero() && !now.Before(r.nextHandAt) {
		r.tryStartHandLocked(now)
	}
}

// nextPlayerID assigns a stable per-room identity for a newly-seated name.
func (r *Room) nextPlayerID() uint64 {
	r.nextID++
	return r.nextID
}

func (r *Room) setActionTimeoutLocked(seat uint16, now time.Time) {
	r.actionTimeoutSeat = seat
	r.actionDeadline = now.Add(actionTimeLimit)
}

func (r *Room) clearActionTimeoutLocked() {
	r.actionTimeoutSeat = holdem.InvalidSeat
	r.actionDeadline = time.Time{}
}

func (r *Room) updateEmptySinceLocked(now time.Time) {
	if len(r.conns) == 0 {
		if r.emptySince.IsZero() {
			r.emptySince = now
		}
		return
	}
	r.emptySince = time.Time{}
}

func normalizeName(raw string) string {
	return strings.TrimSpace(raw)
}

func hasAction(actions []holdem.ActionType, want holdem.ActionType) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}
