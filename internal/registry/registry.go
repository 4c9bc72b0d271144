// Package registry implements the Room Registry & Persistence component
// (spec.md §4.5): a process-wide room_id -> Room Engine directory, with
// periodic snapshot persistence, startup recovery, and idle purge.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/google/uuid"

	"pokerroom/holdem"
	"pokerroom/internal/metrics"
	"pokerroom/internal/room"
	"pokerroom/internal/store"
)

const (
	defaultHotSetSize      = 512
	defaultPersistInterval = 30 * time.Second
	defaultIdleWindow      = 24 * time.Hour

	// maxConsecutivePersistFailures is spec.md §7's Transient-error
	// threshold: "a repeated threshold of failures escalates to fatal
	// room shutdown."
	maxConsecutivePersistFailures = 5
)

// persistedRoom is the JSON document stored in rooms.state_json
// (spec.md §6): a self-describing, versioned snapshot of one room.
type persistedRoom struct {
	SchemaVersion int               `json:"schema_version"`
	RoomID        string            `json:"room_id"`
	Config        room.Config       `json:"config"`
	SeatNames     map[uint16]string `json:"seat_names"`
	Table         holdem.Snapshot   `json:"table"`
}

const currentPersistedRoomSchemaVersion = 1

// BroadcastFunc delivers raw bytes to one connection of one room. The
// Session Multiplexer (internal/gateway) supplies this, keyed by the
// connID the gateway itself assigned.
type BroadcastFunc func(roomID string, connID uint64, data []byte)

// Registry is the process-wide room directory. Create/delete are
// serialized under mu, a lock distinct from any individual Room's own
// internal lock (spec.md §4.5).
type Registry struct {
	mu        sync.Mutex
	rooms     map[string]*room.Room
	dirty     map[string]bool
	failCount map[string]int

	hot        *lru.Cache[string, struct{}]
	hotSetSize int

	store        store.Store
	broadcast    BroadcastFunc
	persistEvery time.Duration
	idleWindow   time.Duration
	log          *logrus.Entry

	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Registry at construction time.
type Option func(*Registry)

func WithPersistInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.persistEvery = d
		}
	}
}

func WithIdleWindow(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.idleWindow = d
		}
	}
}

func WithHotSetSize(n int) Option {
	return func(r *Registry) {
		r.hotSetSize = n
	}
}

// New creates a Registry. broadcast fans outbound room bytes back out to
// the gateway's live connections; st is the durable backing store.
//
// The LRU only bounds the size of the in-memory hot-set index; a room
// evicted from it is not stopped, only flushed — the registry's own
// idle-timer sweep (purgeIdle) remains the authoritative purge mechanism
// per spec.md §4.5.
func New(st store.Store, broadcast BroadcastFunc, opts ...Option) *Registry {
	r := &Registry{
		rooms:        make(map[string]*room.Room),
		dirty:        make(map[string]bool),
		failCount:    make(map[string]int),
		store:        st,
		broadcast:    broadcast,
		persistEvery: defaultPersistInterval,
		idleWindow:   defaultIdleWindow,
		hotSetSize:   defaultHotSetSize,
		log:          logrus.WithField("component", "registry"),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	hot, _ := lru.NewWithEvict[string, struct{}](r.hotSetSize, r.onHotSetEvict)
	r.hot = hot
	return r
}

// Create allocates a new room with a freshly-generated opaque id.
func (rg *Registry) Create(cfg room.Config) (*room.Room, string, error) {
	id := newRoomID()

	rg.mu.Lock()
	defer rg.mu.Unlock()

	rm, err := room.New(id, cfg, rg.sendFor(id))
	if err != nil {
		return nil, "", fmt.Errorf("registry: create room: %w", err)
	}
	rm.SetDirtyHook(rg.markDirty)
	rm.AddHandEndHook(rg.recordHandEnd)
	rg.rooms[id] = rm
	rg.touchHot(id)
	metrics.RoomsActive.Set(float64(len(rg.rooms)))
	return rm, id, nil
}

// Get returns the room for id, or nil if it doesn't exist.
func (rg *Registry) Get(id string) *room.Room {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	rm := rg.rooms[id]
	if rm != nil {
		rg.touchHot(id)
	}
	return rm
}

// List returns every known room id.
func (rg *Registry) List() []string {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	ids := make([]string, 0, len(rg.rooms))
	for id := range rg.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Delete stops and forgets a room, and removes its persisted snapshot.
func (rg *Registry) Delete(ctx context.Context, id string) {
	rg.mu.Lock()
	rm, ok := rg.rooms[id]
	if ok {
		delete(rg.rooms, id)
		delete(rg.dirty, id)
		delete(rg.failCount, id)
		metrics.RoomsActive.Set(float64(len(rg.rooms)))
	}
	rg.mu.Unlock()

	if !ok {
		return
	}
	rm.Stop()
	if rg.store != nil {
		if err := rg.store.DeleteRoom(ctx, id); err != nil {
			rg.log.WithError(err).WithField("room", id).Warn("delete persisted snapshot")
		}
	}
}

func (rg *Registry) sendFor(roomID string) func(connID uint64, data []byte) {
	return func(connID uint64, data []byte) {
		if rg.broadcast != nil {
			rg.broadcast(roomID, connID, data)
		}
	}
}

func (rg *Registry) touchHot(id string) {
	if rg.hot == nil {
		return
	}
	rg.hot.Add(id, struct{}{})
}

// onHotSetEvict flushes a final snapshot for a room dropped from the
// bounded in-memory index, so a memory-pressure eviction never loses
// state that hasn't reached the store yet. It must not reacquire rg.mu
// synchronously from inside the lru callback, which may itself run while
// mu is held (Add can evict) — so it hands off to a goroutine.
func (rg *Registry) onHotSetEvict(id string, _ struct{}) {
	go func() {
		rg.mu.Lock()
		rm, ok := rg.rooms[id]
		dirty := rg.dirty[id]
		if ok {
			delete(rg.dirty, id)
		}
		rg.mu.Unlock()
		if !ok || !dirty || rg.store == nil {
			return
		}
		if err := rg.persistOne(context.Background(), id, rm); err != nil {
			rg.log.WithError(err).WithField("room", id).Warn("hot-set eviction flush failed")
		}
	}()
}

// markDirty is the Room.DirtyHook: called (without holding rg.mu) from
// inside a room's own actor goroutine, so it must not call back into the
// room itself.
func (rg *Registry) markDirty(roomID string) {
	rg.mu.Lock()
	rg.dirty[roomID] = true
	rg.mu.Unlock()
}

// Run starts the background persistence ticker and idle-purge sweeper.
// It blocks until ctx is cancelled or Stop is called.
func (rg *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(rg.persistEvery)
	defer ticker.Stop()
	idleTicker := time.NewTicker(rg.idleWindow / 24)
	if rg.idleWindow/24 < time.Second {
		idleTicker.Stop()
		idleTicker = time.NewTicker(time.Minute)
	}
	defer idleTicker.Stop()

	for {
		select {
		case <-ticker.C:
			rg.flushDirty(ctx)
		case <-idleTicker.C:
			rg.purgeIdle(ctx)
		case <-ctx.Done():
			rg.flushDirty(context.Background())
			return
		case <-rg.done:
			rg.flushDirty(context.Background())
			return
		}
	}
}

// Stop halts the background ticker. Rooms themselves are not stopped;
// callers that want a full shutdown should also Stop each room.
func (rg *Registry) Stop() {
	rg.stopOnce.Do(func() { close(rg.done) })
}

func (rg *Registry) flushDirty(ctx context.Context) {
	rg.mu.Lock()
	toFlush := make([]string, 0, len(rg.dirty))
	for id := range rg.dirty {
		toFlush = append(toFlush, id)
	}
	rg.dirty = make(map[string]bool)
	rooms := make(map[string]*room.Room, len(toFlush))
	for _, id := range toFlush {
		if rm, ok := rg.rooms[id]; ok {
			rooms[id] = rm
		}
	}
	rg.mu.Unlock()

	if rg.store == nil {
		return
	}
	for id, rm := range rooms {
		if err := rg.persistOne(ctx, id, rm); err != nil {
			metrics.PersistFailures.Inc()
			rg.mu.Lock()
			rg.failCount[id]++
			fails := rg.failCount[id]
			rg.dirty[id] = true // retry on the next tick (spec.md §7 Transient)
			rg.mu.Unlock()

			if fails >= maxConsecutivePersistFailures {
				rg.log.WithError(err).WithField("room", id).WithField("failures", fails).
					Error("persist snapshot failed repeatedly, aborting room")
				rg.Delete(ctx, id)
				continue
			}
			rg.log.WithError(err).WithField("room", id).WithField("failures", fails).
				Warn("persist snapshot failed")
			continue
		}

		rg.mu.Lock()
		delete(rg.failCount, id)
		rg.mu.Unlock()
	}
}

func (rg *Registry) persistOne(ctx context.Context, id string, rm *room.Room) error {
	doc := persistedRoom{
		SchemaVersion: currentPersistedRoomSchemaVersion,
		RoomID:        id,
		Config:        rm.Config(),
		SeatNames:     rm.SeatNames(),
		Table:         rm.Snapshot(),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return rg.store.SaveRoom(ctx, id, raw)
}

func (rg *Registry) purgeIdle(ctx context.Context) {
	rg.mu.Lock()
	var idle []string
	for id, rm := range rg.rooms {
		if rm.IsClosed() || rm.IsIdleFor(rg.idleWindow) {
			idle = append(idle, id)
		}
	}
	rg.mu.Unlock()

	for _, id := range idle {
		rg.Delete(ctx, id)
		rg.log.WithField("room", id).Info("purged idle room")
	}

	if rg.store != nil {
		if n, err := rg.store.PurgeStaleRooms(ctx, rg.idleWindow); err != nil {
			rg.log.WithError(err).Warn("purge stale snapshots failed")
		} else if n > 0 {
			rg.log.WithField("count", n).Info("purged stale snapshots with no live room")
		}
	}
}

// Recover reconstructs every room whose persisted snapshot is still
// within the freshness window, reattaching no connections (spec.md §4.5:
// "players must reconnect").
func (rg *Registry) Recover(ctx context.Context) (int, error) {
	if rg.store == nil {
		return 0, nil
	}
	records, err := rg.store.LoadFreshRooms(ctx, rg.idleWindow)
	if err != nil {
		return 0, fmt.Errorf("registry: load fresh rooms: %w", err)
	}

	recovered := 0
	for _, rec := range records {
		var doc persistedRoom
		if err := json.Unmarshal(rec.StateJSON, &doc); err != nil {
			rg.log.WithError(err).WithField("room", rec.RoomID).Warn("recover: corrupt snapshot, skipping")
			continue
		}

		rg.mu.Lock()
		if _, exists := rg.rooms[rec.RoomID]; exists {
			rg.mu.Unlock()
			continue
		}
		rm, err := room.New(rec.RoomID, doc.Config, rg.sendFor(rec.RoomID))
		if err != nil {
			rg.mu.Unlock()
			rg.log.WithError(err).WithField("room", rec.RoomID).Warn("recover: recreate room failed")
			continue
		}
		rm.SetDirtyHook(rg.markDirty)
		rm.AddHandEndHook(rg.recordHandEnd)
		rm.Restore(doc.SeatNames, doc.Table)
		rg.rooms[rec.RoomID] = rm
		rg.touchHot(rec.RoomID)
		metrics.RoomsActive.Set(float64(len(rg.rooms)))
		rg.mu.Unlock()
		recovered++
	}
	return recovered, nil
}

func newRoomID() string {
	return uuid.New().String()
}
