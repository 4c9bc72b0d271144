// Package store implements Room Registry & Persistence (spec.md §4.5,
// §6 "Persisted state layout"): durable room snapshots, per-hand history,
// and aggregate player statistics, behind a driver-agnostic interface with
// SQLite (default) and Postgres (optional) implementations.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// RoomRecord is one row of the `rooms` table: a versioned, self-describing
// snapshot of a Table keyed by room_id.
type RoomRecord struct {
	RoomID    string
	StateJSON []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HandRecord is one row of the `hands` table.
type HandRecord struct {
	ID          string
	RoomID      string
	HandNumber  uint16
	PotSize     int64
	WinnerNames []string
	WinningHand string
	CreatedAt   time.Time
}

// ActionRecord is one row of the `action_history` table.
type ActionRecord struct {
	HandID     string
	PlayerName string
	Action     string
	Amount     int64
	Phase      string
	Sequence   int
}

// PlayerStats is one row of the `player_stats` table. Also serialized
// directly as the GET /api/stats/{name} and /api/leaderboard response body
// (spec.md §6), hence the json tags.
type PlayerStats struct {
	Name        string    `json:"name"`
	HandsPlayed int64     `json:"hands_played"`
	HandsWon    int64     `json:"hands_won"`
	TotalProfit int64     `json:"total_profit"`
	BiggestPot  int64     `json:"biggest_pot"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store is the persistence surface the Room Registry and the HTTP stats
// endpoints depend on. Implementations must serialize writes to the same
// room_id (spec.md §5 "single writer discipline").
type Store interface {
	// SaveRoom upserts a room's snapshot with REPLACE semantics, bumping
	// updated_at to now.
	SaveRoom(ctx context.Context, roomID string, stateJSON []byte) error
	// LoadRoom returns ErrNotFound if no snapshot exists for roomID.
	LoadRoom(ctx context.Context, roomID string) (*RoomRecord, error)
	// LoadFreshRooms returns every room snapshot updated within the given
	// window of now, for startup recovery (spec.md §4.5).
	LoadFreshRooms(ctx context.Context, window time.Duration) ([]RoomRecord, error)
	// DeleteRoom removes a room's snapshot (idle purge, or explicit close).
	DeleteRoom(ctx context.Context, roomID string) error
	// PurgeStaleRooms deletes every room snapshot older than window and
	// reports how many were removed.
	PurgeStaleRooms(ctx context.Context, window time.Duration) (int, error)

	// RecordHand inserts a completed hand plus its per-action history in
	// one transaction, and folds the result into each named player's
	// aggregate stats.
	RecordHand(ctx context.Context, hand HandRecord, actions []ActionRecord, playerDeltas map[string]PlayerProfitDelta) error

	// PlayerStats returns a player's aggregate stats, ErrNotFound if the
	// player has never played a recorded hand.
	PlayerStats(ctx context.Context, name string) (*PlayerStats, error)
	// Leaderboard returns the top N players by total profit, descending.
	Leaderboard(ctx context.Context, limit int) ([]PlayerStats, error)

	Close() error
}

// PlayerProfitDelta folds into player_stats on RecordHand: profit is the
// net stack change for this hand (negative for a loss), won reports
// whether this player took down (any share of) the pot.
type PlayerProfitDelta struct {
	Profit int64
	Won    bool
}
