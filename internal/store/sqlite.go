package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultSQLiteDBName = "berrypoker.db"

type SQLiteStore struct {
	db *sql.DB
}

func SQLitePathFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("DB_PATH")); v != "" {
		return filepath.Clean(v)
	}
	return "./" + defaultSQLiteDBName
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		if parent := filepath.Dir(dbPath); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) SaveRoom(ctx context.Context, roomID string, stateJSON []byte) error {
	nowMs := time.Now().UTC().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO rooms (room_id, state_json, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT (room_id) DO UPDATE
SET state_json = excluded.state_json,
    updated_at_ms = excluded.updated_at_ms
`, roomID, string(stateJSON), nowMs, nowMs)
	return err
}

func (s *SQLiteStore) LoadRoom(ctx context.Context, roomID string) (*RoomRecord, error) {
	var rec RoomRecord
	var stateJSON string
	var createdMs, updatedMs int64
	err := s.db.QueryRowContext(ctx, `
SELECT room_id, state_json, created_at_ms, updated_at_ms
FROM rooms WHERE room_id = ?
`, roomID).Scan(&rec.RoomID, &stateJSON, &createdMs, &updatedMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.StateJSON = []byte(stateJSON)
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return &rec, nil
}

func (s *SQLiteStore) LoadFreshRooms(ctx context.Context, window time.Duration) ([]RoomRecord, error) {
	cutoff := time.Now().Add(-window).UTC().UnixMilli()
	rows, err := s.db.QueryContext(ctx, `
SELECT room_id, state_json, created_at_ms, updated_at_ms
FROM rooms WHERE updated_at_ms >= ?
`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoomRecord
	for rows.Next() {
		var rec RoomRecord
		var stateJSON string
		var createdMs, updatedMs int64
		if err := rows.Scan(&rec.RoomID, &stateJSON, &createdMs, &updatedMs); err != nil {
			return nil, err
		}
		rec.StateJSON = []byte(stateJSON)
		rec.CreatedAt = time.UnixMilli(createdMs).UTC()
		rec.UpdatedAt = time.UnixMilli(updatedMs).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteRoom(ctx context.Context, roomID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = ?`, roomID)
	return err
}

func (s *SQLiteStore) PurgeStaleRooms(ctx context.Context, window time.Duration) (int, error) {
	cutoff := time.Now().Add(-window).UTC().UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE updated_at_ms < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) RecordHand(ctx context.Context, hand HandRecord, actions []ActionRecord, deltas map[string]PlayerProfitDelta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	winnersRaw, err := json.Marshal(hand.WinnerNames)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO hands (id, room_id, hand_number, pot_size, winner_names, winning_hand, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, hand.ID, hand.RoomID, hand.HandNumber, hand.PotSize, string(winnersRaw), hand.WinningHand, nowMs); err != nil {
		return err
	}

	for _, a := range actions {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO action_history (hand_id, player_name, action, amount, phase, sequence)
VALUES (?, ?, ?, ?, ?, ?)
`, a.HandID, a.PlayerName, a.Action, a.Amount, a.Phase, a.Sequence); err != nil {
			return err
		}
	}

	for name, delta := range deltas {
		won := int64(0)
		if delta.Won {
			won = 1
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO player_stats (name, hands_played, hands_won, total_profit, biggest_pot, updated_at_ms)
VALUES (?, 1, ?, ?, ?, ?)
ON CONFLICT (name) DO UPDATE
SET hands_played = player_stats.hands_played + 1,
    hands_won = player_stats.hands_won + ?,
    total_profit = player_stats.total_profit + ?,
    biggest_pot = MAX(player_stats.biggest_pot, ?),
    updated_at_ms = ?
`, name, won, delta.Profit, hand.PotSize, nowMs, won, delta.Profit, hand.PotSize, nowMs); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) PlayerStats(ctx context.Context, name string) (*PlayerStats, error) {
	var st PlayerStats
	var updatedMs int64
	err := s.db.QueryRowContext(ctx, `
SELECT name, hands_played, hands_won, total_profit, biggest_pot, updated_at_ms
FROM player_stats WHERE name = ?
`, name).Scan(&st.Name, &st.HandsPlayed, &st.HandsWon, &st.TotalProfit, &st.BiggestPot, &updatedMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	st.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return &st, nil
}

func (s *SQLiteStore) Leaderboard(ctx context.Context, limit int) ([]PlayerStats, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT name, hands_played, hands_won, total_profit, biggest_pot, updated_at_ms
FROM player_stats
ORDER BY total_profit DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerStats
	for rows.Next() {
		var st PlayerStats
		var updatedMs int64
		if err := rows.Scan(&st.Name, &st.HandsPlayed, &st.HandsWon, &st.TotalProfit, &st.BiggestPot, &updatedMs); err != nil {
			return nil, err
		}
		st.UpdatedAt = time.UnixMilli(updatedMs).UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS rooms (
    room_id TEXT PRIMARY KEY,
    state_json TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_updated_at ON rooms(updated_at_ms)`,
		`
CREATE TABLE IF NOT EXISTS hands (
    id TEXT PRIMARY KEY,
    room_id TEXT NOT NULL,
    hand_number INTEGER NOT NULL,
    pot_size INTEGER NOT NULL,
    winner_names TEXT NOT NULL DEFAULT '[]',
    winning_hand TEXT NOT NULL DEFAULT '',
    created_at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_hands_room ON hands(room_id, hand_number)`,
		`
CREATE TABLE IF NOT EXISTS player_stats (
    name TEXT PRIMARY KEY,
    hands_played INTEGER NOT NULL DEFAULT 0,
    hands_won INTEGER NOT NULL DEFAULT 0,
    total_profit INTEGER NOT NULL DEFAULT 0,
    biggest_pot INTEGER NOT NULL DEFAULT 0,
    updated_at_ms INTEGER NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS action_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    hand_id TEXT NOT NULL,
    player_name TEXT NOT NULL,
    action TEXT NOT NULL,
    amount INTEGER NOT NULL,
    phase TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    FOREIGN KEY (hand_id) REFERENCES hands(id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_action_history_hand ON action_history(hand_id, sequence)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
