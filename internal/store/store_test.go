package store

import (
	"context"
	"testing"
	"time"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestSaveAndLoadRoom(t *testing.T) {
	ctx := context.Background()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.SaveRoom(ctx, "room-1", []byte(`{"schema_version":1}`)); err != nil {
				t.Fatalf("SaveRoom: %v", err)
			}
			rec, err := st.LoadRoom(ctx, "room-1")
			if err != nil {
				t.Fatalf("LoadRoom: %v", err)
			}
			if string(rec.StateJSON) != `{"schema_version":1}` {
				t.Fatalf("unexpected state_json: %s", rec.StateJSON)
			}

			if err := st.SaveRoom(ctx, "room-1", []byte(`{"schema_version":2}`)); err != nil {
				t.Fatalf("SaveRoom overwrite: %v", err)
			}
			rec, err = st.LoadRoom(ctx, "room-1")
			if err != nil {
				t.Fatalf("LoadRoom after overwrite: %v", err)
			}
			if string(rec.StateJSON) != `{"schema_version":2}` {
				t.Fatalf("expected REPLACE semantics, got: %s", rec.StateJSON)
			}
		})
	}
}

func TestLoadRoom_NotFound(t *testing.T) {
	ctx := context.Background()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := st.LoadRoom(ctx, "does-not-exist"); err != ErrNotFound {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestRecordHand_AccumulatesPlayerStats(t *testing.T) {
	ctx := context.Background()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			hand := HandRecord{ID: "hand-1", RoomID: "room-1", HandNumber: 1, PotSize: 300, WinnerNames: []string{"alice"}, WinningHand: "Flush, Ace high"}
			actions := []ActionRecord{
				{HandID: "hand-1", PlayerName: "alice", Action: "raise", Amount: 100, Phase: "pre-flop", Sequence: 0},
				{HandID: "hand-1", PlayerName: "bob", Action: "call", Amount: 100, Phase: "pre-flop", Sequence: 1},
			}
			deltas := map[string]PlayerProfitDelta{
				"alice": {Profit: 200, Won: true},
				"bob":   {Profit: -100, Won: false},
			}
			if err := st.RecordHand(ctx, hand, actions, deltas); err != nil {
				t.Fatalf("RecordHand: %v", err)
			}

			aliceStats, err := st.PlayerStats(ctx, "alice")
			if err != nil {
				t.Fatalf("PlayerStats(alice): %v", err)
			}
			if aliceStats.HandsPlayed != 1 || aliceStats.HandsWon != 1 || aliceStats.TotalProfit != 200 || aliceStats.BiggestPot != 300 {
				t.Fatalf("unexpected alice stats: %+v", aliceStats)
			}

			bobStats, err := st.PlayerStats(ctx, "bob")
			if err != nil {
				t.Fatalf("PlayerStats(bob): %v", err)
			}
			if bobStats.HandsWon != 0 || bobStats.TotalProfit != -100 {
				t.Fatalf("unexpected bob stats: %+v", bobStats)
			}

			// A second hand should accumulate, not overwrite.
			hand2 := hand
			hand2.ID = "hand-2"
			if err := st.RecordHand(ctx, hand2, nil, map[string]PlayerProfitDelta{"alice": {Profit: 50, Won: true}}); err != nil {
				t.Fatalf("RecordHand #2: %v", err)
			}
			aliceStats, err = st.PlayerStats(ctx, "alice")
			if err != nil {
				t.Fatalf("PlayerStats(alice) after 2nd hand: %v", err)
			}
			if aliceStats.HandsPlayed != 2 || aliceStats.TotalProfit != 250 {
				t.Fatalf("expected accumulation across hands, got: %+v", aliceStats)
			}
		})
	}
}

func TestLeaderboard_OrdersByProfitDescending(t *testing.T) {
	ctx := context.Background()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			for i, deltas := range []map[string]PlayerProfitDelta{
				{"low": {Profit: 10, Won: true}},
				{"high": {Profit: 1000, Won: true}},
				{"mid": {Profit: 500, Won: true}},
			} {
				hand := HandRecord{ID: "h", RoomID: "r", HandNumber: uint16(i), PotSize: 10}
				hand.ID = hand.ID + string(rune('0'+i))
				if err := st.RecordHand(ctx, hand, nil, deltas); err != nil {
					t.Fatalf("RecordHand: %v", err)
				}
			}
			board, err := st.Leaderboard(ctx, 10)
			if err != nil {
				t.Fatalf("Leaderboard: %v", err)
			}
			if len(board) != 3 {
				t.Fatalf("expected 3 entries, got %d", len(board))
			}
			if board[0].Name != "high" || board[1].Name != "mid" || board[2].Name != "low" {
				t.Fatalf("expected descending profit order, got %+v", board)
			}
		})
	}
}

func TestPurgeStaleRooms(t *testing.T) {
	ctx := context.Background()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.SaveRoom(ctx, "stale", []byte(`{}`)); err != nil {
				t.Fatalf("SaveRoom: %v", err)
			}
			n, err := st.PurgeStaleRooms(ctx, -1*time.Second)
			if err != nil {
				t.Fatalf("PurgeStaleRooms: %v", err)
			}
			if n != 1 {
				t.Fatalf("expected 1 purged room, got %d", n)
			}
			if _, err := st.LoadRoom(ctx, "stale"); err != ErrNotFound {
				t.Fatalf("expected room to be gone after purge, got err=%v", err)
			}
		})
	}
}
