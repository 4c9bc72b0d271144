package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pokerroom/internal/room"
	"pokerroom/internal/store"
)

// recordHandEnd is a room.HandEndHook, registered on every room the
// Registry creates or recovers. It translates a finished hand into the
// `hands`/`action_history`/`player_stats` rows spec.md §6 names, running
// the write on its own goroutine (hand-end hooks already run off the
// room's actor goroutine — see Room.dispatchHandEndHooksLocked).
func (rg *Registry) recordHandEnd(info room.HandEndInfo) {
	if rg.store == nil {
		return
	}

	handID := uuid.New().String()

	winnerNames, winningHand := summarizeWinners(info)
	hand := store.HandRecord{
		ID:          handID,
		RoomID:      info.RoomID,
		HandNumber:  info.HandNum,
		PotSize:     potTotal(info),
		WinnerNames: winnerNames,
		WinningHand: winningHand,
	}

	actions := make([]store.ActionRecord, 0, len(info.Actions))
	for _, a := range info.Actions {
		actions = append(actions, store.ActionRecord{
			HandID:     handID,
			PlayerName: a.PlayerName,
			Action:     a.Action,
			Amount:     a.Amount,
			Phase:      a.Phase,
			Sequence:   a.Sequence,
		})
	}

	deltas := profitDeltas(info, winnerNames)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rg.store.RecordHand(ctx, hand, actions, deltas); err != nil {
		rg.log.WithError(err).WithField("room", info.RoomID).Warn("record hand failed")
	}
}

func potTotal(info room.HandEndInfo) int64 {
	var total int64
	if info.Result == nil {
		return total
	}
	for _, pr := range info.Result.PotResults {
		total += pr.Amount
	}
	return total
}

func summarizeWinners(info room.HandEndInfo) (names []string, handDescription string) {
	if info.Result == nil {
		return nil, ""
	}
	seen := make(map[string]bool)
	for _, pr := range info.Result.PotResults {
		for _, seat := range pr.Winners {
			if name := info.Names[seat]; name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	for _, sr := range info.Result.SeatResults {
		if sr.IsWinner && sr.Description != "" {
			return names, sr.Description
		}
	}
	return names, ""
}

// profitDeltas compares each seat's stack just before the hand's blinds
// were posted against its post-settlement stack, per-player net profit
// for the hand regardless of how many streets it survived.
func profitDeltas(info room.HandEndInfo, winnerNames []string) map[string]store.PlayerProfitDelta {
	won := make(map[string]bool, len(winnerNames))
	for _, n := range winnerNames {
		won[n] = true
	}

	deltas := make(map[string]store.PlayerProfitDelta, len(info.Snapshot.Seats))
	for _, s := range info.Snapshot.Seats {
		name := info.Names[s.Seat]
		if name == "" {
			continue
		}
		start, ok := info.StartStacks[s.Seat]
		if !ok {
			continue
		}
		deltas[name] = store.PlayerProfitDelta{
			Profit: s.Stack - start,
			Won:    won[name],
		}
	}
	return deltas
}
