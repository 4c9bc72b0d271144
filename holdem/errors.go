package holdem

import "errors"

var (
	ErrHandEnded        = errors.New("hand already ended")
	ErrOutOfTurn        = errors.New("action out of turn")
	ErrHandInProgress   = errors.New("hand in progress, seat cannot stand up")
	ErrNotEnoughPlayers = errors.New("not enough players to start a hand")
)

// InvalidStateError marks a detected invariant violation (chip conservation,
// acting-seat consistency). This is a Fatal-class error: it indicates a
// logic bug in the table state machine, not a user mistake.
type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }
