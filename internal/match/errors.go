package match

import "errors"

// ErrTurnViolation rejects an answer submitted by a player who does not own
// the current turn, targets a finished match, or is not a participant. The
// submission never reaches the store.
var ErrTurnViolation = errors.New("match: turn violation")

// ErrMatchNotFound is returned when no match document exists for the id.
var ErrMatchNotFound = errors.New("match: not found")
