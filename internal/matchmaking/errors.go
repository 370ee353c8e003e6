package matchmaking

import "errors"

var (
	// ErrRoomNotFound rejects a join against a code with no open room.
	ErrRoomNotFound = errors.New("matchmaking: room not found")

	// ErrSelfJoin rejects a host joining their own room.
	ErrSelfJoin = errors.New("matchmaking: cannot join own room")
)

// errCodeTaken signals a room code collision; creation retries with a new code.
var errCodeTaken = errors.New("matchmaking: room code taken")
