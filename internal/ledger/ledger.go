// Package ledger owns the durable point balances. Credits are applied exactly
// once per match: the engine invokes the credit from the transition that
// commits the finished status, and the ledger itself guards against
// re-delivery with a per-match marker row.
package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Credit is one player's payout for a completed match.
type Credit struct {
	PlayerID uuid.UUID
	Points   int
}

// Standing is one leaderboard row.
type Standing struct {
	PlayerID uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`
	Points   int       `json:"points"`
}

type Ledger interface {
	// CreditMatchCompletion applies the credits for matchID. Calling it again
	// with the same matchID is a no-op.
	CreditMatchCompletion(ctx context.Context, matchID uuid.UUID, credits []Credit) error

	// Points returns a player's durable balance.
	Points(ctx context.Context, playerID uuid.UUID) (int, error)

	// Leaderboard returns the top players by points.
	Leaderboard(ctx context.Context, limit int) ([]Standing, error)
}
