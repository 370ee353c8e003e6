package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryLedger keeps balances in memory. It backs the engine tests and has
// the same once-per-match semantics as the Postgres ledger.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int
	credited map[uuid.UUID]bool
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[uuid.UUID]int),
		credited: make(map[uuid.UUID]bool),
	}
}

func (l *MemoryLedger) CreditMatchCompletion(_ context.Context, matchID uuid.UUID, credits []Credit) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.credited[matchID] {
		return nil
	}
	l.credited[matchID] = true
	for _, c := range credits {
		l.balances[c.PlayerID] += c.Points
	}
	return nil
}

func (l *MemoryLedger) Points(_ context.Context, playerID uuid.UUID) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[playerID], nil
}

func (l *MemoryLedger) Leaderboard(_ context.Context, limit int) ([]Standing, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Standing, 0, len(l.balances))
	for id, pts := range l.balances {
		out = append(out, Standing{PlayerID: id, Points: pts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
