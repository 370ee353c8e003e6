package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLedger stores balances in the users table and guards idempotency with the
// match_credits table (one row per credited match).
type PGLedger struct {
	db *pgxpool.Pool
}

func NewPGLedger(db *pgxpool.Pool) *PGLedger {
	return &PGLedger{db: db}
}

func (l *PGLedger) CreditMatchCompletion(ctx context.Context, matchID uuid.UUID, credits []Credit) error {
	err := pgx.BeginTxFunc(ctx, l.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO match_credits (match_id) VALUES ($1) ON CONFLICT (match_id) DO NOTHING`,
			matchID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			// Match already credited; nothing to apply.
			return nil
		}
		for _, c := range credits {
			if c.Points == 0 {
				continue
			}
			if _, err := tx.Exec(ctx,
				`UPDATE users SET points = points + $1 WHERE id = $2`,
				c.Points, c.PlayerID,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to credit match %s: %w", matchID, err)
	}
	return nil
}

func (l *PGLedger) Points(ctx context.Context, playerID uuid.UUID) (int, error) {
	var points int
	err := l.db.QueryRow(ctx, `SELECT points FROM users WHERE id=$1`, playerID).Scan(&points)
	if err != nil {
		return 0, fmt.Errorf("failed to read points for %s: %w", playerID, err)
	}
	return points, nil
}

func (l *PGLedger) Leaderboard(ctx context.Context, limit int) ([]Standing, error) {
	q := `
	SELECT id, name, avatar, points
	FROM users
	WHERE is_ephemeral = false
	ORDER BY points DESC, name ASC
	LIMIT $1
	`
	rows, err := l.db.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []Standing
	for rows.Next() {
		var s Standing
		if err := rows.Scan(&s.PlayerID, &s.Name, &s.Avatar, &s.Points); err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
