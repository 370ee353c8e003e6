package questions

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hassanwarsame/quizduel/internal/models"
)

// PGPool serves authored questions from Postgres. Sampling is pushed into the
// query so large banks are never loaded whole.
type PGPool struct {
	db *pgxpool.Pool
}

func NewPGPool(db *pgxpool.Pool) *PGPool {
	return &PGPool{db: db}
}

func (p *PGPool) Sample(ctx context.Context, subject models.Subject, n int) ([]models.Question, error) {
	q := `
	SELECT id, prompt, options, correct, subject
	FROM questions
	WHERE subject=$1
	ORDER BY random()
	LIMIT $2
	`
	rows, err := p.db.Query(ctx, q, string(subject), n)
	if err != nil {
		return nil, fmt.Errorf("failed to sample questions: %w", err)
	}
	defer rows.Close()

	var out []models.Question
	for rows.Next() {
		var qu models.Question
		var subj string
		if err := rows.Scan(&qu.ID, &qu.Prompt, &qu.Options, &qu.Correct, &subj); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		qu.Subject = models.Subject(subj)
		out = append(out, qu)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) < n {
		return nil, fmt.Errorf("questions: bank has %d questions, need %d", len(out), n)
	}
	return out, nil
}
