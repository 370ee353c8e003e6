// Package questions provides read-only question banks and the uniform
// sampling used to draw a match's question list.
package questions

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/hassanwarsame/quizduel/internal/models"
)

// QuestionsPerMatch is the fixed question count drawn for every match.
const QuestionsPerMatch = 5

// ErrSubjectUnknown is returned when a subject has no question bank.
var ErrSubjectUnknown = errors.New("questions: unknown subject")

// Pool serves immutable questions by subject.
type Pool interface {
	// Sample draws n distinct questions uniformly at random from the
	// subject's bank. The returned slice is owned by the caller.
	Sample(ctx context.Context, subject models.Subject, n int) ([]models.Question, error)
}

// sampleFrom copies up to n questions from bank without replacement.
func sampleFrom(bank []models.Question, n int) ([]models.Question, error) {
	if len(bank) < n {
		return nil, fmt.Errorf("questions: bank has %d questions, need %d", len(bank), n)
	}
	idx := rand.Perm(len(bank))[:n]
	out := make([]models.Question, 0, n)
	for _, i := range idx {
		q := bank[i]
		q.Options = append([]string(nil), q.Options...)
		out = append(out, q)
	}
	return out, nil
}
