// Package match implements the turn-based match state machine. All state
// lives in the shared store; every transition is an optimistic transaction on
// the match document, so two racing submissions resolve in a total order and
// never apply against a stale score.
package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hassanwarsame/quizduel/internal/ledger"
	"github.com/hassanwarsame/quizduel/internal/models"
	"github.com/hassanwarsame/quizduel/internal/store"
)

// PointsPerCorrect is the score reward for one correct answer.
const PointsPerCorrect = 10

// CompletionSink receives finished matches for asynchronous persistence
// (the archiver queue). A nil sink is ignored.
type CompletionSink interface {
	MatchFinished(ctx context.Context, m *models.Match) error
}

// Engine drives match transitions against the shared store and credits the
// ledger when a match it finishes commits.
type Engine struct {
	store       store.Store
	ledger      ledger.Ledger
	completions CompletionSink
	logger      *logrus.Logger

	now func() time.Time
}

func NewEngine(st store.Store, lg ledger.Ledger, logger *logrus.Logger) *Engine {
	return &Engine{
		store:  st,
		ledger: lg,
		logger: logger,
		now:    time.Now,
	}
}

// SetCompletionSink wires the optional finished-match queue.
func (e *Engine) SetCompletionSink(sink CompletionSink) {
	e.completions = sink
}

// Match returns the current match document.
func (e *Engine) Match(ctx context.Context, matchID uuid.UUID) (*models.Match, error) {
	var m models.Match
	err := e.store.Get(ctx, store.MatchPath(matchID), &m)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SubmitAnswer applies one answer from playerID to the match. The engine
// derives the next turn and whether this was the final answer from the
// match's fixed player order: the question advances only after the second
// ordered player has answered it, and the match finishes when the second
// ordered player answers the last question.
//
// A submission from a player who does not own the turn, or against a finished
// match, fails with ErrTurnViolation and mutates nothing.
func (e *Engine) SubmitAnswer(ctx context.Context, matchID, playerID uuid.UUID, correct bool) (*models.Match, error) {
	// Reject obviously illegitimate submissions before they reach the store.
	cur, err := e.Match(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := checkTurn(cur, playerID); err != nil {
		return nil, err
	}

	var (
		committed models.Match
		finished  bool
	)
	err = e.store.Update(ctx, store.MatchPath(matchID), func(tx store.Txn) error {
		finished = false

		var m models.Match
		ok, err := tx.Get(store.MatchPath(matchID), &m)
		if err != nil {
			return err
		}
		if !ok {
			return ErrMatchNotFound
		}
		// Re-checked inside the transaction: a submission that lost a race to
		// a turn change must not apply.
		if err := checkTurn(&m, playerID); err != nil {
			return err
		}

		if correct {
			m.Players[playerID].Score += PointsPerCorrect
		}

		ordinal := m.Ordinal(playerID)
		if m.OnFinalQuestion() && ordinal == 1 {
			m.Status = models.MatchFinished
			m.Winner = decideWinner(&m)
			finished = true
		} else {
			m.Turn = m.Opponent(playerID)
			if ordinal == 1 {
				m.CurrentQuestionIndex++
			}
		}
		m.LastActivity = e.now().UnixMilli()

		tx.Put(store.MatchPath(matchID), &m)
		committed = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	if finished {
		if err := e.settle(ctx, &committed); err != nil {
			return &committed, err
		}
	}
	return &committed, nil
}

// checkTurn enforces the transition precondition.
func checkTurn(m *models.Match, playerID uuid.UUID) error {
	if m.Ordinal(playerID) < 0 {
		return fmt.Errorf("%w: player %s is not in match %s", ErrTurnViolation, playerID, m.ID)
	}
	if m.Status != models.MatchActive {
		return fmt.Errorf("%w: match %s is finished", ErrTurnViolation, m.ID)
	}
	if m.Turn != playerID {
		return fmt.Errorf("%w: it is not player %s's turn", ErrTurnViolation, playerID)
	}
	return nil
}

// decideWinner compares the two ordered players' final scores.
func decideWinner(m *models.Match) string {
	s0 := m.Players[m.Order[0]].Score
	s1 := m.Players[m.Order[1]].Score
	switch {
	case s0 > s1:
		return m.Order[0].String()
	case s1 > s0:
		return m.Order[1].String()
	default:
		return models.WinnerDraw
	}
}

// settle credits the ledger and hands the finished match to the archiver
// queue. It runs only in the call that committed the finished transition, so
// the credit happens once per match by construction; the ledger additionally
// guards against re-delivery.
func (e *Engine) settle(ctx context.Context, m *models.Match) error {
	credits := make([]ledger.Credit, 0, 2)
	for _, id := range m.Order {
		credits = append(credits, ledger.Credit{PlayerID: id, Points: m.Players[id].Score})
	}
	if err := e.ledger.CreditMatchCompletion(ctx, m.ID, credits); err != nil {
		return fmt.Errorf("failed to credit match completion: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"match":  m.ID,
		"winner": m.Winner,
	}).Info("match finished")

	if e.completions != nil {
		if err := e.completions.MatchFinished(ctx, m); err != nil {
			// Archival is best-effort; the credit already committed.
			e.logger.WithField("match", m.ID).Warnf("failed to enqueue finished match: %v", err)
		}
	}
	return nil
}

// SetConnected flips a participant's connected flag. Scores, turn, and
// question index are never touched here, and finished matches are left alone.
func (e *Engine) SetConnected(ctx context.Context, matchID, playerID uuid.UUID, connected bool) error {
	return e.store.Update(ctx, store.MatchPath(matchID), func(tx store.Txn) error {
		var m models.Match
		ok, err := tx.Get(store.MatchPath(matchID), &m)
		if err != nil {
			return err
		}
		if !ok || m.Status != models.MatchActive {
			return nil
		}
		p, ok := m.Players[playerID]
		if !ok || p.Connected == connected {
			return nil
		}
		p.Connected = connected
		tx.Put(store.MatchPath(matchID), &m)
		return nil
	})
}

// LeaveMatch clears the leaver's active-match pointer. The match document is
// deliberately untouched: it stays the single source of truth for the
// remaining player, whose view keeps showing an unresolved active match.
func (e *Engine) LeaveMatch(ctx context.Context, playerID, matchID uuid.UUID) error {
	return e.store.Update(ctx, store.UserPath(playerID), func(tx store.Txn) error {
		var p models.ProfileDoc
		ok, err := tx.Get(store.UserPath(playerID), &p)
		if err != nil {
			return err
		}
		if !ok || p.ActiveMatch == nil || *p.ActiveMatch != matchID {
			return nil
		}
		p.ActiveMatch = nil
		tx.Put(store.UserPath(playerID), &p)
		return nil
	})
}
