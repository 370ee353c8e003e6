// Package matchmaking pairs players into matches, either by auto-matching
// strangers through a per-subject queue or by letting friends exchange a
// short room code. Both paths funnel into the same match construction.
package matchmaking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hassanwarsame/quizduel/internal/models"
	"github.com/hassanwarsame/quizduel/internal/presence"
	"github.com/hassanwarsame/quizduel/internal/questions"
	"github.com/hassanwarsame/quizduel/internal/store"
)

// Service owns queue entries and rooms. Presence is optional; when set,
// waiting entries and rooms are guarded by disconnect leases.
type Service struct {
	store    store.Store
	pool     questions.Pool
	presence *presence.Manager
	logger   *logrus.Logger

	now func() time.Time
}

func NewService(st store.Store, pool questions.Pool, pm *presence.Manager, logger *logrus.Logger) *Service {
	return &Service{
		store:    st,
		pool:     pool,
		presence: pm,
		logger:   logger,
		now:      time.Now,
	}
}

// QueueResult reports the outcome of a JoinQueue call: either a match or a
// waiting entry (with its lease, when presence is configured).
type QueueResult struct {
	MatchID uuid.UUID
	Waiting bool
	EntryID string
	Lease   *presence.Lease
}

// queueSeq is the per-subject sequencer document at queue/{subject}. Every
// queue mutation transacts on it and bumps it, so two concurrent queue
// transactions for the same subject always conflict and one of them re-runs
// against the other's committed state.
type queueSeq struct {
	N uint64 `json:"n"`
}

func bumpQueueSeq(tx store.Txn, path string) error {
	var seq queueSeq
	if _, err := tx.Get(path, &seq); err != nil {
		return err
	}
	seq.N++
	tx.Put(path, seq)
	return nil
}

// JoinQueue pairs the caller with the oldest waiting opponent for the
// subject, or inserts a waiting entry for the caller. Both the scan and the
// chosen outcome live in one transaction on the subject's sequencer: two
// players joining an empty queue at once cannot both enqueue without seeing
// each other, and two joiners cannot both consume the same waiting entry.
func (s *Service) JoinQueue(ctx context.Context, playerID uuid.UUID, subject models.Subject) (*QueueResult, error) {
	seqPath := store.QueuePath(string(subject))

	var res *QueueResult
	err := s.store.Update(ctx, seqPath, func(tx store.Txn) error {
		res = nil
		if err := bumpQueueSeq(tx, seqPath); err != nil {
			return err
		}

		// The prefix scan reads committed state, which is safe here: a queue
		// commit landing between this scan and ours bumps the sequencer and
		// re-runs the closure.
		keys, err := s.store.List(ctx, store.QueuePrefix(string(subject)))
		if err != nil {
			return err
		}
		var (
			bestPath  string
			bestEntry models.QueueEntry
		)
		for _, key := range keys {
			var e models.QueueEntry
			ok, err := tx.Get(key, &e)
			if err != nil {
				return err
			}
			if !ok || e.PlayerID == playerID {
				continue
			}
			if bestPath == "" || e.EnqueuedAt < bestEntry.EnqueuedAt {
				bestPath, bestEntry = key, e
			}
		}

		if bestPath == "" {
			entryID := uuid.NewString()
			tx.Put(store.QueueEntryPath(string(subject), entryID), models.QueueEntry{
				PlayerID:   playerID,
				EnqueuedAt: s.now().UnixMilli(),
			})
			res = &QueueResult{Waiting: true, EntryID: entryID}
			return nil
		}

		qs, err := s.pool.Sample(ctx, subject, questions.QuestionsPerMatch)
		if err != nil {
			return err
		}
		tx.Delete(bestPath)
		id, err := s.buildMatch(tx, [2]uuid.UUID{bestEntry.PlayerID, playerID}, subject, qs)
		if err != nil {
			return err
		}
		res = &QueueResult{MatchID: id}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Waiting {
		if s.presence != nil {
			lease, err := s.presence.Acquire(ctx, store.QueueEntryPath(string(subject), res.EntryID))
			if err != nil {
				return nil, err
			}
			res.Lease = lease
		}
		s.logger.WithFields(logrus.Fields{
			"player":  playerID,
			"subject": subject,
		}).Info("player queued")
		return res, nil
	}

	s.logger.WithFields(logrus.Fields{
		"match":   res.MatchID,
		"player":  playerID,
		"subject": subject,
	}).Info("players paired from queue")
	return res, nil
}

// LeaveQueue cancels a waiting entry. Only the entry's owner can remove it;
// the transaction on the sequencer serializes the removal against pairing,
// so a join can never consume an entry that was just cancelled.
func (s *Service) LeaveQueue(ctx context.Context, playerID uuid.UUID, subject models.Subject, entryID string) error {
	seqPath := store.QueuePath(string(subject))
	path := store.QueueEntryPath(string(subject), entryID)
	return s.store.Update(ctx, seqPath, func(tx store.Txn) error {
		var e models.QueueEntry
		ok, err := tx.Get(path, &e)
		if err != nil {
			return err
		}
		if !ok || e.PlayerID != playerID {
			return nil
		}
		if err := bumpQueueSeq(tx, seqPath); err != nil {
			return err
		}
		tx.Delete(path)
		return nil
	})
}
