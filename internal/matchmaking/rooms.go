package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hassanwarsame/quizduel/internal/models"
	"github.com/hassanwarsame/quizduel/internal/presence"
	"github.com/hassanwarsame/quizduel/internal/questions"
	"github.com/hassanwarsame/quizduel/internal/store"
)

// maxCodeAttempts bounds room code regeneration on collision.
const maxCodeAttempts = 16

// RoomResult reports a created room and, when presence is configured, the
// lease that removes it if the host disconnects before a joiner arrives.
type RoomResult struct {
	Code  string
	Lease *presence.Lease
}

// CreateRoom opens a private room under a fresh 4-digit code. The code check
// and the room write happen in one transaction, so two hosts can never claim
// the same code.
func (s *Service) CreateRoom(ctx context.Context, hostID uuid.UUID, subject models.Subject) (*RoomResult, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := fmt.Sprintf("%04d", 1000+rand.Intn(9000))
		path := store.RoomPath(code)

		err := s.store.Update(ctx, path, func(tx store.Txn) error {
			var existing models.RoomEntry
			ok, err := tx.Get(path, &existing)
			if err != nil {
				return err
			}
			if ok {
				return errCodeTaken
			}
			tx.Put(path, models.RoomEntry{
				Code:    code,
				Host:    hostID,
				Subject: subject,
				Created: s.now().UnixMilli(),
			})
			return nil
		})
		if errors.Is(err, errCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}

		res := &RoomResult{Code: code}
		if s.presence != nil {
			lease, err := s.presence.Acquire(ctx, path)
			if err != nil {
				return nil, err
			}
			res.Lease = lease
		}
		s.logger.WithFields(logrus.Fields{
			"host":    hostID,
			"code":    code,
			"subject": subject,
		}).Info("room created")
		return res, nil
	}
	return nil, fmt.Errorf("%w: no free room code after %d attempts", store.ErrUnavailable, maxCodeAttempts)
}

// JoinRoom consumes the room and constructs the match, host answering first.
func (s *Service) JoinRoom(ctx context.Context, code string, joinerID uuid.UUID) (uuid.UUID, error) {
	path := store.RoomPath(code)

	var room models.RoomEntry
	if err := s.store.Get(ctx, path, &room); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, ErrRoomNotFound
		}
		return uuid.Nil, err
	}
	if room.Host == joinerID {
		return uuid.Nil, ErrSelfJoin
	}

	qs, err := s.pool.Sample(ctx, room.Subject, questions.QuestionsPerMatch)
	if err != nil {
		return uuid.Nil, err
	}

	var matchID uuid.UUID
	err = s.store.Update(ctx, path, func(tx store.Txn) error {
		var r models.RoomEntry
		ok, err := tx.Get(path, &r)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRoomNotFound
		}
		if r.Host == joinerID {
			return ErrSelfJoin
		}
		tx.Delete(path)

		id, err := s.buildMatch(tx, [2]uuid.UUID{r.Host, joinerID}, r.Subject, qs)
		if err != nil {
			return err
		}
		matchID = id
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"match":  matchID,
		"code":   code,
		"host":   room.Host,
		"joiner": joinerID,
	}).Info("room joined")
	return matchID, nil
}
