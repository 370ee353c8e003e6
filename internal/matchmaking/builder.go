package matchmaking

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hassanwarsame/quizduel/internal/models"
	"github.com/hassanwarsame/quizduel/internal/store"
)

// buildMatch stages a new match plus both players' activeMatch pointers
// inside the caller's transaction, so no subscriber can observe a
// half-created match. order[0] answers first; that same ordering later
// decides who triggers question advancement.
func (s *Service) buildMatch(tx store.Txn, order [2]uuid.UUID, subject models.Subject, qs []models.Question) (uuid.UUID, error) {
	if order[0] == order[1] {
		return uuid.Nil, fmt.Errorf("matchmaking: refusing to pair player %s with themselves", order[0])
	}

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to generate match id: %w", err)
	}

	players := make(map[uuid.UUID]*models.MatchPlayer, 2)
	for _, pid := range order {
		var profile models.ProfileDoc
		ok, err := tx.Get(store.UserPath(pid), &profile)
		if err != nil {
			return uuid.Nil, err
		}
		if !ok {
			return uuid.Nil, fmt.Errorf("matchmaking: no profile for player %s", pid)
		}
		players[pid] = &models.MatchPlayer{
			Name:      profile.Name,
			Avatar:    profile.Avatar,
			Score:     0,
			Connected: true,
		}
		profile.ActiveMatch = &id
		tx.Put(store.UserPath(pid), &profile)
	}

	m := models.Match{
		ID:           id,
		Status:       models.MatchActive,
		Subject:      subject,
		Order:        order,
		Players:      players,
		Turn:         order[0],
		Questions:    qs,
		LastActivity: s.now().UnixMilli(),
	}
	tx.Put(store.MatchPath(id), &m)
	return id, nil
}
