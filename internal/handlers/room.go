package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/hassanwarsame/quizduel/internal/matchmaking"
)

// JoinRoomHandler consumes a room code and returns the created match id.
// Unknown codes and self-joins are the only errors a client is expected to
// see; everything else is treated as transient.
func JoinRoomHandler(logger *logrus.Logger, svc *matchmaking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		joinerID, err := requireUser(r)
		if err != nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		var req struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
			http.Error(w, "missing room code", http.StatusBadRequest)
			return
		}

		matchID, err := svc.JoinRoom(r.Context(), req.Code, joinerID)
		switch {
		case errors.Is(err, matchmaking.ErrRoomNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
			return
		case errors.Is(err, matchmaking.ErrSelfJoin):
			http.Error(w, "cannot join your own room", http.StatusConflict)
			return
		case err != nil:
			logger.Warnf("joinRoom failed for %s: %v", joinerID, err)
			http.Error(w, "failed to join room", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"matchId": matchID.String()})
	}
}
