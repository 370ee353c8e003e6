package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/hassanwarsame/quizduel/internal/ledger"
)

const defaultLeaderboardSize = 20

// LeaderboardHandler returns the top players by durable points.
func LeaderboardHandler(logger *logrus.Logger, lg ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultLeaderboardSize
		if s := r.URL.Query().Get("limit"); s != "" {
			if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= 100 {
				limit = v
			}
		}

		standings, err := lg.Leaderboard(r.Context(), limit)
		if err != nil {
			logger.Warnf("leaderboard query failed: %v", err)
			http.Error(w, "leaderboard unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(standings)
	}
}
