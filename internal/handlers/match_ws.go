package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hassanwarsame/quizduel/internal/match"
	"github.com/hassanwarsame/quizduel/internal/middleware"
	"github.com/hassanwarsame/quizduel/internal/models"
	"github.com/hassanwarsame/quizduel/internal/store"
)

// matchMessage is one client frame on the match socket.
type matchMessage struct {
	Type    string `json:"type"` // "submit_answer" | "leave_match"
	Correct bool   `json:"correct,omitempty"`
}

// MatchWSHandler attaches a participant to a match: it streams the match
// document on every committed change and accepts answer submissions. An
// out-of-turn submission earns an error frame and changes nothing.
func MatchWSHandler(logger *logrus.Logger, eng *match.Engine, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.TrimPrefix(r.URL.Path, "/match/ws/")
		matchID, err := uuid.Parse(strings.Split(idStr, "/")[0])
		if err != nil {
			http.Error(w, "invalid match_id", http.StatusBadRequest)
			return
		}

		userID, err := requireUser(r)
		if err != nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		m, err := eng.Match(r.Context(), matchID)
		if err != nil {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}
		if m.Ordinal(userID) < 0 {
			http.Error(w, "not a participant", http.StatusForbidden)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"match"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error for match %s: %v", matchID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "match" {
			c.Close(BadSubprotocolError, "client must speak the match subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		updates, err := st.Subscribe(ctx, store.MatchPath(matchID))
		if err != nil {
			logger.Warnf("match subscribe failed for %s: %v", matchID, err)
			c.Close(websocket.StatusInternalError, "subscribe failed")
			return
		}

		if err := eng.SetConnected(ctx, matchID, userID, true); err != nil {
			logger.Warnf("failed to mark %s connected in %s: %v", userID, matchID, err)
		}

		// Single writer: both the subscription and message replies go
		// through outChan. A dead pump cancels ctx so senders never block on
		// a full buffer nobody drains.
		outChan := make(chan map[string]any, 16)
		go func() {
			defer cancel()
			writePump(ctx, c, outChan, logger)
		}()
		send := func(msg map[string]any) {
			select {
			case outChan <- msg:
			case <-ctx.Done():
			}
		}

		send(map[string]any{"type": "match_state", "state": m})

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case raw, ok := <-updates:
					if !ok {
						return
					}
					if raw == nil {
						continue
					}
					var cur models.Match
					if err := json.Unmarshal(raw, &cur); err != nil {
						continue
					}
					select {
					case outChan <- map[string]any{"type": "match_state", "state": &cur}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()

		// Read loop.
	readLoop:
		for {
			var msg matchMessage
			if err := readJSON(ctx, c, &msg); err != nil {
				break
			}
			switch msg.Type {
			case "submit_answer":
				updated, err := eng.SubmitAnswer(ctx, matchID, userID, msg.Correct)
				if errors.Is(err, match.ErrTurnViolation) {
					send(map[string]any{"type": "error", "message": "not your turn"})
					continue
				}
				if err != nil {
					logger.Warnf("submitAnswer failed for %s in %s: %v", userID, matchID, err)
					send(map[string]any{"type": "error", "message": "submission failed, try again"})
					continue
				}
				if updated.Status == models.MatchFinished {
					// Terminal frame already flows through the subscription.
					logger.WithFields(logrus.Fields{
						"match":  matchID,
						"winner": updated.Winner,
					}).Debug("final answer processed")
				}
			case "leave_match":
				if err := eng.LeaveMatch(ctx, userID, matchID); err != nil {
					logger.Warnf("leaveMatch failed for %s in %s: %v", userID, matchID, err)
				}
				c.Close(websocket.StatusNormalClosure, "left match")
				break readLoop
			default:
				send(map[string]any{"type": "error", "message": "unknown message type"})
			}
		}

		cancel()
		if err := eng.SetConnected(context.Background(), matchID, userID, false); err != nil {
			logger.Warnf("failed to mark %s disconnected in %s: %v", userID, matchID, err)
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
	}
}

// writePump serializes all outbound frames for one connection.
func writePump(ctx context.Context, c *websocket.Conn, outChan <-chan map[string]any, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-outChan:
			if !ok {
				return
			}
			if err := writeJSON(ctx, c, msg); err != nil {
				if ctx.Err() == nil {
					logger.Debugf("ws write failed: %v", err)
				}
				return
			}
		}
	}
}
