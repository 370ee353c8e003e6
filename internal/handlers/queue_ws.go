package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hassanwarsame/quizduel/internal/matchmaking"
	"github.com/hassanwarsame/quizduel/internal/middleware"
	"github.com/hassanwarsame/quizduel/internal/models"
	"github.com/hassanwarsame/quizduel/internal/store"
)

// QueueWSHandler joins the caller into the matchmaking queue for the subject
// given in the query string. While the caller waits, the connection's
// liveness guards the queue entry: a dropped socket releases the entry so
// nobody can pair against a dead player. The handler streams `queued` and
// `match_found` frames.
func QueueWSHandler(logger *logrus.Logger, svc *matchmaking.Service, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := models.Subject(r.URL.Query().Get("subject"))
		if subject == "" {
			http.Error(w, "missing subject", http.StatusBadRequest)
			return
		}

		userID, err := requireUser(r)
		if err != nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"queue"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "queue" {
			c.Close(BadSubprotocolError, "client must speak the queue subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// The opponent announces the match through our profile's activeMatch
		// pointer. The subscription must exist before our queue entry does: a
		// pairing that commits right after we enqueue notifies only the
		// subscribers registered at commit time.
		updates, err := st.Subscribe(ctx, store.UserPath(userID))
		if err != nil {
			logger.Warnf("profile subscribe failed for %s: %v", userID, err)
			c.Close(websocket.StatusInternalError, "subscribe failed")
			return
		}

		res, err := svc.JoinQueue(ctx, userID, subject)
		if err != nil {
			logger.Warnf("joinQueue failed for %s: %v", userID, err)
			writeJSON(ctx, c, map[string]any{"type": "error", "message": "matchmaking unavailable"})
			c.Close(websocket.StatusInternalError, "join failed")
			return
		}

		if !res.Waiting {
			writeJSON(ctx, c, map[string]any{"type": "match_found", "matchId": res.MatchID})
			c.Close(websocket.StatusNormalClosure, "matched")
			return
		}

		// Waiting: the entry stays alive only while this connection does.
		if res.Lease != nil {
			go res.Lease.Keepalive(ctx)
		}
		writeJSON(ctx, c, map[string]any{"type": "queued", "entryId": res.EntryID})

		// Drain reads so we notice a client-side close or an explicit leave.
		leftQueue := make(chan struct{})
		go func() {
			for {
				var msg struct {
					Type string `json:"type"`
				}
				if err := readJSON(ctx, c, &msg); err != nil {
					cancel()
					return
				}
				if msg.Type == "leave_queue" {
					close(leftQueue)
					return
				}
			}
		}()

		for {
			select {
			case <-leftQueue:
				if err := svc.LeaveQueue(context.Background(), userID, subject, res.EntryID); err != nil {
					logger.Warnf("leaveQueue failed for %s: %v", userID, err)
				}
				c.Close(websocket.StatusNormalClosure, "left queue")
				return
			case <-ctx.Done():
				middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, ctx.Err())
				return
			case raw, ok := <-updates:
				if !ok {
					return
				}
				if raw == nil {
					continue
				}
				var profile models.ProfileDoc
				if err := json.Unmarshal(raw, &profile); err != nil {
					continue
				}
				if profile.ActiveMatch != nil {
					writeJSON(ctx, c, map[string]any{"type": "match_found", "matchId": *profile.ActiveMatch})
					c.Close(websocket.StatusNormalClosure, "matched")
					return
				}
			}
		}
	}
}

func writeJSON(ctx context.Context, c *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Write(ctx, websocket.MessageText, data)
}

func readJSON(ctx context.Context, c *websocket.Conn, dest any) error {
	_, data, err := c.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
